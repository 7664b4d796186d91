package poll

import "strings"

// Status represents the lifecycle state of an asynchronous job, normalized
// across the creative API surfaces.
type Status string

// Job statuses as reported by the status endpoints, lower-cased.
const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal returns true if the status is a final state.
// Unknown statuses are not terminal; a poll loop keeps going on them.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// normalizeStatus maps a raw status string from a vendor response onto a
// Status value. Vendors disagree on casing, so comparison happens lower-cased.
func normalizeStatus(raw string) Status {
	return Status(strings.ToLower(strings.TrimSpace(raw)))
}
