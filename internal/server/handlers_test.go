package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mirovado/firefly-gateway/internal/audiovideo"
	"github.com/mirovado/firefly-gateway/internal/firefly"
	"github.com/mirovado/firefly-gateway/internal/ims"
	"github.com/mirovado/firefly-gateway/internal/lightroom"
	"github.com/mirovado/firefly-gateway/internal/media"
	"github.com/mirovado/firefly-gateway/internal/photoshop"
	"github.com/mirovado/firefly-gateway/internal/poll"
	"github.com/mirovado/firefly-gateway/internal/storage"
	"github.com/mirovado/firefly-gateway/internal/workflow"
)

const testToken = "test-access-token"

// mockIMS implements ims.Client for testing.
type mockIMS struct {
	mock.Mock
}

func (m *mockIMS) AccessToken(ctx context.Context) (ims.Token, error) {
	args := m.Called(ctx)
	return args.Get(0).(ims.Token), args.Error(1)
}

// mockFirefly implements firefly.Client for testing.
type mockFirefly struct {
	mock.Mock
}

func (m *mockFirefly) GenerateImage(ctx context.Context, token string, req firefly.GenerateImageRequest) (firefly.Submission, error) {
	args := m.Called(ctx, token, req)
	return args.Get(0).(firefly.Submission), args.Error(1)
}

func (m *mockFirefly) GenerateObjectComposite(ctx context.Context, token string, req firefly.ObjectCompositeRequest) (firefly.Submission, error) {
	args := m.Called(ctx, token, req)
	return args.Get(0).(firefly.Submission), args.Error(1)
}

func (m *mockFirefly) ExpandImage(ctx context.Context, token string, req firefly.ExpandImageRequest) (firefly.Submission, error) {
	args := m.Called(ctx, token, req)
	return args.Get(0).(firefly.Submission), args.Error(1)
}

func (m *mockFirefly) GenerateSimilar(ctx context.Context, token string, req firefly.SimilarImageRequest) (firefly.Submission, error) {
	args := m.Called(ctx, token, req)
	return args.Get(0).(firefly.Submission), args.Error(1)
}

func (m *mockFirefly) GenerateVideo(ctx context.Context, token string, req firefly.GenerateVideoRequest) (firefly.Submission, error) {
	args := m.Called(ctx, token, req)
	return args.Get(0).(firefly.Submission), args.Error(1)
}

func (m *mockFirefly) UploadImage(ctx context.Context, token, contentType string, data io.Reader) (json.RawMessage, error) {
	args := m.Called(ctx, token, contentType, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *mockFirefly) ListCustomModels(ctx context.Context, token, requestID string, limit int) (json.RawMessage, error) {
	args := m.Called(ctx, token, requestID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *mockFirefly) Status(ctx context.Context, token, jobID string) (json.RawMessage, error) {
	args := m.Called(ctx, token, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *mockFirefly) CancelJob(ctx context.Context, token, jobID string) (json.RawMessage, error) {
	args := m.Called(ctx, token, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *mockFirefly) AwaitJob(ctx context.Context, token, statusURL string) (poll.Result, error) {
	args := m.Called(ctx, token, statusURL)
	return args.Get(0).(poll.Result), args.Error(1)
}

func (m *mockFirefly) StatusURL(jobID string) string {
	args := m.Called(jobID)
	return args.String(0)
}

// mockPhotoshop implements photoshop.Client for testing.
type mockPhotoshop struct {
	mock.Mock
}

func (m *mockPhotoshop) RemoveBackground(ctx context.Context, token string, req photoshop.RemoveBackgroundRequest) (photoshop.Submission, error) {
	args := m.Called(ctx, token, req)
	return args.Get(0).(photoshop.Submission), args.Error(1)
}

func (m *mockPhotoshop) Cutout(ctx context.Context, token string, req photoshop.CutoutRequest) (photoshop.JobRef, error) {
	args := m.Called(ctx, token, req)
	return args.Get(0).(photoshop.JobRef), args.Error(1)
}

func (m *mockPhotoshop) ProductCrop(ctx context.Context, token string, req photoshop.ProductCropRequest) (photoshop.JobRef, error) {
	args := m.Called(ctx, token, req)
	return args.Get(0).(photoshop.JobRef), args.Error(1)
}

func (m *mockPhotoshop) SenseiStatus(ctx context.Context, token, jobID string) (json.RawMessage, error) {
	args := m.Called(ctx, token, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *mockPhotoshop) PSDStatus(ctx context.Context, token, jobID string) (json.RawMessage, error) {
	args := m.Called(ctx, token, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *mockPhotoshop) AwaitCutout(ctx context.Context, token, jobID string) (poll.Result, error) {
	args := m.Called(ctx, token, jobID)
	return args.Get(0).(poll.Result), args.Error(1)
}

func (m *mockPhotoshop) AwaitProductCrop(ctx context.Context, token, jobID string) (poll.Result, error) {
	args := m.Called(ctx, token, jobID)
	return args.Get(0).(poll.Result), args.Error(1)
}

// mockLightroom implements lightroom.Client for testing.
type mockLightroom struct {
	mock.Mock
}

func (m *mockLightroom) AutoTone(ctx context.Context, token string, req lightroom.AutoToneRequest) (lightroom.JobRef, error) {
	args := m.Called(ctx, token, req)
	return args.Get(0).(lightroom.JobRef), args.Error(1)
}

func (m *mockLightroom) Status(ctx context.Context, token, jobID string) (json.RawMessage, error) {
	args := m.Called(ctx, token, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *mockLightroom) AwaitJob(ctx context.Context, token, jobID string) (poll.Result, error) {
	args := m.Called(ctx, token, jobID)
	return args.Get(0).(poll.Result), args.Error(1)
}

// mockAudioVideo implements audiovideo.Client for testing.
type mockAudioVideo struct {
	mock.Mock
}

func (m *mockAudioVideo) Voices(ctx context.Context, token string) (json.RawMessage, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *mockAudioVideo) Avatars(ctx context.Context, token string) (json.RawMessage, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *mockAudioVideo) GenerateSpeech(ctx context.Context, token string, req audiovideo.SpeechRequest) (audiovideo.Submission, error) {
	args := m.Called(ctx, token, req)
	return args.Get(0).(audiovideo.Submission), args.Error(1)
}

func (m *mockAudioVideo) GenerateAvatar(ctx context.Context, token string, req audiovideo.AvatarRequest) (audiovideo.Submission, error) {
	args := m.Called(ctx, token, req)
	return args.Get(0).(audiovideo.Submission), args.Error(1)
}

func (m *mockAudioVideo) Dub(ctx context.Context, token string, req audiovideo.DubRequest) (audiovideo.Submission, error) {
	args := m.Called(ctx, token, req)
	return args.Get(0).(audiovideo.Submission), args.Error(1)
}

func (m *mockAudioVideo) Reframe(ctx context.Context, token string, req audiovideo.ReframeRequest) (audiovideo.Submission, error) {
	args := m.Called(ctx, token, req)
	return args.Get(0).(audiovideo.Submission), args.Error(1)
}

func (m *mockAudioVideo) Status(ctx context.Context, token, jobID string) (json.RawMessage, error) {
	args := m.Called(ctx, token, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *mockAudioVideo) AwaitJob(ctx context.Context, token, jobID string) (poll.Result, error) {
	args := m.Called(ctx, token, jobID)
	return args.Get(0).(poll.Result), args.Error(1)
}

// mockStore implements storage.Storage for testing.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) PresignGet(ctx context.Context, bucket, key string) (string, error) {
	args := m.Called(ctx, bucket, key)
	return args.String(0), args.Error(1)
}

func (m *mockStore) PresignPut(ctx context.Context, bucket, key string) (string, error) {
	args := m.Called(ctx, bucket, key)
	return args.String(0), args.Error(1)
}

func (m *mockStore) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	args := m.Called(ctx, bucket, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockStore) Get(ctx context.Context, bucket, key string) (storage.Object, error) {
	args := m.Called(ctx, bucket, key)
	return args.Get(0).(storage.Object), args.Error(1)
}

func (m *mockStore) Put(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	args := m.Called(ctx, bucket, key, contentType, body)
	return args.Error(0)
}

// handlerMocks bundles the mocked dependencies behind a Handlers instance.
type handlerMocks struct {
	ims        *mockIMS
	firefly    *mockFirefly
	photoshop  *mockPhotoshop
	lightroom  *mockLightroom
	audiovideo *mockAudioVideo
	store      *mockStore
	runs       *workflow.MemoryRepository
}

func newTestHandlers(t *testing.T, opts ...HandlerOption) (*Handlers, *handlerMocks) {
	t.Helper()

	m := &handlerMocks{
		ims:        &mockIMS{},
		firefly:    &mockFirefly{},
		photoshop:  &mockPhotoshop{},
		lightroom:  &mockLightroom{},
		audiovideo: &mockAudioVideo{},
		store:      &mockStore{},
		runs:       workflow.NewMemoryRepository(),
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	workflows, err := workflow.NewService(workflow.ServiceConfig{
		IMS:       m.ims,
		Photoshop: m.photoshop,
		Firefly:   m.firefly,
		Lightroom: m.lightroom,
		Runs:      m.runs,
		Store:     m.store,
		Logger:    logger,
	})
	require.NoError(t, err)

	deps := Dependencies{
		IMS:         m.ims,
		Firefly:     m.firefly,
		Photoshop:   m.photoshop,
		Lightroom:   m.lightroom,
		AudioVideo:  m.audiovideo,
		Store:       m.store,
		Thumbnailer: media.NewThumbnailer(m.store, media.DefaultThumbnailMax, logger),
		Workflows:   workflows,
		Poller:      poll.New(poll.WithLogger(logger)),
		APIKey:      "test-client-id",
	}

	// Disable async workflow execution for tests to avoid mock issues
	handlers := NewHandlers(deps, logger, append([]HandlerOption{WithAsyncWorkflows(false)}, opts...)...)
	return handlers, m
}

func withToken(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: testToken})
	return req
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestGenerateAccessToken_SetsCookies(t *testing.T) {
	h, m := newTestHandlers(t)

	raw := json.RawMessage(`{"access_token":"token-abc","token_type":"bearer","expires_in":3600}`)
	m.ims.On("AccessToken", mock.Anything).Return(ims.Token{
		AccessToken: "token-abc",
		TokenType:   "bearer",
		ExpiresIn:   3600,
		Raw:         raw,
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/generate-access-token", nil)
	rec := httptest.NewRecorder()

	h.GenerateAccessToken(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(raw), rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)

	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}

	access := byName[accessTokenCookie]
	require.NotNil(t, access)
	assert.Equal(t, "token-abc", access.Value)
	assert.True(t, access.HttpOnly)
	assert.Equal(t, 3600, access.MaxAge)
	assert.Equal(t, "/", access.Path)

	tokenType := byName[tokenTypeCookie]
	require.NotNil(t, tokenType)
	assert.Equal(t, "bearer", tokenType.Value)
}

func TestGenerateAccessToken_UpstreamError(t *testing.T) {
	h, m := newTestHandlers(t)

	m.ims.On("AccessToken", mock.Anything).Return(ims.Token{}, ims.ErrTokenRequestFailed)

	req := httptest.NewRequest(http.MethodPost, "/generate-access-token", nil)
	rec := httptest.NewRecorder()

	h.GenerateAccessToken(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "UPSTREAM_ERROR", resp.Code)
}

func TestGenerateImage_Success(t *testing.T) {
	h, m := newTestHandlers(t)

	raw := json.RawMessage(`{"jobId":"job-1","statusUrl":"https://firefly/status/job-1"}`)
	m.firefly.On("GenerateImage", mock.Anything, testToken, mock.MatchedBy(func(req firefly.GenerateImageRequest) bool {
		return req.Prompt == "a red bottle" &&
			req.Style != nil &&
			req.Style.Strength == 100 &&
			req.Style.ImageReference != nil &&
			req.Style.ImageReference.URL == "https://example.com/style.png"
	})).Return(firefly.Submission{JobID: "job-1", Raw: raw}, nil)

	body := GenerateImageRequest{
		Prompt:         "a red bottle",
		ReferenceImage: "https://example.com/style.png",
	}
	bodyJSON, _ := json.Marshal(body)

	req := withToken(httptest.NewRequest(http.MethodPost, "/generate-image-async", bytes.NewReader(bodyJSON)))
	rec := httptest.NewRecorder()

	h.GenerateImage(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(raw), rec.Body.String())
	m.firefly.AssertExpectations(t)
}

func TestGenerateImage_NoReference(t *testing.T) {
	h, m := newTestHandlers(t)

	m.firefly.On("GenerateImage", mock.Anything, testToken, mock.MatchedBy(func(req firefly.GenerateImageRequest) bool {
		return req.Prompt == "a red bottle" && req.Style == nil
	})).Return(firefly.Submission{JobID: "job-1", Raw: json.RawMessage(`{"jobId":"job-1"}`)}, nil)

	bodyJSON, _ := json.Marshal(GenerateImageRequest{Prompt: "a red bottle"})

	req := withToken(httptest.NewRequest(http.MethodPost, "/generate-image-async", bytes.NewReader(bodyJSON)))
	rec := httptest.NewRecorder()

	h.GenerateImage(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	m.firefly.AssertExpectations(t)
}

func TestGenerateImage_MissingToken(t *testing.T) {
	h, m := newTestHandlers(t)

	bodyJSON, _ := json.Marshal(GenerateImageRequest{Prompt: "a red bottle"})

	req := httptest.NewRequest(http.MethodPost, "/generate-image-async", bytes.NewReader(bodyJSON))
	rec := httptest.NewRecorder()

	h.GenerateImage(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "TOKEN_MISSING", resp.Code)
	m.firefly.AssertNotCalled(t, "GenerateImage", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateImage_InvalidJSON(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := withToken(httptest.NewRequest(http.MethodPost, "/generate-image-async", strings.NewReader("not json")))
	rec := httptest.NewRecorder()

	h.GenerateImage(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "INVALID_JSON", resp.Code)
}

func TestGenerateObjectComposite_ValidationError(t *testing.T) {
	h, m := newTestHandlers(t)

	// Missing required prompt
	bodyJSON := []byte(`{"contentClass":"photo","image":{"source":{"url":"https://example.com/cutout.png"}}}`)

	req := withToken(httptest.NewRequest(http.MethodPost, "/generate-object-composite", bytes.NewReader(bodyJSON)))
	rec := httptest.NewRecorder()

	h.GenerateObjectComposite(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	m.firefly.AssertNotCalled(t, "GenerateObjectComposite", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckStatus_Success(t *testing.T) {
	h, m := newTestHandlers(t)

	raw := json.RawMessage(`{"status":"running"}`)
	m.firefly.On("Status", mock.Anything, testToken, "job-9").Return(raw, nil)

	req := withToken(httptest.NewRequest(http.MethodGet, "/check-status?job_id=job-9", nil))
	rec := httptest.NewRecorder()

	h.CheckStatus(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(raw), rec.Body.String())
}

func TestCheckStatus_MissingJobID(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := withToken(httptest.NewRequest(http.MethodGet, "/check-status", nil))
	rec := httptest.NewRecorder()

	h.CheckStatus(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "MISSING_JOB_ID", resp.Code)
}

func TestCancelJob_EmptyUpstreamBody(t *testing.T) {
	h, m := newTestHandlers(t)

	m.firefly.On("CancelJob", mock.Anything, testToken, "job-9").Return(json.RawMessage(""), nil)

	req := withToken(httptest.NewRequest(http.MethodPut, "/cancel-job?job_id=job-9", nil))
	rec := httptest.NewRecorder()

	h.CancelJob(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestCancelJob_BodyRelayed(t *testing.T) {
	h, m := newTestHandlers(t)

	raw := json.RawMessage(`{"status":"cancelled"}`)
	m.firefly.On("CancelJob", mock.Anything, testToken, "job-9").Return(raw, nil)

	req := withToken(httptest.NewRequest(http.MethodPut, "/cancel-job?job_id=job-9", nil))
	rec := httptest.NewRecorder()

	h.CancelJob(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(raw), rec.Body.String())
}

func TestUploadImage_Success(t *testing.T) {
	h, m := newTestHandlers(t)

	raw := json.RawMessage(`{"images":[{"id":"upload-1"}]}`)
	m.firefly.On("UploadImage", mock.Anything, testToken, "application/octet-stream", mock.Anything).Return(raw, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "product.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := withToken(httptest.NewRequest(http.MethodPost, "/image-upload", &buf))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	h.UploadImage(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp UploadResponse
	err = json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "product.png", resp.Filename)
	assert.JSONEq(t, string(raw), string(resp.FireflyResponse))
}

func TestUploadImage_MissingFile(t *testing.T) {
	h, _ := newTestHandlers(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "value"))
	require.NoError(t, mw.Close())

	req := withToken(httptest.NewRequest(http.MethodPost, "/image-upload", &buf))
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	h.UploadImage(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "MISSING_FILE", resp.Code)
}

func TestExpandImage_Success(t *testing.T) {
	h, m := newTestHandlers(t)

	raw := json.RawMessage(`{"jobId":"expand-1"}`)
	m.firefly.On("ExpandImage", mock.Anything, testToken, mock.MatchedBy(func(req firefly.ExpandImageRequest) bool {
		return req.Image.Source.UploadID == "upload-1" &&
			req.Size.Width == 2048 && req.Size.Height == 1024
	})).Return(firefly.Submission{JobID: "expand-1", Raw: raw}, nil)

	bodyJSON, _ := json.Marshal(ExpandImageRequest{ImageID: "upload-1", Width: 2048, Height: 1024})

	req := withToken(httptest.NewRequest(http.MethodPost, "/expand-image-async", bytes.NewReader(bodyJSON)))
	rec := httptest.NewRecorder()

	h.ExpandImage(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(raw), rec.Body.String())
	m.firefly.AssertExpectations(t)
}

func TestExpandImageAllSizes(t *testing.T) {
	h, m := newTestHandlers(t)

	m.firefly.On("ExpandImage", mock.Anything, testToken, mock.MatchedBy(func(req firefly.ExpandImageRequest) bool {
		return req.Image.Source.UploadID == "upload-1"
	})).Return(firefly.Submission{JobID: "expand", Raw: json.RawMessage(`{"jobId":"expand"}`)}, nil)

	bodyJSON, _ := json.Marshal(ExpandAllSizesRequest{ImageID: "upload-1"})

	req := withToken(httptest.NewRequest(http.MethodPost, "/expand-image-all-sizes", bytes.NewReader(bodyJSON)))
	rec := httptest.NewRecorder()

	h.ExpandImageAllSizes(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []json.RawMessage
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Len(t, resp, len(firefly.SupportedExpandSizes))
	m.firefly.AssertNumberOfCalls(t, "ExpandImage", len(firefly.SupportedExpandSizes))
}

func TestCompleteImageCallback_Succeeded(t *testing.T) {
	var (
		mu      sync.Mutex
		gotAuth string
		gotKey  string
	)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("x-api-key")
		mu.Unlock()
		_, _ = w.Write([]byte(`{"status":"succeeded","result":{"outputs":[]}}`))
	}))
	defer upstream.Close()

	h, _ := newTestHandlers(t, WithPollBackoff(poll.Backoff{
		Initial: time.Millisecond,
		Max:     2 * time.Millisecond,
		Factor:  2,
	}))

	req := withToken(httptest.NewRequest(http.MethodGet, "/complete-image-callback?statusUrl="+upstream.URL, nil))
	rec := httptest.NewRecorder()

	h.CompleteImageCallback(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"succeeded","result":{"outputs":[]}}`, rec.Body.String())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Bearer "+testToken, gotAuth)
	assert.Equal(t, "test-client-id", gotKey)
}

func TestCompleteImageCallback_PendingThenSucceeded(t *testing.T) {
	var calls int
	var mu sync.Mutex
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 3 {
			_, _ = w.Write([]byte(`{"status":"running"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"succeeded"}`))
	}))
	defer upstream.Close()

	h, _ := newTestHandlers(t, WithPollBackoff(poll.Backoff{
		Initial: time.Millisecond,
		Max:     2 * time.Millisecond,
		Factor:  2,
	}))

	req := withToken(httptest.NewRequest(http.MethodGet, "/complete-image-callback?statusUrl="+upstream.URL, nil))
	rec := httptest.NewRecorder()

	h.CompleteImageCallback(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"succeeded"}`, rec.Body.String())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls)
}

func TestCompleteImageCallback_JobFailed(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"failed"}`))
	}))
	defer upstream.Close()

	h, _ := newTestHandlers(t, WithPollBackoff(poll.Backoff{
		Initial: time.Millisecond,
		Max:     2 * time.Millisecond,
		Factor:  2,
	}))

	req := withToken(httptest.NewRequest(http.MethodGet, "/complete-image-callback?statusUrl="+upstream.URL, nil))
	rec := httptest.NewRecorder()

	h.CompleteImageCallback(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "JOB_FAILED", resp.Code)
}

func TestCompleteImageCallback_AttemptsExhausted(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"running"}`))
	}))
	defer upstream.Close()

	h, _ := newTestHandlers(t,
		WithPollBackoff(poll.Backoff{Initial: time.Millisecond, Max: 2 * time.Millisecond, Factor: 2}),
		WithPollMaxAttempts(2),
	)

	req := withToken(httptest.NewRequest(http.MethodGet, "/complete-image-callback?statusUrl="+upstream.URL, nil))
	rec := httptest.NewRecorder()

	h.CompleteImageCallback(rec, req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "POLL_TIMEOUT", resp.Code)
}

func TestCompleteImageCallback_MissingStatusURL(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := withToken(httptest.NewRequest(http.MethodGet, "/complete-image-callback", nil))
	rec := httptest.NewRecorder()

	h.CompleteImageCallback(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "MISSING_STATUS_URL", resp.Code)
}

func TestRemoveBackground_Success(t *testing.T) {
	h, m := newTestHandlers(t)

	raw := json.RawMessage(`{"jobId":"rb-1","statusUrl":"https://image/status/rb-1"}`)
	m.photoshop.On("RemoveBackground", mock.Anything, testToken, mock.MatchedBy(func(req photoshop.RemoveBackgroundRequest) bool {
		return req.Image.Source.URL == "https://example.com/product.jpg"
	})).Return(photoshop.Submission{JobID: "rb-1", Raw: raw}, nil)

	bodyJSON := []byte(`{"image":{"source":{"url":"https://example.com/product.jpg"}}}`)

	req := withToken(httptest.NewRequest(http.MethodPost, "/remove-background-async", bytes.NewReader(bodyJSON)))
	rec := httptest.NewRecorder()

	h.RemoveBackground(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(raw), rec.Body.String())
}

func TestCropImage_MissingToken(t *testing.T) {
	h, m := newTestHandlers(t)

	bodyJSON := []byte(`{"inputs":[{"href":"https://example.com/in.psd","storage":"external"}],"options":{"unit":"Pixels","width":500,"height":500},"outputs":[{"href":"https://example.com/out.png","storage":"external"}]}`)

	req := httptest.NewRequest(http.MethodPost, "/crop-image", bytes.NewReader(bodyJSON))
	rec := httptest.NewRecorder()

	h.CropImage(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "TOKEN_MISSING", resp.Code)
	m.photoshop.AssertNotCalled(t, "ProductCrop", mock.Anything, mock.Anything, mock.Anything)
}

func TestCropImage_Success(t *testing.T) {
	h, m := newTestHandlers(t)

	raw := json.RawMessage(`{"_links":{"self":{"href":"https://image/pie/psdService/status/crop-1"}}}`)
	m.photoshop.On("ProductCrop", mock.Anything, testToken, mock.MatchedBy(func(req photoshop.ProductCropRequest) bool {
		return len(req.Inputs) == 1 && req.Options.Width == 500
	})).Return(photoshop.JobRef{ID: "crop-1", Raw: raw}, nil)

	bodyJSON := []byte(`{"inputs":[{"href":"https://example.com/in.psd","storage":"external"}],"options":{"unit":"Pixels","width":500,"height":500},"outputs":[{"href":"https://example.com/out.png","storage":"external"}]}`)

	req := withToken(httptest.NewRequest(http.MethodPost, "/crop-image", bytes.NewReader(bodyJSON)))
	rec := httptest.NewRecorder()

	h.CropImage(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(raw), rec.Body.String())
}

func TestPSDStatus_Success(t *testing.T) {
	h, m := newTestHandlers(t)

	raw := json.RawMessage(`{"outputs":[{"status":"succeeded"}]}`)
	m.photoshop.On("PSDStatus", mock.Anything, testToken, "psd-1").Return(raw, nil)

	req := withToken(httptest.NewRequest(http.MethodGet, "/get-psd-status/psd-1", nil))
	req.SetPathValue("job_id", "psd-1")
	rec := httptest.NewRecorder()

	h.PSDStatus(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(raw), rec.Body.String())
}

func TestAutoTone_Success(t *testing.T) {
	h, m := newTestHandlers(t)

	raw := json.RawMessage(`{"_links":{"self":{"href":"https://image/lrService/status/tone-1"}}}`)
	m.lightroom.On("AutoTone", mock.Anything, testToken, mock.MatchedBy(func(req lightroom.AutoToneRequest) bool {
		return req.Inputs.Href == "https://example.com/in.jpg" && len(req.Outputs) == 1
	})).Return(lightroom.JobRef{ID: "tone-1", Raw: raw}, nil)

	bodyJSON := []byte(`{"inputs":{"href":"https://example.com/in.jpg","storage":"external"},"outputs":[{"href":"https://example.com/out.jpg","storage":"external","type":"image/jpeg"}]}`)

	req := withToken(httptest.NewRequest(http.MethodPost, "/auto-tone", bytes.NewReader(bodyJSON)))
	rec := httptest.NewRecorder()

	h.AutoTone(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(raw), rec.Body.String())
}

func TestLightroomStatus_MissingJobID(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := withToken(httptest.NewRequest(http.MethodGet, "/lightroom-status", nil))
	rec := httptest.NewRecorder()

	h.LightroomStatus(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "MISSING_JOB_ID", resp.Code)
}

func TestVoices_Success(t *testing.T) {
	h, m := newTestHandlers(t)

	raw := json.RawMessage(`{"voices":[{"voiceId":"v1"}]}`)
	m.audiovideo.On("Voices", mock.Anything, testToken).Return(raw, nil)

	req := withToken(httptest.NewRequest(http.MethodGet, "/available-voices", nil))
	rec := httptest.NewRecorder()

	h.Voices(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(raw), rec.Body.String())
}

func TestGenerateAvatarVideo_Success(t *testing.T) {
	h, m := newTestHandlers(t)

	raw := json.RawMessage(`{"jobId":"av-1"}`)
	m.audiovideo.On("GenerateAvatar", mock.Anything, testToken, mock.MatchedBy(func(req audiovideo.AvatarRequest) bool {
		return req.AvatarID == "avatar-1" && req.VoiceID == "voice-1" && req.Script.Text == "hello"
	})).Return(audiovideo.Submission{JobID: "av-1", Raw: raw}, nil)

	bodyJSON := []byte(`{"avatarId":"avatar-1","voiceId":"voice-1","script":{"text":"hello","mediaType":"text/plain","localeCode":"en-US"}}`)

	req := withToken(httptest.NewRequest(http.MethodPost, "/generate-avatar-video", bytes.NewReader(bodyJSON)))
	rec := httptest.NewRecorder()

	h.GenerateAvatarVideo(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(raw), rec.Body.String())
}

func TestAudioVideoStatus_Success(t *testing.T) {
	h, m := newTestHandlers(t)

	raw := json.RawMessage(`{"status":"running"}`)
	m.audiovideo.On("Status", mock.Anything, testToken, "av-9").Return(raw, nil)

	req := withToken(httptest.NewRequest(http.MethodGet, "/check-audio-video-status?job_id=av-9", nil))
	rec := httptest.NewRecorder()

	h.AudioVideoStatus(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(raw), rec.Body.String())
}

func TestPresignURL_Get(t *testing.T) {
	h, m := newTestHandlers(t)

	m.store.On("PresignGet", mock.Anything, "gallery", "photos/shot.png").Return("https://s3/signed-get", nil)

	req := httptest.NewRequest(http.MethodGet, "/get-s3-presigned-url?bucket_name=gallery&key=photos/shot.png", nil)
	rec := httptest.NewRecorder()

	h.PresignURL(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp PresignResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "https://s3/signed-get", resp.URL)
	assert.Equal(t, "photos/shot.png", resp.Key)
	m.store.AssertNotCalled(t, "PresignPut", mock.Anything, mock.Anything, mock.Anything)
}

func TestPresignURL_PutPrefixesKey(t *testing.T) {
	h, m := newTestHandlers(t)

	m.store.On("PresignPut", mock.Anything, "gallery", "altered/shot.png").Return("https://s3/signed-put", nil)

	req := httptest.NewRequest(http.MethodGet, "/get-s3-presigned-url?bucket_name=gallery&key=shot.png&method=put_object", nil)
	rec := httptest.NewRecorder()

	h.PresignURL(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp PresignResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "https://s3/signed-put", resp.URL)
	assert.Equal(t, "altered/shot.png", resp.Key)
}

func TestPresignURL_UnknownMethodFallsBackToGet(t *testing.T) {
	h, m := newTestHandlers(t)

	m.store.On("PresignGet", mock.Anything, "gallery", "shot.png").Return("https://s3/signed-get", nil)

	req := httptest.NewRequest(http.MethodGet, "/get-s3-presigned-url?bucket_name=gallery&key=shot.png&method=delete_object", nil)
	rec := httptest.NewRecorder()

	h.PresignURL(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	m.store.AssertNotCalled(t, "PresignPut", mock.Anything, mock.Anything, mock.Anything)
}

func TestPresignURL_MissingBucket(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/get-s3-presigned-url?key=shot.png", nil)
	rec := httptest.NewRecorder()

	h.PresignURL(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "MISSING_BUCKET", resp.Code)
}

func TestThumbnails_StripsPrefix(t *testing.T) {
	h, m := newTestHandlers(t)

	m.store.On("List", mock.Anything, "gallery", "thumbnails/").Return([]string{
		"thumbnails/shot-1.png",
		"thumbnails/shot-2.png",
	}, nil)
	m.store.On("PresignGet", mock.Anything, "gallery", "thumbnails/shot-1.png").Return("https://s3/thumb-1", nil)
	m.store.On("PresignGet", mock.Anything, "gallery", "thumbnails/shot-2.png").Return("https://s3/thumb-2", nil)

	req := httptest.NewRequest(http.MethodGet, "/get-s3-thumbnails?bucket_name=gallery&prefix=thumbnails/", nil)
	rec := httptest.NewRecorder()

	h.Thumbnails(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []ThumbnailEntry
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	require.Len(t, resp, 2)
	assert.Equal(t, ThumbnailEntry{URL: "https://s3/thumb-1", Name: "shot-1.png"}, resp[0])
	assert.Equal(t, ThumbnailEntry{URL: "https://s3/thumb-2", Name: "shot-2.png"}, resp[1])
}

func TestThumbnails_SkipsFailedPresign(t *testing.T) {
	h, m := newTestHandlers(t)

	m.store.On("List", mock.Anything, "gallery", "thumbnails/").Return([]string{
		"thumbnails/good.png",
		"thumbnails/bad.png",
	}, nil)
	m.store.On("PresignGet", mock.Anything, "gallery", "thumbnails/good.png").Return("https://s3/good", nil)
	m.store.On("PresignGet", mock.Anything, "gallery", "thumbnails/bad.png").Return("", assert.AnError)

	req := httptest.NewRequest(http.MethodGet, "/get-s3-thumbnails?bucket_name=gallery&prefix=thumbnails/", nil)
	rec := httptest.NewRecorder()

	h.Thumbnails(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []ThumbnailEntry
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	require.Len(t, resp, 1)
	assert.Equal(t, "good.png", resp[0].Name)
}

func TestProxyImage_Success(t *testing.T) {
	h, m := newTestHandlers(t, WithDefaultBucket("proxy-bucket"))

	m.store.On("Get", mock.Anything, "proxy-bucket", "render.jpg").Return(storage.Object{
		Body:        io.NopCloser(strings.NewReader("jpeg-bytes")),
		ContentType: "image/jpeg",
		Length:      10,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/proxy-s3-image?image_name=render.jpg", nil)
	rec := httptest.NewRecorder()

	h.ProxyImage(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "inline; filename=render.jpg", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "jpeg-bytes", rec.Body.String())
}

func TestProxyImage_DefaultContentType(t *testing.T) {
	h, m := newTestHandlers(t, WithDefaultBucket("proxy-bucket"))

	m.store.On("Get", mock.Anything, "proxy-bucket", "render.png").Return(storage.Object{
		Body: io.NopCloser(strings.NewReader("png-bytes")),
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/proxy-s3-image?image_name=render.png", nil)
	rec := httptest.NewRecorder()

	h.ProxyImage(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestVideoNames_FiltersByExtension(t *testing.T) {
	h, m := newTestHandlers(t)

	m.store.On("List", mock.Anything, "media", "videos/").Return([]string{
		"videos/clip-1.mp4",
		"videos/cover.png",
		"videos/clip-2.mp4",
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/get-s3-video-names?bucket_name=media&prefix=videos/", nil)
	rec := httptest.NewRecorder()

	h.VideoNames(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []string
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, []string{"videos/clip-1.mp4", "videos/clip-2.mp4"}, resp)
}

func TestGenerateThumbnails_EmptyBucket(t *testing.T) {
	h, m := newTestHandlers(t)

	m.store.On("List", mock.Anything, "gallery", "").Return([]string{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/generate-thumbnails?bucket_name=gallery", nil)
	rec := httptest.NewRecorder()

	h.GenerateThumbnails(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ThumbnailRunResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Generated)
}

func TestGenerateMask_Simple(t *testing.T) {
	h, _ := newTestHandlers(t)

	bodyJSON, _ := json.Marshal(MaskRequest{Width: 64, Height: 64})

	req := httptest.NewRequest(http.MethodPost, "/generate-mask", bytes.NewReader(bodyJSON))
	rec := httptest.NewRecorder()

	h.GenerateMask(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))
}

func TestGenerateMask_InvalidPercent(t *testing.T) {
	h, _ := newTestHandlers(t)

	bodyJSON, _ := json.Marshal(MaskRequest{Width: 64, Height: 64, WidthPercent: 1.5, HeightPercent: 0.5})

	req := httptest.NewRequest(http.MethodPost, "/generate-mask", bytes.NewReader(bodyJSON))
	rec := httptest.NewRecorder()

	h.GenerateMask(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestCreateWorkflowRun_Success(t *testing.T) {
	h, m := newTestHandlers(t)

	body := CreateRunRequest{
		Bucket:     "demo-bucket",
		ProductKey: "products/bottle.png",
		OutputKey:  "outputs/bottle-final.jpg",
		Prompt:     "on a marble countertop",
	}
	bodyJSON, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/workflows/product-shot", bytes.NewReader(bodyJSON))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.CreateWorkflowRun(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp RunResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "IN_QUEUE", resp.Status)
	assert.Equal(t, "demo-bucket", resp.Bucket)
	assert.Equal(t, "products/bottle.png", resp.ProductKey)

	// Verify the run exists in the repository
	created, err := m.runs.FindByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, created.ID)
}

func TestCreateWorkflowRun_DefaultBucket(t *testing.T) {
	h, _ := newTestHandlers(t, WithDefaultBucket("fallback-bucket"))

	body := CreateRunRequest{
		ProductKey: "products/bottle.png",
		OutputKey:  "outputs/bottle-final.jpg",
		Prompt:     "on a marble countertop",
	}
	bodyJSON, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPost, "/workflows/product-shot", bytes.NewReader(bodyJSON))
	rec := httptest.NewRecorder()

	h.CreateWorkflowRun(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp RunResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "fallback-bucket", resp.Bucket)
}

func TestCreateWorkflowRun_ValidationError(t *testing.T) {
	h, _ := newTestHandlers(t)

	bodyJSON, _ := json.Marshal(CreateRunRequest{ProductKey: "products/bottle.png"})

	req := httptest.NewRequest(http.MethodPost, "/workflows/product-shot", bytes.NewReader(bodyJSON))
	rec := httptest.NewRecorder()

	h.CreateWorkflowRun(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestGetWorkflowRun_Success(t *testing.T) {
	h, m := newTestHandlers(t)
	ctx := context.Background()

	run := workflow.New()
	run.Bucket = "demo-bucket"
	run.ProductKey = "products/bottle.png"
	run.OutputKey = "outputs/bottle-final.jpg"
	run.Prompt = "on a marble countertop"
	require.NoError(t, m.runs.Save(ctx, run))

	req := httptest.NewRequest(http.MethodGet, "/workflows/"+run.ID, nil)
	req.SetPathValue("id", run.ID)
	rec := httptest.NewRecorder()

	h.GetWorkflowRun(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp RunResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, run.ID, resp.ID)
	assert.Equal(t, "IN_QUEUE", resp.Status)
	assert.Equal(t, "on a marble countertop", resp.Prompt)
}

func TestGetWorkflowRun_NotFound(t *testing.T) {
	h, _ := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/workflows/nonexistent", nil)
	req.SetPathValue("id", "nonexistent")
	rec := httptest.NewRecorder()

	h.GetWorkflowRun(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "RUN_NOT_FOUND", resp.Code)
}

func TestListWorkflowRuns(t *testing.T) {
	h, m := newTestHandlers(t)
	ctx := context.Background()

	require.NoError(t, m.runs.Save(ctx, workflow.New()))
	require.NoError(t, m.runs.Save(ctx, workflow.New()))

	req := httptest.NewRequest(http.MethodGet, "/workflows", nil)
	rec := httptest.NewRecorder()

	h.ListWorkflowRuns(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []RunResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Len(t, resp, 2)
}

func TestRouter_Integration(t *testing.T) {
	h, m := newTestHandlers(t)
	logger := testLogger()

	router := NewRouter(h, logger, DefaultConfig())

	// Health endpoint
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Authenticated route without a token cookie
	req = httptest.NewRequest(http.MethodGet, "/check-status?job_id=job-1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The correlation ID generated by the middleware is relayed upstream
	m.firefly.On("ListCustomModels", mock.Anything, testToken, mock.MatchedBy(func(id string) bool {
		return id != ""
	}), 5).Return(json.RawMessage(`{"custom_models":[]}`), nil)

	req = withToken(httptest.NewRequest(http.MethodGet, "/list-custom-models?limit=5", nil))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	m.firefly.AssertExpectations(t)

	// Invalid dub body fails validation before reaching the client
	req = withToken(httptest.NewRequest(http.MethodPost, "/dub-video", strings.NewReader(`{"video":{"source":{"url":"https://example.com/v.mp4"}},"targetLocaleCodes":[]}`)))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	m.audiovideo.AssertNotCalled(t, "Dub", mock.Anything, mock.Anything, mock.Anything)

	// Workflow creation through the router
	bodyJSON, _ := json.Marshal(CreateRunRequest{
		Bucket:     "demo-bucket",
		ProductKey: "products/bottle.png",
		OutputKey:  "outputs/bottle-final.jpg",
		Prompt:     "on a marble countertop",
	})
	req = httptest.NewRequest(http.MethodPost, "/workflows/product-shot", bytes.NewReader(bodyJSON))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	var createResp RunResponse
	err := json.NewDecoder(rec.Body).Decode(&createResp)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/workflows/"+createResp.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSMiddleware(t *testing.T) {
	h, _ := newTestHandlers(t)
	logger := testLogger()

	cfg := Config{AllowedOrigins: []string{"https://example.com"}}
	router := NewRouter(h, logger, cfg)

	// Allowed origin gets echoed with credentials enabled
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	// Unknown origin gets no CORS headers
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// OPTIONS preflight
	req = httptest.NewRequest(http.MethodOptions, "/generate-image-async", nil)
	req.Header.Set("Origin", "https://example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := testLogger()

	// Create a handler that panics
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	handler := RecoveryMiddleware(logger)(panicHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	// Should not panic
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "INTERNAL_ERROR", resp.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	var captured string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = RequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := RequestIDMiddleware()(inner)

	// A new ID is generated when none is given
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, captured)
	assert.Equal(t, captured, rec.Header().Get("X-Request-ID"))

	// An incoming ID is kept
	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", "incoming-id")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "incoming-id", captured)
	assert.Equal(t, "incoming-id", rec.Header().Get("X-Request-ID"))
}
