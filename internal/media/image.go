// Package media renders derived image assets: bucket thumbnails and the
// grayscale placement masks used by object composites.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

const (
	// DefaultThumbnailMax is the bounding box edge for generated thumbnails.
	DefaultThumbnailMax = 128

	// DefaultMaskSize is the square mask edge used when no size is given.
	DefaultMaskSize = 2048
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrInvalidPercent is returned when a mask coverage is outside (0, 1].
	ErrInvalidPercent = errors.New("invalid coverage: percent must be in (0, 1]")
)

// Thumbnail shrinks an image to fit within a maxPx square, preserving aspect
// ratio and the source format. Images already inside the box are re-encoded
// unchanged. It returns the encoded bytes and their content type.
func Thumbnail(src []byte, maxPx int) ([]byte, string, error) {
	if maxPx <= 0 {
		return nil, "", fmt.Errorf("%w: max=%d", ErrInvalidDimensions, maxPx)
	}

	img, name, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	format, err := imaging.FormatFromExtension(name)
	if err != nil {
		return nil, "", fmt.Errorf("unsupported image format %q: %w", name, err)
	}

	thumb := imaging.Fit(img, maxPx, maxPx, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, format); err != nil {
		return nil, "", fmt.Errorf("encode thumbnail: %w", err)
	}

	return buf.Bytes(), "image/" + name, nil
}

// SimpleMask renders an all-white grayscale PNG. White marks where the
// composited object may be placed, so this mask allows the full scene.
func SimpleMask(width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, width, height)
	}

	mask := image.NewGray(image.Rect(0, 0, width, height))
	for i := range mask.Pix {
		mask.Pix[i] = 255
	}

	return encodePNG(mask)
}

// CenteredMask renders a centered white rectangle on a black background,
// constraining the composited object to the given share of the scene.
func CenteredMask(width, height int, widthPercent, heightPercent float64) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, width, height)
	}
	if widthPercent <= 0 || widthPercent > 1 || heightPercent <= 0 || heightPercent > 1 {
		return nil, fmt.Errorf("%w: width=%.2f, height=%.2f", ErrInvalidPercent, widthPercent, heightPercent)
	}

	mask := image.NewGray(image.Rect(0, 0, width, height))

	objWidth := int(float64(width) * widthPercent)
	objHeight := int(float64(height) * heightPercent)
	left := (width - objWidth) / 2
	top := (height - objHeight) / 2

	draw.Draw(mask, image.Rect(left, top, left+objWidth, top+objHeight), image.White, image.Point{}, draw.Src)

	return encodePNG(mask)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode mask: %w", err)
	}
	return buf.Bytes(), nil
}
