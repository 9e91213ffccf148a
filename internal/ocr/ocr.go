// Package ocr extracts printed text from receipt images.
package ocr

import (
	"context"
	"errors"
)

// TextLine is one recognized line of text. The bounding box is present when
// the engine reports one: eight numbers, corner coordinates clockwise from
// the top left.
type TextLine struct {
	Text        string
	BoundingBox []float64
}

// Texts returns just the text of each line, preserving reading order.
func Texts(lines []TextLine) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = line.Text
	}
	return out
}

// Engine defines the interface for text recognition operations
type Engine interface {
	// Recognize returns the text lines found in the image, in reading order
	Recognize(ctx context.Context, imageData []byte) ([]TextLine, error)
	// Close closes the engine and releases resources
	Close() error
}

var (
	// ErrNoOperationLocation means the Read service accepted the image but
	// did not say where to poll for the result.
	ErrNoOperationLocation = errors.New("ocr: no operation location returned")

	// ErrJobFailed means the Read service reported the analysis failed.
	ErrJobFailed = errors.New("ocr: read operation failed")

	// ErrTimeout means the operation did not finish within the poll budget.
	ErrTimeout = errors.New("ocr: read operation timed out")
)
