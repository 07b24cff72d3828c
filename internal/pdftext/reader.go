// Package pdftext extracts the text layer from PDF documents.
package pdftext

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// ErrNoTextLayer means the document has no extractable text. Image-only
// scans need OCR, which is out of scope; both extraction strategies require
// text, so callers treat this as a hard failure.
var ErrNoTextLayer = errors.New("no extractable text layer in document")

// Reader extracts text from PDF files page by page
type Reader struct {
	logger *zap.Logger
}

// NewReader creates a new PDF text reader
func NewReader(logger *zap.Logger) *Reader {
	return &Reader{logger: logger}
}

// ExtractText returns the concatenated text of all pages
func (r *Reader) ExtractText(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var b strings.Builder
	for page := 0; page < doc.NumPage(); page++ {
		text, err := doc.Text(page)
		if err != nil {
			r.logger.Warn("Failed to extract page text",
				zap.String("path", path),
				zap.Int("page", page),
				zap.Error(err))
			continue
		}
		if strings.TrimSpace(text) != "" {
			b.WriteString(text)
			b.WriteString("\n\n")
		}
	}

	full := b.String()
	if strings.TrimSpace(full) == "" {
		return "", ErrNoTextLayer
	}

	r.logger.Debug("Extracted document text",
		zap.String("path", path),
		zap.Int("length", len(full)))
	return full, nil
}
