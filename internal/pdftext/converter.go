// Package pdftext converts regulation PDFs into markdown text.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// scannedNote is written when a PDF carries no embedded text, which on the
// registry usually means a scanned document. OCR is out of scope.
const scannedNote = "# No embedded text found\n\n" +
	"This PDF appears to be scanned or image-based. OCR is disabled in this service.\n"

// Converter extracts embedded text from PDF bytes and renders a simple
// markdown document with one section per page.
type Converter struct{}

// New returns a Converter.
func New() *Converter {
	return &Converter{}
}

// Convert renders the PDF as markdown. The error is non-retryable: a
// malformed PDF will not parse on a second attempt.
func (c *Converter) Convert(ctx context.Context, data []byte) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty pdf input")
	}

	// The pdf reader panics on some malformed xref tables instead of
	// returning an error.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("# Dokumen Peraturan\n\n")
	pages := 0
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(pageText) == "" {
			continue
		}
		fmt.Fprintf(&sb, "## Halaman %d\n\n", i)
		sb.WriteString(strings.TrimSpace(pageText))
		sb.WriteString("\n\n---\n\n")
		pages++
	}

	if pages == 0 {
		return scannedNote, nil
	}
	return sb.String(), nil
}
