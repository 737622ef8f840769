// Package pdftext extracts plain text from PDF pricelists.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrNoText is returned when a PDF decodes but carries no extractable text,
	// typically a scanned document.
	ErrNoText = errors.New("pdf contains no extractable text")
	// ErrMalformed wraps decoder failures.
	ErrMalformed = errors.New("malformed pdf")
)

// Document is the extracted text, one entry per page.
type Document struct {
	Pages []string
}

// Text joins all pages.
func (d Document) Text() string {
	return strings.Join(d.Pages, "\n")
}

// Extract reads every page of the PDF held in data.
func Extract(ctx context.Context, data []byte) (Document, error) {
	return ExtractReader(ctx, bytes.NewReader(data), int64(len(data)))
}

// ExtractReader reads every page of the PDF available through r. The decoder
// panics on some corrupt inputs; those panics are returned as ErrMalformed.
func ExtractReader(ctx context.Context, r io.ReaderAt, size int64) (doc Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			doc = Document{}
			err = fmt.Errorf("%w: %v", ErrMalformed, rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var total int
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return Document{}, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			return Document{}, fmt.Errorf("pdftext: page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		total += len(text)
		doc.Pages = append(doc.Pages, text)
	}

	if total == 0 {
		return Document{}, ErrNoText
	}
	return doc, nil
}
