package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	pdflib "github.com/ledongthuc/pdf"

	"github.com/dgallion1/pdfmd/internal/pdf"
)

// Ledongthuc extracts text with github.com/ledongthuc/pdf. The library has
// no resource limits of its own and follows /Kids and /Parent links without
// cycle checks, so the document structure is first checked with internal/pdf.
// Page count and output size are capped here and panics are reported as
// malformed input.
type Ledongthuc struct {
	Limits pdf.Limits
}

func (l *Ledongthuc) Extract(ctx context.Context, src Source, opts Options) (*Text, error) {
	lim := l.Limits.WithDefaults()

	data, err := readAll(src)
	if err != nil {
		return nil, err
	}
	doc, err := pdf.Open(data, lim)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	if _, err := doc.CheckPageTree(ctx, opts.MaxPages); err != nil {
		return nil, fmt.Errorf("check page tree: %w", err)
	}

	type result struct {
		text *Text
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := l.extract(ctx, src, src.Size(), opts, lim)
		done <- result{text, err}
	}()
	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Ledongthuc) extract(ctx context.Context, ra io.ReaderAt, size int64, opts Options, lim pdf.Limits) (text *Text, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = nil, fmt.Errorf("%w: ledongthuc panic: %v", ErrMalformed, r)
		}
	}()

	reader, err := pdflib.NewReader(ra, size)
	if err != nil {
		return nil, classifyLibError(err)
	}

	numPages := reader.NumPage()
	if opts.MaxPages > 0 && numPages > opts.MaxPages {
		numPages = opts.MaxPages
	}
	if numPages > lim.MaxPages {
		return nil, fmt.Errorf("%w: document has more than %d pages", ErrLimit, lim.MaxPages)
	}

	text = &Text{}
	var total int64
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		s, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		total += int64(len(s))
		if total > lim.MaxTotalBytes {
			return nil, fmt.Errorf("%w: more than %d bytes of text", ErrLimit, lim.MaxTotalBytes)
		}
		text.Pages = append(text.Pages, Page{Number: i, Lines: splitLines(s)})
	}
	return text, nil
}

func classifyLibError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, pdflib.ErrInvalidPassword), strings.Contains(msg, "encrypt"), strings.Contains(msg, "password"):
		return fmt.Errorf("%w: %v", ErrEncrypted, err)
	case strings.Contains(msg, "unsupported"):
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}
