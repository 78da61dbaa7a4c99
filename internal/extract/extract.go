// Package extract turns a staged PDF into page-ordered lines of text using
// one of several engines.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/pdfmd/internal/pdf"
)

// Failure kinds shared by every engine.
var (
	ErrMalformed   = pdf.ErrMalformed
	ErrUnsupported = pdf.ErrUnsupported
	ErrEncrypted   = pdf.ErrEncrypted
	ErrLimit       = pdf.ErrLimit

	// ErrSourceRead means the staged bytes could not be read back.
	ErrSourceRead = errors.New("read staged document")
)

// Source is a read-only view of a staged document.
type Source interface {
	io.ReaderAt
	Size() int64
}

// Options tune a single extraction.
type Options struct {
	MaxPages int // 0 means all pages
}

// Page is the text of one page, one entry per line. An empty entry marks a
// paragraph gap.
type Page struct {
	Number int
	Lines  []string
}

// Text is the extracted text of a document in page order.
type Text struct {
	Pages []Page
}

// Extractor pulls text out of a staged PDF. Implementations never modify
// src and never retry.
type Extractor interface {
	Extract(ctx context.Context, src Source, opts Options) (*Text, error)
}

// Engines lists the names accepted by ForName.
var Engines = []string{"native", "ledongthuc", "pdftotext"}

// ForName returns the extractor registered under name.
func ForName(name string, lim pdf.Limits) (Extractor, error) {
	switch strings.ToLower(name) {
	case "", "native":
		return &Native{Limits: lim}, nil
	case "ledongthuc":
		return &Ledongthuc{Limits: lim}, nil
	case "pdftotext":
		return NewPdftotext("")
	default:
		return nil, fmt.Errorf("unknown extraction engine: %s", name)
	}
}

// readAll copies src into memory.
func readAll(src Source) ([]byte, error) {
	n := src.Size()
	if n < 0 {
		return nil, fmt.Errorf("%w: negative size", ErrSourceRead)
	}
	buf := make([]byte, n)
	m, err := src.ReadAt(buf, 0)
	if m == len(buf) {
		return buf, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("%w: %v", ErrSourceRead, err)
}

// splitLines turns engine output into lines, treating blank lines as
// paragraph gaps.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Trim(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
