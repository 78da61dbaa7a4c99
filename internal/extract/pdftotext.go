package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Pdftotext shells out to poppler's pdftotext. It needs the document on
// disk, so it only accepts sources that expose a file path.
type Pdftotext struct {
	Binary string
}

// PathSource is a Source backed by a file on disk.
type PathSource interface {
	Source
	Path() string
}

// NewPdftotext locates the binary, defaulting to "pdftotext" on PATH.
func NewPdftotext(binary string) (*Pdftotext, error) {
	if binary == "" {
		binary = "pdftotext"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("pdftotext not available: %w", err)
	}
	return &Pdftotext{Binary: path}, nil
}

func (p *Pdftotext) Extract(ctx context.Context, src Source, opts Options) (*Text, error) {
	ps, ok := src.(PathSource)
	if !ok || ps.Path() == "" {
		return nil, fmt.Errorf("%w: pdftotext needs a disk-staged document", ErrUnsupported)
	}

	args := []string{"-enc", "UTF-8"}
	if opts.MaxPages > 0 {
		args = append(args, "-l", strconv.Itoa(opts.MaxPages))
	}
	args = append(args, ps.Path(), "-")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Binary, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classifyPdftotext(err, stderr.String())
	}

	text := &Text{}
	// pdftotext ends every page with a form feed.
	pages := strings.Split(strings.TrimSuffix(string(out), "\f"), "\f")
	for i, page := range pages {
		if page == "" && i == len(pages)-1 && len(pages) > 1 {
			continue
		}
		text.Pages = append(text.Pages, Page{Number: i + 1, Lines: splitLines(page)})
	}
	return text, nil
}

// classifyPdftotext maps poppler exit codes: 1 open failure, 3 permission
// (encryption) failure.
func classifyPdftotext(err error, stderr string) error {
	var exitErr *exec.ExitError
	msg := strings.TrimSpace(stderr)
	if errors.As(err, &exitErr) {
		lower := strings.ToLower(msg)
		switch {
		case exitErr.ExitCode() == 3, strings.Contains(lower, "password"), strings.Contains(lower, "encrypt"):
			return fmt.Errorf("%w: pdftotext: %s", ErrEncrypted, msg)
		case exitErr.ExitCode() == 1:
			return fmt.Errorf("%w: pdftotext: %s", ErrMalformed, msg)
		}
	}
	return fmt.Errorf("pdftotext: %w", err)
}
