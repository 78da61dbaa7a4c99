package extract

import (
	"context"
	"fmt"

	"github.com/dgallion1/pdfmd/internal/pdf"
)

// Native extracts text with the in-process parser in internal/pdf.
type Native struct {
	Limits pdf.Limits
}

func (n *Native) Extract(ctx context.Context, src Source, opts Options) (*Text, error) {
	data, err := readAll(src)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := pdf.Open(data, n.Limits)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	pages, err := doc.ExtractText(ctx, opts.MaxPages)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	text := &Text{Pages: make([]Page, len(pages))}
	for i, p := range pages {
		text.Pages[i] = Page{Number: p.Number, Lines: p.Lines}
	}
	return text, nil
}
