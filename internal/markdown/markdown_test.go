package markdown

import (
	"bytes"
	"strings"
	"testing"

	"github.com/yuin/goldmark"

	"github.com/dgallion1/pdfmd/internal/extract"
)

func pages(p ...[]string) extract.Text {
	var t extract.Text
	for i, lines := range p {
		t.Pages = append(t.Pages, extract.Page{Number: i + 1, Lines: lines})
	}
	return t
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		in   extract.Text
		want string
	}{
		{"empty", extract.Text{}, ""},
		{"single line", pages([]string{"Hello World"}), "Hello World"},
		{"trailing spaces", pages([]string{"a  ", "b\t"}), "a\nb"},
		{"blank runs collapse", pages([]string{"", "a", "", "  ", "", "b", ""}), "a\n\nb"},
		{"pages separated", pages([]string{"one"}, []string{"two"}), "one\n\ntwo"},
		{"empty page skipped", pages([]string{"one"}, nil, []string{"", "three"}), "one\n\nthree"},
		{"control characters", pages([]string{"a\x00b\x07c\td"}), "abc\td"},
		{"unicode kept", pages([]string{"café ﬁ 😀"}), "café ﬁ 😀"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.in); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	in := pages([]string{"a", "", "b"}, []string{"c"})
	if Render(in) != Render(in) {
		t.Fatal("Render is not deterministic")
	}
}

func TestRenderParagraphsParseAsMarkdown(t *testing.T) {
	md := Render(pages([]string{"First paragraph", "continues here", "", "Second paragraph"}, []string{"Third"}))

	var html bytes.Buffer
	if err := goldmark.Convert([]byte(md), &html); err != nil {
		t.Fatalf("goldmark: %v", err)
	}
	if n := strings.Count(html.String(), "<p>"); n != 3 {
		t.Fatalf("expected 3 paragraphs, got %d in %q", n, html.String())
	}
	if !strings.Contains(html.String(), "First paragraph\ncontinues here") {
		t.Errorf("expected soft line break to be kept, got %q", html.String())
	}
}

func TestArtifactName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"report.pdf", "report.md"},
		{"Quarterly Report.PDF", "Quarterly Report.md"},
		{"archive.tar.pdf", "archive.tar.md"},
		{"../../secret.pdf", "secret.md"},
		{`C:\docs\scan.pdf`, "scan.md"},
		{"noext", "noext.md"},
		{"", "converted.md"},
		{".pdf", "converted.md"},
		{`quo"te.pdf`, "quote.md"},
	}
	for _, tt := range tests {
		if got := ArtifactName(tt.in); got != tt.want {
			t.Errorf("ArtifactName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
