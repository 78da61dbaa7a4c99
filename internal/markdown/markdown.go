// Package markdown shapes extracted text into the returned artifact.
package markdown

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/dgallion1/pdfmd/internal/extract"
)

// Render joins the pages of text into Markdown. Line breaks are kept, runs
// of blank lines collapse to one, and pages are separated by a blank line.
// Render is a pure function of its input.
func Render(text extract.Text) string {
	var out []string
	blank := true // suppresses leading blank lines
	for _, page := range text.Pages {
		if len(out) > 0 && !blank {
			out = append(out, "")
			blank = true
		}
		for _, line := range page.Lines {
			line = cleanLine(line)
			if line == "" {
				if !blank {
					out = append(out, "")
					blank = true
				}
				continue
			}
			out = append(out, line)
			blank = false
		}
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func cleanLine(line string) string {
	line = strings.Map(func(r rune) rune {
		if r != '\t' && unicode.IsControl(r) {
			return -1
		}
		return r
	}, line)
	return strings.TrimRightFunc(line, unicode.IsSpace)
}

// ArtifactName derives the download name from the declared upload name.
func ArtifactName(declared string) string {
	name := filepath.Base(strings.ReplaceAll(declared, "\\", "/"))
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '"' || r == '/' {
			return -1
		}
		return r
	}, name)
	if strings.Trim(name, ". ") == "" {
		return "converted.md"
	}
	return name + ".md"
}
