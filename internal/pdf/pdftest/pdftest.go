// Package pdftest builds small PDF files for tests, with correct cross
// reference offsets.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// Builder assembles numbered objects into a PDF file.
type Builder struct {
	objs map[int]string
	next int

	// Root is the catalog object number. Zero omits /Root from the trailer.
	Root int
	// TrailerExtra is appended verbatim inside the trailer dictionary.
	TrailerExtra string
}

func NewBuilder() *Builder {
	return &Builder{objs: make(map[int]string), next: 1}
}

// Reserve allocates an object number to be filled in later with Set.
func (b *Builder) Reserve() int {
	n := b.next
	b.next++
	return n
}

// Set stores the body of object n, without the "n 0 obj" wrapper.
func (b *Builder) Set(n int, body string) {
	b.objs[n] = body
}

// Add stores body as a new object and returns its number.
func (b *Builder) Add(body string) int {
	n := b.Reserve()
	b.Set(n, body)
	return n
}

// AddStream stores a stream object. dict holds extra dictionary entries;
// /Length is added automatically.
func (b *Builder) AddStream(dict string, data []byte) int {
	return b.Add(Stream(dict, data))
}

// Stream formats a stream object body.
func Stream(dict string, data []byte) string {
	return fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(data), data)
}

// Bytes renders the file with a classic xref table.
func (b *Builder) Bytes() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, b.next)
	for n := 1; n < b.next; n++ {
		body, ok := b.objs[n]
		if !ok {
			continue
		}
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", b.next)
	buf.WriteString("0000000000 65535 f \n")
	for n := 1; n < b.next; n++ {
		if offsets[n] == 0 {
			buf.WriteString("0000000000 65535 f \n")
			continue
		}
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[n])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d", b.next)
	if b.Root > 0 {
		fmt.Fprintf(&buf, " /Root %d 0 R", b.Root)
	}
	if b.TrailerExtra != "" {
		buf.WriteString(" " + b.TrailerExtra)
	}
	fmt.Fprintf(&buf, " >>\nstartxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}

// Flate compresses data with zlib.
func Flate(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

// Escape quotes s as a PDF literal string body.
func Escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// Pages adds a page tree whose pages draw the given content streams with
// font /F1 bound to fontRef, and sets Root. It returns the page object
// numbers.
func (b *Builder) Pages(fontRef int, contents ...[]byte) []int {
	catalog := b.Reserve()
	tree := b.Reserve()
	res := fmt.Sprintf("<< /Font << /F1 %d 0 R >> >>", fontRef)
	var kids []string
	var pages []int
	for _, c := range contents {
		cs := b.AddStream("", c)
		p := b.Add(fmt.Sprintf("<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Contents %d 0 R >>", tree, cs))
		kids = append(kids, fmt.Sprintf("%d 0 R", p))
		pages = append(pages, p)
	}
	b.Set(tree, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /Resources %s >>",
		strings.Join(kids, " "), len(kids), res))
	b.Set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", tree))
	b.Root = catalog
	return pages
}

// Helvetica adds a standard Type1 font object and returns its number.
func (b *Builder) Helvetica() int {
	return b.Add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
}

// TextContent returns a content stream drawing each line at 12pt, 14.4pt
// apart. An empty line leaves a paragraph-sized gap.
func TextContent(lines ...string) []byte {
	var buf bytes.Buffer
	buf.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
	for i, l := range lines {
		if i > 0 {
			buf.WriteString("0 -14.4 Td\n")
		}
		if l != "" {
			fmt.Fprintf(&buf, "(%s) Tj\n", Escape(l))
		}
	}
	buf.WriteString("ET\n")
	return buf.Bytes()
}

// TextPDF returns a complete document with one page per argument. Lines in
// a page are separated by "\n".
func TextPDF(pages ...string) []byte {
	b := NewBuilder()
	font := b.Helvetica()
	contents := make([][]byte, len(pages))
	for i, p := range pages {
		contents[i] = TextContent(strings.Split(p, "\n")...)
	}
	b.Pages(font, contents...)
	return b.Bytes()
}

// XRefStreamBytes renders the file with a compressed cross-reference stream,
// packing the listed objects into a single object stream. Packed objects
// must not be streams.
func (b *Builder) XRefStreamBytes(packed ...int) []byte {
	inStm := make(map[int]int, len(packed))
	for i, n := range packed {
		inStm[n] = i
	}
	stmNum, xrefNum := b.next, b.next+1
	size := b.next + 2

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, size)
	for n := 1; n < b.next; n++ {
		body, ok := b.objs[n]
		if _, p := inStm[n]; !ok || p {
			continue
		}
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, body)
	}

	var header, bodies bytes.Buffer
	for _, n := range packed {
		fmt.Fprintf(&header, "%d %d ", n, bodies.Len())
		bodies.WriteString(b.objs[n])
		bodies.WriteByte('\n')
	}
	first := header.Len()
	stm := Flate(append(header.Bytes(), bodies.Bytes()...))
	offsets[stmNum] = buf.Len()
	fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", stmNum,
		Stream(fmt.Sprintf("/Type /ObjStm /N %d /First %d /Filter /FlateDecode", len(packed), first), stm))

	offsets[xrefNum] = buf.Len()
	var rows bytes.Buffer
	for n := 0; n < size; n++ {
		if i, ok := inStm[n]; ok {
			rows.Write([]byte{2, byte(stmNum >> 24), byte(stmNum >> 16), byte(stmNum >> 8), byte(stmNum), byte(i >> 8), byte(i)})
			continue
		}
		if offsets[n] == 0 {
			rows.Write([]byte{0, 0, 0, 0, 0, 0xff, 0xff})
			continue
		}
		off := offsets[n]
		rows.Write([]byte{1, byte(off >> 24), byte(off >> 16), byte(off >> 8), byte(off), 0, 0})
	}
	dict := fmt.Sprintf("/Type /XRef /Size %d /W [1 4 2] /Filter /FlateDecode", size)
	if b.Root > 0 {
		dict += fmt.Sprintf(" /Root %d 0 R", b.Root)
	}
	if b.TrailerExtra != "" {
		dict += " " + b.TrailerExtra
	}
	fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", xrefNum, Stream(dict, Flate(rows.Bytes())))
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", offsets[xrefNum])
	return buf.Bytes()
}
