package pdf

import (
	"errors"
	"strings"
	"unicode/utf16"
)

// glyph is one decoded character code.
type glyph struct {
	text  string
	width float64 // text-space advance per unit font size
	space bool    // single-byte code 32, subject to word spacing
}

type widthRange struct {
	lo, hi uint32
	w      float64
}

type font struct {
	composite bool
	enc       *[256]string // simple fonts, with /Differences applied
	toUnicode *cmap
	codes     *cmap // composite fonts with an embedded encoding CMap
	unicode   bool  // composite fonts whose codes are UTF-16 (Uni*-UCS2/UTF16)

	widths       map[uint32]float64
	ranges       []widthRange
	defaultWidth float64
	scale        float64 // glyph space to text space
}

// fallbackFont is used when a content stream selects a font the page does
// not define.
var fallbackFont = &font{enc: &standardEncoding, defaultWidth: 500, scale: 0.001}

func (f *font) width(c uint32) float64 {
	if w, ok := f.widths[c]; ok {
		return w * f.scale
	}
	for _, r := range f.ranges {
		if c >= r.lo && c <= r.hi {
			return r.w * f.scale
		}
	}
	return f.defaultWidth * f.scale
}

func (f *font) decode(s String) []glyph {
	if !f.composite {
		out := make([]glyph, 0, len(s))
		for i := 0; i < len(s); i++ {
			c := uint32(s[i])
			g := glyph{width: f.width(c), space: c == 32}
			if t, ok := f.lookupUnicode(c, 1); ok {
				g.text = t
			} else if f.enc != nil {
				g.text = f.enc[c]
			}
			out = append(out, g)
		}
		return out
	}

	var keys []cmapKey
	if f.codes != nil {
		keys = f.codes.split(s, 2)
	} else {
		for i := 0; i < len(s); i += 2 {
			if i+1 < len(s) {
				keys = append(keys, cmapKey{n: 2, code: uint32(s[i])<<8 | uint32(s[i+1])})
			} else {
				keys = append(keys, cmapKey{n: 1, code: uint32(s[i])})
			}
		}
	}
	out := make([]glyph, 0, len(keys))
	for _, k := range keys {
		g := glyph{width: f.width(k.code), space: k.n == 1 && k.code == 32}
		if t, ok := f.lookupUnicode(k.code, k.n); ok {
			g.text = t
		} else if f.unicode {
			g.text = string(utf16.Decode([]uint16{uint16(k.code)}))
		}
		out = append(out, g)
	}
	return out
}

func (f *font) lookupUnicode(c uint32, n int) (string, bool) {
	if f.toUnicode == nil {
		return "", false
	}
	return f.toUnicode.lookup(c, n)
}

// loadFont returns the font named name in the page resources, falling back
// to a standard-encoded font when it is not defined.
func (d *Document) loadFont(res Dict, name Name) (*font, error) {
	fonts, err := d.getDict(res, "Font")
	if err != nil {
		return nil, err
	}
	if fonts == nil {
		return fallbackFont, nil
	}
	ref, isRef := fonts[name].(Ref)
	if isRef {
		if f, ok := d.fonts[ref]; ok {
			return f, nil
		}
	}
	fd, err := d.getDict(fonts, name)
	if err != nil {
		return nil, err
	}
	if fd == nil {
		return fallbackFont, nil
	}
	f, err := d.buildFont(fd)
	if err != nil {
		return nil, err
	}
	if isRef {
		d.fonts[ref] = f
	}
	return f, nil
}

func (d *Document) buildFont(fd Dict) (*font, error) {
	subtype, _ := fd["Subtype"].(Name)
	f := &font{defaultWidth: 500, scale: 0.001}

	tu, err := d.toUnicode(fd)
	if err != nil {
		return nil, err
	}
	f.toUnicode = tu

	if subtype == "Type0" {
		f.composite = true
		f.defaultWidth = 1000
		if err := d.compositeEncoding(f, fd); err != nil {
			return nil, err
		}
		if err := d.cidWidths(f, fd); err != nil {
			return nil, err
		}
		return f, nil
	}

	if subtype == "Type3" {
		if m, err := d.getArray(fd, "FontMatrix"); err == nil && len(m) == 6 {
			if a, ok := number(m[0]); ok && a != 0 {
				f.scale = a
			}
		}
	}
	if err := d.simpleEncoding(f, fd, subtype); err != nil {
		return nil, err
	}
	if err := d.simpleWidths(f, fd); err != nil {
		return nil, err
	}
	return f, nil
}

// toUnicode parses the /ToUnicode CMap. A CMap that does not parse is
// ignored in favour of the font encoding; limits still fail the document.
func (d *Document) toUnicode(fd Dict) (*cmap, error) {
	o, err := d.get(fd, "ToUnicode")
	if err != nil {
		return nil, err
	}
	st, ok := o.(*Stream)
	if !ok {
		return nil, nil
	}
	data, err := d.decode(st)
	if err != nil {
		if errors.Is(err, ErrLimit) {
			return nil, err
		}
		return nil, nil
	}
	cm, err := parseCMap(data, d.lim.MaxDepth)
	if err != nil {
		if errors.Is(err, ErrLimit) {
			return nil, err
		}
		return nil, nil
	}
	return cm, nil
}

func (d *Document) compositeEncoding(f *font, fd Dict) error {
	o, err := d.get(fd, "Encoding")
	if err != nil {
		return err
	}
	switch e := o.(type) {
	case Name:
		switch {
		case e == "Identity-H" || e == "Identity-V":
		case strings.HasPrefix(string(e), "Uni") && (strings.Contains(string(e), "UCS2") || strings.Contains(string(e), "UTF16")):
			f.unicode = true
		case f.toUnicode == nil:
			return unsupportedf("predefined CMap /%s without /ToUnicode", e)
		}
	case *Stream:
		data, err := d.decode(e)
		if err != nil {
			return err
		}
		cm, err := parseCMap(data, d.lim.MaxDepth)
		if err != nil {
			return err
		}
		if len(cm.spaces) > 0 {
			f.codes = cm
		}
	case nil:
	default:
		return malformedf("Type0 font /Encoding is not a name or stream")
	}
	return nil
}

func (d *Document) cidWidths(f *font, fd Dict) error {
	desc, err := d.getArray(fd, "DescendantFonts")
	if err != nil || len(desc) == 0 {
		return err
	}
	o, err := d.resolve(desc[0])
	if err != nil {
		return err
	}
	cid, _ := o.(Dict)
	if cid == nil {
		return nil
	}
	if dw, err := d.get(cid, "DW"); err != nil {
		return err
	} else if v, ok := number(dw); ok {
		f.defaultWidth = v
	}
	w, err := d.getArray(cid, "W")
	if err != nil {
		return err
	}
	f.widths = make(map[uint32]float64)
	for i := 0; i < len(w); {
		first, ok := intOf(w[i])
		if !ok || i+1 >= len(w) {
			return nil
		}
		next, err := d.resolve(w[i+1])
		if err != nil {
			return err
		}
		if list, ok := next.(Array); ok {
			for j, v := range list {
				if width, ok := number(v); ok {
					f.widths[uint32(first)+uint32(j)] = width
				}
			}
			i += 2
			continue
		}
		last, ok1 := intOf(next)
		if i+2 >= len(w) || !ok1 {
			return nil
		}
		if width, ok := number(w[i+2]); ok && last >= first {
			f.ranges = append(f.ranges, widthRange{lo: uint32(first), hi: uint32(last), w: width})
		}
		i += 3
	}
	return nil
}

func (d *Document) simpleEncoding(f *font, fd Dict, subtype Name) error {
	base := &standardEncoding
	if subtype == "TrueType" {
		base = &winAnsiEncoding
	}
	o, err := d.get(fd, "Encoding")
	if err != nil {
		return err
	}
	var diffs Array
	switch e := o.(type) {
	case Name:
		if enc, ok := namedEncoding(e); ok {
			base = enc
		}
	case Dict:
		if n, ok := e["BaseEncoding"].(Name); ok {
			if enc, ok := namedEncoding(n); ok {
				base = enc
			}
		}
		if diffs, err = d.getArray(e, "Differences"); err != nil {
			return err
		}
	}
	if diffs == nil {
		f.enc = base
		return nil
	}
	enc := *base
	code := -1
	for _, v := range diffs {
		v, err := d.resolve(v)
		if err != nil {
			return err
		}
		switch x := v.(type) {
		case int64:
			code = int(x)
		case Name:
			if code >= 0 && code < 256 {
				enc[code] = glyphText(string(x))
				code++
			}
		}
	}
	f.enc = &enc
	return nil
}

func (d *Document) simpleWidths(f *font, fd Dict) error {
	desc, err := d.getDict(fd, "FontDescriptor")
	if err != nil {
		return err
	}
	if mw, ok := number(desc["MissingWidth"]); ok && mw > 0 {
		f.defaultWidth = mw
	}
	first, _ := intOf(fd["FirstChar"])
	widths, err := d.getArray(fd, "Widths")
	if err != nil || widths == nil {
		return err
	}
	f.widths = make(map[uint32]float64, len(widths))
	for i, v := range widths {
		v, err := d.resolve(v)
		if err != nil {
			return err
		}
		if w, ok := number(v); ok {
			f.widths[uint32(first)+uint32(i)] = w
		}
	}
	return nil
}

func number(o Object) (float64, bool) {
	switch v := o.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func intOf(o Object) (int64, bool) {
	switch v := o.(type) {
	case int64:
		return v, v >= 0
	case float64:
		return int64(v), v >= 0
	}
	return 0, false
}
