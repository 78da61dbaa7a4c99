package pdf

import (
	"context"
	"math"
	"strings"
)

// PageText is the text of one page, one entry per visual line. An empty
// entry marks a paragraph gap.
type PageText struct {
	Number int
	Lines  []string
}

// ExtractText interprets the content streams of the first maxPages pages
// (all pages when maxPages is 0) and returns their text in page order.
func (d *Document) ExtractText(ctx context.Context, maxPages int) (pages []PageText, err error) {
	defer recoverMalformed(&err)

	list, err := d.pages(ctx, maxPages)
	if err != nil {
		return nil, err
	}
	pages = make([]PageText, 0, len(list))
	for i, p := range list {
		data, err := d.contents(p)
		if err != nil {
			return nil, err
		}
		in := &interp{d: d, ctx: ctx, forms: make(map[*Stream]bool)}
		in.gs.ctm, in.gs.hscale = identity, 1
		if err := in.run(data, p.resources, 0); err != nil {
			return nil, err
		}
		pages = append(pages, PageText{Number: i + 1, Lines: in.w.finish()})
	}
	return pages, nil
}

type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m × n.
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) translate(tx, ty float64) matrix {
	m[4] += tx*m[0] + ty*m[2]
	m[5] += tx*m[1] + ty*m[3]
	return m
}

type gstate struct {
	ctm       matrix
	font      *font
	size      float64
	charSpace float64
	wordSpace float64
	hscale    float64
	leading   float64
	rise      float64
}

type interp struct {
	d     *Document
	ctx   context.Context
	gs    gstate
	stack []gstate
	tm    matrix // text matrix
	tlm   matrix // text line matrix
	w     textWriter
	forms map[*Stream]bool
}

func (in *interp) run(data []byte, res Dict, depth int) error {
	if depth > in.d.lim.MaxDepth {
		return limitf("form XObjects nested deeper than %d", in.d.lim.MaxDepth)
	}
	l := newLexer(data, in.d.lim.MaxDepth)
	l.refs = false
	var args []Object
	for {
		l.skipSpace()
		if l.eof() {
			return nil
		}
		obj, err := l.readObject(0)
		if err != nil {
			// Trailing garbage ends the stream rather than the document.
			if err == errEndOfData {
				return nil
			}
			return err
		}
		op, ok := obj.(keyword)
		if !ok {
			args = append(args, obj)
			continue
		}
		if err := in.d.budget.op(); err != nil {
			return err
		}
		if in.d.budget.ops%1024 == 0 {
			if err := checkContext(in.ctx); err != nil {
				return err
			}
		}
		if op == "BI" {
			skipInlineImage(l)
			args = args[:0]
			continue
		}
		if err := in.do(op, args, res, depth); err != nil {
			return err
		}
		args = args[:0]
	}
}

func (in *interp) do(op keyword, args []Object, res Dict, depth int) error {
	gs := &in.gs
	switch op {
	case "q":
		if len(in.stack) >= 4096 {
			return limitf("graphics state stack deeper than 4096")
		}
		in.stack = append(in.stack, *gs)
	case "Q":
		if n := len(in.stack); n > 0 {
			*gs = in.stack[n-1]
			in.stack = in.stack[:n-1]
		}
	case "cm":
		if m, ok := matrixArgs(args); ok {
			gs.ctm = m.mul(gs.ctm)
		}
	case "BT":
		in.tm, in.tlm = identity, identity
	case "ET":
	case "Tf":
		if len(args) < 2 {
			return nil
		}
		name, _ := args[0].(Name)
		f, err := in.d.loadFont(res, name)
		if err != nil {
			return err
		}
		gs.font = f
		gs.size, _ = number(args[1])
	case "Tc":
		gs.charSpace = numArg(args, 0)
	case "Tw":
		gs.wordSpace = numArg(args, 0)
	case "Tz":
		gs.hscale = numArg(args, 0) / 100
	case "TL":
		gs.leading = numArg(args, 0)
	case "Ts":
		gs.rise = numArg(args, 0)
	case "Td":
		in.moveLine(numArg(args, 0), numArg(args, 1))
	case "TD":
		gs.leading = -numArg(args, 1)
		in.moveLine(numArg(args, 0), numArg(args, 1))
	case "Tm":
		if m, ok := matrixArgs(args); ok {
			in.tm, in.tlm = m, m
		}
	case "T*":
		in.moveLine(0, -gs.leading)
	case "Tj":
		if len(args) > 0 {
			s, _ := args[len(args)-1].(String)
			in.show(s)
		}
	case "'":
		in.moveLine(0, -gs.leading)
		if len(args) > 0 {
			s, _ := args[len(args)-1].(String)
			in.show(s)
		}
	case "\"":
		if len(args) >= 3 {
			gs.wordSpace = numArg(args, 0)
			gs.charSpace = numArg(args, 1)
			in.moveLine(0, -gs.leading)
			s, _ := args[2].(String)
			in.show(s)
		}
	case "TJ":
		if len(args) == 0 {
			return nil
		}
		arr, _ := args[len(args)-1].(Array)
		for _, v := range arr {
			switch x := v.(type) {
			case String:
				in.show(x)
			case int64, float64:
				n, _ := number(x)
				in.tm = in.tm.translate(-n/1000*gs.size*gs.hscale, 0)
			}
		}
	case "Do":
		if len(args) == 0 {
			return nil
		}
		name, _ := args[0].(Name)
		return in.form(name, res, depth)
	}
	return nil
}

func (in *interp) moveLine(tx, ty float64) {
	in.tlm = in.tlm.translate(tx, ty)
	in.tm = in.tlm
}

// show emits the text of s at the current position and advances the text
// matrix past it.
func (in *interp) show(s String) {
	gs := &in.gs
	f := gs.font
	if f == nil {
		f = fallbackFont
	}
	trm := matrix{gs.size * gs.hscale, 0, 0, gs.size, 0, gs.rise}.mul(in.tm).mul(gs.ctm)
	size := math.Hypot(trm[2], trm[3])
	x, y := trm[4], trm[5]

	var b strings.Builder
	for _, g := range f.decode(s) {
		b.WriteString(g.text)
		adv := g.width*gs.size + gs.charSpace
		if g.space {
			adv += gs.wordSpace
		}
		in.tm = in.tm.translate(adv*gs.hscale, 0)
	}
	end := matrix{1, 0, 0, 1, 0, gs.rise}.mul(in.tm).mul(gs.ctm)
	in.w.add(b.String(), x, y, end[4], size)
}

func (in *interp) form(name Name, res Dict, depth int) error {
	xobjs, err := in.d.getDict(res, "XObject")
	if err != nil || xobjs == nil {
		return err
	}
	o, err := in.d.get(xobjs, name)
	if err != nil {
		return err
	}
	st, ok := o.(*Stream)
	if !ok || st.Dict["Subtype"] != Name("Form") {
		return nil
	}
	if in.forms[st] {
		return limitf("form XObject /%s draws itself", name)
	}
	data, err := in.d.decode(st)
	if err != nil {
		return err
	}
	formRes, err := in.d.getDict(st.Dict, "Resources")
	if err != nil {
		return err
	}
	if formRes == nil {
		formRes = res
	}

	in.forms[st] = true
	defer delete(in.forms, st)
	saved, savedStack := in.gs, len(in.stack)
	if m, err := in.d.getArray(st.Dict, "Matrix"); err == nil {
		if fm, ok := matrixArgs([]Object(m)); ok {
			in.gs.ctm = fm.mul(in.gs.ctm)
		}
	}
	err = in.run(data, formRes, depth+1)
	in.gs, in.stack = saved, in.stack[:savedStack]
	return err
}

// skipInlineImage moves l past the "ID ... EI" payload of an inline image.
func skipInlineImage(l *lexer) {
	for !l.eof() {
		tok, err := l.next()
		if err != nil {
			return
		}
		if tok == keyword("ID") {
			break
		}
	}
	l.pos++ // single white-space after ID
	for l.pos+2 <= len(l.buf) {
		if l.buf[l.pos] == 'E' && l.buf[l.pos+1] == 'I' &&
			(l.pos == 0 || isWhite(l.buf[l.pos-1])) &&
			(l.pos+2 == len(l.buf) || !isRegular(l.buf[l.pos+2])) {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.pos = len(l.buf)
}

func numArg(args []Object, i int) float64 {
	if i >= len(args) {
		return 0
	}
	v, _ := number(args[i])
	return v
}

func matrixArgs(args []Object) (matrix, bool) {
	if len(args) < 6 {
		return matrix{}, false
	}
	var m matrix
	for i := range m {
		v, ok := number(args[len(args)-6+i])
		if !ok {
			return matrix{}, false
		}
		m[i] = v
	}
	return m, true
}

// textWriter turns positioned text runs into lines.
type textWriter struct {
	lines   []string
	cur     strings.Builder
	started bool
	lastY   float64
	lastEnd float64
}

func (w *textWriter) add(text string, x, y, end, size float64) {
	if text == "" {
		w.lastEnd = end
		return
	}
	if size <= 0 {
		size = 1
	}
	if !w.started {
		w.started = true
	} else {
		dy := math.Abs(y - w.lastY)
		switch {
		case dy > 0.5*size:
			w.flush()
			if dy > 1.5*size {
				w.lines = append(w.lines, "")
			}
		case x-w.lastEnd > 0.15*size:
			line := w.cur.String()
			if !strings.HasSuffix(line, " ") && !strings.HasPrefix(text, " ") {
				w.cur.WriteByte(' ')
			}
		}
	}
	w.cur.WriteString(text)
	w.lastY = y
	w.lastEnd = end
}

func (w *textWriter) flush() {
	w.lines = append(w.lines, w.cur.String())
	w.cur.Reset()
}

func (w *textWriter) finish() []string {
	if w.started {
		w.flush()
	}
	return w.lines
}
