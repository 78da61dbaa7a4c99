package pdf

import (
	"bytes"
	"strconv"
)

// Object is one of: nil (null), bool, int64, float64, Name, String, Array,
// Dict, *Stream or Ref. The lexer additionally produces keyword values for
// operators and structural tokens.
type Object any

type (
	Name   string
	String string
	Array  []Object
	Dict   map[Name]Object
)

// Ref is an indirect reference ("12 0 R").
type Ref struct {
	Num, Gen int
}

// Stream is a stream object. Data is the raw, still-encoded payload.
type Stream struct {
	Dict Dict
	Data []byte
}

type keyword string

var errEndOfData = malformedf("unexpected end of data")

type lexer struct {
	buf      []byte
	pos      int
	maxDepth int
	refs     bool // recognise "n g R" references
}

func newLexer(buf []byte, maxDepth int) *lexer {
	return &lexer{buf: buf, maxDepth: maxDepth, refs: true}
}

func isWhite(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool { return !isWhite(c) && !isDelim(c) }

func (l *lexer) eof() bool { return l.pos >= len(l.buf) }

func (l *lexer) skipSpace() {
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		if isWhite(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.buf) && l.buf[l.pos] != '\n' && l.buf[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

func (l *lexer) hasPrefix(s string) bool {
	return bytes.HasPrefix(l.buf[l.pos:], []byte(s))
}

// next returns the next primitive token.
func (l *lexer) next() (Object, error) {
	l.skipSpace()
	if l.eof() {
		return nil, errEndOfData
	}
	c := l.buf[l.pos]
	switch c {
	case '(':
		return l.readLiteral()
	case '<':
		if l.pos+1 < len(l.buf) && l.buf[l.pos+1] == '<' {
			l.pos += 2
			return keyword("<<"), nil
		}
		return l.readHex()
	case '>':
		if l.pos+1 < len(l.buf) && l.buf[l.pos+1] == '>' {
			l.pos += 2
			return keyword(">>"), nil
		}
		l.pos++
		return nil, malformedf("unexpected '>' at %d", l.pos-1)
	case '[', ']', '{', '}':
		l.pos++
		return keyword(string(c)), nil
	case '/':
		return l.readName(), nil
	case ')':
		l.pos++
		return nil, malformedf("unbalanced ')' at %d", l.pos-1)
	}

	start := l.pos
	for l.pos < len(l.buf) && isRegular(l.buf[l.pos]) {
		l.pos++
	}
	return atom(string(l.buf[start:l.pos])), nil
}

func atom(tok string) Object {
	switch tok {
	case "true":
		return true
	case "false":
		return false
	}
	switch tok[0] {
	case '+', '-', '.', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
	default:
		return keyword(tok)
	}
	if bytes.ContainsAny([]byte(tok), ".eE") {
		if f, err := strconv.ParseFloat(tok, 64); err == nil {
			return f
		}
		return float64(0)
	}
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return f
	}
	return float64(0)
}

func (l *lexer) readName() Name {
	l.pos++ // '/'
	var out []byte
	for l.pos < len(l.buf) && isRegular(l.buf[l.pos]) {
		c := l.buf[l.pos]
		if c == '#' && l.pos+2 < len(l.buf) {
			if v, ok := unhex2(l.buf[l.pos+1], l.buf[l.pos+2]); ok {
				out = append(out, v)
				l.pos += 3
				continue
			}
		}
		out = append(out, c)
		l.pos++
	}
	return Name(out)
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func unhex2(a, b byte) (byte, bool) {
	x, ok1 := unhex(a)
	y, ok2 := unhex(b)
	return x<<4 | y, ok1 && ok2
}

func (l *lexer) readHex() (Object, error) {
	start := l.pos
	l.pos++ // '<'
	var out []byte
	var hi byte
	half := false
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		l.pos++
		if c == '>' {
			if half {
				out = append(out, hi<<4)
			}
			return String(out), nil
		}
		if isWhite(c) {
			continue
		}
		v, ok := unhex(c)
		if !ok {
			return nil, malformedf("bad hex string at %d", start)
		}
		if half {
			out = append(out, hi<<4|v)
			half = false
		} else {
			hi = v
			half = true
		}
	}
	return nil, malformedf("unterminated hex string at %d", start)
}

func (l *lexer) readLiteral() (Object, error) {
	start := l.pos
	l.pos++ // '('
	var out []byte
	depth := 1
	for l.pos < len(l.buf) {
		c := l.buf[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return String(out), nil
			}
			out = append(out, c)
		case '\r':
			if l.pos < len(l.buf) && l.buf[l.pos] == '\n' {
				l.pos++
			}
			out = append(out, '\n')
		case '\\':
			if l.pos >= len(l.buf) {
				continue
			}
			e := l.buf[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r':
				if l.pos < len(l.buf) && l.buf[l.pos] == '\n' {
					l.pos++
				}
			case '\n':
			case '0', '1', '2', '3', '4', '5', '6', '7':
				v := int(e - '0')
				for i := 0; i < 2 && l.pos < len(l.buf); i++ {
					d := l.buf[l.pos]
					if d < '0' || d > '7' {
						break
					}
					v = v*8 + int(d-'0')
					l.pos++
				}
				out = append(out, byte(v))
			default:
				out = append(out, e)
			}
		default:
			out = append(out, c)
		}
	}
	return nil, malformedf("unterminated string at %d", start)
}

// readObject reads one complete object, composing arrays, dictionaries and
// references from primitive tokens. Keywords are returned as-is.
func (l *lexer) readObject(depth int) (Object, error) {
	if depth > l.maxDepth {
		return nil, limitf("objects nested deeper than %d", l.maxDepth)
	}
	tok, err := l.next()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case keyword:
		switch t {
		case "[":
			return l.readArray(depth)
		case "<<":
			return l.readDict(depth)
		case "null":
			return nil, nil
		}
		return t, nil
	case int64:
		if l.refs && t >= 0 {
			if ref, ok := l.tryRef(t); ok {
				return ref, nil
			}
		}
		return t, nil
	}
	return tok, nil
}

func (l *lexer) tryRef(num int64) (Ref, bool) {
	save := l.pos
	gen, err := l.next()
	if g, ok := gen.(int64); err == nil && ok && g >= 0 {
		kw, err := l.next()
		if k, ok := kw.(keyword); err == nil && ok && k == "R" {
			return Ref{Num: int(num), Gen: int(g)}, true
		}
	}
	l.pos = save
	return Ref{}, false
}

func (l *lexer) readArray(depth int) (Object, error) {
	var arr Array
	for {
		l.skipSpace()
		if l.eof() {
			return nil, errEndOfData
		}
		if l.buf[l.pos] == ']' {
			l.pos++
			return arr, nil
		}
		o, err := l.readObject(depth + 1)
		if err != nil {
			return nil, err
		}
		arr = append(arr, o)
	}
}

func (l *lexer) readDict(depth int) (Object, error) {
	d := Dict{}
	for {
		l.skipSpace()
		if l.eof() {
			return nil, errEndOfData
		}
		if l.hasPrefix(">>") {
			l.pos += 2
			return d, nil
		}
		k, err := l.next()
		if err != nil {
			return nil, err
		}
		key, ok := k.(Name)
		if !ok {
			return nil, malformedf("dictionary key is not a name at %d", l.pos)
		}
		v, err := l.readObject(depth + 1)
		if err != nil {
			return nil, err
		}
		if _, isKw := v.(keyword); isKw {
			return nil, malformedf("dictionary value for /%s is not an object", key)
		}
		d[key] = v
	}
}
