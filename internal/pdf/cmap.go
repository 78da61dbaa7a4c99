package pdf

import (
	"unicode/utf16"
)

type codespace struct {
	n      int
	lo, hi uint32
}

type cmapKey struct {
	n    int
	code uint32
}

type bfRange struct {
	n      int
	lo, hi uint32
	base   []uint16 // destination for lo; later codes bump the last unit
	list   []string // explicit destinations, when given as an array
}

// cmap is a parsed CMap: codespace ranges plus code -> text mappings from
// bfchar and bfrange blocks.
type cmap struct {
	spaces []codespace
	chars  map[cmapKey]string
	ranges []bfRange
}

func parseCMap(data []byte, maxDepth int) (*cmap, error) {
	cm := &cmap{chars: make(map[cmapKey]string)}
	l := newLexer(data, maxDepth)
	l.refs = false
	var operands []Object
	for {
		l.skipSpace()
		if l.eof() {
			return cm, nil
		}
		obj, err := l.readObject(0)
		if err != nil {
			return nil, err
		}
		kw, ok := obj.(keyword)
		if !ok {
			operands = append(operands, obj)
			continue
		}
		switch kw {
		case "endcodespacerange":
			for i := 0; i+1 < len(operands); i += 2 {
				lo, ok1 := operands[i].(String)
				hi, ok2 := operands[i+1].(String)
				if ok1 && ok2 && len(lo) == len(hi) && len(lo) >= 1 && len(lo) <= 4 {
					cm.spaces = append(cm.spaces, codespace{n: len(lo), lo: code(lo), hi: code(hi)})
				}
			}
		case "endbfchar":
			for i := 0; i+1 < len(operands); i += 2 {
				src, ok := operands[i].(String)
				if !ok || len(src) == 0 || len(src) > 4 {
					continue
				}
				cm.chars[cmapKey{len(src), code(src)}] = destText(operands[i+1])
			}
		case "endbfrange":
			for i := 0; i+2 < len(operands); i += 3 {
				lo, ok1 := operands[i].(String)
				hi, ok2 := operands[i+1].(String)
				if !ok1 || !ok2 || len(lo) != len(hi) || len(lo) == 0 || len(lo) > 4 {
					continue
				}
				r := bfRange{n: len(lo), lo: code(lo), hi: code(hi)}
				if r.hi < r.lo {
					continue
				}
				switch dst := operands[i+2].(type) {
				case String:
					r.base = utf16Units(dst)
				case Array:
					for _, v := range dst {
						r.list = append(r.list, destText(v))
					}
				default:
					continue
				}
				cm.ranges = append(cm.ranges, r)
			}
		}
		operands = operands[:0]
	}
}

func code(s String) uint32 {
	var v uint32
	for i := 0; i < len(s); i++ {
		v = v<<8 | uint32(s[i])
	}
	return v
}

func utf16Units(s String) []uint16 {
	if len(s)%2 == 1 {
		u := make([]uint16, len(s))
		for i := 0; i < len(s); i++ {
			u[i] = uint16(s[i])
		}
		return u
	}
	u := make([]uint16, len(s)/2)
	for i := range u {
		u[i] = uint16(s[2*i])<<8 | uint16(s[2*i+1])
	}
	return u
}

func destText(o Object) string {
	switch v := o.(type) {
	case String:
		return string(utf16.Decode(utf16Units(v)))
	case Name:
		return glyphText(string(v))
	}
	return ""
}

func (cm *cmap) lookup(c uint32, n int) (string, bool) {
	if t, ok := cm.chars[cmapKey{n, c}]; ok {
		return t, true
	}
	for _, r := range cm.ranges {
		if r.n != n || c < r.lo || c > r.hi {
			continue
		}
		off := c - r.lo
		if r.list != nil {
			if int(off) < len(r.list) {
				return r.list[off], true
			}
			return "", false
		}
		if len(r.base) == 0 {
			return "", false
		}
		u := append([]uint16(nil), r.base...)
		u[len(u)-1] += uint16(off)
		return string(utf16.Decode(u)), true
	}
	return "", false
}

// split breaks s into character codes using the codespace ranges, falling
// back to fallback-byte codes where no range matches.
func (cm *cmap) split(s String, fallback int) []cmapKey {
	var out []cmapKey
	for i := 0; i < len(s); {
		n := 0
		for _, sp := range cm.spaces {
			if i+sp.n > len(s) {
				continue
			}
			c := code(s[i : i+sp.n])
			if c >= sp.lo && c <= sp.hi {
				n = sp.n
				break
			}
		}
		if n == 0 {
			n = fallback
			if i+n > len(s) {
				n = len(s) - i
			}
		}
		out = append(out, cmapKey{n: n, code: code(s[i : i+n])})
		i += n
	}
	return out
}
