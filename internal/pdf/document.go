package pdf

import (
	"bytes"
	"context"
	"fmt"
)

type xrefEntry struct {
	compressed bool
	offset     int64 // uncompressed: byte offset of "n g obj"
	stream     int   // compressed: object stream number
}

type objStream struct {
	data    []byte
	offsets map[int]int
}

// Document is a parsed PDF file held in memory. It is not safe for
// concurrent use; each conversion opens its own Document.
type Document struct {
	data    []byte
	lim     Limits
	budget  *budget
	xref    map[int]xrefEntry
	trailer Dict

	cache      map[Ref]Object
	resolving  map[Ref]bool
	objStreams map[int]*objStream
	fonts      map[Ref]*font
}

// Open parses the cross-reference structure and trailer of data. The
// returned Document reads objects lazily from data, which must not be
// modified afterwards.
func Open(data []byte, lim Limits) (doc *Document, err error) {
	defer recoverMalformed(&err)

	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, malformedf("missing %%PDF- header")
	}
	lim = lim.WithDefaults()
	d := &Document{
		data:       data,
		lim:        lim,
		budget:     &budget{lim: lim},
		xref:       make(map[int]xrefEntry),
		cache:      make(map[Ref]Object),
		resolving:  make(map[Ref]bool),
		objStreams: make(map[int]*objStream),
		fonts:      make(map[Ref]*font),
	}
	if err := d.readXref(); err != nil {
		return nil, err
	}
	if _, ok := d.trailer["Encrypt"]; ok {
		return nil, errorf(ErrEncrypted, "trailer references an /Encrypt dictionary")
	}
	if _, ok := d.trailer["Root"].(Ref); !ok {
		if _, ok := d.trailer["Root"].(Dict); !ok {
			return nil, malformedf("trailer has no /Root")
		}
	}
	return d, nil
}

func recoverMalformed(err *error) {
	if r := recover(); r != nil {
		*err = malformedf("parser panic: %v", r)
	}
}

func (d *Document) lexerAt(off int64) *lexer {
	l := newLexer(d.data, d.lim.MaxDepth)
	l.pos = int(off)
	return l
}

func (d *Document) startXref() (int64, error) {
	idx := bytes.LastIndex(d.data, []byte("startxref"))
	if idx < 0 {
		return 0, malformedf("startxref not found")
	}
	l := d.lexerAt(int64(idx + len("startxref")))
	tok, err := l.next()
	if err != nil {
		return 0, malformedf("startxref has no offset")
	}
	off, ok := tok.(int64)
	if !ok || off <= 0 || off >= int64(len(d.data)) {
		return 0, malformedf("startxref offset %v out of range", tok)
	}
	return off, nil
}

// maxXrefSections bounds the /Prev chain independently of its contents.
const maxXrefSections = 1024

func (d *Document) readXref() error {
	off, err := d.startXref()
	if err != nil {
		return err
	}
	seen := make(map[int64]bool)
	for {
		if seen[off] {
			return limitf("xref /Prev chain loops back to offset %d", off)
		}
		if len(seen) >= maxXrefSections {
			return limitf("more than %d xref sections", maxXrefSections)
		}
		seen[off] = true

		trailer, err := d.readXrefSection(off)
		if err != nil {
			return err
		}
		if d.trailer == nil {
			d.trailer = trailer
		}
		if xs, ok := trailer["XRefStm"].(int64); ok && !seen[xs] {
			seen[xs] = true
			if _, err := d.readXrefStream(xs); err != nil {
				return err
			}
		}
		prev, ok := trailer["Prev"].(int64)
		if !ok {
			return nil
		}
		off = prev
	}
}

func (d *Document) readXrefSection(off int64) (Dict, error) {
	if off <= 0 || off >= int64(len(d.data)) {
		return nil, malformedf("xref offset %d out of range", off)
	}
	l := d.lexerAt(off)
	l.skipSpace()
	if l.hasPrefix("xref") {
		l.pos += len("xref")
		return d.readXrefTable(l)
	}
	return d.readXrefStream(off)
}

func (d *Document) addEntry(num int, e xrefEntry) {
	if num < 0 {
		return
	}
	if _, ok := d.xref[num]; ok {
		return // newer sections are read first
	}
	d.xref[num] = e
}

func (d *Document) readXrefTable(l *lexer) (Dict, error) {
	for {
		l.skipSpace()
		if l.hasPrefix("trailer") {
			l.pos += len("trailer")
			obj, err := l.readObject(0)
			if err != nil {
				return nil, err
			}
			trailer, ok := obj.(Dict)
			if !ok {
				return nil, malformedf("trailer is not a dictionary")
			}
			return trailer, nil
		}
		startTok, err := l.next()
		if err != nil {
			return nil, malformedf("xref table has no trailer")
		}
		countTok, err := l.next()
		if err != nil {
			return nil, malformedf("truncated xref subsection header")
		}
		start, ok1 := startTok.(int64)
		count, ok2 := countTok.(int64)
		if !ok1 || !ok2 || start < 0 || count < 0 || count > int64(len(d.data)/18) {
			return nil, malformedf("bad xref subsection header %v %v", startTok, countTok)
		}
		for i := int64(0); i < count; i++ {
			offTok, err1 := l.next()
			_, err2 := l.next()
			kindTok, err3 := l.next()
			if err1 != nil || err2 != nil || err3 != nil {
				return nil, malformedf("truncated xref entry %d", start+i)
			}
			offset, ok := offTok.(int64)
			kind, _ := kindTok.(keyword)
			if !ok || (kind != "n" && kind != "f") {
				return nil, malformedf("bad xref entry for object %d", start+i)
			}
			if kind == "n" && offset > 0 {
				d.addEntry(int(start+i), xrefEntry{offset: offset})
			}
		}
	}
}

func (d *Document) readXrefStream(off int64) (Dict, error) {
	_, obj, err := d.parseIndirectAt(off)
	if err != nil {
		return nil, err
	}
	st, ok := obj.(*Stream)
	if !ok || st.Dict["Type"] != Name("XRef") {
		return nil, malformedf("offset %d is neither an xref table nor an xref stream", off)
	}
	data, err := d.decode(st)
	if err != nil {
		return nil, err
	}

	warr, _ := st.Dict["W"].(Array)
	if len(warr) != 3 {
		return nil, malformedf("xref stream /W must have three entries")
	}
	var w [3]int
	for i, v := range warr {
		n, ok := v.(int64)
		if !ok || n < 0 || n > 8 {
			return nil, malformedf("bad xref stream field width %v", v)
		}
		w[i] = int(n)
	}
	row := w[0] + w[1] + w[2]
	if row == 0 {
		return nil, malformedf("xref stream has zero-width rows")
	}

	index, _ := st.Dict["Index"].(Array)
	if index == nil {
		size, _ := st.Dict["Size"].(int64)
		index = Array{int64(0), size}
	}
	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		start, ok1 := index[i].(int64)
		count, ok2 := index[i+1].(int64)
		if !ok1 || !ok2 || start < 0 || count < 0 {
			return nil, malformedf("bad xref stream /Index")
		}
		for j := int64(0); j < count; j++ {
			if pos+row > len(data) {
				return nil, malformedf("xref stream truncated at object %d", start+j)
			}
			typ := uint64(1)
			if w[0] > 0 {
				typ = beUint(data[pos : pos+w[0]])
			}
			f2 := beUint(data[pos+w[0] : pos+w[0]+w[1]])
			pos += row
			switch typ {
			case 1:
				if f2 > 0 {
					d.addEntry(int(start+j), xrefEntry{offset: int64(f2)})
				}
			case 2:
				d.addEntry(int(start+j), xrefEntry{compressed: true, stream: int(f2)})
			}
		}
	}
	return st.Dict, nil
}

func beUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// parseIndirectAt parses "n g obj ... endobj" at off.
func (d *Document) parseIndirectAt(off int64) (Ref, Object, error) {
	if off <= 0 || off >= int64(len(d.data)) {
		return Ref{}, nil, malformedf("object offset %d out of range", off)
	}
	l := d.lexerAt(off)
	numTok, err1 := l.next()
	genTok, err2 := l.next()
	objTok, err3 := l.next()
	num, ok1 := numTok.(int64)
	gen, ok2 := genTok.(int64)
	if err1 != nil || err2 != nil || err3 != nil || !ok1 || !ok2 || objTok != keyword("obj") {
		return Ref{}, nil, malformedf("no object header at offset %d", off)
	}
	ref := Ref{Num: int(num), Gen: int(gen)}
	obj, err := l.readObject(0)
	if err != nil {
		return ref, nil, err
	}
	dict, ok := obj.(Dict)
	if !ok {
		return ref, obj, nil
	}
	save := l.pos
	l.skipSpace()
	if !l.hasPrefix("stream") {
		l.pos = save
		return ref, dict, nil
	}
	l.pos += len("stream")
	if l.pos < len(d.data) && d.data[l.pos] == '\r' {
		l.pos++
	}
	if l.pos < len(d.data) && d.data[l.pos] == '\n' {
		l.pos++
	}
	start := l.pos
	n, err := d.streamLength(dict, start)
	if err != nil {
		return ref, nil, err
	}
	return ref, &Stream{Dict: dict, Data: d.data[start : start+n]}, nil
}

func (d *Document) streamLength(dict Dict, start int) (int, error) {
	n := -1
	switch v := dict["Length"].(type) {
	case int64:
		n = int(v)
	case Ref:
		if o, err := d.resolve(v); err == nil {
			if i, ok := o.(int64); ok {
				n = int(i)
			}
		}
	}
	if n >= 0 && start+n <= len(d.data) {
		rest := bytes.TrimLeft(d.data[start+n:], "\r\n \t\f\x00")
		if bytes.HasPrefix(rest, []byte("endstream")) {
			return n, nil
		}
	}
	idx := bytes.Index(d.data[start:], []byte("endstream"))
	if idx < 0 {
		return 0, malformedf("stream at %d has no endstream", start)
	}
	end := start + idx
	if end > start && d.data[end-1] == '\n' {
		end--
	}
	if end > start && d.data[end-1] == '\r' {
		end--
	}
	return end - start, nil
}

// resolve follows references until it reaches a direct object. Missing
// objects resolve to null.
func (d *Document) resolve(o Object) (Object, error) {
	for depth := 0; ; depth++ {
		r, ok := o.(Ref)
		if !ok {
			return o, nil
		}
		if depth >= d.lim.MaxDepth {
			return nil, limitf("reference chain from object %d deeper than %d", r.Num, d.lim.MaxDepth)
		}
		var err error
		if o, err = d.load(r); err != nil {
			return nil, err
		}
	}
}

func (d *Document) load(r Ref) (Object, error) {
	if o, ok := d.cache[r]; ok {
		return o, nil
	}
	if d.resolving[r] {
		return nil, limitf("object %d %d R refers back to itself", r.Num, r.Gen)
	}
	e, ok := d.xref[r.Num]
	if !ok {
		return nil, nil
	}
	if err := d.budget.loadObject(); err != nil {
		return nil, err
	}
	d.resolving[r] = true
	defer delete(d.resolving, r)

	var obj Object
	var err error
	if e.compressed {
		obj, err = d.loadCompressed(r.Num, e.stream)
	} else {
		var got Ref
		got, obj, err = d.parseIndirectAt(e.offset)
		if err == nil && got.Num != r.Num {
			err = malformedf("xref entry for object %d points at object %d", r.Num, got.Num)
		}
	}
	if err != nil {
		return nil, err
	}
	d.cache[r] = obj
	return obj, nil
}

func (d *Document) loadCompressed(num, stream int) (Object, error) {
	s, err := d.objStream(stream)
	if err != nil {
		return nil, err
	}
	off, ok := s.offsets[num]
	if !ok {
		return nil, nil
	}
	l := newLexer(s.data, d.lim.MaxDepth)
	l.pos = off
	obj, err := l.readObject(0)
	if err != nil {
		return nil, err
	}
	if _, ok := obj.(keyword); ok {
		return nil, malformedf("object %d in object stream %d is not an object", num, stream)
	}
	return obj, nil
}

func (d *Document) objStream(num int) (*objStream, error) {
	if s, ok := d.objStreams[num]; ok {
		return s, nil
	}
	e, ok := d.xref[num]
	if !ok || e.compressed {
		return nil, malformedf("object stream %d is missing", num)
	}
	o, err := d.load(Ref{Num: num})
	if err != nil {
		return nil, err
	}
	st, ok := o.(*Stream)
	if !ok {
		return nil, malformedf("object %d is not an object stream", num)
	}
	data, err := d.decode(st)
	if err != nil {
		return nil, err
	}
	n, _ := st.Dict["N"].(int64)
	first, _ := st.Dict["First"].(int64)
	if n < 0 || first < 0 || first > int64(len(data)) || n > int64(len(data)) {
		return nil, malformedf("object stream %d has a bad header", num)
	}
	s := &objStream{data: data, offsets: make(map[int]int, n)}
	l := newLexer(data[:first], d.lim.MaxDepth)
	for i := int64(0); i < n; i++ {
		numTok, err1 := l.next()
		offTok, err2 := l.next()
		objNum, ok1 := numTok.(int64)
		objOff, ok2 := offTok.(int64)
		if err1 != nil || err2 != nil || !ok1 || !ok2 {
			return nil, malformedf("object stream %d has a truncated index", num)
		}
		if objOff >= 0 && first+objOff < int64(len(data)) {
			s.offsets[int(objNum)] = int(first + objOff)
		}
	}
	d.objStreams[num] = s
	return s, nil
}

// get returns dict[key] with references resolved.
func (d *Document) get(dict Dict, key Name) (Object, error) {
	if dict == nil {
		return nil, nil
	}
	return d.resolve(dict[key])
}

func (d *Document) getDict(dict Dict, key Name) (Dict, error) {
	o, err := d.get(dict, key)
	if err != nil {
		return nil, err
	}
	switch v := o.(type) {
	case Dict:
		return v, nil
	case *Stream:
		return v.Dict, nil
	}
	return nil, nil
}

func (d *Document) getArray(dict Dict, key Name) (Array, error) {
	o, err := d.get(dict, key)
	if err != nil {
		return nil, err
	}
	a, _ := o.(Array)
	return a, nil
}

func (d *Document) catalog() (Dict, error) {
	root, err := d.getDict(d.trailer, "Root")
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, malformedf("document catalog is missing")
	}
	return root, nil
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pdf: %w", err)
	}
	return nil
}
