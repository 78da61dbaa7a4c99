package pdf

import (
	"context"
	"errors"
)

type page struct {
	dict      Dict
	resources Dict
}

var errStopWalk = errors.New("stop page walk")

// pages returns up to n pages in document order. A tree holding more than
// MaxPages pages fails with ErrLimit unless n stops the walk first.
func (d *Document) pages(ctx context.Context, n int) ([]page, error) {
	root, err := d.catalog()
	if err != nil {
		return nil, err
	}
	ref, _ := root["Pages"].(Ref)
	tree, err := d.getDict(root, "Pages")
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, malformedf("catalog has no /Pages tree")
	}

	w := &pageWalk{d: d, ctx: ctx, want: n, visited: make(map[Ref]bool)}
	if ref != (Ref{}) {
		w.visited[ref] = true
	}
	if err := w.walk(tree, nil, 0); err != nil && err != errStopWalk {
		return nil, err
	}
	return w.out, nil
}

type pageWalk struct {
	d       *Document
	ctx     context.Context
	want    int
	visited map[Ref]bool
	out     []page
}

func (w *pageWalk) walk(node Dict, inherited Dict, depth int) error {
	if depth > w.d.lim.MaxDepth {
		return limitf("page tree deeper than %d", w.d.lim.MaxDepth)
	}
	if err := checkContext(w.ctx); err != nil {
		return err
	}
	res, err := w.d.getDict(node, "Resources")
	if err != nil {
		return err
	}
	if res == nil {
		res = inherited
	}

	typ, _ := node["Type"].(Name)
	kids, err := w.d.getArray(node, "Kids")
	if err != nil {
		return err
	}
	if typ == "Page" || (typ != "Pages" && kids == nil) {
		if len(w.out) >= w.d.lim.MaxPages {
			return limitf("document has more than %d pages", w.d.lim.MaxPages)
		}
		w.out = append(w.out, page{dict: node, resources: res})
		if w.want > 0 && len(w.out) >= w.want {
			return errStopWalk
		}
		return nil
	}

	for _, k := range kids {
		if r, ok := k.(Ref); ok {
			if w.visited[r] {
				return limitf("page tree revisits object %d", r.Num)
			}
			w.visited[r] = true
		}
		o, err := w.d.resolve(k)
		if err != nil {
			return err
		}
		kid, ok := o.(Dict)
		if !ok {
			continue
		}
		if err := w.walk(kid, res, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// CheckPageTree walks the page tree and the /Parent chain of every page it
// reaches without interpreting any content. It returns the number of pages
// found, stopping after maxPages when maxPages is positive. Cycles and
// over-deep chains fail with ErrLimit.
func (d *Document) CheckPageTree(ctx context.Context, maxPages int) (n int, err error) {
	defer recoverMalformed(&err)

	list, err := d.pages(ctx, maxPages)
	if err != nil {
		return 0, err
	}
	for _, p := range list {
		if err := d.checkParents(p.dict); err != nil {
			return 0, err
		}
	}
	return len(list), nil
}

func (d *Document) checkParents(node Dict) error {
	seen := make(map[Ref]bool)
	for depth := 0; node != nil; depth++ {
		if depth > d.lim.MaxDepth {
			return limitf("page /Parent chain deeper than %d", d.lim.MaxDepth)
		}
		if r, ok := node["Parent"].(Ref); ok {
			if seen[r] {
				return limitf("page /Parent chain revisits object %d", r.Num)
			}
			seen[r] = true
		}
		parent, err := d.getDict(node, "Parent")
		if err != nil {
			return err
		}
		node = parent
	}
	return nil
}

// contents returns the concatenated, decoded content streams of p.
func (d *Document) contents(p page) ([]byte, error) {
	o, err := d.get(p.dict, "Contents")
	if err != nil {
		return nil, err
	}
	var streams []*Stream
	switch c := o.(type) {
	case *Stream:
		streams = []*Stream{c}
	case Array:
		for _, v := range c {
			v, err := d.resolve(v)
			if err != nil {
				return nil, err
			}
			if st, ok := v.(*Stream); ok {
				streams = append(streams, st)
			}
		}
	}
	var out []byte
	for _, st := range streams {
		data, err := d.decode(st)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
		out = append(out, '\n')
	}
	return out, nil
}
