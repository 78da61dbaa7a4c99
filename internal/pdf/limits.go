package pdf

// Limits bounds the work a single document may cause.
type Limits struct {
	MaxObjects     int   // indirect objects loaded
	MaxDepth       int   // nesting of arrays/dicts, reference chains, form XObjects
	MaxStreamBytes int64 // decoded size of one stream
	MaxTotalBytes  int64 // decoded size of all streams in the document
	MaxPages       int
	MaxOperations  int // content stream operators across all pages
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxObjects:     200000,
		MaxDepth:       64,
		MaxStreamBytes: 64 << 20,
		MaxTotalBytes:  256 << 20,
		MaxPages:       5000,
		MaxOperations:  5000000,
	}
}

// WithDefaults replaces every unset or negative limit with its default.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.MaxObjects <= 0 {
		l.MaxObjects = d.MaxObjects
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = d.MaxDepth
	}
	if l.MaxStreamBytes <= 0 {
		l.MaxStreamBytes = d.MaxStreamBytes
	}
	if l.MaxTotalBytes <= 0 {
		l.MaxTotalBytes = d.MaxTotalBytes
	}
	if l.MaxPages <= 0 {
		l.MaxPages = d.MaxPages
	}
	if l.MaxOperations <= 0 {
		l.MaxOperations = d.MaxOperations
	}
	return l
}

// budget tracks consumption against Limits for one document.
type budget struct {
	lim     Limits
	objects int
	decoded int64
	ops     int
}

func (b *budget) loadObject() error {
	b.objects++
	if b.objects > b.lim.MaxObjects {
		return limitf("more than %d objects loaded", b.lim.MaxObjects)
	}
	return nil
}

// streamAllowance returns how many decoded bytes the next stream may produce.
func (b *budget) streamAllowance() int64 {
	left := b.lim.MaxTotalBytes - b.decoded
	if left > b.lim.MaxStreamBytes {
		left = b.lim.MaxStreamBytes
	}
	if left < 0 {
		left = 0
	}
	return left
}

func (b *budget) consume(n int) {
	b.decoded += int64(n)
}

func (b *budget) op() error {
	b.ops++
	if b.ops > b.lim.MaxOperations {
		return limitf("more than %d content operators", b.lim.MaxOperations)
	}
	return nil
}
