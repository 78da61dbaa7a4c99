// Package staging holds uploaded documents for the duration of a single
// conversion and guarantees they are removed afterwards.
package staging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Medium selects where staged bytes live.
type Medium string

const (
	Disk   Medium = "disk"
	Memory Medium = "memory"
)

// ParseMedium validates a medium name.
func ParseMedium(s string) (Medium, error) {
	switch m := Medium(strings.ToLower(s)); m {
	case Disk, Memory:
		return m, nil
	}
	return "", fmt.Errorf("unknown staging medium: %q", s)
}

var (
	ErrEmpty  = errors.New("staging: empty document")
	ErrIO     = errors.New("staging: i/o failure")
	ErrClosed = errors.New("staging: stager closed")
)

const (
	dirPrefix = "pdfmd-"

	// A live stager keeps a marker file named <dir>.alive next to its
	// directory and refreshes its mtime every heartbeatInterval.
	aliveSuffix       = ".alive"
	heartbeatInterval = time.Minute
)

// Stager creates staged resources inside a private per-process directory.
type Stager struct {
	medium Medium
	dir    string // empty for the memory medium
	log    *slog.Logger

	mu     sync.Mutex
	live   map[string]*Resource
	closed bool

	stop     chan struct{}
	stopOnce sync.Once
}

// NewStager prepares a stager. For the disk medium a fresh directory is
// created under root (os.TempDir() when root is empty).
func NewStager(root string, medium Medium, log *slog.Logger) (*Stager, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Stager{medium: medium, log: log, live: make(map[string]*Resource), stop: make(chan struct{})}
	switch medium {
	case Memory:
	case Disk:
		if root == "" {
			root = os.TempDir()
		}
		dir, err := os.MkdirTemp(root, dirPrefix)
		if err != nil {
			return nil, fmt.Errorf("%w: create staging dir: %v", ErrIO, err)
		}
		s.dir = dir
		marker := fmt.Sprintf("pid %d\n", os.Getpid())
		if err := os.WriteFile(s.marker(), []byte(marker), 0o600); err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("%w: create staging marker: %v", ErrIO, err)
		}
		go s.heartbeat(heartbeatInterval)
	default:
		return nil, fmt.Errorf("unknown staging medium: %q", medium)
	}
	return s, nil
}

// Medium reports the configured medium.
func (s *Stager) Medium() Medium { return s.medium }

// Dir returns the per-process staging directory, or "" for memory staging.
func (s *Stager) Dir() string { return s.dir }

func (s *Stager) marker() string { return s.dir + aliveSuffix }

// heartbeat keeps the marker fresh so sweeps by sibling processes sharing
// the root leave this directory alone however long it sits idle.
func (s *Stager) heartbeat(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case now := <-t.C:
			if err := os.Chtimes(s.marker(), now, now); err != nil {
				s.log.Warn("refresh staging marker", "error", err)
			}
		}
	}
}

// Stage stores data and returns the resource holding it. declaredName is
// only kept as a sanitized hint; the storage name is always a fresh UUID.
func (s *Stager) Stage(ctx context.Context, data []byte, declaredName string) (*Resource, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Resource{
		id:     uuid.NewString(),
		name:   SanitizeName(declaredName),
		size:   int64(len(data)),
		stager: s,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	// Register before touching the medium so Close can always find it.
	s.live[res.id] = res
	s.mu.Unlock()

	if s.medium == Memory {
		res.reader = bytes.NewReader(data)
		return res, nil
	}

	if err := res.writeFile(s.dir, data); err != nil {
		res.Release()
		return nil, err
	}
	return res, nil
}

// Live returns the number of staged resources not yet released.
func (s *Stager) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Close releases every live resource and removes the staging directory.
// Stage fails with ErrClosed afterwards.
func (s *Stager) Close() error {
	s.mu.Lock()
	s.closed = true
	live := make([]*Resource, 0, len(s.live))
	for _, r := range s.live {
		live = append(live, r)
	}
	s.mu.Unlock()

	var errs []error
	for _, r := range live {
		if err := r.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.dir != "" {
		s.stopOnce.Do(func() { close(s.stop) })
		if err := os.RemoveAll(s.dir); err != nil {
			errs = append(errs, fmt.Errorf("%w: remove staging dir: %v", ErrIO, err))
		}
		if err := os.Remove(s.marker()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("%w: remove staging marker: %v", ErrIO, err))
		}
	}
	return errors.Join(errs...)
}

// SweepStale removes staging directories under root left behind by earlier
// processes. A directory is stale when its marker (or, lacking one, the
// directory itself) has not been touched within age. Ages shorter than two
// heartbeats are raised to that. It never touches this stager's own
// directory and returns how many directories it removed.
func (s *Stager) SweepStale(root string, age time.Duration) (int, error) {
	if root == "" {
		root = os.TempDir()
	}
	if age < 2*heartbeatInterval {
		age = 2 * heartbeatInterval
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s: %v", ErrIO, root, err)
	}
	cutoff := time.Now().Add(-age)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), dirPrefix) {
			continue
		}
		path := filepath.Join(root, e.Name())
		if path == s.dir {
			continue
		}
		seen, err := lastSeen(path, e)
		if err != nil || seen.After(cutoff) {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			s.log.Warn("sweep stale staging dir", "dir", e.Name(), "error", err)
			continue
		}
		if err := os.Remove(path + aliveSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("sweep stale staging marker", "dir", e.Name(), "error", err)
		}
		removed++
	}
	return removed, nil
}

// lastSeen reports when the owner of a staging directory last showed signs
// of life.
func lastSeen(path string, e fs.DirEntry) (time.Time, error) {
	if info, err := os.Stat(path + aliveSuffix); err == nil {
		return info.ModTime(), nil
	}
	info, err := e.Info()
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func (s *Stager) forget(id string) {
	s.mu.Lock()
	delete(s.live, id)
	s.mu.Unlock()
}

// Resource is one staged document. It is read-only once staged and must be
// released exactly once; extra Release calls are no-ops.
type Resource struct {
	id     string
	name   string
	path   string
	size   int64
	reader io.ReaderAt
	file   *os.File
	stager *Stager

	released   atomic.Bool
	once       sync.Once
	releaseErr error
}

func (r *Resource) writeFile(dir string, data []byte) error {
	r.path = filepath.Join(dir, r.id+".pdf")
	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("%w: create staged file: %v", ErrIO, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("%w: write staged file: %v", ErrIO, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close staged file: %v", ErrIO, err)
	}
	rf, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("%w: reopen staged file: %v", ErrIO, err)
	}
	r.file = rf
	r.reader = rf
	return nil
}

// ID is the opaque identifier of the resource.
func (r *Resource) ID() string { return r.id }

// Name is the sanitized declared file name.
func (r *Resource) Name() string { return r.name }

// Path is the staged file, or "" for memory staging.
func (r *Resource) Path() string { return r.path }

func (r *Resource) Size() int64 { return r.size }

func (r *Resource) ReadAt(p []byte, off int64) (int, error) {
	if r.released.Load() || r.reader == nil {
		return 0, fmt.Errorf("%w: resource %s already released", ErrIO, r.id)
	}
	n, err := r.reader.ReadAt(p, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("%w: read staged file: %v", ErrIO, err)
	}
	return n, err
}

// Release removes the staged bytes from the medium.
func (r *Resource) Release() error {
	r.once.Do(func() {
		r.released.Store(true)
		var errs []error
		if r.file != nil {
			if err := r.file.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if r.path != "" {
			if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
		r.stager.forget(r.id)
		if len(errs) > 0 {
			r.releaseErr = fmt.Errorf("%w: release %s: %v", ErrIO, r.id, errors.Join(errs...))
		}
	})
	return r.releaseErr
}

// WithStaged runs fn against res and releases res on every exit path,
// including a panic inside fn, which keeps propagating after the release.
// A release failure is reported when fn itself succeeded.
func WithStaged[T any](res *Resource, fn func(*Resource) (T, error)) (out T, err error) {
	defer func() {
		if relErr := res.Release(); relErr != nil && err == nil {
			var zero T
			out, err = zero, relErr
		}
	}()
	return fn(res)
}

// SanitizeName reduces a client-supplied file name to a safe base name.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "_")
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
