package staging

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDiskStager(t *testing.T) (*Stager, string) {
	t.Helper()
	root := t.TempDir()
	s, err := NewStager(root, Disk, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, root
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestStageDiskUsesOpaqueName(t *testing.T) {
	s, _ := newDiskStager(t)
	res, err := s.Stage(context.Background(), []byte("%PDF-1.4 data"), "../../etc/passwd")
	require.NoError(t, err)
	defer res.Release()

	assert.Equal(t, s.Dir(), filepath.Dir(res.Path()))
	assert.Equal(t, res.ID()+".pdf", filepath.Base(res.Path()))
	assert.NotContains(t, res.Path(), "passwd")
	assert.Equal(t, "passwd", res.Name())

	info, err := os.Stat(res.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	buf := make([]byte, res.Size())
	_, err = res.ReadAt(buf, 0)
	if err != nil {
		require.ErrorIs(t, err, io.EOF)
	}
	assert.Equal(t, "%PDF-1.4 data", string(buf))
	assert.Equal(t, 1, s.Live())
}

func TestReleaseIsIdempotent(t *testing.T) {
	s, _ := newDiskStager(t)
	res, err := s.Stage(context.Background(), []byte("x"), "a.pdf")
	require.NoError(t, err)

	require.NoError(t, res.Release())
	require.NoError(t, res.Release())
	assert.Equal(t, 0, s.Live())
	assert.Empty(t, dirEntries(t, s.Dir()))

	_, err = res.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrIO)
}

func TestStageEmpty(t *testing.T) {
	s, _ := newDiskStager(t)
	_, err := s.Stage(context.Background(), nil, "a.pdf")
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Equal(t, 0, s.Live())
	assert.Empty(t, dirEntries(t, s.Dir()))
}

func TestStageMemory(t *testing.T) {
	s, err := NewStager("", Memory, nil)
	require.NoError(t, err)
	res, err := s.Stage(context.Background(), []byte("hello"), "a.pdf")
	require.NoError(t, err)
	assert.Empty(t, res.Path())

	buf := make([]byte, 5)
	n, _ := res.ReadAt(buf, 0)
	assert.Equal(t, 5, n)
	assert.Equal(t, 1, s.Live())
	require.NoError(t, res.Release())
	assert.Equal(t, 0, s.Live())
}

func TestStageCanceled(t *testing.T) {
	s, _ := newDiskStager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Stage(ctx, []byte("x"), "a.pdf")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Live())
}

func TestStageWriteFailure(t *testing.T) {
	s, _ := newDiskStager(t)
	require.NoError(t, os.RemoveAll(s.Dir()))

	_, err := s.Stage(context.Background(), []byte("x"), "a.pdf")
	assert.ErrorIs(t, err, ErrIO)
	assert.Equal(t, 0, s.Live())
}

func TestWithStagedReleasesOnEveryPath(t *testing.T) {
	s, _ := newDiskStager(t)
	ctx := context.Background()

	res, _ := s.Stage(ctx, []byte("x"), "ok.pdf")
	got, err := WithStaged(res, func(r *Resource) (string, error) { return "done", nil })
	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, 0, s.Live())

	boom := errors.New("boom")
	res, _ = s.Stage(ctx, []byte("x"), "fail.pdf")
	_, err = WithStaged(res, func(r *Resource) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Live())

	res, _ = s.Stage(ctx, []byte("x"), "panic.pdf")
	assert.PanicsWithValue(t, "parser exploded", func() {
		WithStaged(res, func(r *Resource) (string, error) { panic("parser exploded") })
	})
	assert.Equal(t, 0, s.Live())
	assert.Empty(t, dirEntries(t, s.Dir()))
}

func TestCloseRemovesEverything(t *testing.T) {
	root := t.TempDir()
	s, err := NewStager(root, Disk, nil)
	require.NoError(t, err)
	_, err = s.Stage(context.Background(), []byte("x"), "a.pdf")
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.Equal(t, 0, s.Live())
	assert.Empty(t, dirEntries(t, root))

	_, err = s.Stage(context.Background(), []byte("x"), "b.pdf")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSweepStale(t *testing.T) {
	s, root := newDiskStager(t)
	old := filepath.Join(root, dirPrefix+"old")
	fresh := filepath.Join(root, dirPrefix+"fresh")
	other := filepath.Join(root, "unrelated")
	for _, d := range []string{old, fresh, other} {
		require.NoError(t, os.Mkdir(d, 0o700))
	}
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))
	require.NoError(t, os.Chtimes(s.Dir(), past, past))

	n, err := s.SweepStale(root, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	names := dirEntries(t, root)
	assert.NotContains(t, names, filepath.Base(old))
	assert.Contains(t, names, filepath.Base(fresh))
	assert.Contains(t, names, "unrelated")
	assert.Contains(t, names, filepath.Base(s.Dir()))
}

func TestSweepSparesIdleSibling(t *testing.T) {
	root := t.TempDir()
	a, err := NewStager(root, Disk, nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := NewStager(root, Disk, nil)
	require.NoError(t, err)
	defer b.Close()

	// a has been idle for longer than the sweep age.
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(a.Dir(), past, past))

	n, err := b.SweepStale(root, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	res, err := a.Stage(context.Background(), []byte("%PDF-1.4"), "a.pdf")
	require.NoError(t, err)
	require.NoError(t, res.Release())
}

func TestSweepRemovesDeadSibling(t *testing.T) {
	root := t.TempDir()
	dead, err := NewStager(root, Disk, nil)
	require.NoError(t, err)
	defer dead.Close()
	live, err := NewStager(root, Disk, nil)
	require.NoError(t, err)
	defer live.Close()

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(dead.Dir(), past, past))
	require.NoError(t, os.Chtimes(dead.marker(), past, past))

	n, err := live.SweepStale(root, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	names := dirEntries(t, root)
	assert.NotContains(t, names, filepath.Base(dead.Dir()))
	assert.NotContains(t, names, filepath.Base(dead.marker()))
	assert.Contains(t, names, filepath.Base(live.Dir()))
}

func TestSanitizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\doc.pdf`, "doc.pdf"},
		{"..", "_"},
		{"", "unnamed"},
		{"/", "unnamed"},
		{"a\x00b\n.pdf", "ab.pdf"},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseMedium(t *testing.T) {
	m, err := ParseMedium("DISK")
	require.NoError(t, err)
	assert.Equal(t, Disk, m)
	_, err = ParseMedium("tape")
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "tape"))
}
