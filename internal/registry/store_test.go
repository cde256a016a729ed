package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RUTUPARNk/script-db/internal/fs"
	"github.com/RUTUPARNk/script-db/internal/logging"
)

func openStore(t *testing.T, filesystem fs.FS) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scripts.json")
	s, err := Open(path, filesystem, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	s := openStore(t, nil)

	reg, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, reg)
}

func TestSaveLoad(t *testing.T) {
	s := openStore(t, nil)
	when := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	reg := Registry{
		"foo": {Name: "foo", Path: "/tmp/foo.sh", Description: "prints", LastBackupHash: "abc", LastBackupTime: &when},
		"bar": {Name: "bar", Path: "/tmp/bar.sh", Pending: true},
	}
	require.NoError(t, s.Save(reg))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, reg, got)
}

func TestSave_DocumentLayout(t *testing.T) {
	s := openStore(t, nil)
	require.NoError(t, s.Save(Registry{"foo": {Name: "foo", Path: "/tmp/foo.sh"}}))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `{"foo":{"name":"foo","path":"/tmp/foo.sh","description":"","pending":false}}`, string(raw))
}

func TestLoad_Corrupt(t *testing.T) {
	s := openStore(t, nil)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"foo": {`), 0o644))

	_, err := s.Load()
	assert.ErrorIs(t, err, ErrCorruptRegistry)
}

func TestLoad_LegacyList(t *testing.T) {
	s := openStore(t, nil)
	legacy := `[
    {"name": "foo", "path": "/tmp/foo.sh", "description": "", "pending_backup": true},
    {"name": "bar", "path": "/tmp/bar.sh", "description": "x"}
]`
	require.NoError(t, os.WriteFile(s.Path(), []byte(legacy), 0o644))

	reg, err := s.Load()
	require.NoError(t, err)
	require.Len(t, reg, 2)
	assert.True(t, reg["foo"].Pending)
	assert.False(t, reg["bar"].Pending)
	assert.Equal(t, []string{"foo"}, reg.Pending())
}

func TestUpdate_CorruptFallsBackToEmpty(t *testing.T) {
	s := openStore(t, nil)
	require.NoError(t, os.WriteFile(s.Path(), []byte("not json"), 0o644))

	require.NoError(t, s.Upsert(ScriptEntry{Name: "foo", Path: "/tmp/foo.sh"}))

	reg, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, reg, 1)

	moved, err := filepath.Glob(s.Path() + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, moved, 1)
	raw, err := os.ReadFile(moved[0])
	require.NoError(t, err)
	assert.Equal(t, "not json", string(raw))
}

func TestList_CorruptReadsEmpty(t *testing.T) {
	s := openStore(t, nil)
	require.NoError(t, os.WriteFile(s.Path(), []byte("[1,"), 0o644))

	entries, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

var errInterrupted = errors.New("interrupted")

// interruptedFS lets the real atomic writer start, then cuts the payload
// short and fails, as if the process died mid-save.
type interruptedFS struct {
	fs.FS
}

func (f interruptedFS) WriteAtomic(ctx context.Context, path string, perm os.FileMode, write func(io.Writer) error) error {
	return f.FS.WriteAtomic(ctx, path, perm, func(w io.Writer) error {
		_ = write(&truncatingWriter{w: w, left: 16})
		return errInterrupted
	})
}

type truncatingWriter struct {
	w    io.Writer
	left int
}

func (t *truncatingWriter) Write(p []byte) (int, error) {
	if len(p) > t.left {
		n, _ := t.w.Write(p[:t.left])
		t.left = 0
		return n, errInterrupted
	}
	t.left -= len(p)
	return t.w.Write(p)
}

func TestSave_InterruptedKeepsPriorDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scripts.json")

	good, err := Open(path, nil, logging.Nop())
	require.NoError(t, err)
	require.NoError(t, good.Upsert(ScriptEntry{Name: "foo", Path: "/tmp/foo.sh"}))
	require.NoError(t, good.Close())

	broken, err := Open(path, interruptedFS{FS: fs.New()}, logging.Nop())
	require.NoError(t, err)
	defer broken.Close()

	err = broken.Upsert(ScriptEntry{Name: "bar", Path: "/tmp/bar.sh"})
	require.ErrorIs(t, err, errInterrupted)

	reg, err := broken.Load()
	require.NoError(t, err)
	assert.Equal(t, Registry{"foo": {Name: "foo", Path: "/tmp/foo.sh"}}, reg)

	leftovers, err := filepath.Glob(filepath.Join(dir, ".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestInsert_Duplicate(t *testing.T) {
	s := openStore(t, nil)
	require.NoError(t, s.Insert(ScriptEntry{Name: "foo", Path: "/a"}))

	err := s.Insert(ScriptEntry{Name: "foo", Path: "/b"})
	assert.ErrorIs(t, err, ErrExists)

	e, err := s.Get("foo")
	require.NoError(t, err)
	assert.Equal(t, "/a", e.Path)
}

func TestRemove(t *testing.T) {
	s := openStore(t, nil)
	require.NoError(t, s.Upsert(ScriptEntry{Name: "foo"}))

	require.NoError(t, s.Remove("foo"))
	assert.ErrorIs(t, s.Remove("foo"), ErrNotFound)

	_, err := s.Get("foo")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_ErrorSkipsSave(t *testing.T) {
	s := openStore(t, nil)
	boom := errors.New("boom")

	err := s.Update(func(reg Registry) error {
		reg["foo"] = ScriptEntry{Name: "foo"}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, statErr := os.Stat(s.Path())
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestUpdate_ConcurrentWritersKeepEveryUpdate(t *testing.T) {
	s := openStore(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Upsert(ScriptEntry{Name: fmt.Sprintf("s%02d", i)}))
		}(i)
	}
	wg.Wait()

	entries, err := s.List()
	require.NoError(t, err)
	assert.Len(t, entries, 20)
	assert.Equal(t, "s00", entries[0].Name)
}

func TestValidateName(t *testing.T) {
	for _, bad := range []string{"", "  ", ".", "..", "a/b", `a\b`} {
		assert.ErrorIs(t, ValidateName(bad), ErrInvalidName, bad)
	}
	assert.NoError(t, ValidateName("deploy-db"))
}
