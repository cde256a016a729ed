package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RUTUPARNk/script-db/internal/logging"
	"github.com/RUTUPARNk/script-db/internal/registry"
)

// stepClock advances one second per call so artifact names never collide.
func stepClock() func() time.Time {
	t := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(filepath.Join(t.TempDir(), "backups"), nil, logging.Nop(), WithClock(stepClock()))
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "foo.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func TestCapture_WritesArtifact(t *testing.T) {
	e := newEngine(t)
	entry := registry.ScriptEntry{Name: "foo", Path: writeScript(t, "echo 1"), Pending: true}

	art, created, err := e.Capture(context.Background(), &entry)
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, "foo", art.ScriptName)
	assert.Equal(t, filepath.Join(e.Root(), "foo"), filepath.Dir(art.StoragePath))
	assert.Equal(t, art.ContentHash, entry.LastBackupHash)
	require.NotNil(t, entry.LastBackupTime)
	assert.True(t, entry.LastBackupTime.Equal(art.Timestamp))
	assert.False(t, entry.Pending)

	got, err := Read(art)
	require.NoError(t, err)
	assert.Equal(t, "echo 1", string(got.Data))
	assert.Equal(t, "foo.sh", got.OrigName)
}

func TestCapture_NonLatin1FileName(t *testing.T) {
	e := newEngine(t)
	for _, name := range []string{"деплой.sh", "备份.py", "run-🚀.sh", "100%-café.sh"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(path, []byte("echo "+name), 0o755))
			entry := registry.ScriptEntry{Name: "n", Path: path}

			art, created, err := e.Capture(context.Background(), &entry)
			require.NoError(t, err)
			assert.True(t, created)
			assert.False(t, entry.Pending)

			got, err := Read(art)
			require.NoError(t, err)
			assert.Equal(t, name, got.OrigName)
			assert.Equal(t, "echo "+name, string(got.Data))
		})
	}
}

func TestCapture_UnchangedContentIsIdempotent(t *testing.T) {
	e := newEngine(t)
	entry := registry.ScriptEntry{Name: "foo", Path: writeScript(t, "echo 1")}

	first, created, err := e.Capture(context.Background(), &entry)
	require.NoError(t, err)
	require.True(t, created)

	entry.Pending = true
	second, created, err := e.Capture(context.Background(), &entry)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)
	assert.False(t, entry.Pending)

	arts, err := e.List("foo")
	require.NoError(t, err)
	assert.Len(t, arts, 1)
}

func TestCapture_ChangedContentAddsArtifact(t *testing.T) {
	e := newEngine(t)
	path := writeScript(t, "echo 1")
	entry := registry.ScriptEntry{Name: "foo", Path: path}

	first, _, err := e.Capture(context.Background(), &entry)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("echo 2"), 0o755))
	second, created, err := e.Capture(context.Background(), &entry)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ContentHash, second.ContentHash)

	latest, ok, err := e.Latest("foo")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, latest)
}

func TestCapture_MissingArtifactIsRewritten(t *testing.T) {
	e := newEngine(t)
	entry := registry.ScriptEntry{Name: "foo", Path: writeScript(t, "echo 1")}

	first, _, err := e.Capture(context.Background(), &entry)
	require.NoError(t, err)
	require.NoError(t, os.Remove(first.StoragePath))

	_, created, err := e.Capture(context.Background(), &entry)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestCapture_SourceUnreadable(t *testing.T) {
	e := newEngine(t)
	entry := registry.ScriptEntry{Name: "foo", Path: filepath.Join(t.TempDir(), "gone.sh")}

	_, _, err := e.Capture(context.Background(), &entry)
	require.ErrorIs(t, err, ErrSourceUnreadable)
	assert.True(t, entry.Pending)
	assert.Empty(t, entry.LastBackupHash)

	arts, err := e.List("foo")
	require.NoError(t, err)
	assert.Empty(t, arts)
}

func TestList_IgnoresForeignFiles(t *testing.T) {
	e := newEngine(t)
	entry := registry.ScriptEntry{Name: "foo", Path: writeScript(t, "echo 1")}
	_, _, err := e.Capture(context.Background(), &entry)
	require.NoError(t, err)

	dir := e.Dir("foo")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp-123"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.sh.gz"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	arts, err := e.List("foo")
	require.NoError(t, err)
	assert.Len(t, arts, 1)
}

func TestList_NoDirectory(t *testing.T) {
	e := newEngine(t)
	arts, err := e.List("nobody")
	require.NoError(t, err)
	assert.Empty(t, arts)

	_, ok, err := e.Latest("nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRename(t *testing.T) {
	e := newEngine(t)
	entry := registry.ScriptEntry{Name: "foo", Path: writeScript(t, "echo 1")}
	_, _, err := e.Capture(context.Background(), &entry)
	require.NoError(t, err)

	require.NoError(t, e.Rename(context.Background(), "foo", "bar"))

	arts, err := e.List("bar")
	require.NoError(t, err)
	assert.Len(t, arts, 1)

	arts, err = e.List("foo")
	require.NoError(t, err)
	assert.Empty(t, arts)

	// nothing to move
	require.NoError(t, e.Rename(context.Background(), "foo", "baz"))
}

func TestRename_RefusesMerge(t *testing.T) {
	e := newEngine(t)
	for _, name := range []string{"foo", "bar"} {
		entry := registry.ScriptEntry{Name: name, Path: writeScript(t, "echo "+name)}
		_, _, err := e.Capture(context.Background(), &entry)
		require.NoError(t, err)
	}

	assert.Error(t, e.Rename(context.Background(), "foo", "bar"))
}
