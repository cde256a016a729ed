package reproduce

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RUTUPARNk/script-db/internal/logging"
	"github.com/RUTUPARNk/script-db/internal/registry"
	"github.com/RUTUPARNk/script-db/internal/snapshot"
)

type env struct {
	dir    string
	engine *snapshot.Engine
	repro  *Reproducer
}

func newEnv(t testing.TB, dir string) *env {
	clock := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	engine := snapshot.NewEngine(filepath.Join(dir, "backups"), nil, logging.Nop(),
		snapshot.WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}))
	return &env{
		dir:    dir,
		engine: engine,
		repro:  New(engine, filepath.Join(dir, "reproduced"), nil, logging.Nop()),
	}
}

func (e *env) capture(t testing.TB, entry *registry.ScriptEntry, body []byte) snapshot.Artifact {
	if err := os.MkdirAll(filepath.Dir(entry.Path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(entry.Path, body, 0o755); err != nil {
		t.Fatal(err)
	}
	art, _, err := e.engine.Capture(context.Background(), entry)
	if err != nil {
		t.Fatal(err)
	}
	return art
}

func TestRestore_RoundTrip_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("restore yields the captured bytes", prop.ForAll(
		func(content []byte) bool {
			e := newEnv(t, t.TempDir())
			entry := registry.ScriptEntry{Name: "foo", Path: filepath.Join(e.dir, "src", "foo.sh")}
			e.capture(t, &entry, content)

			out, err := e.repro.Restore(context.Background(), "foo", "", Options{})
			if err != nil {
				return false
			}
			got, err := os.ReadFile(out)
			return err == nil && bytes.Equal(got, content)
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

func TestRestore_NonLatin1FileName(t *testing.T) {
	e := newEnv(t, t.TempDir())
	entry := registry.ScriptEntry{Name: "deploy", Path: filepath.Join(e.dir, "src", "деплой.sh")}
	e.capture(t, &entry, []byte("echo deploy"))

	out, err := e.repro.Restore(context.Background(), "deploy", Latest, Options{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(e.dir, "reproduced", "deploy", "деплой.sh"), out)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "echo deploy", string(got))
}

func TestRestore_RejectsInvalidName(t *testing.T) {
	e := newEnv(t, t.TempDir())
	for _, name := range []string{"..", ".", "", "a/b", "../backups"} {
		_, err := e.repro.Restore(context.Background(), name, Latest, Options{})
		assert.ErrorIs(t, err, registry.ErrInvalidName, name)
	}
	_, err := os.Stat(filepath.Join(e.dir, "reproduced"))
	assert.True(t, os.IsNotExist(err))
}

func TestRestore_LatestByDefault(t *testing.T) {
	e := newEnv(t, t.TempDir())
	entry := registry.ScriptEntry{Name: "foo", Path: filepath.Join(e.dir, "src", "foo.sh")}
	e.capture(t, &entry, []byte("echo 1"))
	e.capture(t, &entry, []byte("echo 2"))

	out, err := e.repro.Restore(context.Background(), "foo", "", Options{})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(e.dir, "reproduced", "foo", "foo.sh"), out)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "echo 2", string(got))
}

func TestRestore_SelectedArtifact(t *testing.T) {
	e := newEnv(t, t.TempDir())
	entry := registry.ScriptEntry{Name: "foo", Path: filepath.Join(e.dir, "src", "foo.sh")}
	first := e.capture(t, &entry, []byte("echo 1"))
	e.capture(t, &entry, []byte("echo 2"))

	out, err := e.repro.Restore(context.Background(), "foo", first.ID(), Options{})
	require.NoError(t, err)
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "echo 1", string(got))
}

func TestRestore_NoArtifacts(t *testing.T) {
	e := newEnv(t, t.TempDir())

	_, err := e.repro.Restore(context.Background(), "foo", "", Options{})
	assert.ErrorIs(t, err, ErrNoArtifacts)
}

func TestRestore_DestinationConflict(t *testing.T) {
	e := newEnv(t, t.TempDir())
	entry := registry.ScriptEntry{Name: "foo", Path: filepath.Join(e.dir, "src", "foo.sh")}
	e.capture(t, &entry, []byte("echo 1"))

	out, err := e.repro.Restore(context.Background(), "foo", "", Options{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(out, []byte("local edits"), 0o644))

	_, err = e.repro.Restore(context.Background(), "foo", "", Options{})
	require.ErrorIs(t, err, ErrDestinationConflict)
	got, _ := os.ReadFile(out)
	assert.Equal(t, "local edits", string(got))

	_, err = e.repro.Restore(context.Background(), "foo", "", Options{Overwrite: true})
	require.NoError(t, err)
	got, _ = os.ReadFile(out)
	assert.Equal(t, "echo 1", string(got))
}

func TestRestore_EmptyDestinationIsReplaced(t *testing.T) {
	e := newEnv(t, t.TempDir())
	entry := registry.ScriptEntry{Name: "foo", Path: filepath.Join(e.dir, "src", "foo.sh")}
	e.capture(t, &entry, []byte("echo 1"))

	dst := filepath.Join(e.dir, "reproduced", "foo", "foo.sh")
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(dst, nil, 0o644))

	_, err := e.repro.Restore(context.Background(), "foo", "", Options{})
	require.NoError(t, err)
}

func TestRestore_ChecksumMismatch(t *testing.T) {
	e := newEnv(t, t.TempDir())
	entry := registry.ScriptEntry{Name: "foo", Path: filepath.Join(e.dir, "src", "foo.sh")}
	good := e.capture(t, &entry, []byte("echo 1"))
	other := e.capture(t, &entry, []byte("echo 2"))

	// swap payloads so the name no longer matches the content
	data, err := os.ReadFile(other.StoragePath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(good.StoragePath, data, 0o644))

	_, err = e.repro.Restore(context.Background(), "foo", good.ID(), Options{})
	require.ErrorIs(t, err, ErrChecksumMismatch)
	_, statErr := os.Stat(filepath.Join(e.dir, "reproduced", "foo", "foo.sh"))
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRestore_LeavesArtifactsAlone(t *testing.T) {
	e := newEnv(t, t.TempDir())
	entry := registry.ScriptEntry{Name: "foo", Path: filepath.Join(e.dir, "src", "foo.sh")}
	art := e.capture(t, &entry, []byte("echo 1"))
	before, err := os.ReadFile(art.StoragePath)
	require.NoError(t, err)

	_, err = e.repro.Restore(context.Background(), "foo", "", Options{})
	require.NoError(t, err)

	after, err := os.ReadFile(art.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSelect(t *testing.T) {
	mk := func(id, hash string) snapshot.Artifact {
		return snapshot.Artifact{ContentHash: hash, StoragePath: "/b/foo/" + id + ".gz"}
	}
	arts := []snapshot.Artifact{
		mk("2025-01-01T00-00-00.000000000Z-aaa1", "aaa1"),
		mk("2025-01-02T00-00-00.000000000Z-aab2", "aab2"),
		mk("2025-01-03T00-00-00.000000000Z-ccc3", "ccc3"),
	}

	got, err := Select(arts, "")
	require.NoError(t, err)
	assert.Equal(t, "ccc3", got.ContentHash)

	got, err = Select(arts, Latest)
	require.NoError(t, err)
	assert.Equal(t, "ccc3", got.ContentHash)

	got, err = Select(arts, "2025-01-02")
	require.NoError(t, err)
	assert.Equal(t, "aab2", got.ContentHash)

	got, err = Select(arts, "2025-01-01T00-00-00.000000000Z-aaa1.gz")
	require.NoError(t, err)
	assert.Equal(t, "aaa1", got.ContentHash)

	got, err = Select(arts, "ccc")
	require.NoError(t, err)
	assert.Equal(t, "ccc3", got.ContentHash)

	_, err = Select(arts, "aa")
	assert.ErrorIs(t, err, ErrAmbiguousSelector)

	_, err = Select(arts, "zzz")
	assert.ErrorIs(t, err, ErrUnknownArtifact)

	_, err = Select(nil, "")
	assert.ErrorIs(t, err, ErrNoArtifacts)
}
