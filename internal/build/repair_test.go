package build

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestRepair_FlattensNestedFolder(t *testing.T) {
	dist := t.TempDir()
	write(t, filepath.Join(dist, "tenantA", "tenantA", "index.html"), "nested")

	rep, err := Repairer{Known: []string{"tenantA"}}.Repair(dist, "tenantA")
	require.NoError(t, err)

	assert.Equal(t, "nested", read(t, filepath.Join(dist, "tenantA", "index.html")))
	assert.NoDirExists(t, filepath.Join(dist, "tenantA", "tenantA"))
	assert.Equal(t, 1, rep.Flattened)
	assert.Equal(t, 1, rep.Moved)
}

func TestRepair_RecoversStaleStaging(t *testing.T) {
	dist := t.TempDir()
	write(t, filepath.Join(dist, "tenantA", ".repair-tenantA", "parks", "left.html"), "left")
	write(t, filepath.Join(dist, "tenantA", "tenantA", "index.html"), "nested")

	rep, err := Repairer{}.Repair(dist, "tenantA")
	require.NoError(t, err)

	assert.Equal(t, "left", read(t, filepath.Join(dist, "tenantA", "parks", "left.html")))
	assert.Equal(t, "nested", read(t, filepath.Join(dist, "tenantA", "index.html")))
	assert.NoDirExists(t, filepath.Join(dist, "tenantA", ".repair-tenantA"))
	assert.NoDirExists(t, filepath.Join(dist, "tenantA", "tenantA"))
	assert.Equal(t, 2, rep.Flattened)
	assert.Empty(t, rep.Warnings)
}

func TestRepair_MergeDoesNotOverwrite(t *testing.T) {
	dist := t.TempDir()
	write(t, filepath.Join(dist, "tenantA", "index.html"), "original")
	write(t, filepath.Join(dist, "tenantA", "tenantA", "index.html"), "nested")
	write(t, filepath.Join(dist, "tenantA", "tenantA", "parks", "a.html"), "a")
	write(t, filepath.Join(dist, "tenantA", "parks", "b.html"), "b")

	rep, err := Repairer{}.Repair(dist, "tenantA")
	require.NoError(t, err)

	assert.Equal(t, "original", read(t, filepath.Join(dist, "tenantA", "index.html")))
	assert.Equal(t, "a", read(t, filepath.Join(dist, "tenantA", "parks", "a.html")))
	assert.Equal(t, "b", read(t, filepath.Join(dist, "tenantA", "parks", "b.html")))
	assert.NoDirExists(t, filepath.Join(dist, "tenantA", "tenantA"))
	assert.Equal(t, 1, rep.Dropped)
}

func TestRepair_DeepNestingAndLeaks(t *testing.T) {
	dist := t.TempDir()
	write(t, filepath.Join(dist, "a", "a", "a", "deep.html"), "deep")
	write(t, filepath.Join(dist, "a", "b", "index.html"), "leak")
	write(t, filepath.Join(dist, "a", "assets", "x.css"), "css")

	rep, err := Repairer{Known: []string{"b", "a"}}.Repair(dist, "a")
	require.NoError(t, err)

	assert.Equal(t, "deep", read(t, filepath.Join(dist, "a", "deep.html")))
	assert.NoDirExists(t, filepath.Join(dist, "a", "a"))
	assert.NoDirExists(t, filepath.Join(dist, "a", "b"))
	assert.FileExists(t, filepath.Join(dist, "a", "assets", "x.css"))
	assert.Equal(t, []string{"b"}, rep.RemovedLeaks)
	assert.Equal(t, 2, rep.Flattened)
}

func TestRepair_Idempotent(t *testing.T) {
	dist := t.TempDir()
	write(t, filepath.Join(dist, "a", "a", "index.html"), "x")
	write(t, filepath.Join(dist, "a", "b", "index.html"), "leak")

	r := Repairer{Known: []string{"a", "b"}}
	first, err := r.Repair(dist, "a")
	require.NoError(t, err)
	assert.True(t, first.Changed())

	second, err := r.Repair(dist, "a")
	require.NoError(t, err)
	assert.False(t, second.Changed())
	assert.Empty(t, second.Warnings)
}

func TestRepair_MissingOutput(t *testing.T) {
	_, err := Repairer{}.Repair(t.TempDir(), "ghost")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestKnownFromDisk(t *testing.T) {
	content := t.TempDir()
	for _, d := range []string{"dogparks", "desserts", ".git", "_drafts"} {
		require.NoError(t, os.MkdirAll(filepath.Join(content, "directories", d), 0o755))
	}
	write(t, filepath.Join(content, "directories", "README.md"), "x")

	assert.Equal(t, []string{"desserts", "dogparks"}, KnownFromDisk(content))
	assert.Nil(t, KnownFromDisk(filepath.Join(content, "missing")))
}
