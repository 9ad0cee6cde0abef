package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	c, err := Load(path)
	assert.Error(t, err)
	require.NotNil(t, c, "an empty cache is still usable")
	assert.Equal(t, 0, c.Len())
}

func TestLoadOutdatedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":0,"packages":{"a":{}}}`), 0644))

	c, err := Load(path)
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".itemx", "cache.json")
	out := filepath.Join(dir, "article_item.go")
	require.NoError(t, os.WriteFile(out, []byte("package scrape\n"), 0644))

	entry := Entry{SourceHash: "s1", ConfigHash: "c1", Generator: "1.0.0", Outputs: []string{out}}

	c := New(path)
	c.Record(dir, entry)
	require.NoError(t, c.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	got, ok := reloaded.Get(dir)
	require.True(t, ok)
	assert.Equal(t, entry, got)
	assert.True(t, reloaded.Fresh(dir, entry))
}

func TestFresh(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "article_item.go")
	require.NoError(t, os.WriteFile(out, []byte("package scrape\n"), 0644))

	entry := Entry{SourceHash: "s1", ConfigHash: "c1", Generator: "1.0.0", Outputs: []string{out}}
	c := New("")
	c.Record(dir, entry)

	assert.True(t, c.Fresh(dir, entry))
	assert.False(t, c.Fresh("other", entry), "unknown package")

	changed := entry
	changed.SourceHash = "s2"
	assert.False(t, c.Fresh(dir, changed), "source changed")

	changed = entry
	changed.ConfigHash = "c2"
	assert.False(t, c.Fresh(dir, changed), "config changed")

	changed = entry
	changed.Generator = "1.1.0"
	assert.False(t, c.Fresh(dir, changed), "generator upgraded")

	require.NoError(t, os.Remove(out))
	assert.False(t, c.Fresh(dir, entry), "output deleted")

	c.Forget(dir)
	_, ok := c.Get(dir)
	assert.False(t, ok)
}

func TestSaveWithoutPathIsNoop(t *testing.T) {
	c := New("")
	c.Record("dir", Entry{})
	assert.NoError(t, c.Save())
}

func TestHashFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.go")
	b := filepath.Join(dir, "b.go")
	require.NoError(t, os.WriteFile(a, []byte("package p\n"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("package p\n\ntype B struct{}\n"), 0644))

	first, err := HashFiles([]string{a, b})
	require.NoError(t, err)
	second, err := HashFiles([]string{b, a})
	require.NoError(t, err)
	assert.Equal(t, first, second, "order does not matter")
	assert.Len(t, first, 64)

	require.NoError(t, os.WriteFile(b, []byte("package p\n\ntype B struct{ X int }\n"), 0644))
	third, err := HashFiles([]string{a, b})
	require.NoError(t, err)
	assert.NotEqual(t, first, third)

	_, err = HashFiles([]string{filepath.Join(dir, "missing.go")})
	assert.Error(t, err)
}

func TestHashValue(t *testing.T) {
	type settings struct {
		Suffix   string
		Register bool
	}

	first, err := HashValue(settings{Suffix: "_item", Register: true})
	require.NoError(t, err)
	second, err := HashValue(settings{Suffix: "_item", Register: true})
	require.NoError(t, err)
	other, err := HashValue(settings{Suffix: "_gen", Register: true})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)

	_, err = HashValue(make(chan int))
	assert.Error(t, err)
}
