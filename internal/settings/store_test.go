package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoad_MissingFileReturnsEmptyDocument(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "settings.json"))
	doc, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestStoreMerge_PersistsAndRoundTrips(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "settings.json"))

	doc, err := store.Merge(Document{"active_engine_path": "/opt/engine"})
	require.NoError(t, err)
	assert.Equal(t, "/opt/engine", doc["active_engine_path"])

	reloaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "/opt/engine", reloaded["active_engine_path"])
}

func TestStoreMerge_LastWriterWinsPerKey(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "settings.json"))

	_, err := store.Merge(Document{"active_engine_path": "/first", "extra_model_dirs": []interface{}{"/a"}})
	require.NoError(t, err)

	doc, err := store.Merge(Document{"active_engine_path": "/second"})
	require.NoError(t, err)

	assert.Equal(t, "/second", doc["active_engine_path"])
	assert.Equal(t, []interface{}{"/a"}, doc["extra_model_dirs"])
}

func TestLoadYAMLSeed_MissingFileReturnsEmpty(t *testing.T) {
	doc, err := LoadYAMLSeed(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestLoadYAMLSeed_ParsesDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("active_engine_path: /external/engine\n"), 0o644))

	doc, err := LoadYAMLSeed(path)
	require.NoError(t, err)
	assert.Equal(t, "/external/engine", doc["active_engine_path"])
}
