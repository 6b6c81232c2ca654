package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"commitwatch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCursor() models.Cursor {
	return models.Cursor{
		"acme/widgets": {"main": "c3", "develop": "c1"},
		"acme/gadgets": {"main": "g7"},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursors.json")
	s := NewFileStore(path)

	cursor := testCursor()
	require.NoError(t, s.Save(context.Background(), cursor))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cursor, loaded)
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "does-not-exist.json"))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestFileStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursors.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{not json"), 0o600))

	loaded, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestFileStoreLoadNullDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursors.json")
	require.NoError(t, os.WriteFile(path, []byte("null"), 0o600))

	loaded, err := NewFileStore(path).Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestFileStoreSaveReplacesState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursors.json")
	s := NewFileStore(path)

	require.NoError(t, s.Save(context.Background(), testCursor()))

	next := models.Cursor{"acme/widgets": {"main": "c9"}}
	require.NoError(t, s.Save(context.Background(), next))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, next, loaded)
}

func TestFileStoreSaveCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state", "cursors.json")
	s := NewFileStore(path)

	require.NoError(t, s.Save(context.Background(), testCursor()))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestFileStoreSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "cursors.json"))

	require.NoError(t, s.Save(context.Background(), testCursor()))
	require.NoError(t, s.Save(context.Background(), testCursor()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "cursors.json", entries[0].Name())
}
