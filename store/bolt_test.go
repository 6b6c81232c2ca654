package store

import (
	"context"
	"path/filepath"
	"testing"

	"commitwatch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempBoltStore(t *testing.T) (*BoltStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "cursors.db")
	s, err := NewBoltStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestBoltStoreRoundTrip(t *testing.T) {
	s, _ := tempBoltStore(t)

	cursor := testCursor()
	require.NoError(t, s.Save(context.Background(), cursor))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cursor, loaded)
}

func TestBoltStoreLoadFreshDatabase(t *testing.T) {
	s, _ := tempBoltStore(t)

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestBoltStoreSaveReplacesState(t *testing.T) {
	s, _ := tempBoltStore(t)

	require.NoError(t, s.Save(context.Background(), testCursor()))

	next := models.Cursor{"acme/widgets": {"main": "c9"}}
	require.NoError(t, s.Save(context.Background(), next))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, next, loaded)
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	s, path := tempBoltStore(t)

	cursor := testCursor()
	require.NoError(t, s.Save(context.Background(), cursor))
	require.NoError(t, s.Close())

	reopened, err := NewBoltStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cursor, loaded)
}

func TestBoltStoreRequiresPath(t *testing.T) {
	_, err := NewBoltStore("")
	assert.Error(t, err)
}

func TestBoltStoreCloseTwice(t *testing.T) {
	s, _ := tempBoltStore(t)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestBoltStoreSaveCancelledContext(t *testing.T) {
	s, _ := tempBoltStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Save(ctx, testCursor())
	assert.Error(t, err)
}
