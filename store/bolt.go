package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"commitwatch/models"

	bolt "go.etcd.io/bbolt"
)

const boltRootBucket = "cursors"

// BoltStore keeps the cursor state in an embedded bbolt database. Repository
// keys are nested buckets under the root; branch cursors are the key/value
// pairs inside them.
type BoltStore struct {
	db   *bolt.DB
	once sync.Once
}

// NewBoltStore opens (or creates) the bolt database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, errors.New("bolt database path is required")
	}

	cleaned := filepath.Clean(path)
	if dir := filepath.Dir(cleaned); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := bolt.Open(cleaned, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseConnection, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltRootBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Load reads the full cursor state.
func (s *BoltStore) Load(ctx context.Context) (models.Cursor, error) {
	cursor := models.Cursor{}
	err := s.db.View(func(tx *bolt.Tx) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		root := tx.Bucket([]byte(boltRootBucket))
		if root == nil {
			return nil
		}
		return root.ForEach(func(k, v []byte) error {
			// Nested buckets have a nil value
			if v != nil {
				return nil
			}
			repoBucket := root.Bucket(k)
			if repoBucket == nil {
				return nil
			}
			repoKey := string(k)
			return repoBucket.ForEach(func(branch, id []byte) error {
				cursor.Set(repoKey, string(branch), string(id))
				return nil
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load cursor state: %w", err)
	}
	return cursor, nil
}

// Save replaces the stored state with cursor in a single transaction.
func (s *BoltStore) Save(ctx context.Context, cursor models.Cursor) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := tx.DeleteBucket([]byte(boltRootBucket)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		root, err := tx.CreateBucket([]byte(boltRootBucket))
		if err != nil {
			return err
		}

		for repoKey, branches := range cursor {
			repoBucket, err := root.CreateBucketIfNotExists([]byte(repoKey))
			if err != nil {
				return err
			}
			for branch, id := range branches {
				if err := repoBucket.Put([]byte(branch), []byte(id)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save cursor state: %w", err)
	}
	return nil
}

// Close closes the underlying database once.
func (s *BoltStore) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}
