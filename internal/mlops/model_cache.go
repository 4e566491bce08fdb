package mlops

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const artifactBucket = "artifacts"

// ModelCache keeps downloaded model artifacts on local disk so the service
// can restore its active model when object storage is unreachable at boot.
type ModelCache struct {
	db *bbolt.DB
}

// NewModelCache opens the cache database, creating it if needed.
func NewModelCache(path string) (*ModelCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open model cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(artifactBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}

	return &ModelCache{db: db}, nil
}

// Close closes the cache database.
func (c *ModelCache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Store caches a serialized artifact under its version.
func (c *ModelCache) Store(version string, artifact []byte) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(artifactBucket))
		if bucket == nil {
			return fmt.Errorf("artifact bucket not found")
		}
		return bucket.Put([]byte(version), artifact)
	})
}

// Get returns the cached artifact for a version, or nil when absent.
func (c *ModelCache) Get(version string) ([]byte, error) {
	var artifact []byte
	err := c.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(artifactBucket))
		if bucket == nil {
			return fmt.Errorf("artifact bucket not found")
		}
		if data := bucket.Get([]byte(version)); data != nil {
			artifact = make([]byte, len(data))
			copy(artifact, data)
		}
		return nil
	})
	return artifact, err
}
