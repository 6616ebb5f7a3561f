package cache

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "github.com/boltdb/bolt"
)

const bucketName = "cache"

// Bolt is a Backend persisted in a single BoltDB file, so cached models
// survive across CLI invocations.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (or creates) the cache file at path and ensures the bucket exists.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Get(key string) (Entry, error) {
	var e Entry
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &e)
	})
	return e, err
}

func (b *Bolt) Put(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(e.Key), data)
	})
}

// Delete is a no-op for a missing key.
func (b *Bolt) Delete(key string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}

func (b *Bolt) Clear() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

// Close releases the file lock.
func (b *Bolt) Close() error {
	return b.db.Close()
}
