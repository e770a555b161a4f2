package storage

import (
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	bolt "go.etcd.io/bbolt"
)

var bucketState = []byte("state")

// BoltKV is a durable Storage implementation backed by a single BoltDB file.
type BoltKV struct {
	db *bolt.DB
}

// OpenBolt opens (and migrates) the BoltDB-backed store at path.
func OpenBolt(path string, options *bolt.Options) (*BoltKV, error) {
	if options == nil {
		options = &bolt.Options{Timeout: time.Second}
	} else if options.Timeout == 0 {
		options.Timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, options)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketState)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltKV{db: db}, nil
}

// Close releases the underlying database handle.
func (b *BoltKV) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *BoltKV) KVGet(key []byte, out interface{}) (bool, error) {
	var raw []byte
	if err := b.db.View(func(tx *bolt.Tx) error {
		if value := tx.Bucket(bucketState).Get(key); value != nil {
			raw = append([]byte(nil), value...)
		}
		return nil
	}); err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (b *BoltKV) KVPut(key []byte, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketState).Put(key, raw)
	})
}

func (b *BoltKV) KVDelete(key []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketState).Delete(key)
	})
}
