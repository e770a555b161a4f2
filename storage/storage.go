// Package storage persists bond engine and treasury state behind a small
// key-value abstraction with RLP-encoded records.
package storage

// Storage abstracts the subset of key-value functionality the state adapter
// requires. Implementations encode values with RLP.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}
