package storage

import (
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
)

// MemoryKV is an in-memory Storage implementation used by tests and
// single-process deployments that do not need durability.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryKV returns an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) KVGet(key []byte, out interface{}) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[string(key)]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MemoryKV) KVPut(key []byte, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[string(key)] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) KVDelete(key []byte) error {
	m.mu.Lock()
	delete(m.data, string(key))
	m.mu.Unlock()
	return nil
}
