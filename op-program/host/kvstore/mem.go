package kvstore

import (
	"sync"

	preimage "github.com/mantlenetworkio/op-celestia-host/op-preimage"
)

// MemKV implements the KV store interface in memory, backed by a regular Go map.
// This should only be used in testing, as large programs may require more pre-image data than available memory.
// MemKV is safe for concurrent use.
type MemKV struct {
	sync.RWMutex
	m map[preimage.Key][]byte
}

var _ KV = (*MemKV)(nil)

func NewMemKV() *MemKV {
	return &MemKV{m: make(map[preimage.Key][]byte)}
}

func (m *MemKV) Put(k preimage.Key, v []byte) error {
	m.Lock()
	defer m.Unlock()
	m.m[k] = v
	return nil
}

func (m *MemKV) Get(k preimage.Key) ([]byte, error) {
	m.RLock()
	defer m.RUnlock()
	v, ok := m.m[k]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *MemKV) Len() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.m)
}

func (m *MemKV) Close() error {
	return nil
}
