package ledger

import (
	"bytes"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrStoreClosed is returned by a MemoryStore after Close.
var ErrStoreClosed = errors.New("store is closed")

// MemoryStore is an in-memory implementation of a Store, used for tests and
// throwaway ledgers.
type MemoryStore struct {
	mut sync.RWMutex
	mem map[string][]byte
}

// NewMemoryStore creates a new MemoryStore object.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mem: make(map[string][]byte),
	}
}

// Get implements the Store interface.
func (s *MemoryStore) Get(key []byte) ([]byte, error) {
	s.mut.RLock()
	defer s.mut.RUnlock()
	if s.mem == nil {
		return nil, ErrStoreClosed
	}
	if val, ok := s.mem[string(key)]; ok {
		return bytes.Clone(val), nil
	}
	return nil, ErrKeyNotFound
}

// PutChangeSet implements the Store interface. It only fails once the store
// is closed.
func (s *MemoryStore) PutChangeSet(puts map[string][]byte) error {
	s.mut.Lock()
	defer s.mut.Unlock()
	if s.mem == nil {
		return ErrStoreClosed
	}
	for k, v := range puts {
		if v == nil {
			delete(s.mem, k)
			continue
		}
		s.mem[k] = bytes.Clone(v)
	}
	return nil
}

// Seek implements the Store interface.
func (s *MemoryStore) Seek(rng SeekRange, f func(k, v []byte) bool) {
	s.mut.RLock()
	defer s.mut.RUnlock()

	prefix := string(rng.Prefix)
	keys := make([]string, 0)
	for k := range s.mem {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if rng.Backwards {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}
	for _, k := range keys {
		if !f([]byte(k), s.mem[k]) {
			break
		}
	}
}

// Close implements Store interface and clears up memory. Never returns an
// error; later reads and writes fail with ErrStoreClosed.
func (s *MemoryStore) Close() error {
	s.mut.Lock()
	s.mem = nil
	s.mut.Unlock()
	return nil
}
