// Package codecache deduplicates finalized machine code routines.
//
// Independent assemblers frequently produce identical stubs, so a Store keeps
// one copy per distinct byte sequence. Since these methods are concurrently
// accessed, Store is Goroutine-safe.
package codecache

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Key identifies a routine by the xxhash of its bytes.
type Key uint64

// String implements fmt.Stringer.
func (k Key) String() string { return fmt.Sprintf("%016x", uint64(k)) }

// KeyOf returns the Key of code.
func KeyOf(code []byte) Key { return Key(xxhash.Sum64(code)) }

// Store holds routines by Key. The zero value is not usable, use NewStore.
type Store struct {
	mux sync.RWMutex
	// entries holds every routine whose bytes hash to the key. More than one
	// only on a hash collision.
	entries map[Key][][]byte
	n       int
	// backing is optional.
	backing *FileCache
}

// NewStore returns an empty Store. When backing is non-nil, new routines are
// written through to it and Get falls back to it on a miss.
func NewStore(backing *FileCache) *Store {
	return &Store{entries: map[Key][][]byte{}, backing: backing}
}

// Add stores a copy of code unless identical bytes are already present, and
// returns the Key of code and whether it was already present.
func (s *Store) Add(code []byte) (key Key, existed bool, err error) {
	key = KeyOf(code)

	s.mux.Lock()
	defer s.mux.Unlock()
	for _, e := range s.entries[key] {
		if bytes.Equal(e, code) {
			return key, true, nil
		}
	}
	if s.backing != nil {
		if err = s.backing.Add(key, code); err != nil {
			return key, false, fmt.Errorf("codecache: write through %s: %w", key, err)
		}
	}
	s.entries[key] = append(s.entries[key], append([]byte(nil), code...))
	s.n++
	return key, false, nil
}

// Get returns a copy of the routine stored under key. On a hash collision the
// first routine added wins.
func (s *Store) Get(key Key) ([]byte, bool, error) {
	s.mux.RLock()
	if e := s.entries[key]; len(e) > 0 {
		code := append([]byte(nil), e[0]...)
		s.mux.RUnlock()
		return code, true, nil
	}
	s.mux.RUnlock()

	if s.backing == nil {
		return nil, false, nil
	}
	code, ok, err := s.backing.Get(key)
	if err != nil || !ok {
		return nil, false, err
	}
	if KeyOf(code) != key {
		// The file does not hold what was written for key, drop it.
		if err = s.backing.Delete(key); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}

	s.mux.Lock()
	defer s.mux.Unlock()
	if e := s.entries[key]; len(e) > 0 {
		return append([]byte(nil), e[0]...), true, nil
	}
	s.entries[key] = [][]byte{code}
	s.n++
	return append([]byte(nil), code...), true, nil
}

// Len returns the number of distinct routines held in memory.
func (s *Store) Len() int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.n
}
