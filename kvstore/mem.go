package kvstore

import (
	"slices"
	"strings"
	"sync"
)

type memStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	closed  bool
}

// OpenMemory returns a transient in-memory Store intended for tests.
func OpenMemory() Store {
	return &memStore{entries: make(map[string][]byte)}
}

func (s *memStore) Put(id, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.entries[string(id)] = slices.Clone(value)
	return nil
}

func (s *memStore) Get(id []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	value, ok := s.entries[string(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(value), nil
}

func (s *memStore) Delete(id []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.entries, string(id))
	return nil
}

func (s *memStore) ForEach(fn func(id, value []byte) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, strings.Compare)
	snapshot := make([][]byte, len(ids))
	for i, id := range ids {
		snapshot[i] = s.entries[id]
	}
	s.mu.Unlock()

	for i, id := range ids {
		err := fn([]byte(id), snapshot[i])
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	clear(s.entries)
	return nil
}

func (s *memStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *memStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.entries = nil
	return nil
}
