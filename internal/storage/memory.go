package storage

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps everything in process memory. Nothing survives a restart.
type MemoryStore struct {
	values  map[string][]byte
	sets    map[string]map[string]struct{}
	hashes  map[string]map[string]string
	seqs    map[string]int64
	indexes map[string]map[string]string

	mu sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:  map[string][]byte{},
		sets:    map[string]map[string]struct{}{},
		hashes:  map[string]map[string]string{},
		seqs:    map[string]int64{},
		indexes: map[string]map[string]string{},
	}
}

func (s *MemoryStore) GetValue(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v), true, nil
}

func (s *MemoryStore) SetValue(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = slices.Clone(value)
	return nil
}

func (s *MemoryStore) DeleteValue(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	return nil
}

func (s *MemoryStore) AddToSet(_ context.Context, setKey string, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[setKey]
	if !ok {
		set = map[string]struct{}{}
		s.sets[setKey] = set
	}
	set[member] = struct{}{}
	return nil
}

func (s *MemoryStore) RemoveFromSet(_ context.Context, setKey string, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[setKey]
	if !ok {
		return nil
	}
	delete(set, member)
	if len(set) == 0 {
		delete(s.sets, setKey)
	}
	return nil
}

func (s *MemoryStore) SetContains(_ context.Context, setKey string, member string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.sets[setKey][member]
	return ok, nil
}

func (s *MemoryStore) SetMembers(_ context.Context, setKey string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]string, 0, len(s.sets[setKey]))
	for m := range s.sets[setKey] {
		members = append(members, m)
	}
	slices.Sort(members)
	return members, nil
}

func (s *MemoryStore) HashGet(_ context.Context, hashKey string, field string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.hashes[hashKey][field]
	return v, ok, nil
}

func (s *MemoryStore) HashSet(_ context.Context, hashKey string, field string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	setField(s.hashes, hashKey, field, value)
	return nil
}

func (s *MemoryStore) HashGetAll(_ context.Context, hashKey string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vals := map[string]string{}
	for k, v := range s.hashes[hashKey] {
		vals[k] = v
	}
	return vals, nil
}

func (s *MemoryStore) HashDelete(_ context.Context, hashKey string, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleteField(s.hashes, hashKey, field)
	return nil
}

func (s *MemoryStore) NextValue(_ context.Context, sequence string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seqs[sequence]++
	return s.seqs[sequence], nil
}

func (s *MemoryStore) SetIndex(_ context.Context, index string, value string, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	setField(s.indexes, index, value, target)
	return nil
}

func (s *MemoryStore) GetIndex(_ context.Context, index string, value string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.indexes[index][value]
	return v, ok, nil
}

func (s *MemoryStore) DeleteIndex(_ context.Context, index string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleteField(s.indexes, index, value)
	return nil
}

func (s *MemoryStore) DeleteKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.values, key)
	delete(s.sets, key)
	delete(s.hashes, key)
	delete(s.seqs, key)
	delete(s.indexes, key)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func setField(m map[string]map[string]string, key string, field string, value string) {
	h, ok := m[key]
	if !ok {
		h = map[string]string{}
		m[key] = h
	}
	h[field] = value
}

func deleteField(m map[string]map[string]string, key string, field string) {
	h, ok := m[key]
	if !ok {
		return
	}
	delete(h, field)
	if len(h) == 0 {
		delete(m, key)
	}
}
