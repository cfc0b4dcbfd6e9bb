package news

import "sync"

// MemoryStore is a Store kept in memory. It follows the same positional
// rules as CSVStore and is meant for tests and local runs.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a store holding a copy of records.
func NewMemoryStore(records ...Record) *MemoryStore {
	return &MemoryStore{records: append([]Record{}, records...)}
}

func (s *MemoryStore) ListAll() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record{}, s.records...), nil
}

func (s *MemoryStore) GetAt(index int) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !inBounds(index, len(s.records)) {
		return Record{}, ErrNotFound
	}
	return s.records[index], nil
}

func (s *MemoryStore) Append(rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *MemoryStore) ReplaceAt(index int, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !inBounds(index, len(s.records)) {
		return Record{}, ErrNotFound
	}
	s.records[index] = rec
	return rec, nil
}

func (s *MemoryStore) RemoveAt(index int) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !inBounds(index, len(s.records)) {
		return Record{}, ErrNotFound
	}
	var removed Record
	s.records, removed = removeAt(s.records, index)
	return removed, nil
}
