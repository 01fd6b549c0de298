package runlog

import "sync"

// memoryStore implements Store in memory. Used when persistence is off.
type memoryStore struct {
	mu      sync.RWMutex
	records []Record
	nextID  uint64
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore() Store {
	return &memoryStore{}
}

// Append implements Store.Append.
func (s *memoryStore) Append(rec *Record) error {
	if rec == nil {
		return ErrNilRecord
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec.ID = s.nextID
	s.records = append(s.records, *rec)
	return nil
}

// Get implements Store.Get.
func (s *memoryStore) Get(id uint64) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.records {
		if s.records[i].ID == id {
			rec := s.records[i]
			return &rec, nil
		}
	}
	return nil, ErrRecordNotFound
}

// List implements Store.List.
func (s *memoryStore) List(limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for i := len(s.records) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, s.records[i])
	}
	return out, nil
}

// Prune implements Store.Prune.
func (s *memoryStore) Prune(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) <= keep {
		return 0, nil
	}
	deleted := len(s.records) - keep
	s.records = append([]Record(nil), s.records[deleted:]...)
	return deleted, nil
}

// Close implements Store.Close.
func (s *memoryStore) Close() error {
	return nil
}
