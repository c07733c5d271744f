package appointments

import (
	"context"
	"sort"
	"sync"
)

// Store is the durable schedule. It performs no uniqueness enforcement;
// callers that need the no-overlap invariant must check before Append.
type Store interface {
	// ReadAll returns every record in store order.
	ReadAll(ctx context.Context) ([]Record, error)
	// Append writes one record.
	Append(ctx context.Context, rec Record) error
}

// MemoryStore keeps records in process. Used for local development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	// ReadErr and AppendErr force failures when set.
	ReadErr   error
	AppendErr error
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a store seeded with records.
func NewMemoryStore(seed ...Record) *MemoryStore {
	return &MemoryStore{records: append([]Record(nil), seed...)}
}

func (s *MemoryStore) ReadAll(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StoreReadError{Backend: "memory", Err: err}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ReadErr != nil {
		return nil, &StoreReadError{Backend: "memory", Err: s.ReadErr}
	}
	return append([]Record(nil), s.records...), nil
}

func (s *MemoryStore) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return &StoreWriteError{Backend: "memory", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return &StoreWriteError{Backend: "memory", Err: s.AppendErr}
	}
	s.records = append(s.records, rec)
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// SortByStart orders records chronologically in place.
func SortByStart(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Start.Before(records[j].Start)
	})
}
