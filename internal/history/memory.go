package history

import (
	"context"
	"sync"
	"time"

	"screener/pkg/model"
)

// DefaultCapacity is the per-symbol ring size. Oldest records are
// evicted on overflow.
const DefaultCapacity = 50

// ring is a fixed-capacity record buffer for one symbol
type ring struct {
	records []model.HistoryRecord
	head    int // next write position
	size    int
}

func newRing(capacity int) *ring {
	return &ring{records: make([]model.HistoryRecord, capacity)}
}

func (r *ring) append(rec model.HistoryRecord) {
	r.records[r.head] = rec
	r.head = (r.head + 1) % len(r.records)
	if r.size < len(r.records) {
		r.size++
	}
}

// snapshot returns the ring contents newest first
func (r *ring) snapshot() []model.HistoryRecord {
	out := make([]model.HistoryRecord, 0, r.size)
	for i := 1; i <= r.size; i++ {
		idx := (r.head - i + len(r.records)) % len(r.records)
		out = append(out, r.records[idx])
	}
	return out
}

// MemoryStore is an in-memory Store with a bounded ring per symbol.
// Appends only ever touch one symbol's ring, so a single coarse lock
// is enough for the scanner's worker pool.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	rings    map[string]*ring
}

// NewMemoryStore creates a memory store with the given per-symbol
// capacity; values below 1 fall back to DefaultCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		capacity: capacity,
		rings:    make(map[string]*ring),
	}
}

// Record appends a detection record for rec.Symbol
func (m *MemoryStore) Record(_ context.Context, rec model.HistoryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rings[rec.Symbol]
	if !ok {
		r = newRing(m.capacity)
		m.rings[rec.Symbol] = r
	}
	r.append(rec)
	return nil
}

// Query returns matching records for a symbol, newest first
func (m *MemoryStore) Query(_ context.Context, symbol string, since time.Time, pattern model.PatternID) ([]model.HistoryRecord, error) {
	m.mu.Lock()
	r, ok := m.rings[symbol]
	if !ok {
		m.mu.Unlock()
		return nil, nil
	}
	all := r.snapshot()
	m.mu.Unlock()

	out := make([]model.HistoryRecord, 0, len(all))
	for _, rec := range all {
		if pattern != "" && rec.Pattern != pattern {
			continue
		}
		if !since.IsZero() && rec.Timestamp.Before(since) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Len reports how many records are held for a symbol
func (m *MemoryStore) Len(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rings[symbol]; ok {
		return r.size
	}
	return 0
}
