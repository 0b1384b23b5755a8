// Package history keeps per-symbol detection records used for the
// dedup and cooldown gates. Records are append-only; the detectors
// only ever append and range-query.
package history

import (
	"context"
	"time"

	"screener/pkg/model"
)

// Store is the persistence contract the detection core needs. Backends
// may be memory, SQL, or anything else honoring the same semantics.
type Store interface {
	// Record appends a detection record for rec.Symbol.
	Record(ctx context.Context, rec model.HistoryRecord) error

	// Query returns records for a symbol, newest first. A zero since
	// means no lower bound; an empty pattern matches all patterns.
	Query(ctx context.Context, symbol string, since time.Time, pattern model.PatternID) ([]model.HistoryRecord, error)
}
