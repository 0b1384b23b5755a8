package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"screener/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS detection_history (
	id          TEXT PRIMARY KEY,
	symbol      TEXT NOT NULL,
	pattern     TEXT NOT NULL,
	detected_at TIMESTAMPTZ NOT NULL,
	price       DOUBLE PRECISION NOT NULL,
	strength    DOUBLE PRECISION NOT NULL,
	reason      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_detection_history_symbol
	ON detection_history (symbol, detected_at DESC);
`

// PostgresStore is a Store backed by postgres via sqlx. Retention
// matches the memory store: at most capacity records per symbol,
// oldest trimmed after each append.
type PostgresStore struct {
	db       *sqlx.DB
	capacity int
}

// NewPostgresStore connects and ensures the history table exists
func NewPostgresStore(dsn string, capacity int) (*PostgresStore, error) {
	if capacity < 1 {
		capacity = DefaultCapacity
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}

	return &PostgresStore{db: db, capacity: capacity}, nil
}

// Close releases the underlying connection pool
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

// Record appends a detection record and trims the symbol's overflow
func (p *PostgresStore) Record(ctx context.Context, rec model.HistoryRecord) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO detection_history (id, symbol, pattern, detected_at, price, strength, reason)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Symbol, string(rec.Pattern), rec.Timestamp, rec.Price, rec.Strength, rec.Reason)
	if err != nil {
		return fmt.Errorf("inserting history record: %w", err)
	}

	// Keep only the newest capacity rows per symbol
	_, err = p.db.ExecContext(ctx,
		`DELETE FROM detection_history
		 WHERE symbol = $1 AND id NOT IN (
			SELECT id FROM detection_history
			WHERE symbol = $1
			ORDER BY detected_at DESC
			LIMIT $2
		 )`,
		rec.Symbol, p.capacity)
	if err != nil {
		return fmt.Errorf("trimming history: %w", err)
	}
	return nil
}

// Query returns matching records for a symbol, newest first
func (p *PostgresStore) Query(ctx context.Context, symbol string, since time.Time, pattern model.PatternID) ([]model.HistoryRecord, error) {
	query := `SELECT id, symbol, pattern, detected_at, price, strength, reason
		FROM detection_history WHERE symbol = $1`
	args := []interface{}{symbol}

	if !since.IsZero() {
		args = append(args, since)
		query += fmt.Sprintf(" AND detected_at >= $%d", len(args))
	}
	if pattern != "" {
		args = append(args, string(pattern))
		query += fmt.Sprintf(" AND pattern = $%d", len(args))
	}
	query += " ORDER BY detected_at DESC"

	var recs []model.HistoryRecord
	if err := p.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	return recs, nil
}
