package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/homeconnect-core/internal/appliance"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	// timeLayout has a fixed width so recorded_at sorts as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Entry is a stored Change.
type Entry struct {
	ID int64 `json:"id"`
	Change
}

// SQLiteRepository stores changes in the property_history table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on a migrated database.
//
// Parameters:
//   - db: Open SQLite connection with the property_history table
//
// Returns:
//   - *SQLiteRepository: Repository ready for use, also usable as a Sink
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts one change. Values are stored as JSON text.
func (r *SQLiteRepository) Record(ctx context.Context, c Change) error {
	if c.HaID == "" || c.Key == "" {
		return fmt.Errorf("%w: ha_id and key are required", ErrInvalidQuery)
	}

	oldValue, err := encodeValue(c.Old)
	if err != nil {
		return err
	}
	newValue, err := encodeValue(c.New)
	if err != nil {
		return err
	}

	at := c.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO property_history (ha_id, key, old_value, new_value, unit, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.HaID, c.Key, oldValue, newValue, c.Unit, at.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting property history: %w", err)
	}
	return nil
}

// List returns the newest entries for haID, optionally restricted to key.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - haID: Appliance identifier (required)
//   - key: Property key, or "" for every key
//   - limit: Maximum entries (default 50, max 500)
//
// Returns:
//   - []Entry: Entries ordered newest first
//   - error: ErrInvalidQuery or the underlying query error
func (r *SQLiteRepository) List(ctx context.Context, haID, key string, limit int) ([]Entry, error) {
	if haID == "" {
		return nil, fmt.Errorf("%w: ha_id is required", ErrInvalidQuery)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := `SELECT id, ha_id, key, old_value, new_value, unit, recorded_at
		 FROM property_history WHERE ha_id = ?`
	args := []any{haID}
	if key != "" {
		query += " AND key = ?"
		args = append(args, key)
	}
	query += " ORDER BY recorded_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying property history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var (
			e                  Entry
			oldValue, newValue sql.NullString
			unit               sql.NullString
			recordedAt         string
		)
		if err := rows.Scan(&e.ID, &e.HaID, &e.Key, &oldValue, &newValue, &unit, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning property history: %w", err)
		}
		if e.Old, err = decodeValue(oldValue); err != nil {
			return nil, err
		}
		if e.New, err = decodeValue(newValue); err != nil {
			return nil, err
		}
		e.Unit = unit.String
		if e.At, err = time.Parse(timeLayout, recordedAt); err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating property history: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than olderThan and returns how many went.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRetention
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(timeLayout)
	result, err := r.db.ExecContext(ctx, "DELETE FROM property_history WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting property history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// RunRetention prunes every interval until ctx is done. It prunes once
// immediately.
func (r *SQLiteRepository) RunRetention(ctx context.Context, retention, interval time.Duration, logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	prune := func() {
		n, err := r.Prune(ctx, retention)
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Warn("pruning property history failed", "error", err)
		case n > 0:
			logger.Info("pruned property history", "rows", n)
		}
	}

	prune()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

func encodeValue(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding property value: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeValue(s sql.NullString) (any, error) {
	if !s.Valid {
		return nil, nil
	}
	v, err := appliance.DecodeValue([]byte(s.String))
	if err != nil {
		return nil, fmt.Errorf("decoding property value: %w", err)
	}
	return v, nil
}
