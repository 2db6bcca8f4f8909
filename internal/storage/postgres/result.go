package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"station_watch/internal/domain"
)

// uniqueViolation is the Postgres error code for a unique constraint
// violation.
const uniqueViolation = "23505"

// ResultStore persists search results. The (search, update, key) unique
// constraint is the pipeline's exactly-once mechanism.
type ResultStore struct {
	db *sqlx.DB
}

func NewResultStore(db *sqlx.DB) *ResultStore {
	return &ResultStore{db: db}
}

// Create inserts a result and fills its ID and CreatedAt. Returns
// domain.ErrDuplicateResult when the (search, update, idempotency key)
// triple already exists.
func (s *ResultStore) Create(ctx context.Context, r *domain.SearchResult) error {
	row := executor(ctx, s.db).QueryRowxContext(ctx, `
		INSERT INTO search_results (search_id, update_id, idempotency_key)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		r.SearchID, r.UpdateID, r.IdempotencyKey,
	)
	err := row.Scan(&r.ID, &r.CreatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("search %d update %d key %q: %w",
			r.SearchID, r.UpdateID, r.IdempotencyKey, domain.ErrDuplicateResult)
	}
	return err
}

// ListUnread returns the results created after the given watermark,
// newest first, each paired with its update.
func (s *ResultStore) ListUnread(ctx context.Context, searchID int64, after time.Time) ([]domain.RollupItem, error) {
	rows, err := executor(ctx, s.db).QueryxContext(ctx, `
		SELECT r.id, r.search_id, r.update_id, r.idempotency_key, r.created_at,
		       u.id, u.station_id, u.created_at, u.is_creation, u.current, u.previous
		FROM search_results r
		JOIN updates u ON u.id = r.update_id
		WHERE r.search_id = $1 AND r.created_at > $2
		ORDER BY r.created_at DESC, r.id DESC`,
		searchID, after,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.RollupItem
	for rows.Next() {
		var item domain.RollupItem
		u, err := scanRollupRow(rows, &item.Result)
		if err != nil {
			return nil, err
		}
		item.Update = *u
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanRollupRow(rows *sqlx.Rows, r *domain.SearchResult) (*domain.Update, error) {
	return scanUpdate(func(dest ...interface{}) error {
		all := append([]interface{}{&r.ID, &r.SearchID, &r.UpdateID, &r.IdempotencyKey, &r.CreatedAt}, dest...)
		return rows.Scan(all...)
	})
}
