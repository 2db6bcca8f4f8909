package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"station_watch/internal/domain"
)

// UpdateStore persists immutable reconciliation outcomes.
type UpdateStore struct {
	db *sqlx.DB
}

func NewUpdateStore(db *sqlx.DB) *UpdateStore {
	return &UpdateStore{db: db}
}

// Create inserts an update and fills its ID and CreatedAt.
func (s *UpdateStore) Create(ctx context.Context, u *domain.Update) error {
	current, err := json.Marshal(u.Current)
	if err != nil {
		return fmt.Errorf("marshal current snapshot: %w", err)
	}
	var previous []byte
	if u.Previous != nil {
		if previous, err = json.Marshal(u.Previous); err != nil {
			return fmt.Errorf("marshal previous snapshot: %w", err)
		}
	}

	row := executor(ctx, s.db).QueryRowxContext(ctx, `
		INSERT INTO updates (station_id, is_creation, current, previous)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		u.StationID, u.IsCreation, current, previous,
	)
	return row.Scan(&u.ID, &u.CreatedAt)
}

// Get loads one update by id.
func (s *UpdateStore) Get(ctx context.Context, id int64) (*domain.Update, error) {
	row := executor(ctx, s.db).QueryRowxContext(ctx, `
		SELECT id, station_id, created_at, is_creation, current, previous
		FROM updates
		WHERE id = $1`, id)

	u, err := scanUpdate(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Feed lists updates for the presentation layer, newest first. Without a
// station filter only canonical stations appear.
func (s *UpdateStore) Feed(ctx context.Context, f domain.FeedFilter) ([]domain.Update, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT u.id, u.station_id, u.created_at, u.is_creation, u.current, u.previous
		FROM updates u
		JOIN stations s ON s.id = u.station_id`)

	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.StationID != 0 {
		conds = append(conds, "u.station_id = "+arg(f.StationID))
	} else {
		conds = append(conds, "s.linked_to IS NULL")
	}
	if len(f.EVNetworks) > 0 {
		conds = append(conds, "s.ev_network = ANY("+arg(pq.Array(f.EVNetworks))+")")
	}
	if len(f.EVConnectorTypes) > 0 {
		conds = append(conds, "s.ev_connector_types && "+arg(pq.Array(f.EVConnectorTypes)))
	}
	if len(f.AreaIDs) > 0 {
		conds = append(conds, `s.point IS NOT NULL AND ST_Covers(
			(SELECT ST_Union(geom) FROM areas WHERE id = ANY(`+arg(pq.Array(f.AreaIDs))+`)), s.point)`)
	}

	sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	sb.WriteString(" ORDER BY u.created_at DESC")
	if f.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(f.Limit))
	}

	rows, err := executor(ctx, s.db).QueryxContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []domain.Update
	for rows.Next() {
		u, err := scanUpdate(rows.Scan)
		if err != nil {
			return nil, err
		}
		updates = append(updates, *u)
	}
	return updates, rows.Err()
}

func scanUpdate(scan func(...interface{}) error) (*domain.Update, error) {
	var u domain.Update
	var current, previous []byte
	var createdAt time.Time

	if err := scan(&u.ID, &u.StationID, &createdAt, &u.IsCreation, &current, &previous); err != nil {
		return nil, err
	}
	u.CreatedAt = createdAt

	if err := json.Unmarshal(current, &u.Current); err != nil {
		return nil, fmt.Errorf("unmarshal current snapshot: %w", err)
	}
	if len(previous) > 0 {
		u.Previous = &domain.Snapshot{}
		if err := json.Unmarshal(previous, u.Previous); err != nil {
			return nil, fmt.Errorf("unmarshal previous snapshot: %w", err)
		}
	}
	return &u, nil
}
