package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"station_watch/internal/domain"
)

// SearchStore persists user subscriptions and their notification
// watermarks.
type SearchStore struct {
	db *sqlx.DB
}

func NewSearchStore(db *sqlx.DB) *SearchStore {
	return &SearchStore{db: db}
}

type searchRow struct {
	ID             int64          `db:"id"`
	Name           string         `db:"name"`
	UserID         int64          `db:"user_id"`
	UserEmail      string         `db:"user_email"`
	EVNetworks     pq.StringArray `db:"ev_networks"`
	PlugTypes      pq.StringArray `db:"plug_types"`
	DCFast         bool           `db:"dc_fast"`
	OnlyNew        bool           `db:"only_new"`
	DailyEmail     bool           `db:"daily_email"`
	WeeklyEmail    bool           `db:"weekly_email"`
	IsPublic       bool           `db:"is_public"`
	LastNotifiedAt time.Time      `db:"last_notified_at"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	AreaIDs        pq.Int64Array  `db:"area_ids"`
}

func (r *searchRow) toDomain() domain.Search {
	return domain.Search{
		ID:             r.ID,
		Name:           r.Name,
		UserID:         r.UserID,
		UserEmail:      r.UserEmail,
		EVNetworks:     []string(r.EVNetworks),
		PlugTypes:      []string(r.PlugTypes),
		DCFast:         r.DCFast,
		OnlyNew:        r.OnlyNew,
		AreaIDs:        []int64(r.AreaIDs),
		DailyEmail:     r.DailyEmail,
		WeeklyEmail:    r.WeeklyEmail,
		IsPublic:       r.IsPublic,
		LastNotifiedAt: r.LastNotifiedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

const searchSelect = `
	SELECT s.id, s.name, s.user_id, u.email AS user_email, s.ev_networks,
	       s.plug_types, s.dc_fast, s.only_new, s.daily_email, s.weekly_email,
	       s.is_public, s.last_notified_at, s.created_at, s.updated_at,
	       COALESCE(array_agg(sa.area_id) FILTER (WHERE sa.area_id IS NOT NULL), '{}') AS area_ids
	FROM searches s
	JOIN users u ON u.id = s.user_id
	LEFT JOIN search_areas sa ON sa.search_id = s.id`

const searchGroupBy = ` GROUP BY s.id, u.email`

// Get loads one search with its owner and area ids.
func (s *SearchStore) Get(ctx context.Context, id int64) (*domain.Search, error) {
	var row searchRow
	query := searchSelect + ` WHERE s.id = $1` + searchGroupBy

	err := sqlx.GetContext(ctx, executor(ctx, s.db), &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("search %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	search := row.toDomain()
	return &search, nil
}

// ListActive lists the searches of active users; only these participate in
// matching.
func (s *SearchStore) ListActive(ctx context.Context) ([]domain.Search, error) {
	query := searchSelect + ` WHERE u.is_active` + searchGroupBy + ` ORDER BY s.id`
	return s.list(ctx, query)
}

// ListWithUnread lists active-owner searches on the given cadence that have
// at least one result newer than their watermark.
func (s *SearchStore) ListWithUnread(ctx context.Context, cadence domain.Cadence) ([]domain.Search, error) {
	flag := "s.daily_email"
	if cadence == domain.CadenceWeekly {
		flag = "s.weekly_email"
	}
	query := searchSelect + ` WHERE u.is_active AND ` + flag + ` AND EXISTS (
			SELECT 1 FROM search_results r
			WHERE r.search_id = s.id AND r.created_at > s.last_notified_at
		)` + searchGroupBy + ` ORDER BY s.id`
	return s.list(ctx, query)
}

func (s *SearchStore) list(ctx context.Context, query string, args ...interface{}) ([]domain.Search, error) {
	var rows []searchRow
	if err := sqlx.SelectContext(ctx, executor(ctx, s.db), &rows, query, args...); err != nil {
		return nil, err
	}
	searches := make([]domain.Search, 0, len(rows))
	for i := range rows {
		searches = append(searches, rows[i].toDomain())
	}
	return searches, nil
}

// AdvanceWatermark moves the last-notified watermark forward. GREATEST
// keeps it monotonic even under concurrent roll-ups.
func (s *SearchStore) AdvanceWatermark(ctx context.Context, searchID int64, ts time.Time) error {
	_, err := executor(ctx, s.db).ExecContext(ctx,
		`UPDATE searches SET last_notified_at = GREATEST(last_notified_at, $2) WHERE id = $1`,
		searchID, ts)
	return err
}

// Create inserts a search with its area links. Used by the web layer and
// by tests; the pipeline itself never creates searches.
func (s *SearchStore) Create(ctx context.Context, search *domain.Search) error {
	row := executor(ctx, s.db).QueryRowxContext(ctx, `
		INSERT INTO searches (name, user_id, ev_networks, plug_types, dc_fast,
			only_new, daily_email, weekly_email, is_public, last_notified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		search.Name, search.UserID,
		pq.Array(search.EVNetworks), pq.Array(search.PlugTypes),
		search.DCFast, search.OnlyNew, search.DailyEmail, search.WeeklyEmail,
		search.IsPublic, search.LastNotifiedAt,
	)
	if err := row.Scan(&search.ID, &search.CreatedAt, &search.UpdatedAt); err != nil {
		return fmt.Errorf("insert search: %w", err)
	}
	for _, areaID := range search.AreaIDs {
		_, err := executor(ctx, s.db).ExecContext(ctx,
			`INSERT INTO search_areas (search_id, area_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			search.ID, areaID)
		if err != nil {
			return fmt.Errorf("link area %d: %w", areaID, err)
		}
	}
	return nil
}

// Delete removes a search; results and notifications cascade.
func (s *SearchStore) Delete(ctx context.Context, id int64) error {
	_, err := executor(ctx, s.db).ExecContext(ctx, `DELETE FROM searches WHERE id = $1`, id)
	return err
}
