package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"station_watch/internal/domain"
)

// AreaStore resolves geographic areas. Geometry lives entirely in PostGIS;
// containment against the union of a search's areas is a single query.
type AreaStore struct {
	db *sqlx.DB
}

func NewAreaStore(db *sqlx.DB) *AreaStore {
	return &AreaStore{db: db}
}

// Contains reports whether the point lies within the union of the given
// areas. An empty or unknown area set contains nothing.
func (s *AreaStore) Contains(ctx context.Context, areaIDs []int64, lat, lon float64) (bool, error) {
	if len(areaIDs) == 0 {
		return false, nil
	}
	var contains bool
	err := sqlx.GetContext(ctx, executor(ctx, s.db), &contains, `
		SELECT COALESCE(ST_Covers(ST_Union(geom), ST_SetSRID(ST_MakePoint($2, $3), 4326)), FALSE)
		FROM areas
		WHERE id = ANY($1) AND geom IS NOT NULL`,
		pq.Array(areaIDs), lon, lat,
	)
	return contains, err
}

// List returns area names and ids, for the web layer's pickers.
func (s *AreaStore) List(ctx context.Context) ([]domain.Area, error) {
	var areas []domain.Area
	err := sqlx.SelectContext(ctx, executor(ctx, s.db), &areas, `
		SELECT id, name, place_id, area_type FROM areas ORDER BY name`)
	return areas, err
}
