package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"station_watch/internal/domain"
)

type StationStore interface {
	// Get returns (nil, nil) when the station does not exist.
	Get(ctx context.Context, id int64) (*domain.Station, error)
	All(ctx context.Context) ([]domain.Station, error)
	Create(ctx context.Context, st *domain.Station) error
	Update(ctx context.Context, st *domain.Station, recordHistory bool) error
	History(ctx context.Context, stationID int64, limit int) ([]domain.HistoryEntry, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	SetLinkedTo(ctx context.Context, stationID, linkedTo int64) error
}

type UpdateStore interface {
	Create(ctx context.Context, u *domain.Update) error
	Get(ctx context.Context, id int64) (*domain.Update, error)
}

type SearchStore interface {
	Get(ctx context.Context, id int64) (*domain.Search, error)
	ListActive(ctx context.Context) ([]domain.Search, error)
	ListWithUnread(ctx context.Context, cadence domain.Cadence) ([]domain.Search, error)
	AdvanceWatermark(ctx context.Context, searchID int64, ts time.Time) error
}

type ResultStore interface {
	Create(ctx context.Context, r *domain.SearchResult) error
	ListUnread(ctx context.Context, searchID int64, after time.Time) ([]domain.RollupItem, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, id int64) (*domain.Notification, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
}

type AreaResolver interface {
	Contains(ctx context.Context, areaIDs []int64, lat, lon float64) (bool, error)
}

type Source interface {
	Name() string
	FetchStations(ctx context.Context) ([]domain.StationFields, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// UpdatePublisher hands a committed update to the outbound event port. The
// idempotency key travels with the event so redeliveries replay the same
// publish.
type UpdatePublisher interface {
	PublishUpdate(ctx context.Context, u *domain.Update, idempotencyKey string) error
}

// Mailer delivers one rendered message.
type Mailer interface {
	Send(ctx context.Context, msg *domain.NotificationMessage) error
}
