//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"station_watch/internal/domain"
	"station_watch/migrations"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgis/postgis:16-3.4-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db

	s.Require().NoError(migrations.Run(db.DB))
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM notifications")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM search_results")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM search_areas")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM searches")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM areas")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM users")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM updates")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM station_history")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM stations")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func strPtr(v string) *string { return &v }

func f64Ptr(v float64) *float64 { return &v }

const testUUID = "3f1d8a5e-9b7c-4a1e-8c2d-6f0e4b9a7d21"

func makeStation(id int64, beaconName string) *domain.Station {
	return &domain.Station{
		StationFields: domain.StationFields{
			ID:               id,
			StationName:      strPtr("City Hall Garage"),
			StatusCode:       strPtr("E"),
			City:             strPtr("Portland"),
			State:            strPtr("OR"),
			StreetAddress:    strPtr("1221 SW 4th Ave"),
			Zip:              strPtr("97204"),
			EVNetwork:        strPtr("ChargePoint Network"),
			EVConnectorTypes: []string{"J1772", "CHADEMO"},
			EVNetworkIDs:     map[string][]string{"station": {"1", "2"}},
			Latitude:         f64Ptr(45.514),
			Longitude:        f64Ptr(-122.679),
		},
		BeaconName: beaconName,
	}
}

func (s *PostgresIntegrationSuite) insertUser(email string, active bool) int64 {
	var id int64
	err := s.db.GetContext(s.ctx, &id,
		"INSERT INTO users (email, is_active) VALUES ($1, $2) RETURNING id", email, active)
	s.Require().NoError(err)
	return id
}

// insertArea creates a square area roughly covering downtown Portland.
func (s *PostgresIntegrationSuite) insertArea(name string) int64 {
	var id int64
	err := s.db.GetContext(s.ctx, &id, `
		INSERT INTO areas (name, place_id, area_type, geom)
		VALUES ($1, $2, 'c', ST_Multi(ST_GeomFromText(
			'POLYGON((-122.8 45.4, -122.5 45.4, -122.5 45.6, -122.8 45.6, -122.8 45.4))', 4326)))
		RETURNING id`, name, name+"-place-id")
	s.Require().NoError(err)
	return id
}

func (s *PostgresIntegrationSuite) TestStationStore_CreateAndGet() {
	store := NewStationStore(s.db)
	station := makeStation(101, "brave-otter")

	s.NoError(store.Create(s.ctx, station))

	got, err := store.Get(s.ctx, 101)
	s.NoError(err)
	s.Require().NotNil(got)
	s.Equal("brave-otter", got.BeaconName)
	s.Equal([]string{"J1772", "CHADEMO"}, got.EVConnectorTypes)
	s.Equal(map[string][]string{"station": {"1", "2"}}, got.EVNetworkIDs)
	s.Nil(got.LinkedTo)

	var hasPoint bool
	s.NoError(s.db.GetContext(s.ctx, &hasPoint,
		"SELECT point IS NOT NULL FROM stations WHERE id = $1", 101))
	s.True(hasPoint)
}

func (s *PostgresIntegrationSuite) TestStationStore_GetMissingIsNil() {
	store := NewStationStore(s.db)

	got, err := store.Get(s.ctx, 404)
	s.NoError(err)
	s.Nil(got)
}

func (s *PostgresIntegrationSuite) TestStationStore_HistoryAppendsOnlyWhenAsked() {
	store := NewStationStore(s.db)
	station := makeStation(101, "brave-otter")

	s.NoError(store.Create(s.ctx, station))

	// Heartbeat save: no snapshot.
	now := time.Now().UTC().Truncate(time.Microsecond)
	station.UpdatedAt = &now
	s.NoError(store.Update(s.ctx, station, false))

	history, err := store.History(s.ctx, 101, 10)
	s.NoError(err)
	s.Len(history, 1)

	// Substantive save: one more snapshot, newest first.
	station.StatusCode = strPtr("T")
	s.NoError(store.Update(s.ctx, station, true))

	history, err = store.History(s.ctx, 101, 10)
	s.NoError(err)
	s.Require().Len(history, 2)
	s.Equal("T", *history[0].Snapshot.StatusCode)
	s.Equal("E", *history[1].Snapshot.StatusCode)
}

func (s *PostgresIntegrationSuite) TestStationStore_SlugExists() {
	store := NewStationStore(s.db)
	s.NoError(store.Create(s.ctx, makeStation(101, "brave-otter")))

	exists, err := store.SlugExists(s.ctx, "brave-otter")
	s.NoError(err)
	s.True(exists)

	exists, err = store.SlugExists(s.ctx, "quiet-heron")
	s.NoError(err)
	s.False(exists)
}

func (s *PostgresIntegrationSuite) TestStationStore_LinkingAndNetworks() {
	store := NewStationStore(s.db)
	s.NoError(store.Create(s.ctx, makeStation(101, "brave-otter")))
	s.NoError(store.Create(s.ctx, makeStation(102, "quiet-heron")))

	s.NoError(store.SetLinkedTo(s.ctx, 102, 101))

	got, err := store.Get(s.ctx, 102)
	s.NoError(err)
	s.Require().NotNil(got.LinkedTo)
	s.Equal(int64(101), *got.LinkedTo)

	// Linking appends no history.
	history, err := store.History(s.ctx, 102, 10)
	s.NoError(err)
	s.Len(history, 1)

	// Linked stations drop out of the network census.
	counts, err := store.AllNetworks(s.ctx)
	s.NoError(err)
	s.Require().Len(counts, 1)
	s.Equal("ChargePoint Network", counts[0].Network)
	s.Equal(1, counts[0].Count)
}

func (s *PostgresIntegrationSuite) TestUpdateStore_CreateAndGet() {
	stations := NewStationStore(s.db)
	updates := NewUpdateStore(s.db)

	station := makeStation(101, "brave-otter")
	s.NoError(stations.Create(s.ctx, station))

	prev := station.Snapshot()
	curr := station.Snapshot()
	curr.StatusCode = strPtr("T")

	upd := &domain.Update{StationID: 101, Current: curr, Previous: &prev}
	s.NoError(updates.Create(s.ctx, upd))
	s.Greater(upd.ID, int64(0))
	s.False(upd.CreatedAt.IsZero())

	got, err := updates.Get(s.ctx, upd.ID)
	s.NoError(err)
	s.Equal("T", *got.Current.StatusCode)
	s.Require().NotNil(got.Previous)
	s.Equal("E", *got.Previous.StatusCode)

	_, err = updates.Get(s.ctx, 99999)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *PostgresIntegrationSuite) TestUpdateStore_FeedHidesLinkedStations() {
	stations := NewStationStore(s.db)
	updates := NewUpdateStore(s.db)

	canonical := makeStation(101, "brave-otter")
	dup := makeStation(102, "quiet-heron")
	s.NoError(stations.Create(s.ctx, canonical))
	s.NoError(stations.Create(s.ctx, dup))

	s.NoError(updates.Create(s.ctx, &domain.Update{StationID: 101, IsCreation: true, Current: canonical.Snapshot()}))
	s.NoError(updates.Create(s.ctx, &domain.Update{StationID: 102, IsCreation: true, Current: dup.Snapshot()}))

	s.NoError(stations.SetLinkedTo(s.ctx, 102, 101))

	feed, err := updates.Feed(s.ctx, domain.FeedFilter{})
	s.NoError(err)
	s.Require().Len(feed, 1)
	s.Equal(int64(101), feed[0].StationID)

	// A station filter still reaches the linked record.
	feed, err = updates.Feed(s.ctx, domain.FeedFilter{StationID: 102})
	s.NoError(err)
	s.Len(feed, 1)
}

func (s *PostgresIntegrationSuite) TestSearchStore_RoundTripWithAreas() {
	store := NewSearchStore(s.db)
	userID := s.insertUser("driver@example.com", true)
	areaID := s.insertArea("Portland")

	search := &domain.Search{
		Name:       "Fast chargers",
		UserID:     userID,
		EVNetworks: []string{"ChargePoint Network"},
		PlugTypes:  []string{"J1772"},
		DCFast:     true,
		DailyEmail: true,
		AreaIDs:    []int64{areaID},
	}
	s.NoError(store.Create(s.ctx, search))
	s.Greater(search.ID, int64(0))

	got, err := store.Get(s.ctx, search.ID)
	s.NoError(err)
	s.Equal("driver@example.com", got.UserEmail)
	s.Equal([]string{"ChargePoint Network"}, got.EVNetworks)
	s.Equal([]int64{areaID}, got.AreaIDs)
	s.True(got.DCFast)
}

func (s *PostgresIntegrationSuite) TestSearchStore_ListActiveExcludesInactiveUsers() {
	store := NewSearchStore(s.db)
	activeUser := s.insertUser("active@example.com", true)
	inactiveUser := s.insertUser("inactive@example.com", false)

	s.NoError(store.Create(s.ctx, &domain.Search{Name: "a", UserID: activeUser}))
	s.NoError(store.Create(s.ctx, &domain.Search{Name: "b", UserID: inactiveUser}))

	searches, err := store.ListActive(s.ctx)
	s.NoError(err)
	s.Require().Len(searches, 1)
	s.Equal("a", searches[0].Name)
}

func (s *PostgresIntegrationSuite) TestSearchStore_WatermarkIsMonotonic() {
	store := NewSearchStore(s.db)
	userID := s.insertUser("driver@example.com", true)

	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	search := &domain.Search{Name: "a", UserID: userID, LastNotifiedAt: t0}
	s.NoError(store.Create(s.ctx, search))

	t1 := t0.Add(24 * time.Hour)
	s.NoError(store.AdvanceWatermark(s.ctx, search.ID, t1))

	// Moving backwards is a no-op.
	s.NoError(store.AdvanceWatermark(s.ctx, search.ID, t0))

	got, err := store.Get(s.ctx, search.ID)
	s.NoError(err)
	s.WithinDuration(t1, got.LastNotifiedAt, time.Second)
}

func (s *PostgresIntegrationSuite) TestResultStore_DuplicateKeyRejected() {
	stations := NewStationStore(s.db)
	updates := NewUpdateStore(s.db)
	searches := NewSearchStore(s.db)
	results := NewResultStore(s.db)

	station := makeStation(101, "brave-otter")
	s.NoError(stations.Create(s.ctx, station))
	upd := &domain.Update{StationID: 101, IsCreation: true, Current: station.Snapshot()}
	s.NoError(updates.Create(s.ctx, upd))

	userID := s.insertUser("driver@example.com", true)
	search := &domain.Search{Name: "a", UserID: userID}
	s.NoError(searches.Create(s.ctx, search))

	result := &domain.SearchResult{SearchID: search.ID, UpdateID: upd.ID, IdempotencyKey: testUUID}
	s.NoError(results.Create(s.ctx, result))
	s.Greater(result.ID, int64(0))

	replay := &domain.SearchResult{SearchID: search.ID, UpdateID: upd.ID, IdempotencyKey: testUUID}
	s.ErrorIs(results.Create(s.ctx, replay), domain.ErrDuplicateResult)
}

func (s *PostgresIntegrationSuite) TestResultStore_ListUnreadHonorsWatermark() {
	stations := NewStationStore(s.db)
	updates := NewUpdateStore(s.db)
	searches := NewSearchStore(s.db)
	results := NewResultStore(s.db)

	station := makeStation(101, "brave-otter")
	s.NoError(stations.Create(s.ctx, station))

	userID := s.insertUser("driver@example.com", true)
	search := &domain.Search{Name: "a", UserID: userID}
	s.NoError(searches.Create(s.ctx, search))

	upd1 := &domain.Update{StationID: 101, IsCreation: true, Current: station.Snapshot()}
	s.NoError(updates.Create(s.ctx, upd1))
	upd2 := &domain.Update{StationID: 101, Current: station.Snapshot()}
	s.NoError(updates.Create(s.ctx, upd2))

	r1 := &domain.SearchResult{SearchID: search.ID, UpdateID: upd1.ID, IdempotencyKey: testUUID}
	s.NoError(results.Create(s.ctx, r1))
	r2 := &domain.SearchResult{SearchID: search.ID, UpdateID: upd2.ID, IdempotencyKey: "6a0f2c3b-1d4e-4f5a-9b8c-7e6d5a4b3c2f"}
	s.NoError(results.Create(s.ctx, r2))

	items, err := results.ListUnread(s.ctx, search.ID, time.Time{})
	s.NoError(err)
	s.Len(items, 2)

	// Past the first result's timestamp only the second remains.
	items, err = results.ListUnread(s.ctx, search.ID, r1.CreatedAt)
	s.NoError(err)
	s.Require().Len(items, 1)
	s.Equal(r2.ID, items[0].Result.ID)
	s.Equal(upd2.ID, items[0].Update.ID)
}

func (s *PostgresIntegrationSuite) TestNotificationStore_MarkSentOnce() {
	searches := NewSearchStore(s.db)
	store := NewNotificationStore(s.db)

	userID := s.insertUser("driver@example.com", true)
	search := &domain.Search{Name: "a", UserID: userID}
	s.NoError(searches.Create(s.ctx, search))

	n := &domain.Notification{
		SearchID: search.ID,
		UserID:   userID,
		Type:     domain.NotificationEmail,
		Message: domain.NotificationMessage{
			Subject:   "2 station updates",
			Body:      "text",
			BodyHTML:  "<p>html</p>",
			Recipient: "driver@example.com",
		},
	}
	s.NoError(store.Create(s.ctx, n))

	got, err := store.Get(s.ctx, n.ID)
	s.NoError(err)
	s.Nil(got.SentAt)
	s.Equal("2 station updates", got.Message.Subject)

	first := time.Now().UTC().Truncate(time.Microsecond)
	s.NoError(store.MarkSent(s.ctx, n.ID, first))

	// A second stamp must not move sent_at.
	s.NoError(store.MarkSent(s.ctx, n.ID, first.Add(time.Hour)))

	got, err = store.Get(s.ctx, n.ID)
	s.NoError(err)
	s.Require().NotNil(got.SentAt)
	s.WithinDuration(first, *got.SentAt, time.Second)
}

func (s *PostgresIntegrationSuite) TestAreaStore_Contains() {
	store := NewAreaStore(s.db)
	areaID := s.insertArea("Portland")

	inside, err := store.Contains(s.ctx, []int64{areaID}, 45.514, -122.679)
	s.NoError(err)
	s.True(inside)

	inside, err = store.Contains(s.ctx, []int64{areaID}, 40.0, -100.0)
	s.NoError(err)
	s.False(inside)

	inside, err = store.Contains(s.ctx, nil, 45.514, -122.679)
	s.NoError(err)
	s.False(inside)
}

func (s *PostgresIntegrationSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)
	store := NewStationStore(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		if err := store.Create(ctx, makeStation(101, "brave-otter")); err != nil {
			return err
		}
		return context.Canceled
	})
	s.Error(err)

	got, err := store.Get(s.ctx, 101)
	s.NoError(err)
	s.Nil(got)
}
