package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"station_watch/internal/domain"
	"station_watch/internal/render"
	"station_watch/internal/service/mocks"
)

type RollupTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	searches      *mocks.MockSearchStore
	results       *mocks.MockResultStore
	notifications *mocks.MockNotificationStore
	txManager     *mocks.MockTransactionManager
	mailer        *mocks.MockMailer

	rollup *Rollup
}

func (s *RollupTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.searches = mocks.NewMockSearchStore(s.ctrl)
	s.results = mocks.NewMockResultStore(s.ctrl)
	s.notifications = mocks.NewMockNotificationStore(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.mailer = mocks.NewMockMailer(s.ctrl)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.rollup = NewRollup(
		s.searches,
		s.results,
		s.notifications,
		s.txManager,
		s.mailer,
		logger,
		RollupConfig{
			Site:        render.Site{Name: "Station Watch", BaseURL: "https://stationwatch.example.com"},
			MaxAttempts: 3,
			Backoff:     time.Millisecond,
		},
	)
}

func (s *RollupTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestRollupTestSuite(t *testing.T) {
	suite.Run(t, new(RollupTestSuite))
}

func (s *RollupTestSuite) expectTransaction(ctx context.Context) {
	s.txManager.EXPECT().WithTransaction(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
}

func rollupSearch() *domain.Search {
	return &domain.Search{
		ID:             7,
		Name:           "Fast chargers near work",
		UserID:         42,
		UserEmail:      "driver@example.com",
		LastNotifiedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func rollupItems() []domain.RollupItem {
	newest := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	older := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	return []domain.RollupItem{
		{
			Result: domain.SearchResult{ID: 900, SearchID: 7, UpdateID: 500, CreatedAt: newest},
			Update: domain.Update{
				ID:         500,
				StationID:  101,
				IsCreation: true,
				CreatedAt:  newest,
				Current:    domain.Snapshot{StationFields: baseFields(101), BeaconName: "brave-otter"},
			},
		},
		{
			Result: domain.SearchResult{ID: 899, SearchID: 7, UpdateID: 499, CreatedAt: older},
			Update: domain.Update{
				ID:        499,
				StationID: 102,
				CreatedAt: older,
				Current:   domain.Snapshot{StationFields: baseFields(102), BeaconName: "quiet-heron"},
			},
		},
	}
}

func (s *RollupTestSuite) TestCreateNotification() {
	ctx := context.Background()
	search := rollupSearch()
	items := rollupItems()
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

	s.expectTransaction(ctx)
	s.searches.EXPECT().Get(ctx, int64(7)).Return(search, nil)
	s.results.EXPECT().ListUnread(ctx, int64(7), search.LastNotifiedAt).Return(items, nil)
	s.searches.EXPECT().AdvanceWatermark(ctx, int64(7), items[0].Result.CreatedAt).Return(nil)
	s.notifications.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, n *domain.Notification) error {
			s.Equal(int64(7), n.SearchID)
			s.Equal(int64(42), n.UserID)
			s.Equal(domain.NotificationEmail, n.Type)
			s.Equal("driver@example.com", n.Message.Recipient)
			s.Contains(n.Message.Subject, "2 station updates")
			s.Contains(n.Message.Body, "brave-otter")
			n.ID = 60
			return nil
		},
	)

	notifID, err := s.rollup.CreateNotification(ctx, 7, domain.CadenceDaily, now)

	s.NoError(err)
	s.Equal(int64(60), notifID)
}

func (s *RollupTestSuite) TestCreateNotification_NothingUnread() {
	ctx := context.Background()
	search := rollupSearch()
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

	s.expectTransaction(ctx)
	s.searches.EXPECT().Get(ctx, int64(7)).Return(search, nil)
	s.results.EXPECT().ListUnread(ctx, int64(7), search.LastNotifiedAt).Return(nil, nil)

	_, err := s.rollup.CreateNotification(ctx, 7, domain.CadenceDaily, now)

	s.ErrorIs(err, domain.ErrNothingToDo)
}

func (s *RollupTestSuite) TestDeliver_SendsAndMarks() {
	ctx := context.Background()

	notification := &domain.Notification{
		ID:       60,
		SearchID: 7,
		UserID:   42,
		Type:     domain.NotificationEmail,
		Message:  domain.NotificationMessage{Subject: "2 station updates", Recipient: "driver@example.com"},
	}
	s.notifications.EXPECT().Get(ctx, int64(60)).Return(notification, nil)
	s.mailer.EXPECT().Send(ctx, &notification.Message).Return(nil)
	s.notifications.EXPECT().MarkSent(ctx, int64(60), gomock.Any()).Return(nil)

	s.NoError(s.rollup.Deliver(ctx, 60))
}

func (s *RollupTestSuite) TestDeliver_AlreadySentIsNoop() {
	ctx := context.Background()
	sentAt := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)

	notification := &domain.Notification{ID: 60, SentAt: &sentAt}
	s.notifications.EXPECT().Get(ctx, int64(60)).Return(notification, nil)

	s.NoError(s.rollup.Deliver(ctx, 60))
}

func (s *RollupTestSuite) TestDeliver_RetriesTransientFailure() {
	ctx := context.Background()

	notification := &domain.Notification{
		ID:      60,
		Message: domain.NotificationMessage{Recipient: "driver@example.com"},
	}
	s.notifications.EXPECT().Get(ctx, int64(60)).Return(notification, nil)
	gomock.InOrder(
		s.mailer.EXPECT().Send(ctx, &notification.Message).Return(errors.New("connection refused")),
		s.mailer.EXPECT().Send(ctx, &notification.Message).Return(nil),
	)
	s.notifications.EXPECT().MarkSent(ctx, int64(60), gomock.Any()).Return(nil)

	s.NoError(s.rollup.Deliver(ctx, 60))
}

func (s *RollupTestSuite) TestDeliver_GivesUpAfterMaxAttempts() {
	ctx := context.Background()

	notification := &domain.Notification{
		ID:      60,
		Message: domain.NotificationMessage{Recipient: "driver@example.com"},
	}
	s.notifications.EXPECT().Get(ctx, int64(60)).Return(notification, nil)
	s.mailer.EXPECT().Send(ctx, &notification.Message).Return(errors.New("connection refused")).Times(3)

	s.Error(s.rollup.Deliver(ctx, 60))
}

func (s *RollupTestSuite) TestRunDaily_SkipsDrainedSearch() {
	ctx := context.Background()
	search := rollupSearch()

	s.searches.EXPECT().ListWithUnread(ctx, domain.CadenceDaily).Return([]domain.Search{*search}, nil)

	// Another run drained the results between listing and the transaction.
	s.expectTransaction(ctx)
	s.searches.EXPECT().Get(ctx, int64(7)).Return(search, nil)
	s.results.EXPECT().ListUnread(ctx, int64(7), search.LastNotifiedAt).Return(nil, nil)

	s.NoError(s.rollup.RunDaily(ctx))
}
