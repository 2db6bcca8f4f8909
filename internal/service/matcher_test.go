package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"station_watch/internal/domain"
	"station_watch/internal/service/mocks"
)

type MatcherTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	searches *mocks.MockSearchStore
	results  *mocks.MockResultStore
	areas    *mocks.MockAreaResolver

	matcher *Matcher
	logger  *slog.Logger
}

func (s *MatcherTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.searches = mocks.NewMockSearchStore(s.ctrl)
	s.results = mocks.NewMockResultStore(s.ctrl)
	s.areas = mocks.NewMockAreaResolver(s.ctrl)

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.matcher = NewMatcher(s.searches, s.results, s.areas, s.logger)
}

func (s *MatcherTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestMatcherTestSuite(t *testing.T) {
	suite.Run(t, new(MatcherTestSuite))
}

func makeUpdate(isCreation bool) *domain.Update {
	return &domain.Update{
		ID:         500,
		StationID:  101,
		IsCreation: isCreation,
		Current: domain.Snapshot{
			StationFields: baseFields(101),
			BeaconName:    "brave-otter",
		},
	}
}

const testKey = "3f1d8a5e-9b7c-4a1e-8c2d-6f0e4b9a7d21"

func (s *MatcherTestSuite) TestPublish_MatchRecordsResult() {
	ctx := context.Background()
	update := makeUpdate(true)

	search := domain.Search{
		ID:         7,
		EVNetworks: []string{"ChargePoint Network"},
		PlugTypes:  []string{"J1772", "CHADEMO"},
	}
	s.searches.EXPECT().ListActive(ctx).Return([]domain.Search{search}, nil)

	s.results.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, r *domain.SearchResult) error {
			s.Equal(int64(7), r.SearchID)
			s.Equal(int64(500), r.UpdateID)
			s.Equal(testKey, r.IdempotencyKey)
			r.ID = 900
			return nil
		},
	)

	success, failed, err := s.matcher.Publish(ctx, update, testKey)

	s.NoError(err)
	s.Equal(1, success)
	s.Empty(failed)
}

func (s *MatcherTestSuite) TestPublish_NetworkMismatch() {
	ctx := context.Background()
	update := makeUpdate(true)

	search := domain.Search{ID: 7, EVNetworks: []string{"Electrify America"}}
	s.searches.EXPECT().ListActive(ctx).Return([]domain.Search{search}, nil)

	success, failed, err := s.matcher.Publish(ctx, update, testKey)

	s.NoError(err)
	s.Equal(0, success)
	s.Empty(failed)
}

func (s *MatcherTestSuite) TestPublish_PlugTypesNeedOverlap() {
	ctx := context.Background()
	update := makeUpdate(true)

	noOverlap := domain.Search{ID: 7, PlugTypes: []string{"TESLA"}}
	overlap := domain.Search{ID: 8, PlugTypes: []string{"TESLA", "J1772"}}
	s.searches.EXPECT().ListActive(ctx).Return([]domain.Search{noOverlap, overlap}, nil)

	s.results.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, r *domain.SearchResult) error {
			s.Equal(int64(8), r.SearchID)
			return nil
		},
	)

	success, _, err := s.matcher.Publish(ctx, update, testKey)

	s.NoError(err)
	s.Equal(1, success)
}

func (s *MatcherTestSuite) TestPublish_AreaContainment() {
	ctx := context.Background()
	update := makeUpdate(true)

	inside := domain.Search{ID: 7, AreaIDs: []int64{1, 2}}
	outside := domain.Search{ID: 8, AreaIDs: []int64{3}}
	s.searches.EXPECT().ListActive(ctx).Return([]domain.Search{inside, outside}, nil)

	s.areas.EXPECT().Contains(ctx, []int64{1, 2}, 45.514, -122.679).Return(true, nil)
	s.areas.EXPECT().Contains(ctx, []int64{3}, 45.514, -122.679).Return(false, nil)

	s.results.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, r *domain.SearchResult) error {
			s.Equal(int64(7), r.SearchID)
			return nil
		},
	)

	success, _, err := s.matcher.Publish(ctx, update, testKey)

	s.NoError(err)
	s.Equal(1, success)
}

func (s *MatcherTestSuite) TestPublish_NoPointSkipsAreaCriterion() {
	ctx := context.Background()
	update := makeUpdate(true)
	update.Current.Latitude = nil
	update.Current.Longitude = nil

	search := domain.Search{ID: 7, AreaIDs: []int64{1}}
	s.searches.EXPECT().ListActive(ctx).Return([]domain.Search{search}, nil)

	s.results.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	success, _, err := s.matcher.Publish(ctx, update, testKey)

	s.NoError(err)
	s.Equal(1, success)
}

func (s *MatcherTestSuite) TestPublish_ZeroDCFastExcluded() {
	ctx := context.Background()
	update := makeUpdate(true)
	update.Current.EVDCFastNum = i64Ptr(0)

	search := domain.Search{ID: 7, DCFast: true}
	s.searches.EXPECT().ListActive(ctx).Return([]domain.Search{search}, nil)

	success, _, err := s.matcher.Publish(ctx, update, testKey)

	s.NoError(err)
	s.Equal(0, success)
}

func (s *MatcherTestSuite) TestPublish_UnknownDCFastStillMatches() {
	ctx := context.Background()
	update := makeUpdate(true)
	update.Current.EVDCFastNum = nil

	search := domain.Search{ID: 7, DCFast: true}
	s.searches.EXPECT().ListActive(ctx).Return([]domain.Search{search}, nil)

	s.results.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	success, _, err := s.matcher.Publish(ctx, update, testKey)

	s.NoError(err)
	s.Equal(1, success)
}

func (s *MatcherTestSuite) TestPublish_OnlyNewExcludesChanges() {
	ctx := context.Background()
	update := makeUpdate(false)

	search := domain.Search{ID: 7, OnlyNew: true}
	s.searches.EXPECT().ListActive(ctx).Return([]domain.Search{search}, nil)

	success, _, err := s.matcher.Publish(ctx, update, testKey)

	s.NoError(err)
	s.Equal(0, success)
}

func (s *MatcherTestSuite) TestPublish_DuplicateKeyReported() {
	ctx := context.Background()
	update := makeUpdate(true)

	search := domain.Search{ID: 7}
	s.searches.EXPECT().ListActive(ctx).Return([]domain.Search{search}, nil)

	s.results.EXPECT().Create(ctx, gomock.Any()).Return(
		fmt.Errorf("search 7 update 500: %w", domain.ErrDuplicateResult))

	success, failed, err := s.matcher.Publish(ctx, update, testKey)

	s.NoError(err)
	s.Equal(0, success)
	s.Len(failed, 1)
	s.Equal(int64(7), failed[0].ID)
}
