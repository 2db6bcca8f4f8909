package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"station_watch/internal/domain"
)

// Matcher fans one update out to every search whose criteria it satisfies,
// recording exactly-once delivery through the result store's idempotency
// constraint.
type Matcher struct {
	searches SearchStore
	results  ResultStore
	areas    AreaResolver
	logger   *slog.Logger
}

func NewMatcher(searches SearchStore, results ResultStore, areas AreaResolver, logger *slog.Logger) *Matcher {
	return &Matcher{
		searches: searches,
		results:  results,
		areas:    areas,
		logger:   logger.With("component", "matcher"),
	}
}

// Publish evaluates the update against all searches of active users and
// creates one result per match under the given idempotency key. A
// key collision means the pair was already delivered (a reprocessed
// event); it is reported in the returned slice, not as a failure.
func (m *Matcher) Publish(ctx context.Context, update *domain.Update, idempotencyKey string) (int, []domain.Search, error) {
	searches, err := m.searches.ListActive(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("list searches: %w", err)
	}

	success := 0
	var failed []domain.Search

	for i := range searches {
		search := &searches[i]
		ok, err := m.matches(ctx, search, update)
		if err != nil {
			return success, failed, fmt.Errorf("evaluate search %d: %w", search.ID, err)
		}
		if !ok {
			continue
		}

		result := &domain.SearchResult{
			SearchID:       search.ID,
			UpdateID:       update.ID,
			IdempotencyKey: idempotencyKey,
		}
		err = m.results.Create(ctx, result)
		switch {
		case err == nil:
			success++
		case errors.Is(err, domain.ErrDuplicateResult):
			m.logger.Warn("result already delivered",
				"search_id", search.ID,
				"update_id", update.ID,
				"idempotency_key", idempotencyKey,
			)
			failed = append(failed, *search)
		default:
			return success, failed, fmt.Errorf("create result for search %d: %w", search.ID, err)
		}
	}

	m.logger.Info("published update",
		"update_id", update.ID,
		"matched", success,
		"duplicates", len(failed),
	)
	return success, failed, nil
}

// matches applies the subscription criteria to the update's current
// snapshot. Empty criterion sets are unconstrained.
func (m *Matcher) matches(ctx context.Context, search *domain.Search, update *domain.Update) (bool, error) {
	station := &update.Current

	// Network: match when the search names it or names none.
	if station.EVNetwork != nil && len(search.EVNetworks) > 0 {
		if !slices.Contains(search.EVNetworks, *station.EVNetwork) {
			return false, nil
		}
	}

	// Plug types: at least one shared connector, unless either side lists
	// none.
	if len(station.EVConnectorTypes) > 0 && len(search.PlugTypes) > 0 {
		shared := false
		for _, plug := range station.EVConnectorTypes {
			if slices.Contains(search.PlugTypes, plug) {
				shared = true
				break
			}
		}
		if !shared {
			return false, nil
		}
	}

	// Areas: the station point must fall inside the union of the search's
	// areas. Searches with no areas match everywhere; stations with no
	// point skip the criterion.
	if station.HasPoint() && len(search.AreaIDs) > 0 {
		inside, err := m.areas.Contains(ctx, search.AreaIDs, *station.Latitude, *station.Longitude)
		if err != nil {
			return false, err
		}
		if !inside {
			return false, nil
		}
	}

	// A station with zero DC-fast ports is excluded from searches that ask
	// for DC fast. DC-fast stations still match everyone; the rule is
	// deliberately one-sided.
	if station.EVDCFastNum != nil && *station.EVDCFastNum == 0 && search.DCFast {
		return false, nil
	}

	// Change events are excluded from new-stations-only searches.
	if !update.IsCreation && search.OnlyNew {
		return false, nil
	}

	return true, nil
}
