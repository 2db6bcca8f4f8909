package service

import (
	"context"
	"log/slog"
	"sort"

	"station_watch/internal/domain"
)

// Linker deduplicates stations that describe the same physical site.
// Within each duplicate group the lowest id is canonical; every other
// member points at it. Linking is idempotent and never touches history.
type Linker struct {
	stations StationStore
	logger   *slog.Logger
}

func NewLinker(stations StationStore, logger *slog.Logger) *Linker {
	return &Linker{
		stations: stations,
		logger:   logger.With("component", "linker"),
	}
}

// Link groups all stations by their case-insensitive duplicate key and
// points non-canonical members at the lowest-id station in their group.
// Returns the number of stations whose link changed.
func (l *Linker) Link(ctx context.Context) (int, error) {
	stations, err := l.stations.All(ctx)
	if err != nil {
		return 0, err
	}

	groups := make(map[string][]*domain.Station)
	for i := range stations {
		key := stations[i].DuplicateKey()
		groups[key] = append(groups[key], &stations[i])
	}

	linked := 0
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		// Lowest id is a stable tie-break independent of scan order.
		sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })
		canonical := group[0]
		for _, station := range group[1:] {
			if station.LinkedTo != nil && *station.LinkedTo == canonical.ID {
				continue
			}
			if err := l.stations.SetLinkedTo(ctx, station.ID, canonical.ID); err != nil {
				return linked, err
			}
			linked++
		}
	}

	if linked > 0 {
		l.logger.Info("linked duplicate stations", "count", linked)
	}
	return linked, nil
}
