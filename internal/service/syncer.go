package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"station_watch/internal/domain"
)

// Syncer runs one full synchronization: fetch the upstream snapshot,
// reconcile it into the store, then relink duplicates.
type Syncer struct {
	source   Source
	importer *Importer
	linker   *Linker
	logger   *slog.Logger
}

func NewSyncer(source Source, importer *Importer, linker *Linker, logger *slog.Logger) *Syncer {
	return &Syncer{
		source:   source,
		importer: importer,
		linker:   linker,
		logger:   logger.With("component", "syncer"),
	}
}

// Sync fetches, imports and links. A fetch failure (after the source's own
// retries) or a malformed record fails the run with no partial mutation of
// unprocessed records; the whole run is retried by the scheduler's next
// tick.
func (s *Syncer) Sync(ctx context.Context) (*domain.ImportStats, error) {
	startTime := time.Now()
	s.logger.Info("starting sync", "source", s.source.Name())

	batch, err := s.source.FetchStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch stations: %w", err)
	}

	stats, err := s.importer.Import(ctx, batch)
	if err != nil {
		return stats, fmt.Errorf("import: %w", err)
	}

	linked, err := s.linker.Link(ctx)
	if err != nil {
		return stats, fmt.Errorf("link stations: %w", err)
	}
	stats.Linked = linked
	stats.Duration = time.Since(startTime)

	s.logger.Info("sync completed",
		"fetched", stats.Fetched,
		"created", stats.Created,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"linked", stats.Linked,
		"duration", stats.Duration,
	)
	return stats, nil
}
