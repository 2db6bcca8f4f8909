package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"station_watch/internal/beaconname"
	"station_watch/internal/domain"
)

// maxNameAttempts bounds beacon-name generation; the word lists are large
// enough that hitting this means something is wrong with the slug table.
const maxNameAttempts = 100

// Importer reconciles a normalized feed batch against the station store,
// appending history and emitting updates for substantive changes.
type Importer struct {
	stations  StationStore
	updates   UpdateStore
	txManager TransactionManager
	publisher UpdatePublisher
	generate  func() string
	logger    *slog.Logger
}

func NewImporter(
	stations StationStore,
	updates UpdateStore,
	txManager TransactionManager,
	publisher UpdatePublisher,
	logger *slog.Logger,
) *Importer {
	return &Importer{
		stations:  stations,
		updates:   updates,
		txManager: txManager,
		publisher: publisher,
		generate:  beaconname.Generate,
		logger:    logger.With("component", "importer"),
	}
}

// Import reconciles one batch. Each record either creates a station,
// updates one, or is skipped (unchanged, or changed only in heartbeat
// fields). Updates are published to the event port only after their
// transaction commits. Any store error fails the batch; the caller retries
// the run wholesale.
func (im *Importer) Import(ctx context.Context, batch []domain.StationFields) (*domain.ImportStats, error) {
	stats := &domain.ImportStats{Fetched: len(batch)}

	for i := range batch {
		fields := &batch[i]
		update, err := im.importOne(ctx, fields, stats)
		if err != nil {
			return stats, fmt.Errorf("import station %d: %w", fields.ID, err)
		}
		if update != nil {
			if err := im.publisher.PublishUpdate(ctx, update, uuid.NewString()); err != nil {
				return stats, fmt.Errorf("publish update for station %d: %w", fields.ID, err)
			}
		}
	}

	return stats, nil
}

func (im *Importer) importOne(ctx context.Context, fields *domain.StationFields, stats *domain.ImportStats) (*domain.Update, error) {
	existing, err := im.stations.Get(ctx, fields.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return im.createStation(ctx, fields, stats)
	}

	changed := existing.StationFields.Diff(fields)
	if len(changed) == 0 {
		stats.Skipped++
		return nil, nil
	}

	historyOnly := true
	for _, field := range changed {
		if !domain.NoHistoryFields[field] {
			historyOnly = false
			break
		}
	}

	existing.StationFields = *fields

	if historyOnly {
		// Heartbeat fields only: save without a snapshot, emit nothing.
		if err := im.stations.Update(ctx, existing, false); err != nil {
			return nil, err
		}
		stats.Skipped++
		return nil, nil
	}

	var update *domain.Update
	err = im.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := im.stations.Update(txCtx, existing, true); err != nil {
			return err
		}
		update, err = im.createUpdate(txCtx, existing, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	im.logger.Debug("station updated", "station_id", existing.ID, "fields", changed)
	stats.Updated++
	return update, nil
}

func (im *Importer) createStation(ctx context.Context, fields *domain.StationFields, stats *domain.ImportStats) (*domain.Update, error) {
	name, err := im.uniqueName(ctx)
	if err != nil {
		return nil, err
	}

	station := &domain.Station{StationFields: *fields, BeaconName: name}

	var update *domain.Update
	err = im.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := im.stations.Create(txCtx, station); err != nil {
			return err
		}
		update, err = im.createUpdate(txCtx, station, true)
		return err
	})
	if err != nil {
		return nil, err
	}

	im.logger.Debug("station created", "station_id", station.ID, "beacon_name", name)
	stats.Created++
	return update, nil
}

// createUpdate builds an update from the two most recent history
// snapshots, so the update records exactly what the store recorded.
func (im *Importer) createUpdate(ctx context.Context, station *domain.Station, isCreation bool) (*domain.Update, error) {
	history, err := im.stations.History(ctx, station.ID, 2)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("station %d has no history", station.ID)
	}

	update := &domain.Update{
		StationID:  station.ID,
		IsCreation: isCreation,
		Current:    history[0].Snapshot,
	}
	if !isCreation && len(history) > 1 {
		update.Previous = &history[1].Snapshot
	}

	if err := im.updates.Create(ctx, update); err != nil {
		return nil, err
	}
	return update, nil
}

func (im *Importer) uniqueName(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := im.generate()
		exists, err := im.stations.SlugExists(ctx, name)
		if err != nil {
			return "", err
		}
		if !exists {
			return name, nil
		}
	}
	return "", fmt.Errorf("no free beacon name after %d attempts", maxNameAttempts)
}
