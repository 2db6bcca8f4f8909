package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"station_watch/internal/domain"
	"station_watch/internal/render"
)

// RollupConfig tunes roll-up delivery.
type RollupConfig struct {
	Site        render.Site
	MaxAttempts int
	Backoff     time.Duration
}

// Rollup batches unread results per search into one notification per run
// and hands it to delivery.
type Rollup struct {
	searches      SearchStore
	results       ResultStore
	notifications NotificationStore
	txManager     TransactionManager
	mailer        Mailer
	logger        *slog.Logger
	cfg           RollupConfig
	now           func() time.Time
}

func NewRollup(
	searches SearchStore,
	results ResultStore,
	notifications NotificationStore,
	txManager TransactionManager,
	mailer Mailer,
	logger *slog.Logger,
	cfg RollupConfig,
) *Rollup {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = 3 * time.Second
	}
	return &Rollup{
		searches:      searches,
		results:       results,
		notifications: notifications,
		txManager:     txManager,
		mailer:        mailer,
		logger:        logger.With("component", "rollup"),
		cfg:           cfg,
		now:           time.Now,
	}
}

// RunDaily rolls up every daily-cadence search with unread results.
func (r *Rollup) RunDaily(ctx context.Context) error {
	return r.run(ctx, domain.CadenceDaily)
}

// RunWeekly rolls up every weekly-cadence search with unread results.
func (r *Rollup) RunWeekly(ctx context.Context) error {
	return r.run(ctx, domain.CadenceWeekly)
}

func (r *Rollup) run(ctx context.Context, cadence domain.Cadence) error {
	eligible, err := r.searches.ListWithUnread(ctx, cadence)
	if err != nil {
		return fmt.Errorf("list %s searches: %w", cadence, err)
	}

	r.logger.Info("roll-up run", "cadence", cadence, "eligible", len(eligible))

	for i := range eligible {
		search := &eligible[i]
		notifID, err := r.CreateNotification(ctx, search.ID, cadence, r.now())
		if errors.Is(err, domain.ErrNothingToDo) {
			// Another run already advanced the watermark; nothing lost.
			continue
		}
		if err != nil {
			r.logger.Error("create notification failed", "search_id", search.ID, "error", err)
			continue
		}
		if err := r.Deliver(ctx, notifID); err != nil {
			r.logger.Error("delivery failed", "notification_id", notifID, "error", err)
		}
	}
	return nil
}

// CreateNotification rolls all unread results for one search into a single
// unsent notification. The watermark advance and the notification insert
// share one transaction, so a crash in between cannot lose or double the
// roll-up. Returns domain.ErrNothingToDo when there are no unread results.
func (r *Rollup) CreateNotification(ctx context.Context, searchID int64, cadence domain.Cadence, now time.Time) (int64, error) {
	var notifID int64

	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		search, err := r.searches.Get(txCtx, searchID)
		if err != nil {
			return err
		}

		items, err := r.results.ListUnread(txCtx, searchID, search.LastNotifiedAt)
		if err != nil {
			return fmt.Errorf("list unread results: %w", err)
		}
		if len(items) == 0 {
			return domain.ErrNothingToDo
		}

		// Newest first: items[0] carries the new watermark.
		if err := r.searches.AdvanceWatermark(txCtx, searchID, items[0].Result.CreatedAt); err != nil {
			return fmt.Errorf("advance watermark: %w", err)
		}

		message, err := render.RollupEmail(search, items, cadence, r.cfg.Site)
		if err != nil {
			return err
		}

		notification := &domain.Notification{
			SearchID: search.ID,
			UserID:   search.UserID,
			Type:     domain.NotificationEmail,
			Message:  message,
		}
		if err := r.notifications.Create(txCtx, notification); err != nil {
			return fmt.Errorf("create notification: %w", err)
		}
		notifID = notification.ID
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.Info("notification created", "notification_id", notifID, "search_id", searchID, "cadence", cadence)
	return notifID, nil
}

// Deliver sends one notification. A notification already stamped sent is a
// no-op, so redelivery after a crash or queue replay is safe. Send failures
// retry with linear backoff up to the configured attempt count; the
// notification stays unsent and a later run picks it up.
func (r *Rollup) Deliver(ctx context.Context, notificationID int64) error {
	notification, err := r.notifications.Get(ctx, notificationID)
	if err != nil {
		return err
	}
	if notification.SentAt != nil {
		r.logger.Info("notification already sent", "notification_id", notificationID)
		return nil
	}

	var sendErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		sendErr = r.mailer.Send(ctx, &notification.Message)
		if sendErr == nil {
			break
		}
		if attempt == r.cfg.MaxAttempts {
			return fmt.Errorf("send after %d attempts: %w", r.cfg.MaxAttempts, sendErr)
		}
		r.logger.Warn("send failed, retrying",
			"notification_id", notificationID,
			"attempt", attempt,
			"error", sendErr,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.Backoff * time.Duration(attempt)):
		}
	}

	if err := r.notifications.MarkSent(ctx, notificationID, r.now()); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}

	r.logger.Info("notification sent",
		"notification_id", notificationID,
		"recipient", notification.Message.Recipient,
	)
	return nil
}
