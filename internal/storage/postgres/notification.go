package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"station_watch/internal/domain"
)

// NotificationStore persists rendered roll-up messages.
type NotificationStore struct {
	db *sqlx.DB
}

func NewNotificationStore(db *sqlx.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

// Create inserts an unsent notification and fills its ID and CreatedAt.
func (s *NotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	message, err := json.Marshal(n.Message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	row := executor(ctx, s.db).QueryRowxContext(ctx, `
		INSERT INTO notifications (search_id, user_id, type, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		n.SearchID, n.UserID, string(n.Type), message,
	)
	return row.Scan(&n.ID, &n.CreatedAt)
}

// Get loads one notification by id.
func (s *NotificationStore) Get(ctx context.Context, id int64) (*domain.Notification, error) {
	var n domain.Notification
	var ntype string
	var message []byte

	row := executor(ctx, s.db).QueryRowxContext(ctx, `
		SELECT id, search_id, user_id, type, message, created_at, sent_at
		FROM notifications
		WHERE id = $1`, id)
	err := row.Scan(&n.ID, &n.SearchID, &n.UserID, &ntype, &message, &n.CreatedAt, &n.SentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	n.Type = domain.NotificationType(ntype)
	if err := json.Unmarshal(message, &n.Message); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &n, nil
}

// MarkSent stamps sent_at exactly once. A notification already stamped is
// left untouched, which makes re-delivery a no-op.
func (s *NotificationStore) MarkSent(ctx context.Context, id int64, at time.Time) error {
	_, err := executor(ctx, s.db).ExecContext(ctx,
		`UPDATE notifications SET sent_at = $2 WHERE id = $1 AND sent_at IS NULL`,
		id, at)
	return err
}
