package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Heartbeat/internal/domain/notification"
)

var _ notification.Repo = (*NotificationRepoImpl)(nil)

type NotificationRepoImpl struct{ db *DB }

func NewNotificationRepo(db *DB) *NotificationRepoImpl { return &NotificationRepoImpl{db: db} }

const (
	qNotifInsert = `
INSERT INTO notifications (event_id, check_id, subscriber_id, channel, kind, status, error, sent_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()))
ON CONFLICT (event_id, subscriber_id) WHERE status = 'sent' DO NOTHING
RETURNING id, sent_at;
`
	qNotifSentTo = `
SELECT subscriber_id
FROM notifications
WHERE event_id = $1 AND status = 'sent';
`
	qNotifByCheck = `
SELECT id, event_id, check_id, subscriber_id, channel, kind, status, error, sent_at
FROM notifications
WHERE check_id = $1
ORDER BY sent_at DESC
LIMIT $2;
`
)

func (r *NotificationRepoImpl) Create(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := r.db.execQueryer(ctx).QueryRow(ctx, qNotifInsert,
		n.EventID,
		n.CheckID,
		n.SubscriberID,
		string(n.Channel),
		string(n.Kind),
		string(n.Status),
		n.Error,
		nullTime(n.SentAt),
	).Scan(&n.ID, &n.SentAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrConflict
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepoImpl) ListByCheck(ctx context.Context, checkID int64, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qNotifByCheck, checkID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*notification.Notification, 0, limit)
	for rows.Next() {
		var n notification.Notification
		if err := rows.Scan(&n.ID, &n.EventID, &n.CheckID, &n.SubscriberID, &n.Channel, &n.Kind, &n.Status, &n.Error, &n.SentAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// SentTo lists subscribers already notified successfully for eventID.
func (r *NotificationRepoImpl) SentTo(ctx context.Context, eventID string) ([]int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qNotifSentTo, eventID)
	if err != nil {
		return nil, fmt.Errorf("query sent notifications: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan sent notifications: %w", err)
	}
	return ids, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
