package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/subscriber"
)

var _ subscriber.Repo = (*SubscriberRepoImpl)(nil)

type SubscriberRepoImpl struct{ db *DB }

func NewSubscriberRepo(db *DB) *SubscriberRepoImpl { return &SubscriberRepoImpl{db: db} }

const subscriberCols = `id, name, channel, address, secret, tag_filter, active, created_at, updated_at, deleted_at`

const (
	qSubInsert = `
INSERT INTO subscribers (name, channel, address, secret, tag_filter, active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + subscriberCols + `;`

	qSubGetByID = `SELECT ` + subscriberCols + ` FROM subscribers WHERE id = $1;`

	qSubList = `
SELECT ` + subscriberCols + `
FROM subscribers
WHERE deleted_at IS NULL
ORDER BY id;`

	qSubListActive = `
SELECT ` + subscriberCols + `
FROM subscribers
WHERE active = TRUE AND deleted_at IS NULL
ORDER BY id;`

	qSubSetActive = `
UPDATE subscribers
SET active = $2, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL;`

	qSubSoftDelete = `
UPDATE subscribers
SET deleted_at = now(), active = FALSE, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL;`
)

func scanSubscriber(row pgx.Row, s *subscriber.Subscriber) error {
	var (
		channel string
		filter  string
	)
	if err := row.Scan(
		&s.ID,
		&s.Name,
		&channel,
		&s.Address,
		&s.Secret,
		&filter,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.DeletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan subscriber: %w", err)
	}
	s.Channel = subscriber.Channel(channel)
	s.TagFilter = check.ParseTags(filter)
	return nil
}

func (r *SubscriberRepoImpl) Create(ctx context.Context, s *subscriber.Subscriber) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	row := r.db.execQueryer(ctx).QueryRow(ctx, qSubInsert,
		s.Name, string(s.Channel), s.Address, s.Secret, s.TagFilter.String(), s.Active)
	return scanSubscriber(row, s)
}

func (r *SubscriberRepoImpl) GetByID(ctx context.Context, id int64) (*subscriber.Subscriber, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var s subscriber.Subscriber
	if err := scanSubscriber(r.db.execQueryer(ctx).QueryRow(ctx, qSubGetByID, id), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubscriberRepoImpl) List(ctx context.Context) ([]*subscriber.Subscriber, error) {
	return r.list(ctx, qSubList)
}

func (r *SubscriberRepoImpl) ListActive(ctx context.Context) ([]*subscriber.Subscriber, error) {
	return r.list(ctx, qSubListActive)
}

func (r *SubscriberRepoImpl) SetActive(ctx context.Context, id int64, active bool) error {
	return r.exec(ctx, qSubSetActive, id, active)
}

func (r *SubscriberRepoImpl) SoftDelete(ctx context.Context, id int64) error {
	return r.exec(ctx, qSubSoftDelete, id)
}

func (r *SubscriberRepoImpl) exec(ctx context.Context, q string, args ...any) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update subscriber: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SubscriberRepoImpl) list(ctx context.Context, q string) ([]*subscriber.Subscriber, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer rows.Close()

	var out []*subscriber.Subscriber
	for rows.Next() {
		var s subscriber.Subscriber
		if err := scanSubscriber(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
