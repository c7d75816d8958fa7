package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
)

var _ check.Repo = (*CheckRepoImpl)(nil)

type CheckRepoImpl struct {
	db *DB
}

func NewCheckRepo(db *DB) *CheckRepoImpl { return &CheckRepoImpl{db: db} }

const checkCols = `id, name, description, tags, active, frequency, frequency_value, last_signal_at, failed, created_at, updated_at, deleted_at`

const (
	qCheckInsert = `
INSERT INTO checks (name, description, tags, active, frequency, frequency_value, last_signal_at, failed)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + checkCols + `;`

	qCheckInsertIfAbsent = `
INSERT INTO checks (name, description, tags, active, frequency, frequency_value, failed)
VALUES ($1, $2, $3, $4, $5, $6, FALSE)
ON CONFLICT (name) WHERE deleted_at IS NULL DO NOTHING
RETURNING ` + checkCols + `;`

	qCheckGetByID = `SELECT ` + checkCols + ` FROM checks WHERE id = $1;`

	qCheckGetByName = `
SELECT ` + checkCols + `
FROM checks
WHERE name = $1 AND deleted_at IS NULL;`

	qCheckGetForUpdate = `
SELECT ` + checkCols + `
FROM checks
WHERE id = $1 AND deleted_at IS NULL
FOR UPDATE;`

	qCheckGetByNameForUpdate = `
SELECT ` + checkCols + `
FROM checks
WHERE name = $1 AND deleted_at IS NULL
FOR UPDATE;`

	qCheckUpdate = `
UPDATE checks
SET description = $2, tags = $3, active = $4, frequency = $5, frequency_value = $6,
    last_signal_at = $7, failed = $8, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL;`

	qCheckSoftDelete = `
UPDATE checks
SET deleted_at = now(), active = FALSE, updated_at = now()
WHERE id = $1 AND deleted_at IS NULL;`

	qCheckList = `
SELECT ` + checkCols + `
FROM checks
WHERE deleted_at IS NULL
ORDER BY name;`

	qCheckLoadActive = `
SELECT ` + checkCols + `
FROM checks
WHERE active = TRUE AND deleted_at IS NULL
ORDER BY id;`
)

func scanCheck(row pgx.Row, c *check.Check) error {
	var (
		tags string
		unit string
	)
	if err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Description,
		&tags,
		&c.Active,
		&unit,
		&c.FrequencyValue,
		&c.LastSignalAt,
		&c.Failed,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.DeletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan check: %w", err)
	}
	c.Tags = check.ParseTags(tags)
	c.Frequency = check.Unit(unit)
	return nil
}

func (r *CheckRepoImpl) Create(ctx context.Context, c *check.Check) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	row := r.db.execQueryer(ctx).QueryRow(ctx, qCheckInsert,
		c.Name, c.Description, c.Tags.String(), c.Active, string(c.Frequency), c.FrequencyValue, c.LastSignalAt, c.Failed)
	if err := scanCheck(row, c); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (r *CheckRepoImpl) GetByID(ctx context.Context, id int64) (*check.Check, error) {
	return r.getOne(ctx, qCheckGetByID, id)
}

func (r *CheckRepoImpl) GetByName(ctx context.Context, name string) (*check.Check, error) {
	return r.getOne(ctx, qCheckGetByName, name)
}

func (r *CheckRepoImpl) GetForUpdate(ctx context.Context, id int64) (*check.Check, error) {
	return r.getOne(ctx, qCheckGetForUpdate, id)
}

func (r *CheckRepoImpl) GetByNameForUpdate(ctx context.Context, name string) (*check.Check, error) {
	return r.getOne(ctx, qCheckGetByNameForUpdate, name)
}

// GetOrCreateForUpdate returns the live check called c.Name, inserting c when
// none exists. Either way the row stays locked until the transaction ends.
// Concurrent callers racing on the same name end up with a single row.
func (r *CheckRepoImpl) GetOrCreateForUpdate(ctx context.Context, c *check.Check) (*check.Check, bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	var created check.Check
	err := scanCheck(eq.QueryRow(ctx, qCheckInsertIfAbsent,
		c.Name, c.Description, c.Tags.String(), c.Active, string(c.Frequency), c.FrequencyValue), &created)
	switch {
	case err == nil:
		return &created, true, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}

	var existing check.Check
	if err := scanCheck(eq.QueryRow(ctx, qCheckGetByNameForUpdate, c.Name), &existing); err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (r *CheckRepoImpl) Update(ctx context.Context, c *check.Check) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qCheckUpdate,
		c.ID, c.Description, c.Tags.String(), c.Active, string(c.Frequency), c.FrequencyValue, c.LastSignalAt, c.Failed)
	if err != nil {
		return fmt.Errorf("update check: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CheckRepoImpl) SoftDelete(ctx context.Context, id int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	cmd, err := r.db.execQueryer(ctx).Exec(ctx, qCheckSoftDelete, id)
	if err != nil {
		return fmt.Errorf("delete check: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CheckRepoImpl) List(ctx context.Context) ([]*check.Check, error) {
	return r.list(ctx, qCheckList)
}

func (r *CheckRepoImpl) LoadActive(ctx context.Context) ([]*check.Check, error) {
	return r.list(ctx, qCheckLoadActive)
}

func (r *CheckRepoImpl) getOne(ctx context.Context, q string, arg any) (*check.Check, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var c check.Check
	if err := scanCheck(r.db.execQueryer(ctx).QueryRow(ctx, q, arg), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CheckRepoImpl) list(ctx context.Context, q string) ([]*check.Check, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query checks: %w", err)
	}
	defer rows.Close()

	var out []*check.Check
	for rows.Next() {
		var c check.Check
		if err := scanCheck(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
