package check

import "context"

// Repo persists checks. Every lookup except GetByID ignores soft-deleted rows.
// The *ForUpdate variants lock the row until the surrounding transaction ends.
type Repo interface {
	Create(ctx context.Context, c *Check) error
	GetByID(ctx context.Context, id int64) (*Check, error)
	GetByName(ctx context.Context, name string) (*Check, error)
	GetForUpdate(ctx context.Context, id int64) (*Check, error)
	GetByNameForUpdate(ctx context.Context, name string) (*Check, error)
	GetOrCreateForUpdate(ctx context.Context, c *Check) (*Check, bool, error)
	Update(ctx context.Context, c *Check) error
	SoftDelete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*Check, error)
	LoadActive(ctx context.Context) ([]*Check, error)
}
