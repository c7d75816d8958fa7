package check

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	pg "github.com/NordCoder/Heartbeat/internal/repository/postgres"
)

type Store interface {
	Create(ctx context.Context, c *check.Check) error
	GetByID(ctx context.Context, id int64) (*check.Check, error)
	GetForUpdate(ctx context.Context, id int64) (*check.Check, error)
	Update(ctx context.Context, c *check.Check) error
	SoftDelete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]*check.Check, error)
}

type History interface {
	ListByCheck(ctx context.Context, checkID int64, limit int) ([]*notification.Notification, error)
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type CreateInput struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Tags           []string `json:"tags"`
	Frequency      string   `json:"frequency"`
	FrequencyValue int      `json:"frequency_value"`
	Active         *bool    `json:"active"`
}

// UpdateInput is a partial update; nil fields keep their value.
type UpdateInput struct {
	Description    *string   `json:"description"`
	Tags           *[]string `json:"tags"`
	Frequency      *string   `json:"frequency"`
	FrequencyValue *int      `json:"frequency_value"`
	Active         *bool     `json:"active"`
}

type Usecase struct {
	repo    Store
	history History
	tx      Transactor
	clk     notification.Clock
	log     *zap.Logger
}

func NewUsecase(repo Store, history History, tx Transactor, clk notification.Clock, log *zap.Logger) *Usecase {
	if clk == nil {
		clk = notification.SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{repo: repo, history: history, tx: tx, clk: clk, log: log.With(zap.String("component", "admin.check"))}
}

func (u *Usecase) Create(ctx context.Context, in CreateInput) (*check.Check, error) {
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	c := check.NewDefault(in.Name, active, u.clk.Now())
	c.Description = in.Description
	c.Tags = check.NewTags(in.Tags...)
	if in.Frequency != "" {
		unit, err := check.ParseUnit(in.Frequency)
		if err != nil {
			return nil, err
		}
		c.Frequency = unit
	}
	if in.FrequencyValue != 0 {
		c.FrequencyValue = in.FrequencyValue
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := u.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create check %q: %w", in.Name, err)
	}
	u.log.Info("check created", zap.Int64("id", c.ID), zap.String("name", c.Name))
	return c, nil
}

// Get hides soft-deleted checks.
func (u *Usecase) Get(ctx context.Context, id int64) (*check.Check, error) {
	c, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Deleted() {
		return nil, pg.ErrNotFound
	}
	return c, nil
}

func (u *Usecase) List(ctx context.Context) ([]*check.Check, error) {
	return u.repo.List(ctx)
}

func (u *Usecase) Update(ctx context.Context, id int64, in UpdateInput) (*check.Check, error) {
	var out *check.Check
	err := u.tx.WithTx(ctx, func(ctx context.Context) error {
		c, err := u.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if in.Description != nil {
			c.Description = *in.Description
		}
		if in.Tags != nil {
			c.Tags = check.NewTags(*in.Tags...)
		}
		if in.Frequency != nil {
			unit, err := check.ParseUnit(*in.Frequency)
			if err != nil {
				return err
			}
			c.Frequency = unit
		}
		if in.FrequencyValue != nil {
			c.FrequencyValue = *in.FrequencyValue
		}
		if in.Active != nil {
			c.Active = *in.Active
		}
		if err := c.Validate(); err != nil {
			return err
		}
		c.UpdatedAt = u.clk.Now()
		if err := u.repo.Update(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClearFailure resets the failure flag without recording a signal; the check
// fails again on the next sweep if it is still overdue.
func (u *Usecase) ClearFailure(ctx context.Context, id int64) (*check.Check, error) {
	var out *check.Check
	err := u.tx.WithTx(ctx, func(ctx context.Context) error {
		c, err := u.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		c.ClearFailure()
		c.UpdatedAt = u.clk.Now()
		if err := u.repo.Update(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (u *Usecase) Delete(ctx context.Context, id int64) error {
	if err := u.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	u.log.Info("check deleted", zap.Int64("id", id))
	return nil
}

func (u *Usecase) Notifications(ctx context.Context, id int64, limit int) ([]*notification.Notification, error) {
	if _, err := u.Get(ctx, id); err != nil {
		return nil, err
	}
	return u.history.ListByCheck(ctx, id, limit)
}
