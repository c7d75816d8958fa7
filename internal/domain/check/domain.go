package check

import (
	"fmt"
	"regexp"
	"time"
)

// GracePeriod is added to every computed deadline before a check counts as overdue.
const GracePeriod = 5 * time.Minute

const (
	DefaultUnit  = UnitDay
	DefaultValue = 1
)

type State string

const (
	StateHealthy State = "healthy"
	StateOverdue State = "overdue"
	StateFailed  State = "failed"
)

type Check struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Tags           Tags       `json:"tags"`
	Active         bool       `json:"active"`
	Frequency      Unit       `json:"frequency"`
	FrequencyValue int        `json:"frequency_value"`
	LastSignalAt   *time.Time `json:"last_signal_at"`
	Failed         bool       `json:"failed"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// NewDefault builds a never-signaled check on the default one-day schedule.
func NewDefault(name string, active bool, now time.Time) *Check {
	return &Check{
		Name:           name,
		Tags:           Tags{},
		Active:         active,
		Frequency:      DefaultUnit,
		FrequencyValue: DefaultValue,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

var slugRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

func ValidName(name string) bool { return slugRe.MatchString(name) }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (c *Check) Validate() error {
	if !ValidName(c.Name) {
		return &ValidationError{Field: "name", Reason: "must be a URL-safe slug"}
	}
	if !c.Frequency.Valid() {
		return &ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown unit %q", c.Frequency)}
	}
	if c.FrequencyValue <= 0 {
		return &ValidationError{Field: "frequency_value", Reason: "must be positive"}
	}
	return nil
}

func (c *Check) DueAt(now time.Time) time.Time {
	return DueAt(c.LastSignalAt, c.Frequency, c.FrequencyValue, now)
}

// IsOverdue reports whether the deadline plus GracePeriod has passed.
// A check that never received a signal is always overdue.
func (c *Check) IsOverdue(now time.Time) bool {
	if c.LastSignalAt == nil {
		return true
	}
	return !now.Before(c.DueAt(now).Add(GracePeriod))
}

func (c *Check) State(now time.Time) State {
	switch {
	case c.Failed:
		return StateFailed
	case c.IsOverdue(now):
		return StateOverdue
	default:
		return StateHealthy
	}
}

// RecordSignal stores an accepted ping and clears the failure flag.
// wasFailed tells the caller whether this ping recovered a failed check.
func (c *Check) RecordSignal(now time.Time) (wasFailed bool) {
	wasFailed = c.Failed
	t := now
	c.LastSignalAt = &t
	c.Failed = false
	c.UpdatedAt = now
	return wasFailed
}

// MarkFailed sets the sticky failure flag. It returns true only on the
// false->true edge; callers emit a failure event exactly when it does.
func (c *Check) MarkFailed() bool {
	if c.Failed {
		return false
	}
	c.Failed = true
	return true
}

func (c *Check) ClearFailure() {
	c.Failed = false
}

func (c *Check) Deleted() bool { return c.DeletedAt != nil }
