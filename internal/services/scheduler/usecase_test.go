package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	"github.com/NordCoder/Heartbeat/internal/lock"
	"github.com/NordCoder/Heartbeat/internal/services/scheduler/repo"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// memStore holds committed rows. Writes go to the txState of the running
// memTx and reach rows only when the transaction function succeeds.
type memStore struct {
	mu        sync.Mutex
	rows      map[int64]check.Check
	loadErr   error
	updateErr map[int64]error
}

func newMemStore(cs ...*check.Check) *memStore {
	s := &memStore{rows: map[int64]check.Check{}, updateErr: map[int64]error{}}
	for _, c := range cs {
		s.rows[c.ID] = *c
	}
	return s
}

func (s *memStore) LoadActive(context.Context) ([]*check.Check, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	var out []*check.Check
	for _, c := range s.rows {
		if c.Active && !c.Deleted() {
			cp := c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) GetForUpdate(_ context.Context, id int64) (*check.Check, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok || c.Deleted() {
		return nil, repo.ErrNotFound
	}
	return &c, nil
}

func (s *memStore) Update(ctx context.Context, c *check.Check) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateErr[c.ID]; err != nil {
		return err
	}
	txFrom(ctx).writes[c.ID] = *c
	return nil
}

func (s *memStore) get(id int64) check.Check {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id]
}

type txState struct {
	writes map[int64]check.Check
	events []notification.Event
}

type txKey struct{}

func txFrom(ctx context.Context) *txState { return ctx.Value(txKey{}).(*txState) }

type memTx struct {
	store *memStore
	queue *memQueue
	mu    sync.Mutex
	calls int
}

func (t *memTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()

	st := &txState{writes: map[int64]check.Check{}}
	if err := fn(context.WithValue(ctx, txKey{}, st)); err != nil {
		return err
	}
	t.store.mu.Lock()
	for id, c := range st.writes {
		t.store.rows[id] = c
	}
	t.store.mu.Unlock()
	t.queue.mu.Lock()
	t.queue.events = append(t.queue.events, st.events...)
	t.queue.mu.Unlock()
	return nil
}

type memQueue struct {
	mu     sync.Mutex
	events []notification.Event
	fail   error
}

func (q *memQueue) EnqueueEvent(ctx context.Context, ev notification.Event) error {
	if q.fail != nil {
		return q.fail
	}
	st := txFrom(ctx)
	st.events = append(st.events, ev)
	return nil
}

func (q *memQueue) all() []notification.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]notification.Event(nil), q.events...)
}

type fixture struct {
	store *memStore
	queue *memQueue
	tx    *memTx
	clock *fakeClock
	locks *lock.Keyed
	uc    *Usecase
}

func newFixture(now time.Time, cs ...*check.Check) *fixture {
	f := &fixture{
		store: newMemStore(cs...),
		queue: &memQueue{},
		clock: &fakeClock{now: now},
		locks: lock.New(lock.Config{MaxRetry: 1, MaxDelay: 1000, BaseDelay: 100, Factor: 1, Jitter: 0}),
	}
	f.tx = &memTx{store: f.store, queue: f.queue}
	f.uc = NewUC(f.store, f.queue, f.tx, f.locks, f.clock, 4, zap.NewNop())
	return f
}

func signaled(id int64, name string, unit check.Unit, n int, last time.Time, tags ...string) *check.Check {
	c := check.NewDefault(name, true, last)
	c.ID = id
	c.Frequency = unit
	c.FrequencyValue = n
	c.Tags = check.NewTags(tags...)
	c.RecordSignal(last)
	return c
}

var t0 = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

func TestSweep_TwoHourScenario(t *testing.T) {
	f := newFixture(t0.Add(time.Hour+59*time.Minute), signaled(1, "etl", check.UnitHour, 2, t0, "data"))
	ctx := context.Background()

	res, err := f.uc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 1}, res)
	assert.Empty(t, f.queue.all())

	// within grace: due at +2h, grace until +2h05m
	f.clock.Set(t0.Add(2*time.Hour + 4*time.Minute))
	res, err = f.uc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Failed)

	f.clock.Set(t0.Add(2*time.Hour + 6*time.Minute))
	res, err = f.uc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 1, Overdue: 1, Failed: 1}, res)

	evs := f.queue.all()
	require.Len(t, evs, 1)
	assert.Equal(t, notification.KindFailed, evs[0].Kind)
	assert.Equal(t, int64(1), evs[0].CheckID)
	assert.Equal(t, "etl", evs[0].CheckName)
	assert.True(t, f.store.get(1).Failed)

	// sticky: later sweeps emit nothing more
	f.clock.Set(t0.Add(3 * time.Hour))
	res, err = f.uc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Scanned: 1, Overdue: 1}, res)
	assert.Len(t, f.queue.all(), 1)
}

func TestSweep_NeverSignaledFails(t *testing.T) {
	c := check.NewDefault("fresh", true, t0)
	c.ID = 5
	f := newFixture(t0, c)

	res, err := f.uc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, f.queue.all(), 1)
}

func TestSweep_IgnoresInactiveAndDeleted(t *testing.T) {
	inactive := signaled(1, "off", check.UnitMinute, 1, t0.Add(-time.Hour))
	inactive.Active = false
	deleted := signaled(2, "gone", check.UnitMinute, 1, t0.Add(-time.Hour))
	del := t0
	deleted.DeletedAt = &del
	f := newFixture(t0, inactive, deleted)

	res, err := f.uc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Overdue)
	assert.Empty(t, f.queue.all())
}

func TestSweep_ErrorIsolation(t *testing.T) {
	old := t0.Add(-48 * time.Hour)
	f := newFixture(t0,
		signaled(1, "a", check.UnitDay, 1, old),
		signaled(2, "b", check.UnitDay, 1, old),
		signaled(3, "c", check.UnitDay, 1, old),
	)
	f.store.updateErr[2] = errors.New("disk full")

	res, err := f.uc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Overdue)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.Errors)
	assert.False(t, f.store.get(2).Failed)
	assert.Len(t, f.queue.all(), 2)
}

func TestSweep_EnqueueFailureRollsBack(t *testing.T) {
	f := newFixture(t0, signaled(1, "a", check.UnitHour, 1, t0.Add(-3*time.Hour)))
	f.queue.fail = errors.New("outbox unavailable")

	res, err := f.uc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Errors)
	assert.False(t, f.store.get(1).Failed, "flag must not persist without its event")

	f.queue.fail = nil
	res, err = f.uc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Len(t, f.queue.all(), 1)
}

func TestSweep_LoadErrorAbortsCycle(t *testing.T) {
	f := newFixture(t0)
	f.store.loadErr = errors.New("connection refused")

	_, err := f.uc.Sweep(context.Background())
	require.Error(t, err)
	assert.Zero(t, f.tx.calls)
}

func TestSweep_RecheckUnderLock(t *testing.T) {
	// snapshot says overdue, but the row was signaled before the lock was taken
	c := signaled(1, "a", check.UnitHour, 1, t0.Add(-3*time.Hour))
	f := newFixture(t0, c)
	fresh := *c
	fresh.RecordSignal(t0.Add(-time.Minute))

	stale := &staleStore{memStore: f.store, snapshot: []*check.Check{c}}
	f.store.rows[1] = fresh
	f.uc.Checks = stale

	res, err := f.uc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Overdue)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, f.queue.all())
}

type staleStore struct {
	*memStore
	snapshot []*check.Check
}

func (s *staleStore) LoadActive(context.Context) ([]*check.Check, error) { return s.snapshot, nil }

func TestSweep_BusyCheckSkipped(t *testing.T) {
	f := newFixture(t0, signaled(1, "a", check.UnitHour, 1, t0.Add(-3*time.Hour)))
	require.True(t, f.locks.TryLock(lock.CheckKey(1)))
	defer f.locks.Unlock(lock.CheckKey(1))

	res, err := f.uc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Failed)
	assert.False(t, f.store.get(1).Failed)
}

func TestSweep_ResignalMovesDeadline(t *testing.T) {
	c := signaled(1, "a", check.UnitHour, 2, t0)
	f := newFixture(t0.Add(10*time.Minute), c)

	// re-signal at T+10m: due moves to T+2h10m, grace until T+2h15m
	c.RecordSignal(t0.Add(10 * time.Minute))
	f.store.rows[1] = *c

	f.clock.Set(t0.Add(2*time.Hour + 6*time.Minute))
	res, err := f.uc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Overdue)

	f.clock.Set(t0.Add(2*time.Hour + 15*time.Minute))
	res, err = f.uc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
}

func TestSweep_CanceledContextLaunchesNothing(t *testing.T) {
	f := newFixture(t0, signaled(1, "a", check.UnitHour, 1, t0.Add(-3*time.Hour)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.uc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Failed)
	assert.Zero(t, f.tx.calls)
}
