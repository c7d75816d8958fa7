package ingress

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
)

var t0 = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

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

type memStore struct {
	mu        sync.Mutex
	byName    map[string]check.Check
	nextID    int64
	creates   int
	updateErr error
}

func newMemStore() *memStore { return &memStore{byName: map[string]check.Check{}} }

func (s *memStore) GetOrCreateForUpdate(_ context.Context, c *check.Check) (*check.Check, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.byName[c.Name]; ok {
		return &cur, false, nil
	}
	s.nextID++
	s.creates++
	cp := *c
	cp.ID = s.nextID
	s.byName[c.Name] = cp
	return &cp, true, nil
}

func (s *memStore) Update(_ context.Context, c *check.Check) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.byName[c.Name] = *c
	return nil
}

func (s *memStore) get(name string) (check.Check, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byName[name]
	return c, ok
}

type memQueue struct {
	mu     sync.Mutex
	events []notification.Event
	err    error
}

func (q *memQueue) EnqueueEvent(_ context.Context, ev notification.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.events = append(q.events, ev)
	return nil
}

func (q *memQueue) got() []notification.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]notification.Event(nil), q.events...)
}

// memTx serializes transactions and restores the store and queue when the
// function fails.
type memTx struct {
	mu    sync.Mutex
	store *memStore
	queue *memQueue
}

func (tx *memTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	tx.store.mu.Lock()
	rows := make(map[string]check.Check, len(tx.store.byName))
	for k, v := range tx.store.byName {
		rows[k] = v
	}
	tx.store.mu.Unlock()
	tx.queue.mu.Lock()
	events := len(tx.queue.events)
	tx.queue.mu.Unlock()

	if err := fn(ctx); err != nil {
		tx.store.mu.Lock()
		tx.store.byName = rows
		tx.store.mu.Unlock()
		tx.queue.mu.Lock()
		tx.queue.events = tx.queue.events[:events]
		tx.queue.mu.Unlock()
		return err
	}
	return nil
}

type fixture struct {
	clock *fakeClock
	store *memStore
	queue *memQueue
	uc    *Usecase
}

func newFixture(notifyRecovery bool) *fixture {
	f := &fixture{clock: &fakeClock{now: t0}, store: newMemStore(), queue: &memQueue{}}
	f.uc = NewUC(f.store, f.queue, &memTx{store: f.store, queue: f.queue}, f.clock, notifyRecovery, zap.NewNop())
	return f
}

func TestRecordSignal_FirstSignalCreatesCheck(t *testing.T) {
	f := newFixture(false)

	sig, err := f.uc.RecordSignal(context.Background(), "nightly-backup")
	require.NoError(t, err)
	assert.True(t, sig.Created)
	assert.Equal(t, t0, sig.LastSignalAt)
	assert.Equal(t, t0.AddDate(0, 0, 1), sig.DueAt)

	c, ok := f.store.get("nightly-backup")
	require.True(t, ok)
	assert.True(t, c.Active)
	assert.Equal(t, check.UnitDay, c.Frequency)
	assert.Equal(t, 1, c.FrequencyValue)
	require.NotNil(t, c.LastSignalAt)
	assert.Equal(t, t0, *c.LastSignalAt)
	assert.Empty(t, f.queue.got())
}

func TestRecordSignal_InvalidName(t *testing.T) {
	f := newFixture(false)
	for _, name := range []string{"", "-lead", "has space", "a/b"} {
		_, err := f.uc.RecordSignal(context.Background(), name)
		var ve *check.ValidationError
		assert.ErrorAs(t, err, &ve, name)
	}
	assert.Zero(t, f.store.creates)
}

func TestRecordSignal_RepeatedSignalsEmitNothing(t *testing.T) {
	f := newFixture(true)
	for i := 0; i < 5; i++ {
		f.clock.Set(t0.Add(time.Duration(i) * time.Minute))
		sig, err := f.uc.RecordSignal(context.Background(), "etl")
		require.NoError(t, err)
		assert.Equal(t, i == 0, sig.Created)
		assert.False(t, sig.Recovered)
	}
	assert.Equal(t, 1, f.store.creates)
	assert.Empty(t, f.queue.got())
}

func TestRecordSignal_ConcurrentFirstSignals(t *testing.T) {
	f := newFixture(false)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.uc.RecordSignal(context.Background(), "burst")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, f.store.creates)
}

func markFailed(t *testing.T, f *fixture, name string) {
	t.Helper()
	c, ok := f.store.get(name)
	require.True(t, ok)
	require.True(t, c.MarkFailed())
	require.NoError(t, f.store.Update(context.Background(), &c))
}

func TestRecordSignal_RecoveryToggle(t *testing.T) {
	t.Run("off", func(t *testing.T) {
		f := newFixture(false)
		_, err := f.uc.RecordSignal(context.Background(), "etl")
		require.NoError(t, err)
		markFailed(t, f, "etl")

		sig, err := f.uc.RecordSignal(context.Background(), "etl")
		require.NoError(t, err)
		assert.True(t, sig.Recovered)
		c, _ := f.store.get("etl")
		assert.False(t, c.Failed)
		assert.Empty(t, f.queue.got())
	})

	t.Run("on", func(t *testing.T) {
		f := newFixture(true)
		_, err := f.uc.RecordSignal(context.Background(), "etl")
		require.NoError(t, err)
		markFailed(t, f, "etl")
		f.clock.Set(t0.Add(3 * 24 * time.Hour))

		_, err = f.uc.RecordSignal(context.Background(), "etl")
		require.NoError(t, err)
		evs := f.queue.got()
		require.Len(t, evs, 1)
		assert.Equal(t, notification.KindRecovered, evs[0].Kind)
		assert.Equal(t, "etl", evs[0].CheckName)
		assert.Equal(t, t0.Add(3*24*time.Hour), evs[0].At)
		assert.NotEmpty(t, evs[0].ID)

		_, err = f.uc.RecordSignal(context.Background(), "etl")
		require.NoError(t, err)
		assert.Len(t, f.queue.got(), 1)
	})
}

func TestRecordSignal_EnqueueFailureRollsBack(t *testing.T) {
	f := newFixture(true)
	_, err := f.uc.RecordSignal(context.Background(), "etl")
	require.NoError(t, err)
	markFailed(t, f, "etl")

	f.queue.err = errors.New("outbox down")
	_, err = f.uc.RecordSignal(context.Background(), "etl")
	require.Error(t, err)

	c, _ := f.store.get("etl")
	assert.True(t, c.Failed)
}

func TestRecordSignal_UpdateError(t *testing.T) {
	f := newFixture(false)
	f.store.updateErr = errors.New("db gone")
	_, err := f.uc.RecordSignal(context.Background(), "etl")
	assert.ErrorContains(t, err, "db gone")
}

func serve(t *testing.T, f *fixture, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	mux := runtime.NewServeMux()
	require.NoError(t, (&Controller{UC: f.uc, Log: zap.NewNop()}).Register(mux))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestController_Ping(t *testing.T) {
	f := newFixture(false)

	for _, m := range []string{http.MethodGet, http.MethodPost} {
		rec := serve(t, f, m, "/ping/db.backup")
		require.Equal(t, http.StatusOK, rec.Code, m)
		assert.JSONEq(t, `{"name":"db.backup","last_signal_at":"2024-06-03T08:00:00Z","due_at":"2024-06-04T08:00:00Z"}`, rec.Body.String())
	}

	rec := serve(t, f, http.MethodHead, "/ping/db.backup")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestController_PingInvalidName(t *testing.T) {
	f := newFixture(false)
	rec := serve(t, f, http.MethodGet, "/ping/-bad")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"name"`)
}
