package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/NordCoder/Heartbeat/internal/obs"
	"github.com/NordCoder/Heartbeat/internal/obs/retry"
)

// Transactor runs function inside one transaction carried by the context.
// Repositories pick it up through execQueryer, so nested calls share it.
type Transactor interface {
	WithTx(ctx context.Context, function func(ctx context.Context) error) error
}

var _ Transactor = (*transactorImpl)(nil)

type transactorImpl struct {
	db     *DB
	logger *zap.Logger
	policy retry.Policy
}

// NewTransactor returns a Transactor that reruns an outermost transaction a
// few times when Postgres aborts it with a serialization failure or deadlock.
// function must therefore be safe to run again from the start.
func NewTransactor(db *DB, logger *zap.Logger) *transactorImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &transactorImpl{
		db:     db,
		logger: logger,
		policy: retry.Policy{
			Name:      "pg_tx",
			Attempts:  3,
			Backoff:   retry.ExpoJitter{Base: 20 * time.Millisecond, Max: 200 * time.Millisecond, Jitter: 0.5},
			Retryable: isTxConflict,
		},
	}
}

func (t *transactorImpl) WithTx(ctx context.Context, function func(ctx context.Context) error) error {
	if _, err := extractTx(ctx); err == nil {
		return t.run(ctx, function)
	}
	ctx, span := otel.Tracer("postgres").Start(ctx, "pg.tx")
	defer span.End()

	err := retry.Do(ctx, func() error { return t.run(ctx, function) }, t.policy)
	obs.SpanError(span, err)
	return err
}

func (t *transactorImpl) run(ctx context.Context, function func(ctx context.Context) error) (txErr error) {
	ctxWithTx, tx, err := injectTx(ctx, t.db)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if txErr != nil {
			if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
				t.logger.Error("rollback", zap.Error(err))
			}
			return
		}
		if err := tx.Commit(ctxWithTx); err != nil {
			t.logger.Warn("commit", zap.Error(err))
			txErr = fmt.Errorf("commit: %w", err)
		}
	}()

	return function(ctxWithTx)
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func isTxConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}

type txInjector struct{}

var ErrTxNotFound = errors.New("tx not found in context")

// injectTx opens a savepoint when ctx already carries a transaction.
func injectTx(ctx context.Context, pool *DB) (context.Context, pgx.Tx, error) {
	if tx, err := extractTx(ctx); err == nil {
		nested, err := tx.Begin(ctx)
		if err != nil {
			return nil, nil, err
		}
		return context.WithValue(ctx, txInjector{}, nested), nested, nil
	}

	tx, err := pool.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, nil, err
	}
	return context.WithValue(ctx, txInjector{}, tx), tx, nil
}

func extractTx(ctx context.Context) (pgx.Tx, error) {
	tx, ok := ctx.Value(txInjector{}).(pgx.Tx)
	if !ok {
		return nil, ErrTxNotFound
	}
	return tx, nil
}

type execQueryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (db *DB) execQueryer(ctx context.Context) execQueryer {
	if tx, err := extractTx(ctx); err == nil && tx != nil {
		return tx
	}
	return db.Pool
}
