// Package persistence coordinates relational writes with search index
// maintenance. The relational store is authoritative: index calls are issued
// only after a successful commit, and their failures never undo or fail the
// write.
package persistence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rpattn/projectledger/internal/db"
	"github.com/rpattn/projectledger/internal/search"
)

// DefaultIndexTimeout bounds a single post-commit index call.
const DefaultIndexTimeout = 5 * time.Second

// IndexObserver is told the outcome of every post-commit index call.
type IndexObserver interface {
	ObserveIndex(entity, op string, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveIndex(string, string, error) {}

// Runner opens units of work on one connection.
type Runner struct {
	conn         *db.Connection
	logger       *zap.Logger
	observer     IndexObserver
	indexTimeout time.Duration
}

type RunnerOption func(*Runner)

func WithObserver(o IndexObserver) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

func WithIndexTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.indexTimeout = d
		}
	}
}

func NewRunner(conn *db.Connection, logger *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		conn:         conn,
		logger:       logger,
		observer:     nopObserver{},
		indexTimeout: DefaultIndexTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Querier returns a non-transactional querier for reads.
func (r *Runner) Querier() db.Querier {
	return r.conn.Querier()
}

// Unit is one relational transaction plus the index calls it owes once it
// commits.
type Unit struct {
	Q db.Querier

	ctx     context.Context
	pending []pendingCall
}

type pendingCall struct {
	entity string
	op     search.Op
	id     int64
	call   func(context.Context) error
}

// Context returns the context the unit was opened with.
func (u *Unit) Context() context.Context {
	return u.ctx
}

// OnCommit registers an index call to run after the transaction commits.
// Calls run once each, in registration order, and never on rollback.
func (u *Unit) OnCommit(entity string, op search.Op, id int64, call func(context.Context) error) {
	u.pending = append(u.pending, pendingCall{entity: entity, op: op, id: id, call: call})
}

// Do runs fn inside a transaction. When fn returns nil and the commit
// succeeds, the index calls registered on the unit are issued. Their
// failures are logged and counted but not returned.
func (r *Runner) Do(ctx context.Context, fn func(*Unit) error) error {
	var unit *Unit
	err := r.conn.WithTx(ctx, func(q db.Querier) error {
		unit = &Unit{Q: q, ctx: ctx}
		return fn(unit)
	})
	if err != nil {
		return err
	}
	r.flush(ctx, unit.pending)
	return nil
}

// flush issues committed index calls. The caller's cancellation no longer
// applies once the data is durable, so each call gets its own deadline.
func (r *Runner) flush(ctx context.Context, calls []pendingCall) {
	base := context.WithoutCancel(ctx)
	for _, c := range calls {
		callCtx, cancel := context.WithTimeout(base, r.indexTimeout)
		err := c.call(callCtx)
		cancel()

		r.observer.ObserveIndex(c.entity, string(c.op), err)
		if err != nil {
			r.logger.Warn("search index update failed after commit",
				zap.String("entity", c.entity),
				zap.String("op", string(c.op)),
				zap.Int64("id", c.id),
				zap.Error(err))
		}
	}
}
