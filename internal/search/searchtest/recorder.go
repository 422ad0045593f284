// Package searchtest provides an Index double that records every call.
package searchtest

import (
	"context"
	"sync"

	"github.com/rpattn/projectledger/internal/domain"
	"github.com/rpattn/projectledger/internal/search"
)

// Call is one recorded invocation.
type Call[T any] struct {
	Op     search.Op
	Entity T
	ID     int64
	Text   string
}

// Recorder implements search.Index. Failures set through Fail are returned
// from the matching operation after the call has been recorded.
type Recorder[T any] struct {
	mu    sync.Mutex
	calls []Call[T]
	fail  map[search.Op]error
	page  domain.Page[T]
}

func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{fail: make(map[search.Op]error)}
}

var _ search.Index[domain.Bill] = (*Recorder[domain.Bill])(nil)

func (r *Recorder[T]) Index(_ context.Context, entity T) error {
	return r.record(Call[T]{Op: search.OpIndex, Entity: entity})
}

func (r *Recorder[T]) Remove(_ context.Context, id int64) error {
	return r.record(Call[T]{Op: search.OpRemove, ID: id})
}

// Query returns the page set with Returns.
func (r *Recorder[T]) Query(_ context.Context, text string, _ domain.PageRequest) (domain.Page[T], error) {
	if err := r.record(Call[T]{Op: search.OpQuery, Text: text}); err != nil {
		return domain.Page[T]{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.page, nil
}

func (r *Recorder[T]) record(c Call[T]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	if err := r.fail[c.Op]; err != nil {
		return &search.IndexError{Op: c.Op, Entity: "recorder", ID: c.ID, Err: err}
	}
	return nil
}

// Fail makes every later call of op return err. A nil err clears it.
func (r *Recorder[T]) Fail(op search.Op, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.fail, op)
		return
	}
	r.fail[op] = err
}

func (r *Recorder[T]) Returns(page domain.Page[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.page = page
}

// Calls returns a copy of the calls recorded so far.
func (r *Recorder[T]) Calls() []Call[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call[T](nil), r.calls...)
}

// CallsOf returns the recorded calls of one operation.
func (r *Recorder[T]) CallsOf(op search.Op) []Call[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call[T]
	for _, c := range r.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (r *Recorder[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
