package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpattn/projectledger/internal/criteria"
	"github.com/rpattn/projectledger/internal/db"
	"github.com/rpattn/projectledger/internal/domain"
	"github.com/rpattn/projectledger/internal/repository"
	"github.com/rpattn/projectledger/internal/search"
	"github.com/rpattn/projectledger/internal/sharedkey"
)

// Coordinator runs the create, update, patch and delete flows of one entity
// type: validate, write in a transaction, commit, then update the index.
type Coordinator[T any] struct {
	runner *Runner
	table  *repository.Table[T]
	desc   *repository.Descriptor[T]
	index  search.Index[T]
	keys   *sharedkey.Resolver[T]
}

func NewCoordinator[T any](runner *Runner, table *repository.Table[T], index search.Index[T]) *Coordinator[T] {
	c := &Coordinator[T]{
		runner: runner,
		table:  table,
		desc:   table.Descriptor(),
		index:  index,
	}
	if c.desc.SharedKey() {
		c.keys = sharedkey.New(c.desc)
	}
	return c
}

func (c *Coordinator[T]) Entity() string {
	return c.desc.Entity
}

func (c *Coordinator[T]) Schema() criteria.Schema {
	return c.desc.Schema
}

// ID returns the identity of entity, or nil before it is stored.
func (c *Coordinator[T]) ID(entity *T) *int64 {
	return c.desc.ID(entity)
}

// Create stores a new entity in its own transaction and indexes it once the
// transaction commits.
func (c *Coordinator[T]) Create(ctx context.Context, entity *T) error {
	if err := c.checkNew(entity); err != nil {
		return err
	}
	return c.runner.Do(ctx, func(u *Unit) error {
		return c.insert(u, entity)
	})
}

// CreateIn stores a new entity as part of the caller's unit of work.
func (c *Coordinator[T]) CreateIn(u *Unit, entity *T) error {
	if err := c.checkNew(entity); err != nil {
		return err
	}
	return c.insert(u, entity)
}

func (c *Coordinator[T]) checkNew(entity *T) error {
	if c.keys != nil {
		if err := c.keys.CheckNew(entity); err != nil {
			return err
		}
	} else if id := c.desc.ID(entity); id != nil {
		return fmt.Errorf("create %s: %w", c.desc.Entity, domain.ErrDuplicateIdentity)
	}
	return c.desc.Validate(entity)
}

func (c *Coordinator[T]) insert(u *Unit, entity *T) error {
	ctx := u.Context()
	if c.keys != nil {
		if err := c.keys.Bind(ctx, u.Q, entity); err != nil {
			return err
		}
	}
	if err := c.table.Insert(ctx, u.Q, entity); err != nil {
		return err
	}
	c.indexOnCommit(u, *entity)
	return nil
}

func (c *Coordinator[T]) indexOnCommit(u *Unit, committed T) {
	id := *c.desc.ID(&committed)
	u.OnCommit(c.desc.Entity, search.OpIndex, id, func(ctx context.Context) error {
		return c.index.Index(ctx, committed)
	})
}

// Update replaces every field of the stored entity identified by pathID.
func (c *Coordinator[T]) Update(ctx context.Context, pathID int64, entity *T) error {
	if err := c.checkIdentity(pathID, c.desc.ID(entity)); err != nil {
		return err
	}
	if err := c.checkUpdate(pathID, entity); err != nil {
		return err
	}
	return c.runner.Do(ctx, func(u *Unit) error {
		return c.UpdateIn(u, entity)
	})
}

// UpdateIn writes an already checked entity as part of the caller's unit of
// work and re-indexes it after commit.
func (c *Coordinator[T]) UpdateIn(u *Unit, entity *T) error {
	if err := c.table.Update(u.Context(), u.Q, entity); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("update %s %d: %w", c.desc.Entity, *c.desc.ID(entity), domain.ErrUnknownIdentity)
		}
		return err
	}
	c.indexOnCommit(u, *entity)
	return nil
}

func (c *Coordinator[T]) checkIdentity(pathID int64, id *int64) error {
	if id == nil {
		return fmt.Errorf("update %s: %w", c.desc.Entity, domain.ErrMissingIdentity)
	}
	if *id != pathID {
		return fmt.Errorf("update %s: path id %d, payload id %d: %w", c.desc.Entity, pathID, *id, domain.ErrIdentityMismatch)
	}
	return nil
}

func (c *Coordinator[T]) checkUpdate(storedID int64, entity *T) error {
	if c.keys != nil {
		if err := c.keys.Guard(storedID, entity); err != nil {
			return err
		}
	}
	return c.desc.Validate(entity)
}

// Patch applies a JSON merge patch to the stored entity. Absent and null
// members leave stored values untouched, so applying a patch twice yields the
// state of applying it once.
func (c *Coordinator[T]) Patch(ctx context.Context, pathID int64, patch []byte) (T, error) {
	var zero T
	members, err := c.decodePatch(pathID, patch)
	if err != nil {
		return zero, err
	}

	var merged T
	err = c.runner.Do(ctx, func(u *Unit) error {
		current, err := c.table.Get(ctx, u.Q, pathID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("patch %s %d: %w", c.desc.Entity, pathID, domain.ErrUnknownIdentity)
			}
			return err
		}
		if len(members) > 0 {
			raw, err := json.Marshal(members)
			if err != nil {
				return fmt.Errorf("patch %s %d: %w", c.desc.Entity, pathID, err)
			}
			if err := json.Unmarshal(raw, &current); err != nil {
				return &domain.FieldError{Entity: c.desc.Entity, Field: "patch", Reason: err.Error()}
			}
		}
		if err := c.checkUpdate(pathID, &current); err != nil {
			return err
		}
		if err := c.UpdateIn(u, &current); err != nil {
			return err
		}
		merged = current
		return nil
	})
	if err != nil {
		return zero, err
	}
	return merged, nil
}

// decodePatch checks the identity carried by a merge patch and returns the
// members to merge, without the id and without null members.
func (c *Coordinator[T]) decodePatch(pathID int64, patch []byte) (map[string]json.RawMessage, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(patch, &members); err != nil || members == nil {
		return nil, &domain.FieldError{Entity: c.desc.Entity, Field: "patch", Reason: "must be a JSON object"}
	}

	rawID, ok := members["id"]
	if !ok || isNull(rawID) {
		return nil, c.checkIdentity(pathID, nil)
	}
	var id int64
	if err := json.Unmarshal(rawID, &id); err != nil {
		return nil, &domain.FieldError{Entity: c.desc.Entity, Field: "id", Reason: "must be an integer"}
	}
	if err := c.checkIdentity(pathID, &id); err != nil {
		return nil, err
	}

	delete(members, "id")
	for k, v := range members {
		if isNull(v) {
			delete(members, k)
		}
	}
	return members, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Delete removes the entity and drops it from the index after commit.
func (c *Coordinator[T]) Delete(ctx context.Context, id int64) error {
	return c.runner.Do(ctx, func(u *Unit) error {
		if err := c.table.Delete(ctx, u.Q, id); err != nil {
			return err
		}
		u.OnCommit(c.desc.Entity, search.OpRemove, id, func(ctx context.Context) error {
			return c.index.Remove(ctx, id)
		})
		return nil
	})
}

func (c *Coordinator[T]) Get(ctx context.Context, id int64) (T, error) {
	return c.table.Get(ctx, c.runner.Querier(), id)
}

// GetIn reads inside the caller's unit of work.
func (c *Coordinator[T]) GetIn(u *Unit, id int64) (T, error) {
	return c.table.Get(u.Context(), u.Q, id)
}

// List returns the window of entities matching spec.
func (c *Coordinator[T]) List(ctx context.Context, spec criteria.Spec, sorts []domain.EntitySort, page domain.PageRequest) (domain.Page[T], error) {
	return c.list(ctx, c.runner.Querier(), spec, sorts, page)
}

// ListIn lists inside the caller's unit of work.
func (c *Coordinator[T]) ListIn(u *Unit, spec criteria.Spec, sorts []domain.EntitySort, page domain.PageRequest) (domain.Page[T], error) {
	return c.list(u.Context(), u.Q, spec, sorts, page)
}

func (c *Coordinator[T]) list(ctx context.Context, q db.Querier, spec criteria.Spec, sorts []domain.EntitySort, page domain.PageRequest) (domain.Page[T], error) {
	items, total, err := c.table.Page(ctx, q, spec.Predicate(repository.Alias()), sorts, page)
	if err != nil {
		return domain.Page[T]{}, err
	}
	return domain.Page[T]{Items: items, Total: total}, nil
}

func (c *Coordinator[T]) Count(ctx context.Context, spec criteria.Spec) (int64, error) {
	return c.table.Count(ctx, c.runner.Querier(), spec.Predicate(repository.Alias()))
}

// Search queries the index. Unlike writes, index failures are returned.
func (c *Coordinator[T]) Search(ctx context.Context, text string, page domain.PageRequest) (domain.Page[T], error) {
	return c.index.Query(ctx, text, page)
}
