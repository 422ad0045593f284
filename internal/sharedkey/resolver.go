// Package sharedkey binds dependent entities to the identity of their owner.
//
// A dependent never allocates an identity of its own: it is bound once, at
// creation, to the identity of an owner row that is already persisted (or
// persisted earlier in the same transaction). Afterwards the identity and the
// owner reference are frozen.
package sharedkey

import (
	"context"
	"fmt"

	"github.com/rpattn/projectledger/internal/db"
	"github.com/rpattn/projectledger/internal/domain"
	"github.com/rpattn/projectledger/internal/repository"
)

// Resolver enforces dependent.id == owner.id for one dependent type.
type Resolver[T any] struct {
	desc *repository.Descriptor[T]
}

// New returns a resolver for desc, which must declare an owner.
func New[T any](desc *repository.Descriptor[T]) *Resolver[T] {
	if desc.Owner == nil {
		panic(fmt.Sprintf("sharedkey: %s has no owner", desc.Entity))
	}
	return &Resolver[T]{desc: desc}
}

// CheckNew validates the identity of a dependent before any store access.
// The only identity a new dependent may carry is its owner's.
func (r *Resolver[T]) CheckNew(entity *T) error {
	id := r.desc.ID(entity)
	if id == nil {
		return nil
	}
	if ref := r.desc.Owner.Ref(entity); ref != nil && ref.ID == *id {
		return nil
	}
	return fmt.Errorf("%s id %d is not the id of its %s: %w",
		r.desc.Entity, *id, r.desc.Owner.Entity, domain.ErrDuplicateIdentity)
}

// Bind checks the owner inside the caller's transaction and assigns its
// identity to the dependent.
func (r *Resolver[T]) Bind(ctx context.Context, q db.Querier, entity *T) error {
	if err := r.CheckNew(entity); err != nil {
		return err
	}
	ref := r.desc.Owner.Ref(entity)
	if ref == nil {
		return fmt.Errorf("%s.%s is required: %w", r.desc.Entity, r.desc.Owner.Entity, domain.ErrMissingOwner)
	}
	ownerID := ref.ID

	ok, err := repository.Exists(ctx, q, r.desc.Owner.Table, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s %d does not exist: %w", r.desc.Owner.Entity, ownerID, domain.ErrMissingOwner)
	}

	taken, err := repository.Exists(ctx, q, r.desc.Table, ownerID)
	if err != nil {
		return err
	}
	if taken {
		return &domain.FieldError{
			Entity: r.desc.Entity,
			Field:  r.desc.Owner.Entity,
			Reason: fmt.Sprintf("%s %d already has a %s", r.desc.Owner.Entity, ownerID, r.desc.Entity),
		}
	}

	r.desc.SetID(entity, ownerID)
	return nil
}

// Guard checks an update of the dependent stored under storedID. The identity
// may not change, and the owner reference may not point anywhere but the
// identity. An absent owner reference is filled in. Callers that compare a
// path id with the payload id first report a renumbering as
// domain.ErrIdentityMismatch, so ErrIdentityImmutable only reaches callers
// that skip that comparison.
func (r *Resolver[T]) Guard(storedID int64, entity *T) error {
	if id := r.desc.ID(entity); id == nil || *id != storedID {
		return fmt.Errorf("%s %d: %w", r.desc.Entity, storedID, domain.ErrIdentityImmutable)
	}
	ref := r.desc.Owner.Ref(entity)
	if ref == nil {
		r.desc.Owner.SetRef(entity, domain.RefTo(storedID))
		return nil
	}
	if ref.ID != storedID {
		return fmt.Errorf("%s %d cannot move to %s %d: %w",
			r.desc.Entity, storedID, r.desc.Owner.Entity, ref.ID, domain.ErrOwnerReassigned)
	}
	return nil
}
