package domain

import "errors"

// Sentinel errors shared by the persistence, search and api layers.
// Callers wrap them with context and match with errors.Is.
var (
	// ErrValidation reports a missing or malformed required field.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidFilter reports an unknown field, operator or unparsable value in a filter.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrDuplicateIdentity is returned when a create payload already carries an id.
	ErrDuplicateIdentity = errors.New("a new entity cannot already have an id")
	// ErrMissingIdentity is returned when an update payload has no id.
	ErrMissingIdentity = errors.New("id is missing")
	// ErrIdentityMismatch is returned when the path id and payload id differ.
	ErrIdentityMismatch = errors.New("path id and payload id differ")
	// ErrUnknownIdentity is returned when an update targets an id that is not stored.
	ErrUnknownIdentity = errors.New("entity not found for update")
	// ErrNotFound is returned by reads and deletes of absent rows.
	ErrNotFound = errors.New("not found")
	// ErrMissingOwner is returned when a shared-key dependent has no persisted owner.
	ErrMissingOwner = errors.New("owner is missing")
	// ErrIdentityImmutable is returned when an update tries to change a stored id.
	ErrIdentityImmutable = errors.New("id cannot be changed")
	// ErrOwnerReassigned is returned when a shared-key dependent is pointed at another owner.
	ErrOwnerReassigned = errors.New("owner of a shared-key entity cannot be changed")
	// ErrReferenced is returned when a delete would orphan referencing rows.
	ErrReferenced = errors.New("entity is still referenced")
)

// FieldError is a validation failure for a single field.
type FieldError struct {
	Entity string
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Entity + "." + e.Field + ": " + e.Reason
}

func (e *FieldError) Unwrap() error {
	return ErrValidation
}

func required(entity, field string) error {
	return &FieldError{Entity: entity, Field: field, Reason: "must not be null"}
}
