package repository

import (
	"database/sql"
	"time"

	"github.com/rpattn/projectledger/internal/criteria"
	"github.com/rpattn/projectledger/internal/domain"
)

// Owner describes a shared-key relation: the entity's identity is the
// owner's identity, stored in the entity's own id column.
type Owner[T any] struct {
	Entity string
	Table  string
	Ref    func(*T) *domain.Ref
	SetRef func(*T, *domain.Ref)
}

// Link describes a many-to-many relation stored in a link table keyed by the
// entity's id (OwnerColumn) and the linked identity (TargetColumn).
type Link[T any] struct {
	Name         string
	Table        string
	OwnerColumn  string
	TargetColumn string
	Get          func(*T) []domain.Ref
	Set          func(*T, []domain.Ref)
}

// Descriptor maps an entity type onto its table.
type Descriptor[T any] struct {
	Entity string
	Table  string
	// Columns excludes id. Values and the tail of Scan follow the same order.
	Columns  []string
	Values   func(*T) []any
	Scan     func(*T) []any
	ID       func(*T) *int64
	SetID    func(*T, int64)
	Validate func(*T) error
	// Text returns the searchable field values of an entity.
	Text   func(*T) []string
	Schema criteria.Schema
	Owner  *Owner[T]
	Links  []Link[T]
}

// SharedKey reports whether the entity takes its identity from an owner.
func (d *Descriptor[T]) SharedKey() bool {
	return d.Owner != nil
}

func nullable[V any](p *V) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func refValue(r *domain.Ref) any {
	if r == nil {
		return nil
	}
	return r.ID
}

func text(values ...*string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != nil && *v != "" {
			out = append(out, *v)
		}
	}
	return out
}

type refScanner struct {
	dst **domain.Ref
}

func (s refScanner) Scan(src any) error {
	var id sql.NullInt64
	if err := id.Scan(src); err != nil {
		return err
	}
	if !id.Valid {
		*s.dst = nil
		return nil
	}
	*s.dst = domain.RefTo(id.Int64)
	return nil
}

func scanRef(dst **domain.Ref) sql.Scanner {
	return refScanner{dst: dst}
}

type timeScanner struct {
	dst **time.Time
}

func (s timeScanner) Scan(src any) error {
	var t sql.NullTime
	if err := t.Scan(src); err != nil {
		return err
	}
	if !t.Valid {
		*s.dst = nil
		return nil
	}
	v := t.Time.UTC()
	*s.dst = &v
	return nil
}

// scanTime reads a nullable timestamp and normalizes it to UTC.
func scanTime(dst **time.Time) sql.Scanner {
	return timeScanner{dst: dst}
}

type enumScanner[E ~string] struct {
	dst **E
}

func (s enumScanner[E]) Scan(src any) error {
	var v sql.NullString
	if err := v.Scan(src); err != nil {
		return err
	}
	if !v.Valid {
		*s.dst = nil
		return nil
	}
	e := E(v.String)
	*s.dst = &e
	return nil
}

func scanEnum[E ~string](dst **E) sql.Scanner {
	return enumScanner[E]{dst: dst}
}

func enumValue[E ~string](p *E) any {
	if p == nil {
		return nil
	}
	return string(*p)
}

func enumNames[E ~string](values []E) []string {
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = string(v)
	}
	return names
}

func enumText[E ~string](p *E) []string {
	if p == nil {
		return nil
	}
	return []string{string(*p)}
}

type durationScanner struct {
	dst **domain.Duration
}

func (s durationScanner) Scan(src any) error {
	var v sql.NullInt64
	if err := v.Scan(src); err != nil {
		return err
	}
	if !v.Valid {
		*s.dst = nil
		return nil
	}
	d := domain.Duration(time.Duration(v.Int64) * time.Second)
	*s.dst = &d
	return nil
}

// durationValue stores whole seconds.
func durationValue(d *domain.Duration) any {
	if d == nil {
		return nil
	}
	return int64(time.Duration(*d) / time.Second)
}
