package domain

import (
	"strings"
	"time"
)

// Ref points at another entity by identity. Relations are serialized as {"id": n}.
type Ref struct {
	ID int64 `json:"id"`
}

// RefTo returns a reference to the given id.
func RefTo(id int64) *Ref {
	return &Ref{ID: id}
}

// RefID returns the referenced id or nil when the reference is absent.
func RefID(r *Ref) *int64 {
	if r == nil {
		return nil
	}
	id := r.ID
	return &id
}

// Project is the owner of the shared-key dependents ProjectSettings and ProjectMember.
type Project struct {
	ID              *int64     `json:"id"`
	Name            *string    `json:"name"`
	Key             *string    `json:"key"`
	CreateTimestamp *time.Time `json:"createTimestamp"`
}

// Validate checks required fields.
func (p *Project) Validate() error {
	if p.Name == nil || strings.TrimSpace(*p.Name) == "" {
		return required("project", "name")
	}
	if p.Key == nil || *p.Key == "" {
		return required("project", "key")
	}
	if p.CreateTimestamp == nil {
		return required("project", "createTimestamp")
	}
	return nil
}

// ProjectKey derives a project key from its display name by dropping non-ASCII characters.
func ProjectKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r <= 0x7F {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ProjectSettings shares its identity with the owning Project.
type ProjectSettings struct {
	ID                           *int64 `json:"id"`
	MustProvideBillCopyByDefault *bool  `json:"mustProvideBillCopyByDefault"`
	Project                      *Ref   `json:"project"`
}

// Validate checks required fields. The owner is checked by the shared-key resolver.
func (s *ProjectSettings) Validate() error {
	if s.MustProvideBillCopyByDefault == nil {
		return required("projectSettings", "mustProvideBillCopyByDefault")
	}
	return nil
}

// ProjectMember shares its identity with the owning Project.
type ProjectMember struct {
	ID             *int64     `json:"id"`
	AddedTimestamp *time.Time `json:"addedTimestamp"`
	UserID         *string    `json:"userId"`
	Project        *Ref       `json:"project"`
}

func (m *ProjectMember) Validate() error {
	if m.AddedTimestamp == nil {
		return required("projectMember", "addedTimestamp")
	}
	return nil
}
