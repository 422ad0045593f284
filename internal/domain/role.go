package domain

import (
	"fmt"
	"time"
)

// Role groups permissions a project member holds.
type Role string

const (
	RoleProjectAdmin    Role = "PROJECT_ADMIN"
	RoleBillContributor Role = "BILL_CONTRIBUTOR"
)

// Roles lists every Role in declaration order.
var Roles = []Role{RoleProjectAdmin, RoleBillContributor}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// ProjectMemberRole is a role row that assignments link to.
type ProjectMemberRole struct {
	ID                *int64     `json:"id"`
	CreatedTimestamp  *time.Time `json:"createdTimestamp"`
	ProjectMemberRole *Role      `json:"projectMemberRole"`
}

func (r *ProjectMemberRole) Validate() error {
	if r.CreatedTimestamp == nil {
		return required("projectMemberRole", "createdTimestamp")
	}
	if r.ProjectMemberRole == nil {
		return required("projectMemberRole", "projectMemberRole")
	}
	if !r.ProjectMemberRole.Valid() {
		return &FieldError{
			Entity: "projectMemberRole",
			Field:  "projectMemberRole",
			Reason: fmt.Sprintf("unknown value %q", *r.ProjectMemberRole),
		}
	}
	return nil
}

// ProjectMemberRoleAssignment shares its identity with the owning ProjectMember
// and links it to any number of roles.
type ProjectMemberRoleAssignment struct {
	ID                  *int64     `json:"id"`
	AssignmentTimestamp *time.Time `json:"assignmentTimestamp"`
	ProjectMember       *Ref       `json:"projectMember"`
	ProjectMemberRoles  []Ref      `json:"projectMemberRoles"`
}

func (a *ProjectMemberRoleAssignment) Validate() error {
	if a.AssignmentTimestamp == nil {
		return required("projectMemberRoleAssignment", "assignmentTimestamp")
	}
	return nil
}

// ProjectMemberPermissionAssignment shares its identity with the owning
// ProjectMember and links it to individually granted permissions.
type ProjectMemberPermissionAssignment struct {
	ID                       *int64     `json:"id"`
	AssignmentTimestamp      *time.Time `json:"assignmentTimestamp"`
	ProjectMember            *Ref       `json:"projectMember"`
	ProjectMemberPermissions []Ref      `json:"projectMemberPermissions"`
}

func (a *ProjectMemberPermissionAssignment) Validate() error {
	if a.AssignmentTimestamp == nil {
		return required("projectMemberPermissionAssignment", "assignmentTimestamp")
	}
	return nil
}
