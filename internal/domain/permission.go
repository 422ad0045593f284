package domain

import (
	"fmt"
	"time"
)

// Permission enumerates what a project member may do.
type Permission string

const (
	PermissionCloseProject Permission = "CLOSE_PROJECT"
	PermissionCloseBill    Permission = "CLOSE_BILL"
	PermissionAddMember    Permission = "ADD_MEMBER"
	PermissionAddBill      Permission = "ADD_BILL"
	PermissionEditProject  Permission = "EDIT_PROJECT"
)

// Permissions lists every Permission in declaration order.
var Permissions = []Permission{
	PermissionCloseProject,
	PermissionCloseBill,
	PermissionAddMember,
	PermissionAddBill,
	PermissionEditProject,
}

// Valid reports whether p is a declared permission.
func (p Permission) Valid() bool {
	for _, known := range Permissions {
		if p == known {
			return true
		}
	}
	return false
}

// ProjectMemberPermission records a granted permission.
type ProjectMemberPermission struct {
	ID                      *int64      `json:"id"`
	CreatedTimestamp        *time.Time  `json:"createdTimestamp"`
	ProjectMemberPermission *Permission `json:"projectMemberPermission"`
}

func (p *ProjectMemberPermission) Validate() error {
	if p.CreatedTimestamp == nil {
		return required("projectMemberPermission", "createdTimestamp")
	}
	if p.ProjectMemberPermission == nil {
		return required("projectMemberPermission", "projectMemberPermission")
	}
	if !p.ProjectMemberPermission.Valid() {
		return &FieldError{
			Entity: "projectMemberPermission",
			Field:  "projectMemberPermission",
			Reason: fmt.Sprintf("unknown value %q", *p.ProjectMemberPermission),
		}
	}
	return nil
}
