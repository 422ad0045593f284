package repository

import (
	"github.com/rpattn/projectledger/internal/criteria"
	"github.com/rpattn/projectledger/internal/domain"
)

// Projects maps domain.Project onto the project table.
var Projects = &Descriptor[domain.Project]{
	Entity:  "project",
	Table:   "project",
	Columns: []string{"name", "project_key", "create_timestamp"},
	Values: func(p *domain.Project) []any {
		return []any{nullable(p.Name), nullable(p.Key), nullableTime(p.CreateTimestamp)}
	},
	Scan: func(p *domain.Project) []any {
		return []any{&p.ID, &p.Name, &p.Key, scanTime(&p.CreateTimestamp)}
	},
	ID:       func(p *domain.Project) *int64 { return p.ID },
	SetID:    func(p *domain.Project, id int64) { p.ID = &id },
	Validate: (*domain.Project).Validate,
	Text:     func(p *domain.Project) []string { return text(p.Name, p.Key) },
	Schema: criteria.NewSchema("project",
		criteria.String("name", "name"),
		criteria.String("key", "project_key"),
		criteria.Timestamp("createTimestamp", "create_timestamp"),
	),
}

// ProjectSettings shares its identity with its project.
var ProjectSettings = &Descriptor[domain.ProjectSettings]{
	Entity:  "projectSettings",
	Table:   "project_settings",
	Columns: []string{"must_provide_bill_copy_by_default"},
	Values: func(s *domain.ProjectSettings) []any {
		return []any{nullable(s.MustProvideBillCopyByDefault)}
	},
	Scan: func(s *domain.ProjectSettings) []any {
		return []any{&s.ID, &s.MustProvideBillCopyByDefault}
	},
	ID:       func(s *domain.ProjectSettings) *int64 { return s.ID },
	SetID:    func(s *domain.ProjectSettings, id int64) { s.ID = &id },
	Validate: (*domain.ProjectSettings).Validate,
	Text:     func(s *domain.ProjectSettings) []string { return nil },
	Schema: criteria.NewSchema("projectSettings",
		criteria.Boolean("mustProvideBillCopyByDefault", "must_provide_bill_copy_by_default"),
		criteria.Foreign("projectId", "id", "project"),
	),
	Owner: &Owner[domain.ProjectSettings]{
		Entity: "project",
		Table:  "project",
		Ref:    func(s *domain.ProjectSettings) *domain.Ref { return s.Project },
		SetRef: func(s *domain.ProjectSettings, r *domain.Ref) { s.Project = r },
	},
}

// ProjectMembers shares its identity with its project.
var ProjectMembers = &Descriptor[domain.ProjectMember]{
	Entity:  "projectMember",
	Table:   "project_member",
	Columns: []string{"added_timestamp", "user_id"},
	Values: func(m *domain.ProjectMember) []any {
		return []any{nullableTime(m.AddedTimestamp), nullable(m.UserID)}
	},
	Scan: func(m *domain.ProjectMember) []any {
		return []any{&m.ID, scanTime(&m.AddedTimestamp), &m.UserID}
	},
	ID:       func(m *domain.ProjectMember) *int64 { return m.ID },
	SetID:    func(m *domain.ProjectMember, id int64) { m.ID = &id },
	Validate: (*domain.ProjectMember).Validate,
	Text:     func(m *domain.ProjectMember) []string { return text(m.UserID) },
	Schema: criteria.NewSchema("projectMember",
		criteria.Timestamp("addedTimestamp", "added_timestamp"),
		criteria.String("userId", "user_id"),
		criteria.Foreign("projectId", "id", "project"),
	),
	Owner: &Owner[domain.ProjectMember]{
		Entity: "project",
		Table:  "project",
		Ref:    func(m *domain.ProjectMember) *domain.Ref { return m.Project },
		SetRef: func(m *domain.ProjectMember, r *domain.Ref) { m.Project = r },
	},
}

var Bills = &Descriptor[domain.Bill]{
	Entity:  "bill",
	Table:   "bill",
	Columns: []string{"title", "closed_timestamp", "final_amount", "project_id"},
	Values: func(b *domain.Bill) []any {
		return []any{nullable(b.Title), nullableTime(b.ClosedTimestamp), nullable(b.FinalAmount), refValue(b.Project)}
	},
	Scan: func(b *domain.Bill) []any {
		return []any{&b.ID, &b.Title, scanTime(&b.ClosedTimestamp), &b.FinalAmount, scanRef(&b.Project)}
	},
	ID:       func(b *domain.Bill) *int64 { return b.ID },
	SetID:    func(b *domain.Bill, id int64) { b.ID = &id },
	Validate: (*domain.Bill).Validate,
	Text:     func(b *domain.Bill) []string { return text(b.Title) },
	Schema: criteria.NewSchema("bill",
		criteria.String("title", "title"),
		criteria.Timestamp("closedTimestamp", "closed_timestamp"),
		criteria.Decimal("finalAmount", "final_amount"),
		criteria.Foreign("projectId", "project_id", "project"),
	),
}

var BillPositions = &Descriptor[domain.BillPosition]{
	Entity:  "billPosition",
	Table:   "bill_position",
	Columns: []string{"title", "cost", "bill_id"},
	Values: func(p *domain.BillPosition) []any {
		return []any{nullable(p.Title), nullable(p.Cost), refValue(p.Bill)}
	},
	Scan: func(p *domain.BillPosition) []any {
		return []any{&p.ID, &p.Title, &p.Cost, scanRef(&p.Bill)}
	},
	ID:       func(p *domain.BillPosition) *int64 { return p.ID },
	SetID:    func(p *domain.BillPosition, id int64) { p.ID = &id },
	Validate: (*domain.BillPosition).Validate,
	Text:     func(p *domain.BillPosition) []string { return text(p.Title) },
	Schema: criteria.NewSchema("billPosition",
		criteria.String("title", "title"),
		criteria.Decimal("cost", "cost"),
		criteria.Foreign("billId", "bill_id", "bill"),
	),
}

var ProjectMemberPermissions = &Descriptor[domain.ProjectMemberPermission]{
	Entity:  "projectMemberPermission",
	Table:   "project_member_permission",
	Columns: []string{"created_timestamp", "project_member_permission"},
	Values: func(p *domain.ProjectMemberPermission) []any {
		return []any{nullableTime(p.CreatedTimestamp), enumValue(p.ProjectMemberPermission)}
	},
	Scan: func(p *domain.ProjectMemberPermission) []any {
		return []any{&p.ID, scanTime(&p.CreatedTimestamp), scanEnum(&p.ProjectMemberPermission)}
	},
	ID:       func(p *domain.ProjectMemberPermission) *int64 { return p.ID },
	SetID:    func(p *domain.ProjectMemberPermission, id int64) { p.ID = &id },
	Validate: (*domain.ProjectMemberPermission).Validate,
	Text:     func(p *domain.ProjectMemberPermission) []string { return enumText(p.ProjectMemberPermission) },
	Schema: criteria.NewSchema("projectMemberPermission",
		criteria.Timestamp("createdTimestamp", "created_timestamp"),
		criteria.Enum("projectMemberPermission", "project_member_permission", enumNames(domain.Permissions)...),
	),
}

var ProjectMemberRoles = &Descriptor[domain.ProjectMemberRole]{
	Entity:  "projectMemberRole",
	Table:   "project_member_role",
	Columns: []string{"created_timestamp", "project_member_role"},
	Values: func(r *domain.ProjectMemberRole) []any {
		return []any{nullableTime(r.CreatedTimestamp), enumValue(r.ProjectMemberRole)}
	},
	Scan: func(r *domain.ProjectMemberRole) []any {
		return []any{&r.ID, scanTime(&r.CreatedTimestamp), scanEnum(&r.ProjectMemberRole)}
	},
	ID:       func(r *domain.ProjectMemberRole) *int64 { return r.ID },
	SetID:    func(r *domain.ProjectMemberRole, id int64) { r.ID = &id },
	Validate: (*domain.ProjectMemberRole).Validate,
	Text:     func(r *domain.ProjectMemberRole) []string { return enumText(r.ProjectMemberRole) },
	Schema: criteria.NewSchema("projectMemberRole",
		criteria.Timestamp("createdTimestamp", "created_timestamp"),
		criteria.Enum("projectMemberRole", "project_member_role", enumNames(domain.Roles)...),
	),
}

const (
	roleLinkTable       = "rel_project_member_role_assignment__project_member_role"
	permissionLinkTable = "rel_proj_member_permiss_assign__project_member_permission"
)

// ProjectMemberRoleAssignments shares its identity with its project member,
// which in turn shares it with the project.
var ProjectMemberRoleAssignments = &Descriptor[domain.ProjectMemberRoleAssignment]{
	Entity:  "projectMemberRoleAssignment",
	Table:   "project_member_role_assignment",
	Columns: []string{"assignment_timestamp"},
	Values: func(a *domain.ProjectMemberRoleAssignment) []any {
		return []any{nullableTime(a.AssignmentTimestamp)}
	},
	Scan: func(a *domain.ProjectMemberRoleAssignment) []any {
		return []any{&a.ID, scanTime(&a.AssignmentTimestamp)}
	},
	ID:       func(a *domain.ProjectMemberRoleAssignment) *int64 { return a.ID },
	SetID:    func(a *domain.ProjectMemberRoleAssignment, id int64) { a.ID = &id },
	Validate: (*domain.ProjectMemberRoleAssignment).Validate,
	Text:     func(a *domain.ProjectMemberRoleAssignment) []string { return nil },
	Schema: criteria.NewSchema("projectMemberRoleAssignment",
		criteria.Timestamp("assignmentTimestamp", "assignment_timestamp"),
		criteria.Foreign("projectMemberId", "id", "project_member"),
		criteria.Linked("projectMemberRoleId", roleLinkTable, "project_member_role_assignment_id", "project_member_role_id"),
	),
	Owner: &Owner[domain.ProjectMemberRoleAssignment]{
		Entity: "projectMember",
		Table:  "project_member",
		Ref:    func(a *domain.ProjectMemberRoleAssignment) *domain.Ref { return a.ProjectMember },
		SetRef: func(a *domain.ProjectMemberRoleAssignment, r *domain.Ref) { a.ProjectMember = r },
	},
	Links: []Link[domain.ProjectMemberRoleAssignment]{{
		Name:         "projectMemberRoles",
		Table:        roleLinkTable,
		OwnerColumn:  "project_member_role_assignment_id",
		TargetColumn: "project_member_role_id",
		Get:          func(a *domain.ProjectMemberRoleAssignment) []domain.Ref { return a.ProjectMemberRoles },
		Set:          func(a *domain.ProjectMemberRoleAssignment, refs []domain.Ref) { a.ProjectMemberRoles = refs },
	}},
}

var ProjectMemberPermissionAssignments = &Descriptor[domain.ProjectMemberPermissionAssignment]{
	Entity:  "projectMemberPermissionAssignment",
	Table:   "project_member_permission_assignment",
	Columns: []string{"assignment_timestamp"},
	Values: func(a *domain.ProjectMemberPermissionAssignment) []any {
		return []any{nullableTime(a.AssignmentTimestamp)}
	},
	Scan: func(a *domain.ProjectMemberPermissionAssignment) []any {
		return []any{&a.ID, scanTime(&a.AssignmentTimestamp)}
	},
	ID:       func(a *domain.ProjectMemberPermissionAssignment) *int64 { return a.ID },
	SetID:    func(a *domain.ProjectMemberPermissionAssignment, id int64) { a.ID = &id },
	Validate: (*domain.ProjectMemberPermissionAssignment).Validate,
	Text:     func(a *domain.ProjectMemberPermissionAssignment) []string { return nil },
	Schema: criteria.NewSchema("projectMemberPermissionAssignment",
		criteria.Timestamp("assignmentTimestamp", "assignment_timestamp"),
		criteria.Foreign("projectMemberId", "id", "project_member"),
		criteria.Linked("projectMemberPermissionId", permissionLinkTable, "proj_member_permiss_assign_id", "project_member_permission_id"),
	),
	Owner: &Owner[domain.ProjectMemberPermissionAssignment]{
		Entity: "projectMember",
		Table:  "project_member",
		Ref:    func(a *domain.ProjectMemberPermissionAssignment) *domain.Ref { return a.ProjectMember },
		SetRef: func(a *domain.ProjectMemberPermissionAssignment, r *domain.Ref) { a.ProjectMember = r },
	},
	Links: []Link[domain.ProjectMemberPermissionAssignment]{{
		Name:         "projectMemberPermissions",
		Table:        permissionLinkTable,
		OwnerColumn:  "proj_member_permiss_assign_id",
		TargetColumn: "project_member_permission_id",
		Get:          func(a *domain.ProjectMemberPermissionAssignment) []domain.Ref { return a.ProjectMemberPermissions },
		Set:          func(a *domain.ProjectMemberPermissionAssignment, refs []domain.Ref) { a.ProjectMemberPermissions = refs },
	}},
}

var Products = &Descriptor[domain.Product]{
	Entity:  "product",
	Table:   "product",
	Columns: []string{"title", "scanner_id", "usual_duration_from_buy_till_expire", "expire_means_bad", "y", "h"},
	Values: func(p *domain.Product) []any {
		return []any{
			nullable(p.Title), nullable(p.ScannerID), durationValue(p.UsualDurationFromBuyTillExpire),
			nullable(p.ExpireMeansBad), nullable(p.Y), nullable(p.H),
		}
	},
	Scan: func(p *domain.Product) []any {
		return []any{
			&p.ID, &p.Title, &p.ScannerID, durationScanner{dst: &p.UsualDurationFromBuyTillExpire},
			&p.ExpireMeansBad, &p.Y, &p.H,
		}
	},
	ID:       func(p *domain.Product) *int64 { return p.ID },
	SetID:    func(p *domain.Product, id int64) { p.ID = &id },
	Validate: (*domain.Product).Validate,
	Text:     func(p *domain.Product) []string { return text(p.Title, p.ScannerID) },
	Schema: criteria.NewSchema("product",
		criteria.String("title", "title"),
		criteria.String("scannerId", "scanner_id"),
		criteria.Boolean("expireMeansBad", "expire_means_bad"),
		criteria.String("y", "y"),
		criteria.String("h", "h"),
	),
}

var Stocks = &Descriptor[domain.Stock]{
	Entity: "stock",
	Table:  "stock",
	Columns: []string{
		"added_timestamp", "storage_location", "calculated_expiry_timestamp",
		"manual_set_expiry_timestamp", "product_id",
	},
	Values: func(s *domain.Stock) []any {
		return []any{
			nullableTime(s.AddedTimestamp), nullable(s.StorageLocation), nullableTime(s.CalculatedExpiryTimestamp),
			nullableTime(s.ManualSetExpiryTimestamp), refValue(s.Product),
		}
	},
	Scan: func(s *domain.Stock) []any {
		return []any{
			&s.ID, scanTime(&s.AddedTimestamp), &s.StorageLocation, scanTime(&s.CalculatedExpiryTimestamp),
			scanTime(&s.ManualSetExpiryTimestamp), scanRef(&s.Product),
		}
	},
	ID:       func(s *domain.Stock) *int64 { return s.ID },
	SetID:    func(s *domain.Stock, id int64) { s.ID = &id },
	Validate: (*domain.Stock).Validate,
	Text:     func(s *domain.Stock) []string { return text(s.StorageLocation) },
	Schema: criteria.NewSchema("stock",
		criteria.Timestamp("addedTimestamp", "added_timestamp"),
		criteria.String("storageLocation", "storage_location"),
		criteria.Timestamp("calculatedExpiryTimestamp", "calculated_expiry_timestamp"),
		criteria.Timestamp("manualSetExpiryTimestamp", "manual_set_expiry_timestamp"),
		criteria.Foreign("productId", "product_id", "product"),
	),
}
