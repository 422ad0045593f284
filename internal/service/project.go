// Package service holds the command handlers that span more than one entity.
package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rpattn/projectledger/internal/criteria"
	"github.com/rpattn/projectledger/internal/domain"
	"github.com/rpattn/projectledger/internal/persistence"
)

// ProjectService creates projects together with their first member.
type ProjectService struct {
	runner      *persistence.Runner
	projects    *persistence.Coordinator[domain.Project]
	members     *persistence.Coordinator[domain.ProjectMember]
	roles       *persistence.Coordinator[domain.ProjectMemberRole]
	assignments *persistence.Coordinator[domain.ProjectMemberRoleAssignment]
	now         func() time.Time
}

func NewProjectService(
	runner *persistence.Runner,
	projects *persistence.Coordinator[domain.Project],
	members *persistence.Coordinator[domain.ProjectMember],
	roles *persistence.Coordinator[domain.ProjectMemberRole],
	assignments *persistence.Coordinator[domain.ProjectMemberRoleAssignment],
) *ProjectService {
	return &ProjectService{
		runner:      runner,
		projects:    projects,
		members:     members,
		roles:       roles,
		assignments: assignments,
		now:         time.Now,
	}
}

// BootstrapRequest names a new project and the user who administers it.
type BootstrapRequest struct {
	Name   string `json:"name"`
	UserID string `json:"userId"`
}

type BootstrapResult struct {
	Project        domain.Project                     `json:"project"`
	Member         domain.ProjectMember               `json:"member"`
	RoleAssignment domain.ProjectMemberRoleAssignment `json:"roleAssignment"`
}

// Bootstrap creates the project, its member and the member's admin role
// assignment in one transaction. Member and assignment share the project's
// identity. The PROJECT_ADMIN role row is reused when present. Everything
// written is indexed after commit.
func (s *ProjectService) Bootstrap(ctx context.Context, req BootstrapRequest) (BootstrapResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return BootstrapResult{}, &domain.FieldError{Entity: "projectMember", Field: "userId", Reason: "must not be blank"}
	}

	now := s.now().UTC()
	name := strings.TrimSpace(req.Name)
	key := domain.ProjectKey(name)
	project := domain.Project{Name: &name, Key: &key, CreateTimestamp: &now}

	var (
		member     domain.ProjectMember
		assignment domain.ProjectMemberRoleAssignment
	)
	err := s.runner.Do(ctx, func(u *persistence.Unit) error {
		if err := s.projects.CreateIn(u, &project); err != nil {
			return err
		}
		userID := req.UserID
		member = domain.ProjectMember{AddedTimestamp: &now, UserID: &userID, Project: domain.RefTo(*project.ID)}
		if err := s.members.CreateIn(u, &member); err != nil {
			return err
		}

		admin, err := s.role(u, domain.RoleProjectAdmin, now)
		if err != nil {
			return err
		}
		assignment = domain.ProjectMemberRoleAssignment{
			AssignmentTimestamp: &now,
			ProjectMember:       domain.RefTo(*member.ID),
			ProjectMemberRoles:  []domain.Ref{{ID: *admin.ID}},
		}
		return s.assignments.CreateIn(u, &assignment)
	})
	if err != nil {
		return BootstrapResult{}, err
	}
	return BootstrapResult{Project: project, Member: member, RoleAssignment: assignment}, nil
}

// role returns the oldest stored row for role, creating it when none exists.
func (s *ProjectService) role(u *persistence.Unit, role domain.Role, now time.Time) (domain.ProjectMemberRole, error) {
	spec, err := criteria.Parse(s.roles.Schema(), url.Values{"projectMemberRole.equals": {string(role)}})
	if err != nil {
		return domain.ProjectMemberRole{}, fmt.Errorf("find role %s: %w", role, err)
	}
	oldest := []domain.EntitySort{{Field: "id", Direction: domain.SortDirectionAsc}}
	found, err := s.roles.ListIn(u, spec, oldest, domain.PageRequest{Page: 0, Size: 1})
	if err != nil {
		return domain.ProjectMemberRole{}, err
	}
	if len(found.Items) > 0 {
		return found.Items[0], nil
	}

	created := domain.ProjectMemberRole{CreatedTimestamp: &now, ProjectMemberRole: &role}
	if err := s.roles.CreateIn(u, &created); err != nil {
		return domain.ProjectMemberRole{}, err
	}
	return created, nil
}
