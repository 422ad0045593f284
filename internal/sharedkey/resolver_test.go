package sharedkey_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/projectledger/internal/db"
	"github.com/rpattn/projectledger/internal/db/dbtest"
	"github.com/rpattn/projectledger/internal/domain"
	"github.com/rpattn/projectledger/internal/repository"
	"github.com/rpattn/projectledger/internal/sharedkey"
)

func ptr[V any](v V) *V { return &v }

func seedProject(t *testing.T, q db.Querier) int64 {
	t.Helper()
	p := domain.Project{Name: ptr("Apollo"), Key: ptr("Apollo"), CreateTimestamp: ptr(time.Now().UTC())}
	require.NoError(t, repository.NewTable(repository.Projects).Insert(context.Background(), q, &p))
	return *p.ID
}

func TestBind_AssignsOwnerIdentity(t *testing.T) {
	conn := dbtest.Open(t)
	q := conn.Querier()
	owner := seedProject(t, q)
	r := sharedkey.New(repository.ProjectSettings)

	settings := domain.ProjectSettings{MustProvideBillCopyByDefault: ptr(false), Project: domain.RefTo(owner)}
	require.NoError(t, r.Bind(context.Background(), q, &settings))
	require.NotNil(t, settings.ID)
	assert.Equal(t, owner, *settings.ID)
}

func TestBind_SeesOwnerInsertedInSameTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	r := sharedkey.New(repository.ProjectMembers)
	members := repository.NewTable(repository.ProjectMembers)

	var member domain.ProjectMember
	err := conn.WithTx(ctx, func(q db.Querier) error {
		owner := seedProject(t, q)
		member = domain.ProjectMember{AddedTimestamp: ptr(time.Now().UTC()), Project: domain.RefTo(owner)}
		if err := r.Bind(ctx, q, &member); err != nil {
			return err
		}
		return members.Insert(ctx, q, &member)
	})
	require.NoError(t, err)
	assert.Equal(t, member.Project.ID, *member.ID)
}

func TestBind_MissingOwner(t *testing.T) {
	conn := dbtest.Open(t)
	q := conn.Querier()
	r := sharedkey.New(repository.ProjectSettings)

	noRef := domain.ProjectSettings{MustProvideBillCopyByDefault: ptr(true)}
	assert.ErrorIs(t, r.Bind(context.Background(), q, &noRef), domain.ErrMissingOwner)

	unknown := domain.ProjectSettings{MustProvideBillCopyByDefault: ptr(true), Project: domain.RefTo(777)}
	assert.ErrorIs(t, r.Bind(context.Background(), q, &unknown), domain.ErrMissingOwner)
	assert.Nil(t, unknown.ID)
}

func TestBind_RejectsSecondDependent(t *testing.T) {
	conn := dbtest.Open(t)
	q := conn.Querier()
	ctx := context.Background()
	owner := seedProject(t, q)
	r := sharedkey.New(repository.ProjectSettings)
	table := repository.NewTable(repository.ProjectSettings)

	first := domain.ProjectSettings{MustProvideBillCopyByDefault: ptr(true), Project: domain.RefTo(owner)}
	require.NoError(t, r.Bind(ctx, q, &first))
	require.NoError(t, table.Insert(ctx, q, &first))

	second := domain.ProjectSettings{MustProvideBillCopyByDefault: ptr(false), Project: domain.RefTo(owner)}
	assert.ErrorIs(t, r.Bind(ctx, q, &second), domain.ErrValidation)
}

func TestCheckNew_OnlyOwnerIdentityAccepted(t *testing.T) {
	r := sharedkey.New(repository.ProjectSettings)

	same := domain.ProjectSettings{ID: ptr(int64(5)), Project: domain.RefTo(5)}
	assert.NoError(t, r.CheckNew(&same))

	other := domain.ProjectSettings{ID: ptr(int64(6)), Project: domain.RefTo(5)}
	assert.ErrorIs(t, r.CheckNew(&other), domain.ErrDuplicateIdentity)
}

func TestGuard(t *testing.T) {
	r := sharedkey.New(repository.ProjectMembers)

	unchanged := domain.ProjectMember{ID: ptr(int64(3)), Project: domain.RefTo(3)}
	assert.NoError(t, r.Guard(3, &unchanged))

	noRef := domain.ProjectMember{ID: ptr(int64(3))}
	require.NoError(t, r.Guard(3, &noRef))
	require.NotNil(t, noRef.Project)
	assert.Equal(t, int64(3), noRef.Project.ID)

	moved := domain.ProjectMember{ID: ptr(int64(3)), Project: domain.RefTo(4)}
	assert.ErrorIs(t, r.Guard(3, &moved), domain.ErrOwnerReassigned)

	renumbered := domain.ProjectMember{ID: ptr(int64(4)), Project: domain.RefTo(4)}
	assert.ErrorIs(t, r.Guard(3, &renumbered), domain.ErrIdentityImmutable)
}

func TestNew_PanicsWithoutOwner(t *testing.T) {
	assert.Panics(t, func() { sharedkey.New(repository.Bills) })
}

func TestCheckNew_IdentityWithoutOwner(t *testing.T) {
	r := sharedkey.New(repository.ProjectMembers)

	assert.NoError(t, r.CheckNew(&domain.ProjectMember{}))
	assert.ErrorIs(t, r.CheckNew(&domain.ProjectMember{ID: ptr(int64(2))}), domain.ErrDuplicateIdentity)
}
