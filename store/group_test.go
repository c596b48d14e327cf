package store

import (
	"context"
	"testing"

	"github.com/edportal/portal-iam/errors"
	"github.com/edportal/portal-iam/models"
	"github.com/edportal/portal-iam/permission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGroupRequiresName(t *testing.T) {
	f := newFixture(t)
	_, err := f.groups.CreateGroup(context.Background(), CreateGroupInput{Name: "   "})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestCreateGroupFillsInstitutionFromSchool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.groups.CreateGroup(ctx, CreateGroupInput{Name: "Year 5 staff", SchoolID: f.school.ID})
	require.NoError(t, err)
	require.NotNil(t, g.InstitutionID)
	assert.Equal(t, f.institution.ID, *g.InstitutionID)
	assert.True(t, g.IsActive)

	_, err = f.groups.CreateGroup(ctx, CreateGroupInput{Name: "x", SchoolID: "missing"})
	assert.ErrorIs(t, err, errors.ErrNotFound)

	other, err := f.schools.CreateInstitution(ctx, "South District")
	require.NoError(t, err)
	_, err = f.groups.CreateGroup(ctx, CreateGroupInput{Name: "x", InstitutionID: other.ID, SchoolID: f.school.ID})
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestAddMemberTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, err := f.groups.CreateGroup(ctx, CreateGroupInput{Name: "Moderators"})
	require.NoError(t, err)

	m, err := f.groups.AddMember(ctx, g.ID, f.teacher.ID, "", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.GroupMemberRoleMember, m.MemberRole)

	_, err = f.groups.AddMember(ctx, g.ID, f.teacher.ID, "member", "admin-1")
	assert.ErrorIs(t, err, errors.ErrConflict)

	got, err := f.groups.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.MemberCount)
}

func TestAddMemberErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, err := f.groups.CreateGroup(ctx, CreateGroupInput{Name: "Moderators"})
	require.NoError(t, err)

	_, err = f.groups.AddMember(ctx, "nope", f.teacher.ID, "", "")
	assert.ErrorIs(t, err, errors.ErrNotFound)
	_, err = f.groups.AddMember(ctx, g.ID, "nobody", "", "")
	assert.ErrorIs(t, err, errors.ErrNotFound)
	_, err = f.groups.AddMember(ctx, g.ID, f.teacher.ID, "owner", "")
	assert.ErrorIs(t, err, errors.ErrValidation)

	require.NoError(t, f.groups.DeactivateGroup(ctx, g.ID))
	_, err = f.groups.AddMember(ctx, g.ID, f.teacher.ID, "", "")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, err := f.groups.CreateGroup(ctx, CreateGroupInput{Name: "Moderators"})
	require.NoError(t, err)
	_, err = f.groups.AddMember(ctx, g.ID, f.teacher.ID, "admin", "")
	require.NoError(t, err)

	require.NoError(t, f.groups.RemoveMember(ctx, g.ID, f.teacher.ID))
	assert.ErrorIs(t, f.groups.RemoveMember(ctx, g.ID, f.teacher.ID), errors.ErrNotFound)

	got, err := f.groups.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.MemberCount)

	members, err := f.groups.ListMembers(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestSetGroupPermissionInstitutionWithoutID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, err := f.groups.CreateGroup(ctx, CreateGroupInput{Name: "Moderators"})
	require.NoError(t, err)

	_, err = f.groups.SetGroupPermission(ctx, g.ID, permission.CanManageGrades, true,
		permission.Context{Type: permission.ContextInstitution}, "")
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = f.groups.SetGroupPermission(ctx, g.ID, permission.Key("canFly"), true, permission.Global(), "")
	assert.ErrorIs(t, err, errors.ErrValidation)

	_, err = f.groups.SetGroupPermission(ctx, "missing", permission.CanManageGrades, true, permission.Global(), "")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestSetGroupPermissionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, err := f.groups.CreateGroup(ctx, CreateGroupInput{Name: "Moderators"})
	require.NoError(t, err)
	inst := permission.InstitutionContext(f.institution.ID)

	first, err := f.groups.SetGroupPermission(ctx, g.ID, permission.CanViewReports, true, inst, "admin-1")
	require.NoError(t, err)
	genAfterFirst, _ := f.gen.Current(ctx)

	second, err := f.groups.SetGroupPermission(ctx, g.ID, permission.CanViewReports, true, inst, "admin-1")
	require.NoError(t, err)
	genAfterSecond, _ := f.gen.Current(ctx)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt), "re-setting the same value must not touch the row")
	assert.Equal(t, genAfterFirst, genAfterSecond, "a no-op write must not invalidate caches")

	rows, err := f.groups.ListGroupPermissions(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Allowed)

	flipped, err := f.groups.SetGroupPermission(ctx, g.ID, permission.CanViewReports, false, inst, "admin-2")
	require.NoError(t, err)
	assert.Equal(t, first.ID, flipped.ID)
	assert.False(t, flipped.Allowed)

	rows, err = f.groups.ListGroupPermissions(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Allowed)
	assert.Equal(t, "admin-2", rows[0].UpdatedBy)
}

func TestSetGroupPermissionDistinctContextsAreDistinctRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, err := f.groups.CreateGroup(ctx, CreateGroupInput{Name: "Moderators"})
	require.NoError(t, err)

	for _, c := range []permission.Context{
		permission.Global(),
		permission.InstitutionContext(f.institution.ID),
		permission.SchoolContext(f.school.ID, f.institution.ID),
	} {
		_, err := f.groups.SetGroupPermission(ctx, g.ID, permission.CanManageGrades, false, c, "")
		require.NoError(t, err)
	}
	rows, err := f.groups.ListGroupPermissions(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	require.NoError(t, f.groups.RemoveGroupPermission(ctx, g.ID, permission.CanManageGrades, permission.Global()))
	assert.ErrorIs(t, f.groups.RemoveGroupPermission(ctx, g.ID, permission.CanManageGrades, permission.Global()), errors.ErrNotFound)
}

func TestListGroupsForUserOrderedAndActiveOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, name := range []string{"Zeta", "Alpha", "Mu"} {
		g, err := f.groups.CreateGroup(ctx, CreateGroupInput{Name: name})
		require.NoError(t, err)
		_, err = f.groups.AddMember(ctx, g.ID, f.teacher.ID, "", "")
		require.NoError(t, err)
		if name == "Mu" {
			require.NoError(t, f.groups.DeactivateGroup(ctx, g.ID))
		}
	}

	groups, err := f.groups.ListGroupsForUser(ctx, f.teacher.ID)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Alpha", groups[0].Name)
	assert.Equal(t, "Zeta", groups[1].Name)

	_, err = f.groups.ListGroupsForUser(ctx, "nobody")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestMutationsBumpGeneration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, err := f.groups.CreateGroup(ctx, CreateGroupInput{Name: "Moderators"})
	require.NoError(t, err)

	steps := []func() error{
		func() error { _, err := f.groups.AddMember(ctx, g.ID, f.teacher.ID, "", ""); return err },
		func() error {
			_, err := f.groups.SetGroupPermission(ctx, g.ID, permission.CanManageGrades, false, permission.Global(), "")
			return err
		},
		func() error {
			_, err := f.overrides.SetDirectPermission(ctx, f.teacher.ID, permission.CanManageGrades, true, permission.Global(), "")
			return err
		},
		func() error { return f.groups.RemoveMember(ctx, g.ID, f.teacher.ID) },
		func() error { return f.groups.DeactivateGroup(ctx, g.ID) },
	}
	for i, step := range steps {
		before, _ := f.gen.Current(ctx)
		require.NoError(t, step(), "step %d", i)
		after, _ := f.gen.Current(ctx)
		assert.Greater(t, after, before, "step %d should bump the generation", i)
	}
}

func TestSetGroupPermissionUpsertsOverConcurrentInsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, err := f.groups.CreateGroup(ctx, CreateGroupInput{Name: "Reviewers"})
	require.NoError(t, err)

	f.insertBeforeCreate(t, "group_permissions",
		`INSERT INTO group_permissions (id, group_id, permission_key, allowed, context_type, context_id) VALUES (?, ?, ?, ?, ?, ?)`,
		"first-writer", g.ID, string(permission.CanViewReports), false, "global", "")

	row, err := f.groups.SetGroupPermission(ctx, g.ID, permission.CanViewReports, true, permission.Global(), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "first-writer", row.ID)
	assert.True(t, row.Allowed)
	assert.Equal(t, "admin-1", row.UpdatedBy)

	rows, err := f.groups.ListGroupPermissions(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Allowed)
}
