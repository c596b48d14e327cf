package store

import (
	"context"
	"testing"

	"github.com/edportal/portal-iam/models"
	"github.com/edportal/portal-iam/permission"
	"github.com/edportal/portal-iam/test"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	gen       *LocalGeneration
	groups    *GroupStore
	overrides *OverrideStore
	users     *UserStore
	schools   *SchoolStore
	rules     *RuleStore

	institution models.Institution
	school      models.School
	teacher     models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := test.NewDB(t)
	gen := NewLocalGeneration()
	f := &fixture{
		db:        db,
		gen:       gen,
		groups:    NewGroupStore(db, gen),
		overrides: NewOverrideStore(db, gen),
		users:     NewUserStore(db, gen),
		schools:   NewSchoolStore(db),
		rules:     NewRuleStore(db),
	}
	var err error
	f.institution, err = f.schools.CreateInstitution(ctx, "North District")
	require.NoError(t, err)
	f.school, err = f.schools.CreateSchool(ctx, f.institution.ID, "Hillside Primary")
	require.NoError(t, err)
	f.teacher = f.createUser(t, "teacher@example.org", permission.Teacher)
	return f
}

func (f *fixture) createUser(t *testing.T, email string, role permission.Role) models.User {
	t.Helper()
	u := models.User{Email: email, Name: email, Role: string(role), IsActive: true}
	u.SetHome(f.institution.ID, f.school.ID)
	require.NoError(t, f.users.CreateUser(context.Background(), &u))
	return u
}

// insertBeforeCreate runs query once, inside the transaction, right before
// the next INSERT into table, so that insert collides with an existing row.
func (f *fixture) insertBeforeCreate(t *testing.T, table, query string, args ...any) {
	t.Helper()
	fired := false
	err := f.db.Callback().Create().Before("gorm:create").Register("test:insert_first_"+table, func(tx *gorm.DB) {
		if fired || tx.Statement.Table != table {
			return
		}
		fired = true
		if err := tx.Session(&gorm.Session{NewDB: true}).Exec(query, args...).Error; err != nil {
			t.Errorf("concurrent insert: %v", err)
		}
	})
	require.NoError(t, err)
}
