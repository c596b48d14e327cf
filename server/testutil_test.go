package server

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edportal/portal-iam/generates"
	"github.com/edportal/portal-iam/models"
	"github.com/edportal/portal-iam/permission"
	"github.com/edportal/portal-iam/store"
	"github.com/edportal/portal-iam/test"
	"github.com/gavv/httpexpect/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const testPassword = "correct horse battery"

// harness is a server over in-memory sqlite with a small school directory.
type harness struct {
	srv *Server
	e   *httpexpect.Expect

	institution models.Institution
	school      models.School
	otherSchool models.School
	admin       models.User
	manager     models.User
	teacher     models.User
	student     models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	tokens, err := generates.NewTokenIssuer("test", []byte("server-test-secret-0123456789abcdef"), jwt.SigningMethodHS256, "portal-iam", time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	srv := NewServer(Options{
		DB:     test.NewDB(t),
		Tokens: tokens,
		Logger: logger,
		Cache:  CacheConfig{Size: 128, TTL: time.Minute},
	})

	ts := httptest.NewServer(NewGinEngine(srv))
	t.Cleanup(ts.Close)

	h := &harness{srv: srv, e: httpexpect.Default(t, ts.URL)}
	ctx := context.Background()
	if h.institution, err = srv.Schools.CreateInstitution(ctx, "North District"); err != nil {
		t.Fatalf("institution: %v", err)
	}
	if h.school, err = srv.Schools.CreateSchool(ctx, h.institution.ID, "Hillside Primary"); err != nil {
		t.Fatalf("school: %v", err)
	}
	other, err := srv.Schools.CreateInstitution(ctx, "South District")
	if err != nil {
		t.Fatalf("institution: %v", err)
	}
	if h.otherSchool, err = srv.Schools.CreateSchool(ctx, other.ID, "Riverside"); err != nil {
		t.Fatalf("school: %v", err)
	}
	h.admin = h.createUser(t, "admin@example.org", permission.SystemAdmin)
	h.manager = h.createUser(t, "manager@example.org", permission.InstitutionManager)
	h.teacher = h.createUser(t, "teacher@example.org", permission.Teacher)
	h.student = h.createUser(t, "student@example.org", permission.Student)
	return h
}

func (h *harness) createUser(t *testing.T, email string, role permission.Role) models.User {
	t.Helper()
	return h.createUserAt(t, email, role, h.school)
}

// createUserAt creates a user homed at school and its institution.
func (h *harness) createUserAt(t *testing.T, email string, role permission.Role, school models.School) models.User {
	t.Helper()
	ctx := context.Background()
	u := models.User{Email: email, Name: email, Role: role.String(), IsActive: true}
	u.SetHome(school.InstitutionID, school.ID)
	if err := h.srv.Users.CreateUser(ctx, &u); err != nil {
		t.Fatalf("create %s: %v", email, err)
	}
	if err := h.srv.Users.SetPassword(ctx, u.ID, testPassword); err != nil {
		t.Fatalf("password %s: %v", email, err)
	}
	return u
}

// token issues a bearer token for u without going through login.
func (h *harness) token(t *testing.T, u models.User) string {
	t.Helper()
	tok, _, err := h.srv.Tokens.Issue(generates.Subject{
		UserID:        u.ID,
		Role:          u.CanonicalRole(),
		InstitutionID: h.institution.ID,
		SchoolID:      h.school.ID,
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func bearer(tok string) string { return "Bearer " + tok }

// groupWith creates an active group of the harness institution with u as
// its only member.
func (h *harness) groupWith(t *testing.T, name string, u models.User) models.Group {
	t.Helper()
	ctx := context.Background()
	g, err := h.srv.Groups.CreateGroup(ctx, store.CreateGroupInput{Name: name, InstitutionID: h.institution.ID, CreatedBy: h.admin.ID})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if _, err := h.srv.Groups.AddMember(ctx, g.ID, u.ID, models.GroupMemberRoleMember, h.admin.ID); err != nil {
		t.Fatalf("add member: %v", err)
	}
	return g
}
