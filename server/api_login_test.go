package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/edportal/portal-iam/store"
)

func TestAPILogin_BadRequests(t *testing.T) {
	h := newHarness(t)

	h.e.POST("/api/v1/auth/login").
		WithHeader("Content-Type", "application/json").
		WithBytes([]byte("{")).
		Expect().
		Status(http.StatusBadRequest).
		JSON().Object().
		ValueEqual("error", "invalid_request")

	h.e.POST("/api/v1/auth/login").
		WithJSON(map[string]string{"email": "", "password": ""}).
		Expect().
		Status(http.StatusBadRequest)

	h.e.GET("/api/v1/auth/login").
		Expect().
		Status(http.StatusMethodNotAllowed)
}

func TestAPILogin_InvalidCredentials(t *testing.T) {
	h := newHarness(t)

	for _, body := range []map[string]string{
		{"email": "teacher@example.org", "password": "wrong password"},
		{"email": "nobody@example.org", "password": testPassword},
	} {
		h.e.POST("/api/v1/auth/login").
			WithJSON(body).
			Expect().
			Status(http.StatusUnauthorized).
			JSON().Object().
			ValueEqual("error", "unauthenticated").
			ValueEqual("error_description", "invalid email or password")
	}
}

func TestAPILogin_Success(t *testing.T) {
	h := newHarness(t)

	obj := h.e.POST("/api/v1/auth/login").
		WithJSON(map[string]string{"email": "TEACHER@example.org", "password": testPassword}).
		Expect().
		Status(http.StatusOK).
		JSON().Object()
	obj.ValueEqual("token_type", "Bearer")
	obj.ValueEqual("expires_in", 3600)
	obj.Value("user").Object().ValueEqual("role", "TEACHER").ValueEqual("id", h.teacher.ID)
	obj.Value("permissions").Array().ContainsAll("canManageGrades", "canViewContent")
	obj.Value("permissions").Array().NotContains("canManageSystem")

	tok := obj.Value("access_token").String().Raw()
	claims, err := h.srv.Tokens.Parse(tok)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.SchoolID != h.school.ID || claims.InstitutionID != h.institution.ID {
		t.Fatalf("unexpected home context in claims: %+v", claims)
	}

	h.e.GET("/api/v1/me/permissions").
		WithHeader("Authorization", bearer(tok)).
		Expect().
		Status(http.StatusOK).
		JSON().Object().
		ValueEqual("user_id", h.teacher.ID).
		ValueEqual("role", "TEACHER")
}

func TestAPILogin_Settings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.srv.Settings.Set(ctx, store.SettingTokenTTLMinutes, "5"); err != nil {
		t.Fatalf("set ttl: %v", err)
	}
	h.e.POST("/api/v1/auth/login").
		WithJSON(map[string]string{"email": "teacher@example.org", "password": testPassword}).
		Expect().
		Status(http.StatusOK).
		JSON().Object().
		ValueEqual("expires_in", 300)

	if err := h.srv.Settings.Set(ctx, store.SettingAllowLogin, "false"); err != nil {
		t.Fatalf("disable login: %v", err)
	}
	h.e.POST("/api/v1/auth/login").
		WithJSON(map[string]string{"email": "teacher@example.org", "password": testPassword}).
		Expect().
		Status(http.StatusForbidden).
		JSON().Object().
		ValueEqual("error_description", "login is disabled")
}
