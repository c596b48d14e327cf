package server

import (
	"context"
	"net/http"
	"testing"
)

func TestSettingsEndpoints(t *testing.T) {
	h := newHarness(t)
	auth := bearer(h.token(t, h.admin))

	if err := h.srv.db.Exec(`INSERT INTO system_settings (key, value, category, is_secret) VALUES (?, ?, ?, ?)`,
		"sso.client_secret", "hunter2", "sso", true).Error; err != nil {
		t.Fatalf("seed secret: %v", err)
	}

	obj := h.e.GET("/api/v1/admin/settings").
		WithHeader("Authorization", auth).
		Expect().
		Status(http.StatusOK).
		JSON().Object().
		Value("settings").Object()
	obj.Value("auth").Array().Length().IsEqual(2)
	obj.Value("sso").Array().Element(0).Object().
		ValueEqual("key", "sso.client_secret").
		ValueEqual("value", "********")

	h.e.PUT("/api/v1/admin/settings").
		WithHeader("Authorization", auth).
		WithJSON(map[string]any{"settings": map[string]string{"auth.token_ttl_minutes": "15", "portal.name": "Hillside"}}).
		Expect().
		Status(http.StatusOK).
		JSON().Object().
		ValueEqual("updated", 2)

	if got := h.srv.Settings.GetInt(context.Background(), "auth.token_ttl_minutes", 0); got != 15 {
		t.Fatalf("expected ttl 15, got %d", got)
	}

	h.e.PUT("/api/v1/admin/settings").
		WithHeader("Authorization", auth).
		WithJSON(map[string]any{"settings": map[string]string{}}).
		Expect().
		Status(http.StatusBadRequest)

	// unknown keys reject the whole batch
	h.e.PUT("/api/v1/admin/settings").
		WithHeader("Authorization", auth).
		WithJSON(map[string]any{"settings": map[string]string{"portal.name": "Riverside", "portal.nmae": "typo"}}).
		Expect().
		Status(http.StatusBadRequest).
		JSON().Object().
		ValueEqual("error", "invalid_request")

	if got := h.srv.Settings.GetValueOrDefault(context.Background(), "portal.name", ""); got != "Hillside" {
		t.Fatalf("expected portal.name unchanged, got %q", got)
	}

	h.e.GET("/api/v1/admin/settings").
		WithQuery("category", "auth").
		WithHeader("Authorization", auth).
		Expect().
		Status(http.StatusOK).
		JSON().Object().
		Value("settings").Object().
		Keys().ContainsOnly("auth")

	// managers do not hold canManageSettings
	h.e.GET("/api/v1/admin/settings").
		WithHeader("Authorization", bearer(h.token(t, h.manager))).
		Expect().
		Status(http.StatusForbidden)
}

func TestHealthzAndMetrics(t *testing.T) {
	h := newHarness(t)

	h.e.GET("/healthz").
		Expect().
		Status(http.StatusOK).
		JSON().Object().
		ValueEqual("status", "ok")

	// one check so the resolver series exist
	h.e.GET("/api/v1/schools/{schoolId}/permissions/check/canViewContent", h.school.ID).
		WithHeader("Authorization", bearer(h.token(t, h.teacher))).
		Expect().
		Status(http.StatusOK)

	h.e.GET("/metrics").
		Expect().
		Status(http.StatusOK).
		Body().
		Contains("portal_iam_authz_decisions_total").
		Contains("portal_iam_authz_resolve_duration_seconds")
}
