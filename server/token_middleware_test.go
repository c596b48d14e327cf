package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edportal/portal-iam/generates"
	"github.com/gavv/httpexpect/v2"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTokenMiddleware_MissingOrMalformedHeader(t *testing.T) {
	h := newHarness(t)

	h.e.GET("/api/v1/groups").
		Expect().
		Status(http.StatusUnauthorized).
		JSON().Object().
		ValueEqual("error", "unauthenticated").
		ValueEqual("error_description", "unauthenticated")

	for _, header := range []string{"Token abc", "Bearer", "Bearer ", "Bearer a b", "abc"} {
		h.e.GET("/api/v1/groups").
			WithHeader("Authorization", header).
			Expect().
			Status(http.StatusUnauthorized).
			JSON().Object().
			ValueEqual("error", "unauthenticated")
	}

	n, err := testutil.GatherAndCount(h.srv.Registry, "portal_iam_authz_decisions_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 0 {
		t.Fatalf("resolver must not run without a bearer token, saw %d decision series", n)
	}
}

func TestTokenMiddleware_InvalidToken(t *testing.T) {
	h := newHarness(t)

	h.e.GET("/api/v1/me/permissions").
		WithHeader("Authorization", "Bearer not.a.jwt").
		Expect().
		Status(http.StatusUnauthorized).
		JSON().Object().
		ValueEqual("error", "invalid_token").
		ValueEqual("error_description", "invalid or expired token")

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &generates.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   h.teacher.ID,
			Issuer:    "portal-iam",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role: "TEACHER",
	}).SignedString(h.srv.Tokens.SignedKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	h.e.GET("/api/v1/me/permissions").
		WithHeader("Authorization", bearer(expired)).
		Expect().
		Status(http.StatusUnauthorized).
		JSON().Object().
		ValueEqual("error", "invalid_token")

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &generates.AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   h.teacher.ID,
			Issuer:    "portal-iam",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "WIZARD",
	}).SignedString(h.srv.Tokens.SignedKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	h.e.GET("/api/v1/me/permissions").
		WithHeader("Authorization", bearer(badRole)).
		Expect().
		Status(http.StatusUnauthorized).
		JSON().Object().
		ValueEqual("error", "invalid_token")
}

func TestTokenMiddleware_UserNoLongerExists(t *testing.T) {
	h := newHarness(t)
	ghost, _, err := h.srv.Tokens.Issue(generates.Subject{UserID: "0000deadbeef", Role: "TEACHER"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	h.e.GET("/api/v1/me/permissions").
		WithHeader("Authorization", bearer(ghost)).
		Expect().
		Status(http.StatusUnauthorized).
		JSON().Object().
		ValueEqual("error", "unauthenticated")

	h.e.GET("/api/v1/groups").
		WithHeader("Authorization", bearer(ghost)).
		Expect().
		Status(http.StatusUnauthorized)

	// a vanished administrator does not keep the bypass
	ghostAdmin, _, _ := h.srv.Tokens.Issue(generates.Subject{UserID: "0000deadbeef", Role: "SYSTEM_ADMIN"})
	h.e.GET("/api/v1/groups").
		WithHeader("Authorization", bearer(ghostAdmin)).
		Expect().
		Status(http.StatusUnauthorized)
}

func TestTokenMiddleware_SetsIdentityOnly(t *testing.T) {
	h := newHarness(t)

	r := gin.New()
	r.GET("/whoami", h.srv.TokenMiddleware(), func(c *gin.Context) {
		id, ok := GetIdentity(c)
		_, legacy := c.Get("user_id")
		c.JSON(http.StatusOK, gin.H{
			"identity":  ok,
			"legacy":    legacy,
			"user_id":   GetUserIDFromContext(c),
			"role":      id.Role.String(),
			"school_id": id.SchoolID,
		})
	})
	r.GET("/anonymous", func(c *gin.Context) {
		c.String(http.StatusOK, GetUserIDFromContext(c))
	})
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	e := httpexpect.Default(t, ts.URL)

	e.GET("/whoami").
		WithHeader("Authorization", bearer(h.token(t, h.teacher))).
		Expect().
		Status(http.StatusOK).
		JSON().Object().
		ValueEqual("identity", true).
		ValueEqual("legacy", false).
		ValueEqual("user_id", h.teacher.ID).
		ValueEqual("role", "TEACHER").
		ValueEqual("school_id", h.school.ID)

	e.GET("/anonymous").
		Expect().
		Status(http.StatusOK).
		Body().IsEmpty()
}
