package server

import (
	"net/http"
	"strings"

	"github.com/edportal/portal-iam/dto"
	"github.com/edportal/portal-iam/errors"
	"github.com/edportal/portal-iam/generates"
	"github.com/edportal/portal-iam/permission"
	"github.com/edportal/portal-iam/store"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HandleLoginGin authenticates a user by email and password and issues an
// access token carrying the matrix of the user's home context.
// POST /api/v1/auth/login
func (s *Server) HandleLoginGin(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		s.badRequest(c, "email and password are required")
		return
	}

	ctx := c.Request.Context()
	if !s.Settings.GetBool(ctx, store.SettingAllowLogin, true) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":             errors.Code(errors.ErrForbidden),
			"error_description": "login is disabled",
		})
		return
	}

	invalid := func() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":             errors.Code(errors.ErrUnauthenticated),
			"error_description": "invalid email or password",
		})
	}
	u, err := s.Users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			invalid()
			return
		}
		s.renderError(c, err)
		return
	}
	if !u.IsActive || !store.CheckPassword(u.PasswordHash, req.Password) {
		s.requestLogger(c).WithField("user_id", u.ID).Info("login rejected")
		invalid()
		return
	}

	home := u.HomeContext()
	m, err := s.Resolver.Resolve(ctx, u.ID, home)
	if err != nil {
		s.renderError(c, err)
		return
	}
	ttl := s.Settings.TokenTTL(ctx, s.Tokens.TTL)
	role := u.CanonicalRole()
	token, _, err := s.Tokens.Issue(generates.Subject{
		UserID:        u.ID,
		Role:          role,
		InstitutionID: deref(u.InstitutionID),
		SchoolID:      deref(u.SchoolID),
		Permissions:   m.Granted(),
		TTL:           ttl,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}

	s.requestLogger(c).WithFields(logrus.Fields{"user_id": u.ID, "role": role}).Info("login succeeded")
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, dto.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		User:        dto.FromUser(&u),
		Permissions: keyStrings(m.Granted()),
	})
}

func keyStrings(keys []permission.Key) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.String())
	}
	return out
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
