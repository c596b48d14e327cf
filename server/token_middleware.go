package server

import (
	"strings"

	"github.com/edportal/portal-iam/errors"
	"github.com/edportal/portal-iam/permission"
	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// Identity is the authenticated caller as carried by the access token.
type Identity struct {
	UserID        string
	Role          permission.Role
	InstitutionID string
	SchoolID      string
}

// TokenMiddleware validates the bearer token and sets the identity in context.
// It never consults the resolver.
func (s *Server) TokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			s.renderError(c, errors.ErrUnauthenticated)
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			s.renderError(c, errors.ErrUnauthenticated)
			return
		}

		claims, err := s.Tokens.Parse(parts[1])
		if err != nil {
			s.requestLogger(c).WithError(err).Debug("rejected bearer token")
			s.renderError(c, errors.ErrInvalidToken)
			return
		}
		role, err := permission.ParseRole(claims.Role)
		if err != nil {
			s.renderError(c, errors.ErrInvalidToken)
			return
		}

		c.Set(identityKey, Identity{
			UserID:        claims.Subject,
			Role:          role,
			InstitutionID: claims.InstitutionID,
			SchoolID:      claims.SchoolID,
		})
		c.Next()
	}
}

// GetIdentity retrieves the identity set by TokenMiddleware.
func GetIdentity(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// GetUserIDFromContext returns the subject of the identity set by
// TokenMiddleware, or "" on unauthenticated routes.
func GetUserIDFromContext(c *gin.Context) string {
	id, _ := GetIdentity(c)
	return id.UserID
}
