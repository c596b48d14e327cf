package server

import (
	"context"

	"github.com/edportal/portal-iam/errors"
	"github.com/edportal/portal-iam/permission"
	"github.com/gin-gonic/gin"
)

// RequirePermission gates the route on every key at the request context.
func (s *Server) RequirePermission(keys ...permission.Key) gin.HandlerFunc {
	return s.requirePermissions(true, keys)
}

// RequireAnyPermission gates the route on at least one key.
func (s *Server) RequireAnyPermission(keys ...permission.Key) gin.HandlerFunc {
	return s.requirePermissions(false, keys)
}

func (s *Server) requirePermissions(all bool, keys []permission.Key) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := GetIdentity(c)
		if !ok {
			s.renderError(c, errors.ErrUnauthenticated)
			return
		}
		pc := contextFromRequest(c)

		granted, err := s.check(c.Request.Context(), id, pc, all, keys...)
		if err != nil {
			s.renderError(c, err)
			return
		}
		if !granted {
			s.requestLogger(c).WithField("context", pc.String()).Info("permission denied")
			s.renderError(c, errors.ErrForbidden)
			return
		}
		c.Next()
	}
}

// check evaluates keys for id at pc. A system administrator still present in
// the store passes without consulting the resolver. A user that no longer
// exists is unauthenticated, not forbidden.
func (s *Server) check(ctx context.Context, id Identity, pc permission.Context, all bool, keys ...permission.Key) (bool, error) {
	if id.Role == permission.SystemAdmin {
		u, err := s.Users.GetUser(ctx, id.UserID)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return false, errors.ErrUnauthenticated
			}
			return false, err
		}
		if !u.IsActive {
			return false, errors.ErrUnauthenticated
		}
		if u.CanonicalRole() == permission.SystemAdmin {
			return true, nil
		}
	}

	for _, k := range keys {
		allowed, err := s.Resolver.HasPermission(ctx, id.UserID, k, pc)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return false, errors.ErrUnauthenticated
			}
			return false, err
		}
		if allowed && !all {
			return true, nil
		}
		if !allowed && all {
			return false, nil
		}
	}
	return all && len(keys) > 0, nil
}

// contextFromRequest derives the permission context from route params:
// schoolId, then institutionId, else global.
func contextFromRequest(c *gin.Context) permission.Context {
	if id := c.Param("schoolId"); id != "" {
		return permission.SchoolContext(id, "")
	}
	if id := c.Param("institutionId"); id != "" {
		return permission.InstitutionContext(id)
	}
	return permission.Global()
}
