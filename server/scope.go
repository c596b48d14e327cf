package server

import (
	"context"

	"github.com/edportal/portal-iam/errors"
	"github.com/edportal/portal-iam/models"
	"github.com/edportal/portal-iam/permission"
	"github.com/gin-gonic/gin"
)

// actor is the caller as currently stored. Tenant and admin decisions are
// made on this record, never on token claims.
type actor struct {
	user  models.User
	admin bool
}

func (a actor) institution() string { return deref(a.user.InstitutionID) }

// loadActor re-reads the authenticated caller. On failure the error is
// rendered and ok is false.
func (s *Server) loadActor(c *gin.Context) (actor, bool) {
	id, ok := GetIdentity(c)
	if !ok {
		s.renderError(c, errors.ErrUnauthenticated)
		return actor{}, false
	}
	u, err := s.Users.GetUser(c.Request.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			err = errors.ErrUnauthenticated
		}
		s.renderError(c, err)
		return actor{}, false
	}
	if !u.IsActive {
		s.renderError(c, errors.ErrUnauthenticated)
		return actor{}, false
	}
	return actor{user: u, admin: u.CanonicalRole() == permission.SystemAdmin}, true
}

// inTenant reports whether pc lies inside the caller's institution. The
// global context belongs to no tenant.
func (s *Server) inTenant(ctx context.Context, a actor, pc permission.Context) (bool, error) {
	home := a.institution()
	if home == "" {
		return false, nil
	}
	switch pc.Type {
	case permission.ContextInstitution:
		return pc.ID == home, nil
	case permission.ContextSchool:
		inst := pc.InstitutionID
		if inst == "" {
			var err error
			if inst, err = s.Schools.SchoolInstitution(ctx, pc.ID); err != nil {
				return false, err
			}
		}
		return inst == home, nil
	}
	return false, nil
}

// authorizeAt requires a to hold every key at pc, inside their institution.
func (s *Server) authorizeAt(ctx context.Context, a actor, pc permission.Context, keys ...permission.Key) error {
	if a.admin {
		return nil
	}
	ok, err := s.inTenant(ctx, a, pc)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrForbidden
	}
	for _, k := range keys {
		held, err := s.Resolver.HasPermission(ctx, a.user.ID, k, pc)
		if err != nil {
			return err
		}
		if !held {
			return errors.ErrForbidden
		}
	}
	return nil
}

// authorizeRule guards writes of a rule for key at pc. Besides managing
// permissions at pc, a caller may only grant, or lift a rule on, a key they
// hold there themselves.
func (s *Server) authorizeRule(ctx context.Context, a actor, key permission.Key, pc permission.Context, grant bool) error {
	keys := []permission.Key{permission.CanManagePermissions}
	if grant && key != permission.CanManagePermissions {
		keys = append(keys, key)
	}
	return s.authorizeAt(ctx, a, pc, keys...)
}

// groupContext is the context that owns g.
func groupContext(g models.Group) permission.Context {
	if id := deref(g.SchoolID); id != "" {
		return permission.SchoolContext(id, deref(g.InstitutionID))
	}
	if id := deref(g.InstitutionID); id != "" {
		return permission.InstitutionContext(id)
	}
	return permission.Global()
}

// scopedGroup loads groupID and checks a holds key at the group's owning
// context. Groups without an owner are managed by administrators only.
func (s *Server) scopedGroup(c *gin.Context, a actor, groupID string, key permission.Key) (models.Group, bool) {
	ctx := c.Request.Context()
	g, err := s.Groups.GetGroup(ctx, groupID)
	if err != nil {
		s.renderError(c, err)
		return models.Group{}, false
	}
	if err := s.authorizeAt(ctx, a, groupContext(g), key); err != nil {
		s.renderError(c, err)
		return models.Group{}, false
	}
	return g, true
}

// notOwnGroup refuses rule changes on a group the caller belongs to.
func (s *Server) notOwnGroup(c *gin.Context, a actor, g models.Group) bool {
	if a.admin {
		return true
	}
	members, err := s.Groups.ListMembers(c.Request.Context(), g.ID)
	if err != nil {
		s.renderError(c, err)
		return false
	}
	for _, m := range members {
		if m.UserID == a.user.ID {
			s.renderError(c, errors.ErrForbidden)
			return false
		}
	}
	return true
}

// scopedUser loads userID and checks it shares the caller's institution.
// With write set, non-administrators may not target themselves.
func (s *Server) scopedUser(c *gin.Context, a actor, userID string, write bool) (models.User, bool) {
	u, err := s.Users.GetUser(c.Request.Context(), userID)
	if err != nil {
		s.renderError(c, err)
		return models.User{}, false
	}
	if a.admin {
		return u, true
	}
	if (write && u.ID == a.user.ID) || a.institution() == "" || deref(u.InstitutionID) != a.institution() {
		s.renderError(c, errors.ErrForbidden)
		return models.User{}, false
	}
	return u, true
}
