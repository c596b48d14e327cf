package server

import (
	"net/http"

	"github.com/edportal/portal-iam/dto"
	"github.com/edportal/portal-iam/errors"
	"github.com/edportal/portal-iam/permission"
	"github.com/gin-gonic/gin"
)

// queryContext reads ?context_type=&context_id=, defaulting to global.
func queryContext(c *gin.Context) (permission.Context, error) {
	return permission.NewContext(c.Query("context_type"), c.Query("context_id"))
}

func paramKey(c *gin.Context) (permission.Key, error) {
	k, ok := permission.ParseKey(c.Param("key"))
	if !ok {
		return "", errors.Validation("key", "unknown permission key")
	}
	return k, nil
}

// selfOr lets the caller act on their own user id, or on anyone when they
// hold key at pc.
func (s *Server) selfOr(c *gin.Context, target string, pc permission.Context, key permission.Key) bool {
	id, ok := GetIdentity(c)
	if !ok {
		s.renderError(c, errors.ErrUnauthenticated)
		return false
	}
	if id.UserID == target {
		return true
	}
	granted, err := s.check(c.Request.Context(), id, pc, true, key)
	if err != nil {
		s.renderError(c, err)
		return false
	}
	if !granted {
		s.renderError(c, errors.ErrForbidden)
		return false
	}
	return true
}

// HandleMyPermissionsGin returns the caller's matrix.
// GET /api/v1/me/permissions
func (s *Server) HandleMyPermissionsGin(c *gin.Context) {
	id, ok := GetIdentity(c)
	if !ok {
		s.renderError(c, errors.ErrUnauthenticated)
		return
	}
	pc, err := queryContext(c)
	if err != nil {
		s.renderError(c, err)
		return
	}
	m, err := s.Resolver.Resolve(c.Request.Context(), id.UserID, pc)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			err = errors.ErrUnauthenticated
		}
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromMatrix(id.UserID, m))
}

// HandleUserPermissionsGin returns another user's matrix.
// GET /api/v1/users/:userId/permissions
func (s *Server) HandleUserPermissionsGin(c *gin.Context) {
	target := c.Param("userId")
	pc, err := queryContext(c)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if !s.selfOr(c, target, pc, permission.CanManagePermissions) {
		return
	}
	m, err := s.Resolver.Resolve(c.Request.Context(), target, pc)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromMatrix(target, m))
}

// HandleExplainGin returns one decision with its provenance.
// GET /api/v1/users/:userId/permissions/:key/explain
func (s *Server) HandleExplainGin(c *gin.Context) {
	key, err := paramKey(c)
	if err != nil {
		s.renderError(c, err)
		return
	}
	pc, err := queryContext(c)
	if err != nil {
		s.renderError(c, err)
		return
	}
	target := c.Param("userId")
	d, err := s.Resolver.Explain(c.Request.Context(), target, key, pc)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromDecision(target, d))
}

// HandleCheckGin answers whether the caller holds key in the routed context.
// GET /api/v1/institutions/:institutionId/permissions/check/:key
// GET /api/v1/schools/:schoolId/permissions/check/:key
func (s *Server) HandleCheckGin(c *gin.Context) {
	id, ok := GetIdentity(c)
	if !ok {
		s.renderError(c, errors.ErrUnauthenticated)
		return
	}
	key, err := paramKey(c)
	if err != nil {
		s.renderError(c, err)
		return
	}
	pc := contextFromRequest(c)
	allowed, err := s.check(c.Request.Context(), id, pc, true, key)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CheckResponse{Key: key, Allowed: allowed, Context: pc})
}

// HandleUserGroupsGin lists the active groups a user belongs to.
// GET /api/v1/users/:userId/groups
func (s *Server) HandleUserGroupsGin(c *gin.Context) {
	target := c.Param("userId")
	if !s.selfOr(c, target, permission.Global(), permission.CanManageGroups) {
		return
	}
	groups, err := s.Groups.ListGroupsForUser(c.Request.Context(), target)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.GroupListResponse{Groups: groups, Total: len(groups)})
}
