package server

import (
	"net/http"

	"github.com/edportal/portal-iam/dto"
	"github.com/edportal/portal-iam/errors"
	"github.com/edportal/portal-iam/permission"
	"github.com/gin-gonic/gin"
)

// parsePermissionRequest validates the key, the allowed flag and the context
// of an upsert body.
func parsePermissionRequest(req dto.SetPermissionRequest) (permission.Key, permission.Context, error) {
	key, ok := permission.ParseKey(req.Key)
	if !ok {
		return "", permission.Context{}, errors.Validation("key", "unknown permission key")
	}
	if req.Allowed == nil {
		return "", permission.Context{}, errors.Validation("allowed", "required")
	}
	pc, err := req.Context()
	if err != nil {
		return "", permission.Context{}, err
	}
	return key, pc, nil
}

// GET /api/v1/users/:userId/overrides
func (s *Server) HandleListOverridesGin(c *gin.Context) {
	a, ok := s.loadActor(c)
	if !ok {
		return
	}
	u, ok := s.scopedUser(c, a, c.Param("userId"), false)
	if !ok {
		return
	}
	rows, err := s.Overrides.ListDirectPermissions(c.Request.Context(), u.ID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromOverrides(u.ID, rows))
}

// HandleSetOverrideGin upserts one direct override. Non-administrators may
// not target themselves, and may only grant keys they hold at the rule's
// context.
// PUT /api/v1/users/:userId/overrides
func (s *Server) HandleSetOverrideGin(c *gin.Context) {
	var req dto.SetPermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid JSON payload")
		return
	}
	key, pc, err := parsePermissionRequest(req)
	if err != nil {
		s.renderError(c, err)
		return
	}
	a, ok := s.loadActor(c)
	if !ok {
		return
	}
	u, ok := s.scopedUser(c, a, c.Param("userId"), true)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := s.authorizeRule(ctx, a, key, pc, *req.Allowed); err != nil {
		s.renderError(c, err)
		return
	}
	row, err := s.Overrides.SetDirectPermission(ctx, u.ID, key, *req.Allowed, pc, a.user.ID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// HandleRemoveOverrideGin deletes one direct override.
// DELETE /api/v1/users/:userId/overrides/:key?context_type=&context_id=
func (s *Server) HandleRemoveOverrideGin(c *gin.Context) {
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
	a, ok := s.loadActor(c)
	if !ok {
		return
	}
	u, ok := s.scopedUser(c, a, c.Param("userId"), true)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := s.authorizeRule(ctx, a, key, pc, true); err != nil {
		s.renderError(c, err)
		return
	}
	if err := s.Overrides.RemoveDirectPermission(ctx, u.ID, key, pc); err != nil {
		s.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
