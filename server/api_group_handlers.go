package server

import (
	"net/http"
	"strconv"

	"github.com/edportal/portal-iam/dto"
	"github.com/edportal/portal-iam/errors"
	"github.com/edportal/portal-iam/models"
	"github.com/edportal/portal-iam/permission"
	"github.com/edportal/portal-iam/store"
	"github.com/gin-gonic/gin"
)

// HandleListGroupsGin lists groups, optionally filtered by owner. Callers
// other than administrators only see their own institution.
// GET /api/v1/groups?institution_id=&school_id=&include_inactive=
func (s *Server) HandleListGroupsGin(c *gin.Context) {
	a, ok := s.loadActor(c)
	if !ok {
		return
	}
	includeInactive, _ := strconv.ParseBool(c.Query("include_inactive"))
	filter := store.GroupFilter{
		InstitutionID:   c.Query("institution_id"),
		SchoolID:        c.Query("school_id"),
		IncludeInactive: includeInactive,
	}
	if !a.admin {
		if filter.InstitutionID != "" && filter.InstitutionID != a.institution() {
			s.renderError(c, errors.ErrForbidden)
			return
		}
		if a.institution() == "" {
			s.renderError(c, errors.ErrForbidden)
			return
		}
		filter.InstitutionID = a.institution()
	}
	groups, err := s.Groups.ListGroups(c.Request.Context(), filter)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.GroupListResponse{Groups: groups, Total: len(groups)})
}

// HandleCreateGroupGin creates a group.
// POST /api/v1/groups
func (s *Server) HandleCreateGroupGin(c *gin.Context) {
	var req dto.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid JSON payload")
		return
	}
	a, ok := s.loadActor(c)
	if !ok {
		return
	}
	if !a.admin {
		owner := permission.InstitutionContext(req.InstitutionID)
		switch {
		case req.SchoolID != "":
			owner = permission.SchoolContext(req.SchoolID, "")
		case req.InstitutionID == "":
			req.InstitutionID = a.institution()
			owner = permission.InstitutionContext(req.InstitutionID)
		}
		if err := s.authorizeAt(c.Request.Context(), a, owner, permission.CanManageGroups); err != nil {
			s.renderError(c, err)
			return
		}
	}
	g, err := s.Groups.CreateGroup(c.Request.Context(), store.CreateGroupInput{
		Name:          req.Name,
		Description:   req.Description,
		InstitutionID: req.InstitutionID,
		SchoolID:      req.SchoolID,
		CreatedBy:     a.user.ID,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// GET /api/v1/groups/:groupId
func (s *Server) HandleGetGroupGin(c *gin.Context) {
	a, ok := s.loadActor(c)
	if !ok {
		return
	}
	g, ok := s.scopedGroup(c, a, c.Param("groupId"), permission.CanManageGroups)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, g)
}

// HandleDeactivateGroupGin soft-deletes a group.
// POST /api/v1/groups/:groupId/deactivate
func (s *Server) HandleDeactivateGroupGin(c *gin.Context) {
	a, ok := s.loadActor(c)
	if !ok {
		return
	}
	groupID := c.Param("groupId")
	if _, ok := s.scopedGroup(c, a, groupID, permission.CanManageGroups); !ok {
		return
	}
	if err := s.Groups.DeactivateGroup(c.Request.Context(), groupID); err != nil {
		s.renderError(c, err)
		return
	}
	s.requestLogger(c).WithField("group_id", groupID).Info("group deactivated")
	c.JSON(http.StatusOK, gin.H{"success": true, "group_id": groupID})
}

// GET /api/v1/groups/:groupId/members
func (s *Server) HandleListMembersGin(c *gin.Context) {
	a, ok := s.loadActor(c)
	if !ok {
		return
	}
	g, ok := s.scopedGroup(c, a, c.Param("groupId"), permission.CanManageGroups)
	if !ok {
		return
	}
	members, err := s.Groups.ListMembers(c.Request.Context(), g.ID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MemberListResponse{Members: members, Total: len(members)})
}

// HandleAddMemberGin adds a user of the caller's institution to a group. A
// missing member_role falls back to the configured default. Only
// administrators may add themselves.
// POST /api/v1/groups/:groupId/members
func (s *Server) HandleAddMemberGin(c *gin.Context) {
	var req dto.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid JSON payload")
		return
	}
	if req.UserID == "" {
		s.renderError(c, errors.Validation("user_id", "required"))
		return
	}
	a, ok := s.loadActor(c)
	if !ok {
		return
	}
	g, ok := s.scopedGroup(c, a, c.Param("groupId"), permission.CanManageGroups)
	if !ok {
		return
	}
	if _, ok := s.scopedUser(c, a, req.UserID, true); !ok {
		return
	}
	ctx := c.Request.Context()
	role := req.MemberRole
	if role == "" {
		role = s.Settings.GetValueOrDefault(ctx, store.SettingDefaultMemberRole, models.GroupMemberRoleMember)
	}
	m, err := s.Groups.AddMember(ctx, g.ID, req.UserID, role, a.user.ID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// DELETE /api/v1/groups/:groupId/members/:userId
func (s *Server) HandleRemoveMemberGin(c *gin.Context) {
	a, ok := s.loadActor(c)
	if !ok {
		return
	}
	g, ok := s.scopedGroup(c, a, c.Param("groupId"), permission.CanManageGroups)
	if !ok {
		return
	}
	u, ok := s.scopedUser(c, a, c.Param("userId"), true)
	if !ok {
		return
	}
	if err := s.Groups.RemoveMember(c.Request.Context(), g.ID, u.ID); err != nil {
		s.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/v1/groups/:groupId/permissions
func (s *Server) HandleListGroupPermissionsGin(c *gin.Context) {
	a, ok := s.loadActor(c)
	if !ok {
		return
	}
	g, ok := s.scopedGroup(c, a, c.Param("groupId"), permission.CanManagePermissions)
	if !ok {
		return
	}
	rows, err := s.Groups.ListGroupPermissions(c.Request.Context(), g.ID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.GroupPermissionListResponse{GroupID: g.ID, Permissions: rows})
}

// HandleSetGroupPermissionGin upserts one group rule. The caller must manage
// permissions at both the group's owning context and the rule's context, and
// may not change a group they belong to.
// PUT /api/v1/groups/:groupId/permissions
func (s *Server) HandleSetGroupPermissionGin(c *gin.Context) {
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
	g, ok := s.scopedGroup(c, a, c.Param("groupId"), permission.CanManagePermissions)
	if !ok || !s.notOwnGroup(c, a, g) {
		return
	}
	ctx := c.Request.Context()
	if err := s.authorizeRule(ctx, a, key, pc, *req.Allowed); err != nil {
		s.renderError(c, err)
		return
	}
	row, err := s.Groups.SetGroupPermission(ctx, g.ID, key, *req.Allowed, pc, a.user.ID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// HandleRemoveGroupPermissionGin deletes one group rule.
// DELETE /api/v1/groups/:groupId/permissions/:key?context_type=&context_id=
func (s *Server) HandleRemoveGroupPermissionGin(c *gin.Context) {
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
	g, ok := s.scopedGroup(c, a, c.Param("groupId"), permission.CanManagePermissions)
	if !ok || !s.notOwnGroup(c, a, g) {
		return
	}
	ctx := c.Request.Context()
	if err := s.authorizeRule(ctx, a, key, pc, true); err != nil {
		s.renderError(c, err)
		return
	}
	if err := s.Groups.RemoveGroupPermission(ctx, g.ID, key, pc); err != nil {
		s.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
