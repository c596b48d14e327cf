package dto

import (
	"github.com/edportal/portal-iam/models"
)

// CreateGroupRequest is the body of POST /groups.
type CreateGroupRequest struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	InstitutionID string `json:"institution_id"`
	SchoolID      string `json:"school_id"`
}

// AddMemberRequest is the body of POST /groups/:groupId/members.
type AddMemberRequest struct {
	UserID     string `json:"user_id"`
	MemberRole string `json:"member_role"`
}

// GroupListResponse wraps a group listing.
type GroupListResponse struct {
	Groups []models.Group `json:"groups"`
	Total  int            `json:"total"`
}

// MemberListResponse wraps a member listing.
type MemberListResponse struct {
	Members []models.GroupMember `json:"members"`
	Total   int                  `json:"total"`
}

// GroupPermissionListResponse wraps the rules a group carries.
type GroupPermissionListResponse struct {
	GroupID     string                   `json:"group_id"`
	Permissions []models.GroupPermission `json:"permissions"`
}
