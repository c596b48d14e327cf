package models

import (
	"time"

	"github.com/edportal/portal-iam/permission"
)

// Member roles within a group.
const (
	GroupMemberRoleMember = "member"
	GroupMemberRoleAdmin  = "admin"
)

// Group is a named set of users carrying permission overrides. Groups are
// deactivated, never deleted.
type Group struct {
	ID            string    `gorm:"column:id;primaryKey" json:"id"`
	Name          string    `gorm:"column:name" json:"name"`
	Description   string    `gorm:"column:description" json:"description,omitempty"`
	InstitutionID *string   `gorm:"column:institution_id" json:"institution_id,omitempty"`
	SchoolID      *string   `gorm:"column:school_id" json:"school_id,omitempty"`
	IsActive      bool      `gorm:"column:is_active" json:"is_active"`
	MemberCount   int       `gorm:"column:member_count" json:"member_count"`
	CreatedBy     string    `gorm:"column:created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Group) TableName() string { return "user_groups" }

// GroupMember links a user to a group.
type GroupMember struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	GroupID    string    `gorm:"column:group_id;index" json:"group_id"`
	UserID     string    `gorm:"column:user_id;index" json:"user_id"`
	MemberRole string    `gorm:"column:member_role" json:"member_role"`
	AddedAt    time.Time `gorm:"column:added_at" json:"added_at"`
	AddedBy    string    `gorm:"column:added_by" json:"added_by,omitempty"`
}

func (GroupMember) TableName() string { return "group_members" }

// GroupPermission is one allow/deny for a group at a context. Global rows
// store an empty ContextID.
type GroupPermission struct {
	ID            string    `gorm:"column:id;primaryKey" json:"id"`
	GroupID       string    `gorm:"column:group_id;index" json:"group_id"`
	PermissionKey string    `gorm:"column:permission_key" json:"permission_key"`
	Allowed       bool      `gorm:"column:allowed" json:"allowed"`
	ContextType   string    `gorm:"column:context_type" json:"context_type"`
	ContextID     string    `gorm:"column:context_id" json:"context_id,omitempty"`
	UpdatedBy     string    `gorm:"column:updated_by" json:"updated_by,omitempty"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (GroupPermission) TableName() string { return "group_permissions" }

func (p GroupPermission) Context() permission.Context {
	return permission.Context{Type: permission.ContextType(p.ContextType), ID: p.ContextID}
}

// Rule converts the row into a resolver input.
func (p GroupPermission) Rule(groupName string) permission.Rule {
	return permission.Rule{
		Key:        permission.Key(p.PermissionKey),
		Allowed:    p.Allowed,
		Context:    p.Context(),
		Source:     permission.SourceGroup,
		SourceID:   p.GroupID,
		SourceName: groupName,
		UpdatedAt:  p.UpdatedAt,
	}
}
