package models

import (
	"time"

	"github.com/edportal/portal-iam/permission"
)

// UserPermission is a direct per-user override.
type UserPermission struct {
	ID            string    `gorm:"column:id;primaryKey" json:"id"`
	UserID        string    `gorm:"column:user_id;index" json:"user_id"`
	PermissionKey string    `gorm:"column:permission_key" json:"permission_key"`
	Allowed       bool      `gorm:"column:allowed" json:"allowed"`
	ContextType   string    `gorm:"column:context_type" json:"context_type"`
	ContextID     string    `gorm:"column:context_id" json:"context_id,omitempty"`
	GrantedBy     string    `gorm:"column:granted_by" json:"granted_by,omitempty"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (UserPermission) TableName() string { return "user_permissions" }

func (p UserPermission) Context() permission.Context {
	return permission.Context{Type: permission.ContextType(p.ContextType), ID: p.ContextID}
}

func (p UserPermission) Rule() permission.Rule {
	return permission.Rule{
		Key:        permission.Key(p.PermissionKey),
		Allowed:    p.Allowed,
		Context:    p.Context(),
		Source:     permission.SourceDirect,
		SourceID:   p.UserID,
		SourceName: "direct",
		UpdatedAt:  p.UpdatedAt,
	}
}

// ContextualPermission is the materialized view of one effective permission
// with its provenance. It is never a table.
type ContextualPermission struct {
	ID            string            `json:"id,omitempty"`
	UserID        string            `json:"user_id"`
	PermissionKey permission.Key    `json:"permission_key"`
	Allowed       bool              `json:"allowed"`
	ContextType   string            `json:"context_type"`
	ContextID     string            `json:"context_id,omitempty"`
	Source        permission.Source `json:"source"`
	SourceID      string            `json:"source_id,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at,omitempty"`
}

// Contextual views a direct override as a ContextualPermission.
func (p UserPermission) Contextual() ContextualPermission {
	return ContextualPermission{
		ID:            p.ID,
		UserID:        p.UserID,
		PermissionKey: permission.Key(p.PermissionKey),
		Allowed:       p.Allowed,
		ContextType:   p.ContextType,
		ContextID:     p.ContextID,
		Source:        permission.SourceDirect,
		SourceID:      p.UserID,
		UpdatedAt:     p.UpdatedAt,
	}
}

// ContextualFromDecision views a resolver decision for userID.
func ContextualFromDecision(userID string, d permission.Decision) ContextualPermission {
	return ContextualPermission{
		UserID:        userID,
		PermissionKey: d.Key,
		Allowed:       d.Allowed,
		ContextType:   string(d.Context.Type),
		ContextID:     d.Context.ID,
		Source:        d.Source,
		SourceID:      d.SourceID,
	}
}
