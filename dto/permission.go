package dto

import (
	"github.com/edportal/portal-iam/models"
	"github.com/edportal/portal-iam/permission"
)

// SetPermissionRequest is the body of the group permission and override
// upserts. Allowed is a pointer so that a missing value is rejected instead
// of silently meaning deny.
type SetPermissionRequest struct {
	Key         string `json:"key"`
	Allowed     *bool  `json:"allowed"`
	ContextType string `json:"context_type"`
	ContextID   string `json:"context_id"`
}

// Context validates the addressed context of the request.
func (r SetPermissionRequest) Context() (permission.Context, error) {
	return permission.NewContext(r.ContextType, r.ContextID)
}

// MatrixResponse is a resolved matrix. Granted lists the allowed keys in
// catalog order; Permissions carries every key with its provenance.
type MatrixResponse struct {
	UserID      string                `json:"user_id"`
	Role        string                `json:"role"`
	Context     permission.Context    `json:"context"`
	Granted     []permission.Key      `json:"granted"`
	Permissions []permission.Decision `json:"permissions"`
}

// FromMatrix converts a resolved matrix.
func FromMatrix(userID string, m permission.Matrix) MatrixResponse {
	return MatrixResponse{
		UserID:      userID,
		Role:        m.Role.String(),
		Context:     m.Context,
		Granted:     m.Granted(),
		Permissions: m.Entries(),
	}
}

// CheckResponse answers a point query. It never names the winning rule.
type CheckResponse struct {
	Key     permission.Key     `json:"key"`
	Allowed bool               `json:"allowed"`
	Context permission.Context `json:"context"`
}

// ExplainResponse is a point query with provenance.
type ExplainResponse struct {
	models.ContextualPermission
	SourceName string `json:"source_name,omitempty"`
}

// FromDecision converts a decision for userID.
func FromDecision(userID string, d permission.Decision) ExplainResponse {
	return ExplainResponse{
		ContextualPermission: models.ContextualFromDecision(userID, d),
		SourceName:           d.SourceName,
	}
}

// OverrideListResponse wraps a user's direct overrides.
type OverrideListResponse struct {
	UserID    string                        `json:"user_id"`
	Overrides []models.ContextualPermission `json:"overrides"`
}

// FromOverrides converts stored overrides.
func FromOverrides(userID string, rows []models.UserPermission) OverrideListResponse {
	out := OverrideListResponse{UserID: userID, Overrides: make([]models.ContextualPermission, 0, len(rows))}
	for _, r := range rows {
		out.Overrides = append(out.Overrides, r.Contextual())
	}
	return out
}
