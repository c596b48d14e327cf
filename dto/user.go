package dto

import (
	"time"

	"github.com/edportal/portal-iam/models"
)

// UserResponse represents a user in API responses. The role is always the
// canonical one, even for rows still carrying only legacy flags.
type UserResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	InstitutionID *string   `json:"institution_id,omitempty"`
	SchoolID      *string   `json:"school_id,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FromUser converts a models.User to UserResponse.
func FromUser(u *models.User) UserResponse {
	return UserResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.CanonicalRole().String(),
		InstitutionID: u.InstitutionID,
		SchoolID:      u.SchoolID,
		IsActive:      u.IsActive,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued access token. Permissions mirrors the
// token claim and is informational only.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        UserResponse `json:"user"`
	Permissions []string     `json:"permissions"`
}
