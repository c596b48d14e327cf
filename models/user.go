package models

import (
	"time"

	"github.com/edportal/portal-iam/permission"
)

// User is a portal account. Role is the canonical single role; the Is* flags
// are the legacy columns it was derived from.
type User struct {
	ID                   string    `gorm:"column:id;primaryKey" json:"id"`
	Email                string    `gorm:"column:email;uniqueIndex" json:"email"`
	Name                 string    `gorm:"column:name" json:"name"`
	PasswordHash         string    `gorm:"column:password_hash" json:"-"`
	Role                 string    `gorm:"column:role" json:"role"`
	InstitutionID        *string   `gorm:"column:institution_id" json:"institution_id,omitempty"`
	SchoolID             *string   `gorm:"column:school_id" json:"school_id,omitempty"`
	IsActive             bool      `gorm:"column:is_active" json:"is_active"`
	IsAdmin              bool      `gorm:"column:is_admin" json:"-"`
	IsManager            bool      `gorm:"column:is_manager" json:"-"`
	IsInstitutionManager bool      `gorm:"column:is_institution_manager" json:"-"`
	IsCoordinator        bool      `gorm:"column:is_coordinator" json:"-"`
	IsTeacher            bool      `gorm:"column:is_teacher" json:"-"`
	IsGuardian           bool      `gorm:"column:is_guardian" json:"-"`
	IsStudent            bool      `gorm:"column:is_student" json:"-"`
	CreatedAt            time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string { return "users" }

// Flags returns the legacy role booleans.
func (u User) Flags() permission.Flags {
	return permission.Flags{
		IsAdmin:              u.IsAdmin,
		IsManager:            u.IsManager,
		IsInstitutionManager: u.IsInstitutionManager,
		IsCoordinator:        u.IsCoordinator,
		IsTeacher:            u.IsTeacher,
		IsGuardian:           u.IsGuardian,
		IsStudent:            u.IsStudent,
	}
}

// CanonicalRole returns the stored role when valid, otherwise the role
// derived from the legacy flags.
func (u User) CanonicalRole() permission.Role {
	if r, err := permission.ParseRole(u.Role); err == nil {
		return r
	}
	return permission.RoleFromFlags(u.Flags())
}

// HomeContext is the most specific context the user is attached to.
func (u User) HomeContext() permission.Context {
	switch {
	case deref(u.SchoolID) != "":
		return permission.SchoolContext(deref(u.SchoolID), deref(u.InstitutionID))
	case deref(u.InstitutionID) != "":
		return permission.InstitutionContext(deref(u.InstitutionID))
	default:
		return permission.Global()
	}
}

// SetHome attaches the user to an institution and optionally a school.
func (u *User) SetHome(institutionID, schoolID string) {
	u.InstitutionID = strPtr(institutionID)
	u.SchoolID = strPtr(schoolID)
}
