package permission

import (
	"fmt"
	"strings"

	"github.com/edportal/portal-iam/errors"
)

// Role is the single canonical role a user holds.
type Role string

const (
	SystemAdmin        Role = "SYSTEM_ADMIN"
	InstitutionManager Role = "INSTITUTION_MANAGER"
	Coordinator        Role = "COORDINATOR"
	Teacher            Role = "TEACHER"
	Guardian           Role = "GUARDIAN"
	Student            Role = "STUDENT"
)

// catalog is built once at init and never written again.
var catalog = map[Role]KeySet{
	SystemAdmin: NewKeySet(allKeys...),
	InstitutionManager: NewKeySet(
		CanManageSchools,
		CanManageUsers,
		CanManageGroups,
		CanManagePermissions,
		CanManageCourses,
		CanAccessCourses,
		CanManageContent,
		CanViewContent,
		CanManageCertificates,
		CanViewCertificates,
		CanSendNotifications,
		CanViewReports,
		CanViewGrades,
	),
	Coordinator: NewKeySet(
		CanManageGroups,
		CanManageCourses,
		CanAccessCourses,
		CanManageContent,
		CanViewContent,
		CanViewCertificates,
		CanSendNotifications,
		CanViewReports,
		CanViewGrades,
		CanManageAttendance,
	),
	Teacher: NewKeySet(
		CanAccessCourses,
		CanViewContent,
		CanManageCertificates,
		CanViewCertificates,
		CanSendNotifications,
		CanManageGrades,
		CanViewGrades,
		CanManageAttendance,
	),
	Guardian: NewKeySet(
		CanViewContent,
		CanViewChildrenGrades,
		CanViewChildrenAttendance,
	),
	Student: NewKeySet(
		CanAccessCourses,
		CanViewContent,
		CanViewCertificates,
		CanViewOwnGrades,
	),
}

// Roles lists the catalog in descending privilege.
func Roles() []Role {
	return []Role{SystemAdmin, InstitutionManager, Coordinator, Teacher, Guardian, Student}
}

// ParseRole normalizes s (case, dashes, spaces) into a catalog role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(s))))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", errors.ErrUnknownRole, s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := catalog[r]
	return ok
}

func (r Role) String() string { return string(r) }

// PermissionsForRole returns the default grants of role. The result is a copy.
func PermissionsForRole(role Role) (KeySet, error) {
	set, ok := catalog[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownRole, string(role))
	}
	return set.Clone(), nil
}

// Flags are the legacy per-user booleans that predate the single role column.
type Flags struct {
	IsAdmin              bool
	IsManager            bool
	IsInstitutionManager bool
	IsCoordinator        bool
	IsTeacher            bool
	IsGuardian           bool
	IsStudent            bool
}

// RoleFromFlags collapses the legacy flags into one role using the fixed order
// admin > manager > coordinator > teacher > guardian > student. No flag at all
// yields STUDENT.
func RoleFromFlags(f Flags) Role {
	switch {
	case f.IsAdmin:
		return SystemAdmin
	case f.IsManager, f.IsInstitutionManager:
		return InstitutionManager
	case f.IsCoordinator:
		return Coordinator
	case f.IsTeacher:
		return Teacher
	case f.IsGuardian:
		return Guardian
	default:
		return Student
	}
}
