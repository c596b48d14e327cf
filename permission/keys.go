package permission

import (
	"sort"
	"strings"
)

// Key names a single capability in the portal.
type Key string

const (
	CanManageSystem           Key = "canManageSystem"
	CanManageInstitutions     Key = "canManageInstitutions"
	CanManageSchools          Key = "canManageSchools"
	CanManageUsers            Key = "canManageUsers"
	CanManageGroups           Key = "canManageGroups"
	CanManagePermissions      Key = "canManagePermissions"
	CanManageSettings         Key = "canManageSettings"
	CanManageCourses          Key = "canManageCourses"
	CanAccessCourses          Key = "canAccessCourses"
	CanManageContent          Key = "canManageContent"
	CanViewContent            Key = "canViewContent"
	CanManageCertificates     Key = "canManageCertificates"
	CanViewCertificates       Key = "canViewCertificates"
	CanSendNotifications      Key = "canSendNotifications"
	CanViewReports            Key = "canViewReports"
	CanManageGrades           Key = "canManageGrades"
	CanViewGrades             Key = "canViewGrades"
	CanViewOwnGrades          Key = "canViewOwnGrades"
	CanViewChildrenGrades     Key = "canViewChildrenGrades"
	CanManageAttendance       Key = "canManageAttendance"
	CanViewChildrenAttendance Key = "canViewChildrenAttendance"
)

var allKeys = []Key{
	CanManageSystem,
	CanManageInstitutions,
	CanManageSchools,
	CanManageUsers,
	CanManageGroups,
	CanManagePermissions,
	CanManageSettings,
	CanManageCourses,
	CanAccessCourses,
	CanManageContent,
	CanViewContent,
	CanManageCertificates,
	CanViewCertificates,
	CanSendNotifications,
	CanViewReports,
	CanManageGrades,
	CanViewGrades,
	CanViewOwnGrades,
	CanViewChildrenGrades,
	CanManageAttendance,
	CanViewChildrenAttendance,
}

var keyIndex = func() map[Key]int {
	m := make(map[Key]int, len(allKeys))
	for i, k := range allKeys {
		m[k] = i
	}
	return m
}()

// AllKeys returns every known key in catalog order.
func AllKeys() []Key {
	out := make([]Key, len(allKeys))
	copy(out, allKeys)
	return out
}

// ParseKey accepts the canonical spelling, falling back to a case-insensitive match.
func ParseKey(s string) (Key, bool) {
	s = strings.TrimSpace(s)
	if _, ok := keyIndex[Key(s)]; ok {
		return Key(s), true
	}
	for _, k := range allKeys {
		if strings.EqualFold(string(k), s) {
			return k, true
		}
	}
	return "", false
}

func (k Key) Valid() bool {
	_, ok := keyIndex[k]
	return ok
}

func (k Key) String() string { return string(k) }

// KeySet is an unordered set of keys.
type KeySet map[Key]struct{}

// NewKeySet builds a set from keys.
func NewKeySet(keys ...Key) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s KeySet) Has(k Key) bool {
	_, ok := s[k]
	return ok
}

// Clone returns an independent copy.
func (s KeySet) Clone() KeySet {
	out := make(KeySet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Sorted lists the set in catalog order.
func (s KeySet) Sorted() []Key {
	out := make([]Key, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sortKeys(out)
	return out
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keyIndex[keys[i]] < keyIndex[keys[j]] })
}
