package permission

import (
	"testing"

	"github.com/edportal/portal-iam/errors"
)

func TestParseKey(t *testing.T) {
	cases := []struct {
		in   string
		want Key
		ok   bool
	}{
		{"canManageGrades", CanManageGrades, true},
		{"CANMANAGEGRADES", CanManageGrades, true},
		{" canViewChildrenGrades ", CanViewChildrenGrades, true},
		{"canManageGrade", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := ParseKey(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("ParseKey(%q) = (%v,%v), want (%v,%v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestPermissionsForRole(t *testing.T) {
	set, err := PermissionsForRole(Teacher)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !set.Has(CanManageGrades) {
		t.Fatal("TEACHER should grant canManageGrades")
	}
	if set.Has(CanManageSystem) {
		t.Fatal("TEACHER should not grant canManageSystem")
	}

	admin, _ := PermissionsForRole(SystemAdmin)
	if len(admin) != len(AllKeys()) {
		t.Fatalf("SYSTEM_ADMIN should grant every key, got %d of %d", len(admin), len(AllKeys()))
	}

	if _, err := PermissionsForRole("JANITOR"); !errors.Is(err, errors.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestPermissionsForRoleReturnsCopy(t *testing.T) {
	set, _ := PermissionsForRole(Student)
	delete(set, CanViewContent)
	set[CanManageSystem] = struct{}{}

	again, _ := PermissionsForRole(Student)
	if !again.Has(CanViewContent) || again.Has(CanManageSystem) {
		t.Fatal("catalog was mutated through a returned set")
	}
}

func TestEveryRoleGrantsOnlyKnownKeys(t *testing.T) {
	for _, r := range Roles() {
		set, err := PermissionsForRole(r)
		if err != nil {
			t.Fatalf("role %s: %v", r, err)
		}
		for k := range set {
			if !k.Valid() {
				t.Fatalf("role %s grants unknown key %q", r, k)
			}
		}
	}
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"SYSTEM_ADMIN":        SystemAdmin,
		"institution-manager": InstitutionManager,
		"teacher":             Teacher,
		" Guardian ":          Guardian,
	}
	for in, want := range cases {
		got, err := ParseRole(in)
		if err != nil || got != want {
			t.Fatalf("ParseRole(%q) = (%v,%v), want %v", in, got, err, want)
		}
	}
	if _, err := ParseRole("principal"); !errors.Is(err, errors.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestRoleFromFlags(t *testing.T) {
	cases := []struct {
		name  string
		flags Flags
		want  Role
	}{
		{"none", Flags{}, Student},
		{"student", Flags{IsStudent: true}, Student},
		{"guardian", Flags{IsGuardian: true, IsStudent: true}, Guardian},
		{"teacher over guardian", Flags{IsTeacher: true, IsGuardian: true}, Teacher},
		{"coordinator over teacher", Flags{IsCoordinator: true, IsTeacher: true}, Coordinator},
		{"manager over coordinator", Flags{IsManager: true, IsCoordinator: true}, InstitutionManager},
		{"institution manager", Flags{IsInstitutionManager: true}, InstitutionManager},
		{"admin wins", Flags{IsAdmin: true, IsManager: true, IsTeacher: true}, SystemAdmin},
	}
	for _, c := range cases {
		if got := RoleFromFlags(c.flags); got != c.want {
			t.Fatalf("%s: RoleFromFlags = %v, want %v", c.name, got, c.want)
		}
	}
}
