package rbac

import (
	"errors"
	"testing"
)

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "student read", role: RoleEstudiante, action: ActionRead, allow: true},
		{name: "student create", role: RoleEstudiante, action: ActionCreate, allow: false},
		{name: "student edit", role: RoleEstudiante, action: ActionEdit, allow: false},
		{name: "teacher create", role: RoleDocente, action: ActionCreate, allow: true},
		{name: "teacher edit", role: RoleDocente, action: ActionEdit, allow: true},
		{name: "teacher review", role: RoleDocente, action: ActionReview, allow: false},
		{name: "reviewer review", role: RoleRevisor, action: ActionReview, allow: true},
		{name: "reviewer create", role: RoleRevisor, action: ActionCreate, allow: false},
		{name: "reviewer moderate", role: RoleRevisor, action: ActionModerate, allow: false},
		{name: "admin moderate", role: RoleAdmin, action: ActionModerate, allow: true},
		{name: "unknown read", role: Role("guest"), action: ActionRead, allow: false},
		{name: "empty read", role: Role(""), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		input string
		want  Role
		ok    bool
	}{
		{input: "admin", want: RoleAdmin, ok: true},
		{input: " Revisor ", want: RoleRevisor, ok: true},
		{input: "DOCENTE", want: RoleDocente, ok: true},
		{input: "estudiante", want: RoleEstudiante, ok: true},
		{input: "viewer", ok: false},
		{input: "", ok: false},
	}

	for _, tc := range cases {
		got, err := Parse(tc.input)
		if tc.ok {
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tc.input, err)
			}
			if got != tc.want {
				t.Fatalf("Parse(%q) = %q, want %q", tc.input, got, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrUnknownRole) {
			t.Fatalf("Parse(%q) error = %v, want ErrUnknownRole", tc.input, err)
		}
	}
}

func TestIsReviewer(t *testing.T) {
	if !RoleAdmin.IsReviewer() || !RoleRevisor.IsReviewer() {
		t.Fatal("expected admin and revisor to be reviewers")
	}
	if RoleDocente.IsReviewer() || RoleEstudiante.IsReviewer() {
		t.Fatal("expected docente and estudiante not to be reviewers")
	}
}
