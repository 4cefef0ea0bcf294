package rbac

import (
	"errors"
	"fmt"
	"strings"
)

type Role string
type Action string

const (
	RoleAdmin      Role = "admin"
	RoleRevisor    Role = "revisor"
	RoleDocente    Role = "docente"
	RoleEstudiante Role = "estudiante"
)

const (
	// ActionRead covers listing and viewing visible content.
	ActionRead Action = "read"
	// ActionCreate covers authoring new content items.
	ActionCreate Action = "create"
	// ActionEdit covers edits, submission and edit requests on owned or shared items.
	ActionEdit Action = "edit"
	// ActionReview covers approve, reject and request-changes decisions.
	ActionReview Action = "review"
	// ActionModerate covers edit-request decisions, archive, restore and the trash.
	ActionModerate Action = "moderate"
)

var ErrUnknownRole = errors.New("unknown role")

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleRevisor:
		return action == ActionRead || action == ActionReview
	case RoleDocente:
		return action == ActionRead || action == ActionCreate || action == ActionEdit
	case RoleEstudiante:
		return action == ActionRead
	default:
		return false
	}
}

// Parse maps a raw role claim onto the closed role set. Unknown values are
// rejected rather than downgraded.
func Parse(role string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(role)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleRevisor, RoleDocente, RoleEstudiante:
		return true
	default:
		return false
	}
}

// IsReviewer reports whether the role may decide on submissions.
func (r Role) IsReviewer() bool {
	return r == RoleAdmin || r == RoleRevisor
}
