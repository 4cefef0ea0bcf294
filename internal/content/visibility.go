package content

import (
	"strconv"
	"strings"

	"aula/api/internal/rbac"
)

// Field is a filterable attribute of an item.
type Field string

const (
	FieldKind               Field = "kind"
	FieldStatus             Field = "status"
	FieldVisibility         Field = "visibility"
	FieldOrganization       Field = "organization_id"
	FieldOwner              Field = "owner_id"
	FieldParent             Field = "parent_id"
	FieldDeleted            Field = "is_deleted"
	FieldEditRequestPending Field = "edit_request_pending"
)

// Term is an equality test on one field. An empty organization value
// matches items that belong to no organization.
type Term struct {
	Field Field
	Value string
}

func Eq(field Field, value string) Term {
	return Term{Field: field, Value: value}
}

func Flag(field Field, value bool) Term {
	return Term{Field: field, Value: strconv.FormatBool(value)}
}

// Predicate is a read filter in disjunctive form: every term in All must
// hold, and when Any is non-empty at least one of its groups must hold in
// full.
type Predicate struct {
	All []Term
	Any [][]Term
}

// And returns a copy of p with terms added to All.
func (p Predicate) And(terms ...Term) Predicate {
	out := Predicate{
		All: append(append([]Term(nil), p.All...), terms...),
		Any: p.Any,
	}
	return out
}

// IncludingDeleted drops the soft-delete restriction from p.
func (p Predicate) IncludingDeleted() Predicate {
	out := Predicate{Any: p.Any}
	for _, term := range p.All {
		if term.Field == FieldDeleted {
			continue
		}
		out.All = append(out.All, term)
	}
	return out
}

// Matches evaluates p against a single item.
func (p Predicate) Matches(item Item) bool {
	if !allMatch(p.All, item) {
		return false
	}
	if len(p.Any) == 0 {
		return true
	}
	for _, group := range p.Any {
		if allMatch(group, item) {
			return true
		}
	}
	return false
}

func (p Predicate) String() string {
	var parts []string
	for _, term := range p.All {
		parts = append(parts, term.String())
	}
	if len(p.Any) > 0 {
		var groups []string
		for _, group := range p.Any {
			var terms []string
			for _, term := range group {
				terms = append(terms, term.String())
			}
			groups = append(groups, "("+strings.Join(terms, " AND ")+")")
		}
		parts = append(parts, "("+strings.Join(groups, " OR ")+")")
	}
	if len(parts) == 0 {
		return "TRUE"
	}
	return strings.Join(parts, " AND ")
}

func (t Term) String() string {
	if t.Field == FieldOrganization && t.Value == "" {
		return string(t.Field) + " IS NULL"
	}
	return string(t.Field) + " = " + strconv.Quote(t.Value)
}

func allMatch(terms []Term, item Item) bool {
	for _, term := range terms {
		if fieldValue(item, term.Field) != term.Value {
			return false
		}
	}
	return true
}

func fieldValue(item Item, field Field) string {
	switch field {
	case FieldKind:
		return string(item.Kind)
	case FieldStatus:
		return string(item.Status)
	case FieldVisibility:
		return string(item.Visibility)
	case FieldOrganization:
		return item.OrganizationID
	case FieldOwner:
		return item.OwnerID
	case FieldParent:
		return item.ParentID
	case FieldDeleted:
		return strconv.FormatBool(item.IsDeleted)
	case FieldEditRequestPending:
		return strconv.FormatBool(item.EditRequestPending)
	default:
		return "\x00"
	}
}

// VisibilityFor builds the read predicate for caller. Roles outside the
// known set are refused.
func VisibilityFor(c Caller) (Predicate, error) {
	notDeleted := Flag(FieldDeleted, false)
	approved := Eq(FieldStatus, string(StatusApproved))
	public := Eq(FieldVisibility, string(VisibilityPublic))
	org := c.OrganizationID

	switch c.Role {
	case rbac.RoleEstudiante:
		if org == "" {
			return Predicate{All: []Term{notDeleted, approved, public}}, nil
		}
		return Predicate{
			All: []Term{notDeleted, approved},
			Any: [][]Term{
				{Eq(FieldOrganization, org)},
				{public},
			},
		}, nil

	case rbac.RoleDocente:
		owned := []Term{Eq(FieldOwner, c.ID)}
		if org == "" {
			return Predicate{
				All: []Term{notDeleted},
				Any: [][]Term{owned, {public, approved}},
			}, nil
		}
		return Predicate{
			All: []Term{notDeleted},
			Any: [][]Term{owned, {Eq(FieldOrganization, org), approved}},
		}, nil

	case rbac.RoleRevisor:
		// A reviewer without a tenant moderates content that has none.
		return Predicate{All: []Term{notDeleted, Eq(FieldOrganization, org)}}, nil

	case rbac.RoleAdmin:
		if org == "" {
			return Predicate{All: []Term{notDeleted}}, nil
		}
		return Predicate{All: []Term{notDeleted, Eq(FieldOrganization, org)}}, nil

	default:
		return Predicate{}, Forbiddenf("unknown role %q", c.Role)
	}
}

// WithinTenant reports whether item falls under the organization scope of
// a reviewer or admin caller. A global admin covers every tenant.
func WithinTenant(c Caller, item Item) bool {
	if c.Role == rbac.RoleAdmin && c.OrganizationID == "" {
		return true
	}
	return item.OrganizationID == c.OrganizationID
}
