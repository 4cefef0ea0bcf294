package store

import (
	"fmt"
	"strconv"
	"strings"

	"aula/api/internal/content"
)

var predicateColumns = map[content.Field]string{
	content.FieldKind:               "kind",
	content.FieldStatus:             "status",
	content.FieldVisibility:         "visibility",
	content.FieldOrganization:       "organization_id",
	content.FieldOwner:              "owner_id",
	content.FieldParent:             "parent_id",
	content.FieldDeleted:            "is_deleted",
	content.FieldEditRequestPending: "edit_request_pending",
}

var booleanColumns = map[string]bool{
	"is_deleted":           true,
	"edit_request_pending": true,
}

// WhereClause renders pred as a SQL boolean expression over content_items.
// Placeholders are numbered from argStart.
func WhereClause(pred content.Predicate, argStart int) (string, []any, error) {
	w := whereBuilder{next: argStart}
	all, err := w.conjunction(pred.All)
	if err != nil {
		return "", nil, err
	}
	parts := all
	if len(pred.Any) > 0 {
		groups := make([]string, 0, len(pred.Any))
		for _, group := range pred.Any {
			terms, err := w.conjunction(group)
			if err != nil {
				return "", nil, err
			}
			if len(terms) == 0 {
				groups = append(groups, "TRUE")
				continue
			}
			groups = append(groups, "("+strings.Join(terms, " AND ")+")")
		}
		parts = append(parts, "("+strings.Join(groups, " OR ")+")")
	}
	if len(parts) == 0 {
		return "TRUE", nil, nil
	}
	return strings.Join(parts, " AND "), w.args, nil
}

type whereBuilder struct {
	next int
	args []any
}

func (w *whereBuilder) conjunction(terms []content.Term) ([]string, error) {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		column, ok := predicateColumns[term.Field]
		if !ok {
			return nil, fmt.Errorf("unsupported predicate field %q", term.Field)
		}
		if term.Field == content.FieldOrganization && term.Value == "" {
			out = append(out, column+" IS NULL")
			continue
		}
		var arg any = term.Value
		if booleanColumns[column] {
			parsed, err := strconv.ParseBool(term.Value)
			if err != nil {
				return nil, fmt.Errorf("predicate field %q: %w", term.Field, err)
			}
			arg = parsed
		}
		w.args = append(w.args, arg)
		out = append(out, fmt.Sprintf("%s = $%d", column, w.next))
		w.next++
	}
	return out, nil
}
