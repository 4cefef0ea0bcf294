package store

import (
	"testing"

	"aula/api/internal/content"
	"aula/api/internal/rbac"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhereClause(t *testing.T) {
	cases := []struct {
		name   string
		caller content.Caller
		where  string
		args   []any
	}{
		{
			name:   "anonymous",
			caller: content.Anonymous(),
			where:  "is_deleted = $1 AND status = $2 AND visibility = $3",
			args:   []any{false, "approved", "public"},
		},
		{
			name:   "student in organization",
			caller: content.Caller{ID: "s1", Role: rbac.RoleEstudiante, OrganizationID: "org1"},
			where:  "is_deleted = $1 AND status = $2 AND ((organization_id = $3) OR (visibility = $4))",
			args:   []any{false, "approved", "org1", "public"},
		},
		{
			name:   "teacher without organization",
			caller: content.Caller{ID: "t1", Role: rbac.RoleDocente},
			where:  "is_deleted = $1 AND ((owner_id = $2) OR (visibility = $3 AND status = $4))",
			args:   []any{false, "t1", "public", "approved"},
		},
		{
			name:   "reviewer without organization",
			caller: content.Caller{ID: "r1", Role: rbac.RoleRevisor},
			where:  "is_deleted = $1 AND organization_id IS NULL",
			args:   []any{false},
		},
		{
			name:   "global admin",
			caller: content.Caller{ID: "a1", Role: rbac.RoleAdmin},
			where:  "is_deleted = $1",
			args:   []any{false},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pred, err := content.VisibilityFor(tc.caller)
			require.NoError(t, err)
			where, args, err := WhereClause(pred, 1)
			require.NoError(t, err)
			assert.Equal(t, tc.where, where)
			assert.Equal(t, tc.args, args)
		})
	}
}

func TestWhereClauseOffsetsAndEmpty(t *testing.T) {
	where, args, err := WhereClause(content.Predicate{}, 1)
	require.NoError(t, err)
	assert.Equal(t, "TRUE", where)
	assert.Empty(t, args)

	pred := content.Predicate{All: []content.Term{content.Eq(content.FieldKind, "quiz"), content.Flag(content.FieldEditRequestPending, true)}}
	where, args, err = WhereClause(pred, 3)
	require.NoError(t, err)
	assert.Equal(t, "kind = $3 AND edit_request_pending = $4", where)
	assert.Equal(t, []any{"quiz", true}, args)
}

func TestWhereClauseRejectsUnknownField(t *testing.T) {
	_, _, err := WhereClause(content.Predicate{All: []content.Term{{Field: "password", Value: "x"}}}, 1)
	assert.Error(t, err)
}
