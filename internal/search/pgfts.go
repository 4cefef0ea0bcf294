package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"aula/api/internal/store"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true: without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search ranks content_items.fts against plainto_tsquery. The caller's
// predicate is rendered after the query text placeholder.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	limit, offset := q.bounds()

	where, filterArgs, err := store.WhereClause(q.filter(), 2)
	if err != nil {
		return nil, 0, err
	}
	args := append([]any{q.Text}, filterArgs...)
	const tsQuery = "plainto_tsquery('simple', $1)"

	countSQL := fmt.Sprintf(`SELECT count(*) FROM content_items WHERE fts @@ %s AND %s`, tsQuery, where)
	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}
	if total == 0 {
		return []Result{}, 0, nil
	}

	dataSQL := fmt.Sprintf(`
		SELECT id, kind, name,
			ts_headline('simple', coalesce(description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
			status, coalesce(organization_id, ''), visibility
		FROM content_items
		WHERE fts @@ %s AND %s
		ORDER BY ts_rank(fts, %s) DESC, created_at DESC
		LIMIT %d OFFSET %d`, tsQuery, tsQuery, where, tsQuery, limit, offset)

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0)
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Kind, &r.Name, &r.Snippet, &r.Status, &r.OrganizationID, &r.Visibility); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}
	return results, total, rows.Err()
}
