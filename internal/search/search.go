package search

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"

	"aula/api/internal/content"
)

// Result is a single search hit returned to the caller.
type Result struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Name           string `json:"name"`
	Snippet        string `json:"snippet"`
	Status         string `json:"status"`
	OrganizationID string `json:"organizationId,omitempty"`
	Visibility     string `json:"visibility"`
}

// Query describes a search request. Predicate is the caller's read filter
// and is always applied.
type Query struct {
	Text      string
	Kind      content.Kind // empty = all kinds
	Predicate content.Predicate
	Limit     int
	Offset    int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

func (q Query) filter() content.Predicate {
	if q.Kind == "" {
		return q.Predicate
	}
	return q.Predicate.And(content.Eq(content.FieldKind, string(q.Kind)))
}

func (q Query) bounds() (int, int) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > content.MaxPageLimit {
		limit = content.MaxPageLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ItemRecord is the data we index for a content item. Organization is
// empty for items without a tenant.
type ItemRecord struct {
	ID                 string `json:"id"`
	Kind               string `json:"kind"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	Text               string `json:"text"`
	OwnerID            string `json:"ownerId"`
	OrganizationID     string `json:"organizationId"`
	Visibility         string `json:"visibility"`
	Status             string `json:"status"`
	IsDeleted          bool   `json:"isDeleted"`
	EditRequestPending bool   `json:"editRequestPending"`
	Version            int64  `json:"version"`
	CreatedAt          int64  `json:"createdAt"`
}

func RecordFromItem(item content.Item) ItemRecord {
	return ItemRecord{
		ID:                 item.ID,
		Kind:               string(item.Kind),
		Name:               item.Name,
		Description:        item.Description,
		Text:               PlainText(item.Body),
		OwnerID:            item.OwnerID,
		OrganizationID:     item.OrganizationID,
		Visibility:         string(item.Visibility),
		Status:             string(item.Status),
		IsDeleted:          item.IsDeleted,
		EditRequestPending: item.EditRequestPending,
		Version:            item.Version,
		CreatedAt:          item.CreatedAt.Unix(),
	}
}

const maxIndexedText = 20000

// PlainText flattens the string leaves of a JSON body into searchable
// text. Structural keys such as "type" and "id" are skipped.
func PlainText(body json.RawMessage) string {
	if len(body) == 0 {
		return ""
	}
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ""
	}
	var parts []string
	collectText(decoded, "", &parts)
	text := strings.Join(parts, " ")
	if len(text) > maxIndexedText {
		text = text[:maxIndexedText]
		for !utf8.ValidString(text) {
			text = text[:len(text)-1]
		}
	}
	return text
}

func collectText(node any, key string, parts *[]string) {
	switch v := node.(type) {
	case string:
		if key == "type" || key == "id" {
			return
		}
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			*parts = append(*parts, trimmed)
		}
	case []any:
		for _, child := range v {
			collectText(child, key, parts)
		}
	case map[string]any:
		for _, k := range sortedKeys(v) {
			collectText(v[k], k, parts)
		}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
