package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"aula/api/internal/content"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/sirupsen/logrus"
)

const idxContent = "aula_content"

var meiliAttributes = map[content.Field]string{
	content.FieldKind:               "kind",
	content.FieldStatus:             "status",
	content.FieldVisibility:         "visibility",
	content.FieldOrganization:       "organizationId",
	content.FieldOwner:              "ownerId",
	content.FieldDeleted:            "isDeleted",
	content.FieldEditRequestPending: "editRequestPending",
}

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates a Meilisearch client and configures the content index.
// An unreachable server is tolerated; the health loop picks it up later.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		logrus.WithError(err).WithField("url", url).Warn("search: meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxContent,
		PrimaryKey: "id",
	}); err != nil {
		logrus.WithError(err).Debug("search: create index (may already exist)")
	}

	index := m.client.Index(idxContent)
	filterable := make([]interface{}, 0, len(meiliAttributes))
	for _, attr := range []string{"kind", "status", "visibility", "organizationId", "ownerId", "isDeleted", "editRequestPending"} {
		filterable = append(filterable, attr)
	}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		logrus.WithError(err).Warn("search: update filterable attributes")
	}
	searchable := []string{"name", "description", "text"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		logrus.WithError(err).Warn("search: update searchable attributes")
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				logrus.Info("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

func (m *Meili) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}
	filter, err := MeiliFilter(q.filter())
	if err != nil {
		return nil, 0, err
	}
	limit, offset := q.bounds()

	sr := &meili.SearchRequest{
		IndexUID:              idxContent,
		Query:                 q.Text,
		Limit:                 int64(limit),
		Offset:                int64(offset),
		AttributesToHighlight: []string{"name", "description"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	}
	if filter != "" {
		sr.Filter = filter
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{sr},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	var results []Result
	total := 0
	for _, res := range resp.Results {
		total += int(res.EstimatedTotalHits)
		for _, hit := range res.Hits {
			results = append(results, hitToResult(hit))
		}
	}
	return results, total, nil
}

// MeiliFilter renders pred as a Meilisearch filter expression.
func MeiliFilter(pred content.Predicate) (string, error) {
	var parts []string
	all, err := meiliConjunction(pred.All)
	if err != nil {
		return "", err
	}
	parts = append(parts, all...)
	if len(pred.Any) > 0 {
		groups := make([]string, 0, len(pred.Any))
		for _, group := range pred.Any {
			terms, err := meiliConjunction(group)
			if err != nil {
				return "", err
			}
			groups = append(groups, "("+strings.Join(terms, " AND ")+")")
		}
		parts = append(parts, "("+strings.Join(groups, " OR ")+")")
	}
	return strings.Join(parts, " AND "), nil
}

func meiliConjunction(terms []content.Term) ([]string, error) {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		attr, ok := meiliAttributes[term.Field]
		if !ok {
			return nil, fmt.Errorf("search: unsupported filter field %q", term.Field)
		}
		switch {
		case term.Field == content.FieldOrganization && term.Value == "":
			out = append(out, attr+" IS EMPTY")
		case term.Field == content.FieldDeleted || term.Field == content.FieldEditRequestPending:
			value, err := strconv.ParseBool(term.Value)
			if err != nil {
				return nil, fmt.Errorf("search: %s expects a boolean: %w", term.Field, err)
			}
			out = append(out, fmt.Sprintf("%s = %t", attr, value))
		default:
			out = append(out, fmt.Sprintf("%s = %q", attr, term.Value))
		}
	}
	return out, nil
}

func hitToResult(hit meili.Hit) Result {
	return Result{
		ID:             decodeString(hit, "id"),
		Kind:           decodeString(hit, "kind"),
		Name:           firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name")),
		Snippet:        firstNonBlank(decodeFormattedString(hit, "description"), decodeString(hit, "description")),
		Status:         decodeString(hit, "status"),
		OrganizationID: decodeString(hit, "organizationId"),
		Visibility:     decodeString(hit, "visibility"),
	}
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	value, _ := formatted[key].(string)
	return strings.TrimSpace(value)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

// IndexItems adds or replaces item records in the index.
func (m *Meili) IndexItems(records []ItemRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxContent).AddDocuments(records, nil)
	return err
}
