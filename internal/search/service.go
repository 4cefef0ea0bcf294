package search

import (
	"context"
	"sync"

	"aula/api/internal/content"

	"github.com/sirupsen/logrus"
)

// ItemSource pages through stored items for reindexing.
type ItemSource interface {
	FindMatching(ctx context.Context, pred content.Predicate, page content.Page) ([]content.Item, error)
}

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
	gate  versionGate
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// versionGate serializes writes to the index and drops records older than
// one already written for the same item. Meilisearch applies document
// additions in the order they are enqueued.
type versionGate struct {
	mu   sync.Mutex
	sent map[string]int64
}

func (g *versionGate) write(records []ItemRecord, send func([]ItemRecord) error) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sent == nil {
		g.sent = make(map[string]int64)
	}

	fresh := make([]ItemRecord, 0, len(records))
	for _, record := range records {
		if last, ok := g.sent[record.ID]; ok && record.Version < last {
			continue
		}
		fresh = append(fresh, record)
	}
	if len(fresh) == 0 {
		return 0, nil
	}
	if err := send(fresh); err != nil {
		return 0, err
	}
	for _, record := range fresh {
		g.sent[record.ID] = record.Version
	}
	return len(fresh), nil
}

func (s *Service) meiliReady() bool {
	return s.meili != nil && s.meili.Healthy()
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
// Failures degrade to an empty response.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meiliReady() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		logrus.WithError(err).Warn("search: meilisearch error, falling back to pgfts")
	}

	if s.pgfts == nil {
		return Response{Results: []Result{}, Query: q.Text}
	}
	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		logrus.WithError(err).Error("search: pgfts error")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexItem sends the current state of item to Meilisearch. Soft-deleted
// items stay indexed with isDeleted set so filters exclude them.
func (s *Service) IndexItem(item content.Item) error {
	if !s.meiliReady() {
		return nil
	}
	_, err := s.gate.write([]ItemRecord{RecordFromItem(item)}, s.meili.IndexItems)
	return err
}

const reindexBatch = content.MaxPageLimit

// ReindexAll reads every item, deleted ones included, and pushes it to
// Meilisearch in batches. It returns the number of records sent.
func (s *Service) ReindexAll(ctx context.Context, source ItemSource) (int, error) {
	if !s.meiliReady() {
		return 0, nil
	}
	sent := 0
	for offset := 0; ; offset += reindexBatch {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		items, err := source.FindMatching(ctx, content.Predicate{}, content.Page{Limit: reindexBatch, Offset: offset})
		if err != nil {
			return sent, err
		}
		records := make([]ItemRecord, 0, len(items))
		for _, item := range items {
			records = append(records, RecordFromItem(item))
		}
		n, err := s.gate.write(records, s.meili.IndexItems)
		if err != nil {
			return sent, err
		}
		sent += n
		if len(items) < reindexBatch {
			break
		}
	}
	logrus.WithField("records", sent).Info("search: reindex complete")
	return sent, nil
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
