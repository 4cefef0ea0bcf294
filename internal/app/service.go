package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"aula/api/internal/archive"
	"aula/api/internal/content"
	"aula/api/internal/events"
	"aula/api/internal/export"
	"aula/api/internal/gitrepo"
	"aula/api/internal/observability"
	"aula/api/internal/search"
	"aula/api/internal/util"
)

// Repository persists content items with version-checked updates.
type Repository interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, id string) (content.Item, error)
	GetByName(ctx context.Context, kind content.Kind, name string) (content.Item, error)
	ExistsByName(ctx context.Context, kind content.Kind, name, excludeID string) (bool, error)
	Insert(ctx context.Context, item content.Item) error
	Update(ctx context.Context, change content.Change) error
	FindMatching(ctx context.Context, pred content.Predicate, page content.Page) ([]content.Item, error)
	Count(ctx context.Context, pred content.Predicate) (int, error)
}

type SearchIndex interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexItem(item content.Item) error
}

type EventLog interface {
	Publish(ctx context.Context, event events.Event) error
	Recent(ctx context.Context, count int64) ([]events.Event, error)
}

type RevisionStore interface {
	Commit(itemID string, c gitrepo.Content, author, message string) (gitrepo.Revision, bool, error)
	History(itemID string, limit int) ([]gitrepo.Revision, error)
	ContentAt(itemID, hash string) (gitrepo.Content, gitrepo.Revision, error)
}

type SnapshotStore interface {
	Put(ctx context.Context, item content.Item) (archive.Snapshot, error)
	List(ctx context.Context, kind content.Kind, id string) ([]archive.Snapshot, error)
	Get(ctx context.Context, kind content.Kind, id string, version int64) (content.Item, error)
}

type Exporter interface {
	Export(ctx context.Context, item content.Item, format export.Format) (*export.Result, error)
}

// Options wires the optional collaborators of the service. Nil fields
// disable the matching feature.
type Options struct {
	Search    SearchIndex
	Events    EventLog
	Revisions RevisionStore
	Snapshots SnapshotStore
	Exporter  Exporter
	Metrics   *observability.Metrics
}

type Service struct {
	repo      Repository
	search    SearchIndex
	events    EventLog
	revisions RevisionStore
	snapshots SnapshotStore
	exporter  Exporter
	metrics   *observability.Metrics

	now   func() time.Time
	newID func(prefix string) string
}

func NewService(repo Repository, opts Options) *Service {
	return &Service{
		repo:      repo,
		search:    opts.Search,
		events:    opts.Events,
		revisions: opts.Revisions,
		snapshots: opts.Snapshots,
		exporter:  opts.Exporter,
		metrics:   opts.Metrics,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     util.NewID,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// mutation loads an item, authorizes the caller against it, computes the
// change and persists it conditionally on the version that was read.
type mutation struct {
	op        content.Operation
	authorize func(item content.Item) error
	apply     func(item content.Item, at time.Time) (content.Change, bool, error)
}

func (s *Service) mutate(ctx context.Context, caller content.Caller, id string, m mutation) (content.Item, error) {
	item, err := s.mutateItem(ctx, caller, id, m)
	if err != nil {
		s.metrics.ObserveTransition(string(item.Kind), string(m.op), errorCode(err))
		return content.Item{}, err
	}
	return item, nil
}

func (s *Service) mutateItem(ctx context.Context, caller content.Caller, id string, m mutation) (content.Item, error) {
	if err := requireIdentity(caller); err != nil {
		return content.Item{}, err
	}
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return content.Item{}, err
	}
	if err := m.authorize(item); err != nil {
		return item, err
	}
	change, changed, err := m.apply(item, s.now())
	if err != nil {
		return item, err
	}
	if !changed {
		return item, nil
	}
	if err := s.repo.Update(ctx, change); err != nil {
		return item, err
	}
	s.afterChange(ctx, string(m.op), change.Item, change.Entry)
	return change.Item, nil
}

// afterChange runs the side effects of a committed change made by op. They
// are best effort: a failure is logged and counted, never returned.
func (s *Service) afterChange(ctx context.Context, op string, item content.Item, entry content.HistoryEntry) {
	s.metrics.ObserveTransition(string(item.Kind), op, "ok")

	if s.search != nil {
		if err := s.search.IndexItem(item); err != nil {
			s.sideEffectFailed("search", item, err)
		}
	}

	if s.events != nil {
		event := events.Event{
			ItemID:         item.ID,
			Kind:           string(item.Kind),
			OrganizationID: item.OrganizationID,
			Action:         string(entry.Action),
			ActorID:        entry.ActorID,
			Status:         string(item.Status),
			Version:        item.Version,
			Note:           entry.Note,
			At:             entry.Date,
		}
		if err := s.events.Publish(ctx, event); err != nil {
			s.sideEffectFailed("events", item, err)
		}
	}

	if s.revisions != nil && (entry.Action == content.ActionCreated || entry.Action == content.ActionUpdated) {
		snapshot := gitrepo.Content{
			Kind:        string(item.Kind),
			Name:        item.Name,
			Description: item.Description,
			Body:        item.Body,
		}
		message := fmt.Sprintf("%s %s (v%d)", entry.Action, item.Name, item.Version)
		if _, _, err := s.revisions.Commit(item.ID, snapshot, entry.ActorID, message); err != nil {
			s.sideEffectFailed("revisions", item, err)
		}
	}

	if s.snapshots != nil && entry.Action == content.ActionApproved {
		if _, err := s.snapshots.Put(ctx, item); err != nil {
			s.sideEffectFailed("snapshots", item, err)
		}
	}
}

func (s *Service) sideEffectFailed(component string, item content.Item, err error) {
	s.metrics.ObserveSideEffectError(component)
	logrus.WithError(err).
		WithField("component", component).
		WithField("item", item.ID).
		WithField("version", item.Version).
		Warn("content side effect failed")
}
