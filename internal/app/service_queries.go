package app

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"aula/api/internal/archive"
	"aula/api/internal/content"
	"aula/api/internal/events"
	"aula/api/internal/export"
	"aula/api/internal/gitrepo"
	"aula/api/internal/rbac"
	"aula/api/internal/search"
)

type ListOptions struct {
	Kind           string
	Status         string
	IncludeDeleted bool
	Page           content.Page
}

type Stats struct {
	ByStatus     map[content.Status]int `json:"byStatus"`
	Total        int                    `json:"total"`
	Deleted      int                    `json:"deleted"`
	EditRequests int                    `json:"editRequests"`
}

// visibleTo reports whether caller may read item: either the visibility
// predicate admits it or the caller has a relation to it.
func visibleTo(caller content.Caller, pred content.Predicate, item content.Item) bool {
	if pred.Matches(item) {
		return true
	}
	return !item.IsDeleted && content.Resolve(item, caller.ID) != content.Unrelated
}

// readPredicate builds the caller's visibility predicate. Only admins may
// widen it to deleted items.
func readPredicate(caller content.Caller, includeDeleted bool) (content.Predicate, error) {
	pred, err := content.VisibilityFor(caller)
	if err != nil {
		return content.Predicate{}, err
	}
	if !includeDeleted {
		return pred, nil
	}
	if caller.Role != rbac.RoleAdmin || !caller.Authenticated() {
		return content.Predicate{}, content.Forbiddenf("only admins can include deleted content")
	}
	return pred.IncludingDeleted(), nil
}

// FindByID returns an item the caller may see. Items outside the caller's
// view are reported as not found.
func (s *Service) FindByID(ctx context.Context, caller content.Caller, id string, includeDeleted bool) (content.Item, error) {
	pred, err := readPredicate(caller, includeDeleted)
	if err != nil {
		return content.Item{}, err
	}
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return content.Item{}, err
	}
	if !visibleTo(caller, pred, item) {
		return content.Item{}, content.ErrNotFound
	}
	return item, nil
}

func (s *Service) FindByName(ctx context.Context, caller content.Caller, kind, name string) (content.Item, error) {
	pred, err := readPredicate(caller, false)
	if err != nil {
		return content.Item{}, err
	}
	parsed, err := content.ParseKind(kind)
	if err != nil {
		return content.Item{}, err
	}
	item, err := s.repo.GetByName(ctx, parsed, name)
	if err != nil {
		return content.Item{}, err
	}
	if !visibleTo(caller, pred, item) {
		return content.Item{}, content.ErrNotFound
	}
	return item, nil
}

// ListForCaller lists the items visible to caller, newest first.
func (s *Service) ListForCaller(ctx context.Context, caller content.Caller, opts ListOptions) ([]content.Item, error) {
	pred, err := readPredicate(caller, opts.IncludeDeleted)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, pred, opts)
}

// ListChildren lists the quizzes and quiz sets that belong to a visible
// parent, filtered by the caller's view.
func (s *Service) ListChildren(ctx context.Context, caller content.Caller, parentID string, opts ListOptions) ([]content.Item, error) {
	parent, err := s.FindByID(ctx, caller, parentID, false)
	if err != nil {
		return nil, err
	}
	pred, err := readPredicate(caller, false)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, pred.And(content.Eq(content.FieldParent, parent.ID)), opts)
}

// ListPending is the review queue of the caller's tenant.
func (s *Service) ListPending(ctx context.Context, caller content.Caller, opts ListOptions) ([]content.Item, error) {
	if err := requireAction(caller, rbac.ActionReview); err != nil {
		return nil, err
	}
	pred, err := content.VisibilityFor(caller)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, pred.And(content.Eq(content.FieldStatus, string(content.StatusPendingApproval))), opts)
}

func (s *Service) ListEditRequests(ctx context.Context, caller content.Caller, opts ListOptions) ([]content.Item, error) {
	if err := requireAction(caller, rbac.ActionModerate); err != nil {
		return nil, err
	}
	pred, err := content.VisibilityFor(caller)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, pred.And(content.Flag(content.FieldEditRequestPending, true)), opts)
}

func (s *Service) ListTrash(ctx context.Context, caller content.Caller, opts ListOptions) ([]content.Item, error) {
	if err := requireAction(caller, rbac.ActionModerate); err != nil {
		return nil, err
	}
	pred, err := content.VisibilityFor(caller)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, pred.IncludingDeleted().And(content.Flag(content.FieldDeleted, true)), opts)
}

func (s *Service) ListByStatus(ctx context.Context, caller content.Caller, opts ListOptions) ([]content.Item, error) {
	if err := requireAction(caller, rbac.ActionModerate); err != nil {
		return nil, err
	}
	status, err := content.ParseStatus(opts.Status)
	if err != nil {
		return nil, err
	}
	pred, err := content.VisibilityFor(caller)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, pred.And(content.Eq(content.FieldStatus, string(status))), opts)
}

func (s *Service) find(ctx context.Context, pred content.Predicate, opts ListOptions) ([]content.Item, error) {
	if opts.Kind != "" {
		kind, err := content.ParseKind(opts.Kind)
		if err != nil {
			return nil, err
		}
		pred = pred.And(content.Eq(content.FieldKind, string(kind)))
	}
	items, err := s.repo.FindMatching(ctx, pred, opts.Page.Normalize())
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []content.Item{}
	}
	return items, nil
}

// Stats counts the reviewer's tenant by status. The counts run
// concurrently.
func (s *Service) Stats(ctx context.Context, caller content.Caller) (Stats, error) {
	if err := requireAction(caller, rbac.ActionReview); err != nil {
		return Stats{}, err
	}
	base, err := content.VisibilityFor(caller)
	if err != nil {
		return Stats{}, err
	}

	var mu sync.Mutex
	stats := Stats{ByStatus: make(map[content.Status]int, len(content.Statuses))}
	g, gctx := errgroup.WithContext(ctx)
	for _, status := range content.Statuses {
		g.Go(func() error {
			n, err := s.repo.Count(gctx, base.And(content.Eq(content.FieldStatus, string(status))))
			if err != nil {
				return err
			}
			mu.Lock()
			stats.ByStatus[status] = n
			stats.Total += n
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		n, err := s.repo.Count(gctx, base.IncludingDeleted().And(content.Flag(content.FieldDeleted, true)))
		if err != nil {
			return err
		}
		mu.Lock()
		stats.Deleted = n
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		n, err := s.repo.Count(gctx, base.And(content.Flag(content.FieldEditRequestPending, true)))
		if err != nil {
			return err
		}
		mu.Lock()
		stats.EditRequests = n
		mu.Unlock()
		return nil
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	scope := statsScope(caller)
	for status, n := range stats.ByStatus {
		s.metrics.SetItemCount(scope, string(status), n)
	}
	return stats, nil
}

// statsScope labels the slice of content a Stats call counted: the caller's
// organization, "all" for a global admin and "none" for a reviewer bound to
// no organization.
func statsScope(caller content.Caller) string {
	switch {
	case caller.OrganizationID != "":
		return caller.OrganizationID
	case caller.Role == rbac.RoleAdmin:
		return "all"
	default:
		return "none"
	}
}

// History returns the audit trail of a visible item, oldest first.
func (s *Service) History(ctx context.Context, caller content.Caller, id string) ([]content.HistoryEntry, error) {
	item, err := s.FindByID(ctx, caller, id, false)
	if err != nil {
		return nil, err
	}
	if item.History == nil {
		return []content.HistoryEntry{}, nil
	}
	return item.History, nil
}

// Revisions lists the authored-content commits of a visible item.
func (s *Service) Revisions(ctx context.Context, caller content.Caller, id string, limit int) ([]gitrepo.Revision, error) {
	item, err := s.FindByID(ctx, caller, id, false)
	if err != nil {
		return nil, err
	}
	if s.revisions == nil {
		return nil, unavailable("revision history")
	}
	return s.revisions.History(item.ID, limit)
}

// RevisionContent returns the authored fields of an item at one revision,
// with the fields that differ from the current state.
func (s *Service) RevisionContent(ctx context.Context, caller content.Caller, id, hash string) (gitrepo.Content, gitrepo.Revision, []gitrepo.FieldChange, error) {
	item, err := s.FindByID(ctx, caller, id, false)
	if err != nil {
		return gitrepo.Content{}, gitrepo.Revision{}, nil, err
	}
	if s.revisions == nil {
		return gitrepo.Content{}, gitrepo.Revision{}, nil, unavailable("revision history")
	}
	at, revision, err := s.revisions.ContentAt(item.ID, hash)
	if errors.Is(err, gitrepo.ErrNoRepository) {
		return gitrepo.Content{}, gitrepo.Revision{}, nil, content.ErrNotFound
	}
	if err != nil {
		return gitrepo.Content{}, gitrepo.Revision{}, nil, err
	}
	current := gitrepo.Content{
		Kind:        string(item.Kind),
		Name:        item.Name,
		Description: item.Description,
		Body:        item.Body,
	}
	return at, revision, gitrepo.DiffFields(at, current), nil
}

// Snapshots lists the archived approved versions of a visible item.
func (s *Service) Snapshots(ctx context.Context, caller content.Caller, id string) ([]archive.Snapshot, error) {
	item, err := s.FindByID(ctx, caller, id, false)
	if err != nil {
		return nil, err
	}
	if s.snapshots == nil {
		return nil, unavailable("snapshot archive")
	}
	return s.snapshots.List(ctx, item.Kind, item.ID)
}

// Snapshot reads back one archived approved version of a visible item.
func (s *Service) Snapshot(ctx context.Context, caller content.Caller, id string, version int64) (content.Item, error) {
	if version < 1 {
		return content.Item{}, content.Validationf("version must be a positive integer")
	}
	item, err := s.FindByID(ctx, caller, id, false)
	if err != nil {
		return content.Item{}, err
	}
	if s.snapshots == nil {
		return content.Item{}, unavailable("snapshot archive")
	}
	return s.snapshots.Get(ctx, item.Kind, item.ID, version)
}

// Search runs a full-text query restricted to what caller may see.
func (s *Service) Search(ctx context.Context, caller content.Caller, text, kind string, page content.Page) (search.Response, error) {
	pred, err := content.VisibilityFor(caller)
	if err != nil {
		return search.Response{}, err
	}
	q := search.Query{
		Text:      text,
		Predicate: pred,
		Limit:     page.Limit,
		Offset:    page.Offset,
	}
	if kind != "" {
		parsed, err := content.ParseKind(kind)
		if err != nil {
			return search.Response{}, err
		}
		q.Kind = parsed
	}
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(ctx, q), nil
}

// Export renders a visible item as a PDF or DOCX document.
func (s *Service) Export(ctx context.Context, caller content.Caller, id, format string) (*export.Result, error) {
	parsed, err := export.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	item, err := s.FindByID(ctx, caller, id, false)
	if err != nil {
		return nil, err
	}
	if s.exporter == nil {
		return nil, unavailable("export")
	}
	return s.exporter.Export(ctx, item, parsed)
}

// Activity returns recent lifecycle events. Admins bound to an
// organization only see events from it.
func (s *Service) Activity(ctx context.Context, caller content.Caller, limit int) ([]events.Event, error) {
	if err := requireAction(caller, rbac.ActionModerate); err != nil {
		return nil, err
	}
	if s.events == nil {
		return nil, unavailable("activity stream")
	}
	recent, err := s.events.Recent(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	if caller.OrganizationID == "" {
		return recent, nil
	}
	scoped := make([]events.Event, 0, len(recent))
	for _, event := range recent {
		if event.OrganizationID == caller.OrganizationID {
			scoped = append(scoped, event)
		}
	}
	return scoped, nil
}
