package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"aula/api/internal/archive"
	"aula/api/internal/content"
	"aula/api/internal/events"
	"aula/api/internal/export"
	"aula/api/internal/gitrepo"
	"aula/api/internal/rbac"
	"aula/api/internal/search"
)

// memRepo is an in-memory Repository with the same version check as the
// Postgres store.
type memRepo struct {
	mu      sync.Mutex
	items   map[string]content.Item
	pingErr error
	// onGet runs after an item is read, outside the lock.
	onGet func()
}

func newMemRepo() *memRepo {
	return &memRepo{items: map[string]content.Item{}}
}

func (r *memRepo) Ping(context.Context) error {
	return r.pingErr
}

func (r *memRepo) Get(_ context.Context, id string) (content.Item, error) {
	r.mu.Lock()
	item, ok := r.items[id]
	r.mu.Unlock()
	if !ok {
		return content.Item{}, content.ErrNotFound
	}
	if r.onGet != nil {
		r.onGet()
	}
	return item.Clone(), nil
}

func (r *memRepo) GetByName(_ context.Context, kind content.Kind, name string) (content.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.Kind == kind && item.Name == name {
			return item.Clone(), nil
		}
	}
	return content.Item{}, content.ErrNotFound
}

func (r *memRepo) ExistsByName(_ context.Context, kind content.Kind, name, excludeID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.Kind == kind && item.Name == name && item.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) Insert(_ context.Context, item content.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.Kind == item.Kind && existing.Name == item.Name {
			return content.Conflictf("duplicate name")
		}
	}
	r.items[item.ID] = item.Clone()
	return nil
}

func (r *memRepo) Update(_ context.Context, change content.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[change.Item.ID]
	if !ok {
		return content.ErrNotFound
	}
	if current.Version != change.ExpectedVersion {
		return content.ErrConcurrentModification
	}
	r.items[change.Item.ID] = change.Item.Clone()
	return nil
}

func (r *memRepo) FindMatching(_ context.Context, pred content.Predicate, page content.Page) ([]content.Item, error) {
	matched := r.matching(pred)
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	page = page.Normalize()
	if page.Offset >= len(matched) {
		return []content.Item{}, nil
	}
	end := min(page.Offset+page.Limit, len(matched))
	return matched[page.Offset:end], nil
}

func (r *memRepo) Count(_ context.Context, pred content.Predicate) (int, error) {
	return len(r.matching(pred)), nil
}

func (r *memRepo) matching(pred content.Predicate) []content.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []content.Item
	for _, item := range r.items {
		if pred.Matches(item) {
			out = append(out, item.Clone())
		}
	}
	return out
}

func (r *memRepo) stored(t *testing.T, id string) content.Item {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		t.Fatalf("item %s not stored", id)
	}
	return item
}

func (r *memRepo) put(item content.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = item.Clone()
}

type recordingIndex struct {
	mu       sync.Mutex
	indexed  []string
	query    search.Query
	response search.Response
	err      error
}

func (i *recordingIndex) Search(_ context.Context, q search.Query) search.Response {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.query = q
	return i.response
}

func (i *recordingIndex) IndexItem(item content.Item) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return i.err
	}
	i.indexed = append(i.indexed, fmt.Sprintf("%s@%d", item.ID, item.Version))
	return nil
}

type recordingEvents struct {
	mu        sync.Mutex
	published []events.Event
	err       error
}

func (e *recordingEvents) Publish(_ context.Context, event events.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.published = append(e.published, event)
	return nil
}

func (e *recordingEvents) Recent(_ context.Context, count int64) ([]events.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]events.Event, 0, len(e.published))
	for i := len(e.published) - 1; i >= 0 && int64(len(out)) < count; i-- {
		out = append(out, e.published[i])
	}
	return out, nil
}

func (e *recordingEvents) actions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.published))
	for _, event := range e.published {
		out = append(out, event.Action)
	}
	return out
}

type recordingRevisions struct {
	mu       sync.Mutex
	messages []string
	content  gitrepo.Content
}

func (r *recordingRevisions) Commit(itemID string, c gitrepo.Content, author, message string) (gitrepo.Revision, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	r.content = c
	return gitrepo.Revision{Hash: fmt.Sprintf("%07d", len(r.messages)), Message: message, Author: author}, true, nil
}

func (r *recordingRevisions) History(itemID string, limit int) ([]gitrepo.Revision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]gitrepo.Revision, 0, len(r.messages))
	for i := len(r.messages) - 1; i >= 0; i-- {
		out = append(out, gitrepo.Revision{Hash: fmt.Sprintf("%07d", i+1), Message: r.messages[i]})
	}
	return out, nil
}

func (r *recordingRevisions) ContentAt(itemID, hash string) (gitrepo.Content, gitrepo.Revision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hash != "0000001" {
		return gitrepo.Content{}, gitrepo.Revision{}, gitrepo.ErrNoRepository
	}
	return gitrepo.Content{Kind: "topic", Name: "first name"}, gitrepo.Revision{Hash: hash}, nil
}

type recordingSnapshots struct {
	mu   sync.Mutex
	puts []content.Item
}

func (s *recordingSnapshots) Put(_ context.Context, item content.Item) (archive.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, item)
	return archive.Snapshot{Key: archive.ObjectKey(item.Kind, item.ID, item.Version), Version: item.Version}, nil
}

func (s *recordingSnapshots) List(_ context.Context, kind content.Kind, id string) ([]archive.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []archive.Snapshot{}
	for _, item := range s.puts {
		if item.ID == id {
			out = append(out, archive.Snapshot{Key: archive.ObjectKey(kind, id, item.Version), Version: item.Version})
		}
	}
	return out, nil
}

func (s *recordingSnapshots) Get(_ context.Context, _ content.Kind, id string, version int64) (content.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.puts {
		if item.ID == id && item.Version == version {
			return item.Clone(), nil
		}
	}
	return content.Item{}, content.ErrNotFound
}

type stubExporter struct {
	format export.Format
	err    error
}

func (e *stubExporter) Export(_ context.Context, item content.Item, format export.Format) (*export.Result, error) {
	e.format = format
	if e.err != nil {
		return nil, e.err
	}
	return &export.Result{Data: []byte("%PDF"), Filename: item.Name + ".pdf", MimeType: "application/pdf"}, nil
}

type testEnv struct {
	svc       *Service
	repo      *memRepo
	index     *recordingIndex
	events    *recordingEvents
	revisions *recordingRevisions
	snapshots *recordingSnapshots
	exporter  *stubExporter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		repo:      newMemRepo(),
		index:     &recordingIndex{},
		events:    &recordingEvents{},
		revisions: &recordingRevisions{},
		snapshots: &recordingSnapshots{},
		exporter:  &stubExporter{},
	}
	env.svc = NewService(env.repo, Options{
		Search:    env.index,
		Events:    env.events,
		Revisions: env.revisions,
		Snapshots: env.snapshots,
		Exporter:  env.exporter,
	})

	var ticks atomic.Int64
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	env.svc.now = func() time.Time {
		return base.Add(time.Duration(ticks.Add(1)) * time.Minute)
	}
	var seq atomic.Int64
	env.svc.newID = func(prefix string) string {
		return fmt.Sprintf("%s_%04d", prefix, seq.Add(1))
	}
	return env
}

var (
	teacherT1 = content.Caller{ID: "t1", Role: rbac.RoleDocente}
	teacherT2 = content.Caller{ID: "t2", Role: rbac.RoleDocente}
	adminA1   = content.Caller{ID: "a1", Role: rbac.RoleAdmin}
	student   = content.Anonymous()
)

func (env *testEnv) create(t *testing.T, caller content.Caller, name string) content.Item {
	t.Helper()
	item, err := env.svc.Create(context.Background(), caller, CreateInput{
		Kind:       "topic",
		Name:       name,
		Body:       []byte(`[{"type":"paragraph","text":"intro"}]`),
		Visibility: "public",
	})
	if err != nil {
		t.Fatalf("Create(%q) error = %v", name, err)
	}
	return item
}

func (env *testEnv) pending(t *testing.T, name string) content.Item {
	t.Helper()
	item := env.create(t, teacherT1, name)
	item, err := env.svc.SubmitForReview(context.Background(), teacherT1, item.ID)
	if err != nil {
		t.Fatalf("SubmitForReview() error = %v", err)
	}
	return item
}

func (env *testEnv) approved(t *testing.T, name string) content.Item {
	t.Helper()
	item := env.pending(t, name)
	item, err := env.svc.Approve(context.Background(), adminA1, item.ID)
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	return item
}
