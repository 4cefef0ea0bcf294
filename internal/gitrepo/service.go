// Package gitrepo keeps a git repository per content item so every body
// change is a revision that can be listed and read back.
package gitrepo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	mainBranch  = "main"
	contentFile = "content.json"
)

// ErrNoRepository is returned when an item has no revisions yet.
var ErrNoRepository = errors.New("no revisions recorded")

type Content struct {
	Kind        string          `json:"kind"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Body        json.RawMessage `json:"body,omitempty"`
}

type Revision struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Commit records content as the next revision of itemID, creating the
// repository on first use. When content equals the current head no commit
// is made and the head revision is returned with changed=false.
func (s *Service) Commit(itemID string, content Content, author, message string) (Revision, bool, error) {
	lock := s.itemLock(itemID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(itemID)
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return s.initRepo(path, content, author, message)
	}
	if err != nil {
		return Revision{}, false, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if err != nil {
		return Revision{}, false, fmt.Errorf("resolve branch %s: %w", mainBranch, err)
	}
	head, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return Revision{}, false, fmt.Errorf("load head commit: %w", err)
	}
	current, err := readContentFromCommit(head)
	if err != nil {
		return Revision{}, false, err
	}
	if !HasChanges(current, content) {
		return toRevision(head), false, nil
	}

	if err := checkoutMain(repo); err != nil {
		return Revision{}, false, err
	}
	hash, err := writeAndCommit(repo, content, author, message)
	if err != nil {
		return Revision{}, false, err
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Revision{}, false, fmt.Errorf("read commit object: %w", err)
	}
	return toRevision(commitObj), true, nil
}

func (s *Service) initRepo(path string, content Content, author, message string) (Revision, bool, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Revision{}, false, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return Revision{}, false, fmt.Errorf("init repo: %w", err)
	}
	hash, err := writeAndCommit(repo, content, author, message)
	if err != nil {
		return Revision{}, false, err
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(mainBranch), hash)); err != nil {
		return Revision{}, false, fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(mainBranch))); err != nil {
		return Revision{}, false, fmt.Errorf("set HEAD to main: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Revision{}, false, fmt.Errorf("read commit object: %w", err)
	}
	return toRevision(commitObj), true, nil
}

// History lists revisions newest first. limit <= 0 means all.
func (s *Service) History(itemID string, limit int) ([]Revision, error) {
	lock := s.itemLock(itemID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(itemID)
	if errors.Is(err, ErrNoRepository) {
		return []Revision{}, nil
	}
	if err != nil {
		return nil, err
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", mainBranch, err)
	}
	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	revisions := make([]Revision, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		revisions = append(revisions, toRevision(commitObj))
		if limit > 0 && len(revisions) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return revisions, nil
}

// ContentAt reads the content stored at a (possibly abbreviated) hash.
func (s *Service) ContentAt(itemID, hash string) (Content, Revision, error) {
	lock := s.itemLock(itemID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.open(itemID)
	if err != nil {
		return Content{}, Revision{}, err
	}
	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return Content{}, Revision{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return Content{}, Revision{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	content, err := readContentFromCommit(commitObj)
	if err != nil {
		return Content{}, Revision{}, err
	}
	return content, toRevision(commitObj), nil
}

func (s *Service) open(itemID string) (*git.Repository, error) {
	repo, err := git.PlainOpen(s.repoPath(itemID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%w for %s", ErrNoRepository, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(itemID string) string {
	return filepath.Join(s.baseDir, itemID)
}

func (s *Service) itemLock(itemID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[itemID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[itemID] = lock
	return lock
}

func writeAndCommit(repo *git.Repository, content Content, author, message string) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}
	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("marshal content: %w", err)
	}
	if err := os.WriteFile(filepath.Join(worktree.Filesystem.Root(), contentFile), append(payload, '\n'), 0o644); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("write %s: %w", contentFile, err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("git add content: %w", err)
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@aula.local", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit content: %w", err)
	}
	return hash, nil
}

func checkoutMain(repo *git.Repository) error {
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(mainBranch), Force: true}); err != nil {
		return fmt.Errorf("checkout branch %s: %w", mainBranch, err)
	}
	return nil
}

func readContentFromCommit(commitObj *object.Commit) (Content, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return Content{}, fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return Content{}, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return Content{}, fmt.Errorf("read content bytes: %w", err)
	}
	var content Content
	if err := json.Unmarshal(raw, &content); err != nil {
		return Content{}, fmt.Errorf("decode commit content: %w", err)
	}
	return content, nil
}

// DiffFields lists the fields that differ between two revisions, sorted
// by field name. Body changes are reported without their contents.
func DiffFields(from, to Content) []FieldChange {
	changes := make([]FieldChange, 0)
	if from.Name != to.Name {
		changes = append(changes, FieldChange{Field: "name", Before: from.Name, After: to.Name})
	}
	if from.Description != to.Description {
		changes = append(changes, FieldChange{Field: "description", Before: from.Description, After: to.Description})
	}
	if !bytes.Equal(normalizeBody(from.Body), normalizeBody(to.Body)) {
		changes = append(changes, FieldChange{Field: "body", Before: "[content]", After: "[content]"})
	}
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Field < changes[j].Field
	})
	return changes
}

func HasChanges(from, to Content) bool {
	if from.Kind != to.Kind || from.Name != to.Name || from.Description != to.Description {
		return true
	}
	return !bytes.Equal(normalizeBody(from.Body), normalizeBody(to.Body))
}

func toRevision(commitObj *object.Commit) Revision {
	return Revision{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func normalizeBody(body json.RawMessage) []byte {
	if len(body) == 0 {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil
	}
	normalized, err := json.Marshal(parsed)
	if err != nil {
		return nil
	}
	return normalized
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
