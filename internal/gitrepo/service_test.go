package gitrepo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestItemRepoLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	initial := Content{
		Kind:        "topic",
		Name:        "Fractions",
		Description: "Intro",
		Body:        json.RawMessage(`[{"type":"paragraph","text":"Halves and quarters"}]`),
	}

	first, changed, err := svc.Commit("topic-1", initial, "Avery", "Create topic")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if !changed || first.Hash == "" {
		t.Fatalf("Commit() = %+v, changed=%v", first, changed)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "topic-1")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}

	updated := initial
	updated.Description = "Intro to fractions"
	second, changed, err := svc.Commit("topic-1", updated, "Avery", "Update description")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if !changed || second.Hash == first.Hash {
		t.Fatalf("second Commit() = %+v, changed=%v", second, changed)
	}

	history, err := svc.History("topic-1", 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Hash != second.Hash || history[1].Hash != first.Hash {
		t.Fatalf("History() = %+v", history)
	}

	old, rev, err := svc.ContentAt("topic-1", first.Hash)
	if err != nil {
		t.Fatalf("ContentAt() error = %v", err)
	}
	if old.Description != "Intro" || rev.Hash != first.Hash {
		t.Fatalf("ContentAt() = %+v, %+v", old, rev)
	}
}

func TestCommitSkipsUnchangedContent(t *testing.T) {
	svc := New(t.TempDir())
	content := Content{Kind: "quiz", Name: "Q1", Body: json.RawMessage(`{"a": 1, "b": 2}`)}

	first, _, err := svc.Commit("quiz-1", content, "Avery", "Create quiz")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	reformatted := content
	reformatted.Body = json.RawMessage(`{"b":2,"a":1}`)
	again, changed, err := svc.Commit("quiz-1", reformatted, "Avery", "No-op")
	if err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if changed || again.Hash != first.Hash {
		t.Fatalf("Commit() on unchanged content = %+v, changed=%v", again, changed)
	}
}

func TestHistoryWithoutRepo(t *testing.T) {
	svc := New(t.TempDir())
	history, err := svc.History("missing", 5)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("History() = %+v, want empty", history)
	}
	if _, _, err := svc.ContentAt("missing", "abc1234"); !errors.Is(err, ErrNoRepository) {
		t.Fatalf("ContentAt() error = %v, want ErrNoRepository", err)
	}
}

func TestDiffFields(t *testing.T) {
	from := Content{Name: "A", Description: "same", Body: json.RawMessage(`[1]`)}
	to := Content{Name: "B", Description: "same", Body: json.RawMessage(`[2]`)}
	changes := DiffFields(from, to)
	if len(changes) != 2 || changes[0].Field != "body" || changes[1].Field != "name" {
		t.Fatalf("DiffFields() = %+v", changes)
	}
	if changes[1].Before != "A" || changes[1].After != "B" {
		t.Fatalf("name change = %+v", changes[1])
	}
	if len(DiffFields(from, from)) != 0 {
		t.Fatal("DiffFields() on identical content should be empty")
	}
}

func TestSanitizeEmail(t *testing.T) {
	if got := sanitizeEmail("Avery Q_Lee!"); got != "Avery.Q.Lee" {
		t.Fatalf("sanitizeEmail() = %q", got)
	}
	if got := sanitizeEmail("!!!"); got != "user" {
		t.Fatalf("sanitizeEmail() = %q", got)
	}
}

func TestConcurrentCommitsSameItem(t *testing.T) {
	svc := New(t.TempDir())
	initial := Content{Kind: "topic", Name: "Doc"}
	if _, _, err := svc.Commit("topic-1", initial, "Avery", "Create"); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	const writers = 12
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			next := initial
			next.Description = fmt.Sprintf("description-%02d", idx)
			if _, _, err := svc.Commit("topic-1", next, "Avery", fmt.Sprintf("Commit %02d", idx)); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("Commit() concurrent error = %v", err)
	}

	history, err := svc.History("topic-1", 100)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != writers+1 {
		t.Fatalf("expected %d commits in history, got %d", writers+1, len(history))
	}
	head, _, err := svc.ContentAt("topic-1", history[0].Hash)
	if err != nil {
		t.Fatalf("ContentAt() error = %v", err)
	}
	if !strings.HasPrefix(head.Description, "description-") {
		t.Fatalf("unexpected head content after concurrent commits: %+v", head)
	}
}
