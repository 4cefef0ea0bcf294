package content

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func draftItem() Item {
	return NewItem("item-1", KindTopic, "algebra-101", "Intro", json.RawMessage(`[]`), "t1", "", "t1", VisibilityPublic, testNow)
}

func mustApply(t *testing.T, item Item, op Operation, actor, reason string) Item {
	t.Helper()
	change, err := Apply(item, Transition{Operation: op, ActorID: actor, Reason: reason, At: testNow})
	if err != nil {
		t.Fatalf("Apply(%s) error = %v", op, err)
	}
	return change.Item
}

func withStatus(status Status) Item {
	item := draftItem()
	item.Status = status
	return item
}

func TestNewItemStartsAsDraft(t *testing.T) {
	item := draftItem()
	if item.Status != StatusDraft || item.Version != 1 {
		t.Fatalf("unexpected initial state: status=%s version=%d", item.Status, item.Version)
	}
	if len(item.History) != 1 || item.History[0].Action != ActionCreated {
		t.Fatalf("expected a single created entry, got %+v", item.History)
	}
	if item.CollaboratorIDs == nil {
		t.Fatal("expected empty collaborator set, got nil")
	}
}

func TestSubmitAllowedOnlyFromAuthoringStates(t *testing.T) {
	allowed := map[Status]bool{StatusDraft: true, StatusEditing: true, StatusRejected: true}
	for _, status := range Statuses {
		t.Run(string(status), func(t *testing.T) {
			change, err := Apply(withStatus(status), Transition{Operation: OpSubmit, ActorID: "t1", At: testNow})
			if allowed[status] {
				if err != nil {
					t.Fatalf("Apply(submit) error = %v", err)
				}
				if change.Item.Status != StatusPendingApproval {
					t.Fatalf("status = %s, want pending_approval", change.Item.Status)
				}
				return
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("Apply(submit) error = %v, want ErrInvalidTransition", err)
			}
			var transitionErr *TransitionError
			if !errors.As(err, &transitionErr) {
				t.Fatalf("expected *TransitionError, got %T", err)
			}
			if transitionErr.From != string(status) || transitionErr.To != string(StatusPendingApproval) || transitionErr.Operation != OpSubmit {
				t.Fatalf("unexpected transition error: %+v", transitionErr)
			}
		})
	}
}

func TestSubmitClearsPendingEditRequest(t *testing.T) {
	item := withStatus(StatusEditing)
	requested := testNow.Add(-time.Hour)
	item.EditRequestPending = true
	item.EditRequestedBy = "t1"
	item.EditRequestedAt = &requested

	next := mustApply(t, item, OpSubmit, "t1", "")
	if next.EditRequestPending || next.EditRequestedBy != "" || next.EditRequestedAt != nil {
		t.Fatalf("expected edit request fields cleared, got %+v", next)
	}
}

func TestReasonRequiredRegardlessOfState(t *testing.T) {
	ops := []Operation{OpReject, OpRequestChanges}
	deleted := withStatus(StatusApproved)
	deleted.IsDeleted = true
	items := []Item{withStatus(StatusPendingApproval), withStatus(StatusDraft), deleted}

	for _, op := range ops {
		for _, reason := range []string{"", "   "} {
			for _, item := range items {
				_, err := Apply(item, Transition{Operation: op, ActorID: "a1", Reason: reason, At: testNow})
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Apply(%s, %q) from %s error = %v, want ErrValidation", op, reason, item.Status, err)
				}
			}
		}
	}
}

func TestApproveSetsReviewAndPublication(t *testing.T) {
	item := mustApply(t, draftItem(), OpSubmit, "t1", "")
	approved := mustApply(t, item, OpApprove, "a1", "")
	if approved.Status != StatusApproved {
		t.Fatalf("status = %s, want approved", approved.Status)
	}
	if approved.ReviewedBy != "a1" || approved.ReviewedAt == nil {
		t.Fatalf("expected review fields set, got %+v", approved)
	}
	if approved.PublishedAt == nil || !approved.PublishedAt.Equal(testNow) {
		t.Fatalf("expected publishedAt = %v, got %v", testNow, approved.PublishedAt)
	}

	first := *approved.PublishedAt
	edited := mustApply(t, mustApply(t, approved, OpRequestEdit, "t1", ""), OpApproveEditRequest, "a1", "")
	resubmitted := mustApply(t, edited, OpSubmit, "t1", "")
	later := testNow.Add(24 * time.Hour)
	change, err := Apply(resubmitted, Transition{Operation: OpApprove, ActorID: "a1", At: later})
	if err != nil {
		t.Fatalf("Apply(approve) error = %v", err)
	}
	if !change.Item.PublishedAt.Equal(first) {
		t.Fatalf("publishedAt moved from %v to %v", first, change.Item.PublishedAt)
	}
}

func TestRejectRecordsComments(t *testing.T) {
	pending := mustApply(t, draftItem(), OpSubmit, "t1", "")
	rejected := mustApply(t, pending, OpReject, "a1", "needs sources")
	if rejected.Status != StatusRejected {
		t.Fatalf("status = %s, want rejected", rejected.Status)
	}
	if rejected.ReviewComments != "needs sources" || rejected.ReviewedBy != "a1" {
		t.Fatalf("unexpected review fields: %+v", rejected)
	}

	resubmitted := mustApply(t, rejected, OpSubmit, "t1", "")
	if resubmitted.Status != StatusPendingApproval {
		t.Fatalf("status = %s, want pending_approval", resubmitted.Status)
	}
}

func TestRequestChangesTarget(t *testing.T) {
	pending := mustApply(t, draftItem(), OpSubmit, "t1", "")
	back := mustApply(t, pending, OpRequestChanges, "r1", "fix typos")
	if back.Status != StatusDraft {
		t.Fatalf("unpublished item status = %s, want draft", back.Status)
	}

	published := mustApply(t, pending, OpApprove, "r1", "")
	published = mustApply(t, published, OpRequestEdit, "t1", "")
	published = mustApply(t, published, OpApproveEditRequest, "a1", "")
	published = mustApply(t, published, OpSubmit, "t1", "")
	reopened := mustApply(t, published, OpRequestChanges, "r1", "clarify step 3")
	if reopened.Status != StatusEditing {
		t.Fatalf("published item status = %s, want editing", reopened.Status)
	}
	if reopened.ReviewComments != "clarify step 3" {
		t.Fatalf("reviewComments = %q", reopened.ReviewComments)
	}
}

func TestEditRequestProtocol(t *testing.T) {
	approved := mustApply(t, mustApply(t, draftItem(), OpSubmit, "t1", ""), OpApprove, "a1", "")

	requested := mustApply(t, approved, OpRequestEdit, "t1", "")
	if requested.Status != StatusApproved || !requested.EditRequestPending {
		t.Fatalf("unexpected state after request: %+v", requested)
	}
	if requested.EditRequestedBy != "t1" || requested.EditRequestedAt == nil {
		t.Fatalf("expected requester fields set, got %+v", requested)
	}

	if _, err := Apply(requested, Transition{Operation: OpRequestEdit, ActorID: "t1", At: testNow}); !errors.Is(err, ErrConflict) {
		t.Fatalf("second request error = %v, want ErrConflict", err)
	}

	granted := mustApply(t, requested, OpApproveEditRequest, "a1", "")
	if granted.Status != StatusEditing || granted.EditRequestPending {
		t.Fatalf("expected editing without pending flag, got status=%s pending=%v", granted.Status, granted.EditRequestPending)
	}
	if granted.EditRequestedBy != "" || granted.EditRequestedAt != nil {
		t.Fatal("expected requester fields cleared together with the flag")
	}

	declined := mustApply(t, requested, OpRejectEditRequest, "a1", "")
	if declined.Status != StatusApproved || declined.EditRequestPending {
		t.Fatalf("expected approved without pending flag, got status=%s pending=%v", declined.Status, declined.EditRequestPending)
	}
}

func TestEditRequestDecisionsNeedPendingRequest(t *testing.T) {
	for _, op := range []Operation{OpApproveEditRequest, OpRejectEditRequest} {
		_, err := Apply(withStatus(StatusApproved), Transition{Operation: op, ActorID: "a1", At: testNow})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("Apply(%s) error = %v, want ErrInvalidTransition", op, err)
		}
	}
}

func TestRequestEditOnlyFromApproved(t *testing.T) {
	for _, status := range Statuses {
		_, err := Apply(withStatus(status), Transition{Operation: OpRequestEdit, ActorID: "t1", At: testNow})
		if status == StatusApproved {
			if err != nil {
				t.Fatalf("Apply(request_edit) error = %v", err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("Apply(request_edit) from %s error = %v, want ErrInvalidTransition", status, err)
		}
	}
}

func TestArchiveFromAnyLiveState(t *testing.T) {
	for _, status := range Statuses {
		next := mustApply(t, withStatus(status), OpArchive, "a1", "")
		if next.Status != StatusArchived {
			t.Fatalf("archive from %s gave %s", status, next.Status)
		}
	}
}

func TestSoftDeleteAndRestore(t *testing.T) {
	approved := mustApply(t, mustApply(t, draftItem(), OpSubmit, "t1", ""), OpApprove, "a1", "")

	deleted := mustApply(t, approved, OpSoftDelete, "t1", "")
	if !deleted.IsDeleted || deleted.DeletedBy != "t1" || deleted.DeletedAt == nil {
		t.Fatalf("unexpected delete fields: %+v", deleted)
	}
	if deleted.Status != StatusApproved {
		t.Fatalf("soft delete changed status to %s", deleted.Status)
	}

	restored := mustApply(t, deleted, OpRestore, "a1", "")
	if restored.IsDeleted || restored.DeletedBy != "" || restored.DeletedAt != nil {
		t.Fatalf("expected delete fields cleared, got %+v", restored)
	}
	if restored.Status != StatusDraft {
		t.Fatalf("status = %s, want draft", restored.Status)
	}

	_, err := Apply(restored, Transition{Operation: OpRestore, ActorID: "a1", At: testNow})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second restore error = %v, want ErrInvalidTransition", err)
	}
}

func TestDeletedItemRefusesEverythingButRestore(t *testing.T) {
	item := withStatus(StatusDraft)
	item.IsDeleted = true
	ops := []Operation{OpSubmit, OpArchive, OpSoftDelete, OpRequestEdit}
	for _, op := range ops {
		_, err := Apply(item, Transition{Operation: op, ActorID: "a1", At: testNow})
		var transitionErr *TransitionError
		if !errors.As(err, &transitionErr) {
			t.Fatalf("Apply(%s) error = %v, want *TransitionError", op, err)
		}
		if transitionErr.From != StateDeleted {
			t.Fatalf("From = %q, want %q", transitionErr.From, StateDeleted)
		}
	}
}

func TestHistoryGrowsByExactlyOne(t *testing.T) {
	item := draftItem()
	steps := []struct {
		op     Operation
		actor  string
		reason string
		action Action
	}{
		{OpSubmit, "t1", "", ActionSubmitted},
		{OpApprove, "a1", "", ActionApproved},
		{OpRequestEdit, "t1", "", ActionEditRequested},
		{OpApproveEditRequest, "a1", "", ActionEditRequestApproved},
		{OpArchive, "a1", "", ActionArchived},
		{OpSoftDelete, "a1", "", ActionDeleted},
		{OpRestore, "a1", "", ActionRestored},
	}
	for _, step := range steps {
		before := len(item.History)
		version := item.Version
		change, err := Apply(item, Transition{Operation: step.op, ActorID: step.actor, Reason: step.reason, At: testNow})
		if err != nil {
			t.Fatalf("Apply(%s) error = %v", step.op, err)
		}
		next := change.Item
		if len(next.History) != before+1 {
			t.Fatalf("%s: history length %d, want %d", step.op, len(next.History), before+1)
		}
		last := next.History[len(next.History)-1]
		if last != change.Entry || last.Action != step.action || last.ActorID != step.actor {
			t.Fatalf("%s: unexpected entry %+v", step.op, last)
		}
		if next.Version != version+1 || change.ExpectedVersion != version || last.Seq != next.Version {
			t.Fatalf("%s: version %d -> %d (expected %d)", step.op, version, next.Version, change.ExpectedVersion)
		}
		item = next
	}
}

func TestFailedTransitionLeavesItemUntouched(t *testing.T) {
	item := withStatus(StatusApproved)
	snapshot := item.Clone()
	if _, err := Apply(item, Transition{Operation: OpSubmit, ActorID: "t1", At: testNow}); err == nil {
		t.Fatal("expected error")
	}
	if len(item.History) != len(snapshot.History) || item.Version != snapshot.Version || item.Status != snapshot.Status {
		t.Fatalf("item mutated by failed transition: %+v", item)
	}
}

func TestApplyDoesNotAliasHistory(t *testing.T) {
	item := draftItem()
	item.History = make([]HistoryEntry, 1, 8)
	item.History[0] = HistoryEntry{Seq: 1, Action: ActionCreated}

	first := mustApply(t, item, OpSubmit, "t1", "")
	second := mustApply(t, item, OpArchive, "a1", "")
	if first.History[1].Action != ActionSubmitted || second.History[1].Action != ActionArchived {
		t.Fatalf("history slices share storage: %+v / %+v", first.History, second.History)
	}
}

func TestEdit(t *testing.T) {
	name := "algebra-102"
	visibility := VisibilityPrivate
	change, err := Edit(draftItem(), Patch{Name: &name, Visibility: &visibility, Body: json.RawMessage(`[{"type":"paragraph","text":"x"}]`)}, "t1", testNow)
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if change.Item.Name != name || change.Item.Visibility != VisibilityPrivate {
		t.Fatalf("unexpected item: %+v", change.Item)
	}
	if change.Entry.Action != ActionUpdated || change.Entry.Note != "name,body,visibility" {
		t.Fatalf("unexpected entry: %+v", change.Entry)
	}

	same := "algebra-101"
	if _, err := Edit(draftItem(), Patch{Name: &same}, "t1", testNow); !errors.Is(err, ErrValidation) {
		t.Fatalf("no-op edit error = %v, want ErrValidation", err)
	}
	blank := "  "
	if _, err := Edit(draftItem(), Patch{Name: &blank}, "t1", testNow); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank name error = %v, want ErrValidation", err)
	}
	if _, err := Edit(draftItem(), Patch{Body: json.RawMessage(`{broken`)}, "t1", testNow); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad body error = %v, want ErrValidation", err)
	}
	if _, err := Edit(withStatus(StatusPendingApproval), Patch{Name: &name}, "t1", testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("edit in review error = %v, want ErrInvalidTransition", err)
	}
}

func TestTransitionErrorNamesTargetState(t *testing.T) {
	published := testNow.Add(-time.Hour)
	cases := []struct {
		name string
		item Item
		op   Operation
		to   string
	}{
		{"approve draft", withStatus(StatusDraft), OpApprove, string(StatusApproved)},
		{"reject approved", withStatus(StatusApproved), OpReject, string(StatusRejected)},
		{"request changes on unpublished", withStatus(StatusDraft), OpRequestChanges, string(StatusDraft)},
		{"request changes on published", func() Item { item := withStatus(StatusApproved); item.PublishedAt = &published; return item }(), OpRequestChanges, string(StatusEditing)},
		{"request edit on draft", withStatus(StatusDraft), OpRequestEdit, string(StatusDraft)},
		{"restore live item", withStatus(StatusArchived), OpRestore, string(StatusDraft)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Apply(tc.item, Transition{Operation: tc.op, ActorID: "a1", Reason: "because", At: testNow})
			var transitionErr *TransitionError
			if !errors.As(err, &transitionErr) {
				t.Fatalf("Apply(%s) error = %v, want *TransitionError", tc.op, err)
			}
			if transitionErr.To != tc.to {
				t.Fatalf("To = %q, want %q", transitionErr.To, tc.to)
			}
		})
	}
}

func TestValidateParent(t *testing.T) {
	topic := draftItem()
	quizSet := NewItem("set-1", KindQuizSet, "set-1", "", nil, "t1", "", "t1", VisibilityPublic, testNow)
	quiz := NewItem("quiz-1", KindQuiz, "quiz-1", "", nil, "t1", "", "t1", VisibilityPublic, testNow)
	deletedTopic := draftItem()
	deletedTopic.IsDeleted = true

	cases := []struct {
		name   string
		child  Kind
		parent Item
		ok     bool
	}{
		{"quiz under topic", KindQuiz, topic, true},
		{"quiz under quiz set", KindQuiz, quizSet, true},
		{"quiz set under topic", KindQuizSet, topic, true},
		{"quiz set under quiz set", KindQuizSet, quizSet, false},
		{"quiz under quiz", KindQuiz, quiz, false},
		{"topic under topic", KindTopic, topic, false},
		{"quiz under deleted topic", KindQuiz, deletedTopic, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateParent(tc.child, tc.parent)
			if tc.ok && err != nil {
				t.Fatalf("ValidateParent() error = %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrValidation) {
				t.Fatalf("ValidateParent() error = %v, want ErrValidation", err)
			}
		})
	}
}
