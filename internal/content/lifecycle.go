package content

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

type Operation string

const (
	OpSubmit             Operation = "submit"
	OpApprove            Operation = "approve"
	OpReject             Operation = "reject"
	OpRequestChanges     Operation = "request_changes"
	OpRequestEdit        Operation = "request_edit"
	OpApproveEditRequest Operation = "approve_edit_request"
	OpRejectEditRequest  Operation = "reject_edit_request"
	OpArchive            Operation = "archive"
	OpSoftDelete         Operation = "soft_delete"
	OpRestore            Operation = "restore"
	OpUpdate             Operation = "update"
	OpAddCollaborator    Operation = "add_collaborator"
	OpRemoveCollaborator Operation = "remove_collaborator"
)

const MaxNameLength = 200

// allowedFrom lists the statuses an operation may start from. Operations not
// listed here accept any status and are gated by other preconditions.
var allowedFrom = map[Operation][]Status{
	OpSubmit:         {StatusDraft, StatusEditing, StatusRejected},
	OpApprove:        {StatusPendingApproval},
	OpReject:         {StatusPendingApproval},
	OpRequestChanges: {StatusPendingApproval},
	OpRequestEdit:    {StatusApproved},
	OpUpdate:         {StatusDraft, StatusEditing, StatusRejected},
}

// targetState names the state op leads to from item. Operations that leave
// the status alone report the current one.
func targetState(op Operation, item Item) string {
	switch op {
	case OpSubmit:
		return string(StatusPendingApproval)
	case OpApprove:
		return string(StatusApproved)
	case OpReject:
		return string(StatusRejected)
	case OpRequestChanges:
		if item.PublishedAt == nil {
			return string(StatusDraft)
		}
		return string(StatusEditing)
	case OpApproveEditRequest:
		return string(StatusEditing)
	case OpArchive:
		return string(StatusArchived)
	case OpSoftDelete:
		return StateDeleted
	case OpRestore:
		return string(StatusDraft)
	default:
		return string(item.Status)
	}
}

// Allows reports whether op may start from status s.
func (op Operation) Allows(s Status) bool {
	statuses, ok := allowedFrom[op]
	if !ok {
		return true
	}
	return slices.Contains(statuses, s)
}

// RequiresReason reports whether op must carry a non-empty reason.
func (op Operation) RequiresReason() bool {
	return op == OpReject || op == OpRequestChanges
}

// ValidateReason fails for reason-carrying operations with a blank reason.
func ValidateReason(op Operation, reason string) error {
	if op.RequiresReason() && strings.TrimSpace(reason) == "" {
		return Validationf("reason is required to %s", op)
	}
	return nil
}

// Transition describes a status change requested by an actor.
type Transition struct {
	Operation Operation
	ActorID   string
	Reason    string
	At        time.Time
}

// Apply checks the transition against the current state of item and returns
// the resulting change. item is not modified.
func Apply(item Item, t Transition) (Change, error) {
	if err := ValidateReason(t.Operation, t.Reason); err != nil {
		return Change{}, err
	}
	if item.IsDeleted && t.Operation != OpRestore {
		return Change{}, transitionError(t.Operation, item, "")
	}
	if !t.Operation.Allows(item.Status) {
		return Change{}, transitionError(t.Operation, item, "")
	}

	at := t.At
	next := item.Clone()
	reason := strings.TrimSpace(t.Reason)

	switch t.Operation {
	case OpSubmit:
		next.Status = StatusPendingApproval
		clearEditRequest(&next)
		return record(item, next, at, t.ActorID, ActionSubmitted, ""), nil

	case OpApprove:
		next.Status = StatusApproved
		setReview(&next, t.ActorID, at, "")
		if next.PublishedAt == nil {
			published := at
			next.PublishedAt = &published
		}
		return record(item, next, at, t.ActorID, ActionApproved, ""), nil

	case OpReject:
		next.Status = StatusRejected
		setReview(&next, t.ActorID, at, reason)
		return record(item, next, at, t.ActorID, ActionRejected, reason), nil

	case OpRequestChanges:
		// Items that were never published go back to draft; published ones
		// reopen for editing.
		if next.PublishedAt == nil {
			next.Status = StatusDraft
		} else {
			next.Status = StatusEditing
		}
		setReview(&next, t.ActorID, at, reason)
		return record(item, next, at, t.ActorID, ActionChangesRequested, reason), nil

	case OpRequestEdit:
		if item.EditRequestPending {
			return Change{}, Conflictf("an edit request is already pending")
		}
		requested := at
		next.EditRequestPending = true
		next.EditRequestedBy = t.ActorID
		next.EditRequestedAt = &requested
		return record(item, next, at, t.ActorID, ActionEditRequested, reason), nil

	case OpApproveEditRequest:
		if !item.EditRequestPending {
			return Change{}, transitionError(t.Operation, item, "no edit request pending")
		}
		requester := item.EditRequestedBy
		next.Status = StatusEditing
		clearEditRequest(&next)
		return record(item, next, at, t.ActorID, ActionEditRequestApproved, requester), nil

	case OpRejectEditRequest:
		if !item.EditRequestPending {
			return Change{}, transitionError(t.Operation, item, "no edit request pending")
		}
		requester := item.EditRequestedBy
		clearEditRequest(&next)
		return record(item, next, at, t.ActorID, ActionEditRequestRejected, requester), nil

	case OpArchive:
		next.Status = StatusArchived
		return record(item, next, at, t.ActorID, ActionArchived, reason), nil

	case OpSoftDelete:
		deleted := at
		next.IsDeleted = true
		next.DeletedBy = t.ActorID
		next.DeletedAt = &deleted
		return record(item, next, at, t.ActorID, ActionDeleted, reason), nil

	case OpRestore:
		if !item.IsDeleted {
			return Change{}, transitionError(t.Operation, item, "item is not deleted")
		}
		next.IsDeleted = false
		next.DeletedBy = ""
		next.DeletedAt = nil
		next.Status = StatusDraft
		clearEditRequest(&next)
		return record(item, next, at, t.ActorID, ActionRestored, ""), nil

	default:
		return Change{}, Validationf("unknown operation %q", t.Operation)
	}
}

func setReview(item *Item, reviewerID string, at time.Time, comments string) {
	reviewed := at
	item.ReviewedBy = reviewerID
	item.ReviewedAt = &reviewed
	item.ReviewComments = comments
}

func clearEditRequest(item *Item) {
	item.EditRequestPending = false
	item.EditRequestedBy = ""
	item.EditRequestedAt = nil
}

// Patch carries the editable fields of an item. Nil fields are left as is.
type Patch struct {
	Name        *string
	Description *string
	Body        json.RawMessage
	Visibility  *Visibility
}

func (p Patch) empty() bool {
	return p.Name == nil && p.Description == nil && p.Body == nil && p.Visibility == nil
}

// ValidateName trims name and checks it is usable as a unique key.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", Validationf("name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", Validationf("name must be at most %d characters", MaxNameLength)
	}
	return name, nil
}

// ValidateBody accepts an empty body or any well-formed JSON document.
func ValidateBody(body json.RawMessage) error {
	if len(body) == 0 {
		return nil
	}
	if !json.Valid(body) {
		return Validationf("body must be valid JSON")
	}
	return nil
}

// Edit applies patch to an item that is still being authored.
func Edit(item Item, patch Patch, actorID string, at time.Time) (Change, error) {
	if patch.empty() {
		return Change{}, Validationf("nothing to update")
	}
	if item.IsDeleted || !OpUpdate.Allows(item.Status) {
		return Change{}, transitionError(OpUpdate, item, "")
	}

	next := item.Clone()
	var fields []string
	if patch.Name != nil {
		name, err := ValidateName(*patch.Name)
		if err != nil {
			return Change{}, err
		}
		if name != item.Name {
			next.Name = name
			fields = append(fields, "name")
		}
	}
	if patch.Description != nil {
		description := strings.TrimSpace(*patch.Description)
		if description != item.Description {
			next.Description = description
			fields = append(fields, "description")
		}
	}
	if patch.Body != nil {
		if err := ValidateBody(patch.Body); err != nil {
			return Change{}, err
		}
		next.Body = append(json.RawMessage(nil), patch.Body...)
		fields = append(fields, "body")
	}
	if patch.Visibility != nil {
		if !patch.Visibility.Valid() {
			return Change{}, Validationf("visibility must be one of public, organization, private")
		}
		if *patch.Visibility != item.Visibility {
			next.Visibility = *patch.Visibility
			fields = append(fields, "visibility")
		}
	}
	if len(fields) == 0 {
		return Change{}, Validationf("nothing to update")
	}
	return record(item, next, at, actorID, ActionUpdated, strings.Join(fields, ",")), nil
}
