package content

import "time"

// Action names a history entry.
type Action string

const (
	ActionCreated             Action = "created"
	ActionUpdated             Action = "updated"
	ActionSubmitted           Action = "submitted"
	ActionApproved            Action = "approved"
	ActionRejected            Action = "rejected"
	ActionChangesRequested    Action = "changes_requested"
	ActionEditRequested       Action = "edit_requested"
	ActionEditRequestApproved Action = "edit_request_approved"
	ActionEditRequestRejected Action = "edit_request_rejected"
	ActionArchived            Action = "archived"
	ActionDeleted             Action = "deleted"
	ActionRestored            Action = "restored"
	ActionCollaboratorAdded   Action = "collaborator_added"
	ActionCollaboratorRemoved Action = "collaborator_removed"
)

// HistoryEntry is one immutable audit record. Seq equals the item version
// produced by the change it records.
type HistoryEntry struct {
	Seq     int64     `json:"seq"`
	Date    time.Time `json:"date"`
	ActorID string    `json:"actorId"`
	Action  Action    `json:"action"`
	Note    string    `json:"note,omitempty"`
}

// Change is the outcome of one successful mutation: the next state of the
// item, the version it must still hold in storage, and the single history
// entry that records it.
type Change struct {
	Item            Item
	ExpectedVersion int64
	Entry           HistoryEntry
}

// record bumps the version, stamps the update time and appends one entry.
// It is the only place that grows History.
func record(prev Item, next Item, at time.Time, actorID string, action Action, note string) Change {
	next.Version = prev.Version + 1
	next.UpdatedAt = at
	entry := HistoryEntry{
		Seq:     next.Version,
		Date:    at,
		ActorID: actorID,
		Action:  action,
		Note:    note,
	}
	next.History = append(append([]HistoryEntry(nil), prev.History...), entry)
	return Change{Item: next, ExpectedVersion: prev.Version, Entry: entry}
}

// NewItem builds a draft at version 1 with its creation entry.
func NewItem(id string, kind Kind, name, description string, body []byte, ownerID, organizationID, actorID string, visibility Visibility, at time.Time) Item {
	item := Item{
		ID:              id,
		Kind:            kind,
		Name:            name,
		Description:     description,
		Body:            body,
		OwnerID:         ownerID,
		CollaboratorIDs: []string{},
		OrganizationID:  organizationID,
		Visibility:      visibility,
		Status:          StatusDraft,
		Version:         1,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
	item.History = []HistoryEntry{{
		Seq:     1,
		Date:    at,
		ActorID: actorID,
		Action:  ActionCreated,
	}}
	return item
}
