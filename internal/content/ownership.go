package content

import (
	"slices"
	"strings"
	"time"
)

// Relation is how a caller relates to one item.
type Relation int

const (
	Unrelated Relation = iota
	Owner
	Collaborator
	// ReviewerOfRecord is the caller who made the latest review decision.
	ReviewerOfRecord
)

func (r Relation) String() string {
	switch r {
	case Owner:
		return "owner"
	case Collaborator:
		return "collaborator"
	case ReviewerOfRecord:
		return "reviewer"
	default:
		return "unrelated"
	}
}

// CanEdit reports whether the relation grants authoring rights.
func (r Relation) CanEdit() bool {
	return r == Owner || r == Collaborator
}

// Resolve classifies callerID against item. Ownership wins over
// collaboration, which wins over having reviewed the item.
func Resolve(item Item, callerID string) Relation {
	if callerID == "" {
		return Unrelated
	}
	switch {
	case item.OwnerID == callerID:
		return Owner
	case slices.Contains(item.CollaboratorIDs, callerID):
		return Collaborator
	case item.ReviewedBy == callerID:
		return ReviewerOfRecord
	default:
		return Unrelated
	}
}

// AddCollaborator grants collaboratorID edit rights. Only the owner may
// change the collaborator list.
func AddCollaborator(item Item, collaboratorID, callerID string, at time.Time) (Change, error) {
	collaboratorID = strings.TrimSpace(collaboratorID)
	if collaboratorID == "" {
		return Change{}, Validationf("collaborator id is required")
	}
	if Resolve(item, callerID) != Owner {
		return Change{}, Forbiddenf("only the owner can manage collaborators")
	}
	if item.IsDeleted {
		return Change{}, transitionError(OpAddCollaborator, item, "")
	}
	if collaboratorID == item.OwnerID {
		return Change{}, Conflictf("the owner cannot be a collaborator")
	}
	if slices.Contains(item.CollaboratorIDs, collaboratorID) {
		return Change{}, Conflictf("%s is already a collaborator", collaboratorID)
	}

	next := item.Clone()
	next.CollaboratorIDs = append(next.CollaboratorIDs, collaboratorID)
	return record(item, next, at, callerID, ActionCollaboratorAdded, collaboratorID), nil
}

// RemoveCollaborator revokes collaboratorID. Removing someone who is not a
// collaborator succeeds without a change; changed is false in that case.
func RemoveCollaborator(item Item, collaboratorID, callerID string, at time.Time) (change Change, changed bool, err error) {
	collaboratorID = strings.TrimSpace(collaboratorID)
	if collaboratorID == "" {
		return Change{}, false, Validationf("collaborator id is required")
	}
	if Resolve(item, callerID) != Owner {
		return Change{}, false, Forbiddenf("only the owner can manage collaborators")
	}
	if item.IsDeleted {
		return Change{}, false, transitionError(OpRemoveCollaborator, item, "")
	}
	idx := slices.Index(item.CollaboratorIDs, collaboratorID)
	if idx < 0 {
		return Change{Item: item, ExpectedVersion: item.Version}, false, nil
	}

	next := item.Clone()
	next.CollaboratorIDs = slices.Delete(next.CollaboratorIDs, idx, idx+1)
	return record(item, next, at, callerID, ActionCollaboratorRemoved, collaboratorID), true, nil
}
