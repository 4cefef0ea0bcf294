package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"aula/api/internal/content"
	"aula/api/internal/rbac"
)

const opCreate = "create"

type CreateInput struct {
	Kind           string          `json:"kind"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Body           json.RawMessage `json:"body"`
	Visibility     string          `json:"visibility"`
	OrganizationID string          `json:"organizationId"`
	OwnerID        string          `json:"ownerId"`
	ParentID       string          `json:"parentId"`
}

type UpdateInput struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Body        json.RawMessage `json:"body"`
	Visibility  *string         `json:"visibility"`
}

// Create stores a new draft owned by the caller. Admins may assign another
// owner; only global admins may place content in a foreign organization.
func (s *Service) Create(ctx context.Context, caller content.Caller, input CreateInput) (content.Item, error) {
	if err := requireAction(caller, rbac.ActionCreate); err != nil {
		return content.Item{}, err
	}
	kind, err := content.ParseKind(input.Kind)
	if err != nil {
		return content.Item{}, err
	}
	name, err := content.ValidateName(input.Name)
	if err != nil {
		return content.Item{}, err
	}
	if err := content.ValidateBody(input.Body); err != nil {
		return content.Item{}, err
	}
	visibility, err := content.ParseVisibility(input.Visibility)
	if err != nil {
		return content.Item{}, err
	}

	orgID := strings.TrimSpace(input.OrganizationID)
	switch {
	case orgID == "":
		orgID = caller.OrganizationID
	case orgID != caller.OrganizationID:
		if caller.Role != rbac.RoleAdmin || caller.OrganizationID != "" {
			return content.Item{}, content.Forbiddenf("cannot create content in organization %s", orgID)
		}
	}

	ownerID := caller.ID
	if requested := strings.TrimSpace(input.OwnerID); requested != "" && requested != caller.ID {
		if caller.Role != rbac.RoleAdmin {
			return content.Item{}, content.Forbiddenf("only admins can assign another owner")
		}
		ownerID = requested
	}

	parentID := strings.TrimSpace(input.ParentID)
	if parentID != "" {
		if err := s.checkParent(ctx, caller, kind, orgID, parentID); err != nil {
			return content.Item{}, err
		}
	}

	exists, err := s.repo.ExistsByName(ctx, kind, name, "")
	if err != nil {
		return content.Item{}, err
	}
	if exists {
		return content.Item{}, content.Conflictf("a %s named %q already exists", kind, name)
	}

	item := content.NewItem(
		s.newID(string(kind)),
		kind,
		name,
		strings.TrimSpace(input.Description),
		input.Body,
		ownerID,
		orgID,
		caller.ID,
		visibility,
		s.now(),
	)
	item.ParentID = parentID
	if err := s.repo.Insert(ctx, item); err != nil {
		s.metrics.ObserveTransition(string(kind), opCreate, errorCode(err))
		return content.Item{}, err
	}
	s.afterChange(ctx, opCreate, item, item.History[len(item.History)-1])
	return item, nil
}

// checkParent verifies that the caller can see the parent and that an item
// of kind may belong to it within organization orgID.
func (s *Service) checkParent(ctx context.Context, caller content.Caller, kind content.Kind, orgID, parentID string) error {
	parent, err := s.FindByID(ctx, caller, parentID, false)
	if errors.Is(err, content.ErrNotFound) {
		return content.Validationf("parent %s not found", parentID)
	}
	if err != nil {
		return err
	}
	if err := content.ValidateParent(kind, parent); err != nil {
		return err
	}
	if parent.OrganizationID != orgID {
		return content.Validationf("parent %s belongs to another organization", parentID)
	}
	return nil
}

// Update edits the authored fields of a draft, rejected or editing item.
func (s *Service) Update(ctx context.Context, caller content.Caller, id string, input UpdateInput) (content.Item, error) {
	patch := content.Patch{
		Name:        input.Name,
		Description: input.Description,
		Body:        input.Body,
	}
	if input.Visibility != nil {
		visibility, err := content.ParseVisibility(*input.Visibility)
		if err != nil {
			return content.Item{}, err
		}
		patch.Visibility = &visibility
	}

	return s.mutate(ctx, caller, id, mutation{
		op:        content.OpUpdate,
		authorize: func(item content.Item) error { return canAuthor(caller, item) },
		apply: func(item content.Item, at time.Time) (content.Change, bool, error) {
			change, err := content.Edit(item, patch, caller.ID, at)
			if err != nil {
				return content.Change{}, false, err
			}
			next := change.Item
			if next.Name != item.Name {
				exists, err := s.repo.ExistsByName(ctx, next.Kind, next.Name, next.ID)
				if err != nil {
					return content.Change{}, false, err
				}
				if exists {
					return content.Change{}, false, content.Conflictf("a %s named %q already exists", next.Kind, next.Name)
				}
			}
			return change, true, nil
		},
	})
}

func (s *Service) SubmitForReview(ctx context.Context, caller content.Caller, id string) (content.Item, error) {
	return s.transition(ctx, caller, id, content.OpSubmit, "", func(item content.Item) error {
		return canAuthor(caller, item)
	})
}

func (s *Service) Approve(ctx context.Context, caller content.Caller, id string) (content.Item, error) {
	return s.transition(ctx, caller, id, content.OpApprove, "", func(item content.Item) error {
		return canReview(caller, item)
	})
}

func (s *Service) Reject(ctx context.Context, caller content.Caller, id, reason string) (content.Item, error) {
	return s.transition(ctx, caller, id, content.OpReject, reason, func(item content.Item) error {
		return canReview(caller, item)
	})
}

func (s *Service) RequestChanges(ctx context.Context, caller content.Caller, id, reason string) (content.Item, error) {
	return s.transition(ctx, caller, id, content.OpRequestChanges, reason, func(item content.Item) error {
		return canReview(caller, item)
	})
}

// RequestEdit asks to reopen an approved item for editing.
func (s *Service) RequestEdit(ctx context.Context, caller content.Caller, id, reason string) (content.Item, error) {
	return s.transition(ctx, caller, id, content.OpRequestEdit, reason, func(item content.Item) error {
		return canAuthor(caller, item)
	})
}

func (s *Service) ApproveEditRequest(ctx context.Context, caller content.Caller, id string) (content.Item, error) {
	return s.transition(ctx, caller, id, content.OpApproveEditRequest, "", func(item content.Item) error {
		return canModerate(caller, item)
	})
}

func (s *Service) RejectEditRequest(ctx context.Context, caller content.Caller, id string) (content.Item, error) {
	return s.transition(ctx, caller, id, content.OpRejectEditRequest, "", func(item content.Item) error {
		return canModerate(caller, item)
	})
}

func (s *Service) Archive(ctx context.Context, caller content.Caller, id, reason string) (content.Item, error) {
	return s.transition(ctx, caller, id, content.OpArchive, reason, func(item content.Item) error {
		return canModerate(caller, item)
	})
}

// SoftDelete moves an item to the trash. Deleting an item that is already
// deleted fails with an invalid transition.
func (s *Service) SoftDelete(ctx context.Context, caller content.Caller, id, reason string) (content.Item, error) {
	return s.transition(ctx, caller, id, content.OpSoftDelete, reason, func(item content.Item) error {
		return canDelete(caller, item)
	})
}

// Restore brings a deleted item back as a draft.
func (s *Service) Restore(ctx context.Context, caller content.Caller, id string) (content.Item, error) {
	return s.transition(ctx, caller, id, content.OpRestore, "", func(item content.Item) error {
		return canModerate(caller, item)
	})
}

func (s *Service) transition(ctx context.Context, caller content.Caller, id string, op content.Operation, reason string, authorize func(content.Item) error) (content.Item, error) {
	if err := content.ValidateReason(op, reason); err != nil {
		s.metrics.ObserveTransition("", string(op), errorCode(err))
		return content.Item{}, err
	}
	return s.mutate(ctx, caller, id, mutation{
		op:        op,
		authorize: authorize,
		apply: func(item content.Item, at time.Time) (content.Change, bool, error) {
			change, err := content.Apply(item, content.Transition{
				Operation: op,
				ActorID:   caller.ID,
				Reason:    reason,
				At:        at,
			})
			return change, err == nil, err
		},
	})
}

// AddCollaborator grants edit rights on an item. Only the owner may do so.
func (s *Service) AddCollaborator(ctx context.Context, caller content.Caller, id, collaboratorID string) (content.Item, error) {
	return s.mutate(ctx, caller, id, mutation{
		op:        content.OpAddCollaborator,
		authorize: anyone,
		apply: func(item content.Item, at time.Time) (content.Change, bool, error) {
			change, err := content.AddCollaborator(item, collaboratorID, caller.ID, at)
			return change, err == nil, err
		},
	})
}

// RemoveCollaborator revokes edit rights. Removing a non-collaborator
// returns the item unchanged.
func (s *Service) RemoveCollaborator(ctx context.Context, caller content.Caller, id, collaboratorID string) (content.Item, error) {
	return s.mutate(ctx, caller, id, mutation{
		op:        content.OpRemoveCollaborator,
		authorize: anyone,
		apply: func(item content.Item, at time.Time) (content.Change, bool, error) {
			return content.RemoveCollaborator(item, collaboratorID, caller.ID, at)
		},
	})
}
