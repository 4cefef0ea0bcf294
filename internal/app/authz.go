package app

import (
	"aula/api/internal/content"
	"aula/api/internal/rbac"
)

// requireIdentity refuses anonymous callers and roles outside the known set.
func requireIdentity(caller content.Caller) error {
	if !caller.Authenticated() {
		return content.Forbiddenf("authentication required")
	}
	if !caller.Role.Valid() {
		return content.Forbiddenf("unknown role %q", caller.Role)
	}
	return nil
}

func requireAction(caller content.Caller, action rbac.Action) error {
	if err := requireIdentity(caller); err != nil {
		return err
	}
	if !rbac.Can(caller.Role, action) {
		return content.Forbiddenf("%s may not %s content", caller.Role, action)
	}
	return nil
}

// canAuthor allows the owner and collaborators, or an admin within tenant.
func canAuthor(caller content.Caller, item content.Item) error {
	if caller.Role == rbac.RoleAdmin && content.WithinTenant(caller, item) {
		return nil
	}
	if !rbac.Can(caller.Role, rbac.ActionEdit) {
		return content.Forbiddenf("%s may not edit content", caller.Role)
	}
	if !content.Resolve(item, caller.ID).CanEdit() {
		return content.Forbiddenf("only the owner or a collaborator can change %s", item.ID)
	}
	return nil
}

func canReview(caller content.Caller, item content.Item) error {
	if !rbac.Can(caller.Role, rbac.ActionReview) {
		return content.Forbiddenf("%s may not review content", caller.Role)
	}
	if !content.WithinTenant(caller, item) {
		return content.Forbiddenf("%s is outside the reviewer's organization", item.ID)
	}
	return nil
}

func canModerate(caller content.Caller, item content.Item) error {
	if !rbac.Can(caller.Role, rbac.ActionModerate) {
		return content.Forbiddenf("%s may not moderate content", caller.Role)
	}
	if !content.WithinTenant(caller, item) {
		return content.Forbiddenf("%s is outside the admin's organization", item.ID)
	}
	return nil
}

// canDelete allows the owner, or a moderator within tenant.
func canDelete(caller content.Caller, item content.Item) error {
	if content.Resolve(item, caller.ID) == content.Owner {
		return nil
	}
	return canModerate(caller, item)
}

// anyone defers authorization to the content rules themselves.
func anyone(content.Item) error {
	return nil
}
