package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"aula/api/internal/content"
)

const itemColumns = `id, kind, name, description, body, owner_id, collaborator_ids, organization_id,
	visibility, status, edit_request_pending, edit_requested_by, edit_requested_at,
	reviewed_by, reviewed_at, review_comments, published_at,
	is_deleted, deleted_by, deleted_at, version, created_at, updated_at, parent_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (content.Item, error) {
	var (
		item                                          content.Item
		kind, visibility, status                      string
		body, collaborators                           []byte
		organizationID, editBy, reviewedBy, deletedBy sql.NullString
		parentID                                      sql.NullString
		editAt, reviewedAt, publishedAt, deletedAt    sql.NullTime
	)
	err := row.Scan(
		&item.ID, &kind, &item.Name, &item.Description, &body, &item.OwnerID, &collaborators, &organizationID,
		&visibility, &status, &item.EditRequestPending, &editBy, &editAt,
		&reviewedBy, &reviewedAt, &item.ReviewComments, &publishedAt,
		&item.IsDeleted, &deletedBy, &deletedAt, &item.Version, &item.CreatedAt, &item.UpdatedAt, &parentID,
	)
	if err != nil {
		return content.Item{}, err
	}

	item.Kind = content.Kind(kind)
	item.Visibility = content.Visibility(visibility)
	item.Status = content.Status(status)
	if len(body) > 0 {
		item.Body = json.RawMessage(append([]byte(nil), body...))
	}
	item.CollaboratorIDs = []string{}
	if len(collaborators) > 0 {
		if err := json.Unmarshal(collaborators, &item.CollaboratorIDs); err != nil {
			return content.Item{}, fmt.Errorf("decode collaborators of %s: %w", item.ID, err)
		}
	}
	item.OrganizationID = organizationID.String
	item.ParentID = parentID.String
	item.EditRequestedBy = editBy.String
	item.EditRequestedAt = timePtr(editAt)
	item.ReviewedBy = reviewedBy.String
	item.ReviewedAt = timePtr(reviewedAt)
	item.PublishedAt = timePtr(publishedAt)
	item.DeletedBy = deletedBy.String
	item.DeletedAt = timePtr(deletedAt)
	return item, nil
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return *value
}

func bodyJSON(body json.RawMessage) string {
	if len(body) == 0 {
		return "[]"
	}
	return string(body)
}

func collaboratorsJSON(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	payload, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode collaborators: %w", err)
	}
	return string(payload), nil
}
