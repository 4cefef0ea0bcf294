package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"aula/api/internal/content"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get loads an item with its full history, including soft-deleted items.
func (s *PostgresStore) Get(ctx context.Context, id string) (content.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM content_items WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return content.Item{}, fmt.Errorf("%w: %s", content.ErrNotFound, id)
	}
	if err != nil {
		return content.Item{}, fmt.Errorf("get content item: %w", err)
	}
	history, err := s.History(ctx, id)
	if err != nil {
		return content.Item{}, err
	}
	item.History = history
	return item, nil
}

func (s *PostgresStore) GetByName(ctx context.Context, kind content.Kind, name string) (content.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM content_items WHERE kind=$1 AND name=$2`, string(kind), name))
	if errors.Is(err, sql.ErrNoRows) {
		return content.Item{}, fmt.Errorf("%w: %s %q", content.ErrNotFound, kind, name)
	}
	if err != nil {
		return content.Item{}, fmt.Errorf("get content item by name: %w", err)
	}
	history, err := s.History(ctx, item.ID)
	if err != nil {
		return content.Item{}, err
	}
	item.History = history
	return item, nil
}

func (s *PostgresStore) ExistsByName(ctx context.Context, kind content.Kind, name, excludeID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM content_items WHERE kind=$1 AND name=$2 AND id <> $3)
	`, string(kind), name, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check content name: %w", err)
	}
	return exists, nil
}

// Insert stores a new item together with its initial history.
func (s *PostgresStore) Insert(ctx context.Context, item content.Item) error {
	collaborators, err := collaboratorsJSON(item.CollaboratorIDs)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO content_items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`,
		item.ID, string(item.Kind), item.Name, item.Description, bodyJSON(item.Body), item.OwnerID, collaborators,
		nullString(item.OrganizationID), string(item.Visibility), string(item.Status), item.EditRequestPending,
		nullString(item.EditRequestedBy), nullTime(item.EditRequestedAt),
		nullString(item.ReviewedBy), nullTime(item.ReviewedAt), item.ReviewComments, nullTime(item.PublishedAt),
		item.IsDeleted, nullString(item.DeletedBy), nullTime(item.DeletedAt), item.Version, item.CreatedAt, item.UpdatedAt,
		nullString(item.ParentID),
	)
	if isUniqueViolation(err) {
		return content.Conflictf("%s %q already exists", item.Kind, item.Name)
	}
	if err != nil {
		return fmt.Errorf("insert content item: %w", err)
	}

	for _, entry := range item.History {
		if err := insertHistory(ctx, tx, item.ID, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert tx: %w", err)
	}
	return nil
}

// Update writes change.Item only if the stored version still equals
// change.ExpectedVersion, and appends change.Entry in the same transaction.
func (s *PostgresStore) Update(ctx context.Context, change content.Change) error {
	item := change.Item
	collaborators, err := collaboratorsJSON(item.CollaboratorIDs)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE content_items SET
			name=$3, description=$4, body=$5, collaborator_ids=$6, visibility=$7, status=$8,
			edit_request_pending=$9, edit_requested_by=$10, edit_requested_at=$11,
			reviewed_by=$12, reviewed_at=$13, review_comments=$14, published_at=$15,
			is_deleted=$16, deleted_by=$17, deleted_at=$18, version=$19, updated_at=$20
		WHERE id=$1 AND version=$2
	`,
		item.ID, change.ExpectedVersion,
		item.Name, item.Description, bodyJSON(item.Body), collaborators, string(item.Visibility), string(item.Status),
		item.EditRequestPending, nullString(item.EditRequestedBy), nullTime(item.EditRequestedAt),
		nullString(item.ReviewedBy), nullTime(item.ReviewedAt), item.ReviewComments, nullTime(item.PublishedAt),
		item.IsDeleted, nullString(item.DeletedBy), nullTime(item.DeletedAt), item.Version, item.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return content.Conflictf("%s %q already exists", item.Kind, item.Name)
	}
	if err != nil {
		return fmt.Errorf("update content item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update content item rows: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM content_items WHERE id=$1)`, item.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check content item: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", content.ErrNotFound, item.ID)
		}
		return fmt.Errorf("%w: %s is no longer at version %d", content.ErrConcurrentModification, item.ID, change.ExpectedVersion)
	}

	if err := insertHistory(ctx, tx, item.ID, change.Entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update tx: %w", err)
	}
	return nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, itemID string, entry content.HistoryEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO content_history (item_id, seq, action, actor_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, itemID, entry.Seq, string(entry.Action), entry.ActorID, entry.Note, entry.Date)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: history seq %d already recorded for %s", content.ErrConcurrentModification, entry.Seq, itemID)
	}
	if err != nil {
		return fmt.Errorf("insert content history: %w", err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, itemID string) ([]content.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, action, actor_id, note, created_at
		FROM content_history
		WHERE item_id=$1
		ORDER BY seq ASC
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list content history: %w", err)
	}
	defer rows.Close()

	entries := make([]content.HistoryEntry, 0)
	for rows.Next() {
		var entry content.HistoryEntry
		var action string
		if err := rows.Scan(&entry.Seq, &action, &entry.ActorID, &entry.Note, &entry.Date); err != nil {
			return nil, fmt.Errorf("scan content history: %w", err)
		}
		entry.Action = content.Action(action)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// FindMatching lists items newest first. History is not loaded.
func (s *PostgresStore) FindMatching(ctx context.Context, pred content.Predicate, page content.Page) ([]content.Item, error) {
	page = page.Normalize()
	where, args, err := WhereClause(pred, 1)
	if err != nil {
		return nil, err
	}
	limitArg := len(args) + 1
	query := fmt.Sprintf(`SELECT %s FROM content_items WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		itemColumns, where, limitArg, limitArg+1)
	args = append(args, page.Limit, page.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list content items: %w", err)
	}
	defer rows.Close()

	items := make([]content.Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context, pred content.Predicate) (int, error) {
	where, args, err := WhereClause(pred, 1)
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_items WHERE `+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count content items: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
