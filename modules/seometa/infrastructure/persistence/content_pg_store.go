package persistence

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/types"
)

//go:embed schema.sql
var schemaSQL string

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type pgExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Migrate creates the tables the service reads and writes. It is safe to
// run repeatedly.
func Migrate(ctx context.Context, db pgExecer) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

type ContentPGStore struct {
	pool pgBeginner
}

func NewContentPGStore(pool pgBeginner) *ContentPGStore {
	return &ContentPGStore{pool: pool}
}

func (s *ContentPGStore) GetItem(ctx context.Context, id int64) (types.ContentItem, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.ContentItem{}, false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	item := types.ContentItem{ID: id}
	err = tx.QueryRow(ctx, `
SELECT kind, author_id, status
FROM content_items
WHERE id = $1
`, id).Scan(&item.Kind, &item.AuthorID, &item.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.ContentItem{}, false, nil
	}
	if err != nil {
		return types.ContentItem{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.ContentItem{}, false, err
	}
	return item, true, nil
}

func (s *ContentPGStore) GetMeta(ctx context.Context, id int64, key string) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var value string
	err = tx.QueryRow(ctx, `
SELECT meta_value
FROM content_item_meta
WHERE item_id = $1 AND meta_key = $2
`, id, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		value = ""
	} else if err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return value, nil
}

// SetMeta upserts the value. It reports false when the stored value was
// already identical or the item does not exist.
func (s *ContentPGStore) SetMeta(ctx context.Context, id int64, key string, value string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, errors.New("meta key is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	tag, err := tx.Exec(ctx, `
INSERT INTO content_item_meta (item_id, meta_key, meta_value)
SELECT id, $2, $3 FROM content_items WHERE id = $1
ON CONFLICT (item_id, meta_key) DO UPDATE
SET meta_value = EXCLUDED.meta_value, updated_at = now()
WHERE content_item_meta.meta_value IS DISTINCT FROM EXCLUDED.meta_value
`, id, key, value)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CreateItem inserts a content item and returns it with its new id.
func (s *ContentPGStore) CreateItem(ctx context.Context, kind string, authorID int64, status string) (types.ContentItem, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return types.ContentItem{}, errors.New("kind is required")
	}
	if status == "" {
		status = types.StatusDraft
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.ContentItem{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	item := types.ContentItem{Kind: kind, AuthorID: authorID, Status: status}
	if err := tx.QueryRow(ctx, `
INSERT INTO content_items (kind, author_id, status)
VALUES ($1, $2, $3)
RETURNING id
`, kind, authorID, status).Scan(&item.ID); err != nil {
		return types.ContentItem{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.ContentItem{}, err
	}
	return item, nil
}
