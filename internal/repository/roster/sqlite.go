package roster

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	// Registers the "sqlite" driver.
	_ "modernc.org/sqlite"

	domain "github.com/oshokin/uwb-tracker/internal/domain/tracking"
)

// schemaSQL creates the roster tables. Anchors keep insertion order through
// an autoincrement position column.
//
//go:embed schema.sql
var schemaSQL string

// SQLiteRepository persists the roster in a SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database at path.
func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open roster database: %w", err)
	}

	// One connection keeps ":memory:" databases alive between calls.
	db.SetMaxOpenConns(1)

	if _, err = db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create roster schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Tags lists tags ordered by id.
func (r *SQLiteRepository) Tags(ctx context.Context) ([]domain.Tag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tag_id, display_name, external_id FROM tags ORDER BY tag_id`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	tags := []domain.Tag{}

	for rows.Next() {
		var t domain.Tag
		if err = rows.Scan(&t.TagID, &t.DisplayName, &t.ExternalID); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}

		tags = append(tags, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}

	return tags, nil
}

// Anchors lists anchors in insertion order.
func (r *SQLiteRepository) Anchors(ctx context.Context) ([]domain.AnchorSite, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT anchor_id, name, x, y FROM anchors ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query anchors: %w", err)
	}
	defer rows.Close()

	anchors := []domain.AnchorSite{}

	for rows.Next() {
		var a domain.AnchorSite
		if err = rows.Scan(&a.AnchorID, &a.Name, &a.X, &a.Y); err != nil {
			return nil, fmt.Errorf("scan anchor: %w", err)
		}

		anchors = append(anchors, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate anchors: %w", err)
	}

	return anchors, nil
}

// CreateTag inserts a tag.
func (r *SQLiteRepository) CreateTag(ctx context.Context, tag domain.Tag) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO tags (tag_id, display_name, external_id) VALUES (?, ?, ?)
		 ON CONFLICT (tag_id) DO NOTHING`,
		tag.TagID, tag.DisplayName, tag.ExternalID)
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}

	return expectOne(res, fmt.Errorf("tag %d: %w", tag.TagID, ErrAlreadyExists))
}

// UpdateTag replaces a tag by id.
func (r *SQLiteRepository) UpdateTag(ctx context.Context, tag domain.Tag) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tags SET display_name = ?, external_id = ? WHERE tag_id = ?`,
		tag.DisplayName, tag.ExternalID, tag.TagID)
	if err != nil {
		return fmt.Errorf("update tag: %w", err)
	}

	return expectOne(res, fmt.Errorf("tag %d: %w", tag.TagID, ErrNotFound))
}

// DeleteTag removes a tag by id.
func (r *SQLiteRepository) DeleteTag(ctx context.Context, tagID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE tag_id = ?`, tagID)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}

	return expectOne(res, fmt.Errorf("tag %d: %w", tagID, ErrNotFound))
}

// CreateAnchor inserts an anchor at the end of the list.
func (r *SQLiteRepository) CreateAnchor(ctx context.Context, anchor domain.AnchorSite) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO anchors (anchor_id, name, x, y) VALUES (?, ?, ?, ?)
		 ON CONFLICT (anchor_id) DO NOTHING`,
		anchor.AnchorID, anchor.Name, anchor.X, anchor.Y)
	if err != nil {
		return fmt.Errorf("insert anchor: %w", err)
	}

	return expectOne(res, fmt.Errorf("anchor %q: %w", anchor.AnchorID, ErrAlreadyExists))
}

// UpdateAnchor replaces an anchor by id, keeping its position in the list.
func (r *SQLiteRepository) UpdateAnchor(ctx context.Context, anchor domain.AnchorSite) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE anchors SET name = ?, x = ?, y = ? WHERE anchor_id = ?`,
		anchor.Name, anchor.X, anchor.Y, anchor.AnchorID)
	if err != nil {
		return fmt.Errorf("update anchor: %w", err)
	}

	return expectOne(res, fmt.Errorf("anchor %q: %w", anchor.AnchorID, ErrNotFound))
}

// DeleteAnchor removes an anchor by id.
func (r *SQLiteRepository) DeleteAnchor(ctx context.Context, anchorID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM anchors WHERE anchor_id = ?`, anchorID)
	if err != nil {
		return fmt.Errorf("delete anchor: %w", err)
	}

	return expectOne(res, fmt.Errorf("anchor %q: %w", anchorID, ErrNotFound))
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// expectOne returns miss unless exactly one row was affected.
func expectOne(res sql.Result, miss error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		return miss
	}

	return nil
}

var _ Repository = (*SQLiteRepository)(nil)
