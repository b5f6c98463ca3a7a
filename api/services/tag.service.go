package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"skillmap/db"
	"skillmap/pkg/ontology"
	"skillmap/pkg/shared"
	"skillmap/pkg/visibility"
)

type TagService struct {
	db     *sql.DB
	events *EventBus
}

func NewTagService(db *sql.DB, events *EventBus) *TagService {
	return &TagService{db: db, events: events}
}

type TagListOptions struct {
	Category        ontology.TagCategory
	IncludeInactive bool
}

const tagColumns = `id, category, key, display, active, created_at`

// ListTags returns tags ordered by display name. Inactive tags are skipped unless asked for.
func (s *TagService) ListTags(ctx context.Context, opts TagListOptions) ([]ontology.Tag, error) {
	var where []string
	var args []interface{}
	if !opts.IncludeInactive {
		where = append(where, `active = 1`)
	}
	if opts.Category != "" {
		if !opts.Category.Valid() {
			return nil, fmt.Errorf("%w: unknown tag category %q", shared.ErrInvalidArgument, opts.Category)
		}
		where = append(where, `category = ?`)
		args = append(args, opts.Category)
	}

	query := `SELECT ` + tagColumns + ` FROM tags`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY display COLLATE NOCASE, key`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	tags := []ontology.Tag{}
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *tag)
	}
	return tags, rows.Err()
}

func (s *TagService) GetTag(ctx context.Context, id string) (*ontology.Tag, error) {
	tag, err := scanTag(s.db.QueryRowContext(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("tag", id)
	}
	return tag, err
}

// FindTag looks a tag up by its natural key.
func (s *TagService) FindTag(ctx context.Context, category ontology.TagCategory, key string) (*ontology.Tag, error) {
	tag, err := scanTag(s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE category = ? AND key = ?`, category, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("tag", string(category)+"/"+key)
	}
	return tag, err
}

func (s *TagService) CreateTag(ctx context.Context, viewer *visibility.Viewer, req *ontology.CreateTagRequest) (*ontology.Tag, error) {
	if !visibility.CanManageTags(viewer) {
		return nil, forbidden("manage tags")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tag := &ontology.Tag{
		ID:        uuid.New().String(),
		Category:  req.Category,
		Key:       req.Key,
		Display:   req.Display,
		Active:    req.Active == nil || *req.Active,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (id, category, key, display, active, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		tag.ID, tag.Category, tag.Key, tag.Display, boolToInt(tag.Active), db.FormatTime(tag.CreatedAt),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: tag %s/%s already exists", shared.ErrConflict, tag.Category, tag.Key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}

	s.events.Publish(shared.EntityTag, shared.EventTypeCreated, tag.ID, actorID(viewer), map[string]interface{}{
		"category": tag.Category,
		"key":      tag.Key,
	})
	return tag, nil
}

// UpdateTag changes the display name or toggles active. Deactivating is the supported
// way to retire a tag that profiles still reference.
func (s *TagService) UpdateTag(ctx context.Context, viewer *visibility.Viewer, id string, req *ontology.UpdateTagRequest) (*ontology.Tag, error) {
	if !visibility.CanManageTags(viewer) {
		return nil, forbidden("manage tags")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var sets []string
	var args []interface{}
	if req.Display != nil {
		sets = append(sets, `display = ?`)
		args = append(args, strings.TrimSpace(*req.Display))
	}
	if req.Active != nil {
		sets = append(sets, `active = ?`)
		args = append(args, boolToInt(*req.Active))
	}
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, `UPDATE tags SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update tag: %w", err)
	}
	if err := checkAffected(result, "tag", id); err != nil {
		return nil, err
	}

	tag, err := s.GetTag(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Publish(shared.EntityTag, shared.EventTypeUpdated, tag.ID, actorID(viewer), map[string]interface{}{
		"display": tag.Display,
		"active":  tag.Active,
	})
	return tag, nil
}

// DeleteTag removes a tag no profile references; referenced tags must be deactivated instead.
func (s *TagService) DeleteTag(ctx context.Context, viewer *visibility.Viewer, id string) error {
	if !visibility.CanManageTags(viewer) {
		return forbidden("manage tags")
	}

	var refs int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profile_tags WHERE tag_id = ?`, id).Scan(&refs); err != nil {
		return fmt.Errorf("failed to count tag references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("%w: tag is used by %d profiles; deactivate it instead", shared.ErrConflict, refs)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: tag is still referenced", shared.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	if err := checkAffected(result, "tag", id); err != nil {
		return err
	}

	s.events.Publish(shared.EntityTag, shared.EventTypeDeleted, id, actorID(viewer), nil)
	return nil
}

func scanTag(row scanner) (*ontology.Tag, error) {
	var tag ontology.Tag
	var active int
	var createdAt string
	if err := row.Scan(&tag.ID, &tag.Category, &tag.Key, &tag.Display, &active, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan tag: %w", err)
	}
	tag.Active = active == 1
	var err error
	if tag.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &tag, nil
}
