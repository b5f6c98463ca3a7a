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
	"skillmap/pkg/metrics"
	"skillmap/pkg/ontology"
	"skillmap/pkg/shared"
	"skillmap/pkg/visibility"
)

type ProfileService struct {
	db      *sql.DB
	orgs    *OrganizationService
	events  *EventBus
	metrics *metrics.Metrics
}

func NewProfileService(db *sql.DB, orgs *OrganizationService, events *EventBus, m *metrics.Metrics) *ProfileService {
	return &ProfileService{db: db, orgs: orgs, events: events, metrics: m}
}

type ProfileListOptions struct {
	Status         ontology.ProfileStatus
	OrganizationID string
}

const profileColumns = `p.id, p.organization_id, p.first_name, p.last_name, p.email, p.phone, p.city, p.country,
	p.title, p.seniority_years, p.work_scope, p.summary, p.visibility_level, p.status, p.created_at, p.updated_at,
	o.id, o.name, o.type, o.created_at, o.updated_at`

const profileFrom = ` FROM profiles p JOIN organizations o ON o.id = p.organization_id`

// tag lookups are chunked to stay well below SQLite's bound-parameter limit
const tagLookupChunk = 500

// ListPublished loads every published profile with its tags, newest first. A non-empty
// sources restricts results to organizations of those types.
func (s *ProfileService) ListPublished(ctx context.Context, sources []ontology.OrganizationType) ([]*ontology.Profile, error) {
	defer s.metrics.TrackDBOperation("profiles.list_published")(time.Now())

	query := `SELECT ` + profileColumns + profileFrom + ` WHERE p.status = ?`
	args := []interface{}{ontology.ProfileStatusPublished}
	if len(sources) > 0 {
		query += ` AND o.type IN (` + placeholders(len(sources)) + `)`
		for _, src := range sources {
			args = append(args, src)
		}
	}
	query += ` ORDER BY p.updated_at DESC`
	return s.queryProfiles(ctx, query, args...)
}

// ListProfiles is the dashboard listing: owners see every profile, partner roles their
// own organization's, drafts and archived included.
func (s *ProfileService) ListProfiles(ctx context.Context, viewer *visibility.Viewer, opts ProfileListOptions) ([]*ontology.Profile, error) {
	if err := requireViewer(viewer); err != nil {
		return nil, err
	}
	if viewer.Role != ontology.RoleOwner {
		opts.OrganizationID = viewer.OrganizationID
	}

	var where []string
	var args []interface{}
	if opts.OrganizationID != "" {
		where = append(where, `p.organization_id = ?`)
		args = append(args, opts.OrganizationID)
	}
	if opts.Status != "" {
		if !opts.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", shared.ErrInvalidArgument, opts.Status)
		}
		where = append(where, `p.status = ?`)
		args = append(args, opts.Status)
	}

	query := `SELECT ` + profileColumns + profileFrom
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY p.updated_at DESC`
	return s.queryProfiles(ctx, query, args...)
}

func (s *ProfileService) queryProfiles(ctx context.Context, query string, args ...interface{}) ([]*ontology.Profile, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	profiles := []*ontology.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	if err := s.loadTags(ctx, profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// GetProfile returns the profile as viewer may see it. Unmasked views include
// experiences. Profiles that are not published are hidden from viewers who would only
// get a masked view.
func (s *ProfileService) GetProfile(ctx context.Context, viewer *visibility.Viewer, id string) (ontology.ProfileView, error) {
	p, err := s.getProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if visibility.ShouldMask(p, viewer) {
		if p.Status != ontology.ProfileStatusPublished {
			return nil, notFound("profile", id)
		}
		return visibility.MaskProfile(p), nil
	}

	p.Experiences, err = listExperiences(ctx, s.db, p.ID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProfileService) getProfile(ctx context.Context, id string) (*ontology.Profile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, `SELECT `+profileColumns+profileFrom+` WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("profile", id)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadTags(ctx, []*ontology.Profile{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// editableProfile loads a profile and checks viewer may change it.
func (s *ProfileService) editableProfile(ctx context.Context, viewer *visibility.Viewer, id string) (*ontology.Profile, error) {
	p, err := s.getProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibility.CanEditProfile(p, viewer) {
		if visibility.ShouldMask(p, viewer) && p.Status != ontology.ProfileStatusPublished {
			return nil, notFound("profile", id)
		}
		return nil, forbidden("edit this profile")
	}
	return p, nil
}

func (s *ProfileService) CreateProfile(ctx context.Context, viewer *visibility.Viewer, req *ontology.CreateProfileRequest) (*ontology.Profile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !visibility.CanEditOrganizationProfiles(req.OrganizationID, viewer) {
		return nil, forbidden("create profiles in this organization")
	}
	org, err := s.orgs.getOrganization(ctx, req.OrganizationID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: organization %s does not exist", shared.ErrInvalidArgument, req.OrganizationID)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &ontology.Profile{
		ID:              uuid.New().String(),
		OrganizationID:  org.ID,
		Organization:    org,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Phone:           req.Phone,
		City:            req.City,
		Country:         req.Country,
		Title:           req.Title,
		SeniorityYears:  req.SeniorityYears,
		WorkScope:       req.WorkScope,
		Summary:         req.Summary,
		VisibilityLevel: req.VisibilityLevel,
		Status:          req.Status,
		CreatedAt:       now,
		UpdatedAt:       now,
		Tags:            []ontology.Tag{},
	}

	err = db.Transaction(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO profiles (id, organization_id, first_name, last_name, email, phone, city, country,
			                       title, seniority_years, work_scope, summary, visibility_level, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.OrganizationID, p.FirstName, p.LastName, p.Email,
			db.NullString(p.Phone), db.NullString(p.City), db.NullString(p.Country),
			p.Title, p.SeniorityYears, p.WorkScope, db.NullString(p.Summary), p.VisibilityLevel, p.Status,
			db.FormatTime(p.CreatedAt), db.FormatTime(p.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
		if len(req.TagIDs) > 0 {
			p.Tags, err = replaceProfileTags(ctx, tx, p.ID, req.TagIDs)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.Publish(shared.EntityProfile, shared.EventTypeCreated, p.ID, actorID(viewer), map[string]interface{}{
		"organization_id": p.OrganizationID,
		"status":          p.Status,
		"tags":            p.TagKeys(),
	})
	return p, nil
}

func (s *ProfileService) UpdateProfile(ctx context.Context, viewer *visibility.Viewer, id string, req *ontology.UpdateProfileRequest) (*ontology.Profile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	current, err := s.editableProfile(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	// Build dynamic update query
	query := "UPDATE profiles SET updated_at = ?"
	args := []interface{}{db.FormatTime(time.Now())}
	set := func(column string, value interface{}) {
		query += fmt.Sprintf(", %s = ?", column)
		args = append(args, value)
	}

	if req.FirstName != nil {
		set("first_name", strings.TrimSpace(*req.FirstName))
	}
	if req.LastName != nil {
		set("last_name", strings.TrimSpace(*req.LastName))
	}
	if req.Email != nil {
		set("email", strings.ToLower(strings.TrimSpace(*req.Email)))
	}
	if req.Phone != nil {
		set("phone", db.NullString(emptyToNil(req.Phone)))
	}
	if req.City != nil {
		set("city", db.NullString(emptyToNil(req.City)))
	}
	if req.Country != nil {
		set("country", db.NullString(emptyToNil(req.Country)))
	}
	if req.Title != nil {
		set("title", strings.TrimSpace(*req.Title))
	}
	if req.SeniorityYears != nil {
		set("seniority_years", *req.SeniorityYears)
	}
	if req.WorkScope != nil {
		set("work_scope", *req.WorkScope)
	}
	if req.Summary != nil {
		set("summary", db.NullString(emptyToNil(req.Summary)))
	}
	if req.VisibilityLevel != nil {
		set("visibility_level", *req.VisibilityLevel)
	}
	if req.Status != nil {
		set("status", *req.Status)
	}

	query += " WHERE id = ?"
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if err := checkAffected(result, "profile", id); err != nil {
		return nil, err
	}

	p, err := s.getProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	action := shared.EventTypeUpdated
	if p.Status != current.Status {
		action = shared.EventTypeStatus
	}
	s.events.Publish(shared.EntityProfile, action, p.ID, actorID(viewer), map[string]interface{}{
		"organization_id": p.OrganizationID,
		"status":          p.Status,
		"previous_status": current.Status,
	})
	return p, nil
}

// DeleteProfile removes the profile; its experiences and tag links go with it.
func (s *ProfileService) DeleteProfile(ctx context.Context, viewer *visibility.Viewer, id string) error {
	p, err := s.editableProfile(ctx, viewer, id)
	if err != nil {
		return err
	}
	if !visibility.CanDeleteProfile(p, viewer) {
		return forbidden("delete this profile")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if err := checkAffected(result, "profile", id); err != nil {
		return err
	}

	s.events.Publish(shared.EntityProfile, shared.EventTypeDeleted, id, actorID(viewer), map[string]interface{}{
		"organization_id": p.OrganizationID,
	})
	return nil
}

// SetProfileTags replaces the profile's tag set, keeping the given order.
func (s *ProfileService) SetProfileTags(ctx context.Context, viewer *visibility.Viewer, id string, tagIDs []string) (*ontology.Profile, error) {
	p, err := s.editableProfile(ctx, viewer, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = db.Transaction(ctx, s.db, func(tx *sql.Tx) error {
		tags, err := replaceProfileTags(ctx, tx, id, tagIDs)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE profiles SET updated_at = ? WHERE id = ?`, db.FormatTime(now), id); err != nil {
			return fmt.Errorf("failed to touch profile: %w", err)
		}
		p.Tags = tags
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.UpdatedAt = now

	s.events.Publish(shared.EntityProfile, shared.EventTypeUpdated, p.ID, actorID(viewer), map[string]interface{}{
		"organization_id": p.OrganizationID,
		"tags":            p.TagKeys(),
	})
	return p, nil
}

func replaceProfileTags(ctx context.Context, tx *sql.Tx, profileID string, tagIDs []string) ([]ontology.Tag, error) {
	seen := make(map[string]bool, len(tagIDs))
	unique := make([]string, 0, len(tagIDs))
	for _, id := range tagIDs {
		if id != "" && !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	tags := make([]ontology.Tag, 0, len(unique))
	byID := make(map[string]ontology.Tag, len(unique))
	if len(unique) > 0 {
		rows, err := tx.QueryContext(ctx,
			`SELECT `+tagColumns+` FROM tags WHERE id IN (`+placeholders(len(unique))+`)`, stringArgs(unique)...)
		if err != nil {
			return nil, fmt.Errorf("failed to query tags: %w", err)
		}
		for rows.Next() {
			tag, err := scanTag(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			byID[tag.ID] = *tag
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate tags: %w", err)
		}
	}
	for _, id := range unique {
		tag, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown tag %s", shared.ErrInvalidArgument, id)
		}
		tags = append(tags, tag)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM profile_tags WHERE profile_id = ?`, profileID); err != nil {
		return nil, fmt.Errorf("failed to clear profile tags: %w", err)
	}
	for i, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO profile_tags (profile_id, tag_id, position) VALUES (?, ?, ?)`, profileID, tag.ID, i,
		); err != nil {
			return nil, fmt.Errorf("failed to link tag %s: %w", tag.Key, err)
		}
	}
	return tags, nil
}

// loadTags fills Tags on every profile, in link order.
func (s *ProfileService) loadTags(ctx context.Context, profiles []*ontology.Profile) error {
	byID := make(map[string]*ontology.Profile, len(profiles))
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		p.Tags = []ontology.Tag{}
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	for start := 0; start < len(ids); start += tagLookupChunk {
		end := start + tagLookupChunk
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		rows, err := s.db.QueryContext(ctx,
			`SELECT pt.profile_id, t.id, t.category, t.key, t.display, t.active, t.created_at
			 FROM profile_tags pt JOIN tags t ON t.id = pt.tag_id
			 WHERE pt.profile_id IN (`+placeholders(len(chunk))+`)
			 ORDER BY pt.profile_id, pt.position`, stringArgs(chunk)...)
		if err != nil {
			return fmt.Errorf("failed to query profile tags: %w", err)
		}
		for rows.Next() {
			var profileID string
			var tag ontology.Tag
			var active int
			var createdAt string
			if err := rows.Scan(&profileID, &tag.ID, &tag.Category, &tag.Key, &tag.Display, &active, &createdAt); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan profile tag: %w", err)
			}
			tag.Active = active == 1
			if tag.CreatedAt, err = db.ParseTime(createdAt); err != nil {
				rows.Close()
				return err
			}
			if p, ok := byID[profileID]; ok {
				p.Tags = append(p.Tags, tag)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate profile tags: %w", err)
		}
	}
	return nil
}

func scanProfile(row scanner) (*ontology.Profile, error) {
	var p ontology.Profile
	var org ontology.Organization
	var phone, city, country, summary sql.NullString
	var createdAt, updatedAt, orgCreatedAt, orgUpdatedAt string

	err := row.Scan(
		&p.ID, &p.OrganizationID, &p.FirstName, &p.LastName, &p.Email, &phone, &city, &country,
		&p.Title, &p.SeniorityYears, &p.WorkScope, &summary, &p.VisibilityLevel, &p.Status, &createdAt, &updatedAt,
		&org.ID, &org.Name, &org.Type, &orgCreatedAt, &orgUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}

	p.Phone = db.StringPtr(phone)
	p.City = db.StringPtr(city)
	p.Country = db.StringPtr(country)
	p.Summary = db.StringPtr(summary)

	for _, ts := range []struct {
		dst *time.Time
		src string
	}{
		{&p.CreatedAt, createdAt}, {&p.UpdatedAt, updatedAt},
		{&org.CreatedAt, orgCreatedAt}, {&org.UpdatedAt, orgUpdatedAt},
	} {
		if *ts.dst, err = db.ParseTime(ts.src); err != nil {
			return nil, err
		}
	}
	p.Organization = &org
	p.Tags = []ontology.Tag{}
	return &p, nil
}

func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
