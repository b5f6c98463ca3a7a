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

type OrganizationService struct {
	db     *sql.DB
	events *EventBus
}

func NewOrganizationService(db *sql.DB, events *EventBus) *OrganizationService {
	return &OrganizationService{db: db, events: events}
}

func (s *OrganizationService) CreateOrganization(ctx context.Context, viewer *visibility.Viewer, req *ontology.CreateOrganizationRequest) (*ontology.Organization, error) {
	if !visibility.CanManagePartners(viewer) {
		return nil, forbidden("create organizations")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	org := &ontology.Organization{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Type:      req.Type,
		CreatedAt: time.Now().UTC(),
	}
	org.UpdatedAt = org.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, type, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		org.ID, org.Name, org.Type, db.FormatTime(org.CreatedAt), db.FormatTime(org.UpdatedAt),
	)
	if isUniqueViolation(err) {
		if org.Type == ontology.OrgTypeOwner {
			return nil, fmt.Errorf("%w: an owner organization already exists", shared.ErrConflict)
		}
		return nil, fmt.Errorf("%w: organization %q already exists", shared.ErrConflict, org.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	s.events.Publish(shared.EntityOrganization, shared.EventTypeCreated, org.ID, actorID(viewer), map[string]interface{}{
		"name": org.Name,
		"type": org.Type,
	})
	return org, nil
}

// ListOrganizations returns every organization for owners and only the viewer's own
// organization for partner roles, ordered by name.
func (s *OrganizationService) ListOrganizations(ctx context.Context, viewer *visibility.Viewer) ([]ontology.Organization, error) {
	if err := requireViewer(viewer); err != nil {
		return nil, err
	}

	query := `SELECT id, name, type, created_at, updated_at FROM organizations`
	var args []interface{}
	if viewer.Role != ontology.RoleOwner {
		query += ` WHERE id = ?`
		args = append(args, viewer.OrganizationID)
	}
	query += ` ORDER BY name COLLATE NOCASE`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query organizations: %w", err)
	}
	defer rows.Close()

	orgs := []ontology.Organization{}
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, *org)
	}
	return orgs, rows.Err()
}

func (s *OrganizationService) GetOrganization(ctx context.Context, viewer *visibility.Viewer, id string) (*ontology.Organization, error) {
	if err := requireViewer(viewer); err != nil {
		return nil, err
	}
	if viewer.Role != ontology.RoleOwner && viewer.OrganizationID != id {
		return nil, notFound("organization", id)
	}
	return s.getOrganization(ctx, id)
}

func (s *OrganizationService) getOrganization(ctx context.Context, id string) (*ontology.Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, created_at, updated_at FROM organizations WHERE id = ?`, id)
	org, err := scanOrganization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("organization", id)
	}
	if err != nil {
		return nil, err
	}
	return org, nil
}

func (s *OrganizationService) UpdateOrganization(ctx context.Context, viewer *visibility.Viewer, id string, req *ontology.UpdateOrganizationRequest) (*ontology.Organization, error) {
	if !visibility.CanManagePartners(viewer) {
		return nil, forbidden("update organizations")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", shared.ErrInvalidArgument)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE organizations SET name = ?, updated_at = ? WHERE id = ?`,
		name, db.FormatTime(time.Now()), id,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: organization %q already exists", shared.ErrConflict, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}
	if err := checkAffected(result, "organization", id); err != nil {
		return nil, err
	}

	org, err := s.getOrganization(ctx, id)
	if err != nil {
		return nil, err
	}
	s.events.Publish(shared.EntityOrganization, shared.EventTypeUpdated, org.ID, actorID(viewer), map[string]interface{}{
		"name": org.Name,
	})
	return org, nil
}

// DeleteOrganization removes a partner organization that no longer has users or profiles.
func (s *OrganizationService) DeleteOrganization(ctx context.Context, viewer *visibility.Viewer, id string) error {
	if !visibility.CanManagePartners(viewer) {
		return forbidden("delete organizations")
	}
	org, err := s.getOrganization(ctx, id)
	if err != nil {
		return err
	}
	if org.Type == ontology.OrgTypeOwner {
		return fmt.Errorf("%w: the owner organization cannot be deleted", shared.ErrConflict)
	}

	var users, profiles int
	err = s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM users WHERE organization_id = ?),
		        (SELECT COUNT(*) FROM profiles WHERE organization_id = ?)`, id, id,
	).Scan(&users, &profiles)
	if err != nil {
		return fmt.Errorf("failed to count organization members: %w", err)
	}
	if users > 0 || profiles > 0 {
		return fmt.Errorf("%w: organization still has %d users and %d profiles", shared.ErrConflict, users, profiles)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = ?`, id)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: organization is still referenced", shared.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if err := checkAffected(result, "organization", id); err != nil {
		return err
	}

	s.events.Publish(shared.EntityOrganization, shared.EventTypeDeleted, id, actorID(viewer), map[string]interface{}{
		"name": org.Name,
	})
	return nil
}

func scanOrganization(row scanner) (*ontology.Organization, error) {
	var org ontology.Organization
	var createdAt, updatedAt string
	if err := row.Scan(&org.ID, &org.Name, &org.Type, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan organization: %w", err)
	}
	var err error
	if org.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if org.UpdatedAt, err = db.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &org, nil
}
