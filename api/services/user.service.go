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
	"skillmap/pkg/auth"
	"skillmap/pkg/ontology"
	"skillmap/pkg/shared"
	"skillmap/pkg/visibility"
)

type UserService struct {
	db     *sql.DB
	orgs   *OrganizationService
	events *EventBus
}

func NewUserService(db *sql.DB, orgs *OrganizationService, events *EventBus) *UserService {
	return &UserService{db: db, orgs: orgs, events: events}
}

const userColumns = `u.id, u.email, u.name, u.role, u.organization_id, u.password_hash, u.created_at, u.last_login_at,
	o.id, o.name, o.type, o.created_at, o.updated_at`

const userFrom = ` FROM users u JOIN organizations o ON o.id = u.organization_id`

// CreateUser adds a user. Owners may create any user; partner admins may only add
// partner users or admins to their own organization. The role must match the type of
// the target organization.
func (s *UserService) CreateUser(ctx context.Context, viewer *visibility.Viewer, req *ontology.CreateUserRequest) (*ontology.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !visibility.CanManageUsers(req.OrganizationID, viewer) {
		return nil, forbidden("create users in this organization")
	}
	if viewer.Role != ontology.RoleOwner && !req.Role.IsPartner() {
		return nil, forbidden("assign the owner role")
	}

	org, err := s.orgs.getOrganization(ctx, req.OrganizationID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: organization %s does not exist", shared.ErrInvalidArgument, req.OrganizationID)
	}
	if err != nil {
		return nil, err
	}
	if req.Role.OrganizationType() != org.Type {
		return nil, fmt.Errorf("%w: role %s requires a %s organization", shared.ErrInvalidArgument, req.Role, req.Role.OrganizationType())
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &ontology.User{
		ID:             uuid.New().String(),
		Email:          req.Email,
		Name:           req.Name,
		Role:           req.Role,
		OrganizationID: org.ID,
		Organization:   org,
		PasswordHash:   hash,
		CreatedAt:      time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, role, organization_id, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Name, user.Role, user.OrganizationID, user.PasswordHash, db.FormatTime(user.CreatedAt),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: email %s is already registered", shared.ErrConflict, user.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.events.Publish(shared.EntityUser, shared.EventTypeCreated, user.ID, actorID(viewer), map[string]interface{}{
		"email":           user.Email,
		"role":            user.Role,
		"organization_id": user.OrganizationID,
	})
	return user, nil
}

// ListUsers returns users newest first. Owners may filter by organization; partner roles
// only ever see their own organization.
func (s *UserService) ListUsers(ctx context.Context, viewer *visibility.Viewer, organizationID string) ([]ontology.User, error) {
	if err := requireViewer(viewer); err != nil {
		return nil, err
	}
	if viewer.Role != ontology.RoleOwner {
		organizationID = viewer.OrganizationID
	}

	query := `SELECT ` + userColumns + userFrom
	var args []interface{}
	if organizationID != "" {
		query += ` WHERE u.organization_id = ?`
		args = append(args, organizationID)
	}
	query += ` ORDER BY u.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []ontology.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (s *UserService) GetUser(ctx context.Context, viewer *visibility.Viewer, id string) (*ontology.User, error) {
	if err := requireViewer(viewer); err != nil {
		return nil, err
	}
	user, err := s.getUser(ctx, `u.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if viewer.Role != ontology.RoleOwner && user.OrganizationID != viewer.OrganizationID {
		return nil, notFound("user", id)
	}
	return user, nil
}

// GetUserByEmail is used by login; it applies no access checks.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*ontology.User, error) {
	return s.getUser(ctx, `u.email = ?`, strings.ToLower(strings.TrimSpace(email)))
}

func (s *UserService) getUser(ctx context.Context, where string, arg string) (*ontology.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+userFrom+` WHERE `+where, arg)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("user", arg)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, viewer *visibility.Viewer, id string) error {
	user, err := s.GetUser(ctx, viewer, id)
	if err != nil {
		return err
	}
	if user.ID == viewer.UserID {
		return fmt.Errorf("%w: users cannot delete themselves", shared.ErrConflict)
	}
	if !visibility.CanManageUsers(user.OrganizationID, viewer) {
		return forbidden("delete this user")
	}
	if viewer.Role != ontology.RoleOwner && !user.Role.IsPartner() {
		return forbidden("delete an owner")
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if err := checkAffected(result, "user", id); err != nil {
		return err
	}

	s.events.Publish(shared.EntityUser, shared.EventTypeDeleted, id, actorID(viewer), map[string]interface{}{
		"email": user.Email,
	})
	return nil
}

func (s *UserService) touchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, db.FormatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func scanUser(row scanner) (*ontology.User, error) {
	var user ontology.User
	var org ontology.Organization
	var createdAt, orgCreatedAt, orgUpdatedAt string
	var lastLogin sql.NullString

	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.Role, &user.OrganizationID, &user.PasswordHash, &createdAt, &lastLogin,
		&org.ID, &org.Name, &org.Type, &orgCreatedAt, &orgUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	if user.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if user.LastLoginAt, err = db.ParseNullTime(lastLogin); err != nil {
		return nil, err
	}
	if org.CreatedAt, err = db.ParseTime(orgCreatedAt); err != nil {
		return nil, err
	}
	if org.UpdatedAt, err = db.ParseTime(orgUpdatedAt); err != nil {
		return nil, err
	}
	user.Organization = &org
	return &user, nil
}
