package ontology

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"skillmap/pkg/shared"
)

// Role is the access level of an authenticated user. Anonymous viewers carry no Role.
type Role string

const (
	RoleOwner        Role = "owner"
	RolePartnerAdmin Role = "partner_admin"
	RolePartnerUser  Role = "partner_user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RolePartnerAdmin, RolePartnerUser:
		return true
	}
	return false
}

// IsPartner reports whether the role is scoped to a single partner organization.
func (r Role) IsPartner() bool {
	return r == RolePartnerAdmin || r == RolePartnerUser
}

// OrganizationType returns the organization type a user with this role must belong to.
func (r Role) OrganizationType() OrganizationType {
	if r == RoleOwner {
		return OrgTypeOwner
	}
	return OrgTypePartner
}

type User struct {
	ID             string        `json:"id" db:"id"`
	Email          string        `json:"email" db:"email"`
	Name           string        `json:"name" db:"name"`
	Role           Role          `json:"role" db:"role"`
	OrganizationID string        `json:"organization_id" db:"organization_id"`
	Organization   *Organization `json:"organization,omitempty"`
	PasswordHash   string        `json:"-" db:"password_hash"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	LastLoginAt    *time.Time    `json:"last_login_at" db:"last_login_at"`
}

type CreateUserRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Name           string `json:"name" validate:"required"`
	Role           Role   `json:"role" validate:"required,oneof=owner partner_admin partner_user"`
	OrganizationID string `json:"organization_id" validate:"required"`
	Password       string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

const minPasswordLength = 6

func (r *CreateUserRequest) Validate() error {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Name = strings.TrimSpace(r.Name)
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrInvalidArgument)
	}
	if !r.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", shared.ErrInvalidArgument, r.Role)
	}
	if r.OrganizationID == "" {
		return fmt.Errorf("%w: organization_id is required", shared.ErrInvalidArgument)
	}
	if len(r.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", shared.ErrInvalidArgument, minPasswordLength)
	}
	return nil
}

// ValidateEmail checks that s is a bare address such as "name@example.com".
func ValidateEmail(s string) error {
	if s == "" {
		return fmt.Errorf("%w: email is required", shared.ErrInvalidArgument)
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return fmt.Errorf("%w: invalid email %q", shared.ErrInvalidArgument, s)
	}
	return nil
}
