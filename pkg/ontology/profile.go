package ontology

import (
	"fmt"
	"strings"
	"time"

	"skillmap/pkg/shared"
)

type WorkScope string

const (
	WorkScopeFullCycle WorkScope = "FullCycle"
	WorkScopeSupport   WorkScope = "Support"
	WorkScopeHybrid    WorkScope = "Hybrid"
)

func (s WorkScope) Valid() bool {
	return s == WorkScopeFullCycle || s == WorkScopeSupport || s == WorkScopeHybrid
}

type VisibilityLevel string

const (
	VisibilityPublicMasked   VisibilityLevel = "public_masked"
	VisibilityPartnersMasked VisibilityLevel = "partners_masked"
	VisibilityInternalFull   VisibilityLevel = "internal_full"
)

func (v VisibilityLevel) Valid() bool {
	return v == VisibilityPublicMasked || v == VisibilityPartnersMasked || v == VisibilityInternalFull
}

type ProfileStatus string

const (
	ProfileStatusDraft     ProfileStatus = "draft"
	ProfileStatusPublished ProfileStatus = "published"
	ProfileStatusArchived  ProfileStatus = "archived"
)

func (s ProfileStatus) Valid() bool {
	return s == ProfileStatusDraft || s == ProfileStatusPublished || s == ProfileStatusArchived
}

// ProfileView is either a full *Profile or a *MaskedProfile, depending on who is looking.
type ProfileView interface {
	ProfileID() string
	Masked() bool
}

type Profile struct {
	ID              string          `json:"id" db:"id"`
	OrganizationID  string          `json:"organization_id" db:"organization_id"`
	Organization    *Organization   `json:"organization,omitempty"`
	FirstName       string          `json:"first_name" db:"first_name"`
	LastName        string          `json:"last_name" db:"last_name"`
	Email           string          `json:"email" db:"email"`
	Phone           *string         `json:"phone" db:"phone"`
	City            *string         `json:"city" db:"city"`
	Country         *string         `json:"country" db:"country"`
	Title           string          `json:"title" db:"title"`
	SeniorityYears  int             `json:"seniority_years" db:"seniority_years"`
	WorkScope       WorkScope       `json:"work_scope" db:"work_scope"`
	Summary         *string         `json:"summary" db:"summary"`
	VisibilityLevel VisibilityLevel `json:"visibility_level" db:"visibility_level"`
	Status          ProfileStatus   `json:"status" db:"status"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	Experiences     []Experience    `json:"experiences,omitempty"`
	Tags            []Tag           `json:"tags"`
	Score           *int            `json:"score,omitempty"`
}

func (p *Profile) ProfileID() string { return p.ID }
func (p *Profile) Masked() bool      { return false }

// TagKeys flattens the profile's tags to their keys, in tag order.
func (p *Profile) TagKeys() []string {
	keys := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		keys = append(keys, t.Key)
	}
	return keys
}

// MaskedProfile is the PII-free projection of a Profile. It is never stored.
type MaskedProfile struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"display_name"`
	Title          string    `json:"title"`
	SeniorityYears int       `json:"seniority_years"`
	WorkScope      WorkScope `json:"work_scope"`
	Summary        *string   `json:"summary"`
	Tags           []string  `json:"tags"`
	Score          *int      `json:"score,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (m *MaskedProfile) ProfileID() string { return m.ID }
func (m *MaskedProfile) Masked() bool      { return true }

type CreateProfileRequest struct {
	OrganizationID  string          `json:"organization_id" validate:"required"`
	FirstName       string          `json:"first_name" validate:"required"`
	LastName        string          `json:"last_name" validate:"required"`
	Email           string          `json:"email" validate:"required,email"`
	Phone           *string         `json:"phone,omitempty"`
	City            *string         `json:"city,omitempty"`
	Country         *string         `json:"country,omitempty"`
	Title           string          `json:"title" validate:"required"`
	SeniorityYears  int             `json:"seniority_years" validate:"min=0"`
	WorkScope       WorkScope       `json:"work_scope" validate:"required"`
	Summary         *string         `json:"summary,omitempty"`
	VisibilityLevel VisibilityLevel `json:"visibility_level,omitempty"`
	Status          ProfileStatus   `json:"status,omitempty"`
	TagIDs          []string        `json:"tag_ids,omitempty"`
}

// UpdateProfileRequest carries a partial update; nil fields are left unchanged.
type UpdateProfileRequest struct {
	FirstName       *string          `json:"first_name,omitempty"`
	LastName        *string          `json:"last_name,omitempty"`
	Email           *string          `json:"email,omitempty"`
	Phone           *string          `json:"phone,omitempty"`
	City            *string          `json:"city,omitempty"`
	Country         *string          `json:"country,omitempty"`
	Title           *string          `json:"title,omitempty"`
	SeniorityYears  *int             `json:"seniority_years,omitempty"`
	WorkScope       *WorkScope       `json:"work_scope,omitempty"`
	Summary         *string          `json:"summary,omitempty"`
	VisibilityLevel *VisibilityLevel `json:"visibility_level,omitempty"`
	Status          *ProfileStatus   `json:"status,omitempty"`
}

type SetProfileTagsRequest struct {
	TagIDs []string `json:"tag_ids"`
}

func (r *CreateProfileRequest) Validate() error {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Title = strings.TrimSpace(r.Title)

	if r.OrganizationID == "" {
		return fmt.Errorf("%w: organization_id is required", shared.ErrInvalidArgument)
	}
	if r.FirstName == "" || r.LastName == "" {
		return fmt.Errorf("%w: first_name and last_name are required", shared.ErrInvalidArgument)
	}
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if r.Title == "" {
		return fmt.Errorf("%w: title is required", shared.ErrInvalidArgument)
	}
	if r.SeniorityYears < 0 {
		return fmt.Errorf("%w: seniority_years cannot be negative", shared.ErrInvalidArgument)
	}
	if !r.WorkScope.Valid() {
		return fmt.Errorf("%w: unknown work_scope %q", shared.ErrInvalidArgument, r.WorkScope)
	}
	if r.VisibilityLevel == "" {
		r.VisibilityLevel = VisibilityPublicMasked
	}
	if !r.VisibilityLevel.Valid() {
		return fmt.Errorf("%w: unknown visibility_level %q", shared.ErrInvalidArgument, r.VisibilityLevel)
	}
	if r.Status == "" {
		r.Status = ProfileStatusDraft
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidArgument, r.Status)
	}
	return nil
}

func (r *UpdateProfileRequest) Validate() error {
	if r.FirstName != nil && strings.TrimSpace(*r.FirstName) == "" {
		return fmt.Errorf("%w: first_name cannot be empty", shared.ErrInvalidArgument)
	}
	if r.LastName != nil && strings.TrimSpace(*r.LastName) == "" {
		return fmt.Errorf("%w: last_name cannot be empty", shared.ErrInvalidArgument)
	}
	if r.Email != nil {
		if err := ValidateEmail(*r.Email); err != nil {
			return err
		}
	}
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", shared.ErrInvalidArgument)
	}
	if r.SeniorityYears != nil && *r.SeniorityYears < 0 {
		return fmt.Errorf("%w: seniority_years cannot be negative", shared.ErrInvalidArgument)
	}
	if r.WorkScope != nil && !r.WorkScope.Valid() {
		return fmt.Errorf("%w: unknown work_scope %q", shared.ErrInvalidArgument, *r.WorkScope)
	}
	if r.VisibilityLevel != nil && !r.VisibilityLevel.Valid() {
		return fmt.Errorf("%w: unknown visibility_level %q", shared.ErrInvalidArgument, *r.VisibilityLevel)
	}
	if r.Status != nil && !r.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidArgument, *r.Status)
	}
	return nil
}
