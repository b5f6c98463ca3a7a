package ontology

import (
	"fmt"
	"strings"
	"time"

	"skillmap/pkg/shared"
)

type ExperienceRole string

const (
	ExperienceRoleLead       ExperienceRole = "Lead"
	ExperienceRoleSenior     ExperienceRole = "Senior"
	ExperienceRoleMid        ExperienceRole = "Mid"
	ExperienceRoleJunior     ExperienceRole = "Junior"
	ExperienceRoleConsultant ExperienceRole = "Consultant"
	ExperienceRoleDeveloper  ExperienceRole = "Developer"
)

func (r ExperienceRole) Valid() bool {
	switch r {
	case ExperienceRoleLead, ExperienceRoleSenior, ExperienceRoleMid,
		ExperienceRoleJunior, ExperienceRoleConsultant, ExperienceRoleDeveloper:
		return true
	}
	return false
}

type WorkModel string

const (
	WorkModelOnsite WorkModel = "Onsite"
	WorkModelRemote WorkModel = "Remote"
	WorkModelHybrid WorkModel = "Hybrid"
)

func (m WorkModel) Valid() bool {
	return m == WorkModelOnsite || m == WorkModelRemote || m == WorkModelHybrid
}

// DateLayout is the calendar-date format used for experience start and end dates.
const DateLayout = "2006-01-02"

type Experience struct {
	ID             string         `json:"id" db:"id"`
	ProfileID      string         `json:"profile_id" db:"profile_id"`
	ProjectName    string         `json:"project_name" db:"project_name"`
	ClientName     *string        `json:"client_name" db:"client_name"`
	ClientSector   *string        `json:"client_sector,omitempty" db:"client_sector"`
	Role           ExperienceRole `json:"role" db:"role"`
	StartDate      string         `json:"start_date" db:"start_date"`
	EndDate        *string        `json:"end_date" db:"end_date"`
	DurationMonths *int           `json:"duration_months" db:"duration_months"`
	Scope          string         `json:"scope" db:"scope"`
	TechModules    []string       `json:"tech_modules" db:"tech_modules"`
	Highlights     *string        `json:"highlights" db:"highlights"`
	WorkModel      WorkModel      `json:"work_model" db:"work_model"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

type CreateExperienceRequest struct {
	ProfileID      string         `json:"profile_id" validate:"required"`
	ProjectName    string         `json:"project_name" validate:"required"`
	ClientName     *string        `json:"client_name,omitempty"`
	ClientSector   *string        `json:"client_sector,omitempty"`
	Role           ExperienceRole `json:"role" validate:"required"`
	StartDate      string         `json:"start_date" validate:"required"`
	EndDate        *string        `json:"end_date,omitempty"`
	DurationMonths *int           `json:"duration_months,omitempty"`
	Scope          string         `json:"scope"`
	TechModules    []string       `json:"tech_modules"`
	Highlights     *string        `json:"highlights,omitempty"`
	WorkModel      WorkModel      `json:"work_model" validate:"required"`
}

type UpdateExperienceRequest struct {
	ProjectName    *string         `json:"project_name,omitempty"`
	ClientName     *string         `json:"client_name,omitempty"`
	ClientSector   *string         `json:"client_sector,omitempty"`
	Role           *ExperienceRole `json:"role,omitempty"`
	StartDate      *string         `json:"start_date,omitempty"`
	EndDate        *string         `json:"end_date,omitempty"`
	DurationMonths *int            `json:"duration_months,omitempty"`
	Scope          *string         `json:"scope,omitempty"`
	TechModules    []string        `json:"tech_modules,omitempty"`
	Highlights     *string         `json:"highlights,omitempty"`
	WorkModel      *WorkModel      `json:"work_model,omitempty"`
}

func (r *CreateExperienceRequest) Validate() error {
	r.ProjectName = strings.TrimSpace(r.ProjectName)
	if r.ProfileID == "" {
		return fmt.Errorf("%w: profile_id is required", shared.ErrInvalidArgument)
	}
	if r.ProjectName == "" {
		return fmt.Errorf("%w: project_name is required", shared.ErrInvalidArgument)
	}
	if !r.Role.Valid() {
		return fmt.Errorf("%w: unknown experience role %q", shared.ErrInvalidArgument, r.Role)
	}
	if !r.WorkModel.Valid() {
		return fmt.Errorf("%w: unknown work_model %q", shared.ErrInvalidArgument, r.WorkModel)
	}
	if r.DurationMonths != nil && *r.DurationMonths < 0 {
		return fmt.Errorf("%w: duration_months cannot be negative", shared.ErrInvalidArgument)
	}
	if r.TechModules == nil {
		r.TechModules = []string{}
	}
	months, err := ValidateDateRange(r.StartDate, r.EndDate)
	if err != nil {
		return err
	}
	if r.DurationMonths == nil && months != nil {
		r.DurationMonths = months
	}
	return nil
}

func (r *UpdateExperienceRequest) Validate() error {
	if r.ProjectName != nil && strings.TrimSpace(*r.ProjectName) == "" {
		return fmt.Errorf("%w: project_name cannot be empty", shared.ErrInvalidArgument)
	}
	if r.Role != nil && !r.Role.Valid() {
		return fmt.Errorf("%w: unknown experience role %q", shared.ErrInvalidArgument, *r.Role)
	}
	if r.WorkModel != nil && !r.WorkModel.Valid() {
		return fmt.Errorf("%w: unknown work_model %q", shared.ErrInvalidArgument, *r.WorkModel)
	}
	if r.DurationMonths != nil && *r.DurationMonths < 0 {
		return fmt.Errorf("%w: duration_months cannot be negative", shared.ErrInvalidArgument)
	}
	if r.StartDate != nil {
		if _, err := time.Parse(DateLayout, *r.StartDate); err != nil {
			return fmt.Errorf("%w: start_date must be YYYY-MM-DD", shared.ErrInvalidArgument)
		}
	}
	if r.EndDate != nil {
		if _, err := time.Parse(DateLayout, *r.EndDate); err != nil {
			return fmt.Errorf("%w: end_date must be YYYY-MM-DD", shared.ErrInvalidArgument)
		}
	}
	return nil
}

// ValidateDateRange parses start and optional end dates and returns the whole number of
// months between them when end is present.
func ValidateDateRange(start string, end *string) (*int, error) {
	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("%w: start_date must be YYYY-MM-DD", shared.ErrInvalidArgument)
	}
	if end == nil || *end == "" {
		return nil, nil
	}
	e, err := time.Parse(DateLayout, *end)
	if err != nil {
		return nil, fmt.Errorf("%w: end_date must be YYYY-MM-DD", shared.ErrInvalidArgument)
	}
	if e.Before(s) {
		return nil, fmt.Errorf("%w: end_date is before start_date", shared.ErrInvalidArgument)
	}
	months := MonthsBetween(s, e)
	return &months, nil
}

func MonthsBetween(start, end time.Time) int {
	months := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month())
	if end.Day() < start.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
