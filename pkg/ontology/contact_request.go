package ontology

import (
	"fmt"
	"strings"
	"time"

	"skillmap/pkg/shared"
)

type ContactRequestStatus string

const (
	ContactStatusOpen       ContactRequestStatus = "open"
	ContactStatusInProgress ContactRequestStatus = "in_progress"
	ContactStatusClosed     ContactRequestStatus = "closed"
)

func (s ContactRequestStatus) Valid() bool {
	return s == ContactStatusOpen || s == ContactStatusInProgress || s == ContactStatusClosed
}

// CanTransitionTo reports whether a request in status s may move to next.
// Allowed: open -> in_progress -> closed, and closed -> open.
func (s ContactRequestStatus) CanTransitionTo(next ContactRequestStatus) bool {
	switch s {
	case ContactStatusOpen:
		return next == ContactStatusInProgress
	case ContactStatusInProgress:
		return next == ContactStatusClosed
	case ContactStatusClosed:
		return next == ContactStatusOpen
	}
	return false
}

type ContactRequest struct {
	ID             string               `json:"id" db:"id"`
	RequesterEmail string               `json:"requester_email" db:"requester_email"`
	Notes          *string              `json:"notes" db:"notes"`
	Filters        SearchFilters        `json:"filters" db:"filters"`
	ProfileRefs    []string             `json:"profile_refs" db:"profile_refs"`
	CreatedAt      time.Time            `json:"created_at" db:"created_at"`
	HandledBy      *string              `json:"handled_by" db:"handled_by"`
	Status         ContactRequestStatus `json:"status" db:"status"`
}

type CreateContactRequestRequest struct {
	RequesterEmail string         `json:"requester_email" validate:"required,email"`
	Notes          *string        `json:"notes,omitempty"`
	Filters        *SearchFilters `json:"filters" validate:"required"`
	ProfileRefs    []string       `json:"profile_refs,omitempty"`
}

type UpdateContactRequestStatusRequest struct {
	Status ContactRequestStatus `json:"status" validate:"required"`
}

func (r *CreateContactRequestRequest) Validate() error {
	r.RequesterEmail = strings.ToLower(strings.TrimSpace(r.RequesterEmail))
	if err := ValidateEmail(r.RequesterEmail); err != nil {
		return err
	}
	if r.Filters == nil {
		return fmt.Errorf("%w: filters are required", shared.ErrInvalidArgument)
	}
	if err := r.Filters.Validate(); err != nil {
		return err
	}
	if r.ProfileRefs == nil {
		r.ProfileRefs = []string{}
	}
	return nil
}

func (r *UpdateContactRequestStatusRequest) Validate() error {
	if !r.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidArgument, r.Status)
	}
	return nil
}
