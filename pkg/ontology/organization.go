package ontology

import (
	"fmt"
	"strings"
	"time"

	"skillmap/pkg/shared"
)

type OrganizationType string

const (
	OrgTypeOwner   OrganizationType = "owner"
	OrgTypePartner OrganizationType = "partner"
)

func (t OrganizationType) Valid() bool {
	return t == OrgTypeOwner || t == OrgTypePartner
}

type Organization struct {
	ID        string           `json:"id" db:"id"`
	Name      string           `json:"name" db:"name"`
	Type      OrganizationType `json:"type" db:"type"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}

type CreateOrganizationRequest struct {
	Name string           `json:"name" validate:"required,min=1,max=255"`
	Type OrganizationType `json:"type,omitempty" validate:"omitempty,oneof=owner partner"`
}

type UpdateOrganizationRequest struct {
	Name string `json:"name" validate:"required,min=1,max=255"`
}

// Validate fills in the partner default and checks the request.
func (r *CreateOrganizationRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrInvalidArgument)
	}
	if len(r.Name) > 255 {
		return fmt.Errorf("%w: name is too long", shared.ErrInvalidArgument)
	}
	if r.Type == "" {
		r.Type = OrgTypePartner
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown organization type %q", shared.ErrInvalidArgument, r.Type)
	}
	return nil
}
