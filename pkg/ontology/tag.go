package ontology

import (
	"fmt"
	"strings"
	"time"

	"skillmap/pkg/shared"
)

type TagCategory string

const (
	TagCategoryModule TagCategory = "module"
	TagCategoryTech   TagCategory = "tech"
	TagCategoryRole   TagCategory = "role"
	TagCategoryScope  TagCategory = "scope"
	TagCategorySector TagCategory = "sector"
	TagCategoryLang   TagCategory = "lang"
	TagCategoryLevel  TagCategory = "level"
)

func (c TagCategory) Valid() bool {
	switch c {
	case TagCategoryModule, TagCategoryTech, TagCategoryRole, TagCategoryScope,
		TagCategorySector, TagCategoryLang, TagCategoryLevel:
		return true
	}
	return false
}

type Tag struct {
	ID        string      `json:"id" db:"id"`
	Category  TagCategory `json:"category" db:"category"`
	Key       string      `json:"key" db:"key"`
	Display   string      `json:"display" db:"display"`
	Active    bool        `json:"active" db:"active"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

type CreateTagRequest struct {
	Category TagCategory `json:"category" validate:"required"`
	Key      string      `json:"key" validate:"required"`
	Display  string      `json:"display" validate:"required"`
	Active   *bool       `json:"active,omitempty"`
}

type UpdateTagRequest struct {
	Display *string `json:"display,omitempty"`
	Active  *bool   `json:"active,omitempty"`
}

func (r *CreateTagRequest) Validate() error {
	r.Key = strings.TrimSpace(r.Key)
	r.Display = strings.TrimSpace(r.Display)
	if !r.Category.Valid() {
		return fmt.Errorf("%w: unknown tag category %q", shared.ErrInvalidArgument, r.Category)
	}
	if r.Key == "" {
		return fmt.Errorf("%w: key is required", shared.ErrInvalidArgument)
	}
	if strings.ContainsAny(r.Key, " ,") {
		return fmt.Errorf("%w: key %q must not contain spaces or commas", shared.ErrInvalidArgument, r.Key)
	}
	if r.Display == "" {
		r.Display = r.Key
	}
	return nil
}

func (r *UpdateTagRequest) Validate() error {
	if r.Display == nil && r.Active == nil {
		return fmt.Errorf("%w: no updates provided", shared.ErrInvalidArgument)
	}
	if r.Display != nil && strings.TrimSpace(*r.Display) == "" {
		return fmt.Errorf("%w: display cannot be empty", shared.ErrInvalidArgument)
	}
	return nil
}
