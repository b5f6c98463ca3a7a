package ontology

import (
	"fmt"

	"skillmap/pkg/shared"
)

// SearchFilters narrows and ranks catalog results. Absent or empty fields are not applied.
type SearchFilters struct {
	Modules      []string           `json:"modules,omitempty" yaml:"modules,omitempty"`
	Techs        []string           `json:"techs,omitempty" yaml:"techs,omitempty"`
	Roles        []string           `json:"roles,omitempty" yaml:"roles,omitempty"`
	Scopes       []string           `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	Sectors      []string           `json:"sectors,omitempty" yaml:"sectors,omitempty"`
	Langs        []string           `json:"langs,omitempty" yaml:"langs,omitempty"`
	SeniorityMin *int               `json:"seniority_min,omitempty" yaml:"seniority_min,omitempty"`
	SeniorityMax *int               `json:"seniority_max,omitempty" yaml:"seniority_max,omitempty"`
	Source       []OrganizationType `json:"source,omitempty" yaml:"source,omitempty"`
	Availability *bool              `json:"availability,omitempty" yaml:"availability,omitempty"`
}

func (f *SearchFilters) Validate() error {
	if f == nil {
		return nil
	}
	if f.SeniorityMin != nil && *f.SeniorityMin < 0 {
		return fmt.Errorf("%w: seniority_min cannot be negative", shared.ErrInvalidArgument)
	}
	if f.SeniorityMax != nil && *f.SeniorityMax < 0 {
		return fmt.Errorf("%w: seniority_max cannot be negative", shared.ErrInvalidArgument)
	}
	for _, s := range f.Source {
		if !s.Valid() {
			return fmt.Errorf("%w: unknown source %q", shared.ErrInvalidArgument, s)
		}
	}
	return nil
}

const (
	SortRelevance   = "relevance"
	SortUpdatedDesc = "updated_desc"
)

type SearchRequest struct {
	Filters *SearchFilters `json:"filters,omitempty"`
	Sort    string         `json:"sort,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Offset  int            `json:"offset,omitempty"`
}

const MaxSearchLimit = 100

func (r *SearchRequest) Validate() error {
	if err := r.Filters.Validate(); err != nil {
		return err
	}
	switch r.Sort {
	case "":
		r.Sort = SortRelevance
	case SortRelevance, SortUpdatedDesc:
	default:
		return fmt.Errorf("%w: unknown sort %q", shared.ErrInvalidArgument, r.Sort)
	}
	if r.Limit < 0 || r.Offset < 0 {
		return fmt.Errorf("%w: limit and offset cannot be negative", shared.ErrInvalidArgument)
	}
	if r.Limit > MaxSearchLimit {
		r.Limit = MaxSearchLimit
	}
	return nil
}

type SearchResponse struct {
	Items []ProfileView `json:"items"`
	Total int           `json:"total"`
}
