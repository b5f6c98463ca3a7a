// Package seed loads demo and bootstrap data from a YAML file into the catalog.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"skillmap/api/services"
	"skillmap/pkg/ontology"
	"skillmap/pkg/shared"
)

// File is the YAML layout of a seed file. Users, profiles and contact requests refer to
// organizations by name and to tags by key.
type File struct {
	Organizations   []Organization   `yaml:"organizations"`
	Users           []User           `yaml:"users"`
	Tags            []Tag            `yaml:"tags"`
	Profiles        []Profile        `yaml:"profiles"`
	ContactRequests []ContactRequest `yaml:"contact_requests"`
}

type Organization struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type User struct {
	Email        string `yaml:"email"`
	Name         string `yaml:"name"`
	Role         string `yaml:"role"`
	Organization string `yaml:"organization"`
	Password     string `yaml:"password"`
}

type Tag struct {
	Category string `yaml:"category"`
	Key      string `yaml:"key"`
	Display  string `yaml:"display"`
	Active   *bool  `yaml:"active,omitempty"`
}

type Profile struct {
	Organization    string       `yaml:"organization"`
	FirstName       string       `yaml:"first_name"`
	LastName        string       `yaml:"last_name"`
	Email           string       `yaml:"email"`
	Phone           string       `yaml:"phone,omitempty"`
	City            string       `yaml:"city,omitempty"`
	Country         string       `yaml:"country,omitempty"`
	Title           string       `yaml:"title"`
	SeniorityYears  int          `yaml:"seniority_years"`
	WorkScope       string       `yaml:"work_scope"`
	Summary         string       `yaml:"summary,omitempty"`
	VisibilityLevel string       `yaml:"visibility_level,omitempty"`
	Status          string       `yaml:"status,omitempty"`
	Tags            []string     `yaml:"tags"`
	Experiences     []Experience `yaml:"experiences,omitempty"`
}

type Experience struct {
	ProjectName  string   `yaml:"project_name"`
	ClientName   string   `yaml:"client_name,omitempty"`
	ClientSector string   `yaml:"client_sector,omitempty"`
	Role         string   `yaml:"role"`
	StartDate    string   `yaml:"start_date"`
	EndDate      string   `yaml:"end_date,omitempty"`
	Scope        string   `yaml:"scope,omitempty"`
	TechModules  []string `yaml:"tech_modules,omitempty"`
	Highlights   string   `yaml:"highlights,omitempty"`
	WorkModel    string   `yaml:"work_model"`
}

type ContactRequest struct {
	RequesterEmail string                 `yaml:"requester_email"`
	Notes          string                 `yaml:"notes,omitempty"`
	Filters        ontology.SearchFilters `yaml:"filters"`
	Status         string                 `yaml:"status,omitempty"`
}

// Result lists what an Apply run created and what already existed.
type Result struct {
	Created []string
	Skipped []string
}

func (r *Result) created(kind, name string) { r.Created = append(r.Created, kind+" "+name) }
func (r *Result) skipped(kind, name string) { r.Skipped = append(r.Skipped, kind+" "+name) }

// Load reads and parses a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}
	return &f, nil
}

func (f *File) validate() error {
	orgs := make(map[string]bool)
	for _, o := range f.Organizations {
		if o.Name == "" {
			return errors.New("organization name is required")
		}
		if orgs[o.Name] {
			return fmt.Errorf("duplicate organization: %s", o.Name)
		}
		orgs[o.Name] = true
	}

	emails := make(map[string]bool)
	for _, u := range f.Users {
		email := strings.ToLower(u.Email)
		if email == "" {
			return errors.New("email is required for every user")
		}
		if emails[email] {
			return fmt.Errorf("duplicate user email: %s", u.Email)
		}
		emails[email] = true
		if !ontology.Role(u.Role).Valid() {
			return fmt.Errorf("invalid role '%s' for user %s", u.Role, u.Email)
		}
	}

	tags := make(map[string]bool)
	for _, t := range f.Tags {
		id := t.Category + "/" + t.Key
		if tags[id] {
			return fmt.Errorf("duplicate tag: %s", id)
		}
		tags[id] = true
	}
	return nil
}

type seeder struct {
	svc    *services.Services
	log    *zap.Logger
	result *Result

	orgs map[string]*ontology.Organization
	tags map[string][]ontology.Tag
}

// Apply creates everything in f that does not exist yet. Organizations are matched by
// name, users by email, tags by category and key, profiles by organization and email.
// It runs with owner privileges.
func Apply(ctx context.Context, svc *services.Services, f *File, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &seeder{
		svc:    svc,
		log:    log,
		result: &Result{Created: []string{}, Skipped: []string{}},
		orgs:   make(map[string]*ontology.Organization),
		tags:   make(map[string][]ontology.Tag),
	}

	steps := []func(context.Context, *File) error{
		s.organizations,
		s.users,
		s.tagSet,
		s.profiles,
		s.contactRequests,
	}
	for _, step := range steps {
		if err := step(ctx, f); err != nil {
			return s.result, err
		}
	}
	return s.result, nil
}

func (s *seeder) organizations(ctx context.Context, f *File) error {
	existing, err := s.svc.Organizations.ListOrganizations(ctx, services.SystemViewer)
	if err != nil {
		return err
	}
	for i := range existing {
		s.orgs[existing[i].Name] = &existing[i]
	}

	for _, o := range f.Organizations {
		if _, ok := s.orgs[o.Name]; ok {
			s.result.skipped("organization", o.Name)
			continue
		}
		org, err := s.svc.Organizations.CreateOrganization(ctx, services.SystemViewer, &ontology.CreateOrganizationRequest{
			Name: o.Name,
			Type: ontology.OrganizationType(o.Type),
		})
		if err != nil {
			return fmt.Errorf("organization %s: %w", o.Name, err)
		}
		s.orgs[org.Name] = org
		s.result.created("organization", org.Name)
		s.log.Info("seeded organization", zap.String("name", org.Name), zap.String("type", string(org.Type)))
	}
	return nil
}

func (s *seeder) org(name string) (*ontology.Organization, error) {
	org, ok := s.orgs[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown organization %q", shared.ErrInvalidArgument, name)
	}
	return org, nil
}

func (s *seeder) users(ctx context.Context, f *File) error {
	for _, u := range f.Users {
		if _, err := s.svc.Users.GetUserByEmail(ctx, u.Email); err == nil {
			s.result.skipped("user", u.Email)
			continue
		} else if !errors.Is(err, shared.ErrNotFound) {
			return err
		}

		org, err := s.org(u.Organization)
		if err != nil {
			return fmt.Errorf("user %s: %w", u.Email, err)
		}
		user, err := s.svc.Users.CreateUser(ctx, services.SystemViewer, &ontology.CreateUserRequest{
			Email:          u.Email,
			Name:           u.Name,
			Role:           ontology.Role(u.Role),
			OrganizationID: org.ID,
			Password:       u.Password,
		})
		if err != nil {
			return fmt.Errorf("user %s: %w", u.Email, err)
		}
		s.result.created("user", user.Email)
		s.log.Info("seeded user", zap.String("email", user.Email), zap.String("role", string(user.Role)))
	}
	return nil
}

func (s *seeder) tagSet(ctx context.Context, f *File) error {
	for _, t := range f.Tags {
		_, err := s.svc.Tags.FindTag(ctx, ontology.TagCategory(t.Category), t.Key)
		switch {
		case err == nil:
			s.result.skipped("tag", t.Category+"/"+t.Key)
		case errors.Is(err, shared.ErrNotFound):
			_, err = s.svc.Tags.CreateTag(ctx, services.SystemViewer, &ontology.CreateTagRequest{
				Category: ontology.TagCategory(t.Category),
				Key:      t.Key,
				Display:  t.Display,
				Active:   t.Active,
			})
			if err != nil {
				return fmt.Errorf("tag %s/%s: %w", t.Category, t.Key, err)
			}
			s.result.created("tag", t.Category+"/"+t.Key)
		default:
			return err
		}
	}

	all, err := s.svc.Tags.ListTags(ctx, services.TagListOptions{IncludeInactive: true})
	if err != nil {
		return err
	}
	for _, tag := range all {
		s.tags[tag.Key] = append(s.tags[tag.Key], tag)
	}
	return nil
}

// tagID resolves a key, or category/key when the bare key is ambiguous.
func (s *seeder) tagID(ref string) (string, error) {
	if category, key, ok := strings.Cut(ref, "/"); ok {
		for _, tag := range s.tags[key] {
			if string(tag.Category) == category {
				return tag.ID, nil
			}
		}
	}
	matches := s.tags[ref]
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: unknown tag %q", shared.ErrInvalidArgument, ref)
	case 1:
		return matches[0].ID, nil
	}
	return "", fmt.Errorf("%w: tag %q exists in several categories, use category/key", shared.ErrInvalidArgument, ref)
}

func (s *seeder) profiles(ctx context.Context, f *File) error {
	existing := make(map[string]bool)
	for _, p := range f.Profiles {
		org, err := s.org(p.Organization)
		if err != nil {
			return fmt.Errorf("profile %s: %w", p.Email, err)
		}
		if _, loaded := existing[org.ID]; !loaded {
			listed, err := s.svc.Profiles.ListProfiles(ctx, services.SystemViewer, services.ProfileListOptions{OrganizationID: org.ID})
			if err != nil {
				return err
			}
			existing[org.ID] = true
			for _, lp := range listed {
				existing[org.ID+"/"+lp.Email] = true
			}
		}
		if existing[org.ID+"/"+strings.ToLower(p.Email)] {
			s.result.skipped("profile", p.Email)
			continue
		}

		tagIDs := make([]string, 0, len(p.Tags))
		for _, ref := range p.Tags {
			id, err := s.tagID(ref)
			if err != nil {
				return fmt.Errorf("profile %s: %w", p.Email, err)
			}
			tagIDs = append(tagIDs, id)
		}

		profile, err := s.svc.Profiles.CreateProfile(ctx, services.SystemViewer, &ontology.CreateProfileRequest{
			OrganizationID:  org.ID,
			FirstName:       p.FirstName,
			LastName:        p.LastName,
			Email:           p.Email,
			Phone:           optional(p.Phone),
			City:            optional(p.City),
			Country:         optional(p.Country),
			Title:           p.Title,
			SeniorityYears:  p.SeniorityYears,
			WorkScope:       ontology.WorkScope(p.WorkScope),
			Summary:         optional(p.Summary),
			VisibilityLevel: ontology.VisibilityLevel(p.VisibilityLevel),
			Status:          ontology.ProfileStatus(p.Status),
			TagIDs:          tagIDs,
		})
		if err != nil {
			return fmt.Errorf("profile %s: %w", p.Email, err)
		}
		s.result.created("profile", profile.Email)

		for _, e := range p.Experiences {
			_, err := s.svc.Experiences.CreateExperience(ctx, services.SystemViewer, &ontology.CreateExperienceRequest{
				ProfileID:    profile.ID,
				ProjectName:  e.ProjectName,
				ClientName:   optional(e.ClientName),
				ClientSector: optional(e.ClientSector),
				Role:         ontology.ExperienceRole(e.Role),
				StartDate:    e.StartDate,
				EndDate:      optional(e.EndDate),
				Scope:        e.Scope,
				TechModules:  e.TechModules,
				Highlights:   optional(e.Highlights),
				WorkModel:    ontology.WorkModel(e.WorkModel),
			})
			if err != nil {
				return fmt.Errorf("profile %s experience %q: %w", p.Email, e.ProjectName, err)
			}
		}
		s.log.Info("seeded profile",
			zap.String("email", profile.Email),
			zap.String("organization", org.Name),
			zap.Int("experiences", len(p.Experiences)),
		)
	}
	return nil
}

// contactRequests are only seeded into an empty inbox.
func (s *seeder) contactRequests(ctx context.Context, f *File) error {
	if len(f.ContactRequests) == 0 {
		return nil
	}
	existing, err := s.svc.ContactRequests.ListContactRequests(ctx, services.SystemViewer, "")
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		for _, cr := range f.ContactRequests {
			s.result.skipped("contact request", cr.RequesterEmail)
		}
		return nil
	}

	for _, cr := range f.ContactRequests {
		filters := cr.Filters
		created, err := s.svc.ContactRequests.CreateContactRequest(ctx, &ontology.CreateContactRequestRequest{
			RequesterEmail: cr.RequesterEmail,
			Notes:          optional(cr.Notes),
			Filters:        &filters,
		})
		if err != nil {
			return fmt.Errorf("contact request %s: %w", cr.RequesterEmail, err)
		}
		if cr.Status == string(ontology.ContactStatusInProgress) || cr.Status == string(ontology.ContactStatusClosed) {
			if err := s.advance(ctx, created.ID, ontology.ContactRequestStatus(cr.Status)); err != nil {
				return fmt.Errorf("contact request %s: %w", cr.RequesterEmail, err)
			}
		}
		s.result.created("contact request", created.RequesterEmail)
	}
	return nil
}

// advance walks a new request forward to target through the allowed transitions.
func (s *seeder) advance(ctx context.Context, id string, target ontology.ContactRequestStatus) error {
	path := []ontology.ContactRequestStatus{ontology.ContactStatusInProgress}
	if target == ontology.ContactStatusClosed {
		path = append(path, ontology.ContactStatusClosed)
	}
	for _, status := range path {
		if _, err := s.svc.ContactRequests.UpdateStatus(ctx, services.SystemViewer, id,
			&ontology.UpdateContactRequestStatusRequest{Status: status}); err != nil {
			return err
		}
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
