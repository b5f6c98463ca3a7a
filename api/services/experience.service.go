package services

import (
	"context"
	"database/sql"
	"encoding/json"
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

type ExperienceService struct {
	db       *sql.DB
	profiles *ProfileService
	events   *EventBus
}

func NewExperienceService(db *sql.DB, profiles *ProfileService, events *EventBus) *ExperienceService {
	return &ExperienceService{db: db, profiles: profiles, events: events}
}

const experienceColumns = `id, profile_id, project_name, client_name, client_sector, role, start_date, end_date,
	duration_months, scope, tech_modules, highlights, work_model, created_at`

// ListExperiences returns a profile's experiences, most recent first. Client names are
// replaced by sector labels for viewers who get the masked profile.
func (s *ExperienceService) ListExperiences(ctx context.Context, viewer *visibility.Viewer, profileID string) ([]ontology.Experience, error) {
	p, err := s.profiles.getProfile(ctx, profileID)
	if err != nil {
		return nil, err
	}
	mask := visibility.ShouldMask(p, viewer)
	if mask && p.Status != ontology.ProfileStatusPublished {
		return nil, notFound("profile", profileID)
	}

	experiences, err := listExperiences(ctx, s.db, profileID)
	if err != nil {
		return nil, err
	}
	return visibility.MaskExperiences(experiences, mask), nil
}

func listExperiences(ctx context.Context, conn *sql.DB, profileID string) ([]ontology.Experience, error) {
	rows, err := conn.QueryContext(ctx,
		`SELECT `+experienceColumns+` FROM experiences WHERE profile_id = ? ORDER BY start_date DESC, created_at DESC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query experiences: %w", err)
	}
	defer rows.Close()

	experiences := []ontology.Experience{}
	for rows.Next() {
		e, err := scanExperience(rows)
		if err != nil {
			return nil, err
		}
		experiences = append(experiences, *e)
	}
	return experiences, rows.Err()
}

func (s *ExperienceService) getExperience(ctx context.Context, id string) (*ontology.Experience, error) {
	e, err := scanExperience(s.db.QueryRowContext(ctx, `SELECT `+experienceColumns+` FROM experiences WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("experience", id)
	}
	return e, err
}

func (s *ExperienceService) CreateExperience(ctx context.Context, viewer *visibility.Viewer, req *ontology.CreateExperienceRequest) (*ontology.Experience, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.profiles.editableProfile(ctx, viewer, req.ProfileID); err != nil {
		return nil, err
	}

	e := &ontology.Experience{
		ID:             uuid.New().String(),
		ProfileID:      req.ProfileID,
		ProjectName:    req.ProjectName,
		ClientName:     emptyToNil(req.ClientName),
		ClientSector:   normalizeSector(req.ClientSector),
		Role:           req.Role,
		StartDate:      req.StartDate,
		EndDate:        emptyToNil(req.EndDate),
		DurationMonths: req.DurationMonths,
		Scope:          strings.TrimSpace(req.Scope),
		TechModules:    req.TechModules,
		Highlights:     emptyToNil(req.Highlights),
		WorkModel:      req.WorkModel,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.insertExperience(ctx, e); err != nil {
		return nil, err
	}
	if err := s.touchProfile(ctx, e.ProfileID); err != nil {
		return nil, err
	}

	s.events.Publish(shared.EntityExperience, shared.EventTypeCreated, e.ID, actorID(viewer), map[string]interface{}{
		"profile_id":   e.ProfileID,
		"project_name": e.ProjectName,
	})
	return e, nil
}

func (s *ExperienceService) insertExperience(ctx context.Context, e *ontology.Experience) error {
	modules, err := marshalJSON(e.TechModules)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO experiences (`+experienceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProfileID, e.ProjectName, db.NullString(e.ClientName), db.NullString(e.ClientSector), e.Role,
		e.StartDate, db.NullString(e.EndDate), db.NullInt(e.DurationMonths), e.Scope, modules,
		db.NullString(e.Highlights), e.WorkModel, db.FormatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create experience: %w", err)
	}
	return nil
}

func (s *ExperienceService) UpdateExperience(ctx context.Context, viewer *visibility.Viewer, id string, req *ontology.UpdateExperienceRequest) (*ontology.Experience, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	e, err := s.getExperience(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.profiles.editableProfile(ctx, viewer, e.ProfileID); err != nil {
		return nil, err
	}

	if req.ProjectName != nil {
		e.ProjectName = strings.TrimSpace(*req.ProjectName)
	}
	if req.ClientName != nil {
		e.ClientName = emptyToNil(req.ClientName)
	}
	if req.ClientSector != nil {
		e.ClientSector = normalizeSector(req.ClientSector)
	}
	if req.Role != nil {
		e.Role = *req.Role
	}
	if req.StartDate != nil {
		e.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		e.EndDate = emptyToNil(req.EndDate)
	}
	if req.Scope != nil {
		e.Scope = strings.TrimSpace(*req.Scope)
	}
	if req.TechModules != nil {
		e.TechModules = req.TechModules
	}
	if req.Highlights != nil {
		e.Highlights = emptyToNil(req.Highlights)
	}
	if req.WorkModel != nil {
		e.WorkModel = *req.WorkModel
	}

	months, err := ontology.ValidateDateRange(e.StartDate, e.EndDate)
	if err != nil {
		return nil, err
	}
	switch {
	case req.DurationMonths != nil:
		e.DurationMonths = req.DurationMonths
	case req.StartDate != nil || req.EndDate != nil:
		e.DurationMonths = months
	}

	modules, err := marshalJSON(e.TechModules)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE experiences SET project_name = ?, client_name = ?, client_sector = ?, role = ?, start_date = ?,
		        end_date = ?, duration_months = ?, scope = ?, tech_modules = ?, highlights = ?, work_model = ?
		 WHERE id = ?`,
		e.ProjectName, db.NullString(e.ClientName), db.NullString(e.ClientSector), e.Role, e.StartDate,
		db.NullString(e.EndDate), db.NullInt(e.DurationMonths), e.Scope, modules, db.NullString(e.Highlights), e.WorkModel,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update experience: %w", err)
	}
	if err := s.touchProfile(ctx, e.ProfileID); err != nil {
		return nil, err
	}

	s.events.Publish(shared.EntityExperience, shared.EventTypeUpdated, e.ID, actorID(viewer), map[string]interface{}{
		"profile_id": e.ProfileID,
	})
	return e, nil
}

func (s *ExperienceService) DeleteExperience(ctx context.Context, viewer *visibility.Viewer, id string) error {
	e, err := s.getExperience(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.profiles.editableProfile(ctx, viewer, e.ProfileID); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM experiences WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete experience: %w", err)
	}
	if err := checkAffected(result, "experience", id); err != nil {
		return err
	}
	if err := s.touchProfile(ctx, e.ProfileID); err != nil {
		return err
	}

	s.events.Publish(shared.EntityExperience, shared.EventTypeDeleted, id, actorID(viewer), map[string]interface{}{
		"profile_id": e.ProfileID,
	})
	return nil
}

// Experience edits count as profile activity for recency ranking.
func (s *ExperienceService) touchProfile(ctx context.Context, profileID string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE profiles SET updated_at = ? WHERE id = ?`, db.FormatTime(time.Now()), profileID); err != nil {
		return fmt.Errorf("failed to touch profile: %w", err)
	}
	return nil
}

func normalizeSector(s *string) *string {
	v := emptyToNil(s)
	if v == nil {
		return nil
	}
	lower := strings.ToLower(*v)
	return &lower
}

func scanExperience(row scanner) (*ontology.Experience, error) {
	var e ontology.Experience
	var clientName, clientSector, endDate, highlights sql.NullString
	var duration sql.NullInt64
	var modules, createdAt string

	err := row.Scan(
		&e.ID, &e.ProfileID, &e.ProjectName, &clientName, &clientSector, &e.Role, &e.StartDate, &endDate,
		&duration, &e.Scope, &modules, &highlights, &e.WorkModel, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan experience: %w", err)
	}

	e.ClientName = db.StringPtr(clientName)
	e.ClientSector = db.StringPtr(clientSector)
	e.EndDate = db.StringPtr(endDate)
	e.Highlights = db.StringPtr(highlights)
	e.DurationMonths = db.IntPtr(duration)
	if err := json.Unmarshal([]byte(modules), &e.TechModules); err != nil {
		return nil, fmt.Errorf("failed to decode tech_modules: %w", err)
	}
	if e.TechModules == nil {
		e.TechModules = []string{}
	}
	if e.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &e, nil
}
