package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"skillmap/db"
	"skillmap/pkg/ontology"
	"skillmap/pkg/shared"
	"skillmap/pkg/visibility"
)

type ContactRequestService struct {
	db     *sql.DB
	events *EventBus
}

func NewContactRequestService(db *sql.DB, events *EventBus) *ContactRequestService {
	return &ContactRequestService{db: db, events: events}
}

const contactRequestColumns = `id, requester_email, notes, filters, profile_refs, created_at, handled_by, status`

// CreateContactRequest records an inquiry from the catalog. No authentication is needed.
func (s *ContactRequestService) CreateContactRequest(ctx context.Context, req *ontology.CreateContactRequestRequest) (*ontology.ContactRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cr := &ontology.ContactRequest{
		ID:             uuid.New().String(),
		RequesterEmail: req.RequesterEmail,
		Notes:          emptyToNil(req.Notes),
		Filters:        *req.Filters,
		ProfileRefs:    req.ProfileRefs,
		CreatedAt:      time.Now().UTC(),
		Status:         ontology.ContactStatusOpen,
	}

	filters, err := marshalJSON(cr.Filters)
	if err != nil {
		return nil, err
	}
	refs, err := marshalJSON(cr.ProfileRefs)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contact_requests (`+contactRequestColumns+`) VALUES (?, ?, ?, ?, ?, ?, NULL, ?)`,
		cr.ID, cr.RequesterEmail, db.NullString(cr.Notes), filters, refs, db.FormatTime(cr.CreatedAt), cr.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create contact request: %w", err)
	}

	s.events.Publish(shared.EntityContactRequest, shared.EventTypeCreated, cr.ID, "", map[string]interface{}{
		"requester_email": cr.RequesterEmail,
		"profile_refs":    cr.ProfileRefs,
	})
	return cr, nil
}

// ListContactRequests returns requests newest first, optionally narrowed to one status.
func (s *ContactRequestService) ListContactRequests(ctx context.Context, viewer *visibility.Viewer, status ontology.ContactRequestStatus) ([]ontology.ContactRequest, error) {
	if !visibility.CanViewContactRequests(viewer) {
		return nil, forbidden("view contact requests")
	}

	query := `SELECT ` + contactRequestColumns + ` FROM contact_requests`
	var args []interface{}
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", shared.ErrInvalidArgument, status)
		}
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contact requests: %w", err)
	}
	defer rows.Close()

	requests := []ontology.ContactRequest{}
	for rows.Next() {
		cr, err := scanContactRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *cr)
	}
	return requests, rows.Err()
}

func (s *ContactRequestService) GetContactRequest(ctx context.Context, viewer *visibility.Viewer, id string) (*ontology.ContactRequest, error) {
	if !visibility.CanViewContactRequests(viewer) {
		return nil, forbidden("view contact requests")
	}
	return s.getContactRequest(ctx, id)
}

func (s *ContactRequestService) getContactRequest(ctx context.Context, id string) (*ontology.ContactRequest, error) {
	cr, err := scanContactRequest(s.db.QueryRowContext(ctx,
		`SELECT `+contactRequestColumns+` FROM contact_requests WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("contact request", id)
	}
	return cr, err
}

// UpdateStatus moves a request along open -> in_progress -> closed (or reopens a closed
// one) and records the acting user as its handler.
func (s *ContactRequestService) UpdateStatus(ctx context.Context, viewer *visibility.Viewer, id string, req *ontology.UpdateContactRequestStatusRequest) (*ontology.ContactRequest, error) {
	if !visibility.CanHandleContactRequests(viewer) {
		return nil, forbidden("handle contact requests")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cr, err := s.getContactRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cr.Status.CanTransitionTo(req.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, cr.Status, req.Status)
	}

	var handledBy *string
	if viewer.UserID != "" {
		handledBy = &viewer.UserID
	}

	// The status guard in WHERE rejects a concurrent change made since the read above.
	result, err := s.db.ExecContext(ctx,
		`UPDATE contact_requests SET status = ?, handled_by = ? WHERE id = ? AND status = ?`,
		req.Status, db.NullString(handledBy), id, cr.Status,
	)
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("%w: handler %s does not exist", shared.ErrInvalidArgument, viewer.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update contact request: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: contact request %s changed concurrently", shared.ErrConflict, id)
	}

	previous := cr.Status
	cr.Status = req.Status
	cr.HandledBy = handledBy

	s.events.Publish(shared.EntityContactRequest, shared.EventTypeStatus, cr.ID, actorID(viewer), map[string]interface{}{
		"from": previous,
		"to":   cr.Status,
	})
	return cr, nil
}

func scanContactRequest(row scanner) (*ontology.ContactRequest, error) {
	var cr ontology.ContactRequest
	var notes, handledBy sql.NullString
	var filters, refs, createdAt string

	err := row.Scan(&cr.ID, &cr.RequesterEmail, &notes, &filters, &refs, &createdAt, &handledBy, &cr.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan contact request: %w", err)
	}

	cr.Notes = db.StringPtr(notes)
	cr.HandledBy = db.StringPtr(handledBy)
	if err := json.Unmarshal([]byte(filters), &cr.Filters); err != nil {
		return nil, fmt.Errorf("failed to decode filters: %w", err)
	}
	if err := json.Unmarshal([]byte(refs), &cr.ProfileRefs); err != nil {
		return nil, fmt.Errorf("failed to decode profile_refs: %w", err)
	}
	if cr.ProfileRefs == nil {
		cr.ProfileRefs = []string{}
	}
	if cr.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &cr, nil
}
