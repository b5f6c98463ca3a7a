package services

import (
	"context"
	"database/sql"
	"fmt"

	"skillmap/pkg/ontology"
	"skillmap/pkg/visibility"
)

type DashboardService struct {
	db *sql.DB
}

func NewDashboardService(db *sql.DB) *DashboardService {
	return &DashboardService{db: db}
}

// Stats counts catalog contents. Partner roles only see their own organization's profiles;
// contact requests are reported to owners only.
func (s *DashboardService) Stats(ctx context.Context, viewer *visibility.Viewer) (*ontology.DashboardStats, error) {
	if err := requireViewer(viewer); err != nil {
		return nil, err
	}

	stats := &ontology.DashboardStats{
		ProfilesByStatus: map[string]int{
			string(ontology.ProfileStatusDraft):     0,
			string(ontology.ProfileStatusPublished): 0,
			string(ontology.ProfileStatusArchived):  0,
		},
	}

	query := `SELECT status, COUNT(*) FROM profiles`
	var args []interface{}
	if viewer.Role != ontology.RoleOwner {
		query += ` WHERE organization_id = ?`
		args = append(args, viewer.OrganizationID)
	}
	query += ` GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count profiles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan profile count: %w", err)
		}
		stats.ProfilesByStatus[status] = n
		stats.ProfilesTotal += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if viewer.Role == ontology.RoleOwner {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&stats.Organizations); err != nil {
			return nil, fmt.Errorf("failed to count organizations: %w", err)
		}
	} else {
		stats.Organizations = 1
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags WHERE active = 1`).Scan(&stats.ActiveTags); err != nil {
		return nil, fmt.Errorf("failed to count tags: %w", err)
	}
	if visibility.CanViewContactRequests(viewer) {
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM contact_requests WHERE status = ?`, ontology.ContactStatusOpen,
		).Scan(&stats.OpenContactRequests); err != nil {
			return nil, fmt.Errorf("failed to count contact requests: %w", err)
		}
	}
	return stats, nil
}
