package ontology

import "time"

type AuditLog struct {
	ID        string                 `json:"id" db:"id"`
	UserID    *string                `json:"user_id" db:"user_id"`
	Action    string                 `json:"action" db:"action"`
	Entity    string                 `json:"entity" db:"entity"`
	EntityID  string                 `json:"entity_id" db:"entity_id"`
	Metadata  map[string]interface{} `json:"metadata" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}

// DashboardStats summarizes catalog contents for the dashboard landing page.
type DashboardStats struct {
	ProfilesTotal       int            `json:"profiles_total"`
	ProfilesByStatus    map[string]int `json:"profiles_by_status"`
	Organizations       int            `json:"organizations"`
	ActiveTags          int            `json:"active_tags"`
	OpenContactRequests int            `json:"open_contact_requests"`
}
