package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"skillmap/db"
	"skillmap/pkg/ontology"
	"skillmap/pkg/visibility"
)

type AuditService struct {
	db *sql.DB
}

func NewAuditService(db *sql.DB) *AuditService {
	return &AuditService{db: db}
}

const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 500
)

// Record stores an audit entry. ID and CreatedAt are filled in when empty.
func (s *AuditService) Record(ctx context.Context, entry *ontology.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]interface{}{}
	}
	metadata, err := marshalJSON(entry.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, action, entity, entity_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		entry.ID, db.NullString(entry.UserID), entry.Action, entry.Entity, entry.EntityID, metadata, db.FormatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns the newest entries first.
func (s *AuditService) ListAuditLogs(ctx context.Context, viewer *visibility.Viewer, limit int) ([]ontology.AuditLog, error) {
	if !visibility.CanViewAuditLogs(viewer) {
		return nil, forbidden("view audit logs")
	}
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, action, entity, entity_id, metadata, created_at
		 FROM audit_logs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	logs := []ontology.AuditLog{}
	for rows.Next() {
		var entry ontology.AuditLog
		var userID sql.NullString
		var metadata, createdAt string
		if err := rows.Scan(&entry.ID, &userID, &entry.Action, &entry.Entity, &entry.EntityID, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		entry.UserID = db.StringPtr(userID)
		if err := json.Unmarshal([]byte(metadata), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
		}
		if entry.CreatedAt, err = db.ParseTime(createdAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
