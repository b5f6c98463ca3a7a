package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"skillmap/pkg/metrics"
	"skillmap/pkg/ontology"
	"skillmap/pkg/shared"
)

// AuditRecorder stores audit entries; *services.AuditService satisfies it.
type AuditRecorder interface {
	Record(ctx context.Context, entry *ontology.AuditLog) error
}

// AuditWorker turns every domain event on the events stream into an audit log row.
type AuditWorker struct {
	*BaseWorker
	audit AuditRecorder
}

func NewAuditWorker(js nats.JetStreamContext, audit AuditRecorder, poolSize int, log *zap.Logger, m *metrics.Metrics) *AuditWorker {
	return &AuditWorker{
		BaseWorker: NewBaseWorker(
			"AuditWorker",
			js,
			shared.StreamEvents,
			shared.ConsumerAuditProcessor,
			shared.SubjectEventsAll,
			poolSize,
			log,
			m,
		),
		audit: audit,
	}
}

func (w *AuditWorker) Start(ctx context.Context) error {
	return w.processMessages(ctx, func(ctx context.Context, msg *nats.Msg) error {
		return w.Process(ctx, msg.Data)
	})
}

// Process records a single encoded event. Redelivered events map to the same audit ID and
// are stored once.
func (w *AuditWorker) Process(ctx context.Context, data []byte) error {
	entry, err := auditEntry(data)
	if err != nil {
		return err
	}
	if err := w.audit.Record(ctx, entry); err != nil {
		return err
	}
	w.log.Debug("recorded audit entry",
		zap.String("entity", entry.Entity),
		zap.String("action", entry.Action),
		zap.String("entity_id", entry.EntityID))
	return nil
}

func auditEntry(data []byte) (*ontology.AuditLog, error) {
	var event shared.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPoisonMessage, err)
	}
	if event.ID == "" || event.Entity == "" || event.Type == "" {
		return nil, fmt.Errorf("%w: event is missing id, entity or type", ErrPoisonMessage)
	}

	entry := &ontology.AuditLog{
		ID:        event.ID,
		Action:    event.Type,
		Entity:    event.Entity,
		EntityID:  event.EntityID,
		Metadata:  event.Data,
		CreatedAt: event.Timestamp,
	}
	if event.ActorID != "" {
		actor := event.ActorID
		entry.UserID = &actor
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]interface{}{}
	}
	if event.Source != "" {
		entry.Metadata["source"] = event.Source
	}
	return entry, nil
}
