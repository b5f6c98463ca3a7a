package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"skillmap/pkg/metrics"
	"skillmap/pkg/shared"
)

// EventPublisher is the slice of the embedded NATS server the services need.
type EventPublisher interface {
	PublishWithDedup(subject string, data []byte, msgID string) error
}

// EventBus publishes domain events after successful writes. Publishing happens in the
// background and failures are only logged. A nil *EventBus, or one without a publisher,
// drops events.
type EventBus struct {
	pub     EventPublisher
	log     *zap.Logger
	metrics *metrics.Metrics
	source  string
	wg      sync.WaitGroup
}

func NewEventBus(pub EventPublisher, log *zap.Logger, m *metrics.Metrics) *EventBus {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventBus{pub: pub, log: log, metrics: m, source: shared.ServiceName}
}

// Publish emits action on entity asynchronously.
func (b *EventBus) Publish(entity, action, entityID, actorID string, data map[string]interface{}) {
	if b == nil || b.pub == nil {
		return
	}
	event := shared.Event{
		ID:        uuid.New().String(),
		Type:      action,
		Subject:   shared.EventSubject(entity, action),
		Entity:    entity,
		EntityID:  entityID,
		ActorID:   actorID,
		Data:      data,
		Timestamp: time.Now().UTC(),
		Source:    b.source,
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.publish(event)
	}()
}

func (b *EventBus) publish(event shared.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.log.Error("failed to marshal event", zap.String("subject", event.Subject), zap.Error(err))
		return
	}

	msgID := fmt.Sprintf("%s-%s-%s", event.EntityID, event.Type, event.ID)
	if err := b.pub.PublishWithDedup(event.Subject, payload, msgID); err != nil {
		b.log.Warn("failed to publish event", zap.String("subject", event.Subject), zap.Error(err))
		return
	}
	b.metrics.RecordEventPublished(event.Entity, event.Type)
	b.log.Debug("published event", zap.String("subject", event.Subject), zap.String("entity_id", event.EntityID))
}

// Wait blocks until in-flight publishes finish.
func (b *EventBus) Wait() {
	if b == nil {
		return
	}
	b.wg.Wait()
}
