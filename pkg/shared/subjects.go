package shared

import "fmt"

// NATS Subject patterns
const (
	SubjectEventsAll = "skillmap.events.>"
	SubjectEvent     = "skillmap.events.%s.%s" // entity, action
)

// Stream names
const (
	StreamEvents = "SKILLMAP_EVENTS"
)

// Consumer names
const (
	ConsumerAuditProcessor = "audit-processor"
)

// EventSubject returns the subject for an action on an entity kind, e.g. skillmap.events.profile.created.
func EventSubject(entity, action string) string {
	return fmt.Sprintf(SubjectEvent, entity, action)
}
