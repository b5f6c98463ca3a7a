package services

import (
	"database/sql"

	"go.uber.org/zap"

	"skillmap/pkg/auth"
	"skillmap/pkg/metrics"
)

// Services wires every domain service over one database handle and event bus.
type Services struct {
	Events          *EventBus
	Organizations   *OrganizationService
	Users           *UserService
	Auth            *AuthService
	Tags            *TagService
	Profiles        *ProfileService
	Experiences     *ExperienceService
	ContactRequests *ContactRequestService
	Catalog         *CatalogService
	Dashboard       *DashboardService
	Audit           *AuditService
}

// New builds the service set. pub and m may be nil.
func New(db *sql.DB, tokens *auth.TokenManager, pub EventPublisher, m *metrics.Metrics, log *zap.Logger) *Services {
	if log == nil {
		log = zap.NewNop()
	}
	events := NewEventBus(pub, log.Named("events"), m)
	orgs := NewOrganizationService(db, events)
	users := NewUserService(db, orgs, events)
	profiles := NewProfileService(db, orgs, events, m)

	return &Services{
		Events:          events,
		Organizations:   orgs,
		Users:           users,
		Auth:            NewAuthService(users, tokens, events, m, log.Named("auth")),
		Tags:            NewTagService(db, events),
		Profiles:        profiles,
		Experiences:     NewExperienceService(db, profiles, events),
		ContactRequests: NewContactRequestService(db, events),
		Catalog:         NewCatalogService(profiles, m, log.Named("catalog")),
		Dashboard:       NewDashboardService(db),
		Audit:           NewAuditService(db),
	}
}
