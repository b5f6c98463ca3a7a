package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"skillmap/db"
	"skillmap/pkg/auth"
	"skillmap/pkg/metrics"
	"skillmap/pkg/ontology"
	"skillmap/pkg/shared"
	"skillmap/pkg/visibility"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) PublishWithDedup(subject string, data []byte, msgID string) error {
	var event shared.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Subject)
	}
	return out
}

// fixture is a seeded database: one owner org, two partners, users for each role and a
// handful of tags.
type fixture struct {
	svc *Services
	pub *recordingPublisher
	ctx context.Context

	ownerOrg, partnerA, partnerB *ontology.Organization

	owner, adminA, userA, adminB *visibility.Viewer

	tags map[string]*ontology.Tag
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	cfg := db.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "test.db")
	dbService, err := db.New(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { dbService.Close() })

	pub := &recordingPublisher{}
	tokens := auth.NewTokenManager("test-secret", time.Hour, "skillmap")
	svc := New(dbService.GetDB(), tokens, pub, metrics.New("test"), zaptest.NewLogger(t))
	t.Cleanup(svc.Events.Wait)

	f := &fixture{svc: svc, pub: pub, ctx: ctx, tags: map[string]*ontology.Tag{}}

	f.ownerOrg = f.createOrg(t, "InoPeak Technologies", ontology.OrgTypeOwner)
	f.partnerA = f.createOrg(t, "TechPartner A", ontology.OrgTypePartner)
	f.partnerB = f.createOrg(t, "ConsultCorp B", ontology.OrgTypePartner)

	f.owner = f.createUser(t, "admin@inopeak.com", ontology.RoleOwner, f.ownerOrg.ID)
	f.adminA = f.createUser(t, "manager@techpartner.com", ontology.RolePartnerAdmin, f.partnerA.ID)
	f.userA = f.createUser(t, "dev@techpartner.com", ontology.RolePartnerUser, f.partnerA.ID)
	f.adminB = f.createUser(t, "lead@consultcorp.com", ontology.RolePartnerAdmin, f.partnerB.ID)

	for _, tag := range []struct {
		category ontology.TagCategory
		key      string
	}{
		{ontology.TagCategoryModule, "SAP-MM"},
		{ontology.TagCategoryModule, "SAP-FI"},
		{ontology.TagCategoryTech, "ABAP"},
		{ontology.TagCategoryTech, "Fiori"},
		{ontology.TagCategoryRole, "Lead"},
		{ontology.TagCategorySector, "retail"},
		{ontology.TagCategoryLang, "EN"},
	} {
		created, err := svc.Tags.CreateTag(ctx, f.owner, &ontology.CreateTagRequest{Category: tag.category, Key: tag.key})
		require.NoError(t, err)
		f.tags[tag.key] = created
	}
	return f
}

func (f *fixture) createOrg(t *testing.T, name string, typ ontology.OrganizationType) *ontology.Organization {
	t.Helper()
	org, err := f.svc.Organizations.CreateOrganization(f.ctx, SystemViewer, &ontology.CreateOrganizationRequest{Name: name, Type: typ})
	require.NoError(t, err)
	return org
}

func (f *fixture) createUser(t *testing.T, email string, role ontology.Role, orgID string) *visibility.Viewer {
	t.Helper()
	user, err := f.svc.Users.CreateUser(f.ctx, SystemViewer, &ontology.CreateUserRequest{
		Email:          email,
		Name:           email,
		Role:           role,
		OrganizationID: orgID,
		Password:       "password123",
	})
	require.NoError(t, err)
	return &visibility.Viewer{UserID: user.ID, Role: user.Role, OrganizationID: user.OrganizationID}
}

func (f *fixture) tagIDs(keys ...string) []string {
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, f.tags[k].ID)
	}
	return ids
}

func (f *fixture) createProfile(t *testing.T, orgID, first, last string, status ontology.ProfileStatus, years int, keys ...string) *ontology.Profile {
	t.Helper()
	p, err := f.svc.Profiles.CreateProfile(f.ctx, f.owner, &ontology.CreateProfileRequest{
		OrganizationID: orgID,
		FirstName:      first,
		LastName:       last,
		Email:          first + "@example.com",
		Title:          "SAP Consultant",
		SeniorityYears: years,
		WorkScope:      ontology.WorkScopeFullCycle,
		Status:         status,
		TagIDs:         f.tagIDs(keys...),
	})
	require.NoError(t, err)
	return p
}

func strPtr(s string) *string { return &s }

func intPtr(v int) *int { return &v }
