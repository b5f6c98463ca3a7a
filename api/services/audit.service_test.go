package services

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillmap/pkg/ontology"
	"skillmap/pkg/shared"
)

func TestAuditService(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, action := range []string{"created", "updated", "deleted"} {
		require.NoError(t, f.svc.Audit.Record(f.ctx, &ontology.AuditLog{
			ID:        "evt-" + action,
			UserID:    strPtr(f.owner.UserID),
			Action:    action,
			Entity:    shared.EntityProfile,
			EntityID:  "p-1",
			Metadata:  map[string]interface{}{"step": i},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	// replays of the same event are ignored
	require.NoError(t, f.svc.Audit.Record(f.ctx, &ontology.AuditLog{
		ID: "evt-created", Action: "created", Entity: shared.EntityProfile, EntityID: "p-1",
	}))

	logs, err := f.svc.Audit.ListAuditLogs(f.ctx, f.owner, 0)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "deleted", logs[0].Action)
	assert.Equal(t, "created", logs[2].Action)
	assert.Equal(t, f.owner.UserID, *logs[2].UserID)
	assert.EqualValues(t, 0, logs[2].Metadata["step"])
	assert.True(t, logs[0].CreatedAt.Equal(base.Add(2*time.Minute)))

	limited, err := f.svc.Audit.ListAuditLogs(f.ctx, f.owner, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	_, err = f.svc.Audit.ListAuditLogs(f.ctx, f.adminA, 10)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestEventBus_PublishesSubjects(t *testing.T) {
	f := newFixture(t)
	p := f.createProfile(t, f.partnerA.ID, "Ahmet", "Yılmaz", ontology.ProfileStatusDraft, 3)
	status := ontology.ProfileStatusPublished
	_, err := f.svc.Profiles.UpdateProfile(f.ctx, f.adminA, p.ID, &ontology.UpdateProfileRequest{Status: &status})
	require.NoError(t, err)
	f.svc.Events.Wait()

	subjects := f.pub.subjects()
	sort.Strings(subjects)
	assert.Contains(t, subjects, "skillmap.events.organization.created")
	assert.Contains(t, subjects, "skillmap.events.user.created")
	assert.Contains(t, subjects, "skillmap.events.tag.created")
	assert.Contains(t, subjects, "skillmap.events.profile.created")
	assert.Contains(t, subjects, "skillmap.events.profile.status_changed")
}

func TestEventBus_NilSafe(t *testing.T) {
	var bus *EventBus
	assert.NotPanics(t, func() {
		bus.Publish(shared.EntityTag, shared.EventTypeCreated, "t-1", "", nil)
		bus.Wait()
	})
	assert.NotPanics(t, func() {
		NewEventBus(nil, nil, nil).Publish(shared.EntityTag, shared.EventTypeCreated, "t-1", "", nil)
	})
}
