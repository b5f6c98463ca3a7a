package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillmap/pkg/ontology"
	"skillmap/pkg/shared"
)

func TestDashboardService_Stats(t *testing.T) {
	f := newFixture(t)
	f.createProfile(t, f.partnerA.ID, "A", "One", ontology.ProfileStatusPublished, 1)
	f.createProfile(t, f.partnerA.ID, "B", "Two", ontology.ProfileStatusDraft, 1)
	f.createProfile(t, f.partnerB.ID, "C", "Three", ontology.ProfileStatusArchived, 1)
	_, err := f.svc.ContactRequests.CreateContactRequest(f.ctx, &ontology.CreateContactRequestRequest{
		RequesterEmail: "buyer@client.com",
		Filters:        &ontology.SearchFilters{},
	})
	require.NoError(t, err)

	stats, err := f.svc.Dashboard.Stats(f.ctx, f.owner)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ProfilesTotal)
	assert.Equal(t, map[string]int{"draft": 1, "published": 1, "archived": 1}, stats.ProfilesByStatus)
	assert.Equal(t, 3, stats.Organizations)
	assert.Equal(t, 7, stats.ActiveTags)
	assert.Equal(t, 1, stats.OpenContactRequests)

	stats, err = f.svc.Dashboard.Stats(f.ctx, f.userA)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ProfilesTotal)
	assert.Equal(t, 0, stats.ProfilesByStatus["archived"])
	assert.Equal(t, 1, stats.Organizations)
	assert.Equal(t, 0, stats.OpenContactRequests)

	_, err = f.svc.Dashboard.Stats(f.ctx, nil)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}
