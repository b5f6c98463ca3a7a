package api

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillmap/pkg/ontology"
	"skillmap/pkg/shared"
)

func TestParseSearchQuery(t *testing.T) {
	q, err := url.ParseQuery("modules=SAP-MM,SAP-FI&modules=SAP-SD&techs=Fiori&scope=Support&langs=%20EN-B2%20,&" +
		"seniority_min=3&seniority_max=10&source=partner&availability=true&sort=updated_desc&limit=20&offset=40")
	require.NoError(t, err)

	req, err := ParseSearchQuery(q)
	require.NoError(t, err)
	assert.Equal(t, ontology.SortUpdatedDesc, req.Sort)
	assert.Equal(t, 20, req.Limit)
	assert.Equal(t, 40, req.Offset)

	f := req.Filters
	require.NotNil(t, f)
	assert.Equal(t, []string{"SAP-MM", "SAP-FI", "SAP-SD"}, f.Modules)
	assert.Equal(t, []string{"Fiori"}, f.Techs)
	assert.Equal(t, []string{"Support"}, f.Scopes)
	assert.Equal(t, []string{"EN-B2"}, f.Langs)
	assert.Nil(t, f.Roles)
	assert.Equal(t, 3, *f.SeniorityMin)
	assert.Equal(t, 10, *f.SeniorityMax)
	assert.Equal(t, []ontology.OrganizationType{ontology.OrgTypePartner}, f.Source)
	assert.True(t, *f.Availability)
}

func TestParseSearchQuery_NoFilters(t *testing.T) {
	req, err := ParseSearchQuery(url.Values{"limit": {"5"}})
	require.NoError(t, err)
	assert.Nil(t, req.Filters)
	assert.Equal(t, 5, req.Limit)
}

func TestParseSearchQuery_Invalid(t *testing.T) {
	for _, raw := range []string{"seniority_min=a", "seniority_max=1.5", "limit=ten", "offset=-x", "availability=maybe"} {
		t.Run(raw, func(t *testing.T) {
			q, err := url.ParseQuery(raw)
			require.NoError(t, err)
			_, err = ParseSearchQuery(q)
			assert.ErrorIs(t, err, shared.ErrInvalidArgument)
		})
	}
}
