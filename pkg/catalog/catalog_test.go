package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillmap/pkg/ontology"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func newProfile(id string, years int, scope ontology.WorkScope, updated time.Time, keys ...string) *ontology.Profile {
	tags := make([]ontology.Tag, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, ontology.Tag{ID: "tag-" + k, Key: k, Display: k, Active: true})
	}
	return &ontology.Profile{
		ID:             id,
		FirstName:      "Test",
		LastName:       "Consultant",
		Title:          "SAP Consultant",
		SeniorityYears: years,
		WorkScope:      scope,
		Status:         ontology.ProfileStatusPublished,
		UpdatedAt:      updated,
		CreatedAt:      updated,
		Tags:           tags,
	}
}

func ids(profiles []*ontology.Profile) []string {
	out := make([]string, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, p.ID)
	}
	return out
}

func TestFilter(t *testing.T) {
	old := now.AddDate(-1, 0, 0)
	profiles := []*ontology.Profile{
		newProfile("mm-abap", 5, ontology.WorkScopeFullCycle, old, "SAP-MM", "ABAP", "Lead", "EN"),
		newProfile("mm", 3, ontology.WorkScopeSupport, old, "SAP-MM", "Developer", "retail"),
		newProfile("fi", 10, ontology.WorkScopeHybrid, old, "SAP-FI", "Fiori", "EN", "TR"),
	}

	tests := []struct {
		name    string
		filters *ontology.SearchFilters
		want    []string
	}{
		{name: "nil filters keep everything", filters: nil, want: []string{"mm-abap", "mm", "fi"}},
		{name: "empty filters keep everything", filters: &ontology.SearchFilters{}, want: []string{"mm-abap", "mm", "fi"}},
		{name: "modules require every key", filters: &ontology.SearchFilters{Modules: []string{"SAP-MM", "SAP-FI"}}, want: []string{}},
		{name: "single module", filters: &ontology.SearchFilters{Modules: []string{"SAP-MM"}}, want: []string{"mm-abap", "mm"}},
		{name: "techs require every key", filters: &ontology.SearchFilters{Techs: []string{"ABAP"}}, want: []string{"mm-abap"}},
		{name: "techs reject a partial match", filters: &ontology.SearchFilters{Techs: []string{"ABAP", "Fiori"}}, want: []string{}},
		{name: "roles match any key", filters: &ontology.SearchFilters{Roles: []string{"Lead", "Developer"}}, want: []string{"mm-abap", "mm"}},
		{name: "sectors match any key", filters: &ontology.SearchFilters{Sectors: []string{"retail", "banking"}}, want: []string{"mm"}},
		{name: "langs require every key", filters: &ontology.SearchFilters{Langs: []string{"EN", "TR"}}, want: []string{"fi"}},
		{name: "scope matches work scope", filters: &ontology.SearchFilters{Scopes: []string{"Support"}}, want: []string{"mm"}},
		{name: "scope any of several", filters: &ontology.SearchFilters{Scopes: []string{"Support", "Hybrid"}}, want: []string{"mm", "fi"}},
		{
			name:    "seniority never excludes",
			filters: &ontology.SearchFilters{SeniorityMin: intPtr(50), SeniorityMax: intPtr(60)},
			want:    []string{"mm-abap", "mm", "fi"},
		},
		{
			name:    "predicates combine",
			filters: &ontology.SearchFilters{Modules: []string{"SAP-MM"}, Roles: []string{"Lead"}, Langs: []string{"EN"}},
			want:    []string{"mm-abap"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(profiles, tt.filters)))
		})
	}
}

func TestFilter_ScopeTagAlsoMatches(t *testing.T) {
	p := newProfile("p", 1, ontology.WorkScopeFullCycle, now, "Support")
	assert.True(t, Matches(p, &ontology.SearchFilters{Scopes: []string{"Support"}}))
}

func TestScore(t *testing.T) {
	recent := now.AddDate(0, 0, -10)
	old := now.AddDate(0, 0, -200)

	t.Run("nil filters yield no score", func(t *testing.T) {
		p := newProfile("p", 5, ontology.WorkScopeFullCycle, recent, "SAP-MM")
		assert.Nil(t, Score(p, nil, now))
	})

	t.Run("weights per category", func(t *testing.T) {
		p := newProfile("p", 5, ontology.WorkScopeFullCycle, old,
			"SAP-MM", "ABAP", "Lead", "FullCycle", "retail", "EN")
		filters := &ontology.SearchFilters{
			Modules: []string{"SAP-MM"},
			Techs:   []string{"ABAP"},
			Roles:   []string{"Lead"},
			Scopes:  []string{"FullCycle"},
			Sectors: []string{"retail"},
			Langs:   []string{"EN"},
		}
		score := Score(p, filters, now)
		require.NotNil(t, score)
		assert.Equal(t, 3+2+2+2+1+1, *score)
	})

	t.Run("scope matched only by work scope adds nothing", func(t *testing.T) {
		p := newProfile("p", 5, ontology.WorkScopeSupport, old)
		score := Score(p, &ontology.SearchFilters{Scopes: []string{"Support"}}, now)
		require.NotNil(t, score)
		assert.Equal(t, 0, *score)
	})

	t.Run("each extra module adds three", func(t *testing.T) {
		filters := &ontology.SearchFilters{Modules: []string{"SAP-MM", "SAP-SD"}}
		one := Score(newProfile("a", 0, ontology.WorkScopeSupport, old, "SAP-MM"), filters, now)
		two := Score(newProfile("b", 0, ontology.WorkScopeSupport, old, "SAP-MM", "SAP-SD"), filters, now)
		assert.Equal(t, *one+WeightModule, *two)
	})

	t.Run("recency bonus", func(t *testing.T) {
		filters := &ontology.SearchFilters{}
		assert.Equal(t, 1, *Score(newProfile("a", 0, ontology.WorkScopeSupport, recent), filters, now))
		assert.Equal(t, 0, *Score(newProfile("b", 0, ontology.WorkScopeSupport, old), filters, now))
		assert.Equal(t, 0, *Score(newProfile("c", 0, ontology.WorkScopeSupport, now.Add(-RecencyWindow)), filters, now))
	})
}

func TestScore_Seniority(t *testing.T) {
	old := now.AddDate(-1, 0, 0)
	tests := []struct {
		name  string
		years int
		min   *int
		max   *int
		want  int
	}{
		{name: "no bounds", years: 8, want: 0},
		{name: "zero bounds count as unset", years: 8, min: intPtr(0), max: intPtr(0), want: 0},
		{name: "inside min only", years: 8, min: intPtr(5), want: 1},
		{name: "above default max", years: 25, min: intPtr(5), want: 0},
		{name: "below min", years: 3, min: intPtr(5), want: 0},
		{name: "inside max only", years: 2, max: intPtr(3), want: 1},
		{name: "range inclusive low", years: 5, min: intPtr(5), max: intPtr(10), want: 1},
		{name: "range inclusive high", years: 10, min: intPtr(5), max: intPtr(10), want: 1},
		{name: "above max", years: 11, min: intPtr(5), max: intPtr(10), want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProfile("p", tt.years, ontology.WorkScopeSupport, old)
			score := Score(p, &ontology.SearchFilters{SeniorityMin: tt.min, SeniorityMax: tt.max}, now)
			require.NotNil(t, score)
			assert.Equal(t, tt.want, *score)
		})
	}
}

func TestRank(t *testing.T) {
	t.Run("score then recency", func(t *testing.T) {
		p1 := newProfile("1", 8, ontology.WorkScopeFullCycle, now.AddDate(0, 0, -10), "SAP-MM")
		p2 := newProfile("2", 2, ontology.WorkScopeFullCycle, now.AddDate(0, 0, -200), "SAP-MM")
		filters := &ontology.SearchFilters{Modules: []string{"SAP-MM"}, SeniorityMin: intPtr(5)}

		ranked := Rank([]*ontology.Profile{p2, p1}, filters, now)
		require.Len(t, ranked, 2)
		assert.Equal(t, []string{"1", "2"}, ids(ranked))
		assert.Equal(t, 5, *ranked[0].Score)
		assert.Equal(t, 3, *ranked[1].Score)
	})

	t.Run("equal scores order by updated_at desc", func(t *testing.T) {
		a := newProfile("a", 0, ontology.WorkScopeSupport, now.AddDate(0, 0, -300), "SAP-MM")
		b := newProfile("b", 0, ontology.WorkScopeSupport, now.AddDate(0, 0, -100), "SAP-MM")
		c := newProfile("c", 0, ontology.WorkScopeSupport, now.AddDate(0, 0, -200), "SAP-MM")
		ranked := Rank([]*ontology.Profile{a, b, c}, &ontology.SearchFilters{Modules: []string{"SAP-MM"}}, now)
		assert.Equal(t, []string{"b", "c", "a"}, ids(ranked))
	})

	t.Run("full ties keep input order", func(t *testing.T) {
		ts := now.AddDate(0, 0, -100)
		a := newProfile("a", 0, ontology.WorkScopeSupport, ts)
		b := newProfile("b", 0, ontology.WorkScopeSupport, ts)
		ranked := Rank([]*ontology.Profile{b, a}, &ontology.SearchFilters{}, now)
		assert.Equal(t, []string{"b", "a"}, ids(ranked))
	})

	t.Run("nil filters order by recency without scores", func(t *testing.T) {
		a := newProfile("a", 0, ontology.WorkScopeSupport, now.AddDate(0, 0, -3))
		b := newProfile("b", 0, ontology.WorkScopeSupport, now.AddDate(0, 0, -1))
		ranked := Rank([]*ontology.Profile{a, b}, nil, now)
		assert.Equal(t, []string{"b", "a"}, ids(ranked))
		for _, p := range ranked {
			assert.Nil(t, p.Score)
		}
	})

	t.Run("input is not modified", func(t *testing.T) {
		a := newProfile("a", 0, ontology.WorkScopeSupport, now.AddDate(0, 0, -300), "SAP-MM")
		b := newProfile("b", 0, ontology.WorkScopeSupport, now.AddDate(0, 0, -1), "SAP-MM", "ABAP")
		input := []*ontology.Profile{a, b}

		ranked := Rank(input, &ontology.SearchFilters{Modules: []string{"SAP-MM"}}, now)
		assert.Equal(t, []string{"b", "a"}, ids(ranked))
		assert.Equal(t, []string{"a", "b"}, ids(input))
		assert.Nil(t, a.Score)
		assert.Nil(t, b.Score)
	})

	t.Run("deterministic", func(t *testing.T) {
		var input []*ontology.Profile
		for i, keys := range [][]string{{"SAP-MM"}, {"SAP-MM", "ABAP"}, {"ABAP"}, {"SAP-MM", "Lead"}} {
			input = append(input, newProfile(string(rune('a'+i)), i*3, ontology.WorkScopeHybrid, now.AddDate(0, 0, -i*40), keys...))
		}
		filters := &ontology.SearchFilters{Modules: []string{"SAP-MM"}, Techs: []string{"ABAP"}, Roles: []string{"Lead"}}
		first := Rank(input, nil, now)
		second := Rank(input, nil, now)
		assert.Equal(t, ids(first), ids(second))

		first = Rank(input, filters, now)
		second = Rank(input, filters, now)
		assert.Equal(t, first, second)
	})
}

func TestSortByRecency(t *testing.T) {
	three := 3
	a := newProfile("a", 0, ontology.WorkScopeSupport, now.AddDate(0, 0, -5))
	a.Score = &three
	b := newProfile("b", 0, ontology.WorkScopeSupport, now.AddDate(0, 0, -1))
	profiles := []*ontology.Profile{a, b}
	SortByRecency(profiles)
	assert.Equal(t, []string{"b", "a"}, ids(profiles))
}
