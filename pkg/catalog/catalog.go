// Package catalog filters and ranks consultant profiles against a set of search filters.
//
// Every function here is pure: inputs are never modified and the same inputs always
// produce the same output, so they are safe to call from concurrent request handlers.
package catalog

import (
	"sort"
	"time"

	"skillmap/pkg/ontology"
)

// Score weights per matched filter key.
const (
	WeightModule = 3
	WeightTech   = 2
	WeightRole   = 2
	WeightScope  = 2
	WeightSector = 1
	WeightLang   = 1

	SeniorityBonus = 1
	RecencyBonus   = 1

	DefaultSeniorityMin = 0
	DefaultSeniorityMax = 20
)

// RecencyWindow is how recently a profile must have been updated to earn RecencyBonus.
const RecencyWindow = 90 * 24 * time.Hour

// Filter returns the profiles that satisfy every tag predicate in filters, in input order.
// modules, techs and langs require all keys; roles, scopes and sectors require any one.
// A nil filters value keeps everything.
func Filter(profiles []*ontology.Profile, filters *ontology.SearchFilters) []*ontology.Profile {
	out := make([]*ontology.Profile, 0, len(profiles))
	for _, p := range profiles {
		if Matches(p, filters) {
			out = append(out, p)
		}
	}
	return out
}

// Matches reports whether a single profile passes filters.
func Matches(p *ontology.Profile, filters *ontology.SearchFilters) bool {
	if filters == nil {
		return true
	}
	keys := tagSet(p)

	if !containsAll(keys, filters.Modules) || !containsAll(keys, filters.Techs) || !containsAll(keys, filters.Langs) {
		return false
	}
	if !containsAny(keys, filters.Roles) || !containsAny(keys, filters.Sectors) {
		return false
	}
	if len(filters.Scopes) > 0 && !containsAny(keys, filters.Scopes) && !contains(filters.Scopes, string(p.WorkScope)) {
		return false
	}
	return true
}

// Score computes the relevance of p for filters at time now. It returns nil when no
// filters are supplied.
func Score(p *ontology.Profile, filters *ontology.SearchFilters, now time.Time) *int {
	if filters == nil {
		return nil
	}
	keys := tagSet(p)

	score := WeightModule*countIn(keys, filters.Modules) +
		WeightTech*countIn(keys, filters.Techs) +
		WeightRole*countIn(keys, filters.Roles) +
		WeightScope*countIn(keys, filters.Scopes) +
		WeightSector*countIn(keys, filters.Sectors) +
		WeightLang*countIn(keys, filters.Langs)

	if inSeniorityRange(p.SeniorityYears, filters.SeniorityMin, filters.SeniorityMax) {
		score += SeniorityBonus
	}
	if p.UpdatedAt.After(now.Add(-RecencyWindow)) {
		score += RecencyBonus
	}
	return &score
}

// Rank filters profiles, scores the survivors and orders them by score descending, then
// by updated_at descending. Ties beyond that keep their input order. The returned
// profiles are shallow copies carrying Score; the input slice and its elements are not
// modified.
func Rank(profiles []*ontology.Profile, filters *ontology.SearchFilters, now time.Time) []*ontology.Profile {
	matched := Filter(profiles, filters)
	ranked := make([]*ontology.Profile, 0, len(matched))
	for _, p := range matched {
		cp := *p
		cp.Score = Score(p, filters, now)
		ranked = append(ranked, &cp)
	}
	SortByRelevance(ranked)
	return ranked
}

// SortByRelevance stable-sorts profiles in place: higher Score first when both scores are
// present and differ, otherwise most recently updated first.
func SortByRelevance(profiles []*ontology.Profile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		a, b := profiles[i], profiles[j]
		if a.Score != nil && b.Score != nil && *a.Score != *b.Score {
			return *a.Score > *b.Score
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})
}

// SortByRecency stable-sorts profiles in place by updated_at descending, ignoring Score.
func SortByRecency(profiles []*ontology.Profile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		return profiles[i].UpdatedAt.After(profiles[j].UpdatedAt)
	})
}

// Seniority never excludes a profile; a bound only earns a bonus when it is set to a
// positive value, mirroring how an unset or zero bound is treated as absent.
func inSeniorityRange(years int, minYears, maxYears *int) bool {
	minSet := minYears != nil && *minYears > 0
	maxSet := maxYears != nil && *maxYears > 0
	if !minSet && !maxSet {
		return false
	}
	lo, hi := DefaultSeniorityMin, DefaultSeniorityMax
	if minSet {
		lo = *minYears
	}
	if maxSet {
		hi = *maxYears
	}
	return years >= lo && years <= hi
}

func tagSet(p *ontology.Profile) map[string]struct{} {
	set := make(map[string]struct{}, len(p.Tags))
	for _, t := range p.Tags {
		set[t.Key] = struct{}{}
	}
	return set
}

func containsAll(set map[string]struct{}, keys []string) bool {
	for _, k := range keys {
		if _, ok := set[k]; !ok {
			return false
		}
	}
	return true
}

// containsAny is vacuously true for an empty key list.
func containsAny(set map[string]struct{}, keys []string) bool {
	if len(keys) == 0 {
		return true
	}
	for _, k := range keys {
		if _, ok := set[k]; ok {
			return true
		}
	}
	return false
}

func countIn(set map[string]struct{}, keys []string) int {
	n := 0
	for _, k := range keys {
		if _, ok := set[k]; ok {
			n++
		}
	}
	return n
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
