package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillmap/pkg/auth"
	"skillmap/pkg/ontology"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	t.Cleanup(func() {
		searchFull, searchJSON = false, false
		for _, name := range listFlags {
			if f := searchCmd.Flags().Lookup(name); f != nil && f.Changed {
				_ = searchCmd.Flags().Set(name, "")
				f.Changed = false
			}
		}
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "skillmap.yaml")
	body := "db:\n  path: " + filepath.Join(dir, "skillmap.db") + "\n" +
		"log:\n  level: error\n  development: true\n" +
		"nats:\n  enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestHashPassword(t *testing.T) {
	out, err := execute(t, "", "hash-password", "admin123")
	require.NoError(t, err)
	assert.True(t, auth.CheckPasswordHash("admin123", strings.TrimSpace(out)))

	out, err = execute(t, "manager123\n", "hash-password")
	require.NoError(t, err)
	assert.True(t, auth.CheckPasswordHash("manager123", strings.TrimSpace(out)))

	_, err = execute(t, "", "hash-password")
	assert.Error(t, err)
}

func TestSearchQuery(t *testing.T) {
	flags := searchCmd.Flags()
	require.NoError(t, flags.Parse([]string{"--modules", "SAP-MM,SAP-FI", "--langs", "EN-C1", "--seniority-min", "5", "--limit", "10"}))
	t.Cleanup(func() {
		for _, name := range []string{"modules", "langs", "seniority-min", "limit"} {
			flags.Lookup(name).Changed = false
		}
		_ = flags.Set("modules", "")
		_ = flags.Set("langs", "")
		_ = flags.Set("limit", "20")
	})

	q := searchQuery(flags)
	assert.Equal(t, "SAP-MM,SAP-FI", q.Get("modules"))
	assert.Equal(t, "EN-C1", q.Get("langs"))
	assert.Equal(t, "5", q.Get("seniority_min"))
	assert.False(t, q.Has("seniority_max"))
	assert.Equal(t, "10", q.Get("limit"))
	assert.Equal(t, ontology.SortRelevance, q.Get("sort"))
}

func TestRenderResults(t *testing.T) {
	five, three := 5, 3
	res := &ontology.SearchResponse{
		Total: 2,
		Items: []ontology.ProfileView{
			&ontology.MaskedProfile{ID: "p-1", DisplayName: "A* Y*****", Title: "SAP MM Consultant", SeniorityYears: 8, WorkScope: ontology.WorkScopeFullCycle, Tags: []string{"SAP-MM", "ABAP"}, Score: &five},
			&ontology.Profile{ID: "p-2", FirstName: "Mehmet", LastName: "Demir", Title: "FI Lead", SeniorityYears: 12, WorkScope: ontology.WorkScopeSupport, Score: &three,
				Organization: &ontology.Organization{Name: "InoPeak"}, Tags: []ontology.Tag{{Key: "SAP-FI"}}, UpdatedAt: time.Now()},
		},
	}

	var buf bytes.Buffer
	renderResults(&buf, res)
	out := buf.String()
	assert.Contains(t, out, "2 consultant(s) found")
	assert.Contains(t, out, "A* Y*****")
	assert.Contains(t, out, "SAP-MM, ABAP")
	assert.Contains(t, out, "Mehmet Demir (InoPeak)")
	assert.Less(t, strings.Index(out, "A* Y*****"), strings.Index(out, "Mehmet Demir"))

	buf.Reset()
	renderResults(&buf, &ontology.SearchResponse{})
	assert.Contains(t, buf.String(), "0 consultant(s) found")
}

func TestSeedAndSearch(t *testing.T) {
	cfg := testConfig(t)
	seedPath := filepath.Join("..", "..", "db", "seed.yaml")

	out, err := execute(t, "", "--config", cfg, "seed", "--file", seedPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Created")

	_, err = execute(t, "", "--config", cfg, "seed", "--file", seedPath)
	require.NoError(t, err)

	out, err = execute(t, "", "--config", cfg, "search", "--json")
	require.NoError(t, err)

	var res struct {
		Items []map[string]interface{} `json:"items"`
		Total int                      `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotEmpty(t, res.Items)
	for _, item := range res.Items {
		assert.Contains(t, item, "display_name")
		assert.NotContains(t, item, "email")
	}

	out, err = execute(t, "", "--config", cfg, "search", "--full", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotEmpty(t, res.Items)
	assert.Contains(t, res.Items[0], "email")
}
