package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"skillmap/api"
	"skillmap/api/services"
	"skillmap/pkg/ontology"
	"skillmap/pkg/visibility"
)

var (
	searchFull bool
	searchJSON bool
)

// listFlags are passed through to the catalog query parser unchanged.
var listFlags = []string{"modules", "techs", "roles", "scopes", "sectors", "langs", "source"}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the catalog from the command line",
	Long: `Search runs the catalog filter, score and mask pipeline against the database.
Results are masked as for an anonymous client unless --full is given.`,
	Example: `  skillmap search --modules SAP-MM --techs ABAP,Fiori
  skillmap search --seniority-min 5 --source partner --full
  skillmap search --langs EN-C1 --json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		req, err := api.ParseSearchQuery(searchQuery(cmd.Flags()))
		if err != nil {
			return err
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.log.Sync() //nolint:errcheck

		store, err := a.openDB(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()

		var viewer *visibility.Viewer
		if searchFull {
			viewer = services.SystemViewer
		}

		res, err := a.offlineServices(store).Catalog.Search(cmd.Context(), req, viewer)
		if err != nil {
			return err
		}

		if searchJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		renderResults(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	f := searchCmd.Flags()
	f.StringSlice("modules", nil, "SAP module tags, all required")
	f.StringSlice("techs", nil, "technology tags, all required")
	f.StringSlice("roles", nil, "role tags, any of")
	f.StringSlice("scopes", nil, "work scopes (FullCycle, Support, Hybrid)")
	f.StringSlice("sectors", nil, "sector tags, any of")
	f.StringSlice("langs", nil, "language tags, all required")
	f.StringSlice("source", nil, "organization types (owner, partner)")
	f.Int("seniority-min", 0, "minimum years of seniority")
	f.Int("seniority-max", 0, "maximum years of seniority")
	f.String("sort", ontology.SortRelevance, "relevance or updated_desc")
	f.Int("limit", 20, "page size")
	f.Int("offset", 0, "page offset")
	f.BoolVar(&searchFull, "full", false, "search with owner rights, without masking")
	f.BoolVar(&searchJSON, "json", false, "print the raw JSON response")
}

// searchQuery turns the flags that were set into the query string form the HTTP API accepts.
func searchQuery(flags *pflag.FlagSet) url.Values {
	q := url.Values{}
	for _, name := range listFlags {
		if !flags.Changed(name) {
			continue
		}
		values, _ := flags.GetStringSlice(name)
		q.Set(name, strings.Join(values, ","))
	}
	// Seniority bounds change scoring only when given, so unset flags stay out of the query.
	for _, name := range []string{"seniority-min", "seniority-max"} {
		if flags.Changed(name) {
			v, _ := flags.GetInt(name)
			q.Set(strings.ReplaceAll(name, "-", "_"), strconv.Itoa(v))
		}
	}
	for _, name := range []string{"limit", "offset"} {
		v, _ := flags.GetInt(name)
		q.Set(name, strconv.Itoa(v))
	}
	if sort, _ := flags.GetString("sort"); sort != "" {
		q.Set("sort", sort)
	}
	return q
}

func renderResults(w io.Writer, res *ontology.SearchResponse) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d consultant(s) found", res.Total)))
	if len(res.Items) == 0 {
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("SCORE", "NAME", "TITLE", "YEARS", "SCOPE", "TAGS").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	for _, item := range res.Items {
		t.Row(profileRow(item)...)
	}
	fmt.Fprintln(w, t.Render())
}

func profileRow(item ontology.ProfileView) []string {
	switch p := item.(type) {
	case *ontology.MaskedProfile:
		return []string{score(p.Score), p.DisplayName, p.Title, strconv.Itoa(p.SeniorityYears), string(p.WorkScope), strings.Join(p.Tags, ", ")}
	case *ontology.Profile:
		name := p.FirstName + " " + p.LastName
		if p.Organization != nil {
			name += " (" + p.Organization.Name + ")"
		}
		return []string{score(p.Score), name, p.Title, strconv.Itoa(p.SeniorityYears), string(p.WorkScope), strings.Join(p.TagKeys(), ", ")}
	default:
		return []string{"-", item.ProfileID(), "", "", "", ""}
	}
}

func score(s *int) string {
	if s == nil {
		return "-"
	}
	return strconv.Itoa(*s)
}
