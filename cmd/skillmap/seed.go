package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"skillmap/pkg/seed"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load organizations, users, tags and profiles from a YAML file",
	Long: `Seed applies a YAML file to the database. Records that already exist are
skipped, so running it twice is harmless.`,
	Example: `  skillmap seed --file db/seed.yaml`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.log.Sync() //nolint:errcheck

		f, err := seed.Load(seedFile)
		if err != nil {
			return err
		}

		store, err := a.openDB(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()

		res, err := seed.Apply(cmd.Context(), a.offlineServices(store), f, a.log.Named("seed"))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render("Seeded "+seedFile))
		fmt.Fprintln(out, field("Created", strconv.Itoa(len(res.Created))))
		for _, c := range res.Created {
			fmt.Fprintln(out, "  "+valueStyle.Render(c))
		}
		fmt.Fprintln(out, field("Skipped", strconv.Itoa(len(res.Skipped))))
		for _, s := range res.Skipped {
			fmt.Fprintln(out, "  "+mutedStyle.Render(s))
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "db/seed.yaml", "seed file")
}
