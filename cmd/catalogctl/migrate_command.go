package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/therealutkarshpriyadarshi/subcatalog/internal/migrate"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var (
		legacyPath  string
		metadataDir string
		cacheDir    string
		dryRun      bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Merge a legacy catalog export into the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.catalogStore()
			if err != nil {
				return err
			}
			m := migrate.New(store, migrate.Options{
				MetadataDir: metadataDir,
				CacheDir:    cacheDir,
			}, ctx.logger)

			report, err := m.Run(legacyPath, dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintln(out, "Dry run, nothing written")
			}
			fmt.Fprintf(out, "Added:   %d\n", report.Added)
			fmt.Fprintf(out, "Updated: %d\n", report.Updated)
			fmt.Fprintf(out, "Skipped: %d\n", report.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&legacyPath, "legacy", "videos.json", "Legacy catalog export")
	cmd.Flags().StringVar(&metadataDir, "metadata-dir", "metadata", "Directory of per-video metadata files")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", ".cache", "Directory of cached title translations")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report changes without writing")

	return cmd
}
