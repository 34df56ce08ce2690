package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coeus-crm/leadgen-cli/internal/ingest"
	"github.com/coeus-crm/leadgen-cli/internal/model"
)

var importEnrich bool

var importCmd = &cobra.Command{
	Use:   "import <file.csv|file.xlsx>",
	Short: "Import a listings export from a CSV or XLSX file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		path := args[0]
		records, err := ingest.ReadFile(path)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No records found.")
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		enqueue, finish := noopEnqueue()
		if importEnrich {
			_, pool, err := initEnrichment(st)
			if err != nil {
				return err
			}
			enqueue = func(leadID string) error {
				_, err := pool.Enqueue(leadID)
				return err
			}
			finish = pool.Close
		}

		run, err := st.CreateScrapeRun(ctx, "import:"+filepath.Base(path), "", map[string]any{"file": path})
		if err != nil {
			return err
		}

		svc := ingest.New(cfg.Listings, st, nil, enqueue)
		stats, err := svc.IngestBatch(ctx, run.ID, records)
		if err != nil {
			finish()
			return err
		}
		if stats.Enqueued > 0 {
			setRunStatus(ctx, st, run.ID, model.RunStatusAIAnalysis)
		}
		finish()
		if stats.Enqueued > 0 {
			setRunStatus(ctx, st, run.ID, model.RunStatusCompleted)
		}

		fmt.Printf("Imported %s: %d received, %d upserted, %d enriched, %d discarded, %d skipped (no key), %d failed\n",
			filepath.Base(path), stats.Received, stats.Upserted, stats.Enqueued, stats.Discarded, stats.NoKey, stats.Failed)
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVar(&importEnrich, "enrich", false, "enrich qualified leads after import")
	rootCmd.AddCommand(importCmd)
}
