package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coeus-crm/leadgen-cli/internal/model"
)

var (
	ingestQuery    string
	ingestGeo      string
	ingestLimit    int
	ingestNoEnrich bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Search the listings provider and ingest the results",
	Long:  "Submits a listings search, waits for it to finish, then normalizes, scores and routes every result. Qualified leads are enriched unless --no-enrich is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		enqueue, finish := noopEnqueue()
		if !ingestNoEnrich {
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

		svc := initIngest(st, enqueue)
		run, stats, err := svc.RunSearch(ctx, ingestQuery, ingestGeo, ingestLimit)
		if err != nil {
			finish()
			return err
		}

		if stats.Enqueued > 0 {
			setRunStatus(ctx, st, run.ID, model.RunStatusAIAnalysis)
		}
		// Close drains the queue and waits for in-flight enrichments.
		finish()
		if stats.Enqueued > 0 {
			setRunStatus(ctx, st, run.ID, model.RunStatusCompleted)
		}

		fmt.Printf("Run %s: %d received, %d upserted, %d enriched, %d discarded, %d skipped (no key), %d failed\n",
			run.ID, stats.Received, stats.Upserted, stats.Enqueued, stats.Discarded, stats.NoKey, stats.Failed)
		return nil
	},
}

// noopEnqueue is the ingest-only path: leads are stored and routed but not
// enriched.
func noopEnqueue() (func(string) error, func()) {
	return nil, func() {}
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestQuery, "query", "q", "", "search query (required)")
	ingestCmd.Flags().StringVarP(&ingestGeo, "geo", "g", "", "geographic area")
	ingestCmd.Flags().IntVarP(&ingestLimit, "limit", "l", 0, "max results (default from config)")
	ingestCmd.Flags().BoolVar(&ingestNoEnrich, "no-enrich", false, "skip enrichment, ingest only")
	_ = ingestCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(ingestCmd)
}
