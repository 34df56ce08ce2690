package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/coeus-crm/leadgen-cli/internal/enrich"
	"github.com/coeus-crm/leadgen-cli/internal/model"
	"github.com/coeus-crm/leadgen-cli/internal/store"
)

var (
	enrichForce bool
	enrichTier  string
	enrichCity  string
	enrichLimit int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich [lead-id...]",
	Short: "Run the enrichment sequence for stored leads",
	Long:  "Enriches the given lead ids, or every lead routed ENRICH when no ids are passed. Leads on a terminal CLOSED_* status are skipped unless --force is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		orch, pool, err := initEnrichment(st)
		if err != nil {
			return err
		}

		ids := args
		if len(ids) == 0 {
			leads, err := st.ListLeads(ctx, store.LeadFilter{
				RoutingStatus: model.RoutingEnrich,
				Tier:          model.Tier(enrichTier),
				City:          enrichCity,
				Limit:         enrichLimit,
			})
			if err != nil {
				return err
			}
			for _, lead := range leads {
				ids = append(ids, lead.ID)
			}
		}
		if len(ids) == 0 {
			pool.Close()
			fmt.Println("Nothing to enrich.")
			return nil
		}

		// Forced runs bypass the pool so skip logic can be overridden per
		// lead; normal runs go through the supervised workers.
		if enrichForce {
			pool.Close()
			var failed int
			for _, id := range ids {
				if _, err := orch.Enrich(ctx, id, true); err != nil {
					failed++
					fmt.Printf("lead %s: %v\n", id, err)
				}
			}
			fmt.Printf("Enriched %d leads (%d failed)\n", len(ids)-failed, failed)
			return nil
		}

		queued := 0
		for _, id := range ids {
			if _, err := pool.Enqueue(id); err != nil {
				fmt.Printf("lead %s: %v\n", id, err)
				continue
			}
			queued++
		}
		pool.Close()

		failed := 0
		for _, task := range pool.Snapshot() {
			if task.State == enrich.TaskFailed {
				failed++
			}
		}
		fmt.Printf("Enriched %d leads (%d failed)\n", queued-failed, failed)
		return nil
	},
}

func init() {
	enrichCmd.Flags().BoolVar(&enrichForce, "force", false, "re-enrich even terminal or discarded leads")
	enrichCmd.Flags().StringVar(&enrichTier, "tier", "", "filter candidates by tier")
	enrichCmd.Flags().StringVar(&enrichCity, "city", "", "filter candidates by city")
	enrichCmd.Flags().IntVar(&enrichLimit, "limit", 0, "max leads to enrich")
	rootCmd.AddCommand(enrichCmd)
}
