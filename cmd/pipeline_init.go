package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/coeus-crm/leadgen-cli/internal/enrich"
	"github.com/coeus-crm/leadgen-cli/internal/ingest"
	"github.com/coeus-crm/leadgen-cli/internal/model"
	outreachsvc "github.com/coeus-crm/leadgen-cli/internal/outreach"
	"github.com/coeus-crm/leadgen-cli/internal/store"
	"github.com/coeus-crm/leadgen-cli/pkg/contentfetch"
	"github.com/coeus-crm/leadgen-cli/pkg/intel"
	"github.com/coeus-crm/leadgen-cli/pkg/listings"
	"github.com/coeus-crm/leadgen-cli/pkg/outreach"
	"github.com/coeus-crm/leadgen-cli/pkg/verifier"
)

// initStore opens the configured store (postgres or sqlite) and runs
// migrations. Callers should defer st.Close().
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadgen.db"
		}
		st, err = store.NewSQLite(dsn)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnrichment builds the enrichment orchestrator and its worker pool.
// Callers should defer pool.Close().
func initEnrichment(st store.Store) (*enrich.Orchestrator, *enrich.Pool, error) {
	if err := cfg.Validate("enrich"); err != nil {
		return nil, nil, err
	}

	fetcher := contentfetch.NewClient(cfg.ContentFetch.Key,
		contentfetch.WithBaseURL(cfg.ContentFetch.BaseURL),
		contentfetch.WithRateLimit(cfg.ContentFetch.RatePerSec),
		contentfetch.WithMaxPages(cfg.ContentFetch.MaxPages),
	)
	intelClient := intel.NewClient(cfg.Anthropic.Key,
		intel.WithModel(cfg.Anthropic.Model),
		intel.WithMaxTokens(int64(cfg.Anthropic.MaxTokens)),
	)
	verifierClient := verifier.NewClient(cfg.Verifier.Key,
		verifier.WithBaseURL(cfg.Verifier.BaseURL),
		verifier.WithRateLimit(cfg.Verifier.RatePerSec),
	)

	orch := enrich.New(cfg.Enrich, st, fetcher, intelClient, verifierClient)
	pool := enrich.NewPool(cfg.Enrich.Workers, cfg.Enrich.QueueSize, func(ctx context.Context, leadID string) error {
		_, err := orch.Enrich(ctx, leadID, false)
		return err
	})
	return orch, pool, nil
}

// setRunStatus records a run phase transition. Run status is observational
// only, so failures are logged, never returned.
func setRunStatus(ctx context.Context, st store.Store, runID string, status model.RunStatus) {
	if err := st.UpdateScrapeRunStatus(ctx, runID, status); err != nil {
		zap.L().Warn("run status update failed",
			zap.String("run_id", runID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

// initIngest builds the ingestion service. enqueue may be nil for
// ingest-only runs.
func initIngest(st store.Store, enqueue ingest.EnqueueFunc) *ingest.Service {
	listingsClient := listings.NewClient(cfg.Listings.Key,
		listings.WithBaseURL(cfg.Listings.BaseURL),
		listings.WithRateLimit(cfg.Listings.RatePerSec),
	)
	return ingest.New(cfg.Listings, st, listingsClient, enqueue)
}

// initOutreach builds the campaign service. Simulation mode swaps in the
// in-memory provider client.
func initOutreach(st store.Store) (*outreachsvc.Service, error) {
	if err := cfg.Validate("campaign"); err != nil {
		return nil, err
	}

	var client outreach.Client
	if cfg.Outreach.SimulationMode() {
		zap.L().Info("outreach running in simulation mode")
		client = outreach.NewSimulatedClient()
	} else {
		client = outreach.NewClient(cfg.Outreach.Key,
			outreach.WithBaseURL(cfg.Outreach.BaseURL),
		)
	}
	return outreachsvc.NewService(cfg.Outreach, st, client)
}
