// Package ingest turns provider search results and file exports into scored,
// routed leads and hands qualified ones to enrichment.
package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/coeus-crm/leadgen-cli/internal/config"
	"github.com/coeus-crm/leadgen-cli/internal/model"
	"github.com/coeus-crm/leadgen-cli/internal/normalizer"
	"github.com/coeus-crm/leadgen-cli/internal/scorer"
	"github.com/coeus-crm/leadgen-cli/internal/store"
	"github.com/coeus-crm/leadgen-cli/pkg/listings"
)

// EnqueueFunc hands a lead id to the enrichment pool. A nil func disables
// enrichment (ingest-only runs).
type EnqueueFunc func(leadID string) error

// Service runs batch ingestion: Normalize, Score, Route, persist, enqueue.
type Service struct {
	cfg      config.ListingsConfig
	store    store.Store
	listings listings.Client
	enqueue  EnqueueFunc
}

// New creates an ingestion Service.
func New(cfg config.ListingsConfig, st store.Store, listingsClient listings.Client, enqueue EnqueueFunc) *Service {
	return &Service{
		cfg:      cfg,
		store:    st,
		listings: listingsClient,
		enqueue:  enqueue,
	}
}

// RunSearch submits a provider search, polls it to completion, fetches the
// results and ingests them under a new scrape run.
func (s *Service) RunSearch(ctx context.Context, query, geo string, limit int) (*model.ScrapeRun, *model.IngestStats, error) {
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	run, err := s.store.CreateScrapeRun(ctx, query, geo, map[string]any{"limit": limit})
	if err != nil {
		return nil, nil, eris.Wrap(err, "ingest: create scrape run")
	}
	log := zap.L().With(zap.String("run_id", run.ID), zap.String("query", query), zap.String("geo", geo))
	log.Info("ingest: search submitted")

	failRun := func(cause error) (*model.ScrapeRun, *model.IngestStats, error) {
		if sErr := s.store.UpdateScrapeRunStatus(ctx, run.ID, model.RunStatusFailed); sErr != nil {
			log.Warn("ingest: failed to mark run failed", zap.Error(sErr))
		}
		return run, nil, cause
	}

	handle, err := s.listings.SubmitSearch(ctx, listings.SearchRequest{
		Query:    query,
		Location: geo,
		Limit:    limit,
	})
	if err != nil {
		return failRun(eris.Wrap(err, "ingest: submit search"))
	}

	status, err := listings.PollRun(ctx, s.listings, handle.ID, s.pollOptions()...)
	if err != nil {
		return failRun(eris.Wrap(err, "ingest: poll search"))
	}
	raw, err := s.listings.FetchResults(ctx, status.ResultsID)
	if err != nil {
		return failRun(eris.Wrap(err, "ingest: fetch results"))
	}

	records := make([]model.RawRecord, len(raw))
	for i, r := range raw {
		records[i] = model.RawRecord(r)
	}

	stats, err := s.IngestBatch(ctx, run.ID, records)
	if err != nil {
		return failRun(err)
	}
	return run, stats, nil
}

func (s *Service) pollOptions() []listings.PollOption {
	var opts []listings.PollOption
	if s.cfg.PollTimeoutSecs > 0 {
		opts = append(opts, listings.WithPollTimeout(secsDuration(s.cfg.PollTimeoutSecs)))
	}
	if s.cfg.PollIntervalSecs > 0 {
		opts = append(opts, listings.WithPollInterval(secsDuration(s.cfg.PollIntervalSecs)))
	}
	return opts
}

func secsDuration(secs int) time.Duration {
	return time.Duration(secs) * time.Second
}

// IngestBatch processes raw records: each is normalized, scored, routed and
// upserted; qualified leads are enqueued for enrichment. Per-record failures
// are counted, never fatal; the batch always returns stats.
func (s *Service) IngestBatch(ctx context.Context, runID string, records []model.RawRecord) (*model.IngestStats, error) {
	stats := &model.IngestStats{Received: len(records)}
	log := zap.L().With(zap.String("run_id", runID))

	var leadIDs []string
	for _, raw := range records {
		clean, flags := normalizer.Normalize(raw)

		key := clean.DedupeKey()
		if key == "" {
			// No place id, domain+city or name+address to match on. The
			// record is still persisted, under a key that will never match
			// a future ingest of the same business.
			key = "raw:" + uuid.New().String()
			flags.Warnings = append(flags.Warnings, "no dedupe key, duplicate risk on re-ingest")
			stats.NoKey++
			log.Warn("ingest: record has no dedupe key", zap.String("name", clean.Name), zap.String("dedupe_key", key))
		}

		score := scorer.Score(clean, nil)
		route := scorer.Route(score, clean)

		lead := &model.Lead{
			DedupeKey:     key,
			Clean:         clean,
			Score:         score,
			Route:         route,
			Status:        model.LeadStatusNew,
			PipelineStage: model.StageNew,
			RoutingStatus: model.RoutingStatus(route.Route),
		}
		if route.Route == model.RouteDiscarded {
			lead.PipelineStage = model.StageDiscarded
		}
		if len(flags.Warnings) > 0 {
			lead.Meta = map[string]any{"ingest_warnings": flags.Warnings}
		}

		saved, err := s.store.UpsertLead(ctx, lead)
		if err != nil {
			stats.Failed++
			log.Warn("ingest: lead upsert failed", zap.String("dedupe_key", key), zap.Error(err))
			continue
		}
		stats.Upserted++
		leadIDs = append(leadIDs, saved.ID)

		s.upsertListingChannels(ctx, saved)

		if route.Route == model.RouteDiscarded {
			stats.Discarded++
			continue
		}
		// Leads parked on a terminal status by an earlier outreach outcome
		// stay closed across re-ingestion.
		if saved.RoutingStatus.IsTerminal() {
			continue
		}
		if s.enqueue != nil {
			if err := s.enqueue(saved.ID); err != nil {
				log.Warn("ingest: enqueue failed", zap.String("lead_id", saved.ID), zap.Error(err))
				continue
			}
			stats.Enqueued++
		}
	}

	if runID != "" {
		if err := s.store.LinkLeadsToRun(ctx, runID, leadIDs); err != nil {
			log.Warn("ingest: link leads to run failed", zap.Error(err))
		}
		next := model.RunStatusCompleted
		if stats.Enqueued > 0 {
			next = model.RunStatusEnriching
		}
		if err := s.store.UpdateScrapeRunStatus(ctx, runID, next); err != nil {
			log.Warn("ingest: run status update failed", zap.Error(err))
		}
	}

	log.Info("ingest: batch done",
		zap.Int("received", stats.Received),
		zap.Int("upserted", stats.Upserted),
		zap.Int("discarded", stats.Discarded),
		zap.Int("enqueued", stats.Enqueued),
		zap.Int("no_key", stats.NoKey),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

// upsertListingChannels persists the primary email and phone from the
// listing. Channel write failures are non-critical.
func (s *Service) upsertListingChannels(ctx context.Context, lead *model.Lead) {
	meta := map[string]any{"source": string(model.SourceListings)}
	if lead.Clean.EmailPrimary != "" {
		ch := model.Channel{
			LeadID:    lead.ID,
			Type:      model.ChannelEmail,
			Value:     lead.Clean.EmailPrimary,
			IsPrimary: true,
			Status:    "active",
			Meta:      meta,
		}
		if err := s.store.UpsertChannel(ctx, ch); err != nil {
			zap.L().Warn("ingest: email channel upsert failed", zap.String("lead_id", lead.ID), zap.Error(err))
		}
	}
	if lead.Clean.PhonePrimary != "" {
		ch := model.Channel{
			LeadID:    lead.ID,
			Type:      model.ChannelPhone,
			Value:     lead.Clean.PhonePrimary,
			IsPrimary: true,
			Status:    "active",
			Meta:      meta,
		}
		if err := s.store.UpsertChannel(ctx, ch); err != nil {
			zap.L().Warn("ingest: phone channel upsert failed", zap.String("lead_id", lead.ID), zap.Error(err))
		}
	}
}
