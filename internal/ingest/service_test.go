package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coeus-crm/leadgen-cli/internal/config"
	"github.com/coeus-crm/leadgen-cli/internal/model"
	"github.com/coeus-crm/leadgen-cli/internal/store"
	"github.com/coeus-crm/leadgen-cli/pkg/listings"
)

type fakeListings struct {
	submitErr error
	statuses  []*listings.RunStatus
	results   []map[string]any
	fetchErr  error

	submitted []listings.SearchRequest
	polls     int
}

func (f *fakeListings) SubmitSearch(_ context.Context, req listings.SearchRequest) (*listings.RunHandle, error) {
	f.submitted = append(f.submitted, req)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &listings.RunHandle{ID: "run-abc"}, nil
}

func (f *fakeListings) PollStatus(_ context.Context, _ string) (*listings.RunStatus, error) {
	if f.polls < len(f.statuses) {
		s := f.statuses[f.polls]
		f.polls++
		return s, nil
	}
	return f.statuses[len(f.statuses)-1], nil
}

func (f *fakeListings) FetchResults(_ context.Context, _ string) ([]map[string]any, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.results, nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func rawClinic(name, place string) model.RawRecord {
	return model.RawRecord{
		"title":        name,
		"placeId":      place,
		"website":      "https://" + place + ".es",
		"email":        "info@" + place + ".es",
		"phone":        "+34 612 345 678",
		"city":         "Madrid",
		"address":      "Calle Mayor 1, Madrid",
		"countryCode":  "es",
		"categoryName": "Dentista",
		"totalScore":   "4.6",
		"reviewsCount": "87",
	}
}

func newService(t *testing.T, st store.Store, lc listings.Client, enqueue EnqueueFunc) *Service {
	t.Helper()
	cfg := config.ListingsConfig{DefaultLimit: 50, PollIntervalSecs: 0, PollTimeoutSecs: 5}
	return New(cfg, st, lc, enqueue)
}

func TestIngestBatch_UpsertsScoresAndEnqueues(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var enqueued []string
	svc := newService(t, st, nil, func(id string) error {
		enqueued = append(enqueued, id)
		return nil
	})

	run, err := st.CreateScrapeRun(ctx, "dentista", "Madrid", nil)
	require.NoError(t, err)

	stats, err := svc.IngestBatch(ctx, run.ID, []model.RawRecord{
		rawClinic("Clinica Dental Sol", "sol"),
		rawClinic("Clinica Luna", "luna"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Received)
	assert.Equal(t, 2, stats.Upserted)
	assert.Equal(t, 2, stats.Enqueued)
	assert.Zero(t, stats.NoKey)
	assert.Zero(t, stats.Failed)
	assert.Len(t, enqueued, 2)

	lead, err := st.GetLeadByDedupeKey(ctx, "place:sol")
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, "Clinica Dental Sol", lead.Clean.Name)
	assert.Equal(t, model.LeadStatusNew, lead.Status)
	assert.Equal(t, model.StageNew, lead.PipelineStage)
	assert.NotEmpty(t, lead.Score.Tier)
	assert.NotEqual(t, model.RouteDiscarded, lead.Route.Route)

	// Primary email and phone land as channels with the listing source.
	channels, err := st.ListChannels(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	for _, ch := range channels {
		assert.True(t, ch.IsPrimary)
		assert.Equal(t, string(model.SourceListings), ch.Meta["source"])
	}

	linked, err := st.ListLeads(ctx, store.LeadFilter{RunID: run.ID})
	require.NoError(t, err)
	assert.Len(t, linked, 2)

	fetched, err := st.GetScrapeRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusEnriching, fetched.Status)
}

func TestIngestBatch_NoKeyRecordsGetSyntheticKey(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	svc := newService(t, st, nil, nil)

	stats, err := svc.IngestBatch(ctx, "", []model.RawRecord{
		{"title": "Sin Datos"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NoKey)
	assert.Equal(t, 1, stats.Upserted)

	// Persisted, flagged, and keyed so a re-ingest cannot collide with it.
	leads, err := st.ListLeads(ctx, store.LeadFilter{})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.True(t, strings.HasPrefix(leads[0].DedupeKey, "raw:"))
	warnings, _ := leads[0].Meta["ingest_warnings"].([]any)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "no dedupe key")
}

func TestIngestBatch_ClosedBusinessDiscardedNotEnqueued(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var enqueued []string
	svc := newService(t, st, nil, func(id string) error {
		enqueued = append(enqueued, id)
		return nil
	})

	raw := rawClinic("Clinica Cerrada", "cerrada")
	raw["permanentlyClosed"] = "true"

	stats, err := svc.IngestBatch(ctx, "", []model.RawRecord{raw})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Upserted)
	assert.Equal(t, 1, stats.Discarded)
	assert.Zero(t, stats.Enqueued)
	assert.Empty(t, enqueued)

	lead, err := st.GetLeadByDedupeKey(ctx, "place:cerrada")
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, model.StageDiscarded, lead.PipelineStage)
	assert.Equal(t, model.RouteDiscarded, lead.Route.Route)
}

func TestIngestBatch_ReingestKeepsTerminalLeadOut(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var enqueued []string
	svc := newService(t, st, nil, func(id string) error {
		enqueued = append(enqueued, id)
		return nil
	})

	stats, err := svc.IngestBatch(ctx, "", []model.RawRecord{rawClinic("Clinica Dental Sol", "sol")})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Enqueued)

	lead, err := st.GetLeadByDedupeKey(ctx, "place:sol")
	require.NoError(t, err)
	lead.RoutingStatus = model.RoutingClosedReply
	lead.Status = model.LeadStatusClosed
	require.NoError(t, st.UpdateLead(ctx, lead))

	enqueued = nil
	stats, err = svc.IngestBatch(ctx, "", []model.RawRecord{rawClinic("Clinica Dental Sol", "sol")})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Upserted)
	assert.Zero(t, stats.Enqueued)
	assert.Empty(t, enqueued)

	after, err := st.GetLeadByDedupeKey(ctx, "place:sol")
	require.NoError(t, err)
	assert.Equal(t, model.RoutingClosedReply, after.RoutingStatus)
}

func TestIngestBatch_EnqueueFailureCounted(t *testing.T) {
	st := newTestStore(t)
	svc := newService(t, st, nil, func(string) error {
		return eris.New("queue full")
	})

	stats, err := svc.IngestBatch(context.Background(), "", []model.RawRecord{rawClinic("Clinica Dental Sol", "sol")})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Upserted)
	assert.Zero(t, stats.Enqueued)
}

func TestRunSearch_EndToEnd(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	lc := &fakeListings{
		statuses: []*listings.RunStatus{
			{Status: listings.StatusSucceeded, ResultsID: "ds-1"},
		},
		results: []map[string]any{rawClinic("Clinica Dental Sol", "sol")},
	}

	var enqueued []string
	svc := newService(t, st, lc, func(id string) error {
		enqueued = append(enqueued, id)
		return nil
	})

	run, stats, err := svc.RunSearch(ctx, "dentista madrid", "Madrid", 0)
	require.NoError(t, err)
	require.NotNil(t, run)
	require.NotNil(t, stats)

	require.Len(t, lc.submitted, 1)
	assert.Equal(t, "dentista madrid", lc.submitted[0].Query)
	assert.Equal(t, 50, lc.submitted[0].Limit) // default limit applied

	assert.Equal(t, 1, stats.Upserted)
	assert.Len(t, enqueued, 1)

	fetched, err := st.GetScrapeRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusEnriching, fetched.Status)
	assert.Equal(t, "dentista madrid", fetched.Query)
}

func TestRunSearch_ProviderFailureMarksRunFailed(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	lc := &fakeListings{submitErr: eris.New("actor unavailable")}
	svc := newService(t, st, lc, nil)

	run, _, err := svc.RunSearch(ctx, "dentista", "Madrid", 10)
	require.Error(t, err)
	require.NotNil(t, run)

	fetched, err := st.GetScrapeRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, fetched.Status)
}

func TestRunSearch_FailedRunStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	lc := &fakeListings{
		statuses: []*listings.RunStatus{{Status: listings.StatusFailed}},
	}
	svc := newService(t, st, lc, nil)

	run, _, err := svc.RunSearch(ctx, "dentista", "Madrid", 10)
	require.Error(t, err)

	fetched, err := st.GetScrapeRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, fetched.Status)
}
