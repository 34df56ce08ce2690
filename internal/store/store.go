// Package store persists leads, channels, verification results, scrape runs
// and outreach events behind a single interface with Postgres and SQLite
// drivers.
package store

import (
	"context"

	"github.com/coeus-crm/leadgen-cli/internal/model"
)

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Tier          model.Tier          `json:"tier,omitempty"`
	City          string              `json:"city,omitempty"`
	Stage         model.PipelineStage `json:"stage,omitempty"`
	RoutingStatus model.RoutingStatus `json:"routing_status,omitempty"`
	RunID         string              `json:"run_id,omitempty"`
	Limit         int                 `json:"limit,omitempty"`
	Offset        int                 `json:"offset,omitempty"`
}

// RunFilter specifies criteria for listing scrape runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the lead pipeline.
//
// Upserts are keyed on natural uniqueness: leads on dedupe_key, channels on
// (lead, type, value), contacts on (lead, email), verifications on email,
// outreach events on external id. Lookups that find nothing return (nil, nil).
type Store interface {
	// Leads
	UpsertLead(ctx context.Context, lead *model.Lead) (*model.Lead, error)
	UpdateLead(ctx context.Context, lead *model.Lead) error
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	GetLeadByDedupeKey(ctx context.Context, key string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)

	// Channels and contacts
	UpsertChannel(ctx context.Context, ch model.Channel) error
	ListChannels(ctx context.Context, leadID string) ([]model.Channel, error)
	UpsertContact(ctx context.Context, c model.Contact) error
	ListContacts(ctx context.Context, leadID string) ([]model.Contact, error)

	// Email verification cache
	GetEmailVerification(ctx context.Context, email string) (*model.EmailVerification, error)
	SetEmailVerification(ctx context.Context, v model.EmailVerification) error

	// Scrape runs
	CreateScrapeRun(ctx context.Context, query, geo string, config map[string]any) (*model.ScrapeRun, error)
	UpdateScrapeRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	GetScrapeRun(ctx context.Context, runID string) (*model.ScrapeRun, error)
	ListScrapeRuns(ctx context.Context, filter RunFilter) ([]model.ScrapeRun, error)
	LinkLeadsToRun(ctx context.Context, runID string, leadIDs []string) error

	// Outreach events. Returns false when the external id was already seen.
	InsertOutreachEvent(ctx context.Context, ev model.OutreachEvent) (bool, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
