package model

import "time"

// RunStatus tracks an ingestion run end to end. Purely observational; no
// per-lead correctness depends on it.
type RunStatus string

const (
	RunStatusScraping   RunStatus = "SCRAPING"
	RunStatusEnriching  RunStatus = "ENRICHING"
	RunStatusAIAnalysis RunStatus = "AI_ANALYSIS"
	RunStatusCompleted  RunStatus = "COMPLETED"
	RunStatusFailed     RunStatus = "FAILED"
)

// ScrapeRun records one listings-provider search and the batch of leads it
// produced.
type ScrapeRun struct {
	ID        string         `json:"id"`
	Query     string         `json:"query"`
	Geo       string         `json:"geo"`
	Status    RunStatus      `json:"status"`
	Config    map[string]any `json:"config,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// IngestStats summarizes one batch ingestion.
type IngestStats struct {
	Received  int `json:"received"`
	Upserted  int `json:"upserted"`
	Discarded int `json:"discarded"`
	Enqueued  int `json:"enqueued"`
	NoKey     int `json:"no_key"`
	Failed    int `json:"failed"`
}

// OutreachEventType is the provider webhook event vocabulary.
type OutreachEventType string

const (
	EventSent        OutreachEventType = "sent"
	EventOpened      OutreachEventType = "opened"
	EventClicked     OutreachEventType = "clicked"
	EventReplied     OutreachEventType = "replied"
	EventBounced     OutreachEventType = "bounced"
	EventUnsubscribe OutreachEventType = "unsubscribed"
)

// OutreachEvent is one delivery/engagement event reported by the outreach
// provider. ExternalID deduplicates webhook retries.
type OutreachEvent struct {
	ID         string            `json:"id"`
	LeadID     string            `json:"lead_id"`
	Type       OutreachEventType `json:"type"`
	Provider   string            `json:"provider"`
	ExternalID string            `json:"external_id"`
	Meta       map[string]any    `json:"meta,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
