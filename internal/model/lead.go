package model

import "time"

// RawRecord is an opaque business listing payload from the listings provider.
// Field names and shapes vary between provider versions, so the record stays
// untyped and the normalizer resolves fields through ordered candidate lists.
type RawRecord map[string]any

// LeadStatus tracks the enrichment lifecycle of a lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusEnriching LeadStatus = "enriching"
	LeadStatusEnriched  LeadStatus = "enriched"
	LeadStatusClosed    LeadStatus = "closed"
)

// PipelineStage is the operator-facing funnel position of a lead.
type PipelineStage string

const (
	StageNew        PipelineStage = "new"
	StageReady      PipelineStage = "ready"
	StageDiscarded  PipelineStage = "discarded"
	StageContacted  PipelineStage = "contacted"
	StageInterested PipelineStage = "interested"
	StageRejected   PipelineStage = "rejected"
)

// RoutingStatus is the pipeline's next-action decision persisted on the lead.
// CLOSED_* values are terminal and are never regressed by re-enrichment.
type RoutingStatus string

const (
	RoutingOutreachReady     RoutingStatus = "OUTREACH_READY"
	RoutingEnrich            RoutingStatus = "ENRICH"
	RoutingDiscarded         RoutingStatus = "DISCARDED"
	RoutingClosedReply       RoutingStatus = "CLOSED_REPLY"
	RoutingClosedBounce      RoutingStatus = "CLOSED_BOUNCE"
	RoutingClosedUnsubscribe RoutingStatus = "CLOSED_UNSUBSCRIBE"
)

// IsTerminal reports whether the routing status is a CLOSED_* end state.
func (r RoutingStatus) IsTerminal() bool {
	switch r {
	case RoutingClosedReply, RoutingClosedBounce, RoutingClosedUnsubscribe:
		return true
	}
	return false
}

// PhoneType classifies a normalized phone number.
type PhoneType string

const (
	PhoneMobile   PhoneType = "mobile"
	PhoneLandline PhoneType = "landline"
	PhoneUnknown  PhoneType = "unknown"
)

// Ecommerce holds the commerce-path detection result for a lead's sub-pages.
type Ecommerce struct {
	IsEcommerce bool     `json:"is_ecommerce"`
	MatchedURLs []string `json:"matched_urls,omitempty"`
}

// CleanLead is the canonical normalized form of one raw listing. It is
// produced once by the normalizer and never mutated afterwards.
type CleanLead struct {
	Name        string   `json:"name"`
	GMBCategory string   `json:"gmb_category,omitempty"`
	Categories  []string `json:"categories,omitempty"`

	Website      string    `json:"website,omitempty"`
	Domain       string    `json:"domain,omitempty"`
	EmailPrimary string    `json:"email_primary,omitempty"`
	EmailsAll    []string  `json:"emails_all,omitempty"`
	PhonePrimary string    `json:"phone_primary,omitempty"`
	PhonesAll    []string  `json:"phones_all,omitempty"`
	PhoneType    PhoneType `json:"phone_type"`

	// WhatsappLikely is derived from PhoneType and CountryCode only.
	WhatsappLikely bool `json:"whatsapp_likely"`

	Address      string `json:"address,omitempty"`
	Street       string `json:"street,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	State        string `json:"state,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`

	TotalScore   float64 `json:"total_score"`
	ReviewsCount int     `json:"reviews_count"`
	ImagesCount  int     `json:"images_count,omitempty"`

	PermanentlyClosed bool `json:"permanently_closed"`
	TemporarilyClosed bool `json:"temporarily_closed"`
	IsClosed          bool `json:"is_closed"`

	Ecommerce        Ecommerce `json:"ecommerce"`
	IsSocialMedia    bool      `json:"is_social_media"`
	IsProviderDomain bool      `json:"is_provider_domain"`

	PlaceID     string   `json:"place_id,omitempty"`
	CID         string   `json:"cid,omitempty"`
	FID         string   `json:"fid,omitempty"`
	ScrapedAt   string   `json:"scraped_at,omitempty"`
	Source      string   `json:"source"`
	ScrapedURLs []string `json:"scraped_urls,omitempty"`

	DedupeKeyPrimary   string `json:"dedupe_key_primary,omitempty"`
	DedupeKeySecondary string `json:"dedupe_key_secondary,omitempty"`
	DedupeKeyTertiary  string `json:"dedupe_key_tertiary,omitempty"`
}

// DedupeKey returns the first non-empty dedupe key, or "" if the record
// cannot be deduplicated at all.
func (c CleanLead) DedupeKey() string {
	if c.DedupeKeyPrimary != "" {
		return c.DedupeKeyPrimary
	}
	if c.DedupeKeySecondary != "" {
		return c.DedupeKeySecondary
	}
	return c.DedupeKeyTertiary
}

// EnrichmentFlags signals which enrichment work a freshly normalized lead
// still needs. Warnings never block ingestion.
type EnrichmentFlags struct {
	MissingEmail         bool     `json:"missing_email"`
	MissingWebsite       bool     `json:"missing_website"`
	MissingDomain        bool     `json:"missing_domain"`
	MissingContactPerson bool     `json:"missing_contact_person"`
	NoDedupeKey          bool     `json:"no_dedupe_key,omitempty"`
	Warnings             []string `json:"warnings,omitempty"`
}

// Lead is the persisted entity: identity plus the normalized form, the latest
// scoring decision and the enrichment lifecycle fields. Leads are soft
// discarded through PipelineStage, never deleted.
type Lead struct {
	ID        string    `json:"id"`
	DedupeKey string    `json:"dedupe_key"`
	Clean     CleanLead `json:"clean"`

	Score ScoreResult   `json:"score"`
	Route RouteDecision `json:"route"`

	Status        LeadStatus    `json:"status"`
	PipelineStage PipelineStage `json:"pipeline_stage"`
	RoutingStatus RoutingStatus `json:"routing_status"`

	Meta map[string]any `json:"meta,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
