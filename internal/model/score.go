package model

// Tier is the outreach-priority label derived from contactability and
// verification state. Priority order is fixed; numeric score never overrides it.
type Tier string

const (
	TierGold     Tier = "GOLD"     // verified/primary email and mobile phone
	TierSilver   Tier = "SILVER"   // verified/primary email, no mobile
	TierWhatsapp Tier = "WHATSAPP" // no email, mobile phone
	TierColdcall Tier = "COLDCALL" // no email, landline only
	TierTrash    Tier = "TRASH"    // no usable channel
	TierDrop     Tier = "DROP"     // closed business, terminal
)

// ScoreReason is one audit entry of the scoring breakdown. The reason list is
// ordered by evaluation and reproduced verbatim for identical input.
type ScoreReason struct {
	Reason string `json:"reason"`
	Points int    `json:"points"`
}

// ScoreResult is the outcome of scoring a clean lead.
type ScoreResult struct {
	Score   int           `json:"score"`
	Tier    Tier          `json:"tier"`
	Reasons []ScoreReason `json:"reasons"`
}

// Route is the pipeline's next-action decision.
type Route string

const (
	RouteOutreachReady Route = "OUTREACH_READY"
	RouteEnrich        Route = "ENRICH"
	RouteDiscarded     Route = "DISCARDED"
)

// ChannelAvailability describes which outreach channels a lead supports.
type ChannelAvailability struct {
	Email     bool      `json:"email"`
	Whatsapp  bool      `json:"whatsapp"`
	PhoneCall bool      `json:"phone_call"`
	PhoneType PhoneType `json:"phone_type"`
}

// RouteDecision pairs a route with the channel descriptor it was derived
// from. Never persisted independently of the lead.
type RouteDecision struct {
	Route   Route               `json:"route"`
	Channel ChannelAvailability `json:"channel"`
}

// EnrichmentSignals carries post-enrichment state back into scoring.
type EnrichmentSignals struct {
	EmailVerified  bool     `json:"email_verified"`
	VerifiedEmails []string `json:"verified_emails,omitempty"`
	HasAISummary   bool     `json:"has_ai_summary"`
}
