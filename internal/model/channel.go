package model

import "time"

// ChannelType distinguishes contactable endpoint kinds.
type ChannelType string

const (
	ChannelEmail ChannelType = "email"
	ChannelPhone ChannelType = "phone"
)

// ChannelSource records where a channel value was discovered.
type ChannelSource string

const (
	SourceListings     ChannelSource = "listings_provider"
	SourceAIExtraction ChannelSource = "ai_extraction"
)

// Channel is one contactable endpoint of a lead. Unique on
// (LeadID, Type, Value); repeat discovery from any source upserts in place.
type Channel struct {
	ID        string         `json:"id"`
	LeadID    string         `json:"lead_id"`
	Type      ChannelType    `json:"type"`
	Value     string         `json:"value"`
	IsPrimary bool           `json:"is_primary"`
	Status    string         `json:"status"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Contact is a named person attached to a lead, usually AI-discovered.
// Unique on (LeadID, Email).
type Contact struct {
	ID       string `json:"id"`
	LeadID   string `json:"lead_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	Status   string `json:"status"`
}

// VerifyResult is the normalized outcome vocabulary across verification
// providers.
type VerifyResult string

const (
	VerifyDeliverable   VerifyResult = "deliverable"
	VerifyRisky         VerifyResult = "risky"
	VerifyOK            VerifyResult = "ok"
	VerifyUndeliverable VerifyResult = "undeliverable"
	VerifyUnknown       VerifyResult = "unknown"
	VerifyInvalid       VerifyResult = "invalid"
	VerifyError         VerifyResult = "error"
)

// Verified reports whether the result counts as a verified email for scoring.
func (r VerifyResult) Verified() bool {
	switch r {
	case VerifyDeliverable, VerifyRisky, VerifyOK:
		return true
	}
	return false
}

// EmailVerification is the write-once cache entry for one email address. A
// repeated verification request must short-circuit on this record.
type EmailVerification struct {
	Email      string       `json:"email"`
	Result     VerifyResult `json:"result"`
	Provider   string       `json:"provider"`
	Raw        []byte       `json:"raw,omitempty"`
	VerifiedAt time.Time    `json:"verified_at"`
}
