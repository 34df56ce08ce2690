// Package scorer computes the outreach score, tier and routing decision for a
// clean lead. Both functions are pure: same input, same output, same reason
// list, byte for byte.
package scorer

import "github.com/coeus-crm/leadgen-cli/internal/model"

// Channel point values. Email dominates because it is the only channel the
// outreach provider can sequence automatically.
const (
	pointsVerifiedEmail   = 35
	pointsUnverifiedEmail = 15
	pointsWebsite         = 10
	pointsSocialWebsite   = 3
	pointsMobilePhone     = 15
	pointsLandlinePhone   = 5
	pointsAISummary       = 10
	pointsEcommerce       = 5
)

// Score evaluates one clean lead, optionally with post-enrichment signals.
// A closed business short-circuits to score 0 / DROP.
func Score(lead model.CleanLead, sig *model.EnrichmentSignals) model.ScoreResult {
	if lead.IsClosed {
		return model.ScoreResult{
			Score:   0,
			Tier:    model.TierDrop,
			Reasons: []model.ScoreReason{{Reason: "business closed", Points: 0}},
		}
	}

	var (
		total   int
		reasons []model.ScoreReason
	)
	add := func(reason string, points int) {
		total += points
		reasons = append(reasons, model.ScoreReason{Reason: reason, Points: points})
	}

	verified := sig != nil && sig.EmailVerified
	hasEmail := lead.EmailPrimary != ""
	hasMobile := lead.PhoneType == model.PhoneMobile || lead.WhatsappLikely
	hasLandline := lead.PhonePrimary != "" && lead.PhoneType == model.PhoneLandline

	// Email channel.
	switch {
	case verified:
		add("verified email", pointsVerifiedEmail)
	case hasEmail:
		add("unverified email", pointsUnverifiedEmail)
	}

	// Website channel.
	switch {
	case lead.Website != "" && !lead.IsSocialMedia:
		add("website", pointsWebsite)
	case lead.Website != "":
		add("social-only website", pointsSocialWebsite)
	}

	// Phone / WhatsApp channel.
	switch {
	case hasMobile:
		add("mobile phone", pointsMobilePhone)
	case hasLandline:
		add("landline phone", pointsLandlinePhone)
	}

	// Social proof: review volume.
	switch {
	case lead.ReviewsCount >= 100:
		add("reviews>=100", 15)
	case lead.ReviewsCount >= 50:
		add("reviews>=50", 10)
	case lead.ReviewsCount >= 10:
		add("reviews>=10", 5)
	}

	// Social proof: rating.
	switch {
	case lead.TotalScore >= 4.5:
		add("rating>=4.5", 10)
	case lead.TotalScore >= 4.0:
		add("rating>=4.0", 5)
	}

	// Business-intelligence bonus.
	if sig != nil && sig.HasAISummary {
		add("ai summary", pointsAISummary)
	}
	if lead.Ecommerce.IsEcommerce {
		add("ecommerce signals", pointsEcommerce)
	}

	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}

	return model.ScoreResult{
		Score:   total,
		Tier:    tierFor(verified, hasEmail, hasMobile, hasLandline),
		Reasons: reasons,
	}
}

// tierFor applies the fixed priority order; first match wins. A verified or
// primary email qualifies for the email tiers.
func tierFor(verified, hasEmail, hasMobile, hasLandline bool) model.Tier {
	qualEmail := verified || hasEmail
	switch {
	case qualEmail && hasMobile:
		return model.TierGold
	case qualEmail:
		return model.TierSilver
	case hasMobile:
		return model.TierWhatsapp
	case hasLandline:
		return model.TierColdcall
	default:
		return model.TierTrash
	}
}
