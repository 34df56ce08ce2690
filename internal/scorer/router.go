package scorer

import "github.com/coeus-crm/leadgen-cli/internal/model"

// Route maps a score result plus channel availability onto the next-action
// decision. Closed businesses are always discarded; leads with no channel at
// all go to enrichment so contact discovery gets a chance before the lead is
// written off.
func Route(score model.ScoreResult, lead model.CleanLead) model.RouteDecision {
	channel := model.ChannelAvailability{
		Email:     lead.EmailPrimary != "",
		Whatsapp:  lead.WhatsappLikely,
		PhoneCall: lead.PhonePrimary != "",
		PhoneType: lead.PhoneType,
	}
	if channel.PhoneType == "" {
		channel.PhoneType = model.PhoneUnknown
	}

	decision := model.RouteDecision{Channel: channel}

	switch {
	case score.Tier == model.TierDrop:
		decision.Route = model.RouteDiscarded
	case !channel.Email && !channel.Whatsapp && !channel.PhoneCall:
		decision.Route = model.RouteEnrich
	case score.Tier == model.TierTrash:
		decision.Route = model.RouteDiscarded
	case channel.Email:
		decision.Route = model.RouteOutreachReady
	case channel.Whatsapp || channel.PhoneCall:
		decision.Route = model.RouteOutreachReady
	default:
		decision.Route = model.RouteEnrich
	}

	return decision
}
