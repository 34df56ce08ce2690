package outreach

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/coeus-crm/leadgen-cli/internal/model"
)

// ProviderEvent is the decoded webhook payload from the outreach provider.
// LeadID comes back through the lead_id variable set at enrollment time.
type ProviderEvent struct {
	Type       string         `json:"event_type"`
	ExternalID string         `json:"event_id"`
	LeadID     string         `json:"lead_id"`
	CampaignID string         `json:"campaign_id,omitempty"`
	Email      string         `json:"email,omitempty"`
	OccurredAt time.Time      `json:"timestamp"`
	Payload    map[string]any `json:"payload,omitempty"`
}

var eventTypes = map[string]model.OutreachEventType{
	"sent":         model.EventSent,
	"opened":       model.EventOpened,
	"clicked":      model.EventClicked,
	"replied":      model.EventReplied,
	"bounced":      model.EventBounced,
	"unsubscribed": model.EventUnsubscribe,
}

// closingStatus maps terminal event types to the routing status they close
// the lead with.
var closingStatus = map[model.OutreachEventType]model.RoutingStatus{
	model.EventReplied:     model.RoutingClosedReply,
	model.EventBounced:     model.RoutingClosedBounce,
	model.EventUnsubscribe: model.RoutingClosedUnsubscribe,
}

// HandleEvent records a provider event and applies its lead transition.
// Redelivered events (same external id) are dropped without side effects;
// the returned bool is false for those.
func (s *Service) HandleEvent(ctx context.Context, ev ProviderEvent) (bool, error) {
	eventType, ok := eventTypes[ev.Type]
	if !ok {
		return false, eris.Errorf("outreach: unknown event type %q", ev.Type)
	}
	if ev.ExternalID == "" {
		return false, eris.New("outreach: event has no external id")
	}
	if ev.LeadID == "" {
		return false, eris.New("outreach: event has no lead id")
	}

	occurredAt := ev.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	meta := map[string]any{}
	if ev.CampaignID != "" {
		meta["campaign_id"] = ev.CampaignID
	}
	if ev.Email != "" {
		meta["email"] = ev.Email
	}
	for k, v := range ev.Payload {
		meta[k] = v
	}

	inserted, err := s.store.InsertOutreachEvent(ctx, model.OutreachEvent{
		LeadID:     ev.LeadID,
		Type:       eventType,
		Provider:   "instantly",
		ExternalID: ev.ExternalID,
		Meta:       meta,
		OccurredAt: occurredAt,
	})
	if err != nil {
		return false, eris.Wrap(err, "outreach: insert event")
	}
	if !inserted {
		zap.L().Debug("outreach: duplicate event dropped",
			zap.String("external_id", ev.ExternalID),
			zap.String("type", ev.Type),
		)
		return false, nil
	}

	if closed, terminal := closingStatus[eventType]; terminal {
		if err := s.closeLead(ctx, ev.LeadID, closed); err != nil {
			return true, err
		}
	}
	return true, nil
}

// closeLead parks the lead on a terminal routing status. Already-closed leads
// keep their first terminal status.
func (s *Service) closeLead(ctx context.Context, leadID string, status model.RoutingStatus) error {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return eris.Wrap(err, "outreach: load lead for close")
	}
	if lead == nil {
		return eris.Errorf("outreach: lead %s not found", leadID)
	}
	if lead.RoutingStatus.IsTerminal() {
		return nil
	}

	lead.Status = model.LeadStatusClosed
	lead.RoutingStatus = status
	switch status {
	case model.RoutingClosedReply:
		lead.PipelineStage = model.StageInterested
	default:
		lead.PipelineStage = model.StageRejected
	}
	if err := s.store.UpdateLead(ctx, lead); err != nil {
		return eris.Wrap(err, "outreach: close lead")
	}

	zap.L().Info("outreach: lead closed",
		zap.String("lead_id", leadID),
		zap.String("routing_status", string(status)),
	)
	return nil
}
