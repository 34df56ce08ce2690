// Package outreach enrolls enrichment-ready leads into provider campaigns and
// folds provider webhook events back onto lead state.
package outreach

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/coeus-crm/leadgen-cli/internal/config"
	"github.com/coeus-crm/leadgen-cli/internal/model"
	"github.com/coeus-crm/leadgen-cli/internal/store"
	"github.com/coeus-crm/leadgen-cli/pkg/outreach"
)

// SequenceStep is one templated touch in a campaign sequence.
type SequenceStep struct {
	Subject   string `yaml:"subject"`
	Body      string `yaml:"body"`
	DelayDays int    `yaml:"delay_days"`
}

// Campaign is a YAML-defined sequence bound to a provider campaign id.
type Campaign struct {
	Name       string         `yaml:"name"`
	ProviderID string         `yaml:"provider_campaign_id"`
	Tiers      []model.Tier   `yaml:"tiers,omitempty"`
	Steps      []SequenceStep `yaml:"steps"`
}

// accepts reports whether the campaign takes leads of the given tier. An
// empty tier list accepts everything.
func (c Campaign) accepts(tier model.Tier) bool {
	if len(c.Tiers) == 0 {
		return true
	}
	for _, t := range c.Tiers {
		if t == tier {
			return true
		}
	}
	return false
}

// LoadCampaigns reads every *.yaml/*.yml file in dir into a Campaign keyed by
// name. A missing dir yields an empty map.
func LoadCampaigns(dir string) (map[string]Campaign, error) {
	campaigns := make(map[string]Campaign)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return campaigns, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "outreach: read campaign dir")
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, eris.Wrapf(err, "outreach: read campaign %s", entry.Name())
		}
		var c Campaign
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, eris.Wrapf(err, "outreach: parse campaign %s", entry.Name())
		}
		if c.Name == "" {
			c.Name = strings.TrimSuffix(entry.Name(), ext)
		}
		if c.ProviderID == "" {
			return nil, eris.Errorf("outreach: campaign %s has no provider_campaign_id", c.Name)
		}
		campaigns[c.Name] = c
	}
	return campaigns, nil
}

// enrollConcurrency bounds parallel provider enrollments.
const enrollConcurrency = 5

// EnrollStats summarizes one enrollment pass.
type EnrollStats struct {
	Candidates int `json:"candidates"`
	Enrolled   int `json:"enrolled"`
	NoEmail    int `json:"no_email"`
	WrongTier  int `json:"wrong_tier"`
	Failed     int `json:"failed"`
}

// Service enrolls ready leads and applies provider events.
type Service struct {
	cfg       config.OutreachConfig
	store     store.Store
	client    outreach.Client
	campaigns map[string]Campaign
}

// NewService loads campaign templates from cfg.CampaignDir and wires the
// provider client. Pass a simulated client when cfg is in simulation mode.
func NewService(cfg config.OutreachConfig, st store.Store, client outreach.Client) (*Service, error) {
	campaigns, err := LoadCampaigns(cfg.CampaignDir)
	if err != nil {
		return nil, err
	}
	return &Service{cfg: cfg, store: st, client: client, campaigns: campaigns}, nil
}

// Campaign returns a loaded campaign by name.
func (s *Service) Campaign(name string) (Campaign, bool) {
	c, ok := s.campaigns[name]
	return c, ok
}

// Campaigns returns every loaded campaign sorted by name.
func (s *Service) Campaigns() []Campaign {
	out := make([]Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EnrollReady enrolls leads in the ready stage into the named campaign. An
// empty name falls back to the configured default. Per-lead failures are
// counted, never fatal.
func (s *Service) EnrollReady(ctx context.Context, campaignName string, filter store.LeadFilter) (*EnrollStats, error) {
	if campaignName == "" {
		campaignName = s.cfg.DefaultCampaign
	}
	campaign, ok := s.campaigns[campaignName]
	if !ok {
		return nil, eris.Errorf("outreach: unknown campaign %q", campaignName)
	}

	if filter.Stage == "" {
		filter.Stage = model.StageReady
	}
	leads, err := s.store.ListLeads(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "outreach: list ready leads")
	}

	log := zap.L().With(zap.String("campaign", campaignName))
	stats := &EnrollStats{Candidates: len(leads)}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(enrollConcurrency)

	for i := range leads {
		lead := &leads[i]
		if !campaign.accepts(lead.Score.Tier) {
			stats.WrongTier++
			continue
		}
		email := lead.Clean.EmailPrimary
		if email == "" {
			stats.NoEmail++
			continue
		}

		g.Go(func() error {
			enrollment, err := s.client.Enroll(ctx, campaign.ProviderID, outreach.Lead{
				Email:       email,
				CompanyName: lead.Clean.Name,
			}, s.variables(lead))
			if err != nil {
				mu.Lock()
				stats.Failed++
				mu.Unlock()
				log.Warn("outreach: enrollment failed", zap.String("lead_id", lead.ID), zap.Error(err))
				return nil
			}
			mu.Lock()
			stats.Enrolled++
			mu.Unlock()

			lead.PipelineStage = model.StageContacted
			if lead.Meta == nil {
				lead.Meta = make(map[string]any)
			}
			lead.Meta["enrollment_id"] = enrollment.ID
			lead.Meta["campaign"] = campaignName
			if err := s.store.UpdateLead(ctx, lead); err != nil {
				log.Warn("outreach: lead update after enrollment failed", zap.String("lead_id", lead.ID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info("outreach: enrollment pass done",
		zap.Int("candidates", stats.Candidates),
		zap.Int("enrolled", stats.Enrolled),
		zap.Int("no_email", stats.NoEmail),
		zap.Int("wrong_tier", stats.WrongTier),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

// variables builds the personalization payload from lead data and the intel
// stored on meta during enrichment.
func (s *Service) variables(lead *model.Lead) map[string]string {
	vars := map[string]string{
		"lead_id":       lead.ID,
		"business_name": lead.Clean.Name,
		"city":          lead.Clean.City,
		"category":      lead.Clean.GMBCategory,
	}
	for _, key := range []string{"icebreaker", "context_line", "summary", "follow_up_observation"} {
		if v, ok := lead.Meta[key].(string); ok && v != "" {
			vars[key] = v
		}
	}
	return vars
}
