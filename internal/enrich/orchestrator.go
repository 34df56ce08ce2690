// Package enrich runs the per-lead enrichment state machine: content
// acquisition, AI extraction, email verification and re-scoring, with each
// step isolated so one failing provider never aborts the whole run.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/coeus-crm/leadgen-cli/internal/config"
	"github.com/coeus-crm/leadgen-cli/internal/model"
	"github.com/coeus-crm/leadgen-cli/internal/scorer"
	"github.com/coeus-crm/leadgen-cli/internal/store"
	"github.com/coeus-crm/leadgen-cli/pkg/contentfetch"
	"github.com/coeus-crm/leadgen-cli/pkg/intel"
	"github.com/coeus-crm/leadgen-cli/pkg/verifier"
)

// StepStatus is the outcome of one orchestrator step.
type StepStatus string

const (
	StepComplete StepStatus = "complete"
	StepFailed   StepStatus = "failed"
	StepSkipped  StepStatus = "skipped"
)

// StepResult records one step of an enrichment run.
type StepResult struct {
	Name     string         `json:"name"`
	Status   StepStatus     `json:"status"`
	Error    string         `json:"error,omitempty"`
	Duration int64          `json:"duration_ms"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Result summarizes one enrichment run for a lead.
type Result struct {
	LeadID         string       `json:"lead_id"`
	Skipped        bool         `json:"skipped"`
	SkipReason     string       `json:"skip_reason,omitempty"`
	Steps          []StepResult `json:"steps"`
	VerifiedEmails []string     `json:"verified_emails,omitempty"`
	NewContacts    int          `json:"new_contacts"`
	Tier           model.Tier   `json:"tier,omitempty"`
	Score          int          `json:"score"`
}

// Orchestrator drives the enrichment sequence for individual leads. It holds
// no per-lead state; a single instance is safe for concurrent use.
type Orchestrator struct {
	cfg      config.EnrichConfig
	store    store.Store
	fetcher  contentfetch.Client
	intel    intel.Client
	verifier verifier.Client
}

// New creates an Orchestrator with all dependencies.
func New(
	cfg config.EnrichConfig,
	st store.Store,
	fetcher contentfetch.Client,
	intelClient intel.Client,
	verifierClient verifier.Client,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		store:    st,
		fetcher:  fetcher,
		intel:    intelClient,
		verifier: verifierClient,
	}
}

// websiteClass buckets a lead's website for the health-check step.
func websiteClass(clean model.CleanLead) string {
	switch {
	case clean.Website == "":
		return "missing"
	case clean.IsSocialMedia:
		return "social"
	default:
		return "real"
	}
}

// placeholderEmail filters addresses that are never worth verifying.
func placeholderEmail(email string) bool {
	lower := strings.ToLower(email)
	if !strings.Contains(lower, "@") {
		return true
	}
	for _, frag := range []string{"example.", "noreply", "no-reply", "sentry.", "wixpress.com", "@domain."} {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// Enrich runs the full sequence for one lead. A lead parked on a terminal
// CLOSED_* routing status is skipped unless force is set. The returned error
// is non-nil only for the two unrecoverable cases: the lead cannot be loaded,
// or the final persistence write fails (the lead then stays visible in
// "enriching" for manual retry).
func (o *Orchestrator) Enrich(ctx context.Context, leadID string, force bool) (*Result, error) {
	lead, err := o.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: load lead %s", leadID)
	}
	if lead == nil {
		return nil, eris.Errorf("enrich: lead not found: %s", leadID)
	}

	result := &Result{LeadID: lead.ID}

	if lead.RoutingStatus.IsTerminal() && !force {
		result.Skipped = true
		result.SkipReason = "terminal routing status " + string(lead.RoutingStatus)
		return result, nil
	}
	if lead.Route.Route == model.RouteDiscarded && !force {
		result.Skipped = true
		result.SkipReason = "lead is discarded"
		return result, nil
	}

	log := zap.L().With(zap.String("lead_id", lead.ID), zap.String("name", lead.Clean.Name))
	log.Info("enrich: starting")

	step := func(name string, fn func() (map[string]any, error)) bool {
		start := time.Now()
		meta, stepErr := fn()
		sr := StepResult{
			Name:     name,
			Status:   StepComplete,
			Duration: time.Since(start).Milliseconds(),
			Metadata: meta,
		}
		if stepErr != nil {
			sr.Status = StepFailed
			sr.Error = stepErr.Error()
			log.Warn("enrich: step failed, continuing",
				zap.String("step", name),
				zap.Int64("duration_ms", sr.Duration),
				zap.Error(stepErr),
			)
		} else {
			log.Debug("enrich: step complete",
				zap.String("step", name),
				zap.Int64("duration_ms", sr.Duration),
			)
		}
		result.Steps = append(result.Steps, sr)
		return stepErr == nil
	}

	// Step 1: status transition, committed before any slow work.
	step("status_transition", func() (map[string]any, error) {
		lead.Status = model.LeadStatusEnriching
		return nil, o.store.UpdateLead(ctx, lead)
	})

	// Step 2: website health check.
	var class string
	step("website_check", func() (map[string]any, error) {
		class = websiteClass(lead.Clean)
		if lead.Meta == nil {
			lead.Meta = make(map[string]any)
		}
		lead.Meta["website_class"] = class
		return map[string]any{"class": class}, nil
	})

	// Step 3: content acquisition. Always produces some text; on any fetch
	// failure the synthetic fallback keeps the AI step alive.
	var texts []string
	step("content_fetch", func() (map[string]any, error) {
		var fetchErr error
		if class == "real" {
			fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout())
			defer cancel()
			texts, fetchErr = o.fetcher.FetchPages(fetchCtx, lead.Clean.Website, 0)
		}
		if len(texts) == 0 {
			texts = []string{syntheticText(lead.Clean)}
		}
		return map[string]any{"pages": len(texts), "synthetic": class != "real" || fetchErr != nil}, fetchErr
	})

	// Step 4: AI extraction. Unparsable output degrades to an empty result
	// inside the client; only transport errors surface here.
	bi := &intel.BusinessIntel{}
	step("ai_extraction", func() (map[string]any, error) {
		intelCtx, cancel := context.WithTimeout(ctx, o.cfg.IntelTimeout())
		defer cancel()
		got, intelErr := o.intel.Summarize(intelCtx, lead.Clean.Name, texts)
		if intelErr != nil {
			return nil, intelErr
		}
		bi = got
		return map[string]any{
			"category": bi.Category,
			"contacts": len(bi.FoundContacts),
		}, nil
	})

	// Step 5: email verification over the union of known and AI-found
	// addresses, short-circuited by the persisted cache.
	var verified []string
	step("email_verification", func() (map[string]any, error) {
		emails := o.candidateEmails(ctx, lead, bi)
		var checkErrs []string
		for _, email := range emails {
			res, vErr := o.verifyCached(ctx, email)
			if vErr != nil {
				checkErrs = append(checkErrs, fmt.Sprintf("%s: %v", email, vErr))
				continue
			}
			if res.Verified() {
				verified = append(verified, email)
			}
		}
		result.VerifiedEmails = verified
		meta := map[string]any{"checked": len(emails), "verified": len(verified)}
		if len(checkErrs) > 0 {
			return meta, eris.New("enrich: " + strings.Join(checkErrs, "; "))
		}
		return meta, nil
	})

	// Step 6: persist AI-discovered contacts and channels. Upserts keyed on
	// natural identity keep repeated runs duplicate-free.
	step("persist_contacts", func() (map[string]any, error) {
		var writeErrs []string
		for _, c := range bi.FoundContacts {
			if placeholderEmail(c.Email) {
				continue
			}
			email := strings.ToLower(c.Email)
			ch := model.Channel{
				LeadID: lead.ID,
				Type:   model.ChannelEmail,
				Value:  email,
				Status: "active",
				Meta:   map[string]any{"source": string(model.SourceAIExtraction)},
			}
			if chErr := o.store.UpsertChannel(ctx, ch); chErr != nil {
				writeErrs = append(writeErrs, chErr.Error())
				continue
			}
			contact := model.Contact{
				LeadID:   lead.ID,
				Name:     c.Name,
				Role:     c.Role,
				Email:    email,
				Verified: contains(verified, email),
				Status:   "active",
			}
			if cErr := o.store.UpsertContact(ctx, contact); cErr != nil {
				writeErrs = append(writeErrs, cErr.Error())
				continue
			}
			result.NewContacts++
		}
		meta := map[string]any{"contacts": result.NewContacts}
		if len(writeErrs) > 0 {
			return meta, eris.New("enrich: " + strings.Join(writeErrs, "; "))
		}
		return meta, nil
	})

	// Step 7: re-score with the updated verification state. The primary email
	// is promoted to the first verified address when the current one is
	// unverified or absent.
	var score model.ScoreResult
	var route model.RouteDecision
	step("rescore", func() (map[string]any, error) {
		clean := lead.Clean
		if len(verified) > 0 && !contains(verified, strings.ToLower(clean.EmailPrimary)) {
			clean.EmailPrimary = verified[0]
		}
		sig := &model.EnrichmentSignals{
			EmailVerified:  contains(verified, strings.ToLower(clean.EmailPrimary)),
			VerifiedEmails: verified,
			HasAISummary:   bi.Summary != "",
		}
		score = scorer.Score(clean, sig)
		route = scorer.Route(score, clean)
		lead.Clean = clean
		return map[string]any{"score": score.Score, "tier": string(score.Tier)}, nil
	})

	// Step 8: final write. The one step whose failure is unrecovered; the
	// lead then remains in "enriching" for operational follow-up.
	lead.Score = score
	lead.Route = route
	lead.Status = model.LeadStatusEnriched
	if score.Tier == model.TierTrash || score.Tier == model.TierDrop {
		lead.PipelineStage = model.StageDiscarded
	} else {
		lead.PipelineStage = model.StageReady
	}
	if !lead.RoutingStatus.IsTerminal() || force {
		lead.RoutingStatus = model.RoutingStatus(route.Route)
	}
	applyIntelMeta(lead, bi)
	lead.Meta["enriched_at"] = time.Now().UTC().Format(time.RFC3339)

	if err := o.store.UpdateLead(ctx, lead); err != nil {
		log.Error("enrich: final write failed, lead stuck in enriching", zap.Error(err))
		result.Steps = append(result.Steps, StepResult{Name: "final_write", Status: StepFailed, Error: err.Error()})
		return result, eris.Wrapf(err, "enrich: final write for lead %s", lead.ID)
	}
	result.Steps = append(result.Steps, StepResult{Name: "final_write", Status: StepComplete})
	result.Tier = score.Tier
	result.Score = score.Score

	log.Info("enrich: complete",
		zap.String("tier", string(score.Tier)),
		zap.Int("score", score.Score),
		zap.Int("verified_emails", len(verified)),
	)
	return result, nil
}

// candidateEmails unions persisted channel emails, the current primary, and
// AI-found addresses, lowercased and deduplicated.
func (o *Orchestrator) candidateEmails(ctx context.Context, lead *model.Lead, bi *intel.BusinessIntel) []string {
	seen := make(map[string]bool)
	var out []string
	push := func(email string) {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" || seen[email] || placeholderEmail(email) {
			return
		}
		seen[email] = true
		out = append(out, email)
	}

	channels, err := o.store.ListChannels(ctx, lead.ID)
	if err != nil {
		zap.L().Warn("enrich: list channels failed", zap.String("lead_id", lead.ID), zap.Error(err))
	}
	for _, ch := range channels {
		if ch.Type == model.ChannelEmail {
			push(ch.Value)
		}
	}
	push(lead.Clean.EmailPrimary)
	for _, c := range bi.FoundContacts {
		push(c.Email)
	}
	return out
}

// verifyCached answers from the persisted cache when possible, otherwise
// calls the provider and caches the verdict.
func (o *Orchestrator) verifyCached(ctx context.Context, email string) (model.VerifyResult, error) {
	cached, err := o.store.GetEmailVerification(ctx, email)
	if err != nil {
		return model.VerifyError, eris.Wrap(err, "verification cache read")
	}
	if cached != nil {
		return cached.Result, nil
	}

	verifyCtx, cancel := context.WithTimeout(ctx, o.cfg.VerifyTimeout())
	defer cancel()
	v, err := o.verifier.Verify(verifyCtx, email)
	if err != nil {
		return model.VerifyError, err
	}

	res := model.VerifyResult(v.Result)
	if cacheErr := o.store.SetEmailVerification(ctx, model.EmailVerification{
		Email:    email,
		Result:   res,
		Provider: "millionverifier",
		Raw:      v.Raw,
	}); cacheErr != nil {
		zap.L().Warn("enrich: verification cache write failed", zap.String("email", email), zap.Error(cacheErr))
	}
	return res, nil
}

// syntheticText builds the fallback analysis text from listing fields.
func syntheticText(clean model.CleanLead) string {
	var b strings.Builder
	b.WriteString("Negocio: " + clean.Name + "\n")
	if clean.GMBCategory != "" {
		b.WriteString("Categoria: " + clean.GMBCategory + "\n")
	}
	if len(clean.Categories) > 0 {
		b.WriteString("Categorias: " + strings.Join(clean.Categories, ", ") + "\n")
	}
	if clean.City != "" {
		b.WriteString("Ciudad: " + clean.City + "\n")
	}
	if clean.Address != "" {
		b.WriteString("Direccion: " + clean.Address + "\n")
	}
	if clean.ReviewsCount > 0 {
		fmt.Fprintf(&b, "Resenas: %d (puntuacion %.1f)\n", clean.ReviewsCount, clean.TotalScore)
	}
	return b.String()
}

// applyIntelMeta copies the non-empty extraction fields onto lead meta.
func applyIntelMeta(lead *model.Lead, bi *intel.BusinessIntel) {
	if lead.Meta == nil {
		lead.Meta = make(map[string]any)
	}
	if bi.Summary != "" {
		lead.Meta["summary"] = bi.Summary
	}
	if bi.Category != "" {
		lead.Meta["category"] = bi.Category
	}
	if len(bi.Keywords) > 0 {
		lead.Meta["keywords"] = bi.Keywords
	}
	if bi.Icebreaker != "" {
		lead.Meta["icebreaker"] = bi.Icebreaker
	}
	if bi.ContextLine != "" {
		lead.Meta["context_line"] = bi.ContextLine
	}
	if bi.FollowUpObservation != "" {
		lead.Meta["follow_up_observation"] = bi.FollowUpObservation
	}
	if len(bi.EcommerceSignals) > 0 {
		lead.Meta["ecommerce_signals"] = bi.EcommerceSignals
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
