package outreach

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// simulatedClient implements Client without network access. Enrollments get
// synthetic handles and live only in memory. Used when outreach runs in
// simulation mode so the rest of the pipeline behaves exactly as it would
// against the real provider.
type simulatedClient struct {
	mu     sync.Mutex
	active map[string]bool // enrollment id -> running
}

// NewSimulatedClient creates a Client that records enrollments in memory and
// never talks to the provider.
func NewSimulatedClient() Client {
	return &simulatedClient{active: make(map[string]bool)}
}

func (c *simulatedClient) Enroll(_ context.Context, campaignID string, lead Lead, variables map[string]string) (*Enrollment, error) {
	if lead.Email == "" {
		return nil, eris.New("outreach: lead has no email")
	}

	id := "sim-" + uuid.NewString()
	c.mu.Lock()
	c.active[id] = true
	c.mu.Unlock()

	zap.L().Info("simulated enrollment",
		zap.String("enrollment_id", id),
		zap.String("campaign_id", campaignID),
		zap.String("email", lead.Email),
		zap.Int("variables", len(variables)),
	)

	return &Enrollment{
		ID:         id,
		CampaignID: campaignID,
		Email:      lead.Email,
		Simulated:  true,
	}, nil
}

func (c *simulatedClient) Pause(_ context.Context, enrollmentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[enrollmentID]; !ok {
		return eris.Errorf("outreach: unknown enrollment %s", enrollmentID)
	}
	c.active[enrollmentID] = false
	return nil
}

func (c *simulatedClient) Resume(_ context.Context, enrollmentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[enrollmentID]; !ok {
		return eris.Errorf("outreach: unknown enrollment %s", enrollmentID)
	}
	c.active[enrollmentID] = true
	return nil
}
