package worker

import (
	"context"
	"log"
	"time"

	"github.com/sirupsen/logrus"

	"conecte/models"
	"conecte/store"
)

const pollInterval = 10 * time.Second

// Poller is the campaign scheduler. Every tick it promotes due scheduled
// campaigns to running and makes sure every running campaign has a
// runner. Because it keys off stored status, campaigns that were running
// when the process died are picked up again on the first tick.
type Poller struct {
	store    store.Store
	registry *Registry
	runner   *Runner
	logger   *log.Logger
}

func NewPoller(st store.Store, registry *Registry, logger *log.Logger, slog *logrus.Logger) *Poller {
	return &Poller{
		store:    st,
		registry: registry,
		runner:   NewRunner(st, registry, logger, slog),
		logger:   logger,
	}
}

func (p *Poller) Start(ctx context.Context) {
	p.logger.Println("Starting campaign poller...")
	ticker := time.NewTicker(pollInterval)

	p.tick(ctx)
	for {
		select {
		case <-ticker.C:
			p.tick(ctx)
		case <-ctx.Done():
			p.logger.Println("Stopping campaign poller...")
			ticker.Stop()
			return
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	campaigns, err := p.store.GetCampaigns()
	if err != nil {
		p.logger.Printf("POLLER: failed to load campaigns: %v", err)
		return
	}

	now := time.Now()
	for _, campaign := range campaigns {
		switch campaign.Status {
		case models.CampaignStatusScheduled:
			if campaign.ScheduledAt == nil || campaign.ScheduledAt.After(now) {
				continue
			}
			p.logger.Printf("POLLER: campaign %s is due, promoting to running", campaign.ID)
			if err := p.store.UpdateCampaignStatus(campaign.ID, models.CampaignStatusRunning, ""); err != nil {
				p.logger.Printf("POLLER: failed to promote campaign %s: %v", campaign.ID, err)
				continue
			}
			p.launch(ctx, campaign.ID)
		case models.CampaignStatusRunning:
			p.launch(ctx, campaign.ID)
		}
	}
}

func (p *Poller) launch(ctx context.Context, campaignID string) {
	if !p.registry.Acquire(campaignID) {
		return
	}
	p.logger.Printf("POLLER: launching runner for campaign %s", campaignID)
	go p.runner.Run(ctx, campaignID)
}
