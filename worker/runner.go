package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"conecte/mailer"
	"conecte/models"
	"conecte/store"
	"conecte/utils"
)

// TransportFactory builds the delivery transport for a sending config.
// Swappable so campaign runs can be driven against a fake in tests.
type TransportFactory func(cfg models.Config, logger *logrus.Logger) (mailer.Transport, error)

// Runner drives one campaign from its current position to completion. It
// reloads all state fresh at start, so a process restart resumes exactly
// where the logs say the campaign left off.
type Runner struct {
	store     store.Store
	registry  *Registry
	logger    *log.Logger
	slog      *logrus.Logger
	transport TransportFactory
}

func NewRunner(st store.Store, registry *Registry, logger *log.Logger, slog *logrus.Logger) *Runner {
	return &Runner{
		store:     st,
		registry:  registry,
		logger:    logger,
		slog:      slog,
		transport: mailer.ForConfig,
	}
}

// Run executes the campaign until it completes, is stopped, or errors.
// The caller must have acquired the registry entry; Run releases it.
func (r *Runner) Run(ctx context.Context, campaignID string) {
	// The campaign keeps its last-written status on an unexpected failure;
	// the next poll tick retries it if that status is still running.
	defer r.registry.Release(campaignID)
	defer func() {
		if rec := recover(); rec != nil {
			sentry.CaptureException(fmt.Errorf("campaign runner panic: %v", rec))
			r.logger.Printf("RUNNER: panic in campaign %s: %v", campaignID, rec)
		}
	}()

	if err := r.run(ctx, campaignID); err != nil {
		sentry.CaptureException(err)
		r.logger.Printf("RUNNER: campaign %s failed: %v", campaignID, err)
	}
}

func (r *Runner) run(ctx context.Context, campaignID string) error {
	campaign, err := r.store.GetCampaign(campaignID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if campaign.Status != models.CampaignStatusRunning {
		return nil
	}

	cfg, err := r.store.GetConfig()
	if err != nil {
		return err
	}

	template, err := r.store.GetTemplate(campaign.TemplateID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = r.store.UpdateCampaignStatus(campaignID, models.CampaignStatusError, "template not found")
			return nil
		}
		return err
	}

	audience, err := r.audience(*campaign)
	if err != nil {
		return err
	}
	if err := r.store.SetCampaignTotals(campaignID, len(audience)); err != nil {
		return err
	}
	if len(audience) == 0 {
		r.logger.Printf("RUNNER: campaign %s has no matching leads, completing", campaignID)
		return r.store.UpdateCampaignStatus(campaignID, models.CampaignStatusCompleted, "")
	}

	pending, err := r.pending(campaignID, audience)
	if err != nil {
		return err
	}
	r.logger.Printf("RUNNER: campaign %s: %d leads total, %d pending", campaignID, len(audience), len(pending))

	transport, err := r.transport(cfg, r.slog)
	if err != nil {
		_ = r.store.UpdateCampaignStatus(campaignID, models.CampaignStatusError, err.Error())
		return nil
	}
	defer transport.Close()

	interval := campaign.SendInterval(cfg.Method)
	batchSize := transport.BatchSize()
	if batchSize < 1 {
		batchSize = 1
	}

	for start := 0; start < len(pending); start += batchSize {
		if !r.registry.Active(campaignID) {
			r.logger.Printf("RUNNER: campaign %s stopped", campaignID)
			return nil
		}

		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		if err := r.sendUnit(*campaign, cfg, *template, transport, pending[start:end]); err != nil {
			return err
		}

		if end < len(pending) {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(interval):
			}
		}
	}

	return r.finish(campaignID)
}

// audience is every active lead matching the campaign's target tags.
func (r *Runner) audience(campaign models.Campaign) ([]models.Lead, error) {
	leads, err := r.store.GetLeads()
	if err != nil {
		return nil, err
	}
	matched := make([]models.Lead, 0, len(leads))
	for _, lead := range leads {
		if lead.Status != models.LeadStatusActive {
			continue
		}
		if !lead.HasAnyTag(campaign.TargetTags) {
			continue
		}
		matched = append(matched, lead)
	}
	return matched, nil
}

// pending filters the audience down to leads without a successful log
// entry. Failed sends stay pending and are retried on every run.
func (r *Runner) pending(campaignID string, audience []models.Lead) ([]models.Lead, error) {
	logs, err := r.store.GetLogs(campaignID)
	if err != nil {
		return nil, err
	}
	done := make(map[string]struct{}, len(logs))
	for _, entry := range logs {
		if entry.Status == models.LogStatusFailed {
			continue
		}
		done[entry.Email] = struct{}{}
	}

	remaining := make([]models.Lead, 0, len(audience))
	for _, lead := range audience {
		if _, ok := done[lead.Email]; ok {
			continue
		}
		remaining = append(remaining, lead)
	}
	return remaining, nil
}

func (r *Runner) sendUnit(campaign models.Campaign, cfg models.Config, template models.Template, transport mailer.Transport, leads []models.Lead) error {
	msgs := make([]mailer.Message, len(leads))
	for i, lead := range leads {
		logID := store.NewID()
		msgs[i] = mailer.Message{
			LogID:    logID,
			To:       lead.Email,
			ToName:   lead.Name,
			FromName: campaign.SenderName,
			Subject:  utils.RenderSubject(campaign.Subject, lead),
			HTML: utils.RenderEmail(template.HTMLContent, utils.RenderContext{
				Lead:       lead,
				ButtonLink: campaign.ButtonLink,
				BaseURL:    cfg.BaseURL,
				CampaignID: campaign.ID,
				LogID:      logID,
			}),
		}
	}

	results := transport.Send(msgs)

	entries := make([]models.DeliveryLog, len(results))
	leadByEmail := make(map[string]models.Lead, len(leads))
	for _, lead := range leads {
		leadByEmail[lead.Email] = lead
	}
	now := time.Now()
	for i, res := range results {
		entry := models.DeliveryLog{
			ID:         res.LogID,
			CampaignID: campaign.ID,
			LeadID:     leadByEmail[res.To].ID,
			Email:      res.To,
			Status:     models.LogStatusSent,
			ProviderID: res.ProviderID,
			SentAt:     now,
		}
		if res.Err != nil {
			entry.Status = models.LogStatusFailed
			entry.ErrorMsg = res.Err.Error()
		}
		entries[i] = entry
	}

	_, err := r.store.AddLogs(entries)
	return err
}

// finish re-reads the campaign so a stop that raced the last unit wins.
func (r *Runner) finish(campaignID string) error {
	campaign, err := r.store.GetCampaign(campaignID)
	if err != nil {
		return err
	}
	if campaign.Status != models.CampaignStatusRunning {
		return nil
	}
	if campaign.SentCount >= campaign.TotalLeads {
		r.logger.Printf("RUNNER: campaign %s completed (%d sent)", campaignID, campaign.SentCount)
		return r.store.UpdateCampaignStatus(campaignID, models.CampaignStatusCompleted, "")
	}
	return nil
}
