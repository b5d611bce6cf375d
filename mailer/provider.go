package mailer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"conecte/models"
)

const (
	defaultProviderEndpoint = "https://api.resend.com"
	providerBatchLimit      = 100
)

// ProviderTransport submits message batches to the HTTP sending provider.
// The provider answers with one id per message, in submission order, and
// those ids are what later webhook events are keyed by.
type ProviderTransport struct {
	cfg    models.Config
	client *http.Client
	logger *logrus.Logger
}

func NewProviderTransport(cfg models.Config, logger *logrus.Logger) *ProviderTransport {
	return &ProviderTransport{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

func (t *ProviderTransport) Name() string { return "provider" }

func (t *ProviderTransport) BatchSize() int { return providerBatchLimit }

type providerEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type providerBatchResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (t *ProviderTransport) Send(msgs []Message) []Result {
	if len(msgs) == 0 {
		return nil
	}

	payload := make([]providerEmail, len(msgs))
	for i, msg := range msgs {
		payload[i] = providerEmail{
			From:    t.fromHeader(msg),
			To:      []string{msg.To},
			Subject: msg.Subject,
			HTML:    msg.HTML,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return failAll(msgs, err)
	}

	req, err := http.NewRequest(http.MethodPost, t.endpoint()+"/emails/batch", bytes.NewReader(body))
	if err != nil {
		return failAll(msgs, err)
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.ProviderAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.WithFields(logrus.Fields{
			"batch_size": len(msgs),
			"error":      err.Error(),
		}).Error("provider batch request failed")
		return failAll(msgs, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		t.logger.WithFields(logrus.Fields{
			"batch_size": len(msgs),
			"status":     resp.StatusCode,
		}).Error("provider rejected batch")
		return failAll(msgs, err)
	}

	results := make([]Result, len(msgs))
	for i, msg := range msgs {
		results[i] = Result{LogID: msg.LogID, To: msg.To}
	}

	// Ids map to messages by position. A malformed or short answer is not
	// a delivery failure: the provider accepted the batch, so the sends
	// count, they just lose webhook correlation.
	var parsed providerBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil || len(parsed.Data) != len(msgs) {
		t.logger.WithFields(logrus.Fields{
			"batch_size": len(msgs),
			"ids":        len(parsed.Data),
		}).Warn("provider response shape unexpected, sends recorded without ids")
		return results
	}
	for i := range results {
		results[i].ProviderID = parsed.Data[i].ID
	}
	return results
}

func (t *ProviderTransport) fromHeader(msg Message) string {
	from := t.cfg.ProviderFromEmail
	if from == "" {
		from = t.cfg.SenderEmail
	}
	name := msg.FromName
	if name == "" {
		name = t.cfg.SenderName
	}
	if name == "" {
		return from
	}
	return fmt.Sprintf("%s <%s>", name, from)
}

func (t *ProviderTransport) endpoint() string {
	if t.cfg.ProviderEndpoint != "" {
		return strings.TrimRight(t.cfg.ProviderEndpoint, "/")
	}
	return defaultProviderEndpoint
}

func (t *ProviderTransport) Close() error { return nil }
