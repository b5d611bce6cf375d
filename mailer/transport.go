package mailer

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"conecte/models"
)

// Message is one personalized email ready to hand to a transport.
type Message struct {
	LogID    string
	To       string
	ToName   string
	FromName string
	Subject  string
	HTML     string
}

// Result is the outcome of one message. A nil Err means the message was
// accepted; ProviderID is set only when the transport returns one.
type Result struct {
	LogID      string
	To         string
	ProviderID string
	Err        error
}

// Transport delivers personalized messages. Callers feed it slices of at
// most BatchSize messages and get one Result per message back, in order.
type Transport interface {
	Name() string
	BatchSize() int
	Send(msgs []Message) []Result
	Close() error
}

// ForConfig picks the transport for the configured sending method.
func ForConfig(cfg models.Config, logger *logrus.Logger) (Transport, error) {
	switch cfg.Method {
	case models.MethodProvider:
		return NewProviderTransport(cfg, logger), nil
	case models.MethodSMTP, "":
		return NewSMTPTransport(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown sending method %q", cfg.Method)
	}
}

func failAll(msgs []Message, err error) []Result {
	results := make([]Result, len(msgs))
	for i, m := range msgs {
		results[i] = Result{LogID: m.LogID, To: m.To, Err: err}
	}
	return results
}
