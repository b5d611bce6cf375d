package mailer

import (
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"conecte/models"
)

// SMTPTransport sends one message at a time over a reused SMTP
// connection. A failed send drops the connection so the next message
// gets a fresh dial.
type SMTPTransport struct {
	cfg    models.Config
	dialer *gomail.Dialer
	sender gomail.SendCloser
	logger *logrus.Logger
}

func NewSMTPTransport(cfg models.Config, logger *logrus.Logger) *SMTPTransport {
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SenderEmail, cfg.SMTPPassword)
	d.SSL = cfg.SMTPSecure
	return &SMTPTransport{cfg: cfg, dialer: d, logger: logger}
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) BatchSize() int { return 1 }

func (t *SMTPTransport) Send(msgs []Message) []Result {
	results := make([]Result, len(msgs))
	for i, msg := range msgs {
		results[i] = Result{LogID: msg.LogID, To: msg.To, Err: t.sendOne(msg)}
	}
	return results
}

func (t *SMTPTransport) sendOne(msg Message) error {
	sender, err := t.connection()
	if err != nil {
		t.logger.WithFields(logrus.Fields{
			"host":  t.cfg.SMTPHost,
			"error": err.Error(),
		}).Error("SMTP dial failed")
		return err
	}

	m := gomail.NewMessage()
	fromName := msg.FromName
	if fromName == "" {
		fromName = t.cfg.SenderName
	}
	m.SetAddressHeader("From", t.cfg.SenderEmail, fromName)
	m.SetAddressHeader("To", msg.To, msg.ToName)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if err := gomail.Send(sender, m); err != nil {
		t.logger.WithFields(logrus.Fields{
			"to":    msg.To,
			"error": err.Error(),
		}).Warn("SMTP send failed")
		t.dropConnection()
		return err
	}
	return nil
}

func (t *SMTPTransport) connection() (gomail.SendCloser, error) {
	if t.sender != nil {
		return t.sender, nil
	}
	sender, err := t.dialer.Dial()
	if err != nil {
		return nil, err
	}
	t.sender = sender
	return sender, nil
}

func (t *SMTPTransport) dropConnection() {
	if t.sender != nil {
		_ = t.sender.Close()
		t.sender = nil
	}
}

func (t *SMTPTransport) Close() error {
	if t.sender == nil {
		return nil
	}
	err := t.sender.Close()
	t.sender = nil
	return err
}
