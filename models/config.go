package models

// Delivery methods selectable in the marketing config.
const (
	MethodSMTP     = "smtp"
	MethodProvider = "provider"
)

// Config is the runtime marketing configuration. It lives in the document
// store (single object, merge-updated) rather than in the environment so
// operators can change SMTP/provider credentials without a restart.
type Config struct {
	ID uint `json:"-" gorm:"primaryKey"`

	Method      string `json:"method"`
	SenderEmail string `json:"senderEmail"`
	SenderName  string `json:"senderName"`

	// Direct SMTP submission
	SMTPHost     string `json:"smtpHost"`
	SMTPPort     int    `json:"smtpPort"`
	SMTPSecure   bool   `json:"smtpSecure"`
	SMTPPassword string `json:"smtpPassword"`

	// Batch HTTP provider
	ProviderAPIKey    string `json:"providerApiKey"`
	ProviderEndpoint  string `json:"providerEndpoint"`
	ProviderFromEmail string `json:"providerFromEmail"`

	// Sentry DSN for error reporting; empty disables it
	SentryDSN string `json:"sentryDsn"`

	BaseURL string `json:"baseUrl"`
}

// DefaultConfig seeds a fresh document store.
func DefaultConfig() Config {
	return Config{
		ID:         1,
		Method:     MethodSMTP,
		SenderName: "Conecte",
		SMTPPort:   465,
		SMTPSecure: true,
		BaseURL:    "http://localhost:3000",
	}
}
