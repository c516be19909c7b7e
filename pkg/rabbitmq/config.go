package rabbitmq

import "time"

// Config holds AMQP broker connection parameters.
type Config struct {
	// URL is the AMQP 0-9-1 connection string (BROKER_URL).
	URL string
	// MgmtURL is the management HTTP API base (BROKER_MGMT_URL); only the
	// topology validator consumes it.
	MgmtURL string
	// VHost is the broker virtual host (BROKER_VHOST, default "/").
	VHost string

	// ConfirmTimeout bounds the wait for a publisher confirm.
	ConfirmTimeout time.Duration
	// MgmtTimeout bounds management HTTP calls.
	MgmtTimeout time.Duration
}

// WithDefaults fills zero-valued tuning fields.
func (c Config) WithDefaults() Config {
	if c.VHost == "" {
		c.VHost = "/"
	}
	if c.ConfirmTimeout == 0 {
		c.ConfirmTimeout = 10 * time.Second
	}
	if c.MgmtTimeout == 0 {
		c.MgmtTimeout = 10 * time.Second
	}
	return c
}
