package rabbitmq

import (
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection wraps a single AMQP connection. Channels are not safe for
// concurrent use in AMQP 0-9-1, so each worker asks the connection for its
// own channel; topology code additionally uses throwaway channels because a
// precondition failure closes the channel it happened on.
type Connection struct {
	mu   sync.Mutex
	conn *amqp.Connection
	cfg  Config
}

// Dial opens a connection to the broker.
func Dial(cfg Config) (*Connection, error) {
	cfg = cfg.WithDefaults()
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq: broker URL is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial %s: %w", cfg.VHost, err)
	}

	return &Connection{conn: conn, cfg: cfg}, nil
}

// Config returns the connection configuration.
func (c *Connection) Config() Config {
	return c.cfg
}

// Channel opens a new channel on the connection.
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		return nil, errors.New("rabbitmq: connection closed")
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	return ch, nil
}

// Close closes the underlying connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("rabbitmq: close connection: %w", err)
	}
	return nil
}

// IsPreconditionFailed reports whether err is an AMQP PRECONDITION_FAILED
// (code 406), the broker's answer to a redeclare with mismatched arguments.
func IsPreconditionFailed(err error) bool {
	var amqpErr *amqp.Error
	if !errors.As(err, &amqpErr) {
		return false
	}
	return amqpErr.Code == amqp.PreconditionFailed
}
