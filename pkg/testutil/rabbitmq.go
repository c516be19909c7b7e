package testutil

import (
	"context"
	"testing"
	"time"

	tcrabbit "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

// RabbitContainer wraps a testcontainers RabbitMQ instance.
type RabbitContainer struct {
	Container *tcrabbit.RabbitMQContainer
	URL       string
}

// NewRabbitContainer starts a RabbitMQ broker container for testing.
// The caller should defer container.Cleanup(t).
func NewRabbitContainer(ctx context.Context, t *testing.T) *RabbitContainer {
	t.Helper()

	container, err := tcrabbit.Run(ctx, "rabbitmq:3.13-management-alpine")
	if err != nil {
		t.Fatalf("failed to start rabbitmq container: %v", err)
	}

	amqpURL, err := container.AmqpURL(ctx)
	if err != nil {
		t.Fatalf("failed to get amqp url: %v", err)
	}

	return &RabbitContainer{
		Container: container,
		URL:       amqpURL,
	}
}

// Cleanup terminates the container.
func (rc *RabbitContainer) Cleanup(t *testing.T) {
	t.Helper()

	if rc.Container != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := rc.Container.Terminate(ctx); err != nil {
			t.Logf("warning: failed to terminate rabbitmq container: %v", err)
		}
	}
}
