//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub001/internal/infrastructure/topology"
	"github.com/cschwartz85032/loanserve-sub001/pkg/rabbitmq"
	"github.com/cschwartz85032/loanserve-sub001/pkg/testutil"
)

func TestTopologyManager_ApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	broker := testutil.NewRabbitContainer(ctx, t)
	t.Cleanup(func() { broker.Cleanup(t) })

	conn, err := rabbitmq.Dial(rabbitmq.Config{URL: broker.URL})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	mgr := topology.NewManager(conn, quietLogger())

	report, err := mgr.Apply()
	require.NoError(t, err)
	assert.True(t, report.Ok())
	assert.Len(t, report.ExchangesDeclared, len(topology.Exchanges()))
	assert.Len(t, report.QueuesDeclared, len(topology.Queues()))

	// Redeclaring the same topology must be a no-op, not a migration.
	report, err = mgr.Apply()
	require.NoError(t, err)
	assert.True(t, report.Ok())
	assert.Empty(t, report.Recreated)
	assert.Empty(t, report.Versioned)
}

func TestTopologyManager_MigratesEmptyDriftedQueue(t *testing.T) {
	ctx := context.Background()
	broker := testutil.NewRabbitContainer(ctx, t)
	t.Cleanup(func() { broker.Cleanup(t) })

	conn, err := rabbitmq.Dial(rabbitmq.Config{URL: broker.URL})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Pre-declare a canonical quorum queue as classic to simulate drift.
	ch, err := conn.Channel()
	require.NoError(t, err)
	_, err = ch.QueueDeclare("payments.intake", true, false, false, false, nil)
	require.NoError(t, err)
	ch.Close()

	report, err := topology.NewManager(conn, quietLogger()).Apply()
	require.NoError(t, err)
	assert.True(t, report.Ok())
	assert.Contains(t, report.Recreated, "payments.intake",
		"empty drifted queue is deleted and redeclared with canonical arguments")
}
