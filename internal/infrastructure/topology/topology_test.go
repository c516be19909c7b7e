package topology_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub001/internal/infrastructure/topology"
	"github.com/cschwartz85032/loanserve-sub001/pkg/rabbitmq"
)

func queueByName(t *testing.T, name string) (rabbitmq.QueueSpec, bool) {
	t.Helper()
	for _, q := range topology.Queues() {
		if q.Name == name {
			return q, true
		}
	}
	return rabbitmq.QueueSpec{}, false
}

func TestTopology_NamesAreUnique(t *testing.T) {
	queues := map[string]bool{}
	for _, q := range topology.Queues() {
		assert.False(t, queues[q.Name], "duplicate queue %s", q.Name)
		queues[q.Name] = true
	}

	exchanges := map[string]bool{}
	for _, e := range topology.Exchanges() {
		assert.False(t, exchanges[e.Name], "duplicate exchange %s", e.Name)
		exchanges[e.Name] = true
	}
}

func TestTopology_BindingsTargetDeclaredExchanges(t *testing.T) {
	declared := map[string]bool{}
	for _, e := range topology.Exchanges() {
		declared[e.Name] = true
	}
	for _, q := range topology.Queues() {
		require.NotEmpty(t, q.Bindings, "queue %s has no bindings", q.Name)
		for _, b := range q.Bindings {
			assert.True(t, declared[b.Exchange],
				"queue %s binds to undeclared exchange %s", q.Name, b.Exchange)
		}
	}
}

func TestTopology_QuorumQueuesCarryDeliveryLimit(t *testing.T) {
	for _, q := range topology.Queues() {
		if q.QueueType() != "quorum" {
			continue
		}
		limit, ok := q.Args["x-delivery-limit"].(int64)
		require.True(t, ok, "quorum queue %s has no delivery limit", q.Name)
		assert.Equal(t, int64(topology.DeliveryLimit), limit, "queue %s", q.Name)
	}
}

// Quorum queues refuse the x-max-priority argument; the canonical set must
// never carry it on any queue.
func TestTopology_NoQueueDeclaresMaxPriority(t *testing.T) {
	for _, q := range topology.Queues() {
		_, set := q.MaxPriority()
		assert.False(t, set, "queue %s declares x-max-priority", q.Name)
	}
}

func TestTopology_DeadLetterTargetsAreRoutable(t *testing.T) {
	// Collect every routing key bound on dlx.main.
	routable := map[string]bool{}
	for _, q := range topology.Queues() {
		for _, b := range q.Bindings {
			if b.Exchange == "dlx.main" {
				routable[b.RoutingKey] = true
			}
		}
	}

	for _, q := range topology.Queues() {
		dlx, hasDLX := q.Args["x-dead-letter-exchange"].(string)
		key, hasKey := q.Args["x-dead-letter-routing-key"].(string)
		if !hasDLX {
			assert.False(t, hasKey, "queue %s has a DLQ key without an exchange", q.Name)
			continue
		}
		assert.Equal(t, "dlx.main", dlx, "queue %s", q.Name)
		require.True(t, hasKey, "queue %s dead-letters without a routing key", q.Name)
		assert.True(t, routable[key],
			"queue %s dead-letters to %s, which no queue consumes", q.Name, key)
	}
}

func TestTopology_DLQNamesExist(t *testing.T) {
	names := topology.DLQNames()
	require.NotEmpty(t, names)
	for _, name := range names {
		q, ok := queueByName(t, name)
		require.True(t, ok, "DLQ %s is not declared", name)
		assert.Equal(t, "classic", q.QueueType(), "DLQ %s", name)
	}
}

func TestTopology_WorkQueuesAreQuorum(t *testing.T) {
	for _, name := range []string{
		"payments.intake", "payments.processing", "payments.reversal",
		"payments.returned", "servicing.runs", "reconciliation.variances",
	} {
		q, ok := queueByName(t, name)
		require.True(t, ok, "queue %s is not declared", name)
		assert.Equal(t, "quorum", q.QueueType(), "queue %s", name)
	}
}
