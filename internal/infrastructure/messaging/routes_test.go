package messaging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/event"
	"github.com/cschwartz85032/loanserve-sub001/internal/infrastructure/messaging"
	"github.com/cschwartz85032/loanserve-sub001/internal/infrastructure/topology"
)

func TestRouteFor_KnownEventTypes(t *testing.T) {
	route, err := messaging.RouteFor(event.TypePaymentPosted)
	require.NoError(t, err)
	assert.Equal(t, "payments.topic", route.Exchange)
	assert.Equal(t, "payment.posted", route.RoutingKey)

	// Started drives the run worker queue; finished only feeds the audit tap,
	// so a finished event can never bounce a run back into execution.
	route, err = messaging.RouteFor(event.TypeServicingRunStarted)
	require.NoError(t, err)
	assert.Equal(t, "servicing.direct", route.Exchange)
	assert.Equal(t, "servicing.run", route.RoutingKey)

	route, err = messaging.RouteFor(event.TypeServicingRunFinished)
	require.NoError(t, err)
	assert.Equal(t, "audit.topic", route.Exchange)
	assert.Equal(t, "servicing.run.finished", route.RoutingKey)

	route, err = messaging.RouteFor(event.TypeExceptionOpened)
	require.NoError(t, err)
	assert.Equal(t, "notifications.topic", route.Exchange)
}

func TestRouteFor_UnknownEventType(t *testing.T) {
	_, err := messaging.RouteFor("payment.teleported")
	assert.Error(t, err)
}

// Every route must publish to an exchange the canonical topology declares.
func TestRouteFor_ExchangesAreDeclared(t *testing.T) {
	declared := map[string]bool{}
	for _, e := range topology.Exchanges() {
		declared[e.Name] = true
	}

	for _, eventType := range []string{
		event.TypePaymentPosted,
		event.TypePaymentReversed,
		event.TypePaymentReturned,
		event.TypeServicingRunStarted,
		event.TypeServicingRunFinished,
		event.TypeReconVariance,
		event.TypeExceptionOpened,
	} {
		route, err := messaging.RouteFor(eventType)
		require.NoError(t, err, eventType)
		assert.True(t, declared[route.Exchange],
			"%s routes to undeclared exchange %s", eventType, route.Exchange)
	}
}
