package messaging

import (
	"fmt"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/event"
)

// Route is the exchange and routing key an event type publishes to.
type Route struct {
	Exchange   string
	RoutingKey string
}

// routes is the declared mapping from event type to broker destination. An
// event type without a route is a programming error surfaced at dispatch.
var routes = map[string]Route{
	event.TypePaymentPosted:        {Exchange: "payments.topic", RoutingKey: "payment.posted"},
	event.TypePaymentReversed:      {Exchange: "payments.topic", RoutingKey: "payment.reversed"},
	event.TypePaymentReturned:      {Exchange: "payments.topic", RoutingKey: "payment.returned"},
	event.TypeServicingRunStarted:  {Exchange: "servicing.direct", RoutingKey: "servicing.run"},
	event.TypeServicingRunFinished: {Exchange: "audit.topic", RoutingKey: "servicing.run.finished"},
	event.TypeReconVariance:        {Exchange: "reconciliation.topic", RoutingKey: "reconciliation.variance"},
	event.TypeExceptionOpened:      {Exchange: "notifications.topic", RoutingKey: "notify.dashboard.exception"},
}

// RouteFor resolves the destination for an event type.
func RouteFor(eventType string) (Route, error) {
	r, ok := routes[eventType]
	if !ok {
		return Route{}, fmt.Errorf("messaging: no route for event type %q", eventType)
	}
	return r, nil
}
