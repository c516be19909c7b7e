package topology

import (
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cschwartz85032/loanserve-sub001/pkg/rabbitmq"
)

// The canonical broker topology. Every environment declares exactly this;
// drift is detected by the validator and repaired by the manager.

// DeliveryLimit bounds redeliveries on quorum work queues before the broker
// dead-letters the message.
const DeliveryLimit = 6

// Exchanges returns the canonical exchange set.
func Exchanges() []rabbitmq.ExchangeSpec {
	return []rabbitmq.ExchangeSpec{
		{Name: "payments.topic", Kind: "topic"},
		{Name: "payments.dlq", Kind: "direct"},
		{Name: "documents.direct", Kind: "direct"},
		{Name: "dlx.main", Kind: "topic"},
		{Name: "audit.topic", Kind: "topic"},
		{Name: "notifications.topic", Kind: "topic"},
		{Name: "servicing.direct", Kind: "direct"},
		{Name: "settlement.topic", Kind: "topic"},
		{Name: "reconciliation.topic", Kind: "topic"},
		{Name: "escrow.topic", Kind: "topic"},
		{Name: "investor.direct", Kind: "direct"},
	}
}

func quorumArgs(dlqKey string) amqp.Table {
	return amqp.Table{
		"x-queue-type":              "quorum",
		"x-delivery-limit":          int64(DeliveryLimit),
		"x-dead-letter-exchange":    "dlx.main",
		"x-dead-letter-routing-key": dlqKey,
	}
}

func classicArgs(dlqKey string) amqp.Table {
	return amqp.Table{
		"x-queue-type":              "classic",
		"x-dead-letter-exchange":    "dlx.main",
		"x-dead-letter-routing-key": dlqKey,
	}
}

// Queues returns the canonical queue set with arguments and bindings.
func Queues() []rabbitmq.QueueSpec {
	return []rabbitmq.QueueSpec{
		// Payment pipeline stages. Quorum: losing an envelope loses money.
		{
			Name: "payments.intake",
			Args: quorumArgs("dlq.payments"),
			Bindings: []rabbitmq.Binding{
				{Exchange: "payments.topic", RoutingKey: "payment.submitted"},
			},
		},
		{
			Name: "payments.processing",
			Args: quorumArgs("dlq.payments"),
			Bindings: []rabbitmq.Binding{
				{Exchange: "payments.topic", RoutingKey: "payment.posted"},
			},
		},
		{
			Name: "payments.reversal",
			Args: quorumArgs("dlq.payments"),
			Bindings: []rabbitmq.Binding{
				{Exchange: "payments.topic", RoutingKey: "payment.reversed"},
			},
		},
		{
			Name: "payments.returned",
			Args: quorumArgs("dlq.payments"),
			Bindings: []rabbitmq.Binding{
				{Exchange: "payments.topic", RoutingKey: "payment.returned"},
			},
		},

		// Investor remittance.
		{
			Name: "investor.calculations",
			Args: quorumArgs("dlq.servicing"),
			Bindings: []rabbitmq.Binding{
				{Exchange: "investor.direct", RoutingKey: "investor.calculate"},
			},
		},
		{
			Name: "investor.clawback",
			Args: quorumArgs("dlq.servicing"),
			Bindings: []rabbitmq.Binding{
				{Exchange: "investor.direct", RoutingKey: "investor.clawback"},
			},
		},

		// Escrow family.
		{
			Name: "q.forecast",
			Args: quorumArgs("dlq.escrow"),
			Bindings: []rabbitmq.Binding{
				{Exchange: "escrow.topic", RoutingKey: "escrow.forecast"},
			},
		},
		{
			Name: "q.schedule.disbursement",
			Args: quorumArgs("dlq.escrow"),
			Bindings: []rabbitmq.Binding{
				{Exchange: "escrow.topic", RoutingKey: "escrow.disbursement"},
			},
		},
		{
			Name: "q.escrow.analysis",
			Args: quorumArgs("dlq.escrow"),
			Bindings: []rabbitmq.Binding{
				{Exchange: "escrow.topic", RoutingKey: "escrow.analysis"},
			},
		},

		// Remittance and settlement.
		{
			Name: "q.remit.aggregate",
			Args: quorumArgs("dlq.servicing"),
			Bindings: []rabbitmq.Binding{
				{Exchange: "settlement.topic", RoutingKey: "remit.aggregate"},
			},
		},
		{
			Name: "q.remit.export",
			Args: quorumArgs("dlq.servicing"),
			Bindings: []rabbitmq.Binding{
				{Exchange: "settlement.topic", RoutingKey: "remit.export"},
			},
		},
		{
			Name: "q.remit.settle",
			Args: quorumArgs("dlq.servicing"),
			Bindings: []rabbitmq.Binding{
				{Exchange: "settlement.topic", RoutingKey: "remit.settle"},
			},
		},

		// Servicing runs and reconciliation.
		{
			Name: "servicing.runs",
			Args: quorumArgs("dlq.servicing"),
			Bindings: []rabbitmq.Binding{
				{Exchange: "servicing.direct", RoutingKey: "servicing.run"},
			},
		},
		{
			Name: "reconciliation.variances",
			Args: quorumArgs("dlq.servicing"),
			Bindings: []rabbitmq.Binding{
				{Exchange: "reconciliation.topic", RoutingKey: "reconciliation.variance"},
			},
		},

		// Notifications tolerate loss; classic is enough.
		{
			Name: "notifications.email",
			Args: classicArgs("dlq.notifications"),
			Bindings: []rabbitmq.Binding{
				{Exchange: "notifications.topic", RoutingKey: "notify.email.#"},
			},
		},
		{
			Name: "notifications.dashboard",
			Args: classicArgs("dlq.notifications"),
			Bindings: []rabbitmq.Binding{
				{Exchange: "notifications.topic", RoutingKey: "notify.dashboard.#"},
			},
		},

		// Bulk audit stream: lazy classic, everything from audit.topic and the
		// remit audit tap.
		{
			Name: "audit.events",
			Args: amqp.Table{
				"x-queue-type": "classic",
				"x-queue-mode": "lazy",
			},
			Bindings: []rabbitmq.Binding{
				{Exchange: "audit.topic", RoutingKey: "#"},
			},
		},
		{
			Name: "q.remit.events.audit",
			Args: amqp.Table{
				"x-queue-type": "classic",
				"x-queue-mode": "lazy",
			},
			Bindings: []rabbitmq.Binding{
				{Exchange: "settlement.topic", RoutingKey: "remit.#"},
			},
		},

		// Dead-letter destinations, one per family.
		{
			Name: "dlq.payments",
			Args: amqp.Table{"x-queue-type": "classic"},
			Bindings: []rabbitmq.Binding{
				{Exchange: "dlx.main", RoutingKey: "dlq.payments"},
				{Exchange: "payments.dlq", RoutingKey: "dlq.payments"},
			},
		},
		{
			Name: "dlq.servicing",
			Args: amqp.Table{"x-queue-type": "classic"},
			Bindings: []rabbitmq.Binding{
				{Exchange: "dlx.main", RoutingKey: "dlq.servicing"},
			},
		},
		{
			Name: "q.escrow.dlq",
			Args: amqp.Table{"x-queue-type": "classic"},
			Bindings: []rabbitmq.Binding{
				{Exchange: "dlx.main", RoutingKey: "dlq.escrow"},
			},
		},
		{
			Name: "dlq.notifications",
			Args: amqp.Table{"x-queue-type": "classic"},
			Bindings: []rabbitmq.Binding{
				{Exchange: "dlx.main", RoutingKey: "dlq.notifications"},
			},
		},
	}
}

// DLQNames returns the dead-letter queue names, used by the DLQ tool.
func DLQNames() []string {
	return []string{"dlq.payments", "dlq.servicing", "q.escrow.dlq", "dlq.notifications"}
}
