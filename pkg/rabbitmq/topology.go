package rabbitmq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeSpec declares one exchange.
type ExchangeSpec struct {
	Name string
	Kind string // "topic", "direct", "fanout"
}

// Binding routes an exchange/routing-key pair into a queue.
type Binding struct {
	Exchange   string
	RoutingKey string
}

// QueueSpec declares one queue with its canonical arguments and bindings.
type QueueSpec struct {
	Name     string
	Args     amqp.Table
	Bindings []Binding
}

// QueueType returns the x-queue-type argument, defaulting to "classic".
func (q QueueSpec) QueueType() string {
	if t, ok := q.Args["x-queue-type"].(string); ok {
		return t
	}
	return "classic"
}

// MaxPriority returns the x-max-priority argument and whether it is set.
func (q QueueSpec) MaxPriority() (int64, bool) {
	switch v := q.Args["x-max-priority"].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	}
	return 0, false
}

// DeclareExchange declares a durable exchange on the given channel.
func DeclareExchange(ch *amqp.Channel, spec ExchangeSpec) error {
	if err := ch.ExchangeDeclare(spec.Name, spec.Kind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq: declare exchange %s: %w", spec.Name, err)
	}
	return nil
}

// DeclareQueue declares a durable queue with the spec's arguments and applies
// its bindings.
func DeclareQueue(ch *amqp.Channel, spec QueueSpec) error {
	if _, err := ch.QueueDeclare(spec.Name, true, false, false, false, spec.Args); err != nil {
		return fmt.Errorf("rabbitmq: declare queue %s: %w", spec.Name, err)
	}
	return BindQueue(ch, spec.Name, spec.Bindings)
}

// BindQueue applies bindings to an existing queue.
func BindQueue(ch *amqp.Channel, queue string, bindings []Binding) error {
	for _, b := range bindings {
		if err := ch.QueueBind(queue, b.RoutingKey, b.Exchange, false, nil); err != nil {
			return fmt.Errorf("rabbitmq: bind %s to %s/%s: %w", queue, b.Exchange, b.RoutingKey, err)
		}
	}
	return nil
}

// InspectQueue passively checks a queue, returning its live depth and
// consumer count without declaring it. A missing queue is an error (and
// closes the channel, so callers use a throwaway channel).
func InspectQueue(ch *amqp.Channel, name string) (messages, consumers int, err error) {
	q, err := ch.QueueDeclarePassive(name, true, false, false, false, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("rabbitmq: inspect queue %s: %w", name, err)
	}
	return q.Messages, q.Consumers, nil
}
