package topology

import (
	"fmt"
	"log/slog"

	"github.com/cschwartz85032/loanserve-sub001/pkg/rabbitmq"
)

// ApplyReport summarizes one topology application.
type ApplyReport struct {
	ExchangesDeclared []string
	QueuesDeclared    []string
	// Refused lists queues whose canonical spec itself is illegal (quorum with
	// a priority argument). These are configuration bugs, not broker state.
	Refused []string
	// Recreated lists queues deleted and redeclared after an argument
	// mismatch on an empty live queue.
	Recreated []string
	// Versioned lists `<queue>.v2` names created because the live queue had
	// messages or consumers. Consumers must be moved by an operator.
	Versioned []string
	Errors    []string
}

// Ok reports whether the topology now matches canonical with no follow-ups.
func (r ApplyReport) Ok() bool {
	return len(r.Refused) == 0 && len(r.Versioned) == 0 && len(r.Errors) == 0
}

// Manager declares the canonical topology and migrates drifted queues.
type Manager struct {
	conn   *rabbitmq.Connection
	logger *slog.Logger
}

// NewManager creates a Manager on an open connection.
func NewManager(conn *rabbitmq.Connection, logger *slog.Logger) *Manager {
	return &Manager{conn: conn, logger: logger}
}

// Apply declares every canonical exchange and queue. One queue failing does
// not stop the rest; the report carries everything that needs attention.
func (m *Manager) Apply() (ApplyReport, error) {
	var report ApplyReport

	ch, err := m.conn.Channel()
	if err != nil {
		return report, err
	}
	for _, ex := range Exchanges() {
		if err := rabbitmq.DeclareExchange(ch, ex); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("exchange %s: %v", ex.Name, err))
			ch.Close()
			if ch, err = m.conn.Channel(); err != nil {
				return report, err
			}
			continue
		}
		report.ExchangesDeclared = append(report.ExchangesDeclared, ex.Name)
	}
	ch.Close()

	for _, q := range Queues() {
		m.applyQueue(q, &report)
	}

	if !report.Ok() {
		return report, fmt.Errorf("topology applied with %d refusal(s), %d versioned queue(s), %d error(s)",
			len(report.Refused), len(report.Versioned), len(report.Errors))
	}
	return report, nil
}

func (m *Manager) applyQueue(q rabbitmq.QueueSpec, report *ApplyReport) {
	if q.QueueType() == "quorum" {
		if prio, ok := q.MaxPriority(); ok {
			m.logger.Error("refusing quorum queue with priority argument",
				"queue", q.Name, "max_priority", prio)
			report.Refused = append(report.Refused, q.Name)
			return
		}
	}

	// Fresh channel per declare: a precondition failure closes the channel.
	ch, err := m.conn.Channel()
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("queue %s: %v", q.Name, err))
		return
	}
	declareErr := rabbitmq.DeclareQueue(ch, q)
	ch.Close()

	if declareErr == nil {
		report.QueuesDeclared = append(report.QueuesDeclared, q.Name)
		return
	}
	if !rabbitmq.IsPreconditionFailed(declareErr) {
		report.Errors = append(report.Errors, fmt.Sprintf("queue %s: %v", q.Name, declareErr))
		return
	}

	m.logger.Warn("queue exists with different arguments", "queue", q.Name)
	if err := m.migrateQueue(q, report); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("queue %s: migrate: %v", q.Name, err))
	}
}

// migrateQueue handles an argument mismatch on a live queue: delete and
// recreate when it is empty, otherwise declare a versioned sibling.
func (m *Manager) migrateQueue(q rabbitmq.QueueSpec, report *ApplyReport) error {
	ch, err := m.conn.Channel()
	if err != nil {
		return err
	}
	messages, consumers, err := rabbitmq.InspectQueue(ch, q.Name)
	ch.Close()
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}

	if messages == 0 && consumers == 0 {
		ch, err := m.conn.Channel()
		if err != nil {
			return err
		}
		defer ch.Close()

		if _, err := ch.QueueDelete(q.Name, false, false, false); err != nil {
			return fmt.Errorf("delete empty queue: %w", err)
		}
		if err := rabbitmq.DeclareQueue(ch, q); err != nil {
			return fmt.Errorf("recreate: %w", err)
		}
		m.logger.Info("recreated empty queue with canonical arguments", "queue", q.Name)
		report.Recreated = append(report.Recreated, q.Name)
		return nil
	}

	versioned := q
	versioned.Name = q.Name + ".v2"
	ch, err = m.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	if err := rabbitmq.DeclareQueue(ch, versioned); err != nil {
		return fmt.Errorf("declare versioned queue %s: %w", versioned.Name, err)
	}
	m.logger.Warn("live queue busy, created versioned sibling; move consumers",
		"queue", q.Name, "versioned", versioned.Name,
		"messages", messages, "consumers", consumers)
	report.Versioned = append(report.Versioned, versioned.Name)
	return nil
}
