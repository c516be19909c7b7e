package topology

import (
	"context"
	"fmt"

	"github.com/cschwartz85032/loanserve-sub001/pkg/rabbitmq"
)

// Mismatch is one divergence between live and canonical topology.
type Mismatch struct {
	Kind   string // "exchange" or "queue"
	Name   string
	Reason string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s %s: %s", m.Kind, m.Name, m.Reason)
}

// Validator compares the live broker against the canonical topology using
// the management API. It never declares anything.
type Validator struct {
	mgmt *rabbitmq.MgmtClient
}

// NewValidator creates a Validator.
func NewValidator(mgmt *rabbitmq.MgmtClient) *Validator {
	return &Validator{mgmt: mgmt}
}

// Validate returns every divergence found. An empty slice means the broker
// matches canonical.
func (v *Validator) Validate(ctx context.Context) ([]Mismatch, error) {
	var out []Mismatch

	liveExchanges, err := v.mgmt.Exchanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("topology: fetch exchanges: %w", err)
	}
	exByName := make(map[string]rabbitmq.MgmtExchange, len(liveExchanges))
	for _, ex := range liveExchanges {
		exByName[ex.Name] = ex
	}
	for _, want := range Exchanges() {
		live, ok := exByName[want.Name]
		if !ok {
			out = append(out, Mismatch{Kind: "exchange", Name: want.Name, Reason: "missing"})
			continue
		}
		if live.Type != want.Kind {
			out = append(out, Mismatch{Kind: "exchange", Name: want.Name,
				Reason: fmt.Sprintf("type %q, expected %q", live.Type, want.Kind)})
		}
	}

	liveQueues, err := v.mgmt.Queues(ctx)
	if err != nil {
		return nil, fmt.Errorf("topology: fetch queues: %w", err)
	}
	qByName := make(map[string]rabbitmq.MgmtQueue, len(liveQueues))
	for _, q := range liveQueues {
		qByName[q.Name] = q
	}
	for _, want := range Queues() {
		live, ok := qByName[want.Name]
		if !ok {
			out = append(out, Mismatch{Kind: "queue", Name: want.Name, Reason: "missing"})
			continue
		}
		out = append(out, compareQueue(want, live)...)
	}

	// Legacy misconfigurations on queues outside the canonical set still
	// break the broker; flag them too.
	for _, live := range liveQueues {
		if live.Type == "quorum" {
			if _, ok := live.Arguments["x-max-priority"]; ok {
				out = append(out, Mismatch{Kind: "queue", Name: live.Name,
					Reason: "quorum queue carries x-max-priority (legacy misconfiguration)"})
			}
		}
	}

	return out, nil
}

func compareQueue(want rabbitmq.QueueSpec, live rabbitmq.MgmtQueue) []Mismatch {
	var out []Mismatch

	if live.Type != want.QueueType() {
		out = append(out, Mismatch{Kind: "queue", Name: want.Name,
			Reason: fmt.Sprintf("type %q, expected %q", live.Type, want.QueueType())})
	}

	for _, arg := range []string{"x-delivery-limit", "x-dead-letter-exchange", "x-dead-letter-routing-key", "x-queue-mode"} {
		wantVal, wantSet := want.Args[arg]
		liveVal, liveSet := live.Arguments[arg]
		switch {
		case wantSet && !liveSet:
			out = append(out, Mismatch{Kind: "queue", Name: want.Name,
				Reason: fmt.Sprintf("missing argument %s=%v", arg, wantVal)})
		case wantSet && liveSet && fmt.Sprint(liveVal) != fmt.Sprint(wantVal):
			out = append(out, Mismatch{Kind: "queue", Name: want.Name,
				Reason: fmt.Sprintf("argument %s=%v, expected %v", arg, liveVal, wantVal)})
		}
	}

	return out
}
