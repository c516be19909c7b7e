package model

import (
	"time"

	"github.com/google/uuid"
)

// ActorType identifies who caused a chained payment event.
type ActorType string

const (
	ActorSystem ActorType = "system"
	ActorHuman  ActorType = "human"
	ActorAI     ActorType = "ai"
)

// PaymentEvent is one link in the tenant's append-only, hash-chained audit
// log. Events are created once and never updated; prev hash of event N must
// equal the stored hash of event N-1.
type PaymentEvent struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	PaymentID     *uuid.UUID
	IngestionID   *uuid.UUID
	EventType     string
	EventTime     time.Time
	Actor         ActorType
	ActorID       string
	CorrelationID string
	Data          []byte // opaque JSON
	PrevEventHash string // empty only at genesis
	EventHash     string
}

// BrokenLink records one chain verification failure.
type BrokenLink struct {
	EventID  uuid.UUID
	Field    string // "prev_hash" or "event_hash"
	Expected string
	Actual   string
}

// ChainVerification is the result of walking a tenant's chain.
type ChainVerification struct {
	IsValid     bool
	BrokenLinks []BrokenLink
	TotalEvents int
}

// ChainExport is the manifest of one chain dump: the requested range, the
// number of events written, whether the dumped links verified, and a digest
// of the dump payload for tamper detection of the file itself.
type ChainExport struct {
	StartDate   time.Time
	EndDate     time.Time
	TotalEvents int
	ChainValid  bool
	ExportedAt  time.Time
	ExportHash  string // hex SHA-256 of the dumped event lines
}
