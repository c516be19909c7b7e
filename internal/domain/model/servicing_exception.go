package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/cschwartz85032/loanserve-sub001/internal/domain/valueobject"
)

// ServicingException is a flagged condition requiring attention.
type ServicingException struct {
	ID              uuid.UUID
	RunID           *uuid.UUID
	TenantID        uuid.UUID
	LoanID          string
	Severity        valueobject.Severity
	Type            string
	Message         string
	SuggestedAction []string
	DueDate         time.Time
	Status          valueobject.ExceptionStatus
	CreatedAt       time.Time
}

// NewServicingException opens an exception with the severity-driven due date.
func NewServicingException(
	tenantID uuid.UUID,
	runID *uuid.UUID,
	loanID string,
	severity valueobject.Severity,
	excType, message string,
	suggestedAction []string,
	now time.Time,
) ServicingException {
	return ServicingException{
		ID:              uuid.New(),
		RunID:           runID,
		TenantID:        tenantID,
		LoanID:          loanID,
		Severity:        severity,
		Type:            excType,
		Message:         message,
		SuggestedAction: suggestedAction,
		DueDate:         severity.DueDate(now),
		Status:          valueobject.ExceptionOpen,
		CreatedAt:       now,
	}
}
