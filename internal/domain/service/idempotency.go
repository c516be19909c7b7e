package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/cschwartz85032/loanserve-sub001/pkg/money"
)

// IdempotencyKey derives the payment's uniqueness identifier. Two requests
// with identical keys are the same payment. The key is stable under case and
// surrounding whitespace of the reference, and under reordering of any field
// not listed here.
func IdempotencyKey(method, reference, valueDate string, amount money.Cents, loanID string) string {
	if loanID == "" {
		loanID = "none"
	}
	input := strings.Join([]string{
		strings.ToLower(method),
		strings.TrimSpace(strings.ToLower(reference)),
		valueDate,
		fmt.Sprintf("%d", amount),
		loanID,
	}, "|")

	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// RunInputHash fingerprints a servicing run request for re-entry detection.
func RunInputHash(valuationDate time.Time, loanIDs []string, dryRun bool) (string, error) {
	return HashPayload(map[string]any{
		"valuation_date": valuationDate.Format("2006-01-02"),
		"loan_ids":       loanIDs,
		"dry_run":        dryRun,
	})
}
