package valueobject

import "fmt"

// PaymentStatus is the lifecycle state of a payment. States advance
// monotonically along the documented transitions; terminal states never
// regress.
type PaymentStatus string

const (
	PaymentReceived  PaymentStatus = "received"
	PaymentValidated PaymentStatus = "validated"
	PaymentAllocated PaymentStatus = "allocated"
	PaymentPosted    PaymentStatus = "posted"
	PaymentSettled   PaymentStatus = "settled"
	PaymentReturned  PaymentStatus = "returned"
	PaymentReversed  PaymentStatus = "reversed"
	PaymentFailed    PaymentStatus = "failed"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentReceived:  {PaymentValidated, PaymentFailed},
	PaymentValidated: {PaymentAllocated, PaymentFailed},
	PaymentAllocated: {PaymentPosted, PaymentFailed},
	PaymentPosted:    {PaymentSettled, PaymentReturned, PaymentReversed, PaymentFailed},
}

// CanTransition reports whether moving from s to next is a documented
// transition.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the state admits no further transitions.
func (s PaymentStatus) Terminal() bool {
	return len(paymentTransitions[s]) == 0
}

// ParsePaymentStatus validates a stored status string.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	st := PaymentStatus(s)
	switch st {
	case PaymentReceived, PaymentValidated, PaymentAllocated, PaymentPosted,
		PaymentSettled, PaymentReturned, PaymentReversed, PaymentFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown payment status %q", s)
}

func (s PaymentStatus) String() string { return string(s) }
