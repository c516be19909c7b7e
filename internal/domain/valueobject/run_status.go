package valueobject

// RunStatus is the lifecycle state of a servicing run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether the run can no longer change state.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

func (s RunStatus) String() string { return string(s) }

// ReconStatus is the beneficiary-vs-investor reconciliation state of a run.
type ReconStatus string

const (
	ReconPending    ReconStatus = "pending"
	ReconBalanced   ReconStatus = "balanced"
	ReconImbalanced ReconStatus = "imbalanced"
)

func (s ReconStatus) String() string { return string(s) }

// ServicingEventStatus records the disposition of one servicing step.
type ServicingEventStatus string

const (
	EventSuccess ServicingEventStatus = "success"
	EventSkipped ServicingEventStatus = "skipped"
	EventFailed  ServicingEventStatus = "failed"
)

// ExceptionStatus is the case state of a servicing exception.
type ExceptionStatus string

const (
	ExceptionOpen     ExceptionStatus = "open"
	ExceptionResolved ExceptionStatus = "resolved"
	ExceptionWaived   ExceptionStatus = "waived"
)

// ReconciliationRowStatus is the state of a bank-vs-SoR reconciliation row.
type ReconciliationRowStatus string

const (
	ReconciliationOpen     ReconciliationRowStatus = "open"
	ReconciliationBalanced ReconciliationRowStatus = "balanced"
	ReconciliationVariance ReconciliationRowStatus = "variance"
)
