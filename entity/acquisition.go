package entity

// AttemptOutcome classifies one campaign source's final result.
type AttemptOutcome string

const (
	OutcomeSuccess AttemptOutcome = "success"
	OutcomeEmpty   AttemptOutcome = "empty"
	OutcomeFailed  AttemptOutcome = "failed"
)

// AcquisitionAttempt is the transient record of one source's work
// within a single activation. It exists for logging and reports only,
// nothing persists it.
type AcquisitionAttempt struct {
	Source      string         `json:"source"`
	RetriesUsed int            `json:"retries_used"`
	Outcome     AttemptOutcome `json:"outcome"`
	Coupons     []Coupon       `json:"coupons,omitempty"`
}

// AcquisitionResult is what an activation returns to the caller.
// Replayed marks an idempotent replay of an already used card.
type AcquisitionResult struct {
	Card     *KeyCard `json:"card"`
	Coupons  []Coupon `json:"coupons"`
	Replayed bool     `json:"replayed"`
}
