package domain

import "time"

// Outcome is the final result of a resolved market.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Market represents a single yes/no campus prediction question. A market
// starts open and transitions exactly once to resolved; Outcome is nil until
// that transition and immutable afterwards.
type Market struct {
	ID         int64
	Title      string
	Resolved   bool
	Outcome    *Outcome
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// OutcomeFromYes converts the wire-level "outcomeYes" boolean into an Outcome.
func OutcomeFromYes(yes bool) Outcome {
	if yes {
		return OutcomeYes
	}
	return OutcomeNo
}
