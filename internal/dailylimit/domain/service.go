// Package domain defines the fixed-window daily token cap contract.
package domain

import "context"

// Decision is the outcome of a daily limit check.
type Decision struct {
	CanProceed      bool  `json:"can_proceed"`
	TokensUsedToday int64 `json:"tokens_used_today"`
	Remaining       int64 `json:"remaining"`
	DailyLimit      int64 `json:"daily_limit"`
}

type Service interface {
	// Check sums the user's ledger tokens over the current UTC calendar day
	// and compares against the configured cap. A storage failure fails open:
	// the user is admitted and the error is logged, never returned.
	Check(ctx context.Context, userID int64) Decision
}
