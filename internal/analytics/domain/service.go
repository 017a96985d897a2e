package domain

import "context"

// Service serves oversight queries over the ledger and quota tables. Reads
// fail soft: a storage error yields zeroed structures and a log line, never
// an error to the caller.
type Service interface {
	UserTokenStats(ctx context.Context, userID *int64) []UserStats
	TokenUsageByPeriod(ctx context.Context, userID *int64, period Period) []PeriodPoint
	AggregatedTokenStats(ctx context.Context) AggregatedStats
}
