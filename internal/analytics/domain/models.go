// Package domain contains read models for usage reporting.
package domain

import (
	"errors"
	"strings"
)

// Period selects the bucketing granularity for usage series.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

var ErrInvalidPeriod = errors.New("invalid_period")

// ParsePeriod validates an inbound granularity string.
func ParsePeriod(raw string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(raw))) {
	case PeriodDay:
		return PeriodDay, nil
	case PeriodWeek:
		return PeriodWeek, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", ErrInvalidPeriod
	}
}

// UserStats is one user's consumption snapshot across every window.
type UserStats struct {
	UserID           int64 `json:"user_id"`
	TotalTokens      int64 `json:"total_tokens"`
	TokensToday      int64 `json:"tokens_today"`
	TokensThisMonth  int64 `json:"tokens_this_month"`
	TotalCostCents   int64 `json:"total_cost_cents"`
	MonthlyQuota     int64 `json:"monthly_quota"`
	MonthlyRemaining int64 `json:"monthly_remaining"`
	DailyLimit       int64 `json:"daily_limit"`
	DailyRemaining   int64 `json:"daily_remaining"`
}

// PeriodPoint is one non-empty bucket of a usage series.
type PeriodPoint struct {
	Date      string `json:"date"`
	Tokens    int64  `json:"tokens"`
	CostCents int64  `json:"cost_cents"`
}

// AggregatedStats is the global snapshot. AvgTokensPerUser divides by every
// registered user, not only the ones that have recorded usage.
type AggregatedStats struct {
	TotalTokens      int64   `json:"total_tokens"`
	TotalCostCents   int64   `json:"total_cost_cents"`
	ActiveUsers      int64   `json:"active_users"`
	AvgTokensPerUser float64 `json:"avg_tokens_per_user"`
}
