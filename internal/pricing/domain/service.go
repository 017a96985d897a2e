// Package domain defines the model pricing contract.
package domain

// Calculator prices a single model invocation. Implementations are pure:
// unknown models fall back to the default table entry instead of failing.
type Calculator interface {
	// CostCents returns the invocation cost rounded to the nearest cent.
	CostCents(model string, promptTokens, completionTokens int64) int64
}
