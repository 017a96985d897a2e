// Package domain defines the usage recording contract.
package domain

import (
	"context"
	"errors"

	ledgerdomain "github.com/lumenwell/aimeter/internal/ledger/domain"
)

// RecordRequest carries the token counts reported by the model provider for
// one served AI response.
type RecordRequest struct {
	UserID           int64   `json:"user_id"`
	CoachType        string  `json:"coach_type"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	Model            string  `json:"model"`
	ConversationID   *string `json:"conversation_id,omitempty"`
}

type Service interface {
	// Record prices the invocation, appends the ledger event, and folds the
	// tokens into the user's monthly quota. Failures surface to the caller;
	// the already-delivered AI response is never rolled back.
	Record(ctx context.Context, req RecordRequest) (*ledgerdomain.UsageEvent, error)
}

var (
	ErrInvalidUser   = errors.New("invalid_user")
	ErrInvalidTokens = errors.New("invalid_tokens")
	ErrInvalidModel  = errors.New("invalid_model")
)
