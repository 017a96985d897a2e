// Package domain contains persistence models for the usage ledger.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// CoachType categorizes which AI coach produced an event.
type CoachType string

const (
	CoachSleep       CoachType = "sleep"
	CoachNutrition   CoachType = "nutrition"
	CoachMovement    CoachType = "movement"
	CoachMindfulness CoachType = "mindfulness"
	CoachGeneral     CoachType = "general"
	CoachOther       CoachType = "other"
)

// NormalizeCoachType maps free-form inbound tags onto the closed set. Unknown
// tags become CoachOther so new categories keep flowing through.
func NormalizeCoachType(raw string) CoachType {
	switch CoachType(strings.ToLower(strings.TrimSpace(raw))) {
	case CoachSleep:
		return CoachSleep
	case CoachNutrition:
		return CoachNutrition
	case CoachMovement:
		return CoachMovement
	case CoachMindfulness:
		return CoachMindfulness
	case CoachGeneral:
		return CoachGeneral
	default:
		return CoachOther
	}
}

// UsageEvent is one immutable record of a single AI invocation. Rows are only
// ever appended; every aggregate derives from this table.
type UsageEvent struct {
	ID               snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID           int64        `json:"user_id" gorm:"not null;index:ix_usage_events_user_created,priority:1"`
	CoachType        CoachType    `json:"coach_type" gorm:"type:text;not null"`
	PromptTokens     int64        `json:"prompt_tokens" gorm:"not null"`
	CompletionTokens int64        `json:"completion_tokens" gorm:"not null"`
	TotalTokens      int64        `json:"total_tokens" gorm:"not null"`
	CostCents        int64        `json:"cost_cents" gorm:"not null"`
	Model            string       `json:"model" gorm:"type:text;not null"`
	ConversationID   *string      `json:"conversation_id,omitempty" gorm:"type:text"`
	CreatedAt        time.Time    `json:"created_at" gorm:"not null;index:ix_usage_events_user_created,priority:2"`
}

// TableName sets the database table name.
func (UsageEvent) TableName() string { return "usage_events" }
