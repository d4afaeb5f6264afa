package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// GatewayEventOutcome records what the webhook handler did with an event
type GatewayEventOutcome string

const (
	GatewayEventOutcomeRecorded GatewayEventOutcome = "recorded"
	GatewayEventOutcomeIgnored  GatewayEventOutcome = "ignored"
	GatewayEventOutcomeFailed   GatewayEventOutcome = "failed"
)

// GatewayEvent is an append-only audit row for every authenticated webhook
// delivery, kept for manual reconciliation when recording fails.
type GatewayEvent struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Gateway   PaymentGateway  `gorm:"type:varchar(30);not null" json:"gateway"`
	EventType string          `gorm:"type:varchar(100);index" json:"event_type"`
	Reference string          `gorm:"type:varchar(100);index" json:"reference"`
	Payload   json.RawMessage `gorm:"type:jsonb" json:"payload"`

	Outcome GatewayEventOutcome `gorm:"type:varchar(20)" json:"outcome"`
	Detail  string              `gorm:"type:text" json:"detail"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}
