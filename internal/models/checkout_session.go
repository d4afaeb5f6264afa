package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// CheckoutSession tracks one hosted-checkout initialization at the gateway.
// At most one session per obligation is active; dead sessions are deactivated
// and a new reference is generated, never reused.
type CheckoutSession struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	ObligationID     uint            `gorm:"index" json:"obligation_id"`
	StudentID        uint            `json:"student_id"`
	Gateway          PaymentGateway  `gorm:"type:varchar(30);not null" json:"gateway"`
	Reference        string          `gorm:"type:varchar(100);index" json:"reference"`
	AuthorizationURL string          `gorm:"type:text" json:"authorization_url"`
	IsActive         bool            `gorm:"default:true" json:"is_active"`
	RequestMetadata  json.RawMessage `gorm:"type:jsonb" json:"request_metadata"`
	ResponseMetadata json.RawMessage `gorm:"type:jsonb" json:"response_metadata"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}
