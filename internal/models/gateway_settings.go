package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GatewaySettings is the single configuration row for the school's gateway
// onboarding: the subaccount its settlements go to, the reusable split rule,
// and the platform's percentage. Loaded per operation through the cache and
// invalidated on update; never held in a process global.
type GatewaySettings struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	SubaccountCode  string          `gorm:"type:varchar(100)" json:"subaccount_code"`
	SplitCode       string          `gorm:"type:varchar(100)" json:"split_code"`
	PlatformPercent decimal.Decimal `gorm:"type:decimal(5,2);default:5" json:"platform_percent"`

	BankCode      string `gorm:"type:varchar(20)" json:"bank_code"`
	AccountNumber string `gorm:"type:varchar(30)" json:"account_number"`
	AccountName   string `gorm:"type:varchar(255)" json:"account_name"`
	BusinessName  string `gorm:"type:varchar(255)" json:"business_name"`
}
