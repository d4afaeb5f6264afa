package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentMethod is how the money arrived
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodOnline       PaymentMethod = "online"
	PaymentMethodCheque       PaymentMethod = "cheque"
)

// PaymentGateway identifies the origin of a payment record
type PaymentGateway string

const (
	PaymentGatewayPaystack PaymentGateway = "paystack"
	PaymentGatewayManual   PaymentGateway = "manual"
)

// Payment is an append-only record of one confirmed transaction. Corrections
// are new compensating rows, never edits. TransactionReference carries the
// unique index that makes duplicate webhook/verify delivery a no-op.
type Payment struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	StudentID    uint   `gorm:"index" json:"student_id"`
	ObligationID *uint  `gorm:"index" json:"obligation_id"`
	FeeTypeID    uint   `gorm:"index" json:"fee_type_id"`
	Session      string `gorm:"type:varchar(20)" json:"session"`
	Term         string `gorm:"type:varchar(20)" json:"term"`

	AmountPaid   decimal.Decimal `gorm:"type:decimal(15,2)" json:"amount_paid"`
	PlatformFee  decimal.Decimal `gorm:"type:decimal(15,2)" json:"platform_fee"`
	SchoolAmount decimal.Decimal `gorm:"type:decimal(15,2)" json:"school_amount"`

	PaymentMethod        PaymentMethod  `gorm:"type:varchar(30)" json:"payment_method"`
	Gateway              PaymentGateway `gorm:"type:varchar(30)" json:"gateway"`
	Channel              string         `gorm:"type:varchar(50)" json:"channel"` // gateway channel, e.g. "card"
	TransactionReference string         `gorm:"type:varchar(100);uniqueIndex" json:"transaction_reference"`
	ReceiptNumber        string         `gorm:"type:varchar(50);uniqueIndex" json:"receipt_number"`
	InstallmentNumber    *int           `json:"installment_number"`
	PaidAt               time.Time      `json:"paid_at"`
	PayerEmail           string         `gorm:"type:varchar(255)" json:"payer_email"`

	// Relationships
	Student    Student     `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	FeeType    FeeType     `gorm:"foreignKey:FeeTypeID" json:"fee_type,omitempty"`
	Obligation *Obligation `gorm:"foreignKey:ObligationID" json:"obligation,omitempty"`
}
