package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ObligationStatus represents the settlement state of an obligation
type ObligationStatus string

const (
	ObligationStatusPending ObligationStatus = "pending"
	ObligationStatusPartial ObligationStatus = "partial"
	ObligationStatusPaid    ObligationStatus = "paid"
)

// Obligation is the source-of-truth ledger row for what a student owes for one
// fee type in one session/term. amount_paid only ever moves through the
// payment recording path; status is always derived from the amounts.
type Obligation struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	StudentID uint   `gorm:"index;uniqueIndex:idx_obligations_student_fee_session_term" json:"student_id"`
	FeeTypeID uint   `gorm:"index;uniqueIndex:idx_obligations_student_fee_session_term" json:"fee_type_id"`
	Session   string `gorm:"type:varchar(20);uniqueIndex:idx_obligations_student_fee_session_term" json:"session"`
	Term      string `gorm:"type:varchar(20);uniqueIndex:idx_obligations_student_fee_session_term" json:"term"`

	TotalAmount decimal.Decimal  `gorm:"type:decimal(15,2)" json:"total_amount"`
	AmountPaid  decimal.Decimal  `gorm:"type:decimal(15,2)" json:"amount_paid"`
	Status      ObligationStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`

	AllowInstallments bool `gorm:"default:false" json:"allow_installments"`
	InstallmentsCount int  `gorm:"default:2" json:"installments_count"`

	// Relationships
	Student  Student   `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	FeeType  FeeType   `gorm:"foreignKey:FeeTypeID" json:"fee_type,omitempty"`
	Payments []Payment `gorm:"foreignKey:ObligationID" json:"payments,omitempty"`
}

// Balance is the outstanding amount, never persisted, always derived
func (o Obligation) Balance() decimal.Decimal {
	return o.TotalAmount.Sub(o.AmountPaid)
}

// DeriveStatus computes the status implied by the current amounts.
// Every write path must set Status through this, never directly.
func (o Obligation) DeriveStatus() ObligationStatus {
	if o.Balance().LessThanOrEqual(decimal.Zero) && o.AmountPaid.GreaterThan(decimal.Zero) {
		return ObligationStatusPaid
	}
	if o.AmountPaid.GreaterThan(decimal.Zero) {
		return ObligationStatusPartial
	}
	return ObligationStatusPending
}

// AcceptsAmount reports whether a new payment of the given amount is allowed
// under the installment policy: partial amounts require allow_installments,
// and no payment may exceed the outstanding balance.
func (o Obligation) AcceptsAmount(amount decimal.Decimal) error {
	if o.Status == ObligationStatusPaid {
		return ErrObligationSettled
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(o.Balance()) {
		return ErrOverpayment
	}
	if amount.LessThan(o.Balance()) && !o.AllowInstallments {
		return ErrInstallmentsNotAllowed
	}
	return nil
}
