package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// RequestValidator adapts go-playground/validator to Echo's Validator interface
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

func (v *RequestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// InitiatePaymentRequest starts a hosted checkout for an obligation
type InitiatePaymentRequest struct {
	ObligationID      uint            `json:"obligation_id" validate:"required"`
	Amount            decimal.Decimal `json:"amount" validate:"required"`
	InstallmentNumber *int            `json:"installment_number" validate:"omitempty,oneof=1 2"`
	ForceNew          bool            `json:"force_new"`
	CallbackURL       string          `json:"callback_url" validate:"omitempty,url"`
}

// ManualPaymentRequest records a cash/cheque/transfer payment entered at the office
type ManualPaymentRequest struct {
	StudentID         uint            `json:"student_id" validate:"required"`
	FeeTypeID         uint            `json:"fee_type_id" validate:"required"`
	Session           string          `json:"session" validate:"required"`
	Term              string          `json:"term" validate:"required"`
	Amount            decimal.Decimal `json:"amount" validate:"required"`
	PaymentMethod     string          `json:"payment_method" validate:"required,oneof=cash bank_transfer cheque"`
	InstallmentNumber *int            `json:"installment_number" validate:"omitempty,oneof=1 2"`
}

// CreateObligationRequest assigns a fee type to a student for a session/term
type CreateObligationRequest struct {
	StudentID         uint             `json:"student_id" validate:"required"`
	FeeTypeID         uint             `json:"fee_type_id" validate:"required"`
	Session           string           `json:"session" validate:"required"`
	Term              string           `json:"term" validate:"required"`
	TotalAmount       *decimal.Decimal `json:"total_amount"`
	AllowInstallments bool             `json:"allow_installments"`
	InstallmentsCount int              `json:"installments_count" validate:"omitempty,min=1,max=12"`
}

// SubaccountOnboardingRequest links the school's bank account to the gateway
type SubaccountOnboardingRequest struct {
	BusinessName  string `json:"business_name" validate:"required"`
	BankCode      string `json:"bank_code" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required,len=10,numeric"`
}
