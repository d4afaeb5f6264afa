package models

import "errors"

var (
	ErrObligationSettled      = errors.New("obligation is already fully paid")
	ErrInvalidAmount          = errors.New("payment amount must be greater than zero")
	ErrOverpayment            = errors.New("payment amount exceeds outstanding balance")
	ErrInstallmentsNotAllowed = errors.New("partial payments are not allowed for this obligation")
)
