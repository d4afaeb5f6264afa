package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"schoolpay_echo/internal/models"
	"schoolpay_echo/internal/services"
)

type PaymentHandler struct {
	db       *gorm.DB
	payments *services.PaymentService
	email    *services.EmailService
}

func NewPaymentHandler(db *gorm.DB, payments *services.PaymentService, email *services.EmailService) *PaymentHandler {
	return &PaymentHandler{db: db, payments: payments, email: email}
}

// InitiatePayment opens a hosted checkout for an obligation and returns the
// authorization URL the payer should be redirected to
func (h *PaymentHandler) InitiatePayment(c echo.Context) error {
	var req InitiatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.payments.InitiatePayment(c.Request().Context(), req.ObligationID, req.Amount, req.InstallmentNumber, req.ForceNew, req.CallbackURL)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Obligation not found")
		case errors.Is(err, services.ErrAlreadyPaid),
			errors.Is(err, models.ErrObligationSettled),
			errors.Is(err, models.ErrInvalidAmount),
			errors.Is(err, models.ErrOverpayment),
			errors.Is(err, models.ErrInstallmentsNotAllowed):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		var gwErr *services.GatewayError
		if errors.As(err, &gwErr) {
			return echo.NewHTTPError(http.StatusBadGateway, gwErr.Message)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to initiate payment: "+err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"reference":         result.Reference,
		"authorization_url": result.AuthorizationURL,
		"access_code":       result.AccessCode,
		"is_existing":       result.IsExisting,
	})
}

// VerifyPayment is the client-triggered confirmation path: checks a reference
// at the gateway and records it if it settled. Safe to call any number of
// times for the same reference.
func (h *PaymentHandler) VerifyPayment(c echo.Context) error {
	reference := c.Param("reference")
	if reference == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing transaction reference")
	}

	payment, txn, err := h.payments.VerifyAndRecord(c.Request().Context(), reference)
	if err != nil {
		var gwErr *services.GatewayError
		if errors.As(err, &gwErr) {
			return echo.NewHTTPError(http.StatusBadGateway, gwErr.Message)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to verify payment: "+err.Error())
	}

	if payment == nil {
		// Not settled; report the gateway status as-is, it is not an error
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    txn.Status,
			"reference": txn.Reference,
			"message":   "Transaction is not successful yet",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"payment": payment,
	})
}

// RecordManualPayment records a cash/cheque/transfer payment and sends the
// receipt to the guardian
func (h *PaymentHandler) RecordManualPayment(c echo.Context) error {
	var req ManualPaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	payment, err := h.payments.RecordManualPayment(c.Request().Context(), services.ManualPaymentParams{
		StudentID:         req.StudentID,
		FeeTypeID:         req.FeeTypeID,
		Session:           req.Session,
		Term:              req.Term,
		Amount:            req.Amount,
		Method:            models.PaymentMethod(req.PaymentMethod),
		InstallmentNumber: req.InstallmentNumber,
	})
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Student or fee type not found")
		case errors.Is(err, models.ErrObligationSettled),
			errors.Is(err, models.ErrInvalidAmount),
			errors.Is(err, models.ErrOverpayment),
			errors.Is(err, models.ErrInstallmentsNotAllowed):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to record payment: "+err.Error())
	}

	sendPaymentReceipt(h.db, h.email, payment)

	return c.JSON(http.StatusCreated, payment)
}

// ListPayments returns payments filtered by student/session/term, newest first
func (h *PaymentHandler) ListPayments(c echo.Context) error {
	query := h.db.Model(&models.Payment{}).Preload("Student").Preload("FeeType")

	if studentIDStr := c.QueryParam("student_id"); studentIDStr != "" {
		studentID, err := strconv.ParseUint(studentIDStr, 10, 32)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid student ID")
		}
		query = query.Where("student_id = ?", uint(studentID))
	}
	if session := c.QueryParam("session"); session != "" {
		query = query.Where("session = ?", session)
	}
	if term := c.QueryParam("term"); term != "" {
		query = query.Where("term = ?", term)
	}

	page := 1
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	pageSize := 20

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to count payments")
	}

	var payments []models.Payment
	if err := query.Order("paid_at desc").Limit(pageSize).Offset((page - 1) * pageSize).Find(&payments).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch payments")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"payments":    payments,
		"total_count": totalCount,
		"page":        page,
		"page_size":   pageSize,
	})
}

// sendPaymentReceipt resolves the receipt recipient (payer email first, then
// the guardian chain) and sends the receipt. Failures are logged, never
// propagated: the payment is already recorded.
func sendPaymentReceipt(db *gorm.DB, email *services.EmailService, payment *models.Payment) {
	var student models.Student
	if err := db.First(&student, payment.StudentID).Error; err != nil {
		log.Printf("Receipt for %s not sent: student %d not found", payment.ReceiptNumber, payment.StudentID)
		return
	}

	to := payment.PayerEmail
	if to == "" {
		to = student.ContactEmail()
	}
	if to == "" {
		log.Printf("Receipt for %s not sent: no recipient email", payment.ReceiptNumber)
		return
	}

	var feeType models.FeeType
	db.First(&feeType, payment.FeeTypeID)

	balance := ""
	if payment.ObligationID != nil {
		var ob models.Obligation
		if err := db.First(&ob, *payment.ObligationID).Error; err == nil {
			balance = ob.Balance().StringFixed(2)
		}
	}

	data := services.ReceiptEmailData{
		StudentName:   student.Name,
		FeeTypeName:   feeType.Name,
		Session:       payment.Session,
		Term:          payment.Term,
		Amount:        payment.AmountPaid.StringFixed(2),
		ReceiptNumber: payment.ReceiptNumber,
		Reference:     payment.TransactionReference,
		Balance:       balance,
		PaidAt:        payment.PaidAt.Format("2 Jan 2006 15:04"),
	}

	if err := email.SendReceipt(to, data); err != nil {
		log.Printf("Failed to send receipt %s to %s: %v", payment.ReceiptNumber, to, err)
	}
}
