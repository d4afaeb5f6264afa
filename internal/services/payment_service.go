package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"schoolpay_echo/internal/models"
)

// ErrAlreadyPaid is returned when an initiation is attempted against an
// obligation whose active checkout already settled at the gateway
var ErrAlreadyPaid = errors.New("payment already made for this checkout")

// PaymentService owns checkout initiation and the single payment recording
// path shared by the webhook, the client verify endpoint, and manual entry
type PaymentService struct {
	db       *gorm.DB
	gateway  *PaystackService
	settings *SettingsService
}

func NewPaymentService(db *gorm.DB, gateway *PaystackService, settings *SettingsService) *PaymentService {
	return &PaymentService{
		db:       db,
		gateway:  gateway,
		settings: settings,
	}
}

// CheckActiveSession returns the active checkout session for an obligation,
// or nil when there is none
func (s *PaymentService) CheckActiveSession(obligationID uint) (*models.CheckoutSession, error) {
	var existing models.CheckoutSession
	err := s.db.Where("obligation_id = ? AND is_active = ?", obligationID, true).
		Order("created_at desc").First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &existing, nil
}

func (s *PaymentService) deactivateSession(session *models.CheckoutSession) {
	session.IsActive = false
	s.db.Save(session)
}

// InitiateResult holds the outcome of a checkout initiation
type InitiateResult struct {
	Reference        string
	AuthorizationURL string
	AccessCode       string
	IsExisting       bool
}

// InitiatePayment starts (or resumes) a hosted checkout for part or all of an
// obligation's balance. A dead session is deactivated and a fresh reference
// generated; references are never reused after a failure.
func (s *PaymentService) InitiatePayment(ctx context.Context, obligationID uint, amount decimal.Decimal, installmentNumber *int, forceNew bool, callbackURL string) (*InitiateResult, error) {
	var ob models.Obligation
	if err := s.db.WithContext(ctx).Preload("Student").Preload("FeeType").First(&ob, obligationID).Error; err != nil {
		return nil, err
	}

	if err := ob.AcceptsAmount(amount); err != nil {
		return nil, err
	}

	existing, err := s.CheckActiveSession(ob.ID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		txn, err := s.gateway.VerifyTransaction(ctx, existing.Reference)
		if err == nil {
			switch txn.Status {
			case "success":
				// Funds were captured but the webhook hasn't landed yet.
				// Record now so the ledger catches up, then refuse the retry.
				if _, recErr := s.RecordGatewayTransaction(ctx, txn); recErr != nil {
					log.Printf("Failed to record settled checkout %s: %v", existing.Reference, recErr)
				}
				s.deactivateSession(existing)
				return nil, ErrAlreadyPaid
			case "failed", "abandoned", "reversed":
				s.deactivateSession(existing)
			default:
				// Still pending at the gateway
				if forceNew {
					s.deactivateSession(existing)
				} else {
					var resp InitializeResponse
					if err := json.Unmarshal(existing.ResponseMetadata, &resp); err == nil && resp.AuthorizationURL != "" {
						return &InitiateResult{
							Reference:        existing.Reference,
							AuthorizationURL: resp.AuthorizationURL,
							AccessCode:       resp.AccessCode,
							IsExisting:       true,
						}, nil
					}
					// Stored response is broken, start over
					s.deactivateSession(existing)
				}
			}
		} else {
			// Status check failed, treat the local session as dead
			s.deactivateSession(existing)
		}
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	email := ob.Student.ContactEmail()
	if email == "" {
		return nil, fmt.Errorf("no contact email on record for student %d", ob.StudentID)
	}

	req := InitializeRequest{
		Email:       email,
		Amount:      amount,
		CallbackURL: callbackURL,
		SplitCode:   settings.SplitCode,
		Metadata: PaymentMetadata{
			StudentID:         ob.StudentID,
			FeeTypeID:         ob.FeeTypeID,
			ObligationID:      ob.ID,
			Session:           ob.Session,
			Term:              ob.Term,
			InstallmentNumber: installmentNumber,
		},
	}

	resp, err := s.gateway.InitializeTransaction(ctx, req)
	if err != nil {
		return nil, err
	}

	reqBytes, _ := json.Marshal(req.Metadata)
	respBytes, _ := json.Marshal(resp)

	session := models.CheckoutSession{
		ObligationID:     ob.ID,
		StudentID:        ob.StudentID,
		Gateway:          models.PaymentGatewayPaystack,
		Reference:        resp.Reference,
		AuthorizationURL: resp.AuthorizationURL,
		IsActive:         true,
		RequestMetadata:  reqBytes,
		ResponseMetadata: respBytes,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, err
	}

	return &InitiateResult{
		Reference:        resp.Reference,
		AuthorizationURL: resp.AuthorizationURL,
		AccessCode:       resp.AccessCode,
		IsExisting:       false,
	}, nil
}

// VerifyAndRecord checks a reference at the gateway and, when it settled,
// records it through the shared path. A non-success gateway status is not an
// error: the payment is nil and the transaction is returned as-is.
func (s *PaymentService) VerifyAndRecord(ctx context.Context, reference string) (*models.Payment, *GatewayTransaction, error) {
	txn, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, nil, err
	}
	if txn.Status != "success" {
		return nil, txn, nil
	}

	payment, err := s.RecordGatewayTransaction(ctx, txn)
	if err != nil {
		return nil, txn, err
	}
	return payment, txn, nil
}

// RecordGatewayTransaction translates a settled gateway transaction into the
// shared recording path. The amount is the amount the gateway actually
// charged, never the client-declared one.
func (s *PaymentService) RecordGatewayTransaction(ctx context.Context, txn *GatewayTransaction) (*models.Payment, error) {
	paidAt := time.Now()
	if t, err := time.Parse(time.RFC3339, txn.PaidAt); err == nil {
		paidAt = t
	}

	return s.RecordPayment(ctx, RecordParams{
		Reference:  txn.Reference,
		Amount:     txn.AmountMajor(),
		Method:     models.PaymentMethodOnline,
		Gateway:    models.PaymentGatewayPaystack,
		Channel:    txn.Channel,
		PayerEmail: txn.Customer.Email,
		PaidAt:     paidAt,
		Metadata:   txn.Metadata,
	})
}

// ManualPaymentParams describes a cash/cheque/transfer payment entered at the
// school office
type ManualPaymentParams struct {
	StudentID         uint
	FeeTypeID         uint
	Session           string
	Term              string
	Amount            decimal.Decimal
	Method            models.PaymentMethod
	InstallmentNumber *int
}

// RecordManualPayment applies the installment/overpay policy and then funnels
// the payment through the same recording path as gateway transactions
func (s *PaymentService) RecordManualPayment(ctx context.Context, p ManualPaymentParams) (*models.Payment, error) {
	if p.Method == models.PaymentMethodOnline {
		return nil, fmt.Errorf("online payments must go through the gateway")
	}

	ob, err := s.findOrCreateObligation(s.db.WithContext(ctx), p.StudentID, p.FeeTypeID, p.Session, p.Term, p.Amount)
	if err != nil {
		return nil, err
	}
	if err := ob.AcceptsAmount(p.Amount); err != nil {
		return nil, err
	}

	return s.RecordPayment(ctx, RecordParams{
		Reference: "MAN-" + strings.ToUpper(uuid.New().String()[:13]),
		Amount:    p.Amount,
		Method:    p.Method,
		Gateway:   models.PaymentGatewayManual,
		PaidAt:    time.Now(),
		Metadata: PaymentMetadata{
			StudentID:         p.StudentID,
			FeeTypeID:         p.FeeTypeID,
			ObligationID:      ob.ID,
			Session:           p.Session,
			Term:              p.Term,
			InstallmentNumber: p.InstallmentNumber,
		},
	})
}

// RecordParams is everything the recording path needs, independent of where
// the payment came from
type RecordParams struct {
	Reference  string
	Amount     decimal.Decimal
	Method     models.PaymentMethod
	Gateway    models.PaymentGateway
	Channel    string
	PayerEmail string
	PaidAt     time.Time
	Metadata   PaymentMetadata
}

// RecordPayment is the critical section. It runs in one database transaction:
// idempotency check by reference, metadata re-validation, split computation
// from the charged amount, payment insert, and the atomic obligation update.
// Invoking it twice with the same reference yields the same payment row.
func (s *PaymentService) RecordPayment(ctx context.Context, p RecordParams) (*models.Payment, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	var payment models.Payment

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Idempotency: the reference may already be recorded (webhook and
		// client verify race each other on the same transaction)
		var existing models.Payment
		findErr := tx.Where("transaction_reference = ?", p.Reference).First(&existing).Error
		if findErr == nil {
			payment = existing
			return nil
		}
		if !errors.Is(findErr, gorm.ErrRecordNotFound) {
			return findErr
		}

		// Metadata came back through the gateway; re-validate it
		var student models.Student
		if err := tx.First(&student, p.Metadata.StudentID).Error; err != nil {
			return fmt.Errorf("unknown student %d in transaction metadata: %w", p.Metadata.StudentID, err)
		}
		var feeType models.FeeType
		if err := tx.First(&feeType, p.Metadata.FeeTypeID).Error; err != nil {
			return fmt.Errorf("unknown fee type %d in transaction metadata: %w", p.Metadata.FeeTypeID, err)
		}

		ob, err := s.resolveObligation(tx, p.Metadata, feeType, p.Amount)
		if err != nil {
			return err
		}

		// Split is recomputed from the charged amount; a tampered
		// initialization payload cannot under-report the platform fee
		platformFee, schoolAmount := ComputeSplit(p.Amount, settings.PlatformPercent)

		payment = models.Payment{
			StudentID:            student.ID,
			ObligationID:         &ob.ID,
			FeeTypeID:            feeType.ID,
			Session:              ob.Session,
			Term:                 ob.Term,
			AmountPaid:           p.Amount,
			PlatformFee:          platformFee,
			SchoolAmount:         schoolAmount,
			PaymentMethod:        p.Method,
			Gateway:              p.Gateway,
			Channel:              p.Channel,
			TransactionReference: p.Reference,
			ReceiptNumber:        newReceiptNumber(),
			InstallmentNumber:    p.Metadata.InstallmentNumber,
			PaidAt:               p.PaidAt,
			PayerEmail:           p.PayerEmail,
		}
		// DO NOTHING on conflict: a plain unique violation would abort the
		// whole transaction on postgres, leaving no way to read back the
		// winner's row from inside it
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&payment)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race: adopt the winner's row. The ledger update below
			// belongs to the transaction that actually inserted.
			if err := tx.Where("transaction_reference = ?", p.Reference).First(&payment).Error; err != nil {
				return err
			}
			return nil
		}

		// Atomic increment; the row lock it takes serializes concurrent
		// payments against the same obligation for the rest of the tx
		if err := tx.Model(&models.Obligation{}).Where("id = ?", ob.ID).
			Update("amount_paid", gorm.Expr("amount_paid + ?", p.Amount)).Error; err != nil {
			return err
		}

		var fresh models.Obligation
		if err := tx.First(&fresh, ob.ID).Error; err != nil {
			return err
		}
		if fresh.Balance().IsNegative() {
			log.Printf("Obligation %d overshot: paid %s against total %s (reference %s); flagged for manual reconciliation",
				fresh.ID, fresh.AmountPaid, fresh.TotalAmount, p.Reference)
		}
		if err := tx.Model(&fresh).Update("status", fresh.DeriveStatus()).Error; err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// Retire any checkout session tied to this reference
	s.db.WithContext(ctx).Model(&models.CheckoutSession{}).
		Where("reference = ? AND is_active = ?", p.Reference, true).
		Update("is_active", false)

	return &payment, nil
}

// resolveObligation locates the obligation a payment belongs to, creating it
// implicitly from the fee type default when it does not exist yet
func (s *PaymentService) resolveObligation(tx *gorm.DB, meta PaymentMetadata, feeType models.FeeType, amount decimal.Decimal) (*models.Obligation, error) {
	if meta.ObligationID != 0 {
		var ob models.Obligation
		if err := tx.First(&ob, meta.ObligationID).Error; err != nil {
			return nil, fmt.Errorf("unknown obligation %d in transaction metadata: %w", meta.ObligationID, err)
		}
		return &ob, nil
	}
	return s.findOrCreateObligation(tx, meta.StudentID, meta.FeeTypeID, meta.Session, meta.Term, amount)
}

func (s *PaymentService) findOrCreateObligation(tx *gorm.DB, studentID, feeTypeID uint, session, term string, amount decimal.Decimal) (*models.Obligation, error) {
	var ob models.Obligation
	err := tx.Where("student_id = ? AND fee_type_id = ? AND session = ? AND term = ?",
		studentID, feeTypeID, session, term).First(&ob).Error
	if err == nil {
		return &ob, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var feeType models.FeeType
	if err := tx.First(&feeType, feeTypeID).Error; err != nil {
		return nil, err
	}

	total := feeType.DefaultAmount
	if total.LessThanOrEqual(decimal.Zero) {
		total = amount
	}

	ob = models.Obligation{
		StudentID:   studentID,
		FeeTypeID:   feeTypeID,
		Session:     session,
		Term:        term,
		TotalAmount: total,
		AmountPaid:  decimal.Zero,
		Status:      models.ObligationStatusPending,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ob)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Created concurrently, pick it up
		if err := tx.Where("student_id = ? AND fee_type_id = ? AND session = ? AND term = ?",
			studentID, feeTypeID, session, term).First(&ob).Error; err != nil {
			return nil, err
		}
	}
	return &ob, nil
}

// newReceiptNumber generates the human-readable receipt identifier, assigned
// exactly once per payment
func newReceiptNumber() string {
	return fmt.Sprintf("RCP-%s-%s", time.Now().Format("20060102"), strings.ToUpper(uuid.New().String()[:8]))
}
