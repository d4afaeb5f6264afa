package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"schoolpay_echo/internal/models"
	"schoolpay_echo/internal/services"
)

const testSecret = "sk_test_webhook_secret"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := services.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func newWebhookFixture(t *testing.T) (*WebhookHandler, *gorm.DB, models.Obligation) {
	t.Helper()
	t.Setenv("PAYSTACK_SECRET_KEY", testSecret)

	db := newTestDB(t)

	student := models.Student{Name: "Ada Obi", AdmissionNumber: "ADM-001", GuardianEmail: "obi@example.com"}
	if err := db.Create(&student).Error; err != nil {
		t.Fatalf("failed to seed student: %v", err)
	}
	feeType := models.FeeType{Name: "Tuition", DefaultAmount: decimal.RequireFromString("20000"), IsActive: true}
	if err := db.Create(&feeType).Error; err != nil {
		t.Fatalf("failed to seed fee type: %v", err)
	}
	ob := models.Obligation{
		StudentID:   student.ID,
		FeeTypeID:   feeType.ID,
		Session:     "2025/2026",
		Term:        "first",
		TotalAmount: decimal.RequireFromString("20000"),
		AmountPaid:  decimal.Zero,
		Status:      models.ObligationStatusPending,
	}
	if err := db.Create(&ob).Error; err != nil {
		t.Fatalf("failed to seed obligation: %v", err)
	}

	gateway := services.NewPaystackService()
	payments := services.NewPaymentService(db, gateway, services.NewSettingsService(db, nil))
	handler := NewWebhookHandler(db, gateway, payments, services.NewEmailService())
	return handler, db, ob
}

func sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func chargeSuccessBody(t *testing.T, ob models.Obligation, reference string, amountKobo int64) []byte {
	t.Helper()

	txn := services.GatewayTransaction{
		ID:        12345,
		Status:    "success",
		Reference: reference,
		Amount:    amountKobo,
		Currency:  "NGN",
		Channel:   "card",
		Metadata: services.PaymentMetadata{
			StudentID:    ob.StudentID,
			FeeTypeID:    ob.FeeTypeID,
			ObligationID: ob.ID,
			Session:      ob.Session,
			Term:         ob.Term,
		},
	}
	txn.Customer.Email = "obi@example.com"

	body, err := json.Marshal(map[string]interface{}{
		"event": "charge.success",
		"data":  txn,
	})
	if err != nil {
		t.Fatalf("failed to marshal webhook body: %v", err)
	}
	return body
}

func deliverWebhook(t *testing.T, h *WebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paystack", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if signature != "" {
		req.Header.Set(services.SignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.HandlePaystackWebhook(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestWebhookRejectsTamperedBody(t *testing.T) {
	h, db, ob := newWebhookFixture(t)

	original := chargeSuccessBody(t, ob, "T_HOOK_001", 2000000)
	signature := sign(original)

	// Signature was computed over the original body; delivery carries a
	// different amount
	tampered := bytes.Replace(original, []byte("2000000"), []byte("100"), 1)

	rec := deliverWebhook(t, h, tampered, signature)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	var payments, events int64
	db.Model(&models.Payment{}).Count(&payments)
	db.Model(&models.GatewayEvent{}).Count(&events)
	if payments != 0 {
		t.Errorf("payment rows = %d, want 0 after rejected delivery", payments)
	}
	if events != 0 {
		t.Errorf("audit rows = %d, want 0 after rejected delivery", events)
	}
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	h, _, ob := newWebhookFixture(t)

	body := chargeSuccessBody(t, ob, "T_HOOK_002", 2000000)
	rec := deliverWebhook(t, h, body, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestWebhookChargeSuccessRecordsPayment(t *testing.T) {
	h, db, ob := newWebhookFixture(t)

	body := chargeSuccessBody(t, ob, "T_HOOK_003", 2000000)
	rec := deliverWebhook(t, h, body, sign(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	var payment models.Payment
	if err := db.Where("transaction_reference = ?", "T_HOOK_003").First(&payment).Error; err != nil {
		t.Fatalf("payment not recorded: %v", err)
	}
	if !payment.AmountPaid.Equal(decimal.RequireFromString("20000")) {
		t.Errorf("amount recorded = %s, want 20000 (from 2000000 kobo)", payment.AmountPaid)
	}
	if !payment.PlatformFee.Equal(decimal.RequireFromString("1000")) {
		t.Errorf("platform fee = %s, want 1000", payment.PlatformFee)
	}

	var fresh models.Obligation
	db.First(&fresh, ob.ID)
	if fresh.Status != models.ObligationStatusPaid {
		t.Errorf("obligation status = %s, want paid", fresh.Status)
	}

	var audit models.GatewayEvent
	if err := db.Where("reference = ?", "T_HOOK_003").First(&audit).Error; err != nil {
		t.Fatalf("audit row not created: %v", err)
	}
	if audit.Outcome != models.GatewayEventOutcomeRecorded {
		t.Errorf("audit outcome = %s, want recorded", audit.Outcome)
	}
}

func TestWebhookRedeliveryIsIdempotent(t *testing.T) {
	h, db, ob := newWebhookFixture(t)

	body := chargeSuccessBody(t, ob, "T_HOOK_004", 2000000)
	signature := sign(body)

	for i := 0; i < 2; i++ {
		rec := deliverWebhook(t, h, body, signature)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	var payments int64
	db.Model(&models.Payment{}).Where("transaction_reference = ?", "T_HOOK_004").Count(&payments)
	if payments != 1 {
		t.Errorf("payment rows = %d, want 1 after redelivery", payments)
	}

	var fresh models.Obligation
	db.First(&fresh, ob.ID)
	if !fresh.AmountPaid.Equal(decimal.RequireFromString("20000")) {
		t.Errorf("amount_paid = %s, want 20000 (applied exactly once)", fresh.AmountPaid)
	}

	// Both deliveries stay visible in the audit log
	var events int64
	db.Model(&models.GatewayEvent{}).Where("reference = ?", "T_HOOK_004").Count(&events)
	if events != 2 {
		t.Errorf("audit rows = %d, want 2", events)
	}
}

func TestWebhookUnknownEventIgnored(t *testing.T) {
	h, db, _ := newWebhookFixture(t)

	body := []byte(`{"event":"subscription.create","data":{"reference":"T_HOOK_005"}}`)
	rec := deliverWebhook(t, h, body, sign(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var payments int64
	db.Model(&models.Payment{}).Count(&payments)
	if payments != 0 {
		t.Errorf("payment rows = %d, want 0", payments)
	}

	var audit models.GatewayEvent
	if err := db.Where("reference = ?", "T_HOOK_005").First(&audit).Error; err != nil {
		t.Fatalf("audit row not created: %v", err)
	}
	if audit.Outcome != models.GatewayEventOutcomeIgnored {
		t.Errorf("audit outcome = %s, want ignored", audit.Outcome)
	}
}
