package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestGateway(serverURL string) *PaystackService {
	return &PaystackService{
		secretKey:  "sk_test_secret",
		baseURL:    serverURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func TestInitializeTransactionConvertsToKobo(t *testing.T) {
	var gotPayload map[string]interface{}
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]string{
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code":       "abc123",
				"reference":         "T123456",
			},
		})
	}))
	defer srv.Close()

	gw := newTestGateway(srv.URL)
	resp, err := gw.InitializeTransaction(context.Background(), InitializeRequest{
		Email:  "parent@example.com",
		Amount: decimal.RequireFromString("5000"),
		Metadata: PaymentMetadata{
			StudentID: 1,
			FeeTypeID: 2,
			Session:   "2025/2026",
			Term:      "first",
		},
	})
	if err != nil {
		t.Fatalf("InitializeTransaction() error: %v", err)
	}

	if gotAuth != "Bearer sk_test_secret" {
		t.Errorf("Authorization header = %q, want Bearer sk_test_secret", gotAuth)
	}
	// 5000 naira must arrive as 500000 kobo
	if amount, _ := gotPayload["amount"].(float64); amount != 500000 {
		t.Errorf("amount sent = %v, want 500000", gotPayload["amount"])
	}
	if resp.Reference != "T123456" {
		t.Errorf("reference = %q, want T123456", resp.Reference)
	}
	if resp.AuthorizationURL != "https://checkout.paystack.com/abc123" {
		t.Errorf("authorization URL = %q", resp.AuthorizationURL)
	}
}

func TestInitializeTransactionRoundsSubKoboFractions(t *testing.T) {
	var gotAmount float64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		gotAmount, _ = payload["amount"].(float64)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]string{
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code":       "abc123",
				"reference":         "T123457",
			},
		})
	}))
	defer srv.Close()

	gw := newTestGateway(srv.URL)
	_, err := gw.InitializeTransaction(context.Background(), InitializeRequest{
		Email:  "parent@example.com",
		Amount: decimal.RequireFromString("100.005"),
	})
	if err != nil {
		t.Fatalf("InitializeTransaction() error: %v", err)
	}

	// 100.005 rounds to 100.01, never truncates to 100.00
	if gotAmount != 10001 {
		t.Errorf("amount sent = %v, want 10001", gotAmount)
	}
}

func TestVerifyTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/T123456" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  true,
			"message": "Verification successful",
			"data": map[string]interface{}{
				"id":        12345,
				"status":    "success",
				"reference": "T123456",
				"amount":    2000000,
				"currency":  "NGN",
				"channel":   "card",
				"customer":  map[string]string{"email": "parent@example.com"},
				"metadata":  map[string]interface{}{"student_id": 1, "fee_type_id": 2},
			},
		})
	}))
	defer srv.Close()

	gw := newTestGateway(srv.URL)
	txn, err := gw.VerifyTransaction(context.Background(), "T123456")
	if err != nil {
		t.Fatalf("VerifyTransaction() error: %v", err)
	}

	if txn.Status != "success" {
		t.Errorf("status = %q, want success", txn.Status)
	}
	// 2000000 kobo back to 20000 naira
	if !txn.AmountMajor().Equal(decimal.RequireFromString("20000")) {
		t.Errorf("AmountMajor() = %s, want 20000", txn.AmountMajor())
	}
	if txn.Metadata.StudentID != 1 || txn.Metadata.FeeTypeID != 2 {
		t.Errorf("metadata not round-tripped: %+v", txn.Metadata)
	}
}

func TestGatewayErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  false,
			"message": "Invalid key",
		})
	}))
	defer srv.Close()

	gw := newTestGateway(srv.URL)
	_, err := gw.VerifyTransaction(context.Background(), "T123456")

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *GatewayError, got %T: %v", err, err)
	}
	if gwErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", gwErr.StatusCode)
	}
	if gwErr.Message != "Invalid key" {
		t.Errorf("Message = %q, want Invalid key", gwErr.Message)
	}
}

func TestMissingSecretKey(t *testing.T) {
	gw := &PaystackService{baseURL: defaultPaystackBaseURL, httpClient: http.DefaultClient}
	_, err := gw.VerifyTransaction(context.Background(), "T123456")
	if !errors.Is(err, ErrGatewayNotConfigured) {
		t.Errorf("expected ErrGatewayNotConfigured, got %v", err)
	}
}

func TestValidWebhookSignature(t *testing.T) {
	gw := &PaystackService{secretKey: "sk_test_secret"}
	body := []byte(`{"event":"charge.success","data":{"reference":"T123456","amount":500000}}`)

	mac := hmac.New(sha512.New, []byte("sk_test_secret"))
	mac.Write(body)
	valid := hex.EncodeToString(mac.Sum(nil))

	if !gw.ValidWebhookSignature(body, valid) {
		t.Error("valid signature rejected")
	}

	tampered := []byte(`{"event":"charge.success","data":{"reference":"T123456","amount":900000}}`)
	if gw.ValidWebhookSignature(tampered, valid) {
		t.Error("signature accepted for tampered body")
	}

	if gw.ValidWebhookSignature(body, "") {
		t.Error("empty signature accepted")
	}

	unconfigured := &PaystackService{}
	if unconfigured.ValidWebhookSignature(body, valid) {
		t.Error("signature accepted with no secret key configured")
	}
}
