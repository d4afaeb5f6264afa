package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

// SignatureHeader is the header Paystack signs webhook deliveries with
const SignatureHeader = "x-paystack-signature"

const defaultPaystackBaseURL = "https://api.paystack.co"

// ErrGatewayNotConfigured is returned when the secret key is missing.
// Surfaced by the operation that needs the key, not at boot.
var ErrGatewayNotConfigured = fmt.Errorf("PAYSTACK_SECRET_KEY is not configured")

// GatewayError is a structured failure from the gateway API. Callers must not
// assume success and must not auto-retry non-idempotent calls on it.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("paystack: %s (http %d)", e.Message, e.StatusCode)
}

// PaystackService wraps the gateway's HTTP API
type PaystackService struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

func NewPaystackService() *PaystackService {
	baseURL := os.Getenv("PAYSTACK_BASE_URL")
	if baseURL == "" {
		baseURL = defaultPaystackBaseURL
	}

	return &PaystackService{
		secretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		baseURL:   baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiEnvelope is the JSON envelope every gateway response arrives in
type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// PaymentMetadata is the business context attached to an initialization and
// round-tripped back on verification/webhook. Treated as untrusted on the way
// back: the recording path re-validates every id against the database.
type PaymentMetadata struct {
	StudentID         uint   `json:"student_id"`
	FeeTypeID         uint   `json:"fee_type_id"`
	ObligationID      uint   `json:"obligation_id,omitempty"`
	Session           string `json:"session"`
	Term              string `json:"term"`
	InstallmentNumber *int   `json:"installment_number,omitempty"`
}

// InitializeRequest holds the inputs for a hosted-checkout initialization
type InitializeRequest struct {
	Email       string
	Amount      decimal.Decimal
	CallbackURL string
	SplitCode   string
	Metadata    PaymentMetadata
}

// InitializeResponse is the hosted-checkout session the gateway opened
type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// GatewayTransaction is the gateway's view of one transaction
type GatewayTransaction struct {
	ID        int64  `json:"id"`
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"` // minor units (kobo)
	Currency  string `json:"currency"`
	Channel   string `json:"channel"`
	PaidAt    string `json:"paid_at"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
	Metadata PaymentMetadata `json:"metadata"`
}

// AmountMajor converts the gateway's minor-unit amount back to currency units
func (t GatewayTransaction) AmountMajor() decimal.Decimal {
	return decimal.NewFromInt(t.Amount).Div(oneHundred)
}

// Bank is one entry from the gateway's bank directory
type Bank struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// SubaccountRequest holds the inputs for onboarding a school's bank account
type SubaccountRequest struct {
	BusinessName  string
	BankCode      string
	AccountNumber string
	SchoolPercent decimal.Decimal
}

// do performs one call against the gateway and decodes the envelope into out.
// A non-true envelope status or an HTTP error surfaces as *GatewayError.
func (s *PaystackService) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	if s.secretKey == "" {
		return ErrGatewayNotConfigured
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return &GatewayError{StatusCode: resp.StatusCode, Message: "unparseable response"}
	}

	if !envelope.Status || resp.StatusCode >= 400 {
		return &GatewayError{StatusCode: resp.StatusCode, Message: envelope.Message}
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode gateway data: %w", err)
		}
	}
	return nil
}

// InitializeTransaction opens a hosted-checkout session. The amount is
// converted to kobo (minor units); the metadata rides along and comes back on
// verification and webhook delivery.
func (s *PaystackService) InitializeTransaction(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	// Amounts are 2dp currency; round before converting so a sub-kobo
	// fraction cannot be truncated into a mismatched charge
	payload := map[string]interface{}{
		"email":    req.Email,
		"amount":   req.Amount.Round(2).Mul(oneHundred).IntPart(),
		"metadata": req.Metadata,
	}
	if req.CallbackURL != "" {
		payload["callback_url"] = req.CallbackURL
	}
	if req.SplitCode != "" {
		payload["split_code"] = req.SplitCode
	}

	var out InitializeResponse
	if err := s.do(ctx, http.MethodPost, "/transaction/initialize", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTransaction fetches the current status of a transaction by reference
func (s *PaystackService) VerifyTransaction(ctx context.Context, reference string) (*GatewayTransaction, error) {
	var out GatewayTransaction
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := s.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSubaccount associates the school's bank account with the gateway for
// settlement splitting. Not idempotent; never auto-retried.
func (s *PaystackService) CreateSubaccount(ctx context.Context, req SubaccountRequest) (string, error) {
	payload := map[string]interface{}{
		"business_name":     req.BusinessName,
		"settlement_bank":   req.BankCode,
		"account_number":    req.AccountNumber,
		"percentage_charge": req.SchoolPercent,
	}

	var out struct {
		SubaccountCode string `json:"subaccount_code"`
	}
	if err := s.do(ctx, http.MethodPost, "/subaccount", payload, &out); err != nil {
		return "", err
	}
	return out.SubaccountCode, nil
}

// CreateSplit configures a reusable percentage split rule against a
// subaccount, referenced by future initializations via its split code
func (s *PaystackService) CreateSplit(ctx context.Context, name, subaccountCode string, schoolPercent decimal.Decimal) (string, error) {
	payload := map[string]interface{}{
		"name":     name,
		"type":     "percentage",
		"currency": "NGN",
		"subaccounts": []map[string]interface{}{
			{"subaccount": subaccountCode, "share": schoolPercent},
		},
		"bearer_type": "all",
	}

	var out struct {
		SplitCode string `json:"split_code"`
	}
	if err := s.do(ctx, http.MethodPost, "/split", payload, &out); err != nil {
		return "", err
	}
	return out.SplitCode, nil
}

// ListBanks returns the gateway's bank directory for onboarding forms
func (s *PaystackService) ListBanks(ctx context.Context) ([]Bank, error) {
	var out []Bank
	if err := s.do(ctx, http.MethodGet, "/bank?country=nigeria", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveAccount looks up the account name behind an account number
func (s *PaystackService) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (string, error) {
	var out struct {
		AccountName string `json:"account_name"`
	}
	q := url.Values{}
	q.Set("account_number", accountNumber)
	q.Set("bank_code", bankCode)
	if err := s.do(ctx, http.MethodGet, "/bank/resolve?"+q.Encode(), nil, &out); err != nil {
		return "", err
	}
	return out.AccountName, nil
}

// ValidWebhookSignature checks the HMAC-SHA512 hex digest of the raw webhook
// body against the signature header, in constant time
func (s *PaystackService) ValidWebhookSignature(body []byte, signature string) bool {
	if s.secretKey == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(s.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
