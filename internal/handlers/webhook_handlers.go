package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"schoolpay_echo/internal/models"
	"schoolpay_echo/internal/services"
)

type WebhookHandler struct {
	db       *gorm.DB
	gateway  *services.PaystackService
	payments *services.PaymentService
	email    *services.EmailService
}

func NewWebhookHandler(db *gorm.DB, gateway *services.PaystackService, payments *services.PaymentService, email *services.EmailService) *WebhookHandler {
	return &WebhookHandler{db: db, gateway: gateway, payments: payments, email: email}
}

// webhookEvent is the outer shape of a gateway notification
type webhookEvent struct {
	Event string                      `json:"event"`
	Data  services.GatewayTransaction `json:"data"`
}

// HandlePaystackWebhook authenticates and dispatches gateway notifications.
// Signature mismatch is the only non-200 auth outcome; recording failures
// still return 200 so the gateway stops redelivering, and the audit row keeps
// the failure visible for manual reconciliation. Redelivery of the same event
// is safe: the recording path is idempotent by transaction reference.
func (h *WebhookHandler) HandlePaystackWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
	}

	signature := c.Request().Header.Get(services.SignatureHeader)
	if !h.gateway.ValidWebhookSignature(body, signature) {
		log.Printf("Webhook rejected: bad signature from %s", c.RealIP())
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid signature")
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}

	audit := models.GatewayEvent{
		Gateway:   models.PaymentGatewayPaystack,
		EventType: event.Event,
		Reference: event.Data.Reference,
		Payload:   json.RawMessage(body),
	}

	switch event.Event {
	case "charge.success":
		payment, recErr := h.payments.RecordGatewayTransaction(c.Request().Context(), &event.Data)
		if recErr != nil {
			// Funds are captured at the gateway; dropping this silently
			// would lose money. Log loudly, keep the audit row, let the
			// gateway consider it delivered.
			log.Printf("Failed to record charge.success %s: %v", event.Data.Reference, recErr)
			audit.Outcome = models.GatewayEventOutcomeFailed
			audit.Detail = recErr.Error()
		} else {
			audit.Outcome = models.GatewayEventOutcomeRecorded
			audit.Detail = payment.ReceiptNumber
			sendPaymentReceipt(h.db, h.email, payment)
		}

	case "charge.failed", "transfer.success", "transfer.failed":
		// No state mutation for these yet; kept visible in the audit log
		log.Printf("Webhook event %s for %s logged, no action taken", event.Event, event.Data.Reference)
		audit.Outcome = models.GatewayEventOutcomeIgnored

	default:
		log.Printf("Unrecognized webhook event %q ignored", event.Event)
		audit.Outcome = models.GatewayEventOutcomeIgnored
	}

	if err := h.db.Create(&audit).Error; err != nil {
		log.Printf("Failed to store webhook audit row for %s: %v", event.Data.Reference, err)
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
