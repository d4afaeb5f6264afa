package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"schoolpay_echo/internal/services"
)

const bankListCacheKey = "gateway_bank_list"

// BankHandler covers school bank onboarding: the bank directory, account name
// resolution, and subaccount/split setup at the gateway
type BankHandler struct {
	gateway  *services.PaystackService
	settings *services.SettingsService
	cache    *services.RedisCache
}

func NewBankHandler(gateway *services.PaystackService, settings *services.SettingsService, cache *services.RedisCache) *BankHandler {
	return &BankHandler{gateway: gateway, settings: settings, cache: cache}
}

// ListBanks returns the gateway's bank directory, cached for a day
func (h *BankHandler) ListBanks(c echo.Context) error {
	ctx := c.Request().Context()

	fetch := func() ([]services.Bank, error) {
		return h.gateway.ListBanks(ctx)
	}

	var banks []services.Bank
	var err error
	if h.cache != nil {
		banks, err = services.GetOrSet(h.cache, ctx, bankListCacheKey, 24*time.Hour, fetch)
	} else {
		banks, err = fetch()
	}
	if err != nil {
		return gatewayHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"banks": banks})
}

// ResolveAccount looks up the account name behind an account number, used by
// the onboarding form before anything is persisted
func (h *BankHandler) ResolveAccount(c echo.Context) error {
	accountNumber := c.QueryParam("account_number")
	bankCode := c.QueryParam("bank_code")
	if accountNumber == "" || bankCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_number and bank_code are required")
	}

	accountName, err := h.gateway.ResolveAccount(c.Request().Context(), accountNumber, bankCode)
	if err != nil {
		return gatewayHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"account_name":   accountName,
		"account_number": accountNumber,
		"bank_code":      bankCode,
	})
}

// CreateSubaccount onboards the school's settlement account: creates the
// subaccount and the reusable split rule at the gateway, then persists both
// codes in settings. Neither gateway call is retried on failure; the caller
// sees the gateway's error and decides.
func (h *BankHandler) CreateSubaccount(c echo.Context) error {
	var req SubaccountOnboardingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()

	settings, err := h.settings.Get(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load gateway settings")
	}
	if settings.SubaccountCode != "" {
		return echo.NewHTTPError(http.StatusConflict, "A subaccount is already configured")
	}

	accountName, err := h.gateway.ResolveAccount(ctx, req.AccountNumber, req.BankCode)
	if err != nil {
		return gatewayHTTPError(err)
	}

	schoolPercent := decimal.NewFromInt(100).Sub(settings.PlatformPercent)

	subaccountCode, err := h.gateway.CreateSubaccount(ctx, services.SubaccountRequest{
		BusinessName:  req.BusinessName,
		BankCode:      req.BankCode,
		AccountNumber: req.AccountNumber,
		SchoolPercent: schoolPercent,
	})
	if err != nil {
		return gatewayHTTPError(err)
	}

	splitCode, err := h.gateway.CreateSplit(ctx, req.BusinessName+" fees split", subaccountCode, schoolPercent)
	if err != nil {
		// Subaccount exists but the split rule does not; surface it so the
		// operator can finish setup manually rather than re-running both
		return echo.NewHTTPError(http.StatusBadGateway,
			"Subaccount "+subaccountCode+" created but split rule failed: "+err.Error())
	}

	settings.SubaccountCode = subaccountCode
	settings.SplitCode = splitCode
	settings.BusinessName = req.BusinessName
	settings.BankCode = req.BankCode
	settings.AccountNumber = req.AccountNumber
	settings.AccountName = accountName

	if err := h.settings.Save(ctx, settings); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to persist gateway settings")
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"subaccount_code": subaccountCode,
		"split_code":      splitCode,
		"account_name":    accountName,
	})
}

// gatewayHTTPError maps gateway failures onto HTTP responses
func gatewayHTTPError(err error) error {
	var gwErr *services.GatewayError
	if errors.As(err, &gwErr) {
		return echo.NewHTTPError(http.StatusBadGateway, gwErr.Message)
	}
	if errors.Is(err, services.ErrGatewayNotConfigured) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
