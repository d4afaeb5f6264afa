package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"schoolpay_echo/internal/models"
)

type ObligationHandler struct {
	db *gorm.DB
}

func NewObligationHandler(db *gorm.DB) *ObligationHandler {
	return &ObligationHandler{db: db}
}

// CreateObligation assigns a fee type to a student for a session/term. The
// total defaults from the fee type when not given. Duplicate assignments are
// rejected by the composite unique index.
func (h *ObligationHandler) CreateObligation(c echo.Context) error {
	var req CreateObligationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var student models.Student
	if err := h.db.First(&student, req.StudentID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Student not found")
	}
	var feeType models.FeeType
	if err := h.db.First(&feeType, req.FeeTypeID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Fee type not found")
	}

	total := feeType.DefaultAmount
	if req.TotalAmount != nil {
		total = *req.TotalAmount
	}
	if total.LessThanOrEqual(decimal.Zero) {
		return echo.NewHTTPError(http.StatusBadRequest, "Total amount must be greater than zero")
	}

	installments := req.InstallmentsCount
	if installments == 0 {
		installments = 2
	}

	ob := models.Obligation{
		StudentID:         req.StudentID,
		FeeTypeID:         req.FeeTypeID,
		Session:           req.Session,
		Term:              req.Term,
		TotalAmount:       total,
		AmountPaid:        decimal.Zero,
		Status:            models.ObligationStatusPending,
		AllowInstallments: req.AllowInstallments,
		InstallmentsCount: installments,
	}
	if err := h.db.Create(&ob).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return echo.NewHTTPError(http.StatusConflict, "Obligation already exists for this student, fee, session and term")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create obligation")
	}

	return c.JSON(http.StatusCreated, ob)
}

// ListObligations returns obligations with derived balances, filtered by
// student/session/term/status
func (h *ObligationHandler) ListObligations(c echo.Context) error {
	query := h.db.Model(&models.Obligation{}).Preload("Student").Preload("FeeType")

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
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	page := 1
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	pageSize := 20

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to count obligations")
	}

	var obligations []models.Obligation
	if err := query.Order("id desc").Limit(pageSize).Offset((page - 1) * pageSize).Find(&obligations).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch obligations")
	}

	items := make([]map[string]interface{}, 0, len(obligations))
	for _, ob := range obligations {
		items = append(items, obligationWithBalance(ob))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"obligations": items,
		"total_count": totalCount,
		"page":        page,
		"page_size":   pageSize,
	})
}

// GetObligation returns one obligation with its payments and derived balance
func (h *ObligationHandler) GetObligation(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid obligation ID")
	}

	var ob models.Obligation
	if err := h.db.Preload("Student").Preload("FeeType").Preload("Payments").First(&ob, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Obligation not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch obligation")
	}

	return c.JSON(http.StatusOK, obligationWithBalance(ob))
}

func obligationWithBalance(ob models.Obligation) map[string]interface{} {
	return map[string]interface{}{
		"obligation": ob,
		"balance":    ob.Balance(),
	}
}
