package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-ledger-api/internal/dto"
	"github.com/noah-isme/tutor-ledger-api/internal/middleware"
	"github.com/noah-isme/tutor-ledger-api/internal/models"
	"github.com/noah-isme/tutor-ledger-api/internal/service"
	appErrors "github.com/noah-isme/tutor-ledger-api/pkg/errors"
	"github.com/noah-isme/tutor-ledger-api/pkg/export"
	"github.com/noah-isme/tutor-ledger-api/pkg/response"
)

type ledgerService interface {
	ApplyTeacherPayment(ctx context.Context, teacherID string, amount float64) (*models.PaymentResult, error)
	DeleteTeacherPending(ctx context.Context, teacherID string) (*models.DeletionResult, error)
	CleanupZeroPending(ctx context.Context, teacherID string) (*models.DeletionResult, error)
	InitializeDefaultFee(ctx context.Context, teacherID string, req dto.DefaultFeeRequest) (*models.InitializationResult, error)
	InitializeDefaultFeeForAll(ctx context.Context, req dto.DefaultFeeRequest) (*models.BulkInitializationResult, error)
	AddAccountingCharge(ctx context.Context, req dto.ChargeRequest) (*models.AccountingEntry, error)
	ChargeStudentAtDefaultFee(ctx context.Context, studentID string) (*models.AccountingEntry, error)
	GetTeacherFee(ctx context.Context, teacherID string) (*models.TeacherFeeSetting, error)
	UpdateTeacherFee(ctx context.Context, teacherID string, req dto.SetFeeRequest) (*models.TeacherFeeSetting, error)
	ListTeacherEntries(ctx context.Context, teacherID, status string) ([]models.AccountingEntry, error)
}

type accountingReportService interface {
	ListTeacherAccountingStats(ctx context.Context, period models.DateRange) ([]models.TeacherAccountingStats, bool, error)
	GetTeacherAccountingDetails(ctx context.Context, teacherID string) (*models.TeacherAccountingDetails, bool, error)
	ExportTeacherAccountingStats(ctx context.Context, period models.DateRange, format export.Format) (*service.ExportFile, error)
}

// AccountingHandler exposes the teacher billing ledger.
type AccountingHandler struct {
	ledger  ledgerService
	reports accountingReportService
}

// NewAccountingHandler builds a new handler.
func NewAccountingHandler(ledger ledgerService, reports accountingReportService) *AccountingHandler {
	return &AccountingHandler{ledger: ledger, reports: reports}
}

// ListStats godoc
// @Summary List pending totals per teacher
// @Tags Accounting
// @Produce json
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD), inclusive"
// @Success 200 {object} response.Envelope
// @Router /accounting/teachers [get]
func (h *AccountingHandler) ListStats(c *gin.Context) {
	period, ok := bindPeriod(c)
	if !ok {
		return
	}
	stats, cacheHit, err := h.reports.ListTeacherAccountingStats(c.Request.Context(), period)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	if period.From != nil {
		middleware.SetMeta(c, "from", period.From.Format("2006-01-02"))
	}
	if period.To != nil {
		middleware.SetMeta(c, "to", period.To.Format("2006-01-02"))
	}
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// ExportStats godoc
// @Summary Export pending totals per teacher
// @Tags Accounting
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD), inclusive"
// @Success 200 {file} file
// @Router /accounting/teachers/export [get]
func (h *AccountingHandler) ExportStats(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "format must be csv or pdf"))
		return
	}
	period, ok := bindPeriod(c)
	if !ok {
		return
	}
	file, err := h.reports.ExportTeacherAccountingStats(c.Request.Context(), period, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Body)
}

// Details godoc
// @Summary Get a teacher's pending balance by student
// @Tags Accounting
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /accounting/teachers/{id} [get]
func (h *AccountingHandler) Details(c *gin.Context) {
	details, cacheHit, err := h.reports.GetTeacherAccountingDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, details, nil, middleware.ExtractMeta(c))
}

// Entries godoc
// @Summary List a teacher's ledger entries
// @Tags Accounting
// @Produce json
// @Param id path string true "Teacher ID"
// @Param status query string false "pending or paid"
// @Success 200 {object} response.Envelope
// @Router /accounting/teachers/{id}/entries [get]
func (h *AccountingHandler) Entries(c *gin.Context) {
	entries, err := h.ledger.ListTeacherEntries(c.Request.Context(), c.Param("id"), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// GetFee godoc
// @Summary Get a teacher's default per-student fee
// @Tags Accounting
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /accounting/teachers/{id}/fee [get]
func (h *AccountingHandler) GetFee(c *gin.Context) {
	setting, err := h.ledger.GetTeacherFee(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting, nil)
}

// SetFee godoc
// @Summary Set a teacher's default fee without generating charges
// @Tags Accounting
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body dto.SetFeeRequest true "Fee payload"
// @Success 200 {object} response.Envelope
// @Router /accounting/teachers/{id}/fee [put]
func (h *AccountingHandler) SetFee(c *gin.Context) {
	var req dto.SetFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid fee payload"))
		return
	}
	setting, err := h.ledger.UpdateTeacherFee(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, setting, nil)
}

// ApplyPayment godoc
// @Summary Apply a teacher payment to pending entries, oldest first
// @Tags Accounting
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body dto.ApplyPaymentRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /accounting/teachers/{id}/payments [post]
func (h *AccountingHandler) ApplyPayment(c *gin.Context) {
	var req dto.ApplyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}
	result, err := h.ledger.ApplyTeacherPayment(c.Request.Context(), c.Param("id"), req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DeletePending godoc
// @Summary Delete all pending entries of a teacher
// @Tags Accounting
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /accounting/teachers/{id}/pending [delete]
func (h *AccountingHandler) DeletePending(c *gin.Context) {
	result, err := h.ledger.DeleteTeacherPending(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Cleanup godoc
// @Summary Remove zero or negative pending entries of a teacher
// @Tags Accounting
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /accounting/teachers/{id}/cleanup [post]
func (h *AccountingHandler) Cleanup(c *gin.Context) {
	result, err := h.ledger.CleanupZeroPending(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// InitializeTeacher godoc
// @Summary Initialise pending charges for a teacher's students at a default fee
// @Tags Accounting
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body dto.DefaultFeeRequest true "Default fee payload"
// @Success 200 {object} response.Envelope
// @Router /accounting/teachers/{id}/default-fee [post]
func (h *AccountingHandler) InitializeTeacher(c *gin.Context) {
	req, ok := bindDefaultFee(c)
	if !ok {
		return
	}
	result, err := h.ledger.InitializeDefaultFee(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// InitializeAll godoc
// @Summary Initialise pending charges for every teacher at a default fee
// @Tags Accounting
// @Accept json
// @Produce json
// @Param payload body dto.DefaultFeeRequest true "Default fee payload"
// @Success 200 {object} response.Envelope
// @Router /accounting/default-fee [post]
func (h *AccountingHandler) InitializeAll(c *gin.Context) {
	req, ok := bindDefaultFee(c)
	if !ok {
		return
	}
	result, err := h.ledger.InitializeDefaultFeeForAll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// AddCharge godoc
// @Summary Add a pending charge for a student
// @Tags Accounting
// @Accept json
// @Produce json
// @Param payload body dto.ChargeRequest true "Charge payload"
// @Success 201 {object} response.Envelope
// @Router /accounting/charges [post]
func (h *AccountingHandler) AddCharge(c *gin.Context) {
	var req dto.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid charge payload"))
		return
	}
	entry, err := h.ledger.AddAccountingCharge(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// ChargeDefault godoc
// @Summary Charge a student at their teacher's default fee
// @Tags Accounting
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope "no fee applied"
// @Success 201 {object} response.Envelope "charge created"
// @Router /accounting/students/{id}/charge-default [post]
func (h *AccountingHandler) ChargeDefault(c *gin.Context) {
	entry, err := h.ledger.ChargeStudentAtDefaultFee(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if entry == nil {
		response.JSON(c, http.StatusOK, dto.ChargeDefaultResponse{Charged: false}, nil)
		return
	}
	response.Created(c, dto.ChargeDefaultResponse{Charged: true, Entry: entry})
}

func bindPeriod(c *gin.Context) (models.DateRange, bool) {
	var filter dto.AccountingStatsFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid date range"))
		return models.DateRange{}, false
	}
	filter.From = strings.TrimSpace(filter.From)
	filter.To = strings.TrimSpace(filter.To)
	period, err := service.ParseDateRange(filter)
	if err != nil {
		response.Error(c, err)
		return models.DateRange{}, false
	}
	return period, true
}

func bindDefaultFee(c *gin.Context) (dto.DefaultFeeRequest, bool) {
	var req dto.DefaultFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid default fee payload"))
		return req, false
	}
	return req, true
}
