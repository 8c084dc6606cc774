package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-ops-api/internal/dto"
	"github.com/noah-isme/tutor-ops-api/internal/service"
	appErrors "github.com/noah-isme/tutor-ops-api/pkg/errors"
	"github.com/noah-isme/tutor-ops-api/pkg/response"
)

// PayrollHandler exposes pay-period locking, adjustments, invoice generation
// and exports.
type PayrollHandler struct {
	periods   *service.PayPeriodService
	payroll   *service.PayrollService
	integrity *service.IntegrityService
}

// NewPayrollHandler creates a new handler.
func NewPayrollHandler(periods *service.PayPeriodService, payroll *service.PayrollService, integrity *service.IntegrityService) *PayrollHandler {
	return &PayrollHandler{periods: periods, payroll: payroll, integrity: integrity}
}

// LockPeriod godoc
// @Summary Lock a pay period
// @Description Close a week for mutation; fails while submitted sessions remain
// @Tags Payroll
// @Accept json
// @Produce json
// @Param payload body dto.LockPeriodRequest true "Lock payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pay-periods/lock [post]
func (h *PayrollHandler) LockPeriod(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.LockPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidRequest.Code, http.StatusBadRequest, "invalid lock payload"))
		return
	}

	lock, err := h.periods.Lock(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, lock, nil)
}

// ListLocks godoc
// @Summary List locked pay periods
// @Tags Payroll
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /pay-periods/locks [get]
func (h *PayrollHandler) ListLocks(c *gin.Context) {
	locks, err := h.periods.ListLocks(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, locks, nil)
}

// CreateAdjustment godoc
// @Summary Create an adjustment
// @Description Record a manual bonus or penalty for a tutor and open period
// @Tags Payroll
// @Accept json
// @Produce json
// @Param payload body dto.CreateAdjustmentRequest true "Adjustment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pay-periods/adjustments [post]
func (h *PayrollHandler) CreateAdjustment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidRequest.Code, http.StatusBadRequest, "invalid adjustment payload"))
		return
	}

	adjustment, err := h.periods.CreateAdjustment(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, adjustment)
}

// DeleteAdjustment godoc
// @Summary Delete an adjustment
// @Description Remove an adjustment while its period is still open
// @Tags Payroll
// @Produce json
// @Param id path string true "Adjustment id"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pay-periods/adjustments/{id} [delete]
func (h *PayrollHandler) DeleteAdjustment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.periods.DeleteAdjustment(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// ListAdjustments godoc
// @Summary List adjustments
// @Tags Payroll
// @Produce json
// @Param period_start query string true "Pay period start (YYYY-MM-DD)"
// @Param tutor_id query string false "Tutor id"
// @Success 200 {object} response.Envelope
// @Router /pay-periods/adjustments [get]
func (h *PayrollHandler) ListAdjustments(c *gin.Context) {
	adjustments, err := h.periods.ListAdjustments(c.Request.Context(), c.Query("period_start"), c.Query("tutor_id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, adjustments, nil)
}

// Generate godoc
// @Summary Generate weekly payroll
// @Description Build one invoice per tutor with approved sessions; idempotent per period
// @Tags Payroll
// @Accept json
// @Produce json
// @Param payload body dto.GeneratePayrollRequest true "Generate payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payroll/generate [post]
func (h *PayrollHandler) Generate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.GeneratePayrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidRequest.Code, http.StatusBadRequest, "invalid payroll payload"))
		return
	}

	invoices, err := h.payroll.GenerateWeek(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, invoices)
}

// ListInvoices godoc
// @Summary List a period's invoices
// @Tags Payroll
// @Produce json
// @Param period_start query string true "Pay period start (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /payroll/invoices [get]
func (h *PayrollHandler) ListInvoices(c *gin.Context) {
	invoices, err := h.payroll.ListInvoices(c.Request.Context(), c.Query("period_start"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, invoices, nil)
}

// MarkPaid godoc
// @Summary Mark an invoice paid
// @Description Flip an ISSUED invoice to PAID; there is no reversal
// @Tags Payroll
// @Produce json
// @Param id path string true "Invoice id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payroll/invoices/{id}/pay [post]
func (h *PayrollHandler) MarkPaid(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	invoice, err := h.payroll.MarkPaid(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, invoice, nil)
}

// Export godoc
// @Summary Export a period's payroll
// @Description Download the period's invoice lines as CSV or PDF
// @Tags Payroll
// @Produce octet-stream
// @Param period_start query string true "Pay period start (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /payroll/export [get]
func (h *PayrollHandler) Export(c *gin.Context) {
	periodStart := c.Query("period_start")

	var (
		payload     []byte
		filename    string
		contentType string
		err         error
	)
	switch c.DefaultQuery("format", "csv") {
	case "csv":
		payload, filename, err = h.payroll.ExportCSV(c.Request.Context(), periodStart)
		contentType = "text/csv"
	case "pdf":
		payload, filename, err = h.payroll.ExportPDF(c.Request.Context(), periodStart)
		contentType = "application/pdf"
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidRequest, "format must be csv or pdf"))
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}

// Integrity godoc
// @Summary Reconcile a period
// @Description Diff the ledger against generated invoices and report drift
// @Tags Payroll
// @Produce json
// @Param period_start query string true "Pay period start (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /payroll/integrity [get]
func (h *PayrollHandler) Integrity(c *gin.Context) {
	report, err := h.integrity.Report(c.Request.Context(), c.Query("period_start"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, report, nil)
}
