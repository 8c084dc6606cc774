package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutor-ops-api/internal/dto"
	"github.com/noah-isme/tutor-ops-api/internal/models"
	"github.com/noah-isme/tutor-ops-api/internal/service"
	appErrors "github.com/noah-isme/tutor-ops-api/pkg/errors"
	"github.com/noah-isme/tutor-ops-api/pkg/response"
)

// ApprovalHandler exposes the session review workflow.
type ApprovalHandler struct {
	service *service.ApprovalService
}

// NewApprovalHandler creates a new handler.
func NewApprovalHandler(svc *service.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{service: svc}
}

// Submit godoc
// @Summary Submit a session for review
// @Description Move a DRAFT session to SUBMITTED
// @Tags Approvals
// @Produce json
// @Param id path string true "Logical session id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/submit [post]
func (h *ApprovalHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	snapshot, err := h.service.Submit(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, snapshot, nil)
}

// Approve godoc
// @Summary Approve a submitted session
// @Description Move a SUBMITTED session to APPROVED
// @Tags Approvals
// @Produce json
// @Param id path string true "Logical session id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/approve [post]
func (h *ApprovalHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	snapshot, err := h.service.Approve(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, snapshot, nil)
}

// Reject godoc
// @Summary Reject a submitted session
// @Description Move a SUBMITTED session to REJECTED with an optional reason
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Logical session id"
// @Param payload body dto.RejectSessionRequest false "Reject payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/reject [post]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.RejectSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidRequest.Code, http.StatusBadRequest, "invalid reject payload"))
			return
		}
	}

	snapshot, err := h.service.Reject(c.Request.Context(), c.Param("id"), req.Reason, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, snapshot, nil)
}

// BulkApprove godoc
// @Summary Bulk approve sessions
// @Description Approve a batch of submitted sessions; each id reports its own outcome
// @Tags Approvals
// @Accept json
// @Produce json
// @Param payload body dto.BulkReviewRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sessions/bulk-approve [post]
func (h *ApprovalHandler) BulkApprove(c *gin.Context) {
	bulkReview(c, h.service.BulkApprove)
}

// BulkReject godoc
// @Summary Bulk reject sessions
// @Description Reject a batch of submitted sessions; each id reports its own outcome
// @Tags Approvals
// @Accept json
// @Produce json
// @Param payload body dto.BulkReviewRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sessions/bulk-reject [post]
func (h *ApprovalHandler) BulkReject(c *gin.Context) {
	bulkReview(c, h.service.BulkReject)
}

func bulkReview(c *gin.Context, apply func(ctx context.Context, req dto.BulkReviewRequest, actor *models.JWTClaims) []dto.BulkReviewResult) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.BulkReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidRequest.Code, http.StatusBadRequest, "invalid bulk payload"))
		return
	}

	results := apply(c.Request.Context(), req, claims)
	response.JSON(c, http.StatusOK, results, nil)
}
