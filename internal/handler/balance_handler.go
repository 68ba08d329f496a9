package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/printlab/printlab-api/internal/models"
	"github.com/printlab/printlab-api/internal/service"
	appErrors "github.com/printlab/printlab-api/pkg/errors"
	"github.com/printlab/printlab-api/pkg/response"
)

// BalanceHandler exposes account balance and ledger endpoints.
type BalanceHandler struct {
	service *service.BalanceService
}

// NewBalanceHandler constructs a balance handler.
func NewBalanceHandler(svc *service.BalanceService) *BalanceHandler {
	return &BalanceHandler{service: svc}
}

// Targeted routes carry a :id parameter; /balance routes act on the caller.
func (h *BalanceHandler) targetUserID(c *gin.Context) (string, bool) {
	if id := c.Param("id"); id != "" {
		return id, true
	}
	claims := claimsFromContext(c)
	if claims == nil {
		return "", false
	}
	return claims.UserID, true
}

// Summary godoc
// @Summary Quick balance view
// @Tags Balance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /balance [get]
func (h *BalanceHandler) Summary(c *gin.Context) {
	userID, ok := h.targetUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Detail godoc
// @Summary Full balance view with spend statistics
// @Tags Balance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /balance/detail [get]
func (h *BalanceHandler) Detail(c *gin.Context) {
	userID, ok := h.targetUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.service.Detail(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// History godoc
// @Summary Ledger history, newest first
// @Tags Balance
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max entries"
// @Success 200 {object} response.Envelope
// @Router /balance/history [get]
func (h *BalanceHandler) History(c *gin.Context) {
	userID, ok := h.targetUserID(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.service.History(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

type adjustmentFunc func(ctx context.Context, userID string, req service.AdjustmentRequest, actor service.Actor) (*models.LedgerEntry, error)

// Recharge godoc
// @Summary Credit a user's account
// @Tags Balance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body service.AdjustmentRequest true "Credit payload"
// @Success 201 {object} response.Envelope
// @Router /users/{id}/recharge [post]
func (h *BalanceHandler) Recharge(c *gin.Context) {
	h.adjust(c, h.service.Recharge)
}

// Refund godoc
// @Summary Refund a user for a failed or disputed job
// @Tags Balance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param payload body service.AdjustmentRequest true "Refund payload"
// @Success 201 {object} response.Envelope
// @Router /users/{id}/refund [post]
func (h *BalanceHandler) Refund(c *gin.Context) {
	h.adjust(c, h.service.Refund)
}

func (h *BalanceHandler) adjust(c *gin.Context, apply adjustmentFunc) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.AdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := apply(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}
