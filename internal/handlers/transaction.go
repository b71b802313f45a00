package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"donation-platform/internal/dto"
	"donation-platform/internal/middleware"
	"donation-platform/internal/service"
)

// CheckoutSessionParam is the query parameter that unlocks a transaction's
// status for whoever started its checkout.
const CheckoutSessionParam = "checkout_session_id"

type TransactionHandler struct {
	Service service.TransactionService
	log     *zap.Logger
}

func NewTransactionHandler(svc service.TransactionService, log *zap.Logger) *TransactionHandler {
	return &TransactionHandler{Service: svc, log: log}
}

// Complete is the operator override for transactions whose webhook never
// arrived.
func (h *TransactionHandler) Complete(c *gin.Context) {
	var req dto.CompleteTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	id, err := service.ParseTransactionID(req.TransactionID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	resp, err := h.Service.Complete(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	if operator := c.GetString(middleware.OperatorContextKey); operator != "" {
		h.log.Info("manual completion", zap.String("operator", operator), zap.Int64("transaction_id", id))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *TransactionHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transaction id must be a positive integer"})
		return
	}

	resp, err := h.Service.Lookup(c.Request.Context(), id, c.Query(CheckoutSessionParam))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
