package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"donation-platform/internal/dto"
	"donation-platform/internal/service"
)

type CheckoutHandler struct {
	Service service.CheckoutService
	log     *zap.Logger
}

func NewCheckoutHandler(svc service.CheckoutService, log *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{Service: svc, log: log}
}

func (h *CheckoutHandler) CreateCheckout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	resp, err := h.Service.CreateCheckout(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
