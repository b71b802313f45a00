package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"donation-platform/internal/paymongo"
	"donation-platform/internal/service"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	Service service.WebhookService
	log     *zap.Logger
}

func NewWebhookHandler(svc service.WebhookService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{Service: svc, log: log}
}

// HandlePayMongo must see the body exactly as sent: the signature covers the
// raw bytes.
func (h *WebhookHandler) HandlePayMongo(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		h.log.Warn("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read request body"})
		return
	}

	result, err := h.Service.HandleEvent(c.Request.Context(), body, c.GetHeader(paymongo.SignatureHeader))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	if result.Ignored != "" {
		c.JSON(http.StatusOK, gin.H{"ok": true, "ignored": result.Ignored})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":             true,
		"transaction_id": result.TransactionID,
		"updated":        result.Updated,
		"status":         result.Status,
	})
}
