package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"donation-platform/internal/middleware"
	"donation-platform/internal/paymongo"
	"donation-platform/internal/service"
)

// respondError maps service errors onto status codes. Raw store and provider
// errors are logged, never echoed.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	traceID := c.GetString(middleware.TraceIDKey)
	log = log.With(zap.String(middleware.TraceIDKey, traceID))

	var (
		validationErr *service.ValidationError
		checkoutErr   *service.CheckoutError
		storeErr      *service.StoreError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error(), "trace_id": traceID})

	case errors.Is(err, paymongo.ErrMissingSignature), errors.Is(err, paymongo.ErrMissingTimestamp):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or malformed webhook signature", "trace_id": traceID})

	case errors.Is(err, paymongo.ErrInvalidSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook signature", "trace_id": traceID})

	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found", "trace_id": traceID})

	case errors.As(err, &checkoutErr):
		log.Error("checkout failed at payment provider",
			zap.Int64("transaction_id", checkoutErr.TransactionID),
			zap.Int64("donation_id", checkoutErr.DonationID),
			zap.Error(err))
		body := gin.H{
			"error":          "Payment provider could not create a checkout session",
			"transaction_id": checkoutErr.TransactionID,
			"donation_id":    checkoutErr.DonationID,
			"trace_id":       traceID,
		}
		if apiErr := checkoutErr.Provider(); apiErr != nil {
			body["provider_status"] = apiErr.StatusCode
			if len(apiErr.Errors) > 0 {
				body["provider_errors"] = apiErr.Errors
			}
		}
		c.JSON(http.StatusBadGateway, body)

	case errors.As(err, &storeErr):
		log.Error("store error", zap.String("op", storeErr.Op), zap.String("table", storeErr.Table), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    "Database error",
			"op":       storeErr.Op,
			"table":    storeErr.Table,
			"trace_id": traceID,
		})

	default:
		log.Error("unexpected error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error.", "trace_id": traceID})
	}
}
