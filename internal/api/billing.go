package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// BillingWebhook receives provider events. The signature covers the raw
// payload, so the body is read verbatim before any parsing. Failures return
// plain 400s; the provider retries on anything non-2xx.
func (h *Handler) BillingWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "unreadable payload")
		return
	}

	event, err := h.billing.VerifyEvent(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.log.Warnw("webhook signature rejected", "error", err)
		c.String(http.StatusBadRequest, "invalid signature")
		return
	}

	if err := h.billing.ProcessEvent(c.Request.Context(), event); err != nil {
		h.log.Warnw("webhook event rejected", "type", event.Type, "error", err)
		c.String(http.StatusBadRequest, "event not processed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
