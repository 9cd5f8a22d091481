package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type speechRequest struct {
	Text string `json:"text"`
}

// Speech relays synthesized audio for arbitrarily long text. The relay cuts
// the text into provider-sized chunks and streams them back-to-back, so the
// client hears one continuous mp3.
func (h *Handler) Speech(c *gin.Context) {
	if h.relay == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "speech synthesis is not available"})
		return
	}
	var req speechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text cannot be empty"})
		return
	}

	c.Header("Content-Type", "audio/mpeg")
	c.Status(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	flush := func() {}
	if flusher != nil {
		flush = flusher.Flush
	}

	written, err := h.relay.Stream(c.Request.Context(), req.Text, c.Writer, flush)
	if err != nil {
		if written == 0 {
			// Nothing went out yet, so a clean JSON error is still possible.
			c.Header("Content-Type", "application/json; charset=utf-8")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "speech synthesis failed"})
			return
		}
		// Mid-stream failure: the status line is gone, terminate the body.
		h.log.Warnw("speech stream interrupted", "bytes_written", written, "error", err)
		c.Abort()
	}
}
