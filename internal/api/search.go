package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pearcircuitmike/replicate-codex/internal/models"
	"github.com/pearcircuitmike/replicate-codex/internal/service/rag"

	"github.com/gin-gonic/gin"
)

type searchRequest struct {
	Query               string  `json:"query"`
	SimilarityThreshold float64 `json:"similarityThreshold"`
	MatchCount          int     `json:"matchCount"`
	TimeRangeDays       int     `json:"timeRange"`
}

func (r searchRequest) options() rag.SearchOptions {
	opts := rag.SearchOptions{
		Threshold: r.SimilarityThreshold,
		Limit:     r.MatchCount,
	}
	if r.TimeRangeDays > 0 {
		opts.Since = time.Now().UTC().AddDate(0, 0, -r.TimeRangeDays)
	}
	return opts
}

// SearchPapers runs a semantic search over the paper catalog.
func (h *Handler) SearchPapers(c *gin.Context) {
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not available"})
		return
	}
	req, ok := bindSearch(c)
	if !ok {
		return
	}
	papers, err := h.searcher.SearchPapers(c.Request.Context(), req.Query, req.options())
	if err != nil {
		h.writeSearchError(c, err)
		return
	}
	if papers == nil {
		papers = []models.Paper{}
	}
	c.JSON(http.StatusOK, gin.H{"data": papers})
}

// SearchModels runs a semantic search over the model catalog.
func (h *Handler) SearchModels(c *gin.Context) {
	if h.searcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not available"})
		return
	}
	req, ok := bindSearch(c)
	if !ok {
		return
	}
	found, err := h.searcher.SearchModels(c.Request.Context(), req.Query, req.options())
	if err != nil {
		h.writeSearchError(c, err)
		return
	}
	if found == nil {
		found = []models.Model{}
	}
	c.JSON(http.StatusOK, gin.H{"data": found})
}

func bindSearch(c *gin.Context) (searchRequest, bool) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return req, false
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query cannot be empty"})
		return req, false
	}
	return req, true
}

// writeSearchError distinguishes a client that went away from a real
// failure: abandoned searches are routine and get the nginx 499 status.
func (h *Handler) writeSearchError(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) {
		c.Status(statusClientClosedRequest)
		return
	}
	h.log.Errorw("search failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
}
