package api

import (
	"net/http"
	"strconv"

	"github.com/pearcircuitmike/replicate-codex/internal/models"

	"github.com/gin-gonic/gin"
)

// ListPapers returns a page of the paper catalog.
func (h *Handler) ListPapers(c *gin.Context) {
	limit, offset := pageParams(c)
	papers, err := h.catalog.ListPapers(c.Request.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if papers == nil {
		papers = []models.Paper{}
	}
	c.JSON(http.StatusOK, gin.H{"data": papers})
}

// GetPaper returns one paper with its view count and bumps the counter.
func (h *Handler) GetPaper(c *gin.Context) {
	id := c.Param("id")
	paper, err := h.catalog.GetPaper(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.catalog.RecordView(c.Request.Context(), models.ResourcePaper, id)
	c.JSON(http.StatusOK, gin.H{
		"data":  paper,
		"views": h.catalog.ViewCount(c.Request.Context(), models.ResourcePaper, id),
	})
}

// ListModels returns a page of the model catalog.
func (h *Handler) ListModels(c *gin.Context) {
	limit, offset := pageParams(c)
	found, err := h.catalog.ListModels(c.Request.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if found == nil {
		found = []models.Model{}
	}
	c.JSON(http.StatusOK, gin.H{"data": found})
}

// GetModel returns one model with its view count and bumps the counter.
func (h *Handler) GetModel(c *gin.Context) {
	id := c.Param("id")
	m, err := h.catalog.GetModel(c.Request.Context(), id)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	h.catalog.RecordView(c.Request.Context(), models.ResourceModel, id)
	c.JSON(http.StatusOK, gin.H{
		"data":  m,
		"views": h.catalog.ViewCount(c.Request.Context(), models.ResourceModel, id),
	})
}

// ListSessions returns the caller's chat sessions.
func (h *Handler) ListSessions(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	sessions, err := h.sessions.ListSessions(c.Request.Context(), userID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"data": sessions})
}

// GetSession returns one session and its transcript.
func (h *Handler) GetSession(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	session, messages, err := h.sessions.GetSessionWithMessages(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"data": session, "messages": messages})
}

// RenameSession updates a session title.
func (h *Handler) RenameSession(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.sessions.UpdateSessionTitle(c.Request.Context(), userID, c.Param("id"), req.Title); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// DeleteSession removes a session and its messages.
func (h *Handler) DeleteSession(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	if err := h.sessions.DeleteSession(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	offset, _ = strconv.Atoi(c.Query("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
