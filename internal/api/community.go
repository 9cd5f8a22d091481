package api

import (
	"net/http"
	"time"

	"github.com/pearcircuitmike/replicate-codex/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateCommunity creates a community; the caller becomes its first member.
func (h *Handler) CreateCommunity(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Topics      []string `json:"topics"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	created, err := h.communities.CreateCommunity(c.Request.Context(), userID, req.Name, req.Description, req.Topics)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": created})
}

// ListCommunities returns every community.
func (h *Handler) ListCommunities(c *gin.Context) {
	list, err := h.communities.ListCommunities(c.Request.Context())
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if list == nil {
		list = []models.Community{}
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

// GetCommunity returns one community with its members.
func (h *Handler) GetCommunity(c *gin.Context) {
	found, err := h.communities.GetCommunity(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	members, err := h.communities.ListMembers(c.Request.Context(), found.ID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if members == nil {
		members = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"data": found, "members": members})
}

// JoinCommunity enrolls the caller.
func (h *Handler) JoinCommunity(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	if err := h.communities.Join(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"joined": true})
}

// LeaveCommunity drops the caller's membership.
func (h *Handler) LeaveCommunity(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	if err := h.communities.Leave(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"left": true})
}

// CreateInvite issues a one-shot invite token for an email address.
func (h *Handler) CreateInvite(c *gin.Context) {
	if _, ok := mustUserID(c); !ok {
		return
	}
	var req struct {
		Email    string `json:"email"`
		TTLHours int    `json:"ttl_hours"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	invite, err := h.communities.CreateInvite(c.Request.Context(), c.Param("id"), req.Email, time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": invite})
}

// AcceptInvite consumes an invite token and enrolls the caller.
func (h *Handler) AcceptInvite(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	invite, err := h.communities.AcceptInvite(c.Request.Context(), userID, c.Param("token"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invite})
}
