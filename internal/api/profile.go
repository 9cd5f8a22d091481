package api

import (
	"errors"
	"net/http"

	"github.com/pearcircuitmike/replicate-codex/internal/auth"
	"github.com/pearcircuitmike/replicate-codex/internal/service/profile"

	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates an account with its default bookmark folder and returns
// a fresh token.
func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	p, err := h.profiles.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if _, err := h.library.EnsureUncategorizedFolder(c.Request.Context(), p.ID); err != nil {
		h.log.Warnw("default folder creation failed", "user_id", p.ID, "error", err)
	}
	token, err := h.auth.IssueToken(c.Request.Context(), p.ID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": p, "token": token})
}

// Login checks credentials and returns a fresh token.
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	p, err := h.profiles.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, profile.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		h.writeServiceError(c, err)
		return
	}
	token, err := h.auth.IssueToken(c.Request.Context(), p.ID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": p, "token": token})
}

// Logout revokes the caller's token.
func (h *Handler) Logout(c *gin.Context) {
	token, ok := auth.AuthTokenFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return
	}
	if err := h.auth.RevokeToken(c.Request.Context(), token); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}

// GetProfile returns the caller's account.
func (h *Handler) GetProfile(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	p, err := h.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": p})
}

// UpdateProfile sets display fields.
func (h *Handler) UpdateProfile(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		FullName  string `json:"full_name"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.profiles.UpdateDisplay(c.Request.Context(), userID, req.FullName, req.AvatarURL); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// UpdateDigests sets the caller's digest email cadence.
func (h *Handler) UpdateDigests(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		PaperDigest string `json:"paper_digest"`
		ModelDigest string `json:"model_digest"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.profiles.UpdateDigestPrefs(c.Request.Context(), userID, req.PaperDigest, req.ModelDigest); err != nil {
		if errors.Is(err, profile.ErrBadCadence) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}
