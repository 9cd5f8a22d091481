package api

import (
	"net/http"

	"github.com/pearcircuitmike/replicate-codex/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateHighlight saves a quote selection on a paper.
func (h *Handler) CreateHighlight(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		PaperID string `json:"paper_id"`
		Quote   string `json:"quote"`
		Prefix  string `json:"prefix"`
		Suffix  string `json:"suffix"`
		Offset  int    `json:"text_offset"`
		Context string `json:"context"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	highlight, err := h.library.CreateHighlight(c.Request.Context(), models.Highlight{
		UserID:  userID,
		PaperID: req.PaperID,
		Quote:   req.Quote,
		Prefix:  req.Prefix,
		Suffix:  req.Suffix,
		Offset:  req.Offset,
		Context: req.Context,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": highlight})
}

// ListHighlights returns every highlight on a paper.
func (h *Handler) ListHighlights(c *gin.Context) {
	highlights, err := h.library.ListHighlights(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if highlights == nil {
		highlights = []models.Highlight{}
	}
	c.JSON(http.StatusOK, gin.H{"data": highlights})
}

// DeleteHighlight removes the caller's highlight.
func (h *Handler) DeleteHighlight(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	if err := h.library.DeleteHighlight(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// CreateNote posts a note or a reply on a paper.
func (h *Handler) CreateNote(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		PaperID  string  `json:"paper_id"`
		ParentID *string `json:"parent_id"`
		Text     string  `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	note, err := h.library.CreateNote(c.Request.Context(), models.Note{
		UserID:   userID,
		PaperID:  req.PaperID,
		ParentID: req.ParentID,
		Text:     req.Text,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": note})
}

// ListNotes returns the visible notes on a paper.
func (h *Handler) ListNotes(c *gin.Context) {
	notes, err := h.library.ListNotes(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}
	c.JSON(http.StatusOK, gin.H{"data": notes})
}

// UpdateNote edits the caller's note.
func (h *Handler) UpdateNote(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.library.UpdateNote(c.Request.Context(), userID, c.Param("id"), req.Text); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// DeleteNote hides the caller's note, keeping reply threads intact.
func (h *Handler) DeleteNote(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	if err := h.library.HideNote(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// CreateFolder adds a bookmark folder.
func (h *Handler) CreateFolder(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	folder, err := h.library.CreateFolder(c.Request.Context(), userID, req.Name, req.Color)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": folder})
}

// ListFolders returns the caller's folders.
func (h *Handler) ListFolders(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	folders, err := h.library.ListFolders(c.Request.Context(), userID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if folders == nil {
		folders = []models.Folder{}
	}
	c.JSON(http.StatusOK, gin.H{"data": folders})
}

// DeleteFolder removes a folder; its bookmarks move to Uncategorized.
func (h *Handler) DeleteFolder(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	if err := h.library.DeleteFolder(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// AddBookmark saves a catalog resource into a folder.
func (h *Handler) AddBookmark(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		FolderID     string `json:"folder_id"`
		ResourceID   string `json:"resource_id"`
		ResourceType string `json:"resource_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	bookmark, err := h.library.AddBookmark(c.Request.Context(), userID, req.FolderID, req.ResourceID, req.ResourceType)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": bookmark})
}

// ListBookmarks returns the bookmarks in one of the caller's folders.
func (h *Handler) ListBookmarks(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	bookmarks, err := h.library.ListBookmarks(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	if bookmarks == nil {
		bookmarks = []models.Bookmark{}
	}
	c.JSON(http.StatusOK, gin.H{"data": bookmarks})
}

// MoveBookmark relocates a bookmark to another folder.
func (h *Handler) MoveBookmark(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	var req struct {
		FolderID string `json:"folder_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.library.MoveBookmark(c.Request.Context(), userID, c.Param("id"), req.FolderID); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// RemoveBookmark deletes the caller's bookmark.
func (h *Handler) RemoveBookmark(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}
	if err := h.library.RemoveBookmark(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
