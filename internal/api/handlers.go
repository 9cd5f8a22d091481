package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/pearcircuitmike/replicate-codex/internal/auth"
	"github.com/pearcircuitmike/replicate-codex/internal/service/billing"
	"github.com/pearcircuitmike/replicate-codex/internal/service/catalog"
	"github.com/pearcircuitmike/replicate-codex/internal/service/chat"
	"github.com/pearcircuitmike/replicate-codex/internal/service/community"
	"github.com/pearcircuitmike/replicate-codex/internal/service/library"
	"github.com/pearcircuitmike/replicate-codex/internal/service/profile"
	"github.com/pearcircuitmike/replicate-codex/internal/service/rag"
	"github.com/pearcircuitmike/replicate-codex/internal/service/speech"
	"github.com/pearcircuitmike/replicate-codex/internal/worker"

	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusClientClosedRequest reports that the client went away mid-request.
// Nginx convention; gin has no constant for it.
const statusClientClosedRequest = 499

// Streamer produces a completion stream for a message history.
type Streamer interface {
	StreamChat(ctx context.Context, modelName string, history []*schema.Message, onDelta func(string) error) error
}

// ContextRetriever supplies catalog context for a chat query. Retrieval is
// fail-open, so the return carries no error.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, maxResults int) rag.Results
}

// Handler wires every HTTP route to the underlying services.
type Handler struct {
	log *zap.SugaredLogger

	auth        *auth.Service
	profiles    *profile.Service
	sessions    *chat.Service
	streamer    Streamer
	retriever   ContextRetriever
	searcher    *rag.Retriever
	relay       *speech.Relay
	billing     *billing.Service
	library     *library.Service
	communities *community.Service
	catalog     *catalog.Service
	pool        *worker.Pool
}

type HandlerConfig struct {
	Log         *zap.SugaredLogger
	Auth        *auth.Service
	Profiles    *profile.Service
	Sessions    *chat.Service
	Streamer    Streamer
	Retriever   ContextRetriever
	Searcher    *rag.Retriever
	Relay       *speech.Relay
	Billing     *billing.Service
	Library     *library.Service
	Communities *community.Service
	Catalog     *catalog.Service
	Pool        *worker.Pool
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		log:         cfg.Log,
		auth:        cfg.Auth,
		profiles:    cfg.Profiles,
		sessions:    cfg.Sessions,
		streamer:    cfg.Streamer,
		retriever:   cfg.Retriever,
		searcher:    cfg.Searcher,
		relay:       cfg.Relay,
		billing:     cfg.Billing,
		library:     cfg.Library,
		communities: cfg.Communities,
		catalog:     cfg.Catalog,
		pool:        cfg.Pool,
	}
}

// RegisterRoutes mounts all endpoints on the router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/api/register", h.Register)
	r.POST("/api/login", h.Login)
	r.POST("/api/webhooks/billing", h.BillingWebhook)

	r.GET("/api/papers", h.ListPapers)
	r.GET("/api/papers/:id", h.GetPaper)
	r.GET("/api/models", h.ListModels)
	r.GET("/api/models/:id", h.GetModel)
	r.POST("/api/search/papers", h.SearchPapers)
	r.POST("/api/search/models", h.SearchModels)

	authed := r.Group("/api", h.auth.Middleware())
	{
		authed.POST("/logout", h.Logout)
		authed.GET("/profile", h.GetProfile)
		authed.PUT("/profile", h.UpdateProfile)
		authed.PUT("/profile/digests", h.UpdateDigests)

		authed.POST("/chat", h.Chat)
		authed.POST("/tts", h.Speech)

		authed.GET("/sessions", h.ListSessions)
		authed.GET("/sessions/:id", h.GetSession)
		authed.PUT("/sessions/:id/title", h.RenameSession)
		authed.DELETE("/sessions/:id", h.DeleteSession)

		authed.POST("/highlights", h.CreateHighlight)
		authed.GET("/papers/:id/highlights", h.ListHighlights)
		authed.DELETE("/highlights/:id", h.DeleteHighlight)

		authed.POST("/notes", h.CreateNote)
		authed.GET("/papers/:id/notes", h.ListNotes)
		authed.PUT("/notes/:id", h.UpdateNote)
		authed.DELETE("/notes/:id", h.DeleteNote)

		authed.POST("/folders", h.CreateFolder)
		authed.GET("/folders", h.ListFolders)
		authed.DELETE("/folders/:id", h.DeleteFolder)
		authed.POST("/bookmarks", h.AddBookmark)
		authed.GET("/folders/:id/bookmarks", h.ListBookmarks)
		authed.PUT("/bookmarks/:id/folder", h.MoveBookmark)
		authed.DELETE("/bookmarks/:id", h.RemoveBookmark)

		authed.POST("/communities", h.CreateCommunity)
		authed.GET("/communities", h.ListCommunities)
		authed.GET("/communities/:id", h.GetCommunity)
		authed.POST("/communities/:id/join", h.JoinCommunity)
		authed.POST("/communities/:id/leave", h.LeaveCommunity)
		authed.POST("/communities/:id/invites", h.CreateInvite)
		authed.POST("/invites/:token/accept", h.AcceptInvite)
	}
}

// mustUserID pulls the authenticated user; the middleware guarantees it on
// grouped routes, so a miss is a programming error worth a 401 anyway.
func mustUserID(c *gin.Context) (string, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return "", false
	}
	return userID, true
}

// writeServiceError maps common service errors to HTTP statuses.
func (h *Handler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, library.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, library.ErrDefaultFolder),
		errors.Is(err, library.ErrParentMismatch),
		errors.Is(err, community.ErrInviteExpired),
		errors.Is(err, community.ErrInviteConsumed),
		errors.Is(err, profile.ErrUsernameTaken):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Errorw("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
