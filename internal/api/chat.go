package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pearcircuitmike/replicate-codex/internal/models"
	"github.com/pearcircuitmike/replicate-codex/internal/service/ai"
	"github.com/pearcircuitmike/replicate-codex/internal/service/chat"
	"github.com/pearcircuitmike/replicate-codex/internal/service/rag"
	"github.com/pearcircuitmike/replicate-codex/internal/worker"

	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
)

const defaultChatModel = "gpt-4o-mini"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages   []chatMessage `json:"messages"`
	UserID     string        `json:"userId"`
	SessionID  string        `json:"sessionId"`
	Model      string        `json:"model"`
	RagEnabled *bool         `json:"ragEnabled"`
}

// Chat streams a completion as line-framed text chunks. The response is
// duplicated into a buffer; once the stream ends, a background task decodes
// the buffer and persists the exchange so a slow database never stalls the
// client.
func (h *Handler) Chat(c *gin.Context) {
	userID, ok := mustUserID(c)
	if !ok {
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages cannot be empty"})
		return
	}
	if req.UserID != "" && req.UserID != userID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "userId does not match the authenticated user"})
		return
	}
	lastUser := lastUserContent(req.Messages)
	if strings.TrimSpace(lastUser) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one user message is required"})
		return
	}

	// A session failure downgrades the request to unpersisted streaming
	// rather than failing it.
	sessionID := h.resolveSession(c.Request.Context(), userID, req.SessionID, lastUser)
	if sessionID != "" {
		c.Header("X-Session-Id", sessionID)
		if _, err := h.sessions.AppendMessage(c.Request.Context(), userID, sessionID, models.RoleUser, lastUser, ""); err != nil {
			h.log.Warnw("persist user message failed", "session_id", sessionID, "error", err)
		}
	}

	ragEnabled := req.RagEnabled == nil || *req.RagEnabled
	var results rag.Results
	if ragEnabled && h.retriever != nil {
		results = h.retriever.Retrieve(c.Request.Context(), lastUser, rag.DefaultMatchCount)
	}
	contextBlock := rag.FormatContext(results.Papers, results.Models)

	history := make([]*schema.Message, 0, len(req.Messages)+1)
	history = append(history, schema.SystemMessage(rag.BuildPrompt(contextBlock, lastUser)))
	for _, m := range req.Messages {
		switch models.Role(m.Role) {
		case models.RoleAssistant:
			history = append(history, schema.AssistantMessage(m.Content, nil))
		default:
			history = append(history, schema.UserMessage(m.Content))
		}
	}

	modelName := req.Model
	if modelName == "" {
		modelName = defaultChatModel
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	var buffered []byte
	streamErr := h.streamer.StreamChat(c.Request.Context(), modelName, history, func(delta string) error {
		line := ai.EncodeTextChunk(delta)
		buffered = append(buffered, line...)
		if _, err := c.Writer.Write(line); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if streamErr != nil {
		if len(buffered) == 0 {
			// Nothing has been written, so gin has not flushed the headers
			// yet and a real error response is still possible.
			h.log.Errorw("chat generation failed", "session_id", sessionID, "error", streamErr)
			c.String(http.StatusInternalServerError, "chat generation failed")
			return
		}
		// Bytes are already out; log and fall through so whatever was
		// streamed still gets persisted.
		h.log.Warnw("chat stream interrupted", "session_id", sessionID, "error", streamErr)
	}

	if sessionID == "" || len(buffered) == 0 {
		return
	}
	h.persistReply(sessionID, userID, buffered, results)
}

// resolveSession loads or creates the session. Failures are logged and
// reported as an empty id; the chat proceeds without persistence.
func (h *Handler) resolveSession(ctx context.Context, userID, sessionID, firstMessage string) string {
	if sessionID != "" {
		if _, err := h.sessions.GetSession(ctx, userID, sessionID); err != nil {
			h.log.Warnw("session lookup failed", "session_id", sessionID, "error", err)
			return ""
		}
		return sessionID
	}
	session, err := h.sessions.CreateSession(ctx, userID, chat.TitleFromContent(firstMessage))
	if err != nil {
		h.log.Warnw("session create failed", "error", err)
		return ""
	}
	return session.ID
}

// persistReply hands the buffered stream to the worker pool. The task
// retries the assistant write once before giving up; either way the client
// response is unaffected.
func (h *Handler) persistReply(sessionID, userID string, buffered []byte, results rag.Results) {
	contextJSON := ""
	if raw, err := json.Marshal(results); err == nil {
		contextJSON = string(raw)
	}
	h.pool.Submit(worker.Task{
		Name: "persist-reply",
		Run: func(ctx context.Context) error {
			reply := ai.NormalizeText(ai.DecodeText(buffered))
			if strings.TrimSpace(reply) == "" {
				return nil
			}
			_, err := h.sessions.AppendMessage(ctx, userID, sessionID, models.RoleAssistant, reply, contextJSON)
			if err != nil {
				h.log.Warnw("persist assistant message failed, retrying", "session_id", sessionID, "error", err)
				_, err = h.sessions.AppendMessage(ctx, userID, sessionID, models.RoleAssistant, reply, contextJSON)
			}
			return err
		},
	})
}

func lastUserContent(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if models.Role(messages[i].Role) != models.RoleAssistant {
			return messages[i].Content
		}
	}
	return ""
}
