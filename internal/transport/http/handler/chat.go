package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ziabot/internal/agent"
	"ziabot/internal/app"
	"ziabot/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID uint   `json:"session_id"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat handles one turn: POST /chat?mode=default|reason with
// {message, session_id?}. A missing session_id creates a new session titled
// after the query.
func (h *ChatHandler) Chat(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not resolved")
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	mode, err := agent.ParseMode(c.Query("mode"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}

	result, err := h.chatService.Chat(c.Request.Context(), app.ChatInput{
		UserID:    userID,
		SessionID: req.SessionID,
		Query:     req.Message,
		Mode:      mode,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrMessageEmpty):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "chat failed")
		}
		return
	}

	messages := make([]gin.H, 0, len(result.Messages))
	for _, m := range result.Messages {
		messages = append(messages, gin.H{"role": m.Role, "content": m.Content})
	}
	response.OK(c, gin.H{
		"response":   result.Reply,
		"session_id": result.SessionID,
		"messages":   messages,
	})
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not resolved")
		return
	}

	sessions, err := h.chatService.ListSessions(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list sessions failed")
		return
	}

	out := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, gin.H{"id": s.ID, "title": s.Title, "created_at": s.CreatedAt})
	}
	response.OK(c, out)
}

// SessionMessages returns one session's transcript; sessions owned by other
// accounts read as not found.
func (h *ChatHandler) SessionMessages(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not resolved")
		return
	}

	sessionID64, err := strconv.ParseUint(c.Param("session_id"), 10, 64)
	if err != nil || sessionID64 == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid session id")
		return
	}

	messages, err := h.chatService.GetSessionMessages(c.Request.Context(), userID, uint(sessionID64))
	if err != nil {
		switch {
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get session messages failed")
		}
		return
	}

	out := make([]gin.H, 0, len(messages))
	for _, m := range messages {
		out = append(out, gin.H{"role": m.Role, "content": m.Content, "timestamp": m.CreatedAt})
	}
	response.OK(c, out)
}

// AllChats returns every turn across all of the caller's sessions.
func (h *ChatHandler) AllChats(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not resolved")
		return
	}

	messages, err := h.chatService.ListAllMessages(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list chats failed")
		return
	}

	out := make([]gin.H, 0, len(messages))
	for _, m := range messages {
		out = append(out, gin.H{
			"role":       m.Role,
			"content":    m.Content,
			"timestamp":  m.CreatedAt,
			"session_id": m.SessionID,
		})
	}
	response.OK(c, out)
}
