package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/middleware"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

// ChatHandler manages chat endpoints.
type ChatHandler struct {
	svc   Service
	audit *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(svc Service, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{svc: svc, audit: audit}
}

// CreateChat returns the direct chat with another user, creating it once.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, created, err := h.svc.CreateChat(c.Request.Context(), middleware.UserID(c), req.UserID)
	if err != nil {
		writeError(c, err, "could not create chat")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		emitAudit(c, h.audit, "chat created", map[string]any{"chat_id": chat.ID})
	}
	c.JSON(status, chat)
}

// CreateGroup creates a group chat owned by the caller.
func (h *ChatHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Name    string   `json:"name" binding:"required"`
		UserIDs []string `json:"userIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.svc.CreateGroup(c.Request.Context(), middleware.UserID(c), req.Name, req.UserIDs)
	if err != nil {
		writeError(c, err, "could not create group")
		return
	}
	emitAudit(c, h.audit, "group created", map[string]any{"chat_id": chat.ID, "participants": len(chat.Participants)})
	c.JSON(http.StatusCreated, chat)
}

// RemoveUser removes a participant from a group chat.
func (h *ChatHandler) RemoveUser(c *gin.Context) {
	var req struct {
		ChatID string `json:"chatId" binding:"required"`
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chat, err := h.svc.RemoveUser(c.Request.Context(), middleware.UserID(c), req.ChatID, req.UserID)
	if err != nil {
		writeError(c, err, "could not remove user")
		return
	}
	emitAudit(c, h.audit, "group member removed", map[string]any{"chat_id": chat.ID, "user_id": req.UserID})
	c.JSON(http.StatusOK, chat)
}

// ListChats returns the chats of the authenticated user.
func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.svc.ListChats(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err, "failed to load chats")
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// GetChat returns one chat of the caller.
func (h *ChatHandler) GetChat(c *gin.Context) {
	chat, err := h.svc.GetChat(c.Request.Context(), middleware.UserID(c), c.Param("chat_id"))
	if err != nil {
		writeError(c, err, "failed to load chat")
		return
	}
	c.JSON(http.StatusOK, chat)
}

// GetChatMessages returns history, optionally paged with ?limit and ?before.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	var opts repositories.HistoryOptions
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || limit == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		opts.Limit = limit
	}
	if raw := c.Query("before"); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before"})
			return
		}
		opts.Before = &before
	}

	msgs, err := h.svc.GetMessages(c.Request.Context(), middleware.UserID(c), c.Param("chat_id"), opts)
	if err != nil {
		writeError(c, err, "failed to load messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// MarkChatRead reads every message of the chat addressed to the caller.
func (h *ChatHandler) MarkChatRead(c *gin.Context) {
	ids, err := h.svc.MarkChatRead(c.Request.Context(), middleware.UserID(c), c.Param("chat_id"))
	if err != nil {
		writeError(c, err, "could not mark chat read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messageIds": ids})
}

// DeleteChat deletes the chat and its messages.
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	chatID := c.Param("chat_id")
	if err := h.svc.DeleteChat(c.Request.Context(), middleware.UserID(c), chatID); err != nil {
		writeError(c, err, "could not delete chat")
		return
	}
	emitAudit(c, h.audit, "chat deleted", map[string]any{"chat_id": chatID})
	c.Status(http.StatusNoContent)
}
