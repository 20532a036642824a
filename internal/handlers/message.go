package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/delivery"
	"messenger-service/internal/middleware"
	"messenger-service/internal/models"
	"messenger-service/internal/telemetry"
)

// MessageHandler manages message endpoints.
type MessageHandler struct {
	svc   Service
	audit *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(svc Service, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{svc: svc, audit: audit}
}

// SendMessage stores a message and fans it out.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req struct {
		ChatID      string `json:"chatId" binding:"required"`
		Message     string `json:"message" binding:"required"`
		MessageType string `json:"messageType"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.svc.SendMessage(c.Request.Context(), delivery.SendRequest{
		SenderID: middleware.UserID(c),
		ChatID:   req.ChatID,
		Content:  req.Message,
		Type:     models.MessageType(req.MessageType),
	})
	if err != nil {
		writeError(c, err, "failed to store message")
		return
	}
	emitAudit(c, h.audit, "message sent", map[string]any{"chat_id": msg.ChatID, "message_id": msg.ID})
	c.JSON(http.StatusCreated, msg)
}

// UploadMedia stores a multipart file and sends it as a media message.
func (h *MessageHandler) UploadMedia(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	msg, err := h.svc.UploadMedia(c.Request.Context(), delivery.MediaUpload{
		SenderID:    middleware.UserID(c),
		ChatID:      c.PostForm("chatId"),
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		writeError(c, err, "failed to upload media")
		return
	}
	emitAudit(c, h.audit, "media sent", map[string]any{"chat_id": msg.ChatID, "message_id": msg.ID, "type": string(msg.Type)})
	c.JSON(http.StatusCreated, msg)
}

// DeleteMessages deletes messages by id.
func (h *MessageHandler) DeleteMessages(c *gin.Context) {
	var req struct {
		MessageIDs []string `json:"messageIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ids, err := h.svc.DeleteMessages(c.Request.Context(), middleware.UserID(c), req.MessageIDs)
	if err != nil {
		writeError(c, err, "could not delete messages")
		return
	}
	emitAudit(c, h.audit, "messages deleted", map[string]any{"count": len(ids)})
	c.JSON(http.StatusOK, gin.H{"messageIds": ids})
}

// MarkRead acknowledges a message as read by its recipient.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	msg, err := h.svc.MarkRead(c.Request.Context(), middleware.UserID(c), "", c.Param("message_id"), delivery.SourceREST)
	if err != nil {
		writeError(c, err, "could not mark message read")
		return
	}
	c.JSON(http.StatusOK, msg)
}

// MarkDelivered acknowledges a message as delivered to its recipient.
func (h *MessageHandler) MarkDelivered(c *gin.Context) {
	msg, err := h.svc.MarkDelivered(c.Request.Context(), middleware.UserID(c), "", c.Param("message_id"), delivery.SourceREST)
	if err != nil {
		writeError(c, err, "could not mark message delivered")
		return
	}
	c.JSON(http.StatusOK, msg)
}
