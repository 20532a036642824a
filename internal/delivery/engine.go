package delivery

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"messenger-service/internal/media"
	"messenger-service/internal/models"
	"messenger-service/internal/observability"
)

// SendRequest is an outgoing message from SenderID.
type SendRequest struct {
	SenderID string
	ChatID   string
	Content  string
	Type     models.MessageType
}

// MediaUpload is a file posted into a chat.
type MediaUpload struct {
	SenderID    string
	ChatID      string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// SendMessage validates and persists a message, then pushes newMessage to
// every participant including the sender.
func (s *Service) SendMessage(ctx context.Context, req SendRequest) (models.Message, error) {
	if req.Type == "" {
		req.Type = models.MessageText
	}
	if !req.Type.Valid() {
		return models.Message{}, invalid("messageType", "must be one of text, image, video, file")
	}
	if strings.TrimSpace(req.Content) == "" {
		return models.Message{}, invalid("message", "is required")
	}
	chat, err := s.memberChat(ctx, req.SenderID, req.ChatID)
	if err != nil {
		return models.Message{}, err
	}
	return s.deliver(ctx, chat, req)
}

// UploadMedia stores the file in the blob store and sends its URL as a media
// message. A failed upload creates no message.
func (s *Service) UploadMedia(ctx context.Context, up MediaUpload) (models.Message, error) {
	if up.Body == nil || up.Size <= 0 {
		return models.Message{}, invalid("file", "is required")
	}
	if s.maxMediaBytes > 0 && up.Size > s.maxMediaBytes {
		return models.Message{}, invalid("file", fmt.Sprintf("exceeds %d bytes", s.maxMediaBytes))
	}
	chat, err := s.memberChat(ctx, up.SenderID, up.ChatID)
	if err != nil {
		return models.Message{}, err
	}
	if s.media == nil {
		return models.Message{}, fmt.Errorf("%w: media store not configured", media.ErrUpload)
	}

	stored, err := s.media.Store(ctx, media.Object{
		OwnerID:     up.SenderID,
		ChatID:      chat.ID,
		Filename:    up.Filename,
		ContentType: up.ContentType,
		Size:        up.Size,
		Body:        io.LimitReader(up.Body, up.Size),
	})
	if err != nil {
		return models.Message{}, err
	}

	return s.deliver(ctx, chat, SendRequest{
		SenderID: up.SenderID,
		ChatID:   chat.ID,
		Content:  stored.URL,
		Type:     stored.Type,
	})
}

func (s *Service) deliver(ctx context.Context, chat models.Chat, req SendRequest) (models.Message, error) {
	others := chat.OtherParticipants(req.SenderID)
	msg := models.Message{
		ChatID:   chat.ID,
		SenderID: req.SenderID,
		Content:  req.Content,
		Type:     req.Type,
	}
	// Group chats keep a single designated recipient: the earliest joined
	// other participant.
	if len(others) > 0 {
		msg.RecipientID = others[0]
	}
	msg.Delivered = s.initialDelivered(ctx, req.Type, msg.RecipientID, others)

	saved, err := s.messages.CreateMessage(ctx, msg)
	if err != nil {
		return models.Message{}, translate(err)
	}
	observability.IncMessageSent(string(saved.Type), saved.Delivered)

	resolved := []models.Message{saved}
	s.populate(ctx, resolved)
	saved = resolved[0]

	s.broadcast.ToUsers(chat.Participants, models.Event{
		Name: models.EventNewMessage,
		Data: models.NewMessagePayload{ChatID: chat.ID, Message: saved},
	})
	s.log.WithFields(logrus.Fields{
		"chat_id":    chat.ID,
		"message_id": saved.ID,
		"delivered":  saved.Delivered,
	}).Debug("message sent")
	return saved, nil
}

// initialDelivered applies the send-time delivery rule. Text is delivered when
// any other participant is online. Media is delivered when the recipient is
// online in the registry or flagged online in the users table, since an upload
// may complete before the recipient's socket has joined.
func (s *Service) initialDelivered(ctx context.Context, t models.MessageType, recipientID string, others []string) bool {
	if !t.IsMedia() {
		for _, id := range others {
			if s.presence.IsOnline(id) {
				return true
			}
		}
		return false
	}
	if recipientID == "" {
		return false
	}
	if s.presence.IsOnline(recipientID) {
		return true
	}
	online, err := s.users.IsOnline(ctx, recipientID)
	if err != nil {
		s.log.WithError(err).WithField("user_id", recipientID).Warn("persisted presence lookup failed")
		return false
	}
	return online
}
