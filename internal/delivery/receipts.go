package delivery

import (
	"context"

	"github.com/sirupsen/logrus"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
)

// Trigger sources for receipt transitions.
const (
	SourceREST     = "rest"
	SourceRealtime = "realtime"
	SourceJoin     = "join"
)

// MarkRead moves a message addressed to userID to READ and broadcasts
// messageRead to the chat room. A non-empty chatID must match the message.
// Re-marking a read message succeeds without any effect; messages that are
// missing or addressed to someone else are ErrNotFound.
func (s *Service) MarkRead(ctx context.Context, userID, chatID, messageID, source string) (models.Message, error) {
	if err := s.checkReceipt(ctx, userID, chatID, messageID); err != nil {
		return models.Message{}, err
	}
	msg, changed, err := s.messages.MarkRead(ctx, messageID, userID)
	if err != nil {
		return models.Message{}, translate(err)
	}
	if !changed {
		return msg, nil
	}
	observability.IncReceiptTransition(string(models.StateRead), source)
	s.broadcast.ToChat(msg.ChatID, models.Event{
		Name: models.EventMessageRead,
		Data: models.MessageReadPayload{MessageID: msg.ID},
	})
	s.log.WithFields(logrus.Fields{"chat_id": msg.ChatID, "message_id": msg.ID, "source": source}).Debug("message read")
	return msg, nil
}

// MarkDelivered moves a SENT message addressed to userID to DELIVERED and
// broadcasts messagesDelivered to the chat room.
func (s *Service) MarkDelivered(ctx context.Context, userID, chatID, messageID, source string) (models.Message, error) {
	if err := s.checkReceipt(ctx, userID, chatID, messageID); err != nil {
		return models.Message{}, err
	}
	msg, changed, err := s.messages.MarkDelivered(ctx, messageID, userID)
	if err != nil {
		return models.Message{}, translate(err)
	}
	if !changed {
		return msg, nil
	}
	observability.IncReceiptTransition(string(models.StateDelivered), source)
	s.broadcast.ToChat(msg.ChatID, models.Event{
		Name: models.EventMessagesDelivered,
		Data: models.DeliveryReceipt{ChatID: msg.ChatID, MessageIDs: []string{msg.ID}},
	})
	return msg, nil
}

// MarkChatRead reads every unread message of the chat addressed to userID and
// resets userID's unread counter to zero. It returns the ids that changed.
func (s *Service) MarkChatRead(ctx context.Context, userID, chatID string) ([]string, error) {
	if _, err := s.memberChat(ctx, userID, chatID); err != nil {
		return nil, err
	}
	ids, err := s.messages.MarkChatRead(ctx, chatID, userID)
	if err != nil {
		return nil, translate(err)
	}
	for _, id := range ids {
		observability.IncReceiptTransition(string(models.StateRead), SourceREST)
		s.broadcast.ToChat(chatID, models.Event{
			Name: models.EventMessageRead,
			Data: models.MessageReadPayload{MessageID: id},
		})
	}
	return ids, nil
}

func (s *Service) checkReceipt(ctx context.Context, userID, chatID, messageID string) error {
	if !validID(messageID) {
		return invalid("messageId", "must be a valid id")
	}
	if chatID == "" {
		return nil
	}
	if !validID(chatID) {
		return invalid("chatId", "must be a valid id")
	}
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return translate(err)
	}
	if msg.ChatID != chatID || msg.RecipientID != userID {
		return ErrNotFound
	}
	return nil
}
