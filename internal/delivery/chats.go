package delivery

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

// CreateChat returns the direct chat between userID and otherID, creating it
// on first request. newChat is pushed only when a chat was created.
func (s *Service) CreateChat(ctx context.Context, userID, otherID string) (models.Chat, bool, error) {
	if !validID(otherID) {
		return models.Chat{}, false, invalid("userId", "must be a valid id")
	}
	if otherID == userID {
		return models.Chat{}, false, invalid("userId", "cannot start a chat with yourself")
	}
	chat, created, err := s.chats.CreateDirectChat(ctx, userID, otherID)
	if err != nil {
		return models.Chat{}, false, translate(err)
	}
	s.populateChat(ctx, &chat)
	if created {
		s.broadcast.ToUsers(chat.Participants, models.Event{Name: models.EventNewChat, Data: chat})
	}
	return chat, created, nil
}

// CreateGroup creates a group owned by userID. The group needs at least one
// member besides its creator.
func (s *Service) CreateGroup(ctx context.Context, userID, name string, memberIDs []string) (models.Chat, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Chat{}, invalid("name", "is required")
	}
	others := 0
	seen := map[string]struct{}{userID: {}}
	for _, id := range memberIDs {
		if !validID(id) {
			return models.Chat{}, invalid("userIds", "must contain valid ids")
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			others++
		}
	}
	if others < 1 {
		return models.Chat{}, invalid("userIds", "a group needs at least two participants")
	}

	chat, err := s.chats.CreateGroupChat(ctx, userID, name, memberIDs)
	if err != nil {
		return models.Chat{}, translate(err)
	}
	s.populateChat(ctx, &chat)
	s.broadcast.ToUsers(chat.Participants, models.Event{Name: models.EventNewChat, Data: chat})
	return chat, nil
}

// RemoveUser takes targetID out of a group. Members may remove themselves;
// removing anybody else is reserved to the group creator.
func (s *Service) RemoveUser(ctx context.Context, userID, chatID, targetID string) (models.Chat, error) {
	if !validID(targetID) {
		return models.Chat{}, invalid("userId", "must be a valid id")
	}
	chat, err := s.memberChat(ctx, userID, chatID)
	if err != nil {
		return models.Chat{}, err
	}
	if !chat.IsGroupChat {
		return models.Chat{}, invalid("chatId", "members can only be removed from group chats")
	}
	if targetID != userID && chat.CreatedBy != userID {
		return models.Chat{}, ErrForbidden
	}
	if !chat.HasParticipant(targetID) {
		return models.Chat{}, ErrNotFound
	}
	if len(chat.Participants) <= 2 {
		return models.Chat{}, invalid("userId", "a group needs at least two participants")
	}

	if err := s.chats.RemoveParticipant(ctx, chat.ID, targetID); err != nil {
		return models.Chat{}, translate(err)
	}
	updated, err := s.chats.GetChat(ctx, chat.ID)
	if err != nil {
		return models.Chat{}, translate(err)
	}
	s.populateChat(ctx, &updated)

	s.broadcast.ToUser(targetID, models.Event{Name: models.EventRemovedFromGroup, Data: models.ChatRef{ChatID: chat.ID}})
	s.broadcast.ToUsers(updated.Participants, models.Event{Name: models.EventGroupUpdated, Data: updated})
	s.log.WithFields(logrus.Fields{"chat_id": chat.ID, "user_id": targetID}).Info("participant removed")
	return updated, nil
}

// DeleteChat deletes a chat the caller participates in, with its messages.
func (s *Service) DeleteChat(ctx context.Context, userID, chatID string) error {
	chat, err := s.memberChat(ctx, userID, chatID)
	if err != nil {
		return err
	}
	if err := s.chats.DeleteChat(ctx, chat.ID); err != nil {
		return translate(err)
	}
	s.broadcast.ToUsers(chat.Participants, models.Event{Name: models.EventChatDeleted, Data: models.ChatRef{ChatID: chat.ID}})
	return nil
}

// DeleteMessages removes messages by id. Every message must belong to a chat
// the caller participates in; otherwise nothing is deleted.
func (s *Service) DeleteMessages(ctx context.Context, userID string, messageIDs []string) ([]string, error) {
	if len(messageIDs) == 0 {
		return nil, invalid("messageIds", "is required")
	}
	for _, id := range messageIDs {
		if !validID(id) {
			return nil, invalid("messageIds", "must contain valid ids")
		}
	}

	found, err := s.messages.GetMessages(ctx, messageIDs)
	if err != nil {
		return nil, translate(err)
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	chats := map[string]models.Chat{}
	ids := make([]string, 0, len(found))
	for _, m := range found {
		if _, ok := chats[m.ChatID]; !ok {
			chat, err := s.memberChat(ctx, userID, m.ChatID)
			if err != nil {
				return nil, err
			}
			chats[m.ChatID] = chat
		}
		ids = append(ids, m.ID)
	}

	deleted, err := s.messages.DeleteMessages(ctx, ids)
	if err != nil {
		return nil, translate(err)
	}

	byChat := map[string][]string{}
	order := []string{}
	out := make([]string, 0, len(deleted))
	for _, m := range deleted {
		if _, ok := byChat[m.ChatID]; !ok {
			order = append(order, m.ChatID)
		}
		byChat[m.ChatID] = append(byChat[m.ChatID], m.ID)
		out = append(out, m.ID)
	}
	for _, chatID := range order {
		s.broadcast.ToUsers(chats[chatID].Participants, models.Event{
			Name: models.EventMessagesDeleted,
			Data: models.MessagesDeletedPayload{ChatID: chatID, MessageIDs: byChat[chatID]},
		})
	}
	return out, nil
}

// GetChat returns a chat the caller participates in.
func (s *Service) GetChat(ctx context.Context, userID, chatID string) (models.Chat, error) {
	chat, err := s.memberChat(ctx, userID, chatID)
	if err != nil {
		return models.Chat{}, err
	}
	s.populateChat(ctx, &chat)
	return chat, nil
}

// ListChats returns the caller's chats, most recently active first.
func (s *Service) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	chats, err := s.chats.ListChatsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.populateChats(ctx, chats)
	return chats, nil
}

// GetMessages returns chat history in ascending timestamp order.
func (s *Service) GetMessages(ctx context.Context, userID, chatID string, opts repositories.HistoryOptions) ([]models.Message, error) {
	chat, err := s.memberChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListMessages(ctx, chat.ID, opts)
	if err != nil {
		return nil, translate(err)
	}
	s.populate(ctx, msgs)
	return msgs, nil
}

func (s *Service) populateChat(ctx context.Context, chat *models.Chat) {
	chats := []models.Chat{*chat}
	s.populateChats(ctx, chats)
	*chat = chats[0]
}
