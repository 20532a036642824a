package delivery

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"messenger-service/internal/media"
	"messenger-service/internal/models"
	"messenger-service/internal/presence"
	"messenger-service/internal/repositories"
)

// Presence is the live connection registry consulted for delivery decisions.
type Presence interface {
	Join(connID, userID string) (firstConn bool, ok bool)
	Disconnect(connID string) (userID string, lastConn bool)
	IsOnline(userID string) bool
	OnlineCount() int
}

// Broadcaster pushes events to live connections, addressed by user or chat room.
type Broadcaster interface {
	ToUser(userID string, event models.Event)
	ToUsers(userIDs []string, event models.Event)
	ToChat(chatID string, event models.Event)
}

// Deps are the collaborators of Service.
type Deps struct {
	Chats         repositories.ChatRepository
	Messages      repositories.MessageRepository
	Users         repositories.UserRepository
	Presence      Presence
	Mirror        presence.Mirror
	Broadcaster   Broadcaster
	Media         media.Store
	MaxMediaBytes int64
	Logger        logrus.FieldLogger
}

// Service owns message delivery, receipts, chat lifecycle and presence fan-out.
type Service struct {
	chats         repositories.ChatRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository
	presence      Presence
	mirror        presence.Mirror
	broadcast     Broadcaster
	media         media.Store
	maxMediaBytes int64
	log           logrus.FieldLogger

	mirrorLocks [32]sync.Mutex
}

func NewService(d Deps) *Service {
	mirror := d.Mirror
	if mirror == nil {
		mirror = presence.Mirrors{}
	}
	return &Service{
		chats:         d.Chats,
		messages:      d.Messages,
		users:         d.Users,
		presence:      d.Presence,
		mirror:        mirror,
		broadcast:     d.Broadcaster,
		media:         d.Media,
		maxMediaBytes: d.MaxMediaBytes,
		log:           d.Logger.WithField("component", "delivery"),
	}
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// memberChat loads the chat and checks userID belongs to it. Absence and
// non-membership are both ErrNotFound.
func (s *Service) memberChat(ctx context.Context, userID, chatID string) (models.Chat, error) {
	if !validID(chatID) {
		return models.Chat{}, invalid("chatId", "must be a valid id")
	}
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.Chat{}, translate(err)
	}
	if !chat.HasParticipant(userID) {
		return models.Chat{}, ErrNotFound
	}
	return chat, nil
}

// populate resolves sender and recipient users. Lookup failures leave the
// message unpopulated; the message itself is already authoritative.
func (s *Service) populate(ctx context.Context, msgs []models.Message) {
	if len(msgs) == 0 {
		return
	}
	ids := make([]string, 0, len(msgs)*2)
	for _, m := range msgs {
		ids = append(ids, m.SenderID)
		if m.RecipientID != "" {
			ids = append(ids, m.RecipientID)
		}
	}
	users, err := s.lookupUsers(ctx, ids)
	if err != nil {
		s.log.WithError(err).Warn("populate message users")
		return
	}
	for i := range msgs {
		if u, ok := users[msgs[i].SenderID]; ok {
			msgs[i].Sender = &u
		}
		if u, ok := users[msgs[i].RecipientID]; ok {
			msgs[i].Recipient = &u
		}
	}
}

func (s *Service) populateChats(ctx context.Context, chats []models.Chat) {
	var ids []string
	for _, c := range chats {
		ids = append(ids, c.Participants...)
	}
	users, err := s.lookupUsers(ctx, ids)
	if err != nil {
		s.log.WithError(err).Warn("populate chat members")
		return
	}
	for i := range chats {
		chats[i].Members = make([]models.User, 0, len(chats[i].Participants))
		for _, id := range chats[i].Participants {
			if u, ok := users[id]; ok {
				chats[i].Members = append(chats[i].Members, u)
			}
		}
		if chats[i].LastMessage != nil {
			last := []models.Message{*chats[i].LastMessage}
			if u, ok := users[last[0].SenderID]; ok {
				last[0].Sender = &u
			}
			chats[i].LastMessage = &last[0]
		}
	}
}

func (s *Service) lookupUsers(ctx context.Context, ids []string) (map[string]models.User, error) {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	list, err := s.users.GetUsers(ctx, unique)
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.User, len(list))
	for _, u := range list {
		out[u.ID] = u
	}
	return out, nil
}
