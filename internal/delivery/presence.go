package delivery

import (
	"context"
	"hash/fnv"

	"github.com/sirupsen/logrus"

	"messenger-service/internal/models"
	"messenger-service/internal/observability"
)

// Join registers connID as userID. Invalid ids are ignored. Co-participants
// are told the user is online, and messages waiting for the user become
// delivered.
func (s *Service) Join(ctx context.Context, connID, userID string) {
	first, ok := s.presence.Join(connID, userID)
	if !ok {
		return
	}
	observability.SetOnlineUsers(s.presence.OnlineCount())
	log := s.log.WithFields(logrus.Fields{"conn_id": connID, "user_id": userID})

	if first {
		s.settleMirror(ctx, userID, log)
	}

	peers, err := s.chats.ChatPeers(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("load chat peers")
	} else {
		s.broadcast.ToUsers(peers, models.Event{Name: models.EventUserOnline, Data: userID})
	}

	receipts, err := s.messages.MarkPendingDelivered(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("mark pending delivered")
		return
	}
	for _, r := range receipts {
		for range r.MessageIDs {
			observability.IncReceiptTransition(string(models.StateDelivered), SourceJoin)
		}
		s.broadcast.ToChat(r.ChatID, models.Event{Name: models.EventMessagesDelivered, Data: r})
	}
}

// Disconnect drops connID. When it was the user's last connection the user
// goes offline and co-participants are told so.
func (s *Service) Disconnect(ctx context.Context, connID string) {
	userID, last := s.presence.Disconnect(connID)
	if userID == "" {
		return
	}
	observability.SetOnlineUsers(s.presence.OnlineCount())
	if !last {
		return
	}
	log := s.log.WithFields(logrus.Fields{"conn_id": connID, "user_id": userID})

	s.settleMirror(ctx, userID, log)
	// a concurrent join already announced the user again
	if s.presence.IsOnline(userID) {
		return
	}
	peers, err := s.chats.ChatPeers(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("load chat peers")
		return
	}
	s.broadcast.ToUsers(peers, models.Event{Name: models.EventUserOffline, Data: userID})
}

// settleMirror writes the registry's current state for userID to the mirror.
// Writes for one user are serialized and read the registry under the same
// lock, so a join racing a last disconnect cannot leave the mirror stale.
func (s *Service) settleMirror(ctx context.Context, userID string, log logrus.FieldLogger) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	mu := &s.mirrorLocks[h.Sum32()%uint32(len(s.mirrorLocks))]
	mu.Lock()
	defer mu.Unlock()

	if s.presence.IsOnline(userID) {
		if err := s.mirror.SetOnline(ctx, userID); err != nil {
			log.WithError(err).Warn("presence mirror online")
		}
		return
	}
	if err := s.mirror.SetOffline(ctx, userID); err != nil {
		log.WithError(err).Warn("presence mirror offline")
	}
}

// IsOnline reports live presence.
func (s *Service) IsOnline(userID string) bool {
	return s.presence.IsOnline(userID)
}

// CanJoinRoom reports whether userID may subscribe to the chat room.
func (s *Service) CanJoinRoom(ctx context.Context, userID, chatID string) bool {
	_, err := s.memberChat(ctx, userID, chatID)
	return err == nil
}
