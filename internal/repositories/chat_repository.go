package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/crypto"
	"messenger-service/internal/models"
)

var (
	ErrChatNotFound   = errors.New("chat not found")
	ErrNotParticipant = errors.New("user is not a chat participant")
)

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	CreateDirectChat(ctx context.Context, userID string, otherID string) (models.Chat, bool, error)
	CreateGroupChat(ctx context.Context, creatorID string, name string, memberIDs []string) (models.Chat, error)
	GetChat(ctx context.Context, chatID string) (models.Chat, error)
	ListChatsForUser(ctx context.Context, userID string) ([]models.Chat, error)
	ChatPeers(ctx context.Context, userID string) ([]string, error)
	RemoveParticipant(ctx context.Context, chatID string, userID string) error
	DeleteChat(ctx context.Context, chatID string) error
}

const chatColumns = `c.id, c.is_group_chat, COALESCE(c.chat_name, '') AS chat_name,
	COALESCE(c.created_by::text, '') AS created_by, c.last_message_id, c.created_at, c.updated_at`

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db    *sqlx.DB
	codec crypto.Codec
}

// NewChatRepo constructs a ChatRepo. The codec decodes last-message previews.
func NewChatRepo(db *sqlx.DB, codec crypto.Codec) *ChatRepo {
	return &ChatRepo{db: db, codec: codec}
}

// DirectKey is the order-independent identity of a two-party chat.
func DirectKey(userID, otherID string) string {
	pair := []string{userID, otherID}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

// CreateDirectChat returns the chat between the two users, creating it if it
// does not exist yet. The bool reports whether a new chat was created.
func (r *ChatRepo) CreateDirectChat(ctx context.Context, userID string, otherID string) (models.Chat, bool, error) {
	if userID == otherID {
		return models.Chat{}, false, errors.New("cannot create chat with self")
	}
	key := DirectKey(userID, otherID)

	var chatID string
	created := false
	err := atomic(ctx, r.db, func(tx *sqlx.Tx) error {
		newID := uuid.NewString()
		err := tx.GetContext(ctx, &chatID, `INSERT INTO chats (id, is_group_chat, direct_key) VALUES ($1, FALSE, $2)
			ON CONFLICT (direct_key) DO NOTHING RETURNING id`, newID, key)
		if errors.Is(err, sql.ErrNoRows) {
			return tx.GetContext(ctx, &chatID, `SELECT id FROM chats WHERE direct_key=$1`, key)
		}
		if err != nil {
			return err
		}
		created = true
		return insertParticipants(ctx, tx, chatID, []string{userID, otherID})
	})
	if err != nil {
		return models.Chat{}, false, fmt.Errorf("create direct chat: %w", err)
	}

	chat, err := r.GetChat(ctx, chatID)
	return chat, created, err
}

// CreateGroupChat creates a named group owned by creatorID. The creator is
// always a participant and member ids are deduplicated.
func (r *ChatRepo) CreateGroupChat(ctx context.Context, creatorID string, name string, memberIDs []string) (models.Chat, error) {
	chatID := uuid.NewString()

	ids := []string{creatorID}
	seen := map[string]struct{}{creatorID: {}}
	for _, id := range memberIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	err := atomic(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO chats (id, is_group_chat, chat_name, created_by) VALUES ($1, TRUE, $2, $3)`,
			chatID, name, creatorID); err != nil {
			return err
		}
		return insertParticipants(ctx, tx, chatID, ids)
	})
	if err != nil {
		return models.Chat{}, fmt.Errorf("create group chat: %w", err)
	}
	return r.GetChat(ctx, chatID)
}

func insertParticipants(ctx context.Context, tx *sqlx.Tx, chatID string, userIDs []string) error {
	builder := psql.Insert("chat_participants").Columns("chat_id", "user_id")
	for _, id := range userIDs {
		builder = builder.Values(chatID, id)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

// GetChat fetches a chat with participants, unread counters and last message.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats c WHERE c.id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	if err != nil {
		return models.Chat{}, err
	}

	chats := []models.Chat{chat}
	if err := r.hydrate(ctx, chats); err != nil {
		return models.Chat{}, err
	}
	return chats[0], nil
}

// ListChatsForUser returns the user's chats, most recently updated first.
func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID string) ([]models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats c
		INNER JOIN chat_participants cp ON cp.chat_id = c.id
		WHERE cp.user_id=$1
		ORDER BY c.updated_at DESC`
	chats := []models.Chat{}
	if err := r.db.SelectContext(ctx, &chats, query, userID); err != nil {
		return nil, err
	}
	if err := r.hydrate(ctx, chats); err != nil {
		return nil, err
	}
	return chats, nil
}

func (r *ChatRepo) hydrate(ctx context.Context, chats []models.Chat) error {
	if len(chats) == 0 {
		return nil
	}

	chatIDs := make([]string, 0, len(chats))
	lastIDs := make([]string, 0, len(chats))
	for _, c := range chats {
		chatIDs = append(chatIDs, c.ID)
		if c.LastMessageID != nil {
			lastIDs = append(lastIDs, *c.LastMessageID)
		}
	}

	var participants []models.Participant
	if err := r.db.SelectContext(ctx, &participants, `SELECT chat_id, user_id, unread_count, joined_at FROM chat_participants
		WHERE chat_id = ANY($1) ORDER BY joined_at, user_id`, pq.Array(chatIDs)); err != nil {
		return err
	}

	byChat := make(map[string][]models.Participant, len(chats))
	for _, p := range participants {
		byChat[p.ChatID] = append(byChat[p.ChatID], p)
	}

	lastByID := map[string]models.Message{}
	if len(lastIDs) > 0 {
		msgs, err := selectMessages(ctx, r.db, r.codec, psql.Select(messageColumns...).From("messages").
			Where(sq.Eq{"id": lastIDs}))
		if err != nil {
			return err
		}
		for _, m := range msgs {
			lastByID[m.ID] = m
		}
	}

	for i := range chats {
		chats[i].Participants = make([]string, 0, len(byChat[chats[i].ID]))
		chats[i].UnreadCounts = make(map[string]int, len(byChat[chats[i].ID]))
		for _, p := range byChat[chats[i].ID] {
			chats[i].Participants = append(chats[i].Participants, p.UserID)
			chats[i].UnreadCounts[p.UserID] = p.UnreadCount
		}
		if chats[i].LastMessageID != nil {
			if m, ok := lastByID[*chats[i].LastMessageID]; ok {
				chats[i].LastMessage = &m
			}
		}
	}
	return nil
}

// ChatPeers returns every distinct user sharing at least one chat with userID.
func (r *ChatRepo) ChatPeers(ctx context.Context, userID string) ([]string, error) {
	peers := []string{}
	err := r.db.SelectContext(ctx, &peers, `SELECT DISTINCT other.user_id FROM chat_participants me
		INNER JOIN chat_participants other ON other.chat_id = me.chat_id
		WHERE me.user_id=$1 AND other.user_id<>$1`, userID)
	return peers, err
}

// RemoveParticipant drops userID from the chat together with its unread counter.
func (r *ChatRepo) RemoveParticipant(ctx context.Context, chatID string, userID string) error {
	return atomic(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM chat_participants WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
		if err != nil {
			return err
		}
		count, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNotParticipant
		}
		_, err = tx.ExecContext(ctx, `UPDATE chats SET updated_at=$2 WHERE id=$1`, chatID, time.Now().UTC())
		return err
	})
}

// DeleteChat removes the chat; messages and participants cascade.
func (r *ChatRepo) DeleteChat(ctx context.Context, chatID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, chatID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrChatNotFound
	}
	return nil
}
