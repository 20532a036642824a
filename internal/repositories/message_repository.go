package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/crypto"
	"messenger-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	GetMessages(ctx context.Context, messageIDs []string) ([]models.Message, error)
	ListMessages(ctx context.Context, chatID string, opts HistoryOptions) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID string, recipientID string) (models.Message, bool, error)
	MarkDelivered(ctx context.Context, messageID string, recipientID string) (models.Message, bool, error)
	MarkPendingDelivered(ctx context.Context, recipientID string) ([]models.DeliveryReceipt, error)
	MarkChatRead(ctx context.Context, chatID string, recipientID string) ([]string, error)
	DeleteMessages(ctx context.Context, messageIDs []string) ([]models.Message, error)
}

// HistoryOptions narrows a history fetch. Zero values return everything.
type HistoryOptions struct {
	Limit  uint64
	Before *time.Time
}

var messageColumns = []string{
	"id", "chat_id", "sender_id", "COALESCE(recipient_id::text, '') AS recipient_id",
	"message", "message_type", "delivered", "is_read", "created_at",
}

const messageReturning = `RETURNING id, chat_id, sender_id, COALESCE(recipient_id::text, '') AS recipient_id,
	message, message_type, delivered, is_read, created_at`

// MessageRepo is a sqlx-backed repository. Text content is encoded with the
// codec on write and decoded on every read.
type MessageRepo struct {
	db    *sqlx.DB
	codec crypto.Codec
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB, codec crypto.Codec) *MessageRepo {
	return &MessageRepo{db: db, codec: codec}
}

func encodeContent(codec crypto.Codec, msg *models.Message) error {
	if msg.Type != models.MessageText {
		return nil
	}
	encoded, err := codec.Encode(msg.Content)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}
	msg.Content = encoded
	return nil
}

func decodeContent(codec crypto.Codec, msg *models.Message) error {
	if msg.Type != models.MessageText {
		return nil
	}
	decoded, err := codec.Decode(msg.Content)
	if err != nil {
		return fmt.Errorf("message %s: %w", msg.ID, err)
	}
	msg.Content = decoded
	return nil
}

// isForeignKeyViolation reports a message insert racing a chat delete.
func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

func selectMessages(ctx context.Context, q sqlx.QueryerContext, codec crypto.Codec, builder sq.SelectBuilder) ([]models.Message, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	msgs := []models.Message{}
	if err := sqlx.SelectContext(ctx, q, &msgs, query, args...); err != nil {
		return nil, err
	}
	for i := range msgs {
		if err := decodeContent(codec, &msgs[i]); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

// CreateMessage stores the message and applies its chat-level side effects in
// the same transaction: lastMessage, updatedAt and +1 on the unread counter of
// every participant except the sender.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	plain := msg.Content
	if err := encodeContent(r.codec, &msg); err != nil {
		return models.Message{}, err
	}

	var recipient any
	if msg.RecipientID != "" {
		recipient = msg.RecipientID
	}

	err := atomic(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.QueryRowxContext(ctx, `INSERT INTO messages (id, chat_id, sender_id, recipient_id, message, message_type, delivered, is_read)
			VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE) RETURNING created_at`,
			msg.ID, msg.ChatID, msg.SenderID, recipient, msg.Content, msg.Type, msg.Delivered).Scan(&msg.CreatedAt); err != nil {
			if isForeignKeyViolation(err) {
				return ErrChatNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE chat_participants SET unread_count = unread_count + 1
			WHERE chat_id=$1 AND user_id<>$2`, msg.ChatID, msg.SenderID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE chats SET last_message_id=$1, updated_at=$2 WHERE id=$3`,
			msg.ID, msg.CreatedAt, msg.ChatID)
		if err != nil {
			return err
		}
		if count, err := res.RowsAffected(); err == nil && count == 0 {
			return ErrChatNotFound
		}
		return nil
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("create message: %w", err)
	}

	msg.Content = plain
	msg.IsRead = false
	return msg, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	msgs, err := r.GetMessages(ctx, []string{messageID})
	if err != nil {
		return models.Message{}, err
	}
	if len(msgs) == 0 {
		return models.Message{}, ErrMessageNotFound
	}
	return msgs[0], nil
}

// GetMessages retrieves the messages with the given ids; missing ids are skipped.
func (r *MessageRepo) GetMessages(ctx context.Context, messageIDs []string) ([]models.Message, error) {
	if len(messageIDs) == 0 {
		return []models.Message{}, nil
	}
	return selectMessages(ctx, r.db, r.codec, psql.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"id": messageIDs}).
		OrderBy("created_at"))
}

// ListMessages returns chat history in ascending timestamp order. With a limit
// the newest messages before the cursor are returned.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID string, opts HistoryOptions) ([]models.Message, error) {
	builder := psql.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"chat_id": chatID})
	if opts.Before != nil {
		builder = builder.Where(sq.Lt{"created_at": opts.Before.UTC()})
	}
	if opts.Limit == 0 {
		return selectMessages(ctx, r.db, r.codec, builder.OrderBy("created_at", "id"))
	}

	msgs, err := selectMessages(ctx, r.db, r.codec, builder.OrderBy("created_at DESC", "id DESC").Limit(opts.Limit))
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MarkRead moves a message addressed to recipientID into the read state and
// decrements the recipient's unread counter, floored at zero. The bool is false
// when the message was already read; a message that does not exist or is not
// addressed to recipientID yields ErrMessageNotFound.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID string, recipientID string) (models.Message, bool, error) {
	var msg models.Message
	changed := false
	err := atomic(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &msg, `UPDATE messages SET delivered=TRUE, is_read=TRUE
			WHERE id=$1 AND recipient_id=$2 AND is_read=FALSE `+messageReturning, messageID, recipientID)
		if errors.Is(err, sql.ErrNoRows) {
			return r.getAddressed(ctx, tx, &msg, messageID, recipientID)
		}
		if err != nil {
			return err
		}
		changed = true
		_, err = tx.ExecContext(ctx, `UPDATE chat_participants SET unread_count = GREATEST(unread_count - 1, 0)
			WHERE chat_id=$1 AND user_id=$2`, msg.ChatID, recipientID)
		return err
	})
	if err != nil {
		return models.Message{}, false, err
	}
	if err := decodeContent(r.codec, &msg); err != nil {
		return models.Message{}, false, err
	}
	return msg, changed, nil
}

// MarkDelivered moves a sent message addressed to recipientID into the
// delivered state. Unread counters are untouched.
func (r *MessageRepo) MarkDelivered(ctx context.Context, messageID string, recipientID string) (models.Message, bool, error) {
	var msg models.Message
	changed := false
	err := atomic(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &msg, `UPDATE messages SET delivered=TRUE
			WHERE id=$1 AND recipient_id=$2 AND delivered=FALSE `+messageReturning, messageID, recipientID)
		if errors.Is(err, sql.ErrNoRows) {
			return r.getAddressed(ctx, tx, &msg, messageID, recipientID)
		}
		if err == nil {
			changed = true
		}
		return err
	})
	if err != nil {
		return models.Message{}, false, err
	}
	if err := decodeContent(r.codec, &msg); err != nil {
		return models.Message{}, false, err
	}
	return msg, changed, nil
}

func (r *MessageRepo) getAddressed(ctx context.Context, tx *sqlx.Tx, dest *models.Message, messageID, recipientID string) error {
	query, args, err := psql.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"id": messageID, "recipient_id": recipientID}).
		ToSql()
	if err != nil {
		return err
	}
	err = tx.GetContext(ctx, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMessageNotFound
	}
	return err
}

// MarkPendingDelivered flags every undelivered message addressed to
// recipientID as delivered and returns the changed ids grouped by chat.
func (r *MessageRepo) MarkPendingDelivered(ctx context.Context, recipientID string) ([]models.DeliveryReceipt, error) {
	var rows []struct {
		ID     string `db:"id"`
		ChatID string `db:"chat_id"`
	}
	if err := r.db.SelectContext(ctx, &rows, `UPDATE messages SET delivered=TRUE
		WHERE recipient_id=$1 AND delivered=FALSE RETURNING id, chat_id`, recipientID); err != nil {
		return nil, fmt.Errorf("mark pending delivered: %w", err)
	}

	receipts := []models.DeliveryReceipt{}
	index := map[string]int{}
	for _, row := range rows {
		i, ok := index[row.ChatID]
		if !ok {
			i = len(receipts)
			index[row.ChatID] = i
			receipts = append(receipts, models.DeliveryReceipt{ChatID: row.ChatID})
		}
		receipts[i].MessageIDs = append(receipts[i].MessageIDs, row.ID)
	}
	return receipts, nil
}

// MarkChatRead reads every unread message of the chat addressed to
// recipientID and resets the recipient's unread counter to zero.
func (r *MessageRepo) MarkChatRead(ctx context.Context, chatID string, recipientID string) ([]string, error) {
	ids := []string{}
	err := atomic(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &ids, `UPDATE messages SET delivered=TRUE, is_read=TRUE
			WHERE chat_id=$1 AND recipient_id=$2 AND is_read=FALSE RETURNING id`, chatID, recipientID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE chat_participants SET unread_count=0 WHERE chat_id=$1 AND user_id=$2`, chatID, recipientID)
		if err != nil {
			return err
		}
		if count, err := res.RowsAffected(); err == nil && count == 0 {
			return ErrNotParticipant
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mark chat read: %w", err)
	}
	return ids, nil
}

// DeleteMessages removes the messages, un-counts the unread ones from the
// counters they were added to and re-points lastMessage of affected chats.
func (r *MessageRepo) DeleteMessages(ctx context.Context, messageIDs []string) ([]models.Message, error) {
	deleted := []models.Message{}
	if len(messageIDs) == 0 {
		return deleted, nil
	}

	err := atomic(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &deleted, `DELETE FROM messages WHERE id = ANY($1) `+messageReturning,
			pq.Array(messageIDs)); err != nil {
			return err
		}

		chats := map[string]struct{}{}
		for _, m := range deleted {
			chats[m.ChatID] = struct{}{}
			if m.IsRead {
				continue
			}
			if _, err := tx.ExecContext(ctx, `UPDATE chat_participants SET unread_count = GREATEST(unread_count - 1, 0)
				WHERE chat_id=$1 AND user_id<>$2`, m.ChatID, m.SenderID); err != nil {
				return err
			}
		}

		for chatID := range chats {
			if _, err := tx.ExecContext(ctx, `UPDATE chats SET last_message_id = (
					SELECT id FROM messages WHERE chat_id=$1 ORDER BY created_at DESC, id DESC LIMIT 1
				) WHERE id=$1`, chatID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete messages: %w", err)
	}

	for i := range deleted {
		if err := decodeContent(r.codec, &deleted[i]); err != nil {
			return nil, err
		}
	}
	return deleted, nil
}
