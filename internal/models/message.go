package models

import "time"

// MessageType classifies message content.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageFile  MessageType = "file"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageVideo, MessageFile:
		return true
	}
	return false
}

// IsMedia reports whether the message content is a stored media URL.
func (t MessageType) IsMedia() bool {
	return t == MessageImage || t == MessageVideo || t == MessageFile
}

// DeliveryState is the lifecycle position of a message.
type DeliveryState string

const (
	StateSent      DeliveryState = "sent"
	StateDelivered DeliveryState = "delivered"
	StateRead      DeliveryState = "read"
)

// Message represents a chat message. Content holds the encoded form while
// inside the store and the decoded form everywhere else.
type Message struct {
	ID          string      `db:"id" json:"id"`
	ChatID      string      `db:"chat_id" json:"chatId"`
	SenderID    string      `db:"sender_id" json:"senderId"`
	RecipientID string      `db:"recipient_id" json:"recipientId,omitempty"`
	Content     string      `db:"message" json:"message"`
	Type        MessageType `db:"message_type" json:"messageType"`
	Delivered   bool        `db:"delivered" json:"delivered"`
	IsRead      bool        `db:"is_read" json:"isRead"`
	CreatedAt   time.Time   `db:"created_at" json:"timestamp"`

	Sender    *User `db:"-" json:"sender,omitempty"`
	Recipient *User `db:"-" json:"recipient,omitempty"`
}

// State derives the lifecycle state from the delivered/read flags.
func (m Message) State() DeliveryState {
	switch {
	case m.IsRead:
		return StateRead
	case m.Delivered:
		return StateDelivered
	default:
		return StateSent
	}
}

// DeliveryReceipt groups message ids of one chat that changed state together.
type DeliveryReceipt struct {
	ChatID     string   `json:"chatId"`
	MessageIDs []string `json:"messageIds"`
}
