package models

import "encoding/json"

// Server-to-client event names.
const (
	EventNewChat           = "newChat"
	EventNewMessage        = "newMessage"
	EventMessageRead       = "messageRead"
	EventMessagesDelivered = "messagesDelivered"
	EventGroupUpdated      = "groupUpdated"
	EventRemovedFromGroup  = "removedFromGroup"
	EventChatDeleted       = "chatDeleted"
	EventMessagesDeleted   = "messagesDeleted"
	EventUserOnline        = "userOnline"
	EventUserOffline       = "userOffline"
)

// Client-to-server event names.
const (
	EventJoin            = "join"
	EventJoinChat        = "joinChat"
	EventLeaveChat       = "leaveChat"
	EventMarkAsRead      = "markAsRead"
	EventMarkAsDelivered = "markAsDelivered"
)

// Event is the envelope pushed to live connections.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// InboundEvent is the envelope received from a client.
type InboundEvent struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// NewMessagePayload carries a fully resolved message.
type NewMessagePayload struct {
	ChatID  string  `json:"chatId"`
	Message Message `json:"message"`
}

// MessageReadPayload only carries the id; clients already hold the message.
type MessageReadPayload struct {
	MessageID string `json:"messageId"`
}

// MessagesDeletedPayload lists the removed message ids of one chat.
type MessagesDeletedPayload struct {
	ChatID     string   `json:"chatId"`
	MessageIDs []string `json:"messageIds"`
}

// ChatRef identifies a chat in lifecycle events.
type ChatRef struct {
	ChatID string `json:"chatId"`
}

// ReceiptRequest is the payload of markAsRead / markAsDelivered.
type ReceiptRequest struct {
	ChatID    string `json:"chatId" validate:"required,uuid"`
	MessageID string `json:"messageId" validate:"required,uuid"`
}
