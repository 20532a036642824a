package handlers

import (
	"context"

	"messenger-service/internal/delivery"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

// Service is the delivery surface used by the REST gateway.
type Service interface {
	CreateChat(ctx context.Context, userID, otherID string) (models.Chat, bool, error)
	CreateGroup(ctx context.Context, userID, name string, memberIDs []string) (models.Chat, error)
	RemoveUser(ctx context.Context, userID, chatID, targetID string) (models.Chat, error)
	ListChats(ctx context.Context, userID string) ([]models.Chat, error)
	GetChat(ctx context.Context, userID, chatID string) (models.Chat, error)
	GetMessages(ctx context.Context, userID, chatID string, opts repositories.HistoryOptions) ([]models.Message, error)
	MarkChatRead(ctx context.Context, userID, chatID string) ([]string, error)
	DeleteChat(ctx context.Context, userID, chatID string) error

	SendMessage(ctx context.Context, req delivery.SendRequest) (models.Message, error)
	UploadMedia(ctx context.Context, up delivery.MediaUpload) (models.Message, error)
	DeleteMessages(ctx context.Context, userID string, messageIDs []string) ([]string, error)
	MarkRead(ctx context.Context, userID, chatID, messageID, source string) (models.Message, error)
	MarkDelivered(ctx context.Context, userID, chatID, messageID, source string) (models.Message, error)
}
