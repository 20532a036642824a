package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"messenger-service/internal/media"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateDirectChat(ctx context.Context, userID string, otherID string) (models.Chat, bool, error) {
	args := m.Called(ctx, userID, otherID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Bool(1), args.Error(2)
}

func (m *ChatRepositoryMock) CreateGroupChat(ctx context.Context, creatorID string, name string, memberIDs []string) (models.Chat, error) {
	args := m.Called(ctx, creatorID, name, memberIDs)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListChatsForUser(ctx context.Context, userID string) ([]models.Chat, error) {
	args := m.Called(ctx, userID)
	var list []models.Chat
	if val := args.Get(0); val != nil {
		list = val.([]models.Chat)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) ChatPeers(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	var peers []string
	if val := args.Get(0); val != nil {
		peers = val.([]string)
	}
	return peers, args.Error(1)
}

func (m *ChatRepositoryMock) RemoveParticipant(ctx context.Context, chatID string, userID string) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) DeleteChat(ctx context.Context, chatID string) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	if fn, ok := args.Get(0).(func(context.Context, models.Message) (models.Message, error)); ok {
		return fn(ctx, msg)
	}
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessages(ctx context.Context, messageIDs []string) ([]models.Message, error) {
	args := m.Called(ctx, messageIDs)
	var out []models.Message
	if val := args.Get(0); val != nil {
		out = val.([]models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID string, opts repositories.HistoryOptions) ([]models.Message, error) {
	args := m.Called(ctx, chatID, opts)
	var out []models.Message
	if val := args.Get(0); val != nil {
		out = val.([]models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID string, recipientID string) (models.Message, bool, error) {
	args := m.Called(ctx, messageID, recipientID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Bool(1), args.Error(2)
}

func (m *MessageRepositoryMock) MarkDelivered(ctx context.Context, messageID string, recipientID string) (models.Message, bool, error) {
	args := m.Called(ctx, messageID, recipientID)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Bool(1), args.Error(2)
}

func (m *MessageRepositoryMock) MarkPendingDelivered(ctx context.Context, recipientID string) ([]models.DeliveryReceipt, error) {
	args := m.Called(ctx, recipientID)
	var out []models.DeliveryReceipt
	if val := args.Get(0); val != nil {
		out = val.([]models.DeliveryReceipt)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) MarkChatRead(ctx context.Context, chatID string, recipientID string) ([]string, error) {
	args := m.Called(ctx, chatID, recipientID)
	var out []string
	if val := args.Get(0); val != nil {
		out = val.([]string)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteMessages(ctx context.Context, messageIDs []string) ([]models.Message, error) {
	args := m.Called(ctx, messageIDs)
	var out []models.Message
	if val := args.Get(0); val != nil {
		out = val.([]models.Message)
	}
	return out, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUsers(ctx context.Context, userIDs []string) ([]models.User, error) {
	args := m.Called(ctx, userIDs)
	var out []models.User
	if val := args.Get(0); val != nil {
		out = val.([]models.User)
	}
	return out, args.Error(1)
}

func (m *UserRepositoryMock) IsOnline(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *UserRepositoryMock) SetOnline(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *UserRepositoryMock) SetOffline(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MirrorMock doubles presence.Mirror.
type MirrorMock struct {
	mock.Mock
}

func (m *MirrorMock) SetOnline(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MirrorMock) SetOffline(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MediaStoreMock struct {
	mock.Mock
}

func (m *MediaStoreMock) Store(ctx context.Context, obj media.Object) (media.Stored, error) {
	args := m.Called(ctx, obj)
	var out media.Stored
	if val := args.Get(0); val != nil {
		out = val.(media.Stored)
	}
	return out, args.Error(1)
}
