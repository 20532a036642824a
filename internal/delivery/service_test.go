package delivery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/media"
	"messenger-service/internal/mocks"
	"messenger-service/internal/models"
	"messenger-service/internal/presence"
	"messenger-service/internal/repositories"
)

const (
	alice = "11111111-1111-4111-8111-111111111111"
	bob   = "22222222-2222-4222-8222-222222222222"
	carol = "33333333-3333-4333-8333-333333333333"
	chat1 = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	msg1  = "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb"
)

type fixture struct {
	chats    *mocks.ChatRepositoryMock
	messages *mocks.MessageRepositoryMock
	users    *mocks.UserRepositoryMock
	mirror   *mocks.MirrorMock
	store    *mocks.MediaStoreMock
	registry *presence.Registry
	pushes   *mocks.BroadcasterRecorder
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	f := &fixture{
		chats:    new(mocks.ChatRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		users:    new(mocks.UserRepositoryMock),
		mirror:   new(mocks.MirrorMock),
		store:    new(mocks.MediaStoreMock),
		registry: presence.NewRegistry(),
		pushes:   &mocks.BroadcasterRecorder{},
	}
	f.users.On("GetUsers", mock.Anything, mock.Anything).Return([]models.User{
		{ID: alice, Username: "alice"},
		{ID: bob, Username: "bob"},
		{ID: carol, Username: "carol"},
	}, nil).Maybe()
	f.svc = NewService(Deps{
		Chats:         f.chats,
		Messages:      f.messages,
		Users:         f.users,
		Presence:      f.registry,
		Mirror:        f.mirror,
		Broadcaster:   f.pushes,
		Media:         f.store,
		MaxMediaBytes: 1024,
		Logger:        logger,
	})
	return f
}

func directChat() models.Chat {
	return models.Chat{
		ID:           chat1,
		Participants: []string{alice, bob},
		UnreadCounts: map[string]int{alice: 0, bob: 0},
	}
}

func groupChat() models.Chat {
	return models.Chat{
		ID:           chat1,
		IsGroupChat:  true,
		ChatName:     "team",
		CreatedBy:    alice,
		Participants: []string{alice, bob, carol},
	}
}

// echoCreate makes CreateMessage return its input with an id and timestamp.
func (f *fixture) echoCreate() {
	f.messages.On("CreateMessage", mock.Anything, mock.Anything).Return(func(_ context.Context, m models.Message) (models.Message, error) {
		m.ID = msg1
		m.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		return m, nil
	}).Once()
}

func TestSendMessageToOfflineRecipientIsNotDelivered(t *testing.T) {
	f := newFixture(t)
	f.chats.On("GetChat", mock.Anything, chat1).Return(directChat(), nil).Once()
	f.echoCreate()

	msg, err := f.svc.SendMessage(context.Background(), SendRequest{SenderID: alice, ChatID: chat1, Content: "hi"})
	require.NoError(t, err)

	assert.Equal(t, bob, msg.RecipientID)
	assert.Equal(t, "hi", msg.Content)
	assert.Equal(t, models.MessageText, msg.Type)
	assert.False(t, msg.Delivered)
	assert.False(t, msg.IsRead)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "alice", msg.Sender.Username)
	require.NotNil(t, msg.Recipient)

	pushed := f.pushes.Named(models.EventNewMessage)
	require.Len(t, pushed, 1)
	assert.ElementsMatch(t, []string{alice, bob}, pushed[0].To)
	payload := pushed[0].Event.Data.(models.NewMessagePayload)
	assert.Equal(t, chat1, payload.ChatID)
	assert.Equal(t, msg1, payload.Message.ID)
	f.messages.AssertExpectations(t)
}

func TestSendMessageToOnlineRecipientIsDelivered(t *testing.T) {
	f := newFixture(t)
	f.registry.Join("conn-b", bob)
	f.chats.On("GetChat", mock.Anything, chat1).Return(directChat(), nil).Once()
	f.echoCreate()

	msg, err := f.svc.SendMessage(context.Background(), SendRequest{SenderID: alice, ChatID: chat1, Content: "hi"})
	require.NoError(t, err)
	assert.True(t, msg.Delivered)
}

func TestSendMessageSenderPresenceDoesNotCount(t *testing.T) {
	f := newFixture(t)
	f.registry.Join("conn-a", alice)
	f.chats.On("GetChat", mock.Anything, chat1).Return(directChat(), nil).Once()
	f.echoCreate()

	msg, err := f.svc.SendMessage(context.Background(), SendRequest{SenderID: alice, ChatID: chat1, Content: "hi"})
	require.NoError(t, err)
	assert.False(t, msg.Delivered)
}

func TestSendGroupMessageUsesFirstOtherParticipant(t *testing.T) {
	f := newFixture(t)
	f.registry.Join("conn-c", carol)
	f.chats.On("GetChat", mock.Anything, chat1).Return(groupChat(), nil).Once()
	f.echoCreate()

	msg, err := f.svc.SendMessage(context.Background(), SendRequest{SenderID: alice, ChatID: chat1, Content: "hey all"})
	require.NoError(t, err)
	assert.Equal(t, bob, msg.RecipientID)
	assert.True(t, msg.Delivered, "any other online participant delivers a text message")

	pushed := f.pushes.Named(models.EventNewMessage)
	require.Len(t, pushed, 1)
	assert.ElementsMatch(t, []string{alice, bob, carol}, pushed[0].To)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SendMessage(context.Background(), SendRequest{SenderID: alice, ChatID: chat1, Content: "  "})
	assert.True(t, IsValidation(err))

	_, err = f.svc.SendMessage(context.Background(), SendRequest{SenderID: alice, ChatID: chat1, Content: "x", Type: "sticker"})
	assert.True(t, IsValidation(err))

	_, err = f.svc.SendMessage(context.Background(), SendRequest{SenderID: alice, ChatID: "nope", Content: "x"})
	assert.True(t, IsValidation(err))

	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSendMessageByOutsiderIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.chats.On("GetChat", mock.Anything, chat1).Return(directChat(), nil).Once()

	_, err := f.svc.SendMessage(context.Background(), SendRequest{SenderID: carol, ChatID: chat1, Content: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestSendMessageToMissingChatIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.chats.On("GetChat", mock.Anything, chat1).Return(nil, repositories.ErrChatNotFound).Once()

	_, err := f.svc.SendMessage(context.Background(), SendRequest{SenderID: alice, ChatID: chat1, Content: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUploadMediaFallsBackToPersistedPresence(t *testing.T) {
	f := newFixture(t)
	f.chats.On("GetChat", mock.Anything, chat1).Return(directChat(), nil).Once()
	f.store.On("Store", mock.Anything, mock.MatchedBy(func(o media.Object) bool {
		return o.ChatID == chat1 && o.OwnerID == alice && o.Filename == "cat.png"
	})).Return(media.Stored{URL: "https://cdn/cat.png", Type: models.MessageImage}, nil).Once()
	f.users.On("IsOnline", mock.Anything, bob).Return(true, nil).Once()
	f.echoCreate()

	msg, err := f.svc.UploadMedia(context.Background(), MediaUpload{
		SenderID: alice, ChatID: chat1, Filename: "cat.png", ContentType: "image/png",
		Size: 4, Body: strings.NewReader("data"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.MessageImage, msg.Type)
	assert.Equal(t, "https://cdn/cat.png", msg.Content)
	assert.True(t, msg.Delivered)
	f.users.AssertExpectations(t)
}

func TestUploadMediaOfflineRecipient(t *testing.T) {
	f := newFixture(t)
	f.chats.On("GetChat", mock.Anything, chat1).Return(directChat(), nil).Once()
	f.store.On("Store", mock.Anything, mock.Anything).Return(media.Stored{URL: "u", Type: models.MessageVideo}, nil).Once()
	f.users.On("IsOnline", mock.Anything, bob).Return(false, nil).Once()
	f.echoCreate()

	msg, err := f.svc.UploadMedia(context.Background(), MediaUpload{
		SenderID: alice, ChatID: chat1, Filename: "a.mp4", ContentType: "video/mp4",
		Size: 1, Body: strings.NewReader("x"),
	})
	require.NoError(t, err)
	assert.False(t, msg.Delivered)
}

func TestUploadMediaFailureCreatesNoMessage(t *testing.T) {
	f := newFixture(t)
	f.chats.On("GetChat", mock.Anything, chat1).Return(directChat(), nil).Once()
	f.store.On("Store", mock.Anything, mock.Anything).Return(nil, errors.Join(media.ErrUpload, errors.New("503"))).Once()

	_, err := f.svc.UploadMedia(context.Background(), MediaUpload{
		SenderID: alice, ChatID: chat1, Filename: "a.png", ContentType: "image/png",
		Size: 1, Body: strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, media.ErrUpload)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	assert.Empty(t, f.pushes.Named(models.EventNewMessage))
}

func TestUploadMediaTooLarge(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UploadMedia(context.Background(), MediaUpload{
		SenderID: alice, ChatID: chat1, Filename: "a.png", Size: 4096, Body: strings.NewReader("x"),
	})
	assert.True(t, IsValidation(err))
	f.store.AssertNotCalled(t, "Store", mock.Anything, mock.Anything)
}
