package delivery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

func readMessage() models.Message {
	return models.Message{ID: msg1, ChatID: chat1, SenderID: alice, RecipientID: bob, Delivered: true, IsRead: true}
}

func TestMarkReadBroadcastsToChatRoom(t *testing.T) {
	f := newFixture(t)
	f.messages.On("MarkRead", mock.Anything, msg1, bob).Return(readMessage(), true, nil).Once()

	msg, err := f.svc.MarkRead(context.Background(), bob, "", msg1, SourceREST)
	require.NoError(t, err)
	assert.True(t, msg.IsRead)
	assert.True(t, msg.Delivered)

	pushed := f.pushes.Named(models.EventMessageRead)
	require.Len(t, pushed, 1)
	assert.Equal(t, "chat", pushed[0].Target)
	assert.Equal(t, []string{chat1}, pushed[0].To)
	assert.Equal(t, models.MessageReadPayload{MessageID: msg1}, pushed[0].Event.Data)
}

func TestMarkReadTwiceIsNoop(t *testing.T) {
	f := newFixture(t)
	f.messages.On("MarkRead", mock.Anything, msg1, bob).Return(readMessage(), false, nil).Once()

	_, err := f.svc.MarkRead(context.Background(), bob, "", msg1, SourceREST)
	require.NoError(t, err)
	assert.Empty(t, f.pushes.Pushes)
}

func TestMarkReadByNonRecipientIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.messages.On("MarkRead", mock.Anything, msg1, alice).Return(nil, false, repositories.ErrMessageNotFound).Once()

	_, err := f.svc.MarkRead(context.Background(), alice, "", msg1, SourceREST)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.pushes.Pushes)
}

func TestMarkReadRealtimeChecksChat(t *testing.T) {
	f := newFixture(t)
	other := "cccccccc-cccc-4ccc-8ccc-cccccccccccc"
	f.messages.On("GetMessage", mock.Anything, msg1).Return(readMessage(), nil).Once()

	_, err := f.svc.MarkRead(context.Background(), bob, other, msg1, SourceRealtime)
	assert.ErrorIs(t, err, ErrNotFound)
	f.messages.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadRealtimeMatchingChat(t *testing.T) {
	f := newFixture(t)
	pending := models.Message{ID: msg1, ChatID: chat1, SenderID: alice, RecipientID: bob}
	f.messages.On("GetMessage", mock.Anything, msg1).Return(pending, nil).Once()
	f.messages.On("MarkRead", mock.Anything, msg1, bob).Return(readMessage(), true, nil).Once()

	_, err := f.svc.MarkRead(context.Background(), bob, chat1, msg1, SourceRealtime)
	require.NoError(t, err)
	assert.Len(t, f.pushes.Named(models.EventMessageRead), 1)
}

func TestMarkReadInvalidID(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.MarkRead(context.Background(), bob, "", "42", SourceREST)
	assert.True(t, IsValidation(err))
}

func TestMarkDeliveredEmitsReceipt(t *testing.T) {
	f := newFixture(t)
	delivered := models.Message{ID: msg1, ChatID: chat1, SenderID: alice, RecipientID: bob, Delivered: true}
	f.messages.On("MarkDelivered", mock.Anything, msg1, bob).Return(delivered, true, nil).Once()

	_, err := f.svc.MarkDelivered(context.Background(), bob, "", msg1, SourceREST)
	require.NoError(t, err)

	pushed := f.pushes.Named(models.EventMessagesDelivered)
	require.Len(t, pushed, 1)
	assert.Equal(t, models.DeliveryReceipt{ChatID: chat1, MessageIDs: []string{msg1}}, pushed[0].Event.Data)
}

func TestMarkChatReadEmitsPerMessage(t *testing.T) {
	f := newFixture(t)
	second := "dddddddd-dddd-4ddd-8ddd-dddddddddddd"
	f.chats.On("GetChat", mock.Anything, chat1).Return(directChat(), nil).Once()
	f.messages.On("MarkChatRead", mock.Anything, chat1, bob).Return([]string{msg1, second}, nil).Once()

	ids, err := f.svc.MarkChatRead(context.Background(), bob, chat1)
	require.NoError(t, err)
	assert.Equal(t, []string{msg1, second}, ids)
	assert.Len(t, f.pushes.Named(models.EventMessageRead), 2)
}

func TestMarkChatReadOutsiderIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.chats.On("GetChat", mock.Anything, chat1).Return(directChat(), nil).Once()

	_, err := f.svc.MarkChatRead(context.Background(), carol, chat1)
	assert.ErrorIs(t, err, ErrNotFound)
}
