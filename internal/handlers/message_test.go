package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/media"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

func (e *env) echoCreate() {
	e.messages.On("CreateMessage", mock.Anything, mock.Anything).Return(func(_ context.Context, m models.Message) (models.Message, error) {
		m.ID = msg1
		m.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		return m, nil
	}).Once()
}

func TestSendMessageToOfflineRecipient(t *testing.T) {
	e := newEnv(t, alice)
	e.chats.On("GetChat", mock.Anything, chat1).Return(directChat(), nil).Once()
	e.echoCreate()

	rec := e.do(http.MethodPost, "/messages", gin.H{"chatId": chat1, "message": "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hi", body["message"])
	assert.Equal(t, "text", body["messageType"])
	assert.Equal(t, alice, body["senderId"])
	assert.Equal(t, bob, body["recipientId"])
	assert.Equal(t, false, body["delivered"])
	assert.Equal(t, false, body["isRead"])
	assert.Len(t, e.pushes.Named(models.EventNewMessage), 1)
}

func TestSendMessageToOnlineRecipient(t *testing.T) {
	e := newEnv(t, alice)
	e.registry.Join("conn-b", bob)
	e.chats.On("GetChat", mock.Anything, chat1).Return(directChat(), nil).Once()
	e.echoCreate()

	rec := e.do(http.MethodPost, "/messages", gin.H{"chatId": chat1, "message": "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.True(t, msg.Delivered)
}

func TestSendMessageInvalidType(t *testing.T) {
	e := newEnv(t, alice)

	rec := e.do(http.MethodPost, "/messages", gin.H{"chatId": chat1, "message": "hi", "messageType": "gif"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkReadByRecipient(t *testing.T) {
	e := newEnv(t, bob)
	read := models.Message{ID: msg1, ChatID: chat1, SenderID: alice, RecipientID: bob, Delivered: true, IsRead: true}
	e.messages.On("MarkRead", mock.Anything, msg1, bob).Return(read, true, nil).Once()

	rec := e.do(http.MethodPost, "/messages/"+msg1+"/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pushed := e.pushes.Named(models.EventMessageRead)
	require.Len(t, pushed, 1)
	assert.Equal(t, []string{chat1}, pushed[0].To)
}

func TestMarkReadByOtherUserIsNotFound(t *testing.T) {
	e := newEnv(t, alice)
	e.messages.On("MarkRead", mock.Anything, msg1, alice).Return(nil, false, repositories.ErrMessageNotFound).Once()

	rec := e.do(http.MethodPost, "/messages/"+msg1+"/read", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, e.pushes.Pushes)
}

func TestMarkDelivered(t *testing.T) {
	e := newEnv(t, bob)
	delivered := models.Message{ID: msg1, ChatID: chat1, SenderID: alice, RecipientID: bob, Delivered: true}
	e.messages.On("MarkDelivered", mock.Anything, msg1, bob).Return(delivered, true, nil).Once()

	rec := e.do(http.MethodPost, "/messages/"+msg1+"/delivered", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, e.pushes.Named(models.EventMessagesDelivered), 1)
}

func TestDeleteMessages(t *testing.T) {
	e := newEnv(t, alice)
	found := []models.Message{{ID: msg1, ChatID: chat1, SenderID: alice}}
	e.messages.On("GetMessages", mock.Anything, []string{msg1}).Return(found, nil).Once()
	e.chats.On("GetChat", mock.Anything, chat1).Return(directChat(), nil).Once()
	e.messages.On("DeleteMessages", mock.Anything, []string{msg1}).Return(found, nil).Once()

	rec := e.do(http.MethodDelete, "/messages", gin.H{"messageIds": []string{msg1}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, e.pushes.Named(models.EventMessagesDeleted), 1)
}

func multipartUpload(t *testing.T, chatID, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("chatId", chatID))
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	h["Content-Type"] = []string{contentType}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/messages/media", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadMedia(t *testing.T) {
	e := newEnv(t, alice)
	e.chats.On("GetChat", mock.Anything, chat1).Return(directChat(), nil).Once()
	e.store.On("Store", mock.Anything, mock.MatchedBy(func(o media.Object) bool {
		return o.Filename == "cat.png" && o.ContentType == "image/png" && o.Size == 4
	})).Return(media.Stored{URL: "https://cdn/cat.png", Type: models.MessageImage}, nil).Once()
	e.users.On("IsOnline", mock.Anything, bob).Return(false, nil).Once()
	e.echoCreate()

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, multipartUpload(t, chat1, "cat.png", "image/png", []byte("data")))
	require.Equal(t, http.StatusCreated, rec.Code)

	var msg models.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, models.MessageImage, msg.Type)
	assert.Equal(t, "https://cdn/cat.png", msg.Content)
}

func TestUploadMediaStoreFailure(t *testing.T) {
	e := newEnv(t, alice)
	e.chats.On("GetChat", mock.Anything, chat1).Return(directChat(), nil).Once()
	e.store.On("Store", mock.Anything, mock.Anything).Return(nil, errors.Join(media.ErrUpload, errors.New("s3 down"))).Once()

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, multipartUpload(t, chat1, "cat.png", "image/png", []byte("data")))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	e.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestUploadMediaWithoutFile(t *testing.T) {
	e := newEnv(t, alice)

	rec := e.do(http.MethodPost, "/messages/media", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
