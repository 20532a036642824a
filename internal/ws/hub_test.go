package ws

import (
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/models"
	"messenger-service/internal/presence"
)

const (
	userA = "11111111-1111-4111-8111-111111111111"
	userB = "22222222-2222-4222-8222-222222222222"
	room1 = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
)

func newTestHub(t *testing.T) (*Hub, *presence.Registry) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	registry := presence.NewRegistry()
	return NewHub(registry, logger), registry
}

func addClient(hub *Hub, connID, userID string) *Client {
	c := NewClient(nil, ConnInfo{ConnID: connID, UserID: userID}, nil)
	hub.Register(c)
	return c
}

func receive(t *testing.T, c *Client) models.InboundEvent {
	t.Helper()
	select {
	case payload := <-c.send:
		var ev models.InboundEvent
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev
	default:
		t.Fatalf("no event buffered for %s", c.info.ConnID)
		return models.InboundEvent{}
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	assert.Len(t, c.send, 0, "unexpected event for %s", c.info.ConnID)
}

func TestHubJoinAndLeaveRoom(t *testing.T) {
	hub, _ := newTestHub(t)
	addClient(hub, "c1", userA)

	assert.True(t, hub.JoinRoom("c1", room1))
	assert.False(t, hub.JoinRoom("missing", room1))
	assert.Equal(t, 1, hub.RoomSize(room1))

	hub.LeaveRoom("c1", room1)
	assert.Equal(t, 0, hub.RoomSize(room1))
	assert.Empty(t, hub.rooms)
}

func TestHubUnregisterCleansRooms(t *testing.T) {
	hub, _ := newTestHub(t)
	c := addClient(hub, "c1", userA)
	hub.JoinRoom("c1", room1)

	assert.True(t, hub.Unregister("c1"))
	assert.False(t, hub.Unregister("c1"))
	assert.Equal(t, 0, hub.RoomSize(room1))
	assert.Equal(t, 0, hub.ClientCount())

	_, open := <-c.send
	assert.False(t, open)
}

func TestHubToUserReachesEveryJoinedDevice(t *testing.T) {
	hub, registry := newTestHub(t)
	phone := addClient(hub, "phone", userA)
	laptop := addClient(hub, "laptop", userA)
	other := addClient(hub, "other", userB)
	registry.Join("phone", userA)
	registry.Join("laptop", userA)
	registry.Join("other", userB)

	hub.ToUser(userA, models.Event{Name: models.EventUserOnline, Data: userB})

	assert.Equal(t, models.EventUserOnline, receive(t, phone).Name)
	assert.Equal(t, models.EventUserOnline, receive(t, laptop).Name)
	assertEmpty(t, other)
}

func TestHubToUsersDeduplicatesConnections(t *testing.T) {
	hub, registry := newTestHub(t)
	c := addClient(hub, "c1", userA)
	registry.Join("c1", userA)

	hub.ToUsers([]string{userA, userA}, models.Event{Name: models.EventNewChat})

	receive(t, c)
	assertEmpty(t, c)
}

func TestHubToChatOnlyReachesRoomMembers(t *testing.T) {
	hub, _ := newTestHub(t)
	in := addClient(hub, "in", userA)
	out := addClient(hub, "out", userB)
	hub.JoinRoom("in", room1)

	hub.ToChat(room1, models.Event{Name: models.EventMessageRead, Data: models.MessageReadPayload{MessageID: "m1"}})

	ev := receive(t, in)
	assert.Equal(t, models.EventMessageRead, ev.Name)
	assert.JSONEq(t, `{"messageId":"m1"}`, string(ev.Data))
	assertEmpty(t, out)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub, registry := newTestHub(t)
	c := addClient(hub, "c1", userA)
	registry.Join("c1", userA)

	for i := 0; i < sendBuffer+5; i++ {
		hub.ToUser(userA, models.Event{Name: models.EventNewMessage})
	}
	assert.Len(t, c.send, sendBuffer)
}

func TestHubIgnoresUserWithoutPresence(t *testing.T) {
	hub, _ := newTestHub(t)
	c := addClient(hub, "c1", userA)

	hub.ToUser(userA, models.Event{Name: models.EventNewMessage})
	assertEmpty(t, c)
}
