package presence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinRejectsInvalidUserID(t *testing.T) {
	r := NewRegistry()

	first, ok := r.Join("conn-1", "not-a-uuid")
	assert.False(t, ok)
	assert.False(t, first)
	assert.False(t, r.IsOnline("not-a-uuid"))
	_, mapped := r.UserOf("conn-1")
	assert.False(t, mapped)
}

func TestMultiDeviceStaysOnlineUntilLastDisconnect(t *testing.T) {
	r := NewRegistry()
	u1 := uuid.NewString()

	first, ok := r.Join("conn1", u1)
	require.True(t, ok)
	assert.True(t, first)

	first, ok = r.Join("conn2", u1)
	require.True(t, ok)
	assert.False(t, first)

	user, last := r.Disconnect("conn1")
	assert.Equal(t, u1, user)
	assert.False(t, last)
	assert.True(t, r.IsOnline(u1))

	user, last = r.Disconnect("conn2")
	assert.Equal(t, u1, user)
	assert.True(t, last)
	assert.False(t, r.IsOnline(u1))
}

func TestDisconnectUnknownIsNoop(t *testing.T) {
	r := NewRegistry()

	user, last := r.Disconnect("ghost")
	assert.Empty(t, user)
	assert.False(t, last)
}

func TestRejoinAsDifferentUserIsRejected(t *testing.T) {
	r := NewRegistry()
	u1, u2 := uuid.NewString(), uuid.NewString()

	_, ok := r.Join("conn", u1)
	require.True(t, ok)
	first, ok := r.Join("conn", u2)
	assert.False(t, ok)
	assert.False(t, first)

	assert.True(t, r.IsOnline(u1))
	assert.False(t, r.IsOnline(u2))
	assert.ElementsMatch(t, []string{"conn"}, r.Connections(u1))
	assert.Equal(t, 1, r.OnlineCount())

	first, ok = r.Join("conn", u1)
	assert.True(t, ok)
	assert.False(t, first)
}

func TestConcurrentJoinDisconnect(t *testing.T) {
	r := NewRegistry()
	u := uuid.NewString()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := uuid.NewString()
			r.Join(conn, u)
			if i%2 == 0 {
				r.Disconnect(conn)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, r.Connections(u), 25)
	assert.True(t, r.IsOnline(u))
}

type recordingMirror struct {
	online, offline []string
	err             error
}

func (m *recordingMirror) SetOnline(_ context.Context, userID string) error {
	m.online = append(m.online, userID)
	return m.err
}

func (m *recordingMirror) SetOffline(_ context.Context, userID string) error {
	m.offline = append(m.offline, userID)
	return m.err
}

func TestMirrorsFanOutAndJoinErrors(t *testing.T) {
	ok := &recordingMirror{}
	failing := &recordingMirror{err: errors.New("down")}
	ms := Mirrors{ok, failing}

	err := ms.SetOnline(context.Background(), "u")
	require.Error(t, err)
	assert.Equal(t, []string{"u"}, ok.online)
	assert.Equal(t, []string{"u"}, failing.online)

	require.Error(t, ms.SetOffline(context.Background(), "u"))
	assert.Equal(t, []string{"u"}, ok.offline)
}
