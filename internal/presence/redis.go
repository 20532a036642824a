package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMirror publishes presence into redis:
//   - <prefix>:presence:<user> -> {"status","last_seen"} (online keys expire after ttl)
//   - <prefix>:online          -> set of online user ids
type RedisMirror struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

type presenceRecord struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

// NewRedisMirror builds a mirror over an existing client.
func NewRedisMirror(client *redis.Client, prefix string, ttl time.Duration) *RedisMirror {
	return &RedisMirror{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

func (m *RedisMirror) presenceKey(userID string) string {
	return fmt.Sprintf("%s:presence:%s", m.prefix, userID)
}

func (m *RedisMirror) onlineKey() string {
	return m.prefix + ":online"
}

// SetOnline marks userID online until ttl elapses.
func (m *RedisMirror) SetOnline(ctx context.Context, userID string) error {
	body, err := json.Marshal(presenceRecord{Status: "online", LastSeen: m.now().Unix()})
	if err != nil {
		return err
	}
	pipe := m.client.TxPipeline()
	pipe.Set(ctx, m.presenceKey(userID), body, m.ttl)
	pipe.SAdd(ctx, m.onlineKey(), userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set online: %w", err)
	}
	return nil
}

// SetOffline stores the offline record without expiry and drops userID from
// the online set.
func (m *RedisMirror) SetOffline(ctx context.Context, userID string) error {
	body, err := json.Marshal(presenceRecord{Status: "offline", LastSeen: m.now().Unix()})
	if err != nil {
		return err
	}
	pipe := m.client.TxPipeline()
	pipe.Set(ctx, m.presenceKey(userID), body, 0)
	pipe.SRem(ctx, m.onlineKey(), userID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set offline: %w", err)
	}
	return nil
}

// Reset clears the online set. Called at start-up because the in-memory
// registry always begins empty.
func (m *RedisMirror) Reset(ctx context.Context) error {
	return m.client.Del(ctx, m.onlineKey()).Err()
}
