package mocks

import (
	"sync"

	"messenger-service/internal/models"
)

// Pushed is one event recorded by BroadcasterRecorder.
type Pushed struct {
	Target string
	To     []string
	Event  models.Event
}

// BroadcasterRecorder records pushes instead of sending them.
type BroadcasterRecorder struct {
	mu     sync.Mutex
	Pushes []Pushed
}

func (b *BroadcasterRecorder) ToUser(userID string, event models.Event) {
	b.record(Pushed{Target: "user", To: []string{userID}, Event: event})
}

func (b *BroadcasterRecorder) ToUsers(userIDs []string, event models.Event) {
	b.record(Pushed{Target: "users", To: append([]string(nil), userIDs...), Event: event})
}

func (b *BroadcasterRecorder) ToChat(chatID string, event models.Event) {
	b.record(Pushed{Target: "chat", To: []string{chatID}, Event: event})
}

func (b *BroadcasterRecorder) record(p Pushed) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Pushes = append(b.Pushes, p)
}

// Named returns the recorded pushes of one event name.
func (b *BroadcasterRecorder) Named(name string) []Pushed {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Pushed
	for _, p := range b.Pushes {
		if p.Event.Name == name {
			out = append(out, p)
		}
	}
	return out
}
