package models

import "time"

// User is the externally owned account row. The service only reads profile
// fields and maintains the presence columns.
type User struct {
	ID        string     `db:"id" json:"id"`
	Username  string     `db:"username" json:"username"`
	AvatarURL string     `db:"avatar_url" json:"avatarUrl,omitempty"`
	IsOnline  bool       `db:"is_online" json:"isOnline"`
	LastSeen  *time.Time `db:"last_seen" json:"lastSeen,omitempty"`
}

// Chat is either a two-party conversation or a named group.
type Chat struct {
	ID            string    `db:"id" json:"id"`
	IsGroupChat   bool      `db:"is_group_chat" json:"isGroupChat"`
	ChatName      string    `db:"chat_name" json:"chatName,omitempty"`
	CreatedBy     string    `db:"created_by" json:"createdBy,omitempty"`
	LastMessageID *string   `db:"last_message_id" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`

	Participants []string       `db:"-" json:"participants"`
	UnreadCounts map[string]int `db:"-" json:"unreadCounts"`
	LastMessage  *Message       `db:"-" json:"lastMessage"`
	Members      []User         `db:"-" json:"members,omitempty"`
}

// Participant is one row of chat membership with its unread counter.
type Participant struct {
	ChatID      string    `db:"chat_id"`
	UserID      string    `db:"user_id"`
	UnreadCount int       `db:"unread_count"`
	JoinedAt    time.Time `db:"joined_at"`
}

// HasParticipant reports whether userID belongs to the chat.
func (c Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipants returns every participant except userID, in join order.
func (c Chat) OtherParticipants(userID string) []string {
	others := make([]string, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p != userID {
			others = append(others, p)
		}
	}
	return others
}

// UnreadFor returns the unread counter of userID; absent entries count as 0.
func (c Chat) UnreadFor(userID string) int {
	return c.UnreadCounts[userID]
}
