package chat

import "time"

// Sender identifies which end of the conversation wrote a message.
type Sender string

const (
	SenderGuest Sender = "guest"
	SenderAdmin Sender = "admin"
)

// Message is one immutable entry in a session's log. Messages are never
// edited or deleted individually; the whole log goes away with its session.
// CreatedAt is assigned by the store at commit and is the ordering key.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
