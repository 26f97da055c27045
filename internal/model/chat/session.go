package chat

import "time"

// Status is the lifecycle state of a session. Non-existence (before creation
// or after deletion) is not a state; operations on a missing session fail.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Session is one guest conversation. It is created only by a guest starting
// a chat, never implicitly by the admin inbox, and its ID is the sole key
// correlating it with its message log.
type Session struct {
	ID        string `json:"id"`
	GuestName string `json:"guestName,omitempty"`
	Status    Status `json:"status"`
	// LastMessage is a denormalized preview of the newest message, with an
	// "Admin: " prefix when the admin wrote it. Refreshed alongside every
	// append as a separate write, so it can briefly trail the log.
	LastMessage string    `json:"lastMessage,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DisplayName is the inbox label: the guest name, or a truncated-id
// placeholder for guests who never gave one.
func (s Session) DisplayName() string {
	if s.GuestName != "" {
		return s.GuestName
	}
	id := s.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return "Tamu-" + id
}
