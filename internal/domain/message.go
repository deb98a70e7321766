package domain

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single transcript entry. Everything except the feedback
// flags is fixed at creation.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Liked     bool      `json:"liked,omitempty"`
	Disliked  bool      `json:"disliked,omitempty"`
}

func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}
