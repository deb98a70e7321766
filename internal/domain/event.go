package domain

type EventType string

const (
	EventMessageAppended EventType = "message_appended"
	EventPendingChanged  EventType = "pending_changed"
	EventFeedbackChanged EventType = "feedback_changed"
)

// Event announces a mutation of the session. Message is set for appended
// and feedback events, Pending for pending events.
type Event struct {
	Type    EventType `json:"type"`
	Message *Message  `json:"message,omitempty"`
	Pending bool      `json:"pending"`
}

type Notifier interface {
	Notify(e Event)
}

type NopNotifier struct{}

func (NopNotifier) Notify(Event) {}
