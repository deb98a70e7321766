package domain

// ConversationStore holds the transcript of one session and its pending flag.
type ConversationStore interface {
	Append(msg Message)
	SetPending(pending bool)
	// ToggleLike and ToggleDislike only touch assistant messages and report
	// whether anything changed.
	ToggleLike(id string) bool
	ToggleDislike(id string) bool

	Messages() []Message
	Message(id string) (Message, bool)
	IsPending() bool
}
