package memory

import (
	"sync"

	"nutribot/internal/domain"
)

type Store struct {
	mu       sync.Mutex
	messages []domain.Message
	pending  bool
}

func NewStore(seed ...domain.Message) *Store {
	return &Store{
		messages: append([]domain.Message(nil), seed...),
	}
}

func (s *Store) Append(msg domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *Store) SetPending(pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = pending
}

func (s *Store) IsPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Store) ToggleLike(id string) bool {
	return s.update(id, func(m *domain.Message) {
		m.Liked = !m.Liked
		if m.Liked {
			m.Disliked = false
		}
	})
}

func (s *Store) ToggleDislike(id string) bool {
	return s.update(id, func(m *domain.Message) {
		m.Disliked = !m.Disliked
		if m.Disliked {
			m.Liked = false
		}
	})
}

// update applies fn to the assistant message with the given id.
func (s *Store) update(id string, fn func(m *domain.Message)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.messages {
		if s.messages[i].ID != id {
			continue
		}
		if !s.messages[i].IsAssistant() {
			return false
		}
		fn(&s.messages[i])
		return true
	}
	return false
}

func (s *Store) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...)
}

func (s *Store) Message(id string) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Message{}, false
}

var _ domain.ConversationStore = (*Store)(nil)
