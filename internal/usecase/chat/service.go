package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"nutribot/internal/domain"
)

const (
	// FallbackMessage replaces the advice whenever a round-trip fails.
	FallbackMessage = "Sorry, I'm having trouble connecting. Please try again."

	DefaultWelcomeMessage = "Hello! I'm NutriBot, your personal AI dietitian. I'm here to help you with meal planning, " +
		"nutrition advice, dietary recommendations, and achieving your health goals. How can I assist you today?"
)

// QuickSuggestions are offered while the transcript only holds the welcome message.
var QuickSuggestions = []string{
	"Plan a healthy meal for today",
	"Calculate my daily calorie needs",
	"Suggest protein-rich breakfast",
	"Help with weight loss diet",
}

type Option func(*Service)

func WithNotifier(n domain.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		s.newID = newID
	}
}

// Service is the session controller. It owns the single-flight round-trip
// to the advisor and is the only mutation surface of the store.
type Service struct {
	store    domain.ConversationStore
	advisor  domain.Advisor
	notifier domain.Notifier
	now      func() time.Time
	newID    func() string

	// mu makes the pending check and the pending acquisition one step.
	mu       sync.Mutex
	inflight sync.WaitGroup
}

func NewService(store domain.ConversationStore, advisor domain.Advisor, opts ...Option) *Service {
	s := &Service{
		store:    store,
		advisor:  advisor,
		notifier: domain.NopNotifier{},
		now:      time.Now,
		newID:    NewMessageID,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewMessageID returns a time-ordered unique identifier.
func NewMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Welcome builds the assistant greeting a new session is seeded with.
func Welcome(content string, at time.Time) domain.Message {
	if strings.TrimSpace(content) == "" {
		content = DefaultWelcomeMessage
	}
	return domain.Message{
		ID:        NewMessageID(),
		Role:      domain.RoleAssistant,
		Content:   content,
		Timestamp: at,
	}
}

// Submit appends text as a user message and starts one round-trip to the
// advisor in the background. Blank input and submissions while a
// round-trip is outstanding are ignored; the return value reports whether
// the text was accepted. The round-trip does not inherit ctx cancellation.
func (s *Service) Submit(ctx context.Context, text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	s.mu.Lock()
	if s.store.IsPending() {
		s.mu.Unlock()
		log.Debug().Msg("submit ignored, round-trip already pending")
		return false
	}
	userMessage := s.newMessage(domain.RoleUser, text)
	s.store.Append(userMessage)
	s.store.SetPending(true)
	s.inflight.Add(1)
	s.mu.Unlock()

	s.notifier.Notify(domain.Event{Type: domain.EventMessageAppended, Message: &userMessage})
	s.notifier.Notify(domain.Event{Type: domain.EventPendingChanged, Pending: true})

	go s.roundTrip(context.WithoutCancel(ctx), userMessage)
	return true
}

func (s *Service) roundTrip(ctx context.Context, userMessage domain.Message) {
	defer s.inflight.Done()
	defer s.release()

	start := s.now()
	reply := s.advise(ctx, userMessage.Content)

	assistantMessage := s.newMessage(domain.RoleAssistant, reply)
	s.store.Append(assistantMessage)

	log.Debug().
		Str("user_message_id", userMessage.ID).
		Str("assistant_message_id", assistantMessage.ID).
		Dur("elapsed", s.now().Sub(start)).
		Msg("round-trip settled")
	s.notifier.Notify(domain.Event{Type: domain.EventMessageAppended, Message: &assistantMessage})
}

// advise turns every failure of the advisor, panics included, into the
// fallback reply.
func (s *Service) advise(ctx context.Context, query string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Msg("advisor panicked")
			reply = FallbackMessage
		}
	}()

	resp, err := s.advisor.Advise(ctx, query)
	if err != nil {
		log.Warn().Err(err).Msg("advice request failed")
		return FallbackMessage
	}
	return resp
}

func (s *Service) release() {
	s.mu.Lock()
	s.store.SetPending(false)
	s.mu.Unlock()
	s.notifier.Notify(domain.Event{Type: domain.EventPendingChanged, Pending: false})
}

func (s *Service) Like(id string) bool {
	return s.feedback(id, s.store.ToggleLike)
}

func (s *Service) Dislike(id string) bool {
	return s.feedback(id, s.store.ToggleDislike)
}

func (s *Service) feedback(id string, toggle func(string) bool) bool {
	if !toggle(id) {
		return false
	}
	if m, ok := s.store.Message(id); ok {
		s.notifier.Notify(domain.Event{Type: domain.EventFeedbackChanged, Message: &m})
	}
	return true
}

func (s *Service) Messages() []domain.Message {
	return s.store.Messages()
}

func (s *Service) Message(id string) (domain.Message, bool) {
	return s.store.Message(id)
}

func (s *Service) IsPending() bool {
	return s.store.IsPending()
}

// ShowSuggestions reports whether the transcript still only holds the
// welcome message.
func (s *Service) ShowSuggestions() bool {
	return len(s.store.Messages()) == 1
}

// Wait blocks until every accepted round-trip has settled.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// WaitContext is Wait bounded by ctx. Round-trips keep running after ctx
// is done; only the caller stops waiting.
func (s *Service) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) newMessage(role, content string) domain.Message {
	return domain.Message{
		ID:        s.newID(),
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	}
}
