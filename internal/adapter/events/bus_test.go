package events

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutribot/internal/domain"
)

func receive(t *testing.T, ch <-chan domain.Event) domain.Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "event channel closed")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session event")
	}
	return domain.Event{}
}

func TestBusDeliversEvents(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	msg := domain.Message{ID: "m1", Role: domain.RoleAssistant, Content: "Eat more fiber", Liked: true}
	bus.Notify(domain.Event{Type: domain.EventFeedbackChanged, Message: &msg})

	e := receive(t, ch)
	assert.Equal(t, domain.EventFeedbackChanged, e.Type)
	require.NotNil(t, e.Message)
	assert.Equal(t, "m1", e.Message.ID)
	assert.True(t, e.Message.Liked)
}

func TestBusFansOutToAllSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	b, err := bus.Subscribe(ctx)
	require.NoError(t, err)

	bus.Notify(domain.Event{Type: domain.EventPendingChanged, Pending: true})

	assert.True(t, receive(t, a).Pending)
	assert.True(t, receive(t, b).Pending)
}

func TestNotifyWithoutSubscribersDoesNotBlock(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	defer func() { _ = bus.Close() }()

	done := make(chan struct{})
	go func() {
		bus.Notify(domain.Event{Type: domain.EventPendingChanged})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("notify blocked")
	}
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	defer func() { _ = bus.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed")
	}
}
