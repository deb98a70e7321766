package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"nutribot/internal/domain"
)

const Topic = "session"

// Bus fans session events out to in-process subscribers. Publishing never
// waits for subscribers, so delivery order across events is not
// guaranteed; subscribers should treat events as a cue to re-read the
// session.
type Bus struct {
	pubsub *gochannel.GoChannel
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, NewWatermillLogger(logger)),
	}
}

func (b *Bus) Notify(e domain.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		log.Warn().Err(err).Str("type", string(e.Type)).Msg("failed to encode session event")
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := b.pubsub.Publish(Topic, msg); err != nil {
		log.Warn().Err(err).Str("type", string(e.Type)).Msg("failed to publish session event")
	}
}

// Subscribe returns a channel of session events that is closed once ctx is
// done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan domain.Event, error) {
	msgs, err := b.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, errors.Wrap(err, "subscribe to session events")
	}

	out := make(chan domain.Event)
	go func() {
		defer close(out)
		for msg := range msgs {
			var e domain.Event
			err := json.Unmarshal(msg.Payload, &e)
			msg.Ack()
			if err != nil {
				log.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping undecodable session event")
				continue
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.pubsub.Close()
}

var _ domain.Notifier = (*Bus)(nil)
