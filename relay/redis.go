package relay

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const Channel = "collabforcause:relay"

type redisFrame struct {
	Origin  string          `json:"origin"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// RedisBridge shares room broadcasts between relay instances over a Redis
// pub/sub channel. Every instance, the publisher included, delivers frames
// to its own sockets from Run.
type RedisBridge struct {
	Client   *redis.Client
	Hub      *Hub
	Channel  string
	Instance string
}

func NewRedisBridge(client *redis.Client, hub *Hub) *RedisBridge {
	return &RedisBridge{
		Client:   client,
		Hub:      hub,
		Channel:  Channel,
		Instance: uuid.NewString(),
	}
}

func (b *RedisBridge) Publish(ctx context.Context, room string, payload []byte) error {
	frame, err := json.Marshal(redisFrame{Origin: b.Instance, Room: room, Payload: payload})
	if err != nil {
		return err
	}
	return b.Client.Publish(ctx, b.Channel, frame).Err()
}

// Run subscribes and delivers until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.Client.Subscribe(ctx, b.Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	log := b.Hub.Logger.WithFields(logrus.Fields{"operation": "relay.RedisBridge", "instance": b.Instance})
	log.Info("relay subscribed to redis")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := b.deliver([]byte(msg.Payload)); err != nil {
				log.WithError(err).Warn("dropping malformed relay frame")
			}
		}
	}
}

// deliver hands one channel payload to the local hub.
func (b *RedisBridge) deliver(raw []byte) (int, error) {
	var frame redisFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return 0, err
	}
	if frame.Room == "" {
		return 0, errors.New("relay frame has no room")
	}
	return b.Hub.Deliver(frame.Room, frame.Payload), nil
}
