package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"studybuddy-backend/internal/models"
)

// RoomChannel is the pub/sub channel carrying events for one room.
func RoomChannel(roomID uuid.UUID) string {
	return "room_events:" + roomID.String()
}

// Feed delivers payloads published on channel until ctx is cancelled, then closes the channel.
type Feed interface {
	Subscribe(ctx context.Context, channel string) (<-chan string, error)
}

type RedisFeed struct {
	client *redis.Client
}

func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client}
}

func (f *RedisFeed) Subscribe(ctx context.Context, channel string) (<-chan string, error) {
	pubsub := f.client.Subscribe(ctx, channel)
	// Wait for the subscription confirmation so errors surface here.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes room events as JSON on RoomChannel.
type RedisPublisher struct {
	client publisher
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) PublishRoomEvent(ctx context.Context, event models.RoomEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal room event: %w", err)
	}
	if err := p.client.Publish(ctx, RoomChannel(event.RoomID), data).Err(); err != nil {
		return fmt.Errorf("publish room event: %w", err)
	}
	return nil
}
