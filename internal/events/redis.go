// Package events publishes content lifecycle events to a Redis stream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultMaxLen = 10000

// Event describes one successful state change of a content item.
type Event struct {
	StreamID       string    `json:"streamId,omitempty"`
	ItemID         string    `json:"itemId"`
	Kind           string    `json:"kind"`
	OrganizationID string    `json:"organizationId,omitempty"`
	Action         string    `json:"action"`
	ActorID        string    `json:"actorId"`
	Status         string    `json:"status"`
	Version        int64     `json:"version"`
	Note           string    `json:"note,omitempty"`
	At             time.Time `json:"at"`
}

// RedisPublisher appends events to a capped Redis stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisPublisher(redisURL, stream string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisPublisherWithClient(client, stream), nil
}

func NewRedisPublisherWithClient(client *redis.Client, stream string) *RedisPublisher {
	return &RedisPublisher{client: client, stream: stream, maxLen: defaultMaxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"item_id": event.ItemID,
			"action":  event.Action,
			"data":    string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Recent returns up to count events, newest first.
func (p *RedisPublisher) Recent(ctx context.Context, count int64) ([]Event, error) {
	if count <= 0 {
		count = 50
	}
	messages, err := p.client.XRevRangeN(ctx, p.stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	events := make([]Event, 0, len(messages))
	for _, msg := range messages {
		raw, ok := msg.Values["data"].(string)
		if !ok {
			continue
		}
		var event Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", msg.ID, err)
		}
		event.StreamID = msg.ID
		events = append(events, event)
	}
	return events, nil
}

func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
