package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"readtrack-backend/internal/models"
)

// ReadingEventsChannel carries session lifecycle events to the admin feed.
const ReadingEventsChannel = "reading_events"

type EventPublisher struct {
	redis *redis.Client
}

func NewEventPublisher(redisClient *redis.Client) *EventPublisher {
	return &EventPublisher{redis: redisClient}
}

func (p *EventPublisher) Publish(ctx context.Context, ev models.ReadingEvent) error {
	data, err := json.Marshal(models.WSMessage{Type: ev.Type, Payload: ev})
	if err != nil {
		return fmt.Errorf("failed to encode reading event: %w", err)
	}
	return p.redis.Publish(ctx, ReadingEventsChannel, string(data)).Err()
}
