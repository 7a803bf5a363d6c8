package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"bimsense/internal/models"
)

// EventPublisher dispatches suggestion audit events drained from the
// aggregate. Dispatch is fire-and-forget: the durable store is the system of
// record, events only feed downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, events []models.SuggestionEvent)
}

// suggestionEventChannel is the pub/sub channel prefix; the event type is
// appended, e.g. "bimsense:events:suggestion.approved".
const suggestionEventChannel = "bimsense:events:"

// RedisEventPublisher publishes events on Redis pub/sub channels keyed by
// event type.
type RedisEventPublisher struct {
	client *redis.Client
}

// NewRedisEventPublisher creates a publisher over an existing Redis client.
func NewRedisEventPublisher(client *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{client: client}
}

// Publish sends each event on its type channel. Failures are logged only;
// the triggering operation has already been persisted.
func (p *RedisEventPublisher) Publish(ctx context.Context, events []models.SuggestionEvent) {
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			log.Printf("⚠️ [EVENTS] Failed to serialize event %s: %v", event.ID, err)
			continue
		}
		if err := p.client.Publish(ctx, suggestionEventChannel+event.Type, payload).Err(); err != nil {
			log.Printf("⚠️ [EVENTS] Failed to publish %s event %s: %v", event.Type, event.ID, err)
		}
	}
}

// LogEventPublisher is the fallback publisher when Redis is not configured:
// events go to the process log.
type LogEventPublisher struct{}

// Publish logs each event.
func (p *LogEventPublisher) Publish(_ context.Context, events []models.SuggestionEvent) {
	for _, event := range events {
		log.Printf("📣 [EVENTS] %s suggestion=%s element=%s actor=%s correlation=%s",
			event.Type, event.SuggestionID, event.ElementID, event.Actor, event.CorrelationID)
	}
}
