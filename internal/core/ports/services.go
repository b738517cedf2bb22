package ports

import (
	"context"

	"github.com/JettChenT/ek-geo/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishSamplingCompleted(ctx context.Context, event *domain.SamplingEvent) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeSamplingCompleted(ctx context.Context, handler func(ctx context.Context, event *domain.SamplingEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// RenderRecord is one point handed to a Renderer.
type RenderRecord struct {
	Lat float64        `json:"lat"`
	Lon float64        `json:"lng"`
	Aux map[string]any `json:"aux,omitempty"`
}

// Renderer turns a sequence of records into a visual artifact.
type Renderer interface {
	// Render returns the artifact bytes and their content type.
	Render(ctx context.Context, records []RenderRecord, radius float64) ([]byte, string, error)
}
