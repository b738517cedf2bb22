package http

import (
	"github.com/nats-io/nats.go"

	"github.com/JettChenT/ek-geo/internal/adapters/postgres"
	"github.com/JettChenT/ek-geo/internal/adapters/valkey"
	"github.com/JettChenT/ek-geo/internal/core/domain"
	"github.com/JettChenT/ek-geo/internal/core/ports"
	"github.com/JettChenT/ek-geo/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sampling *usecases.SamplingService
	// Renderers by ?format= value; the first entry of RenderFormats is the default.
	Renderers map[string]ports.Renderer
	// DefaultInterval applies when a request omits interval_km.
	DefaultInterval domain.Distance
	Events          *EventLog
	NATS            *nats.Conn
	DB              *postgres.DB
	Cache           *valkey.Cache
}

// RenderFormats lists the ?format= values in preference order.
var RenderFormats = []string{"geojson", "html"}
