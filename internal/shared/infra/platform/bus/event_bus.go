package bus

import (
	"context"

	sharedEvents "github.com/davicafu/catalogsync/internal/shared/domain/events"
)

// Keyer lo implementan los eventos que deben conservar el orden por agregado.
type Keyer interface {
	PartitionKey() string
}

// La semántica de topic/stream y el formato en el cable lo deciden los adapters.
// Publish solo devuelve nil cuando el transporte aceptó el mensaje de forma durable.
type Publisher interface {
	Publish(ctx context.Context, destination string, env sharedEvents.Envelope) error
}

type PublisherFunc func(ctx context.Context, destination string, env sharedEvents.Envelope) error

func (f PublisherFunc) Publish(ctx context.Context, destination string, env sharedEvents.Envelope) error {
	return f(ctx, destination, env)
}

// Handler procesa un envelope entregado por un consumidor. Un error pide redelivery.
type Handler interface {
	Handle(ctx context.Context, env sharedEvents.Envelope) error
}

type HandlerFunc func(ctx context.Context, env sharedEvents.Envelope) error

func (f HandlerFunc) Handle(ctx context.Context, env sharedEvents.Envelope) error {
	return f(ctx, env)
}
