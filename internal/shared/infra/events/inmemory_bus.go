package events

import (
	"context"
	"sync"
	"time"

	sharedEvents "github.com/davicafu/catalogsync/internal/shared/domain/events"
	sharedBus "github.com/davicafu/catalogsync/internal/shared/infra/platform/bus"
	"github.com/davicafu/catalogsync/internal/shared/infra/utils"
	"go.uber.org/zap"
)

// InMemoryBus es un transporte en proceso con una cola por destino.
// Publish nunca descarta: espera hueco en la cola o la cancelación del contexto.
type InMemoryBus struct {
	mu         sync.Mutex
	queues     map[string]chan sharedEvents.Envelope
	bufferSize int
	retryDelay time.Duration
	log        *zap.Logger
}

func NewInMemoryBus(bufferSize int, log *zap.Logger) *InMemoryBus {
	return &InMemoryBus{
		queues:     make(map[string]chan sharedEvents.Envelope),
		bufferSize: bufferSize,
		retryDelay: time.Second,
		log:        log,
	}
}

func (b *InMemoryBus) queue(destination string) chan sharedEvents.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[destination]
	if !ok {
		q = make(chan sharedEvents.Envelope, b.bufferSize)
		b.queues[destination] = q
	}
	return q
}

func (b *InMemoryBus) Publish(ctx context.Context, destination string, env sharedEvents.Envelope) error {
	select {
	case b.queue(destination) <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending devuelve los mensajes encolados aún no consumidos.
func (b *InMemoryBus) Pending(destination string) int {
	return len(b.queue(destination))
}

// Receive saca el siguiente mensaje del destino.
func (b *InMemoryBus) Receive(ctx context.Context, destination string) (sharedEvents.Envelope, error) {
	select {
	case env := <-b.queue(destination):
		return env, nil
	case <-ctx.Done():
		return sharedEvents.Envelope{}, ctx.Err()
	}
}

// Consume procesa el destino con un único worker hasta que ctx se cancele.
// Si el handler devuelve error, el mismo mensaje se reintenta antes de seguir.
func (b *InMemoryBus) Consume(ctx context.Context, destination string, h sharedBus.Handler) {
	b.log.Info("🎧 Iniciando listener en memoria", zap.String("destination", destination))

	for {
		env, err := b.Receive(ctx, destination)
		if err != nil {
			b.log.Info("Listener en memoria detenido.", zap.String("destination", destination))
			return
		}

		for {
			err := h.Handle(ctx, env)
			if err == nil {
				break
			}
			b.log.Warn("redelivery pendiente", zap.String("message_id", env.ID.String()), zap.Error(err))
			if utils.Sleep(ctx, b.retryDelay) != nil {
				return
			}
		}
	}
}

var _ sharedBus.Publisher = (*InMemoryBus)(nil)
