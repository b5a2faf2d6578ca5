package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sharedEvents "github.com/davicafu/catalogsync/internal/shared/domain/events"
	sharedBus "github.com/davicafu/catalogsync/internal/shared/infra/platform/bus"
	"github.com/davicafu/catalogsync/internal/shared/infra/utils"
	"go.uber.org/zap"
)

// DeadLetterType es el tag de los mensajes del canal de fallos.
const DeadLetterType = "dead_letter.v1"

// Handler recibe el evento ya decodificado por el registro.
type Handler func(ctx context.Context, evt any) error

// HandlerFor adapta un handler tipado. Un tipo inesperado es un error de programación
// (registro y handlers desalineados) y se trata como payload inválido.
func HandlerFor[T any](fn func(ctx context.Context, evt T) error) Handler {
	return func(ctx context.Context, evt any) error {
		typed, ok := evt.(T)
		if !ok {
			var want T
			return fmt.Errorf("%w: got %T, want %T", sharedEvents.ErrMalformedPayload, evt, want)
		}
		return fn(ctx, typed)
	}
}

// FailedEnvelope es lo que se publica en el canal de fallos.
type FailedEnvelope struct {
	Original sharedEvents.Envelope `json:"original"`
	Error    string                `json:"error"`
	Attempts int                   `json:"attempts"`
	FailedAt time.Time             `json:"failedAt"`
}

// Dispatcher decodifica cada envelope, invoca su handler con reintentos acotados
// y desvía al canal de fallos lo que no se puede procesar.
type Dispatcher struct {
	registry           *sharedEvents.Registry
	handlers           map[string]Handler
	maxAttempts        int
	backoff            time.Duration
	failures           sharedBus.Publisher
	failureDestination string
	now                func() time.Time
	log                *zap.Logger
}

type DispatcherOption func(*Dispatcher)

func WithMaxAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

func WithBackoff(b time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.backoff = b }
}

func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(
	registry *sharedEvents.Registry,
	failures sharedBus.Publisher,
	failureDestination string,
	log *zap.Logger,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		registry:           registry,
		handlers:           make(map[string]Handler),
		maxAttempts:        3,
		backoff:            500 * time.Millisecond,
		failures:           failures,
		failureDestination: failureDestination,
		now:                func() time.Time { return time.Now().UTC() },
		log:                log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// On asocia un handler a un tag. El tag debe existir en el registro.
func (d *Dispatcher) On(eventType string, h Handler) error {
	if !d.registry.Known(eventType) {
		return fmt.Errorf("%w: %s", sharedEvents.ErrUnknownEventType, eventType)
	}
	if _, exists := d.handlers[eventType]; exists {
		return fmt.Errorf("handler already bound for %s", eventType)
	}
	d.handlers[eventType] = h
	return nil
}

// Handle implementa sharedBus.Handler. Devuelve nil cuando el mensaje puede
// confirmarse (procesado o desviado); un error pide que el transporte lo reentregue.
func (d *Dispatcher) Handle(ctx context.Context, env sharedEvents.Envelope) error {
	log := d.log.With(zap.String("message_id", env.ID.String()), zap.String("event_type", env.Type))

	evt, err := d.registry.Decode(env.Type, env.Payload)
	if err != nil {
		// reintentar no arregla un tipo desconocido ni un payload roto
		log.Error("Mensaje no decodificable, se desvía al canal de fallos", zap.Error(err))
		return d.divert(ctx, env, err, 0)
	}

	h, ok := d.handlers[env.Type]
	if !ok {
		log.Debug("sin handler para el tipo, se confirma")
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if lastErr = h(ctx, evt); lastErr == nil {
			return nil
		}
		log.Warn("⚠️ Handler falló", zap.Int("attempt", attempt), zap.Int("max_attempts", d.maxAttempts), zap.Error(lastErr))

		if attempt < d.maxAttempts {
			if err := utils.Sleep(ctx, d.backoff); err != nil {
				return err
			}
		}
	}

	return d.divert(ctx, env, lastErr, d.maxAttempts)
}

func (d *Dispatcher) divert(ctx context.Context, env sharedEvents.Envelope, cause error, attempts int) error {
	if d.failures == nil {
		return fmt.Errorf("no failure channel configured: %w", cause)
	}

	if !json.Valid(env.Payload) {
		// se conserva el contenido crudo como string JSON
		quoted, _ := json.Marshal(string(env.Payload))
		env.Payload = quoted
	}

	failed := FailedEnvelope{
		Original: env,
		Error:    cause.Error(),
		Attempts: attempts,
		FailedAt: d.now(),
	}
	payload, err := json.Marshal(failed)
	if err != nil {
		return fmt.Errorf("marshal failed envelope: %w", err)
	}

	dead := sharedEvents.Envelope{
		ID:         env.ID,
		Type:       DeadLetterType,
		Key:        env.Key,
		OccurredOn: failed.FailedAt,
		Payload:    payload,
	}
	if err := d.failures.Publish(ctx, d.failureDestination, dead); err != nil {
		d.log.Error("❌ Canal de fallos no disponible, el mensaje se reentregará",
			zap.String("message_id", env.ID.String()), zap.Error(err))
		return fmt.Errorf("publish to %s: %w", d.failureDestination, err)
	}

	d.log.Warn("Mensaje desviado al canal de fallos",
		zap.String("message_id", env.ID.String()),
		zap.String("destination", d.failureDestination),
		zap.Int("attempts", attempts),
	)
	return nil
}

var _ sharedBus.Handler = (*Dispatcher)(nil)
