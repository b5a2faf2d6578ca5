package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxOutboxTypeLength coincide con el ancho de la columna "type".
const MaxOutboxTypeLength = 100

var (
	ErrNoTransaction         = errors.New("outbox append requires an active transaction")
	ErrOutboxMessageNotFound = errors.New("outbox message not found")
	ErrInvalidOutboxMessage  = errors.New("invalid outbox message")
)

// OutboxMessage es la intención durable de publicar un evento de integración.
// Se escribe en la misma transacción que el cambio de estado que la origina.
type OutboxMessage struct {
	ID          uuid.UUID  `json:"id"`
	Type        string     `json:"type"` // ej. "game.created.v1"
	Payload     []byte     `json:"payload"`
	OccurredOn  time.Time  `json:"occurred_on"`
	ProcessedOn *time.Time `json:"processed_on,omitempty"` // nil mientras esté pendiente
}

// NewOutboxMessage serializa el evento y construye un mensaje pendiente.
func NewOutboxMessage(eventType string, event any, now time.Time) (OutboxMessage, error) {
	if eventType == "" || len(eventType) > MaxOutboxTypeLength {
		return OutboxMessage{}, fmt.Errorf("%w: type %q", ErrInvalidOutboxMessage, eventType)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("%w: marshal payload: %v", ErrInvalidOutboxMessage, err)
	}

	return OutboxMessage{
		ID:         uuid.New(),
		Type:       eventType,
		Payload:    payload,
		OccurredOn: now.UTC(),
	}, nil
}

func (m OutboxMessage) Pending() bool {
	return m.ProcessedOn == nil
}

// OutboxWriter es la parte del contrato que usa el camino de escritura.
type OutboxWriter interface {
	// Append debe ejecutarse dentro de la transacción del llamador (ver Transactor).
	Append(ctx context.Context, msg OutboxMessage) error
}

// OutboxRepository define el contrato completo de la tabla outbox.
type OutboxRepository interface {
	OutboxWriter
	// FetchPending devuelve mensajes sin procesar, más antiguos primero, saltando
	// los offset primeros. El orden es estable (occurred_on, id).
	FetchPending(ctx context.Context, offset, limit int) ([]OutboxMessage, error)
	// MarkProcessed es idempotente sobre un mensaje ya procesado.
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
	CountPending(ctx context.Context) (int, error)
}

// Transactor ejecuta fn dentro de una transacción que viaja en el contexto.
// Si fn devuelve error se hace rollback de todo lo escrito.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
