package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMalformedPayload = errors.New("malformed event payload")
	ErrDuplicateType    = errors.New("event type already registered")
)

// Envelope es el mensaje que viaja por el transporte.
type Envelope struct {
	ID         uuid.UUID       `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key,omitempty"` // clave de partición del agregado
	OccurredOn time.Time       `json:"occurredOn"`
	Payload    json.RawMessage `json:"payload"`
}

// Validator lo implementan los eventos que pueden comprobar su propio contenido.
type Validator interface {
	Validate() error
}

// Decoder convierte un payload crudo en un evento tipado.
type Decoder func(payload []byte) (any, error)

// Registry mapea tags de tipo a decodificadores. Se construye una vez al arrancar
// el proceso y después solo se lee.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

func (r *Registry) Register(eventType string, dec Decoder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.decoders[eventType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, eventType)
	}
	r.decoders[eventType] = dec
	return nil
}

// RegisterJSON registra T como el tipo concreto del tag. El evento decodificado
// se entrega como valor T, no como puntero.
func RegisterJSON[T any](r *Registry, eventType string) error {
	return r.Register(eventType, func(payload []byte) (any, error) {
		var evt T
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, err
		}
		if v, ok := any(evt).(Validator); ok {
			if err := v.Validate(); err != nil {
				return nil, err
			}
		}
		return evt, nil
	})
}

func (r *Registry) Known(eventType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.decoders[eventType]
	return ok
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.decoders))
	for t := range r.decoders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (r *Registry) Decode(eventType string, payload []byte) (any, error) {
	r.mu.RLock()
	dec, ok := r.decoders[eventType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}

	evt, err := dec(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, eventType, err)
	}
	return evt, nil
}
