package memory

import (
	"context"
	"sync"

	"github.com/davicafu/catalogsync/internal/catalog/domain"
)

// EventStore guarda los hechos por stream, solo anexando.
type EventStore struct {
	mu      sync.RWMutex
	streams map[string][]domain.DomainFact
}

func NewEventStore() *EventStore {
	return &EventStore{streams: make(map[string][]domain.DomainFact)}
}

func (s *EventStore) Append(_ context.Context, fact domain.DomainFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[fact.StreamName] = append(s.streams[fact.StreamName], fact)
	return nil
}

func (s *EventStore) ReadStream(_ context.Context, stream string) ([]domain.DomainFact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	facts := s.streams[stream]
	out := make([]domain.DomainFact, len(facts))
	copy(out, facts)
	return out, nil
}

var _ domain.EventStore = (*EventStore)(nil)
