package mocks

import (
	"context"
	"time"

	sharedDomain "github.com/davicafu/catalogsync/internal/shared/domain"
	sharedEvents "github.com/davicafu/catalogsync/internal/shared/domain/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockOutboxRepository simula la tabla outbox
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Append(ctx context.Context, msg sharedDomain.OutboxMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockOutboxRepository) FetchPending(ctx context.Context, offset, limit int) ([]sharedDomain.OutboxMessage, error) {
	args := m.Called(ctx, offset, limit)
	msgs, _ := args.Get(0).([]sharedDomain.OutboxMessage)
	return msgs, args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockOutboxRepository) CountPending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// MockPublisher simula un publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, destination string, env sharedEvents.Envelope) error {
	args := m.Called(ctx, destination, env)
	return args.Error(0)
}
