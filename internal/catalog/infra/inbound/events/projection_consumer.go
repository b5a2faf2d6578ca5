package events

import (
	"context"
	"time"

	"github.com/davicafu/catalogsync/internal/catalog/application"
	"github.com/davicafu/catalogsync/internal/catalog/domain"
	sharedEvents "github.com/davicafu/catalogsync/internal/shared/infra/events"
	"go.uber.org/zap"
)

const defaultHandlerTimeout = 10 * time.Second

// ProjectionConsumer conecta los tags de eventos del catálogo con el proyector.
type ProjectionConsumer struct {
	projector *application.Projector
	timeout   time.Duration
	log       *zap.Logger
}

func NewProjectionConsumer(projector *application.Projector, timeout time.Duration, log *zap.Logger) *ProjectionConsumer {
	if timeout <= 0 {
		timeout = defaultHandlerTimeout
	}
	return &ProjectionConsumer{projector: projector, timeout: timeout, log: log}
}

// Register asocia cada tag a su handler tipado.
func (c *ProjectionConsumer) Register(d *sharedEvents.Dispatcher) error {
	bindings := map[string]sharedEvents.Handler{
		domain.GameCreatedType: sharedEvents.HandlerFor(func(ctx context.Context, evt domain.GameCreated) error {
			return c.withTimeout(ctx, domain.GameCreatedType, evt.PartitionKey(), func(ctx context.Context) error {
				return c.projector.HandleGameCreated(ctx, evt)
			})
		}),
		domain.GameUpdatedType: sharedEvents.HandlerFor(func(ctx context.Context, evt domain.GameUpdated) error {
			return c.withTimeout(ctx, domain.GameUpdatedType, evt.PartitionKey(), func(ctx context.Context) error {
				return c.projector.HandleGameUpdated(ctx, evt)
			})
		}),
		domain.PromotionCreatedType: sharedEvents.HandlerFor(func(ctx context.Context, evt domain.PromotionCreated) error {
			return c.withTimeout(ctx, domain.PromotionCreatedType, evt.PartitionKey(), func(ctx context.Context) error {
				return c.projector.HandlePromotionCreated(ctx, evt)
			})
		}),
		domain.PromotionUpdatedType: sharedEvents.HandlerFor(func(ctx context.Context, evt domain.PromotionUpdated) error {
			return c.withTimeout(ctx, domain.PromotionUpdatedType, evt.PartitionKey(), func(ctx context.Context) error {
				return c.projector.HandlePromotionUpdated(ctx, evt)
			})
		}),
	}

	for eventType, h := range bindings {
		if err := d.On(eventType, h); err != nil {
			return err
		}
	}
	return nil
}

func (c *ProjectionConsumer) withTimeout(ctx context.Context, eventType, key string, action func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := action(ctx); err != nil {
		c.log.Warn("Failed to project event",
			zap.String("event_type", eventType),
			zap.String("key", key),
			zap.Error(err),
		)
		return err
	}

	c.log.Debug("event projected", zap.String("event_type", eventType), zap.String("key", key))
	return nil
}
