package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/catalogsync/internal/shared/domain/events"
	sharedBus "github.com/davicafu/catalogsync/internal/shared/infra/platform/bus"
	"github.com/davicafu/catalogsync/internal/shared/infra/utils"
)

const (
	streamFieldType     = "type"
	streamFieldEnvelope = "envelope"
	redisBlockTimeout   = 1000 // milliseconds
)

// StreamPublisher publica en Redis Streams con XADD; el destino es la clave del stream.
type StreamPublisher struct {
	client rueidis.Client
	log    *zap.Logger
}

func NewStreamPublisher(client rueidis.Client, log *zap.Logger) *StreamPublisher {
	return &StreamPublisher{client: client, log: log}
}

func (p *StreamPublisher) Publish(ctx context.Context, destination string, env sharedEvents.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	cmd := p.client.B().Xadd().Key(destination).Id("*").
		FieldValue().FieldValue(streamFieldType, env.Type).
		FieldValue(streamFieldEnvelope, string(data)).
		Build()

	if err := p.client.Do(ctx, cmd).Error(); err != nil {
		p.log.Error("Error publishing to Redis stream", zap.String("stream", destination), zap.Error(err))
		return err
	}
	return nil
}

// StreamConsumer lee un stream dentro de un consumer group, con un único worker.
// El XACK se envía solo cuando el handler acepta el mensaje.
type StreamConsumer struct {
	client     rueidis.Client
	stream     string
	group      string
	consumer   string
	handler    sharedBus.Handler
	retryDelay time.Duration
	ack        func(ctx context.Context, id string) error
	log        *zap.Logger
}

func NewStreamConsumer(client rueidis.Client, stream, group, consumer string, handler sharedBus.Handler, log *zap.Logger) *StreamConsumer {
	c := &StreamConsumer{
		client:     client,
		stream:     stream,
		group:      group,
		consumer:   consumer,
		handler:    handler,
		retryDelay: time.Second,
		log:        log,
	}
	c.ack = c.xack
	return c
}

func (c *StreamConsumer) ensureGroup(ctx context.Context) error {
	cmd := c.client.B().XgroupCreate().Key(c.stream).Group(c.group).Id("0").Mkstream().Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", c.group, err)
	}
	return nil
}

// Start bloquea hasta que ctx se cancele. Primero reprocesa los mensajes que este
// consumidor dejó sin confirmar (id "0") y después lee los nuevos (">").
func (c *StreamConsumer) Start(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return err
	}

	c.log.Info("🎧 Iniciando consumidor de Redis Streams",
		zap.String("stream", c.stream),
		zap.String("group", c.group),
		zap.String("consumer", c.consumer),
	)

	cursor := "0"
	for {
		if ctx.Err() != nil {
			c.log.Info("Consumidor de Redis Streams detenido.", zap.String("stream", c.stream))
			return nil
		}

		entries, err := c.read(ctx, cursor)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.log.Error("error consuming messages", zap.Error(err))
			_ = utils.Sleep(ctx, c.retryDelay)
			continue
		}
		if len(entries) == 0 && cursor == "0" {
			cursor = ">"
			continue
		}

		if !c.process(ctx, entries) {
			return nil
		}
	}
}

// process entrega y confirma cada entrada. Tras un XACK fallido espera retryDelay
// antes de seguir; la entrada queda pendiente y se relee en el próximo arranque.
// Devuelve false si ctx se canceló.
func (c *StreamConsumer) process(ctx context.Context, entries []rueidis.XRangeEntry) bool {
	for _, entry := range entries {
		if !c.deliver(ctx, entry) {
			return false
		}
		if err := c.ack(ctx, entry.ID); err != nil {
			c.log.Error("failed to ACK message", zap.String("entry_id", entry.ID), zap.Error(err))
			if utils.Sleep(ctx, c.retryDelay) != nil {
				return false
			}
		}
	}
	return true
}

func (c *StreamConsumer) read(ctx context.Context, cursor string) ([]rueidis.XRangeEntry, error) {
	cmd := c.client.B().Xreadgroup().Group(c.group, c.consumer).
		Count(1).
		Block(redisBlockTimeout).
		Streams().
		Key(c.stream).
		Id(cursor).
		Build()

	streams, err := c.client.Do(ctx, cmd).AsXRead()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil // timeout
		}
		return nil, err
	}
	return streams[c.stream], nil
}

func (c *StreamConsumer) deliver(ctx context.Context, entry rueidis.XRangeEntry) bool {
	env := decodeStreamEnvelope(entry)
	for {
		err := c.handler.Handle(ctx, env)
		if err == nil {
			return true
		}
		c.log.Warn("redelivery pendiente", zap.String("entry_id", entry.ID), zap.Error(err))
		if utils.Sleep(ctx, c.retryDelay) != nil {
			return false
		}
	}
}

func (c *StreamConsumer) xack(ctx context.Context, id string) error {
	cmd := c.client.B().Xack().Key(c.stream).Group(c.group).Id(id).Build()
	return c.client.Do(ctx, cmd).Error()
}

func decodeStreamEnvelope(entry rueidis.XRangeEntry) sharedEvents.Envelope {
	raw := entry.FieldValues[streamFieldEnvelope]

	var env sharedEvents.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err == nil && env.Type != "" {
		return env
	}
	return sharedEvents.Envelope{Type: entry.FieldValues[streamFieldType], Payload: json.RawMessage(raw)}
}

var (
	_ sharedBus.Publisher = (*StreamPublisher)(nil)
)
