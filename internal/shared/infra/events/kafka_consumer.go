package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	sharedEvents "github.com/davicafu/catalogsync/internal/shared/domain/events"
	sharedBus "github.com/davicafu/catalogsync/internal/shared/infra/platform/bus"
	"github.com/davicafu/catalogsync/internal/shared/infra/utils"
)

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
}

// KafkaConsumer es el "oído" que escucha en Kafka. Un único worker por topic:
// el offset solo se confirma cuando el handler acepta el mensaje.
type KafkaConsumer struct {
	reader     *kafka.Reader
	handler    sharedBus.Handler
	retryDelay time.Duration
	log        *zap.Logger
}

func NewKafkaConsumer(reader *kafka.Reader, handler sharedBus.Handler, log *zap.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader:     reader,
		handler:    handler,
		retryDelay: time.Second,
		log:        log,
	}
}

// Start bloquea hasta que ctx se cancele.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	topic := c.reader.Config().Topic
	c.log.Info("🎧 Iniciando consumidor de Kafka...",
		zap.String("topic", topic),
		zap.Strings("brokers", c.reader.Config().Brokers),
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("Consumidor de Kafka detenido.", zap.String("topic", topic))
				return nil
			}
			c.log.Error("Error al leer mensaje de Kafka", zap.Error(err))
			if utils.Sleep(ctx, c.retryDelay) != nil {
				return nil
			}
			continue
		}

		env := decodeKafkaEnvelope(msg)
		if !c.deliver(ctx, env) {
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			// sin commit el mensaje vuelve a entregarse; los handlers son idempotentes
			c.log.Warn("No se pudo confirmar el offset", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// deliver reintenta el mismo mensaje hasta que se acepte. Devuelve false si ctx terminó.
func (c *KafkaConsumer) deliver(ctx context.Context, env sharedEvents.Envelope) bool {
	for {
		err := c.handler.Handle(ctx, env)
		if err == nil {
			return true
		}
		c.log.Warn("redelivery pendiente", zap.String("message_id", env.ID.String()), zap.Error(err))
		if utils.Sleep(ctx, c.retryDelay) != nil {
			return false
		}
	}
}

// Un envelope ilegible se entrega con el payload crudo para que el dispatcher lo desvíe.
func decodeKafkaEnvelope(msg kafka.Message) sharedEvents.Envelope {
	var env sharedEvents.Envelope
	if err := json.Unmarshal(msg.Value, &env); err == nil && env.Type != "" {
		return env
	}

	env = sharedEvents.Envelope{Key: string(msg.Key), OccurredOn: msg.Time, Payload: msg.Value}
	for _, h := range msg.Headers {
		if h.Key == eventTypeHeader {
			env.Type = string(h.Value)
		}
	}
	return env
}
