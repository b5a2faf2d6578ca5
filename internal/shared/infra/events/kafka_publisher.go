package events

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/segmentio/kafka-go"

	sharedEvents "github.com/davicafu/catalogsync/internal/shared/domain/events"
	sharedBus "github.com/davicafu/catalogsync/internal/shared/infra/platform/bus"
)

const eventTypeHeader = "event-type"

// NewKafkaWriter crea un writer sin topic fijo: el destino va en cada mensaje.
// El balanceo por hash de la clave mantiene el orden por agregado.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(writer *kafka.Writer, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, destination string, env sharedEvents.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: destination,
		Key:   []byte(env.Key),
		Value: data,
		Headers: []kafka.Header{
			{Key: eventTypeHeader, Value: []byte(env.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error("Error publishing to Kafka", zap.String("topic", destination), zap.Error(err))
		return err
	}

	p.log.Debug("Event published successfully", zap.String("topic", destination), zap.String("message_id", env.ID.String()))
	return nil
}

// Verificación estática
var _ sharedBus.Publisher = (*KafkaPublisher)(nil)
