package relayer

import (
	"context"
	"time"

	sharedDomain "github.com/davicafu/catalogsync/internal/shared/domain"
	sharedEvents "github.com/davicafu/catalogsync/internal/shared/domain/events"
	"github.com/davicafu/catalogsync/internal/shared/infra/health"
	sharedBus "github.com/davicafu/catalogsync/internal/shared/infra/platform/bus"
	"go.uber.org/zap"
)

const defaultMessageTimeout = 10 * time.Second

// Worker drena la tabla outbox hacia el transporte. Entrega al menos una vez:
// un mensaje solo se marca como procesado después de publicarse.
type Worker struct {
	repo           sharedDomain.OutboxRepository
	publisher      sharedBus.Publisher
	registry       *sharedEvents.Registry
	destination    string
	interval       time.Duration
	batchSize      int
	messageTimeout time.Duration
	now            func() time.Time
	health         *health.Status
	log            *zap.Logger
}

type Option func(*Worker)

func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

// WithMessageTimeout acota cuánto puede tardar un mensaje en curso tras una cancelación.
func WithMessageTimeout(d time.Duration) Option {
	return func(w *Worker) { w.messageTimeout = d }
}

func WithHealth(s *health.Status) Option {
	return func(w *Worker) { w.health = s }
}

func NewOutboxWorker(
	repo sharedDomain.OutboxRepository,
	publisher sharedBus.Publisher,
	registry *sharedEvents.Registry,
	destination string,
	interval time.Duration,
	batchSize int,
	log *zap.Logger,
	opts ...Option,
) *Worker {
	w := &Worker{
		repo:           repo,
		publisher:      publisher,
		registry:       registry,
		destination:    destination,
		interval:       interval,
		batchSize:      batchSize,
		messageTimeout: defaultMessageTimeout,
		now:            func() time.Time { return time.Now().UTC() },
		health:         health.NewStatus("outbox-publisher"),
		log:            log,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// BatchResult resume un ciclo de polling.
type BatchResult struct {
	Fetched    int
	Published  int
	Skipped    int // tipo desconocido o payload inválido; siguen pendientes
	Failed     int // fallo de publicación; siguen pendientes
	MarkFailed int // publicados pero sin marcar; se volverán a entregar
	Deferred   int // misma clave que un mensaje fallido en este ciclo; esperan al siguiente
}

// retained cuenta los mensajes leídos en el ciclo que siguen pendientes.
func (r BatchResult) retained() int {
	return r.Skipped + r.Failed + r.MarkFailed + r.Deferred
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeMarkFailed
	outcomeDeferred
)

func (w *Worker) Health() *health.Status {
	return w.health
}

// Start inicia el bucle de polling del worker. Bloquea hasta que ctx se cancele.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("🚀 Outbox worker iniciado",
		zap.Duration("interval", w.interval),
		zap.String("destination", w.destination),
	)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🛑 Outbox worker detenido.")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch publica hasta batchSize mensajes. Los que quedan pendientes
// (ilegibles o fallidos) no bloquean a los posteriores: el ciclo sigue paginando
// por detrás de ellos hasta publicar un lote completo o agotar la tabla.
func (w *Worker) ProcessBatch(ctx context.Context) BatchResult {
	var res BatchResult
	failedKeys := make(map[string]bool)

	for {
		msgs, err := w.repo.FetchPending(ctx, res.retained(), w.batchSize)
		if err != nil {
			w.log.Warn("⚠️ Error al obtener mensajes pendientes", zap.Error(err))
			w.health.RecordFailure(err, w.now())
			return res
		}
		res.Fetched += len(msgs)
		if len(msgs) > 0 {
			w.log.Debug("📬 mensajes pendientes en outbox", zap.Int("count", len(msgs)))
		}

		for _, msg := range msgs {
			// Tras la cancelación no se empieza ningún mensaje nuevo.
			if ctx.Err() != nil {
				w.log.Info("cancelación recibida, se detiene el lote")
				return res
			}

			switch w.publishAndMark(ctx, msg, failedKeys) {
			case outcomePublished:
				res.Published++
			case outcomeSkipped:
				res.Skipped++
			case outcomeFailed:
				res.Failed++
			case outcomeMarkFailed:
				res.MarkFailed++
			case outcomeDeferred:
				res.Deferred++
			}
		}

		if len(msgs) < w.batchSize || res.Published+res.MarkFailed >= w.batchSize {
			break
		}
	}

	if res.Failed == 0 {
		w.health.RecordSuccess(w.now())
	}
	return res
}

// publishAndMark procesa un mensaje. failedKeys guarda las claves de partición
// con un fallo de publicación en este ciclo: sus mensajes posteriores esperan
// para no adelantarse al fallido.
func (w *Worker) publishAndMark(ctx context.Context, msg sharedDomain.OutboxMessage, failedKeys map[string]bool) outcome {
	log := w.log.With(zap.String("message_id", msg.ID.String()), zap.String("event_type", msg.Type))

	// 1. El registro resuelve el tipo y valida el payload antes de publicar nada
	evt, err := w.registry.Decode(msg.Type, msg.Payload)
	if err != nil {
		log.Error("No se pudo decodificar el mensaje; queda pendiente", zap.Error(err))
		return outcomeSkipped
	}

	env := sharedEvents.Envelope{
		ID:         msg.ID,
		Type:       msg.Type,
		OccurredOn: msg.OccurredOn,
		Payload:    msg.Payload,
	}
	if keyer, ok := evt.(sharedBus.Keyer); ok {
		env.Key = keyer.PartitionKey()
	}
	if env.Key != "" && failedKeys[env.Key] {
		log.Debug("mensaje aplazado tras un fallo previo de la misma clave", zap.String("key", env.Key))
		return outcomeDeferred
	}

	// El mensaje en curso termina aunque se cancele ctx.
	msgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.messageTimeout)
	defer cancel()

	// 2. Publicar
	if err := w.publisher.Publish(msgCtx, w.destination, env); err != nil {
		log.Warn("⚠️ No se pudo publicar mensaje", zap.Error(err))
		w.health.RecordFailure(err, w.now())
		if env.Key != "" {
			failedKeys[env.Key] = true
		}
		return outcomeFailed // No lo marcamos como procesado para que se reintente
	}

	// 3. Marcar como procesado
	if err := w.repo.MarkProcessed(msgCtx, msg.ID, w.now()); err != nil {
		log.Warn("⚠️ Publicado pero no marcado; se entregará de nuevo", zap.Error(err))
		return outcomeMarkFailed
	}

	log.Debug("✅ Mensaje publicado y marcado")
	return outcomePublished
}
