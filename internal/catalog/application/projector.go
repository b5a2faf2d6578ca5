package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/davicafu/catalogsync/internal/catalog/domain"
	"go.uber.org/zap"
)

// Projector mantiene las proyecciones derivadas (documentos, índice de búsqueda
// y hechos de auditoría). Todas sus operaciones se pueden repetir sin efectos extra.
type Projector struct {
	games      domain.GameProjectionStore
	promotions domain.PromotionProjectionStore
	search     domain.SearchIndex
	facts      domain.EventStore
	now        func() time.Time
	log        *zap.Logger
}

type ProjectorOption func(*Projector)

func WithProjectorClock(now func() time.Time) ProjectorOption {
	return func(p *Projector) { p.now = now }
}

// NewProjector crea el proyector. facts puede ser nil si no hay event store.
func NewProjector(
	games domain.GameProjectionStore,
	promotions domain.PromotionProjectionStore,
	search domain.SearchIndex,
	facts domain.EventStore,
	log *zap.Logger,
	opts ...ProjectorOption,
) *Projector {
	p := &Projector{
		games:      games,
		promotions: promotions,
		search:     search,
		facts:      facts,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// UpsertGame recalcula el documento del juego, lo reemplaza y lo reindexa.
func (p *Projector) UpsertGame(ctx context.Context, s domain.GameSnapshot) (domain.GameDocument, error) {
	doc := domain.NewGameDocument(s, p.now())

	if _, err := p.games.Upsert(ctx, doc); err != nil {
		return domain.GameDocument{}, fmt.Errorf("upsert game document %d: %w", s.GameID, err)
	}
	if err := p.index(ctx, doc); err != nil {
		return domain.GameDocument{}, err
	}
	return doc, nil
}

func (p *Projector) UpsertPromotion(ctx context.Context, s domain.PromotionSnapshot) error {
	if _, err := p.promotions.Upsert(ctx, domain.NewPromotionDocument(s, p.now())); err != nil {
		return fmt.Errorf("upsert promotion document %d: %w", s.PromotionID, err)
	}
	return nil
}

func (p *Projector) HandleGameCreated(ctx context.Context, evt domain.GameCreated) error {
	if _, err := p.UpsertGame(ctx, evt.GameSnapshot); err != nil {
		return err
	}
	p.appendFact(ctx, domain.GameStream(evt.GameID), domain.FactGameCreated, evt.GameID, evt)
	return nil
}

func (p *Projector) HandleGameUpdated(ctx context.Context, evt domain.GameUpdated) error {
	if _, err := p.UpsertGame(ctx, evt.GameSnapshot); err != nil {
		return err
	}
	p.appendFact(ctx, domain.GameStream(evt.GameID), domain.FactGameUpdated, evt.GameID, evt)
	return nil
}

func (p *Projector) HandlePromotionCreated(ctx context.Context, evt domain.PromotionCreated) error {
	return p.applyPromotion(ctx, evt.PromotionAssignment, domain.FactPromotionCreated)
}

func (p *Projector) HandlePromotionUpdated(ctx context.Context, evt domain.PromotionUpdated) error {
	return p.applyPromotion(ctx, evt.PromotionAssignment, domain.FactPromotionUpdated)
}

// applyPromotion deja la promoción exactamente en los juegos de a.GameIDs.
// La pasada de retirada termina antes de empezar la de asignación.
func (p *Projector) applyPromotion(ctx context.Context, a domain.PromotionAssignment, factType string) error {
	now := p.now()
	log := p.log.With(zap.Int64("promotion_id", a.PromotionID))

	if err := p.UpsertPromotion(ctx, a.PromotionSnapshot); err != nil {
		return err
	}

	target := make(map[int64]struct{}, len(a.GameIDs))
	for _, id := range a.GameIDs {
		target[id] = struct{}{}
	}
	touched := make(map[int64]struct{})

	// 1. Retirada
	holders, err := p.games.FindByPromotion(ctx, a.PromotionID)
	if err != nil {
		return fmt.Errorf("find games holding promotion %d: %w", a.PromotionID, err)
	}
	for _, doc := range holders {
		if _, keep := target[doc.ID]; keep {
			continue
		}
		if _, err := p.games.Upsert(ctx, doc.WithPromotion(nil, now)); err != nil {
			return fmt.Errorf("remove promotion %d from game %d: %w", a.PromotionID, doc.ID, err)
		}
		touched[doc.ID] = struct{}{}
	}

	// 2. Asignación
	snap := a.PromotionSnapshot
	for _, id := range a.GameIDs {
		doc, err := p.games.Get(ctx, id)
		if errors.Is(err, domain.ErrGameNotFound) {
			// aún no proyectado; la reconciliación lo cubrirá
			log.Warn("Juego sin documento, se omite la asignación", zap.Int64("game_id", id))
			continue
		}
		if err != nil {
			return fmt.Errorf("load game document %d: %w", id, err)
		}
		if _, err := p.games.Upsert(ctx, doc.WithPromotion(&snap, now)); err != nil {
			return fmt.Errorf("assign promotion %d to game %d: %w", a.PromotionID, id, err)
		}
		touched[id] = struct{}{}
	}

	// 3. Reindexar la unión desde los documentos
	ids := make([]int64, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		doc, err := p.games.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("reload game document %d: %w", id, err)
		}
		if err := p.index(ctx, doc); err != nil {
			return err
		}
	}

	log.Debug("promotion projected", zap.Int("games_touched", len(ids)))
	p.appendFact(ctx, domain.PromotionStream(a.PromotionID), factType, a.PromotionID, a)
	return nil
}

func (p *Projector) index(ctx context.Context, doc domain.GameDocument) error {
	if err := p.search.Index(ctx, domain.NewSearchDocument(doc, p.now())); err != nil {
		return fmt.Errorf("index game %d: %w", doc.ID, err)
	}
	return nil
}

// appendFact es best-effort: un fallo del event store nunca hace fallar al handler.
func (p *Projector) appendFact(ctx context.Context, stream, factType string, aggregateID int64, data any) {
	if p.facts == nil {
		return
	}

	fact, err := domain.NewDomainFact(stream, factType, aggregateID, data, p.now())
	if err == nil {
		err = p.facts.Append(ctx, fact)
	}
	if err != nil {
		p.log.Warn("⚠️ No se pudo guardar el hecho de dominio",
			zap.String("stream", stream),
			zap.String("type", factType),
			zap.Error(err),
		)
	}
}
