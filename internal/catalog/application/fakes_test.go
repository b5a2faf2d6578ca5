package application

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/davicafu/catalogsync/internal/catalog/domain"
	"github.com/davicafu/catalogsync/internal/catalog/infra/outbound/memory"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	fixedNow     = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	errSearchOff = errors.New("search index unavailable")
	errStoreOff  = errors.New("event store unavailable")
)

func clock() time.Time { return fixedNow }

// flakySearch falla las primeras 'failures' escrituras.
type flakySearch struct {
	*memory.SearchIndex
	mu       sync.Mutex
	failures int
}

func (f *flakySearch) Index(ctx context.Context, doc domain.SearchDocument) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return errSearchOff
	}
	f.mu.Unlock()
	return f.SearchIndex.Index(ctx, doc)
}

type brokenEventStore struct{}

func (brokenEventStore) Append(context.Context, domain.DomainFact) error { return errStoreOff }
func (brokenEventStore) ReadStream(context.Context, string) ([]domain.DomainFact, error) {
	return nil, errStoreOff
}

type projection struct {
	games      *memory.GameStore
	promotions *memory.PromotionStore
	search     *flakySearch
	facts      *memory.EventStore
	projector  *Projector
}

func newProjection() *projection {
	p := &projection{
		games:      memory.NewGameStore(),
		promotions: memory.NewPromotionStore(),
		search:     &flakySearch{SearchIndex: memory.NewSearchIndex()},
		facts:      memory.NewEventStore(),
	}
	p.projector = NewProjector(p.games, p.promotions, p.search, p.facts, zap.NewNop(), WithProjectorClock(clock))
	return p
}

func gameSnapshot(id int64, price int64) domain.GameSnapshot {
	return domain.GameSnapshot{
		GameID:   id,
		Name:     "Game " + strconv.FormatInt(id, 10),
		Genre:    "Action",
		Price:    decimal.NewFromInt(price),
		Currency: domain.DefaultCurrency,
	}
}

func activePromotion(id int64, pct int64) domain.PromotionSnapshot {
	return domain.PromotionSnapshot{
		PromotionID:     id,
		DiscountPercent: decimal.NewFromInt(pct),
		StartsAt:        fixedNow.Add(-24 * time.Hour),
		EndsAt:          fixedNow.Add(24 * time.Hour),
	}
}

// fakeSource es un almacén primario fijo para la reconciliación.
type fakeSource struct {
	games  []domain.GameSnapshot
	promos []domain.PromotionAssignment
	err    error
}

func (s *fakeSource) CountGames(context.Context) (int, error)      { return len(s.games), s.err }
func (s *fakeSource) CountPromotions(context.Context) (int, error) { return len(s.promos), s.err }
func (s *fakeSource) ListGameSnapshots(context.Context) ([]domain.GameSnapshot, error) {
	return s.games, s.err
}
func (s *fakeSource) ListPromotionAssignments(context.Context) ([]domain.PromotionAssignment, error) {
	return s.promos, s.err
}
