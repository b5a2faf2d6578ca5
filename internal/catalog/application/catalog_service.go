package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/davicafu/catalogsync/internal/catalog/domain"
	sharedDomain "github.com/davicafu/catalogsync/internal/shared/domain"
	sharedCache "github.com/davicafu/catalogsync/internal/shared/infra/platform/cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
	invalidateTimeout  = 2 * time.Second
)

type CreateGameInput struct {
	Name        string          `json:"name"`
	Genre       string          `json:"genre"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	PromotionID *int64          `json:"promotionId"`
}

type UpdateGameInput struct {
	ID int64 `json:"-"`
	CreateGameInput
}

type CreatePromotionInput struct {
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	StartsAt        time.Time       `json:"startsAt"`
	EndsAt          time.Time       `json:"endsAt"`
	GameIDs         []int64         `json:"gameIds"`
}

// UpdatePromotionInput: GameIDs == nil conserva el conjunto actual; un slice vacío lo vacía.
type UpdatePromotionInput struct {
	ID int64 `json:"-"`
	CreatePromotionInput
}

// PromotionView es la promoción proyectada junto con los juegos que la tienen.
type PromotionView struct {
	domain.PromotionDocument
	GameIDs  []int64 `json:"gameIds"`
	IsActive bool    `json:"isActive"`
}

// CatalogService implementa el camino de escritura (estado + outbox en una
// transacción) y el de lectura (proyecciones con cache-aside).
type CatalogService struct {
	tx         sharedDomain.Transactor
	repo       domain.CatalogRepository
	outbox     sharedDomain.OutboxWriter
	games      domain.GameProjectionStore
	promotions domain.PromotionProjectionStore
	search     domain.SearchIndex
	cache      sharedCache.Cache
	keys       domain.CacheKeys
	now        func() time.Time
	log        *zap.Logger
}

type ServiceOption func(*CatalogService)

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *CatalogService) { s.now = now }
}

// WithCache activa la caché de lectura. Sin ella se lee siempre de las proyecciones.
func WithCache(c sharedCache.Cache, keys domain.CacheKeys) ServiceOption {
	return func(s *CatalogService) {
		s.cache = c
		s.keys = keys
	}
}

func NewCatalogService(
	tx sharedDomain.Transactor,
	repo domain.CatalogRepository,
	outbox sharedDomain.OutboxWriter,
	games domain.GameProjectionStore,
	promotions domain.PromotionProjectionStore,
	search domain.SearchIndex,
	log *zap.Logger,
	opts ...ServiceOption,
) *CatalogService {
	s := &CatalogService{
		tx:         tx,
		repo:       repo,
		outbox:     outbox,
		games:      games,
		promotions: promotions,
		search:     search,
		keys:       domain.NewCacheKeys(""),
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// --- Escritura ---

func (s *CatalogService) CreateGame(ctx context.Context, in CreateGameInput) (*domain.Game, error) {
	now := s.now()
	game, err := domain.NewGame(in.Name, in.Genre, in.Price, in.Currency, in.PromotionID, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		promo, err := s.loadPromotion(ctx, game.PromotionID)
		if err != nil {
			return err
		}
		if err := s.repo.CreateGame(ctx, game); err != nil {
			return err
		}
		return s.append(ctx, domain.GameCreatedType, domain.GameCreated{GameSnapshot: game.Snapshot(promo)}, now)
	})
	if err != nil {
		s.log.Error("Failed to create game", zap.String("name", game.Name), zap.Error(err))
		return nil, err
	}

	s.invalidate(ctx, s.keys.AllGames(), s.keys.Game(game.ID))
	return game, nil
}

func (s *CatalogService) UpdateGame(ctx context.Context, in UpdateGameInput) (*domain.Game, error) {
	now := s.now()
	var game *domain.Game

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetGame(ctx, in.ID)
		if err != nil {
			return err
		}

		current.Name = strings.TrimSpace(in.Name)
		current.Genre = strings.TrimSpace(in.Genre)
		current.Price = in.Price
		if in.Currency != "" {
			current.Currency = in.Currency
		}
		current.PromotionID = in.PromotionID
		current.UpdatedAt = now
		if err := current.Validate(); err != nil {
			return err
		}

		promo, err := s.loadPromotion(ctx, current.PromotionID)
		if err != nil {
			return err
		}
		if err := s.repo.UpdateGame(ctx, current); err != nil {
			return err
		}
		game = current
		return s.append(ctx, domain.GameUpdatedType, domain.GameUpdated{GameSnapshot: current.Snapshot(promo)}, now)
	})
	if err != nil {
		s.log.Error("Failed to update game", zap.Int64("game_id", in.ID), zap.Error(err))
		return nil, err
	}

	s.invalidate(ctx, s.keys.AllGames(), s.keys.Game(game.ID))
	return game, nil
}

func (s *CatalogService) CreatePromotion(ctx context.Context, in CreatePromotionInput) (*domain.Promotion, error) {
	now := s.now()
	promo, err := domain.NewPromotion(in.DiscountPercent, in.StartsAt, in.EndsAt, now)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.CreatePromotion(ctx, promo); err != nil {
			return err
		}
		gameIDs, err := s.assignGames(ctx, promo.ID, in.GameIDs)
		if err != nil {
			return err
		}
		evt := domain.PromotionCreated{PromotionAssignment: domain.PromotionAssignment{
			PromotionSnapshot: promo.Snapshot(),
			GameIDs:           gameIDs,
		}}
		return s.append(ctx, domain.PromotionCreatedType, evt, now)
	})
	if err != nil {
		s.log.Error("Failed to create promotion", zap.Error(err))
		return nil, err
	}

	s.invalidatePromotion(ctx, promo.ID)
	return promo, nil
}

func (s *CatalogService) UpdatePromotion(ctx context.Context, in UpdatePromotionInput) (*domain.Promotion, error) {
	now := s.now()
	var promo *domain.Promotion

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetPromotion(ctx, in.ID)
		if err != nil {
			return err
		}

		current.DiscountPercent = in.DiscountPercent
		current.StartsAt = in.StartsAt.UTC()
		current.EndsAt = in.EndsAt.UTC()
		current.UpdatedAt = now
		if err := current.Validate(); err != nil {
			return err
		}
		if err := s.repo.UpdatePromotion(ctx, current); err != nil {
			return err
		}

		var gameIDs []int64
		if in.GameIDs == nil {
			gameIDs, err = s.repo.GameIDsByPromotion(ctx, current.ID)
		} else {
			gameIDs, err = s.assignGames(ctx, current.ID, in.GameIDs)
		}
		if err != nil {
			return err
		}

		promo = current
		evt := domain.PromotionUpdated{PromotionAssignment: domain.PromotionAssignment{
			PromotionSnapshot: current.Snapshot(),
			GameIDs:           gameIDs,
		}}
		return s.append(ctx, domain.PromotionUpdatedType, evt, now)
	})
	if err != nil {
		s.log.Error("Failed to update promotion", zap.Int64("promotion_id", in.ID), zap.Error(err))
		return nil, err
	}

	s.invalidatePromotion(ctx, promo.ID)
	return promo, nil
}

// assignGames deja exactamente gameIDs (sin duplicados, ordenados) en la promoción.
func (s *CatalogService) assignGames(ctx context.Context, promotionID int64, gameIDs []int64) ([]int64, error) {
	ids := uniqueSorted(gameIDs)
	if err := s.repo.ReplacePromotionGames(ctx, promotionID, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *CatalogService) loadPromotion(ctx context.Context, id *int64) (*domain.Promotion, error) {
	if id == nil {
		return nil, nil
	}
	promo, err := s.repo.GetPromotion(ctx, *id)
	if err != nil {
		return nil, fmt.Errorf("referenced promotion %d: %w", *id, err)
	}
	return promo, nil
}

func (s *CatalogService) append(ctx context.Context, eventType string, evt any, now time.Time) error {
	msg, err := sharedDomain.NewOutboxMessage(eventType, evt, now)
	if err != nil {
		return err
	}
	return s.outbox.Append(ctx, msg)
}

// invalidate se ejecuta después del commit. Un fallo no deshace la escritura.
func (s *CatalogService) invalidate(ctx context.Context, prefixes ...string) {
	if s.cache == nil {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()

	if err := s.cache.RemoveAll(cctx, prefixes...); err != nil {
		s.log.Warn("⚠️ Cache invalidation failed", zap.Strings("prefixes", prefixes), zap.Error(err))
	}
}

// Cambiar una promoción cambia el precio de sus juegos: se invalidan todos.
func (s *CatalogService) invalidatePromotion(ctx context.Context, id int64) {
	s.invalidate(ctx, s.keys.AllPromotions(), s.keys.Promotion(id), s.keys.GamesPrefix())
}

// --- Lectura ---

func (s *CatalogService) GetGame(ctx context.Context, id int64) (domain.GameDocument, error) {
	doc, err := sharedCache.GetOrSet(ctx, s.cache, s.log, s.keys.Game(id), func(ctx context.Context) (domain.GameDocument, error) {
		return s.games.Get(ctx, id)
	})
	if err != nil {
		if !errors.Is(err, domain.ErrGameNotFound) {
			s.log.Error("Failed to fetch game", zap.Int64("game_id", id), zap.Error(err))
		}
		return domain.GameDocument{}, err
	}
	return doc.PricedAt(s.now()), nil
}

func (s *CatalogService) ListGames(ctx context.Context) ([]domain.GameDocument, error) {
	docs, err := sharedCache.GetOrSet(ctx, s.cache, s.log, s.keys.AllGames(), s.games.List)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]domain.GameDocument, len(docs))
	for i, d := range docs {
		out[i] = d.PricedAt(now)
	}
	return out, nil
}

func (s *CatalogService) GetPromotion(ctx context.Context, id int64) (PromotionView, error) {
	view, err := sharedCache.GetOrSet(ctx, s.cache, s.log, s.keys.Promotion(id), func(ctx context.Context) (PromotionView, error) {
		doc, err := s.promotions.Get(ctx, id)
		if err != nil {
			return PromotionView{}, err
		}
		holders, err := s.games.FindByPromotion(ctx, id)
		if err != nil {
			return PromotionView{}, err
		}
		ids := make([]int64, 0, len(holders))
		for _, g := range holders {
			ids = append(ids, g.ID)
		}
		return PromotionView{PromotionDocument: doc, GameIDs: uniqueSorted(ids)}, nil
	})
	if err != nil {
		return PromotionView{}, err
	}
	view.IsActive = view.Snapshot().IsActive(s.now())
	return view, nil
}

func (s *CatalogService) ListPromotions(ctx context.Context) ([]domain.PromotionDocument, error) {
	return sharedCache.GetOrSet(ctx, s.cache, s.log, s.keys.AllPromotions(), s.promotions.List)
}

// SearchGames consulta directamente el índice; no se cachea.
func (s *CatalogService) SearchGames(ctx context.Context, text string, limit int) ([]domain.SearchDocument, error) {
	switch {
	case limit <= 0:
		limit = defaultSearchLimit
	case limit > maxSearchLimit:
		limit = maxSearchLimit
	}
	return s.search.Search(ctx, strings.TrimSpace(text), limit)
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
