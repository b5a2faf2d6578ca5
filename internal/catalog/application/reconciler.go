package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/davicafu/catalogsync/internal/catalog/domain"
	"github.com/davicafu/catalogsync/internal/shared/infra/health"
	"github.com/davicafu/catalogsync/internal/shared/infra/utils"
	"go.uber.org/zap"
)

var ErrSyncIncomplete = errors.New("full sync incomplete")

type ReconcilerState string

const (
	StateStarting       ReconcilerState = "starting"
	StateInitialSyncing ReconcilerState = "initial_syncing"
	StateSteady         ReconcilerState = "steady"
	StateRepairing      ReconcilerState = "repairing"
)

type ReconcilerConfig struct {
	GracePeriod     time.Duration
	InitialAttempts int
	InitialBackoff  time.Duration
	Interval        time.Duration
	DriftThreshold  float64
	VerifyAttempts  int
	VerifyBaseDelay time.Duration
}

func (c ReconcilerConfig) normalized() ReconcilerConfig {
	if c.InitialAttempts < 1 {
		c.InitialAttempts = 5
	}
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.DriftThreshold <= 0 || c.DriftThreshold > 1 {
		c.DriftThreshold = 0.8
	}
	if c.VerifyAttempts < 1 {
		c.VerifyAttempts = 4
	}
	if c.VerifyBaseDelay <= 0 {
		c.VerifyBaseDelay = time.Second
	}
	return c
}

// DriftReport compara los conteos del almacén primario con los derivados.
type DriftReport struct {
	PrimaryGames       int  `json:"primaryGames"`
	PrimaryPromotions  int  `json:"primaryPromotions"`
	GameDocuments      int  `json:"gameDocuments"`
	PromotionDocuments int  `json:"promotionDocuments"`
	SearchDocuments    int  `json:"searchDocuments"`
	Drift              bool `json:"drift"`
	OverCount          bool `json:"overCount"`
}

type ReconcilerOption func(*Reconciler)

func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// Reconciler detecta deriva por conteos y la repara reproyectando todo.
// Nunca borra proyecciones: un exceso se registra pero no se corrige.
type Reconciler struct {
	source     domain.CatalogSource
	games      domain.GameProjectionStore
	promotions domain.PromotionProjectionStore
	search     domain.SearchIndex
	projector  *Projector
	cfg        ReconcilerConfig
	health     *health.Status
	now        func() time.Time
	log        *zap.Logger

	mu    sync.RWMutex
	state ReconcilerState
}

func NewReconciler(
	source domain.CatalogSource,
	games domain.GameProjectionStore,
	promotions domain.PromotionProjectionStore,
	search domain.SearchIndex,
	projector *Projector,
	cfg ReconcilerConfig,
	log *zap.Logger,
	opts ...ReconcilerOption,
) *Reconciler {
	r := &Reconciler{
		source:     source,
		games:      games,
		promotions: promotions,
		search:     search,
		projector:  projector,
		cfg:        cfg.normalized(),
		health:     health.NewStatus("reconciler"),
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
		state:      StateStarting,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) State() ReconcilerState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Reconciler) setState(s ReconcilerState) {
	r.mu.Lock()
	prev := r.state
	r.state = s
	r.mu.Unlock()

	if prev != s {
		r.log.Info("reconciler state", zap.String("from", string(prev)), zap.String("to", string(s)))
	}
}

func (r *Reconciler) Health() *health.Status {
	return r.health
}

// Run bloquea hasta que ctx se cancele.
func (r *Reconciler) Run(ctx context.Context) error {
	r.setState(StateStarting)
	if err := utils.Sleep(ctx, r.cfg.GracePeriod); err != nil {
		return nil
	}

	r.setState(StateInitialSyncing)
	attempt := 0
	err := utils.Retry(ctx, r.cfg.InitialAttempts, r.cfg.InitialBackoff, func() error {
		attempt++
		err := r.FullSync(ctx)
		if err != nil {
			r.health.RecordFailure(err, r.now())
			r.log.Warn("⚠️ Sincronización inicial fallida",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.cfg.InitialAttempts),
				zap.Error(err),
			)
		}
		return err
	})
	if ctx.Err() != nil {
		return nil
	}
	if err == nil {
		r.health.RecordSuccess(r.now())
		r.log.Info("✅ Sincronización inicial completada", zap.Int("attempt", attempt))
	}

	// Se pasa a Steady aunque la sincronización inicial no lo lograra: los ciclos periódicos la reintentan.
	r.setState(StateSteady)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("🛑 Reconciler detenido.")
			return nil
		case <-ticker.C:
			_ = r.RunCycle(ctx)
		}
	}
}

// RunCycle comprueba la deriva y, si la hay, repara.
func (r *Reconciler) RunCycle(ctx context.Context) error {
	report, err := r.CheckDrift(ctx)
	if err != nil {
		r.health.RecordFailure(err, r.now())
		r.log.Warn("⚠️ No se pudo comprobar la deriva", zap.Error(err))
		return err
	}

	if report.OverCount {
		r.log.Info("proyecciones con más documentos que el primario; no se eliminan",
			zap.Int("primary_games", report.PrimaryGames),
			zap.Int("game_documents", report.GameDocuments),
			zap.Int("search_documents", report.SearchDocuments),
		)
	}
	if !report.Drift {
		r.health.RecordSuccess(r.now())
		return nil
	}

	r.log.Warn("⚠️ Deriva detectada, iniciando reparación",
		zap.Int("primary_games", report.PrimaryGames),
		zap.Int("game_documents", report.GameDocuments),
		zap.Int("search_documents", report.SearchDocuments),
		zap.Int("primary_promotions", report.PrimaryPromotions),
		zap.Int("promotion_documents", report.PromotionDocuments),
	)

	r.setState(StateRepairing)
	defer r.setState(StateSteady)

	if err := r.FullSync(ctx); err != nil {
		r.health.RecordFailure(err, r.now())
		r.log.Error("❌ Reparación incompleta", zap.Error(err))
		return err
	}

	r.health.RecordSuccess(r.now())
	r.log.Info("✅ Reparación completada")
	return nil
}

func (r *Reconciler) CheckDrift(ctx context.Context) (DriftReport, error) {
	var (
		rep DriftReport
		err error
	)

	if rep.PrimaryGames, err = r.source.CountGames(ctx); err != nil {
		return rep, fmt.Errorf("count primary games: %w", err)
	}
	if rep.PrimaryPromotions, err = r.source.CountPromotions(ctx); err != nil {
		return rep, fmt.Errorf("count primary promotions: %w", err)
	}
	if err := r.countDerived(ctx, &rep); err != nil {
		return rep, err
	}

	rep.Drift = r.belowThreshold(rep.GameDocuments, rep.PrimaryGames) ||
		r.belowThreshold(rep.SearchDocuments, rep.PrimaryGames) ||
		r.belowThreshold(rep.PromotionDocuments, rep.PrimaryPromotions)
	rep.OverCount = rep.GameDocuments > rep.PrimaryGames ||
		rep.SearchDocuments > rep.PrimaryGames ||
		rep.PromotionDocuments > rep.PrimaryPromotions
	return rep, nil
}

func (r *Reconciler) countDerived(ctx context.Context, rep *DriftReport) error {
	var err error
	if rep.GameDocuments, err = r.games.Count(ctx); err != nil {
		return fmt.Errorf("count game documents: %w", err)
	}
	if rep.PromotionDocuments, err = r.promotions.Count(ctx); err != nil {
		return fmt.Errorf("count promotion documents: %w", err)
	}
	if rep.SearchDocuments, err = r.search.Count(ctx); err != nil {
		return fmt.Errorf("count search documents: %w", err)
	}
	return nil
}

func (r *Reconciler) belowThreshold(derived, primary int) bool {
	if primary == 0 {
		return false
	}
	return float64(derived) < r.cfg.DriftThreshold*float64(primary)
}

// FullSync reproyecta todas las promociones y juegos del primario (solo upserts)
// y espera a que los conteos derivados alcancen los del primario.
func (r *Reconciler) FullSync(ctx context.Context) error {
	promos, err := r.source.ListPromotionAssignments(ctx)
	if err != nil {
		return fmt.Errorf("list primary promotions: %w", err)
	}
	games, err := r.source.ListGameSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("list primary games: %w", err)
	}

	failed := 0
	for _, a := range promos {
		if err := r.projector.UpsertPromotion(ctx, a.PromotionSnapshot); err != nil {
			failed++
			r.log.Warn("sync promotion failed", zap.Int64("promotion_id", a.PromotionID), zap.Error(err))
		}
	}
	for _, s := range games {
		if _, err := r.projector.UpsertGame(ctx, s); err != nil {
			failed++
			r.log.Warn("sync game failed", zap.Int64("game_id", s.GameID), zap.Error(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d upserts failed", ErrSyncIncomplete, failed)
	}

	// un primario vacío es trivialmente completo
	if len(games) == 0 && len(promos) == 0 {
		return nil
	}

	backoff := utils.Backoff{Attempts: r.cfg.VerifyAttempts, Base: r.cfg.VerifyBaseDelay}
	err = utils.PollUntil(ctx, backoff, func(ctx context.Context) (bool, error) {
		var rep DriftReport
		if err := r.countDerived(ctx, &rep); err != nil {
			return false, err
		}
		return rep.GameDocuments >= len(games) &&
			rep.SearchDocuments >= len(games) &&
			rep.PromotionDocuments >= len(promos), nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSyncIncomplete, err)
	}

	r.log.Info("full sync verified", zap.Int("games", len(games)), zap.Int("promotions", len(promos)))
	return nil
}
