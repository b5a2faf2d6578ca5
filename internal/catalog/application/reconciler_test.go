package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/davicafu/catalogsync/internal/catalog/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fastSync = ReconcilerConfig{
	InitialAttempts: 2,
	InitialBackoff:  time.Millisecond,
	Interval:        5 * time.Millisecond,
	DriftThreshold:  0.8,
	VerifyAttempts:  2,
	VerifyBaseDelay: time.Millisecond,
}

func primaryCatalog(games, promos int) *fakeSource {
	src := &fakeSource{}
	for i := 1; i <= games; i++ {
		src.games = append(src.games, gameSnapshot(int64(i), 100))
	}
	for i := 1; i <= promos; i++ {
		src.promos = append(src.promos, domain.PromotionAssignment{
			PromotionSnapshot: activePromotion(int64(i), 10),
			GameIDs:           []int64{},
		})
	}
	return src
}

func newReconciler(p *projection, src domain.CatalogSource) *Reconciler {
	return NewReconciler(src, p.games, p.promotions, p.search, p.projector, fastSync, zap.NewNop(),
		WithReconcilerClock(clock))
}

func TestReconciler_RepairsPromotionDrift(t *testing.T) {
	ctx := context.Background()
	p := newProjection()
	src := primaryCatalog(10, 10)

	for _, g := range src.games {
		_, err := p.projector.UpsertGame(ctx, g)
		require.NoError(t, err)
	}
	for _, a := range src.promos[:7] {
		require.NoError(t, p.projector.UpsertPromotion(ctx, a.PromotionSnapshot))
	}
	// documento sin contrapartida en el primario
	_, err := p.projector.UpsertGame(ctx, gameSnapshot(999, 5))
	require.NoError(t, err)

	r := newReconciler(p, src)

	report, err := r.CheckDrift(ctx)
	require.NoError(t, err)
	assert.True(t, report.Drift)
	assert.Equal(t, 7, report.PromotionDocuments)

	require.NoError(t, r.RunCycle(ctx))

	n, _ := p.promotions.Count(ctx)
	assert.Equal(t, 10, n)
	_, err = p.games.Get(ctx, 999)
	assert.NoError(t, err, "reconciliation never deletes")
	assert.Equal(t, StateSteady, r.State())
	assert.True(t, r.Health().Snapshot().Healthy)
}

func TestReconciler_OverCountDoesNotRepair(t *testing.T) {
	ctx := context.Background()
	p := newProjection()
	src := primaryCatalog(2, 0)

	// documentos obsoletos: si hubiera reparación, el precio cambiaría
	for i := int64(1); i <= 5; i++ {
		_, err := p.projector.UpsertGame(ctx, gameSnapshot(i, 1))
		require.NoError(t, err)
	}

	r := newReconciler(p, src)
	report, err := r.CheckDrift(ctx)
	require.NoError(t, err)
	assert.False(t, report.Drift)
	assert.True(t, report.OverCount)

	require.NoError(t, r.RunCycle(ctx))

	doc, _ := p.games.Get(ctx, 1)
	assert.Equal(t, "1", doc.Price.String())
}

func TestReconciler_DriftThresholdBoundary(t *testing.T) {
	ctx := context.Background()
	p := newProjection()
	src := primaryCatalog(10, 0)

	for _, g := range src.games[:8] {
		_, err := p.projector.UpsertGame(ctx, g)
		require.NoError(t, err)
	}

	report, err := newReconciler(p, src).CheckDrift(ctx)
	require.NoError(t, err)
	assert.False(t, report.Drift, "8 of 10 is exactly the threshold")
}

func TestReconciler_FullSyncOnEmptyPrimaryIsComplete(t *testing.T) {
	p := newProjection()
	r := newReconciler(p, primaryCatalog(0, 0))

	assert.NoError(t, r.FullSync(context.Background()))
}

func TestReconciler_FullSyncIncompleteWhenUpsertFails(t *testing.T) {
	ctx := context.Background()
	p := newProjection()
	p.search.failures = 1
	src := primaryCatalog(3, 1)

	r := newReconciler(p, src)
	err := r.FullSync(ctx)
	assert.ErrorIs(t, err, ErrSyncIncomplete)

	// el resto de elementos se sincronizó igualmente
	n, _ := p.games.Count(ctx)
	assert.Equal(t, 3, n)
	n, _ = p.promotions.Count(ctx)
	assert.Equal(t, 1, n)

	// el siguiente intento completa
	assert.NoError(t, r.FullSync(ctx))
}

func TestReconciler_CheckDriftPropagatesSourceErrors(t *testing.T) {
	p := newProjection()
	src := &fakeSource{err: errors.New("primary down")}
	r := newReconciler(p, src)

	err := r.RunCycle(context.Background())
	assert.Error(t, err)
	assert.False(t, r.Health().Snapshot().Healthy)
}

// stateProbe anota el estado del reconciliador cada vez que se indexa un documento.
type stateProbe struct {
	*flakySearch
	r      *Reconciler
	mu     sync.Mutex
	states []ReconcilerState
}

func (s *stateProbe) Index(ctx context.Context, doc domain.SearchDocument) error {
	s.mu.Lock()
	s.states = append(s.states, s.r.State())
	s.mu.Unlock()
	return s.flakySearch.Index(ctx, doc)
}

func TestReconciler_RepairRunsInRepairingState(t *testing.T) {
	ctx := context.Background()
	p := newProjection()
	probe := &stateProbe{flakySearch: p.search}
	projector := NewProjector(p.games, p.promotions, probe, nil, zap.NewNop(), WithProjectorClock(clock))

	r := NewReconciler(primaryCatalog(3, 0), p.games, p.promotions, probe, projector, fastSync, zap.NewNop())
	probe.r = r
	assert.Equal(t, StateStarting, r.State())

	require.NoError(t, r.RunCycle(ctx))

	require.Len(t, probe.states, 3)
	for _, s := range probe.states {
		assert.Equal(t, StateRepairing, s)
	}
	assert.Equal(t, StateSteady, r.State())
}

func TestReconciler_RunSyncsThenStaysSteady(t *testing.T) {
	p := newProjection()
	r := newReconciler(p, primaryCatalog(4, 2))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	assert.Eventually(t, func() bool {
		n, _ := p.games.Count(context.Background())
		return n == 4 && r.State() == StateSteady
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop after cancellation")
	}
}

func TestReconciler_RunRetriesInitialSync(t *testing.T) {
	p := newProjection()
	p.search.failures = 1
	cfg := fastSync
	cfg.InitialAttempts = 3
	cfg.Interval = time.Hour

	r := NewReconciler(primaryCatalog(2, 0), p.games, p.promotions, p.search, p.projector, cfg, zap.NewNop(),
		WithReconcilerClock(tickingClock()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return r.State() == StateSteady }, time.Second, time.Millisecond)

	n, _ := p.search.Count(context.Background())
	assert.Equal(t, 2, n)
	snap := r.Health().Snapshot()
	assert.Contains(t, snap.LastError, "upserts failed")
	assert.NotNil(t, snap.LastSuccess)
	assert.True(t, snap.Healthy)

	cancel()
	assert.NoError(t, <-done)
}

func TestReconciler_RunGoesSteadyWhenInitialSyncExhausted(t *testing.T) {
	p := newProjection()
	cfg := fastSync
	cfg.Interval = time.Hour

	r := NewReconciler(&fakeSource{err: errors.New("primary down")}, p.games, p.promotions, p.search, p.projector,
		cfg, zap.NewNop(), WithReconcilerClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return r.State() == StateSteady }, time.Second, time.Millisecond)
	snap := r.Health().Snapshot()
	assert.Contains(t, snap.LastError, "primary down")
	assert.Nil(t, snap.LastSuccess)

	cancel()
	assert.NoError(t, <-done)
}
