package application

import (
	"context"
	"testing"

	"github.com/davicafu/catalogsync/internal/catalog/domain"
	"github.com/davicafu/catalogsync/internal/catalog/infra/outbound/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProjector_GameCreated_BuildsDocumentIndexAndFact(t *testing.T) {
	ctx := context.Background()
	p := newProjection()

	promo := activePromotion(7, 25)
	snap := gameSnapshot(42, 80)
	snap.PromotionID = &promo.PromotionID
	snap.Promotion = &promo

	require.NoError(t, p.projector.HandleGameCreated(ctx, domain.GameCreated{GameSnapshot: snap}))

	doc, err := p.games.Get(ctx, 42)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(60).Equal(doc.FinalPrice))
	assert.True(t, doc.HasActivePromotion)

	sdoc, err := p.search.Get(ctx, 42)
	require.NoError(t, err)
	assert.True(t, doc.FinalPrice.Equal(sdoc.FinalPrice))
	assert.Equal(t, []string{"action"}, sdoc.Tags)

	facts, err := p.facts.ReadStream(ctx, "Game-42")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, domain.FactGameCreated, facts[0].Type)
	assert.Equal(t, "42", facts[0].AggregateID)
}

func TestProjector_UpsertGame_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newProjection()
	snap := gameSnapshot(1, 50)

	first, err := p.projector.UpsertGame(ctx, snap)
	require.NoError(t, err)
	second, err := p.projector.UpsertGame(ctx, snap)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	n, _ := p.games.Count(ctx)
	assert.Equal(t, 1, n)
	n, _ = p.search.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestProjector_SearchFailureThenRedelivery(t *testing.T) {
	ctx := context.Background()
	p := newProjection()
	p.search.failures = 1
	evt := domain.GameCreated{GameSnapshot: gameSnapshot(9, 30)}

	// primera entrega: documento escrito, índice falla
	err := p.projector.HandleGameCreated(ctx, evt)
	assert.ErrorIs(t, err, errSearchOff)
	_, err = p.games.Get(ctx, 9)
	require.NoError(t, err)
	_, err = p.search.Get(ctx, 9)
	assert.ErrorIs(t, err, domain.ErrGameNotFound)

	// reentrega
	require.NoError(t, p.projector.HandleGameCreated(ctx, evt))
	n, _ := p.games.Count(ctx)
	assert.Equal(t, 1, n)
	_, err = p.search.Get(ctx, 9)
	assert.NoError(t, err)
}

func TestProjector_FactFailureDoesNotFailHandler(t *testing.T) {
	ctx := context.Background()
	games := memory.NewGameStore()
	search := memory.NewSearchIndex()
	projector := NewProjector(games, memory.NewPromotionStore(), search, brokenEventStore{}, zap.NewNop(),
		WithProjectorClock(clock))

	err := projector.HandleGameUpdated(ctx, domain.GameUpdated{GameSnapshot: gameSnapshot(3, 10)})
	assert.NoError(t, err)
	_, err = games.Get(ctx, 3)
	assert.NoError(t, err)
}

func TestProjector_PromotionUpdated_RemovesThenAssigns(t *testing.T) {
	ctx := context.Background()
	p := newProjection()
	for _, id := range []int64{1, 2, 3} {
		_, err := p.projector.UpsertGame(ctx, gameSnapshot(id, 100))
		require.NoError(t, err)
	}

	promo := activePromotion(5, 10)
	created := domain.PromotionAssignment{PromotionSnapshot: promo, GameIDs: []int64{1, 2}}
	require.NoError(t, p.projector.HandlePromotionCreated(ctx, domain.PromotionCreated{PromotionAssignment: created}))

	g1, _ := p.games.Get(ctx, 1)
	assert.True(t, decimal.NewFromInt(90).Equal(g1.FinalPrice))

	promo.DiscountPercent = decimal.NewFromInt(50)
	updated := domain.PromotionAssignment{PromotionSnapshot: promo, GameIDs: []int64{2, 3}}
	require.NoError(t, p.projector.HandlePromotionUpdated(ctx, domain.PromotionUpdated{PromotionAssignment: updated}))

	g1, _ = p.games.Get(ctx, 1)
	assert.Nil(t, g1.PromotionID)
	assert.False(t, g1.HasActivePromotion)
	assert.True(t, decimal.NewFromInt(100).Equal(g1.FinalPrice))

	for _, id := range []int64{2, 3} {
		g, _ := p.games.Get(ctx, id)
		require.NotNil(t, g.PromotionID)
		assert.Equal(t, int64(5), *g.PromotionID)
		assert.True(t, decimal.NewFromInt(50).Equal(g.FinalPrice))

		s, err := p.search.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, g.FinalPrice.Equal(s.FinalPrice))
	}

	// el índice también refleja la retirada
	s1, _ := p.search.Get(ctx, 1)
	assert.Nil(t, s1.PromotionID)

	holders, err := p.games.FindByPromotion(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, holders, 2)

	doc, err := p.promotions.Get(ctx, 5)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(doc.DiscountPercent))

	facts, _ := p.facts.ReadStream(ctx, "Promotion-5")
	assert.Len(t, facts, 2)
}

func TestProjector_PromotionAssignment_SkipsMissingDocuments(t *testing.T) {
	ctx := context.Background()
	p := newProjection()
	_, err := p.projector.UpsertGame(ctx, gameSnapshot(1, 100))
	require.NoError(t, err)

	a := domain.PromotionAssignment{PromotionSnapshot: activePromotion(2, 20), GameIDs: []int64{1, 404}}
	require.NoError(t, p.projector.HandlePromotionCreated(ctx, domain.PromotionCreated{PromotionAssignment: a}))

	_, err = p.games.Get(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrGameNotFound)
	n, _ := p.games.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestProjector_PromotionRedeliveryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := newProjection()
	_, err := p.projector.UpsertGame(ctx, gameSnapshot(1, 40))
	require.NoError(t, err)

	evt := domain.PromotionCreated{PromotionAssignment: domain.PromotionAssignment{
		PromotionSnapshot: activePromotion(3, 25), GameIDs: []int64{1},
	}}
	require.NoError(t, p.projector.HandlePromotionCreated(ctx, evt))
	before, _ := p.games.Get(ctx, 1)

	require.NoError(t, p.projector.HandlePromotionCreated(ctx, evt))
	after, _ := p.games.Get(ctx, 1)

	assert.Equal(t, before, after)
	n, _ := p.promotions.Count(ctx)
	assert.Equal(t, 1, n)
}
