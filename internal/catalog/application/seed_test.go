package application

import (
	"context"
	"testing"

	"github.com/davicafu/catalogsync/internal/catalog/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSeed_LoadsCatalogOnce(t *testing.T) {
	h := newServiceHarness(t)
	ctx := context.Background()

	seeded, err := Seed(ctx, h.svc, h.repo, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, seeded)

	games, err := h.repo.CountGames(ctx)
	require.NoError(t, err)
	promos, err := h.repo.CountPromotions(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(seedGames), games)
	assert.Equal(t, len(seedPromotions), promos)

	envs := h.pendingEnvelopes(t)
	require.Len(t, envs, len(seedGames)+len(seedPromotions))
	assert.Equal(t, domain.PromotionCreatedType, envs[0].Type)
	assert.Equal(t, domain.GameCreatedType, envs[len(envs)-1].Type)

	// Segunda pasada: el catálogo ya no está vacío.
	seeded, err = Seed(ctx, h.svc, h.repo, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Len(t, h.pendingEnvelopes(t), len(seedGames)+len(seedPromotions))
}
