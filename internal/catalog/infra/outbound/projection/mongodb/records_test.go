package mongodb

import (
	"testing"
	"time"

	"github.com/davicafu/catalogsync/internal/catalog/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameRecord_PreservesMoneyPrecision(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	promoID := int64(3)
	promo := domain.PromotionSnapshot{
		PromotionID:     promoID,
		DiscountPercent: decimal.RequireFromString("15.98"),
		StartsAt:        now.Add(-time.Hour),
		EndsAt:          now.Add(time.Hour),
	}
	doc := domain.NewGameDocument(domain.GameSnapshot{
		GameID: 1, Name: "Dark Souls III", Genre: "Action RPG",
		Price: decimal.RequireFromString("29.99"), Currency: "BRL",
		PromotionID: &promoID, Promotion: &promo,
	}, now)

	rec, err := toGameRecord(doc)
	require.NoError(t, err)
	back, err := rec.toDomain()
	require.NoError(t, err)

	assert.True(t, doc.Price.Equal(back.Price))
	assert.True(t, doc.FinalPrice.Equal(back.FinalPrice))
	assert.Equal(t, "25.20", back.FinalPrice.StringFixed(2))
	require.NotNil(t, back.DiscountPercent)
	assert.True(t, promo.DiscountPercent.Equal(*back.DiscountPercent))
	require.NotNil(t, back.Promotion)
	assert.Equal(t, promoID, back.Promotion.PromotionID)
}

func TestGameRecord_WithoutPromotionOmitsFields(t *testing.T) {
	doc := domain.NewGameDocument(domain.GameSnapshot{
		GameID: 2, Name: "Minecraft", Genre: "Sandbox", Price: decimal.RequireFromString("26.95"), Currency: "BRL",
	}, time.Now())

	rec, err := toGameRecord(doc)
	require.NoError(t, err)
	assert.Nil(t, rec.PromotionID)
	assert.Nil(t, rec.Promotion)
	assert.Nil(t, rec.DiscountPercent)
}
