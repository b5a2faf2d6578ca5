package application

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type gameCounter interface {
	CountGames(ctx context.Context) (int, error)
}

var seedGames = []CreateGameInput{
	{Name: "The Legend of Zelda: Breath of the Wild", Genre: "Action RPG", Price: decimal.RequireFromString("299.00"), Currency: "USD"},
	{Name: "The Witcher 3: Wild Hunt", Genre: "Action RPG", Price: decimal.RequireFromString("39.99")},
	{Name: "Red Dead Redemption 2", Genre: "Action-adventure", Price: decimal.RequireFromString("49.99")},
	{Name: "Dark Souls III", Genre: "Action RPG", Price: decimal.RequireFromString("29.99")},
	{Name: "God of War", Genre: "Action-adventure", Price: decimal.RequireFromString("39.99")},
	{Name: "Minecraft", Genre: "Sandbox", Price: decimal.RequireFromString("26.95")},
	{Name: "Overwatch", Genre: "First-person shooter", Price: decimal.RequireFromString("39.99")},
	{Name: "The Last of Us Part II", Genre: "Action-adventure", Price: decimal.RequireFromString("49.99")},
}

var seedPromotions = []CreatePromotionInput{
	{DiscountPercent: decimal.RequireFromString("10.15"), StartsAt: utcDate(2025, 4, 1), EndsAt: utcDate(2025, 5, 1)},
	{DiscountPercent: decimal.RequireFromString("15.98"), StartsAt: utcDate(2025, 6, 1), EndsAt: utcDate(2025, 7, 1)},
	{DiscountPercent: decimal.RequireFromString("20.97"), StartsAt: utcDate(2025, 8, 1), EndsAt: utcDate(2025, 9, 1)},
}

func utcDate(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Seed carga el catálogo inicial si el almacén primario está vacío. Pasa por el
// servicio para que cada alta deje su evento en el outbox.
func Seed(ctx context.Context, svc *CatalogService, counter gameCounter, log *zap.Logger) (bool, error) {
	n, err := counter.CountGames(ctx)
	if err != nil {
		return false, fmt.Errorf("count games: %w", err)
	}
	if n > 0 {
		log.Info("Seed skipped, catalog not empty", zap.Int("games", n))
		return false, nil
	}

	for _, in := range seedPromotions {
		if _, err := svc.CreatePromotion(ctx, in); err != nil {
			return false, fmt.Errorf("seed promotion: %w", err)
		}
	}
	for _, in := range seedGames {
		if _, err := svc.CreateGame(ctx, in); err != nil {
			return false, fmt.Errorf("seed game %q: %w", in.Name, err)
		}
	}

	log.Info("🌱 Catalog seeded", zap.Int("games", len(seedGames)), zap.Int("promotions", len(seedPromotions)))
	return true, nil
}
