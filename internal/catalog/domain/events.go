package domain

import (
	"fmt"
	"strconv"

	sharedEvents "github.com/davicafu/catalogsync/internal/shared/domain/events"
	"github.com/shopspring/decimal"
)

// Tags de tipo versionados. Son parte del contrato con los consumidores.
const (
	GameCreatedType      = "game.created.v1"
	GameUpdatedType      = "game.updated.v1"
	PromotionCreatedType = "promotion.created.v1"
	PromotionUpdatedType = "promotion.updated.v1"
)

// GameSnapshot lleva todo lo necesario para reconstruir las proyecciones de un juego.
type GameSnapshot struct {
	GameID      int64              `json:"gameId"`
	Name        string             `json:"name"`
	Genre       string             `json:"genre"`
	Price       decimal.Decimal    `json:"price"`
	Currency    string             `json:"currency"`
	PromotionID *int64             `json:"promotionId,omitempty"`
	Promotion   *PromotionSnapshot `json:"promotion,omitempty"`
}

func (s GameSnapshot) PartitionKey() string {
	return "game-" + strconv.FormatInt(s.GameID, 10)
}

func (s GameSnapshot) Validate() error {
	if s.GameID <= 0 {
		return fmt.Errorf("%w: game id must be positive", ErrInvalidGame)
	}
	if s.Name == "" || s.Genre == "" {
		return fmt.Errorf("%w: name and genre are required", ErrInvalidGame)
	}
	if s.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidGame)
	}
	if s.Promotion != nil {
		if s.PromotionID == nil || *s.PromotionID != s.Promotion.PromotionID {
			return fmt.Errorf("%w: promotion snapshot does not match promotion id", ErrInvalidGame)
		}
	}
	return nil
}

type GameCreated struct {
	GameSnapshot
}

type GameUpdated struct {
	GameSnapshot
}

// PromotionAssignment es la promoción junto al conjunto completo de juegos que la tienen.
type PromotionAssignment struct {
	PromotionSnapshot
	GameIDs []int64 `json:"gameIds"`
}

func (a PromotionAssignment) PartitionKey() string {
	return "promotion-" + strconv.FormatInt(a.PromotionID, 10)
}

func (a PromotionAssignment) Validate() error {
	if a.PromotionID <= 0 {
		return fmt.Errorf("%w: promotion id must be positive", ErrInvalidPromotion)
	}
	for _, id := range a.GameIDs {
		if id <= 0 {
			return fmt.Errorf("%w: invalid game id %d", ErrInvalidPromotion, id)
		}
	}
	return validatePromotion(a.DiscountPercent, a.StartsAt, a.EndsAt)
}

type PromotionCreated struct {
	PromotionAssignment
}

// PromotionUpdated enumera en GameIDs el conjunto nuevo y completo de juegos.
type PromotionUpdated struct {
	PromotionAssignment
}

// NewEventRegistry construye el registro explícito de eventos del catálogo.
// Lo comparten el publicador de outbox y los consumidores.
func NewEventRegistry() *sharedEvents.Registry {
	r := sharedEvents.NewRegistry()
	mustRegister(sharedEvents.RegisterJSON[GameCreated](r, GameCreatedType))
	mustRegister(sharedEvents.RegisterJSON[GameUpdated](r, GameUpdatedType))
	mustRegister(sharedEvents.RegisterJSON[PromotionCreated](r, PromotionCreatedType))
	mustRegister(sharedEvents.RegisterJSON[PromotionUpdated](r, PromotionUpdatedType))
	return r
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}
