package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "BRL"

// Límites de las columnas del almacén primario.
const (
	MaxNameLength   = 100
	MaxGenreLength  = 100
	MoneyDecimals   = 2
	PercentDecimals = 2
)

var (
	ErrGameNotFound      = errors.New("game not found")
	ErrPromotionNotFound = errors.New("promotion not found")
	ErrDuplicateGame     = errors.New("game name already exists")
	ErrInvalidGame       = errors.New("invalid game")
	ErrInvalidPromotion  = errors.New("invalid promotion")
)

var hundred = decimal.NewFromInt(100)

// Game es el agregado del almacén primario. La relación con Promotion es solo
// la clave foránea; el conjunto de juegos de una promoción es una consulta.
type Game struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Genre       string          `json:"genre"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	PromotionID *int64          `json:"promotionId,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func NewGame(name, genre string, price decimal.Decimal, currency string, promotionID *int64, now time.Time) (*Game, error) {
	g := &Game{
		Name:        strings.TrimSpace(name),
		Genre:       strings.TrimSpace(genre),
		Price:       price,
		Currency:    currency,
		PromotionID: promotionID,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
	if g.Currency == "" {
		g.Currency = DefaultCurrency
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Game) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidGame)
	}
	if utf8.RuneCountInString(g.Name) > MaxNameLength {
		return fmt.Errorf("%w: name must be at most %d characters", ErrInvalidGame, MaxNameLength)
	}
	if g.Genre == "" {
		return fmt.Errorf("%w: genre is required", ErrInvalidGame)
	}
	if utf8.RuneCountInString(g.Genre) > MaxGenreLength {
		return fmt.Errorf("%w: genre must be at most %d characters", ErrInvalidGame, MaxGenreLength)
	}
	if g.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidGame)
	}
	// El precio se guarda con dos decimales; el evento debe llevar exactamente ese valor.
	if !hasScale(g.Price, MoneyDecimals) {
		return fmt.Errorf("%w: price must have at most %d decimal places", ErrInvalidGame, MoneyDecimals)
	}
	if len(g.Currency) != 3 {
		return fmt.Errorf("%w: currency must be an ISO-4217 code", ErrInvalidGame)
	}
	return nil
}

// Snapshot arma la vista autocontenida que viaja en los eventos.
// promo debe ser la promoción referenciada por PromotionID (o nil).
func (g *Game) Snapshot(promo *Promotion) GameSnapshot {
	s := GameSnapshot{
		GameID:      g.ID,
		Name:        g.Name,
		Genre:       g.Genre,
		Price:       g.Price,
		Currency:    g.Currency,
		PromotionID: g.PromotionID,
	}
	if promo != nil && g.PromotionID != nil && *g.PromotionID == promo.ID {
		ps := promo.Snapshot()
		s.Promotion = &ps
	}
	return s
}

type Promotion struct {
	ID              int64           `json:"id"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	StartsAt        time.Time       `json:"startsAt"`
	EndsAt          time.Time       `json:"endsAt"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func NewPromotion(discountPercent decimal.Decimal, startsAt, endsAt, now time.Time) (*Promotion, error) {
	p := &Promotion{
		DiscountPercent: discountPercent,
		StartsAt:        startsAt.UTC(),
		EndsAt:          endsAt.UTC(),
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Promotion) Validate() error {
	return validatePromotion(p.DiscountPercent, p.StartsAt, p.EndsAt)
}

func (p *Promotion) IsActive(now time.Time) bool {
	return p.Snapshot().IsActive(now)
}

func (p *Promotion) Snapshot() PromotionSnapshot {
	return PromotionSnapshot{
		PromotionID:     p.ID,
		DiscountPercent: p.DiscountPercent,
		StartsAt:        p.StartsAt,
		EndsAt:          p.EndsAt,
	}
}

func validatePromotion(pct decimal.Decimal, startsAt, endsAt time.Time) error {
	if !pct.IsPositive() || pct.GreaterThan(hundred) {
		return fmt.Errorf("%w: discount must be in (0, 100], got %s", ErrInvalidPromotion, pct)
	}
	if !hasScale(pct, PercentDecimals) {
		return fmt.Errorf("%w: discount must have at most %d decimal places", ErrInvalidPromotion, PercentDecimals)
	}
	if !startsAt.Before(endsAt) {
		return fmt.Errorf("%w: period start must be before end", ErrInvalidPromotion)
	}
	return nil
}

func hasScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Round(places))
}
