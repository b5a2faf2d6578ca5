package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PromotionSnapshot es una copia desnormalizada de la promoción, nunca una referencia viva.
type PromotionSnapshot struct {
	PromotionID     int64           `json:"promotionId"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	StartsAt        time.Time       `json:"startsAt"`
	EndsAt          time.Time       `json:"endsAt"`
}

// IsActive usa límites inclusivos: StartsAt <= now <= EndsAt.
func (p PromotionSnapshot) IsActive(now time.Time) bool {
	return !now.Before(p.StartsAt) && !now.After(p.EndsAt)
}

type Pricing struct {
	FinalPrice         decimal.Decimal
	HasActivePromotion bool
	DiscountPercent    *decimal.Decimal
}

// ComputePricing recibe explícitamente el estado de la promoción; no navega ningún grafo.
func ComputePricing(price decimal.Decimal, promo *PromotionSnapshot, now time.Time) Pricing {
	if promo == nil || !promo.IsActive(now) {
		return Pricing{FinalPrice: price}
	}

	pct := promo.DiscountPercent
	final := price.Mul(hundred.Sub(pct)).Div(hundred).Round(2)
	return Pricing{
		FinalPrice:         final,
		HasActivePromotion: true,
		DiscountPercent:    &pct,
	}
}
