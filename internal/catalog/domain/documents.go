package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GameDocument es la proyección de lectura de un juego. Siempre se recalcula
// entera y se reemplaza entera.
type GameDocument struct {
	ID                 int64              `json:"id"`
	Name               string             `json:"name"`
	Genre              string             `json:"genre"`
	Price              decimal.Decimal    `json:"price"`
	Currency           string             `json:"currency"`
	PromotionID        *int64             `json:"promotionId,omitempty"`
	Promotion          *PromotionSnapshot `json:"promotion,omitempty"`
	FinalPrice         decimal.Decimal    `json:"finalPrice"`
	HasActivePromotion bool               `json:"hasActivePromotion"`
	DiscountPercent    *decimal.Decimal   `json:"discountPercent,omitempty"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

func NewGameDocument(s GameSnapshot, now time.Time) GameDocument {
	doc := GameDocument{
		ID:          s.GameID,
		Name:        s.Name,
		Genre:       s.Genre,
		Price:       s.Price,
		Currency:    s.Currency,
		PromotionID: s.PromotionID,
		Promotion:   s.Promotion,
		UpdatedAt:   now.UTC(),
	}
	doc.reprice(now)
	return doc
}

// WithPromotion devuelve una copia con la promoción sustituida (nil la quita) y el precio recalculado.
func (d GameDocument) WithPromotion(promo *PromotionSnapshot, now time.Time) GameDocument {
	if promo == nil {
		d.PromotionID = nil
		d.Promotion = nil
	} else {
		id := promo.PromotionID
		p := *promo
		d.PromotionID = &id
		d.Promotion = &p
	}
	d.UpdatedAt = now.UTC()
	d.reprice(now)
	return d
}

// PricedAt recalcula el precio para now sin tocar UpdatedAt. Se usa en lectura:
// una promoción puede empezar o caducar después de la proyección.
func (d GameDocument) PricedAt(now time.Time) GameDocument {
	d.reprice(now)
	return d
}

func (d *GameDocument) reprice(now time.Time) {
	p := ComputePricing(d.Price, d.Promotion, now)
	d.FinalPrice = p.FinalPrice
	d.HasActivePromotion = p.HasActivePromotion
	d.DiscountPercent = p.DiscountPercent
}

// PromotionDocument no guarda los juegos: se obtienen con FindByPromotion.
type PromotionDocument struct {
	ID              int64           `json:"id"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	StartsAt        time.Time       `json:"startsAt"`
	EndsAt          time.Time       `json:"endsAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func NewPromotionDocument(s PromotionSnapshot, now time.Time) PromotionDocument {
	return PromotionDocument{
		ID:              s.PromotionID,
		DiscountPercent: s.DiscountPercent,
		StartsAt:        s.StartsAt,
		EndsAt:          s.EndsAt,
		UpdatedAt:       now.UTC(),
	}
}

func (d PromotionDocument) Snapshot() PromotionSnapshot {
	return PromotionSnapshot{
		PromotionID:     d.ID,
		DiscountPercent: d.DiscountPercent,
		StartsAt:        d.StartsAt,
		EndsAt:          d.EndsAt,
	}
}

// SearchDocument es lo que se indexa para la búsqueda de texto.
type SearchDocument struct {
	ID                 int64            `json:"id"`
	Name               string           `json:"name"`
	Genre              string           `json:"genre"`
	Price              decimal.Decimal  `json:"price"`
	FinalPrice         decimal.Decimal  `json:"finalPrice"`
	PromotionID        *int64           `json:"promotionId,omitempty"`
	HasActivePromotion bool             `json:"hasActivePromotion"`
	DiscountPercentage *decimal.Decimal `json:"discountPercentage,omitempty"`
	Tags               []string         `json:"tags"`
	IndexedAt          time.Time        `json:"indexedAt"`
}

func NewSearchDocument(doc GameDocument, now time.Time) SearchDocument {
	return SearchDocument{
		ID:                 doc.ID,
		Name:               doc.Name,
		Genre:              doc.Genre,
		Price:              doc.Price,
		FinalPrice:         doc.FinalPrice,
		PromotionID:        doc.PromotionID,
		HasActivePromotion: doc.HasActivePromotion,
		DiscountPercentage: doc.DiscountPercent,
		Tags:               []string{strings.ToLower(doc.Genre)},
		IndexedAt:          now.UTC(),
	}
}
