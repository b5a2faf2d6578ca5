package mongodb

import (
	"fmt"
	"time"

	"github.com/davicafu/catalogsync/internal/catalog/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Los importes se guardan como Decimal128 para no perder precisión.

type promotionSnapshotRecord struct {
	PromotionID     int64                `bson:"promotionId"`
	DiscountPercent primitive.Decimal128 `bson:"discountPercent"`
	StartsAt        time.Time            `bson:"startsAt"`
	EndsAt          time.Time            `bson:"endsAt"`
}

type gameRecord struct {
	ID                 int64                    `bson:"_id"`
	Name               string                   `bson:"name"`
	Genre              string                   `bson:"genre"`
	Price              primitive.Decimal128     `bson:"price"`
	Currency           string                   `bson:"currency"`
	PromotionID        *int64                   `bson:"promotionId,omitempty"`
	Promotion          *promotionSnapshotRecord `bson:"promotion,omitempty"`
	FinalPrice         primitive.Decimal128     `bson:"finalPrice"`
	HasActivePromotion bool                     `bson:"hasActivePromotion"`
	DiscountPercent    *primitive.Decimal128    `bson:"discountPercent,omitempty"`
	UpdatedAt          time.Time                `bson:"updatedAt"`
}

type promotionRecord struct {
	ID              int64                `bson:"_id"`
	DiscountPercent primitive.Decimal128 `bson:"discountPercent"`
	StartsAt        time.Time            `bson:"startsAt"`
	EndsAt          time.Time            `bson:"endsAt"`
	UpdatedAt       time.Time            `bson:"updatedAt"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("convert %s to Decimal128: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("convert Decimal128 %s: %w", v, err)
	}
	return d, nil
}

func toSnapshotRecord(s *domain.PromotionSnapshot) (*promotionSnapshotRecord, error) {
	if s == nil {
		return nil, nil
	}
	pct, err := toDecimal128(s.DiscountPercent)
	if err != nil {
		return nil, err
	}
	return &promotionSnapshotRecord{
		PromotionID:     s.PromotionID,
		DiscountPercent: pct,
		StartsAt:        s.StartsAt.UTC(),
		EndsAt:          s.EndsAt.UTC(),
	}, nil
}

func (r *promotionSnapshotRecord) toDomain() (*domain.PromotionSnapshot, error) {
	if r == nil {
		return nil, nil
	}
	pct, err := fromDecimal128(r.DiscountPercent)
	if err != nil {
		return nil, err
	}
	return &domain.PromotionSnapshot{
		PromotionID:     r.PromotionID,
		DiscountPercent: pct,
		StartsAt:        r.StartsAt.UTC(),
		EndsAt:          r.EndsAt.UTC(),
	}, nil
}

func toGameRecord(doc domain.GameDocument) (gameRecord, error) {
	price, err := toDecimal128(doc.Price)
	if err != nil {
		return gameRecord{}, err
	}
	final, err := toDecimal128(doc.FinalPrice)
	if err != nil {
		return gameRecord{}, err
	}
	promo, err := toSnapshotRecord(doc.Promotion)
	if err != nil {
		return gameRecord{}, err
	}

	rec := gameRecord{
		ID:                 doc.ID,
		Name:               doc.Name,
		Genre:              doc.Genre,
		Price:              price,
		Currency:           doc.Currency,
		PromotionID:        doc.PromotionID,
		Promotion:          promo,
		FinalPrice:         final,
		HasActivePromotion: doc.HasActivePromotion,
		UpdatedAt:          doc.UpdatedAt.UTC(),
	}
	if doc.DiscountPercent != nil {
		pct, err := toDecimal128(*doc.DiscountPercent)
		if err != nil {
			return gameRecord{}, err
		}
		rec.DiscountPercent = &pct
	}
	return rec, nil
}

func (r gameRecord) toDomain() (domain.GameDocument, error) {
	price, err := fromDecimal128(r.Price)
	if err != nil {
		return domain.GameDocument{}, err
	}
	final, err := fromDecimal128(r.FinalPrice)
	if err != nil {
		return domain.GameDocument{}, err
	}
	promo, err := r.Promotion.toDomain()
	if err != nil {
		return domain.GameDocument{}, err
	}

	doc := domain.GameDocument{
		ID:                 r.ID,
		Name:               r.Name,
		Genre:              r.Genre,
		Price:              price,
		Currency:           r.Currency,
		PromotionID:        r.PromotionID,
		Promotion:          promo,
		FinalPrice:         final,
		HasActivePromotion: r.HasActivePromotion,
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
	if r.DiscountPercent != nil {
		pct, err := fromDecimal128(*r.DiscountPercent)
		if err != nil {
			return domain.GameDocument{}, err
		}
		doc.DiscountPercent = &pct
	}
	return doc, nil
}

func toPromotionRecord(doc domain.PromotionDocument) (promotionRecord, error) {
	pct, err := toDecimal128(doc.DiscountPercent)
	if err != nil {
		return promotionRecord{}, err
	}
	return promotionRecord{
		ID:              doc.ID,
		DiscountPercent: pct,
		StartsAt:        doc.StartsAt.UTC(),
		EndsAt:          doc.EndsAt.UTC(),
		UpdatedAt:       doc.UpdatedAt.UTC(),
	}, nil
}

func (r promotionRecord) toDomain() (domain.PromotionDocument, error) {
	pct, err := fromDecimal128(r.DiscountPercent)
	if err != nil {
		return domain.PromotionDocument{}, err
	}
	return domain.PromotionDocument{
		ID:              r.ID,
		DiscountPercent: pct,
		StartsAt:        r.StartsAt.UTC(),
		EndsAt:          r.EndsAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}, nil
}
