package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Tipos de hecho de dominio guardados en el event store.
const (
	FactGameCreated      = "GameCreated"
	FactGameUpdated      = "GameUpdated"
	FactPromotionCreated = "PromotionCreated"
	FactPromotionUpdated = "PromotionUpdated"
)

// DomainFact es un registro inmutable y solo de anexado de algo que ocurrió.
type DomainFact struct {
	ID          uuid.UUID       `json:"id"`
	StreamName  string          `json:"streamName"` // ej. "Game-42"
	Type        string          `json:"type"`
	AggregateID string          `json:"aggregateId"`
	Data        json.RawMessage `json:"data"`
	OccurredOn  time.Time       `json:"occurredOn"`
}

func GameStream(id int64) string {
	return "Game-" + strconv.FormatInt(id, 10)
}

func PromotionStream(id int64) string {
	return "Promotion-" + strconv.FormatInt(id, 10)
}

func NewDomainFact(stream, factType string, aggregateID int64, data any, at time.Time) (DomainFact, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return DomainFact{}, fmt.Errorf("marshal fact data: %w", err)
	}
	return DomainFact{
		ID:          uuid.New(),
		StreamName:  stream,
		Type:        factType,
		AggregateID: strconv.FormatInt(aggregateID, 10),
		Data:        raw,
		OccurredOn:  at.UTC(),
	}, nil
}
