package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/davicafu/catalogsync/internal/catalog/domain"
)

// GameStore es la proyección de juegos en memoria (despliegue local y tests).
type GameStore struct {
	mu   sync.RWMutex
	docs map[int64]domain.GameDocument
}

func NewGameStore() *GameStore {
	return &GameStore{docs: make(map[int64]domain.GameDocument)}
}

func (s *GameStore) Upsert(_ context.Context, doc domain.GameDocument) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.docs[doc.ID]
	s.docs[doc.ID] = doc
	return !existed, nil
}

func (s *GameStore) Get(_ context.Context, id int64) (domain.GameDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return domain.GameDocument{}, domain.ErrGameNotFound
	}
	return doc, nil
}

func (s *GameStore) List(_ context.Context) ([]domain.GameDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.GameDocument, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *GameStore) FindByPromotion(ctx context.Context, promotionID int64) ([]domain.GameDocument, error) {
	all, _ := s.List(ctx)

	var out []domain.GameDocument
	for _, d := range all {
		if d.PromotionID != nil && *d.PromotionID == promotionID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *GameStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

type PromotionStore struct {
	mu   sync.RWMutex
	docs map[int64]domain.PromotionDocument
}

func NewPromotionStore() *PromotionStore {
	return &PromotionStore{docs: make(map[int64]domain.PromotionDocument)}
}

func (s *PromotionStore) Upsert(_ context.Context, doc domain.PromotionDocument) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.docs[doc.ID]
	s.docs[doc.ID] = doc
	return !existed, nil
}

func (s *PromotionStore) Get(_ context.Context, id int64) (domain.PromotionDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return domain.PromotionDocument{}, domain.ErrPromotionNotFound
	}
	return doc, nil
}

func (s *PromotionStore) List(_ context.Context) ([]domain.PromotionDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PromotionDocument, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *PromotionStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

var (
	_ domain.GameProjectionStore      = (*GameStore)(nil)
	_ domain.PromotionProjectionStore = (*PromotionStore)(nil)
)
