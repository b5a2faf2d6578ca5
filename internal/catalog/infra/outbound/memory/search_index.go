package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/davicafu/catalogsync/internal/catalog/domain"
)

// SearchIndex imita el índice de búsqueda con coincidencia de subcadenas.
type SearchIndex struct {
	mu   sync.RWMutex
	docs map[int64]domain.SearchDocument
}

func NewSearchIndex() *SearchIndex {
	return &SearchIndex{docs: make(map[int64]domain.SearchDocument)}
}

func (s *SearchIndex) EnsureIndex(context.Context) error { return nil }

func (s *SearchIndex) Index(_ context.Context, doc domain.SearchDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

func (s *SearchIndex) Get(_ context.Context, id int64) (domain.SearchDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return domain.SearchDocument{}, domain.ErrGameNotFound
	}
	return doc, nil
}

func (s *SearchIndex) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *SearchIndex) Search(_ context.Context, text string, limit int) ([]domain.SearchDocument, error) {
	q := strings.ToLower(strings.TrimSpace(text))

	s.mu.RLock()
	var out []domain.SearchDocument
	for _, d := range s.docs {
		if q == "" || matches(d, q) {
			out = append(out, d)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matches(d domain.SearchDocument, q string) bool {
	if strings.Contains(strings.ToLower(d.Name), q) || strings.Contains(strings.ToLower(d.Genre), q) {
		return true
	}
	for _, tag := range d.Tags {
		if strings.Contains(tag, q) {
			return true
		}
	}
	return false
}

var _ domain.SearchIndex = (*SearchIndex)(nil)
