package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/davicafu/catalogsync/internal/catalog/domain"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":                 { "type": "long" },
      "name":               { "type": "text", "fields": { "keyword": { "type": "keyword" } } },
      "genre":              { "type": "keyword" },
      "price":              { "type": "double" },
      "finalPrice":         { "type": "double" },
      "promotionId":        { "type": "long" },
      "hasActivePromotion": { "type": "boolean" },
      "discountPercentage": { "type": "double" },
      "tags":               { "type": "keyword" },
      "indexedAt":          { "type": "date" }
    }
  }
}`

// SearchIndex escribe y consulta SearchDocument en un índice de Elasticsearch.
// El id del documento es el id del juego, así que Index siempre sobrescribe.
type SearchIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewClient(urls []string) (*elasticsearch.Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: urls})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return es, nil
}

func NewSearchIndex(es *elasticsearch.Client, index string) *SearchIndex {
	return &SearchIndex{es: es, index: index}
}

func (s *SearchIndex) EnsureIndex(ctx context.Context) error {
	res, err := s.es.Indices.Exists([]string{s.index}, s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", s.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = s.es.Indices.Create(s.index,
		s.es.Indices.Create.WithContext(ctx),
		s.es.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", s.index, err)
	}
	defer res.Body.Close()
	// otra réplica pudo crearlo entre ambas llamadas
	if res.IsError() && res.StatusCode != http.StatusBadRequest {
		return responseError("create index", res)
	}
	return nil
}

func (s *SearchIndex) Index(ctx context.Context, doc domain.SearchDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	res, err := s.es.Index(s.index, bytes.NewReader(body),
		s.es.Index.WithContext(ctx),
		s.es.Index.WithDocumentID(docID(doc.ID)),
	)
	if err != nil {
		return fmt.Errorf("index game %d: %w", doc.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return responseError("index game "+docID(doc.ID), res)
	}
	return nil
}

func (s *SearchIndex) Get(ctx context.Context, id int64) (domain.SearchDocument, error) {
	res, err := s.es.Get(s.index, docID(id), s.es.Get.WithContext(ctx))
	if err != nil {
		return domain.SearchDocument{}, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return domain.SearchDocument{}, fmt.Errorf("%w: %d", domain.ErrGameNotFound, id)
	}
	if res.IsError() {
		return domain.SearchDocument{}, responseError("get game "+docID(id), res)
	}

	var hit struct {
		Source domain.SearchDocument `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&hit); err != nil {
		return domain.SearchDocument{}, fmt.Errorf("decode get response: %w", err)
	}
	return hit.Source, nil
}

func (s *SearchIndex) Count(ctx context.Context) (int, error) {
	res, err := s.es.Count(s.es.Count.WithContext(ctx), s.es.Count.WithIndex(s.index))
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, responseError("count", res)
	}

	var out struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode count response: %w", err)
	}
	return out.Count, nil
}

// Search hace un multi_match sobre nombre, género y tags. Un texto vacío devuelve todo.
func (s *SearchIndex) Search(ctx context.Context, text string, limit int) ([]domain.SearchDocument, error) {
	body, err := json.Marshal(searchQuery(text))
	if err != nil {
		return nil, err
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(body)),
		s.es.Search.WithSize(limit),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError("search", res)
	}
	return decodeHits(res.Body)
}

func searchQuery(text string) map[string]any {
	if text == "" {
		return map[string]any{"query": map[string]any{"match_all": map[string]any{}}}
	}
	return map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     text,
				"fields":    []string{"name^2", "genre", "tags"},
				"fuzziness": "AUTO",
			},
		},
	}
}

func decodeHits(r io.Reader) ([]domain.SearchDocument, error) {
	var out struct {
		Hits struct {
			Hits []struct {
				Source domain.SearchDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	docs := make([]domain.SearchDocument, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		docs = append(docs, h.Source)
	}
	return docs, nil
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func responseError(op string, res *esapi.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
	return fmt.Errorf("elasticsearch %s: %s: %s", op, res.Status(), bytes.TrimSpace(raw))
}

var _ domain.SearchIndex = (*SearchIndex)(nil)
