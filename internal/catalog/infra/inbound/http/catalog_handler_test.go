package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/davicafu/catalogsync/internal/catalog/application"
	"github.com/davicafu/catalogsync/internal/catalog/domain"
	"github.com/davicafu/catalogsync/internal/shared/infra/health"
	"github.com/davicafu/catalogsync/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) CreateGame(ctx context.Context, in application.CreateGameInput) (*domain.Game, error) {
	args := m.Called(ctx, in)
	g, _ := args.Get(0).(*domain.Game)
	return g, args.Error(1)
}

func (m *mockService) UpdateGame(ctx context.Context, in application.UpdateGameInput) (*domain.Game, error) {
	args := m.Called(ctx, in)
	g, _ := args.Get(0).(*domain.Game)
	return g, args.Error(1)
}

func (m *mockService) GetGame(ctx context.Context, id int64) (domain.GameDocument, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.GameDocument), args.Error(1)
}

func (m *mockService) ListGames(ctx context.Context) ([]domain.GameDocument, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.GameDocument), args.Error(1)
}

func (m *mockService) SearchGames(ctx context.Context, text string, limit int) ([]domain.SearchDocument, error) {
	args := m.Called(ctx, text, limit)
	return args.Get(0).([]domain.SearchDocument), args.Error(1)
}

func (m *mockService) CreatePromotion(ctx context.Context, in application.CreatePromotionInput) (*domain.Promotion, error) {
	args := m.Called(ctx, in)
	p, _ := args.Get(0).(*domain.Promotion)
	return p, args.Error(1)
}

func (m *mockService) UpdatePromotion(ctx context.Context, in application.UpdatePromotionInput) (*domain.Promotion, error) {
	args := m.Called(ctx, in)
	p, _ := args.Get(0).(*domain.Promotion)
	return p, args.Error(1)
}

func (m *mockService) GetPromotion(ctx context.Context, id int64) (application.PromotionView, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(application.PromotionView), args.Error(1)
}

func (m *mockService) ListPromotions(ctx context.Context) ([]domain.PromotionDocument, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.PromotionDocument), args.Error(1)
}

func newRouter(svc CatalogService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterCatalogRoutes(r, NewCatalogHandler(svc, zap.NewNop()))
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateGame_Accepted(t *testing.T) {
	svc := new(mockService)
	svc.On("CreateGame", mock.Anything, mock.MatchedBy(func(in application.CreateGameInput) bool {
		return in.Name == "Hades" && in.Price.Equal(decimal.RequireFromString("79.90"))
	})).Return(&domain.Game{ID: 7, Name: "Hades"}, nil).Once()

	w := do(newRouter(svc), http.MethodPost, "/games", `{"name":"Hades","genre":"Roguelike","price":"79.90"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	var body struct {
		Data domain.Game `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(7), body.Data.ID)
	svc.AssertExpectations(t)
}

func TestCreateGame_ErrorMapping(t *testing.T) {
	cases := map[string]struct {
		err     error
		code    int
		errCode string
	}{
		"invalid":   {domain.ErrInvalidGame, http.StatusBadRequest, utils.CodeInvalidRequest},
		"duplicate": {domain.ErrDuplicateGame, http.StatusConflict, utils.CodeConflict},
		"promotion": {domain.ErrPromotionNotFound, http.StatusNotFound, utils.CodeNotFound},
		"unknown":   {errors.New("db down"), http.StatusInternalServerError, utils.CodeInternal},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := new(mockService)
			svc.On("CreateGame", mock.Anything, mock.Anything).Return(nil, tc.err).Once()

			w := do(newRouter(svc), http.MethodPost, "/games", `{"name":"x","genre":"y","price":1}`)
			assert.Equal(t, tc.code, w.Code)

			var body struct {
				Error utils.ErrorResponse `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.errCode, body.Error.Code)
		})
	}
}

func TestCreateGame_MalformedBody(t *testing.T) {
	svc := new(mockService)
	w := do(newRouter(svc), http.MethodPost, "/games", `{"name":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "CreateGame", mock.Anything, mock.Anything)
}

func TestGetGame(t *testing.T) {
	svc := new(mockService)
	svc.On("GetGame", mock.Anything, int64(3)).Return(domain.GameDocument{ID: 3, Name: "Celeste"}, nil).Once()
	svc.On("GetGame", mock.Anything, int64(4)).Return(domain.GameDocument{}, domain.ErrGameNotFound).Once()
	r := newRouter(svc)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/games/3", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/games/4", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/games/abc", "").Code)
}

func TestSearchGames_RoutesBeforeID(t *testing.T) {
	svc := new(mockService)
	svc.On("SearchGames", mock.Anything, "souls", 5).Return([]domain.SearchDocument{{ID: 1}}, nil).Once()

	w := do(newRouter(svc), http.MethodGet, "/games/search?q=souls&limit=5", "")

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestUpdatePromotion_PassesPathID(t *testing.T) {
	svc := new(mockService)
	svc.On("UpdatePromotion", mock.Anything, mock.MatchedBy(func(in application.UpdatePromotionInput) bool {
		return in.ID == 9 && len(in.GameIDs) == 2
	})).Return(&domain.Promotion{ID: 9}, nil).Once()

	body := `{"discountPercent":"15","startsAt":"2025-01-01T00:00:00Z","endsAt":"2025-02-01T00:00:00Z","gameIds":[1,2]}`
	w := do(newRouter(svc), http.MethodPut, "/promotions/9", body)

	assert.Equal(t, http.StatusAccepted, w.Code)
	svc.AssertExpectations(t)
}

func TestGetPromotion(t *testing.T) {
	svc := new(mockService)
	view := application.PromotionView{
		PromotionDocument: domain.PromotionDocument{ID: 2, DiscountPercent: decimal.NewFromInt(10)},
		GameIDs:           []int64{1, 5},
	}
	svc.On("GetPromotion", mock.Anything, int64(2)).Return(view, nil).Once()

	w := do(newRouter(svc), http.MethodGet, "/promotions/2", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"gameIds":[1,5]`)
}

type backlogFunc func() (int, error)

func (f backlogFunc) CountPending(context.Context) (int, error) { return f() }

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	relay := health.NewStatus("outbox-relay")
	relay.RecordSuccess(time.Now())
	reconciler := health.NewStatus("reconciler")

	r := gin.New()
	RegisterHealthRoutes(r, NewHealthHandler(backlogFunc(func() (int, error) { return 4, nil }),
		func() string { return "steady" }, relay, reconciler))

	w := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "steady", resp.ReconcilerState)
	require.NotNil(t, resp.OutboxBacklog)
	assert.Equal(t, 4, *resp.OutboxBacklog)
	assert.Len(t, resp.Components, 2)

	reconciler.RecordFailure(errors.New("sync incomplete"), time.Now())
	w = do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
