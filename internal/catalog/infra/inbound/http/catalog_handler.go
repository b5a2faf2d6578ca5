package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/davicafu/catalogsync/internal/catalog/application"
	"github.com/davicafu/catalogsync/internal/catalog/domain"
	"github.com/davicafu/catalogsync/pkg/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CatalogService es lo que los endpoints necesitan del servicio de catálogo.
type CatalogService interface {
	CreateGame(ctx context.Context, in application.CreateGameInput) (*domain.Game, error)
	UpdateGame(ctx context.Context, in application.UpdateGameInput) (*domain.Game, error)
	GetGame(ctx context.Context, id int64) (domain.GameDocument, error)
	ListGames(ctx context.Context) ([]domain.GameDocument, error)
	SearchGames(ctx context.Context, text string, limit int) ([]domain.SearchDocument, error)

	CreatePromotion(ctx context.Context, in application.CreatePromotionInput) (*domain.Promotion, error)
	UpdatePromotion(ctx context.Context, in application.UpdatePromotionInput) (*domain.Promotion, error)
	GetPromotion(ctx context.Context, id int64) (application.PromotionView, error)
	ListPromotions(ctx context.Context) ([]domain.PromotionDocument, error)
}

// CatalogHandler encapsula los endpoints HTTP del catálogo.
type CatalogHandler struct {
	service CatalogService
	log     *zap.Logger
}

func NewCatalogHandler(service CatalogService, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{service: service, log: log}
}

// CreateGame endpoint POST /games
func (h *CatalogHandler) CreateGame(c *gin.Context) {
	var req application.CreateGameInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	game, err := h.service.CreateGame(c.Request.Context(), req)
	if err != nil {
		h.sendError(c, err)
		return
	}
	// La proyección es asíncrona: el documento de lectura aparecerá después.
	utils.SendAccepted(c, game)
}

// UpdateGame endpoint PUT /games/:id
func (h *CatalogHandler) UpdateGame(c *gin.Context) {
	id, ok := parseID(c, "invalid game id")
	if !ok {
		return
	}

	var req application.CreateGameInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	game, err := h.service.UpdateGame(c.Request.Context(), application.UpdateGameInput{ID: id, CreateGameInput: req})
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendAccepted(c, game)
}

// GetGame endpoint GET /games/:id
func (h *CatalogHandler) GetGame(c *gin.Context) {
	id, ok := parseID(c, "invalid game id")
	if !ok {
		return
	}

	doc, err := h.service.GetGame(c.Request.Context(), id)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, doc)
}

// ListGames endpoint GET /games
func (h *CatalogHandler) ListGames(c *gin.Context) {
	docs, err := h.service.ListGames(c.Request.Context())
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, docs)
}

// SearchGames endpoint GET /games/search?q=&limit=
func (h *CatalogHandler) SearchGames(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			utils.SendBadRequest(c, "invalid limit")
			return
		}
		limit = n
	}

	docs, err := h.service.SearchGames(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, docs)
}

// CreatePromotion endpoint POST /promotions
func (h *CatalogHandler) CreatePromotion(c *gin.Context) {
	var req application.CreatePromotionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	promo, err := h.service.CreatePromotion(c.Request.Context(), req)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendAccepted(c, promo)
}

// UpdatePromotion endpoint PUT /promotions/:id
func (h *CatalogHandler) UpdatePromotion(c *gin.Context) {
	id, ok := parseID(c, "invalid promotion id")
	if !ok {
		return
	}

	var req application.CreatePromotionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	promo, err := h.service.UpdatePromotion(c.Request.Context(), application.UpdatePromotionInput{ID: id, CreatePromotionInput: req})
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendAccepted(c, promo)
}

// GetPromotion endpoint GET /promotions/:id
func (h *CatalogHandler) GetPromotion(c *gin.Context) {
	id, ok := parseID(c, "invalid promotion id")
	if !ok {
		return
	}

	view, err := h.service.GetPromotion(c.Request.Context(), id)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, view)
}

// ListPromotions endpoint GET /promotions
func (h *CatalogHandler) ListPromotions(c *gin.Context) {
	docs, err := h.service.ListPromotions(c.Request.Context())
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, http.StatusOK, docs)
}

func parseID(c *gin.Context, msg string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		utils.SendBadRequest(c, msg)
		return 0, false
	}
	return id, true
}

func (h *CatalogHandler) sendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidGame), errors.Is(err, domain.ErrInvalidPromotion):
		utils.SendBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrGameNotFound):
		utils.SendNotFound(c, "game not found")
	case errors.Is(err, domain.ErrPromotionNotFound):
		utils.SendNotFound(c, "promotion not found")
	case errors.Is(err, domain.ErrDuplicateGame):
		utils.SendConflict(c, err.Error())
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		utils.SendInternalServerError(c, "internal error")
	}
}
