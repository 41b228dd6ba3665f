package handlers

import (
	"allocation-service/internal/apperr"
	"allocation-service/internal/dto"
	"allocation-service/internal/models"
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type StockAdmin interface {
	AdjustStock(ctx context.Context, skuID, warehouseID string, delta int64, note string) (models.StockRecord, error)
	ListStock(ctx context.Context, f models.StockFilter) ([]models.StockRecord, error)
	Dashboard(ctx context.Context, warehouseID string) ([]models.WarehouseSummary, error)
	Movements(ctx context.Context, f models.MovementFilter) ([]models.StockMovement, error)
}

type WarehouseHandler struct {
	stock StockAdmin
	cache CacheInvalidator
	log   *zap.Logger
}

func NewWarehouseHandler(stock StockAdmin, cache CacheInvalidator, log *zap.Logger) *WarehouseHandler {
	return &WarehouseHandler{stock: stock, cache: cache, log: log}
}

// AdjustStock godoc
// @Summary Корректировка остатков
// @Description Приход (delta > 0) или списание (delta < 0), on_hand не может стать меньше reserved
// @Tags warehouses
// @Accept json
// @Produce json
// @Param request body dto.AdjustStockRequest true "SKU, склад, дельта"
// @Success 200 {object} dto.StockResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Failure 409 {object} dto.ConflictErrorResponse
// @Router /api/v1/warehouses/stock/adjust [post]
func (h *WarehouseHandler) AdjustStock(c *gin.Context) {
	var req dto.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}
	sku, err := dto.ParseSKU("sku_id", req.SKUID, req.VariantID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	ctx := c.Request.Context()
	rec, err := h.stock.AdjustStock(ctx, sku.ID(), req.WarehouseID, req.Delta, req.Note)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	h.cache.InvalidateSKU(ctx, sku.ID())
	c.JSON(http.StatusOK, dto.StockResponse{Success: true, Data: rec, Available: rec.Available()})
}

// Stock godoc
// @Summary Остатки по складам
// @Description Строки остатков с фильтром по складу и товару (товар включает все варианты)
// @Tags warehouses
// @Produce json
// @Param warehouse_id query string false "Склад"
// @Param product_id query string false "Товар"
// @Param in_stock query bool false "Только со свободным остатком"
// @Param limit query int false "Лимит" default(500)
// @Success 200 {object} dto.StockListResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /api/v1/warehouses/stock [get]
func (h *WarehouseHandler) Stock(c *gin.Context) {
	f := models.StockFilter{
		WarehouseID: c.Query("warehouse_id"),
		ProductID:   c.Query("product_id"),
		Limit:       models.DefaultStockLimit,
	}
	if raw := c.Query("in_stock"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(c, h.log, apperr.Invalid("in_stock", "must be a boolean"))
			return
		}
		f.InStockOnly = v
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > models.MaxStockLimit {
			writeError(c, h.log, apperr.Invalid("limit", "must be between 1 and 5000"))
			return
		}
		f.Limit = n
	}
	list, err := h.stock.ListStock(c.Request.Context(), f)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewStockListResponse(list))
}

// Dashboard godoc
// @Summary Сводка по складам
// @Tags warehouses
// @Produce json
// @Param warehouse_id query string false "Фильтр по складу"
// @Success 200 {object} dto.DashboardResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /api/v1/warehouses/dashboard [get]
func (h *WarehouseHandler) Dashboard(c *gin.Context) {
	rows, err := h.stock.Dashboard(c.Request.Context(), c.Query("warehouse_id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewDashboardResponse(rows))
}

// Movements godoc
// @Summary Журнал движений стока
// @Tags warehouses
// @Produce json
// @Param warehouse_id query string false "Склад"
// @Param sku_id query string false "SKU"
// @Param limit query int false "Лимит" default(100)
// @Success 200 {object} dto.MovementsResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Router /api/v1/warehouses/movements [get]
func (h *WarehouseHandler) Movements(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			writeError(c, h.log, apperr.Invalid("limit", "must be between 1 and 1000"))
			return
		}
		limit = n
	}
	list, err := h.stock.Movements(c.Request.Context(), models.MovementFilter{
		WarehouseID: c.Query("warehouse_id"),
		SKUID:       c.Query("sku_id"),
		Limit:       limit,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if list == nil {
		list = []models.StockMovement{}
	}
	c.JSON(http.StatusOK, dto.MovementsResponse{Success: true, Data: list})
}
