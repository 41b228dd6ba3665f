package handlers

import (
	"allocation-service/internal/allocation"
	"allocation-service/internal/delivery"
	"allocation-service/internal/dto"
	"allocation-service/internal/models"
	"allocation-service/internal/pincode"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DeliveryService interface {
	CheckProduct(ctx context.Context, sku models.SKU, code string, quantity int64) (allocation.Result, error)
	CheckCart(ctx context.Context, lines []allocation.Line, code string) (allocation.CartResult, error)
	Batch(ctx context.Context, reqs []delivery.Request) ([]allocation.Result, error)
	PincodeDetails(ctx context.Context, code string) (pincode.Location, error)
	DeliverableProducts(ctx context.Context, code string) ([]allocation.Offer, error)
	Stats() delivery.Stats
}

type DeliveryHandler struct {
	svc DeliveryService
	log *zap.Logger
}

func NewDeliveryHandler(svc DeliveryService, log *zap.Logger) *DeliveryHandler {
	return &DeliveryHandler{svc: svc, log: log}
}

// Check godoc
// @Summary Проверка доставки товара
// @Description Можно ли доставить SKU в указанный пинкод и с какого склада
// @Tags delivery
// @Accept json
// @Produce json
// @Param request body dto.DeliveryCheckRequest true "SKU, пинкод, количество"
// @Success 200 {object} dto.DeliveryCheckResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 503 {object} dto.StorageErrorResponse
// @Router /api/v1/delivery/check [post]
func (h *DeliveryHandler) Check(c *gin.Context) {
	var req dto.DeliveryCheckRequest
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
	res, err := h.svc.CheckProduct(ctx, sku, req.Pincode, req.Qty())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	var loc *pincode.Location
	if res.Reason != allocation.ReasonZoneUnresolved {
		if l, err := h.svc.PincodeDetails(ctx, req.Pincode); err == nil {
			loc = &l
		}
	}
	c.JSON(http.StatusOK, dto.DeliveryCheckResponse{Success: true, Data: dto.NewDeliveryCheckData(res, loc)})
}

// CheckCart godoc
// @Summary Проверка доставки корзины
// @Description Построчная проверка, корзина доставляема только если доставляема каждая строка
// @Tags delivery
// @Accept json
// @Produce json
// @Param request body dto.CartCheckRequest true "Корзина и пинкод"
// @Success 200 {object} dto.CartCheckResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 503 {object} dto.StorageErrorResponse
// @Router /api/v1/delivery/check-cart [post]
func (h *DeliveryHandler) CheckCart(c *gin.Context) {
	var req dto.CartCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}
	lines, err := dto.Lines(req.Items)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	cart, err := h.svc.CheckCart(c.Request.Context(), lines, req.Pincode)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewCartCheckResponse(cart))
}

// CheckBatch godoc
// @Summary Пакетная проверка доставки
// @Description Несколько пар SKU/пинкод за один проход, без кэша. Ошибка в одной строке отклоняет весь пакет
// @Tags delivery
// @Accept json
// @Produce json
// @Param request body dto.BatchCheckRequest true "Список проверок"
// @Success 200 {object} dto.BatchCheckResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 503 {object} dto.StorageErrorResponse
// @Router /api/v1/delivery/check-batch [post]
func (h *DeliveryHandler) CheckBatch(c *gin.Context) {
	var req dto.BatchCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}
	reqs, err := req.Requests()
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	res, err := h.svc.Batch(c.Request.Context(), reqs)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewBatchCheckResponse(reqs, res))
}

// PincodeProducts godoc
// @Summary Товары, доставляемые в пинкод
// @Description SKU со свободным остатком на складах зоны пинкода, склад выбирается по порядку local, zonal, central
// @Tags delivery
// @Produce json
// @Param pincode path string true "Пинкод"
// @Success 200 {object} dto.PincodeProductsResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /api/v1/pincodes/{pincode}/products [get]
func (h *DeliveryHandler) PincodeProducts(c *gin.Context) {
	code := c.Param("pincode")
	offers, err := h.svc.DeliverableProducts(c.Request.Context(), code)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPincodeProductsResponse(code, offers))
}

// Pincode godoc
// @Summary Информация о пинкоде
// @Tags delivery
// @Produce json
// @Param pincode path string true "Пинкод"
// @Success 200 {object} dto.PincodeResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /api/v1/pincodes/{pincode} [get]
func (h *DeliveryHandler) Pincode(c *gin.Context) {
	loc, err := h.svc.PincodeDetails(c.Request.Context(), c.Param("pincode"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.PincodeResponse{Success: true, Data: dto.NewPincodeData(loc)})
}

// CacheStats godoc
// @Summary Статистика кэша доставки
// @Tags delivery
// @Produce json
// @Success 200 {object} dto.CacheStatsResponse
// @Router /api/v1/cache/stats [get]
func (h *DeliveryHandler) CacheStats(c *gin.Context) {
	st := h.svc.Stats()
	c.JSON(http.StatusOK, dto.CacheStatsResponse{
		Success: true,
		Entries: st.Entries,
		Hits:    st.Hits,
		Misses:  st.Misses,
		Batches: st.Batches,
	})
}
