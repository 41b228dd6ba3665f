package handlers

import (
	"allocation-service/internal/checkout"
	"allocation-service/internal/dto"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Orchestrator interface {
	Begin(ctx context.Context, req checkout.Request) (checkout.Attempt, error)
	Signal(ctx context.Context, sig checkout.PaymentSignal) (checkout.Attempt, error)
	Wait(ctx context.Context, orderToken string) (checkout.Attempt, error)
	Get(orderToken string) (checkout.Attempt, error)
	ConfirmOrder(ctx context.Context, orderToken string, assignments []checkout.Assignment) (checkout.ConfirmResult, error)
}

// CacheInvalidator drops cached availability for a SKU after its stock moved.
type CacheInvalidator interface {
	InvalidateSKU(ctx context.Context, skuID string) int
}

type CheckoutHandler struct {
	orch        Orchestrator
	cache       CacheInvalidator
	paymentWait time.Duration
	log         *zap.Logger
}

func NewCheckoutHandler(orch Orchestrator, cache CacheInvalidator, paymentWait time.Duration, log *zap.Logger) *CheckoutHandler {
	if paymentWait <= 0 {
		paymentWait = 10 * time.Second
	}
	return &CheckoutHandler{orch: orch, cache: cache, paymentWait: paymentWait, log: log}
}

// Reserve godoc
// @Summary Резервирование корзины
// @Description Проверяет доставку и резервирует все строки, затем ждёт оплату
// @Tags checkout
// @Accept json
// @Produce json
// @Param request body dto.ReserveRequest true "Токен заказа, пинкод, корзина"
// @Success 200 {object} dto.ReserveResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 409 {object} dto.ConflictErrorResponse "Попытка уже выполняется"
// @Failure 503 {object} dto.StorageErrorResponse
// @Router /api/v1/checkout/reserve [post]
func (h *CheckoutHandler) Reserve(c *gin.Context) {
	var req dto.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}
	lines, err := dto.Lines(req.Items)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	ctx := c.Request.Context()
	attempt, err := h.orch.Begin(ctx, checkout.Request{OrderToken: req.OrderToken, Pincode: req.Pincode, Lines: lines})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	h.invalidate(ctx, attempt)
	if attempt.State == checkout.StateFailed {
		h.log.Warn("checkout attempt failed",
			zap.String("order_token", attempt.OrderToken),
			zap.String("reason", attempt.FailureReason),
		)
	}
	c.JSON(http.StatusOK, dto.NewReserveResponse(attempt))
}

// Payment godoc
// @Summary Сигнал оплаты
// @Description Передаёт исход оплаты и ждёт завершения попытки
// @Tags checkout
// @Accept json
// @Produce json
// @Param request body dto.PaymentRequest true "Исход оплаты"
// @Success 200 {object} dto.PaymentResponse
// @Success 202 {object} dto.PaymentResponse "Попытка ещё не завершена"
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /api/v1/checkout/payment [post]
func (h *CheckoutHandler) Payment(c *gin.Context) {
	var req dto.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}

	ctx := c.Request.Context()
	attempt, err := h.orch.Signal(ctx, checkout.PaymentSignal{
		OrderToken:       req.OrderToken,
		Outcome:          checkout.Outcome(req.Outcome),
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if !attempt.State.Terminal() {
		wctx, cancel := context.WithTimeout(ctx, h.paymentWait)
		defer cancel()
		attempt, err = h.orch.Wait(wctx, attempt.OrderToken)
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusAccepted, dto.NewPaymentResponse(attempt))
			return
		}
		if err != nil {
			writeError(c, h.log, err)
			return
		}
	}
	h.invalidate(ctx, attempt)
	c.JSON(http.StatusOK, dto.NewPaymentResponse(attempt))
}

// Confirm godoc
// @Summary Подтверждение списания
// @Description Списывает зарезервированный сток по назначениям складов
// @Tags checkout
// @Accept json
// @Produce json
// @Param request body dto.ConfirmRequest true "Назначения складов"
// @Success 200 {object} dto.ConfirmResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 503 {object} dto.StorageErrorResponse
// @Router /api/v1/checkout/confirm [post]
func (h *CheckoutHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}
	assignments := make([]checkout.Assignment, 0, len(req.WarehouseAssignments))
	for _, wa := range req.WarehouseAssignments {
		a, err := wa.Assignment()
		if err != nil {
			writeError(c, h.log, err)
			return
		}
		assignments = append(assignments, a)
	}

	ctx := c.Request.Context()
	res, err := h.orch.ConfirmOrder(ctx, req.OrderToken, assignments)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	for _, a := range assignments {
		h.cache.InvalidateSKU(ctx, a.SKU.ID())
	}
	if !res.AllDeducted {
		h.log.Warn("order confirmed partially", zap.String("order_token", req.OrderToken))
	}
	c.JSON(http.StatusOK, dto.NewConfirmResponse(res))
}

// Get godoc
// @Summary Состояние попытки оформления
// @Tags checkout
// @Produce json
// @Param order_token path string true "Токен заказа"
// @Success 200 {object} dto.AttemptResponse
// @Failure 404 {object} dto.NotFoundErrorResponse
// @Router /api/v1/checkout/{order_token} [get]
func (h *CheckoutHandler) Get(c *gin.Context) {
	attempt, err := h.orch.Get(c.Param("order_token"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.AttemptResponse{Success: true, Data: attempt})
}

func (h *CheckoutHandler) invalidate(ctx context.Context, a checkout.Attempt) {
	for _, l := range a.Lines {
		if l.ReservationID != nil {
			h.cache.InvalidateSKU(ctx, l.SKU.ID())
		}
	}
}
