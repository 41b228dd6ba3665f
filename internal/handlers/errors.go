package handlers

import (
	"allocation-service/internal/apperr"
	"allocation-service/internal/dto"
	"allocation-service/internal/pincode"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// writeError переводит доменную ошибку в HTTP-ответ с единым конвертом
func writeError(c *gin.Context, log *zap.Logger, err error) {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		log.Warn("validation failed", zap.String("field", verr.Field), zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.NewValidationError("validation failed", []dto.FieldError{
			{Field: verr.Field, Message: verr.Message},
		}))
	case errors.Is(err, pincode.ErrZoneNotFound):
		c.JSON(http.StatusNotFound, dto.NewNotFoundError("pincode is not served by any zone"))
	case errors.Is(err, apperr.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.NewNotFoundError(err.Error()))
	case errors.Is(err, apperr.ErrReservationRejected):
		log.Warn("reservation rejected", zap.Error(err))
		c.JSON(http.StatusConflict, dto.NewReservationRejectedError(err.Error()))
	case errors.Is(err, apperr.ErrConflict):
		log.Warn("conflict", zap.Error(err))
		c.JSON(http.StatusConflict, dto.NewConflictError(err.Error()))
	case errors.Is(err, apperr.ErrStorage):
		log.Error("storage unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, dto.NewStorageError(trimMessage(err.Error())))
	default:
		log.Error("unexpected error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.NewInternalError(trimMessage(err.Error())))
	}
}

// bindError отвечает 400 на невалидное тело запроса
func bindError(c *gin.Context, log *zap.Logger, err error) {
	log.Warn("invalid request body", zap.Error(err))
	fields := []dto.FieldError{}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields = append(fields, dto.FieldError{
				Field:   fe.Field(),
				Message: "failed on " + fe.Tag(),
				Tag:     fe.Tag(),
			})
		}
	}
	c.JSON(http.StatusBadRequest, dto.NewValidationError("invalid request body", fields))
}

func trimMessage(m string) string {
	if i := strings.Index(m, ": "); i > 0 && i < 80 {
		return m[:i]
	}
	return m
}
