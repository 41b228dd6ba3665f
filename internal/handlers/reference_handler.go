package handlers

import (
	"allocation-service/internal/dto"
	"allocation-service/internal/models"
	"allocation-service/internal/reference"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReferenceImporter interface {
	Import(ctx context.Context, data models.ReferenceData) (reference.Summary, error)
}

type ReferenceHandler struct {
	importer ReferenceImporter
	log      *zap.Logger
}

func NewReferenceHandler(importer ReferenceImporter, log *zap.Logger) *ReferenceHandler {
	return &ReferenceHandler{importer: importer, log: log}
}

// Import godoc
// @Summary Импорт справочников
// @Description Массовая загрузка зон, пинкодов, складов и каталога
// @Tags reference
// @Accept json
// @Produce json
// @Param request body models.ReferenceData true "Справочные данные"
// @Success 200 {object} dto.ImportResponse
// @Failure 400 {object} dto.ValidationErrorResponse
// @Failure 503 {object} dto.StorageErrorResponse
// @Router /api/v1/reference/import [post]
func (h *ReferenceHandler) Import(c *gin.Context) {
	var req models.ReferenceData
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.log, err)
		return
	}
	sum, err := h.importer.Import(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, dto.ImportResponse{
		Success:        true,
		Zones:          sum.Zones,
		Pincodes:       sum.Pincodes,
		Warehouses:     sum.Warehouses,
		Products:       sum.Products,
		Invalidated:    sum.Invalidated,
		MissingCentral: sum.MissingCentral,
	})
}
