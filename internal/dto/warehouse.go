package dto

import "allocation-service/internal/models"

type AdjustStockRequest struct {
	SKUID       string `json:"sku_id" binding:"required"`
	VariantID   string `json:"variant_id,omitempty"`
	WarehouseID string `json:"warehouse_id" binding:"required"`
	Delta       int64  `json:"delta"`
	Note        string `json:"note,omitempty"`
}

type StockResponse struct {
	Success   bool               `json:"success"`
	Data      models.StockRecord `json:"data"`
	Available int64              `json:"available"`
}

type StockRow struct {
	models.StockRecord
	Available int64 `json:"available"`
}

type StockListResponse struct {
	Success bool       `json:"success"`
	Data    []StockRow `json:"data"`
}

type DashboardRow struct {
	models.WarehouseSummary
	Available int64 `json:"available"`
}

type DashboardResponse struct {
	Success bool           `json:"success"`
	Data    []DashboardRow `json:"data"`
}

type MovementsResponse struct {
	Success bool                   `json:"success"`
	Data    []models.StockMovement `json:"data"`
}

type ImportResponse struct {
	Success        bool     `json:"success"`
	Zones          int      `json:"zones"`
	Pincodes       int      `json:"pincodes"`
	Warehouses     int      `json:"warehouses"`
	Products       int      `json:"products"`
	Invalidated    int      `json:"invalidated_cache_entries"`
	MissingCentral []string `json:"zones_without_central,omitempty"`
}

type CacheStatsResponse struct {
	Success bool  `json:"success"`
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Batches int64 `json:"batches"`
}

func NewDashboardResponse(rows []models.WarehouseSummary) DashboardResponse {
	out := DashboardResponse{Success: true, Data: make([]DashboardRow, 0, len(rows))}
	for _, r := range rows {
		out.Data = append(out.Data, DashboardRow{WarehouseSummary: r, Available: r.Available()})
	}
	return out
}

func NewStockListResponse(recs []models.StockRecord) StockListResponse {
	out := StockListResponse{Success: true, Data: make([]StockRow, 0, len(recs))}
	for _, r := range recs {
		out.Data = append(out.Data, StockRow{StockRecord: r, Available: r.Available()})
	}
	return out
}
