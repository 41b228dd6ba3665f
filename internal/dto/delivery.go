package dto

import (
	"allocation-service/internal/allocation"
	"allocation-service/internal/apperr"
	"allocation-service/internal/delivery"
	"allocation-service/internal/models"
	"allocation-service/internal/pincode"
	"fmt"

	"github.com/google/uuid"
)

type DeliveryCheckRequest struct {
	SKUID     string `json:"sku_id" binding:"required"`
	VariantID string `json:"variant_id,omitempty"`
	Pincode   string `json:"pincode" binding:"required"`
	Quantity  *int64 `json:"quantity,omitempty"`
}

// Qty defaults to one unit when the client leaves it out.
func (r DeliveryCheckRequest) Qty() int64 {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

type DeliveryCheckData struct {
	IsAvailable   bool   `json:"is_available"`
	WarehouseType string `json:"warehouse_type,omitempty"`
	WarehouseID   string `json:"warehouse_id,omitempty"`
	FallbackUsed  bool   `json:"fallback_used"`
	Reason        string `json:"reason,omitempty"`
	Message       string `json:"message"`
	ZoneName      string `json:"zone_name,omitempty"`
	DeliveryDays  int    `json:"delivery_days,omitempty"`
}

type DeliveryCheckResponse struct {
	Success bool              `json:"success"`
	Data    DeliveryCheckData `json:"data"`
}

type BatchCheckRequest struct {
	Items []DeliveryCheckRequest `json:"items" binding:"required,dive"`
}

type BatchCheckItem struct {
	SKUID    string `json:"sku_id"`
	Pincode  string `json:"pincode"`
	Quantity int64  `json:"quantity"`
	DeliveryCheckData
}

type BatchCheckResponse struct {
	Success bool             `json:"success"`
	Data    []BatchCheckItem `json:"data"`
}

type PincodeProduct struct {
	SKUID         string `json:"sku_id"`
	ProductID     string `json:"product_id"`
	VariantID     string `json:"variant_id,omitempty"`
	WarehouseID   string `json:"warehouse_id"`
	WarehouseType string `json:"warehouse_type"`
	FallbackUsed  bool   `json:"fallback_used"`
	Available     int64  `json:"available"`
}

type PincodeProductsResponse struct {
	Success bool             `json:"success"`
	Pincode string           `json:"pincode"`
	Count   int              `json:"count"`
	Data    []PincodeProduct `json:"data"`
}

type CartItem struct {
	ProductID string `json:"product_id" binding:"required"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int64  `json:"quantity"`
}

type CartCheckRequest struct {
	Items   []CartItem `json:"items" binding:"required"`
	Pincode string     `json:"pincode" binding:"required"`
}

type CartItemResult struct {
	ProductID     string `json:"product_id"`
	VariantID     string `json:"variant_id,omitempty"`
	Quantity      int64  `json:"quantity"`
	IsAvailable   bool   `json:"is_available"`
	WarehouseID   string `json:"warehouse_id,omitempty"`
	WarehouseType string `json:"warehouse_type,omitempty"`
	FallbackUsed  bool   `json:"fallback_used"`
	Reason        string `json:"reason,omitempty"`
	Message       string `json:"message"`
}

type CartCheckResponse struct {
	Success                 bool             `json:"success"`
	AllDeliverable          bool             `json:"all_deliverable"`
	DeliverableProductIDs   []string         `json:"deliverable_product_ids"`
	UndeliverableProductIDs []string         `json:"undeliverable_product_ids"`
	Items                   []CartItemResult `json:"items"`
}

type PincodeData struct {
	Pincode      string `json:"pincode"`
	ZoneID       string `json:"zone_id"`
	ZoneName     string `json:"zone_name"`
	City         string `json:"city"`
	State        string `json:"state"`
	Deliverable  bool   `json:"deliverable"`
	Serviceable  bool   `json:"serviceable"`
	DeliveryDays int    `json:"delivery_days"`
	CODAvailable bool   `json:"cod_available"`
}

type PincodeResponse struct {
	Success bool        `json:"success"`
	Data    PincodeData `json:"data"`
}

// ParseSKU accepts "product" or "product:variant" in skuID; a separate
// variantID overrides the variant part.
func ParseSKU(field, skuID, variantID string) (models.SKU, error) {
	sku, err := models.ParseSKU(skuID)
	if err != nil {
		return models.SKU{}, apperr.Invalid(field, "must be a UUID")
	}
	if variantID != "" {
		vid, err := uuid.Parse(variantID)
		if err != nil {
			return models.SKU{}, apperr.Invalid("variant_id", "must be a UUID")
		}
		sku.VariantID = vid
	}
	return sku, nil
}

// Requests keeps the item order; the first bad item names its index.
func (r BatchCheckRequest) Requests() ([]delivery.Request, error) {
	out := make([]delivery.Request, 0, len(r.Items))
	for i, it := range r.Items {
		sku, err := ParseSKU(fmt.Sprintf("items[%d].sku_id", i), it.SKUID, it.VariantID)
		if err != nil {
			return nil, err
		}
		out = append(out, delivery.Request{SKU: sku, Pincode: it.Pincode, Quantity: it.Qty()})
	}
	return out, nil
}

func NewBatchCheckResponse(reqs []delivery.Request, res []allocation.Result) BatchCheckResponse {
	out := BatchCheckResponse{Success: true, Data: make([]BatchCheckItem, 0, len(res))}
	for i, r := range res {
		out.Data = append(out.Data, BatchCheckItem{
			SKUID:             reqs[i].SKU.ID(),
			Pincode:           reqs[i].Pincode,
			Quantity:          reqs[i].Quantity,
			DeliveryCheckData: NewDeliveryCheckData(r, nil),
		})
	}
	return out
}

func NewPincodeProductsResponse(code string, offers []allocation.Offer) PincodeProductsResponse {
	out := PincodeProductsResponse{Success: true, Pincode: code, Count: len(offers), Data: make([]PincodeProduct, 0, len(offers))}
	for _, o := range offers {
		p := PincodeProduct{
			SKUID:         o.SKU.ID(),
			ProductID:     o.SKU.ProductID.String(),
			WarehouseID:   o.Warehouse.ID,
			WarehouseType: string(o.Warehouse.Type),
			FallbackUsed:  o.FallbackUsed,
			Available:     o.Available,
		}
		if o.SKU.HasVariant() {
			p.VariantID = o.SKU.VariantID.String()
		}
		out.Data = append(out.Data, p)
	}
	return out
}

func (i CartItem) Line() (allocation.Line, error) {
	sku, err := ParseSKU("product_id", i.ProductID, i.VariantID)
	if err != nil {
		return allocation.Line{}, err
	}
	return allocation.Line{SKU: sku, Quantity: i.Quantity}, nil
}

func Lines(items []CartItem) ([]allocation.Line, error) {
	out := make([]allocation.Line, 0, len(items))
	for _, it := range items {
		l, err := it.Line()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func NewDeliveryCheckData(r allocation.Result, loc *pincode.Location) DeliveryCheckData {
	d := DeliveryCheckData{
		IsAvailable:  r.Deliverable,
		FallbackUsed: r.FallbackUsed,
		Reason:       string(r.Reason),
		Message:      r.Message(),
	}
	if r.Warehouse != nil {
		d.WarehouseType = string(r.Warehouse.Type)
		d.WarehouseID = r.Warehouse.ID
	}
	if r.Zone != nil {
		d.ZoneName = r.Zone.Name
	}
	if loc != nil {
		d.ZoneName = loc.Zone.Name
		d.DeliveryDays = loc.Pincode.DeliveryDays
	}
	return d
}

func NewCartItemResult(r allocation.Result) CartItemResult {
	out := CartItemResult{
		ProductID:    r.SKU.ProductID.String(),
		Quantity:     r.Quantity,
		IsAvailable:  r.Deliverable,
		FallbackUsed: r.FallbackUsed,
		Reason:       string(r.Reason),
		Message:      r.Message(),
	}
	if r.SKU.HasVariant() {
		out.VariantID = r.SKU.VariantID.String()
	}
	if r.Warehouse != nil {
		out.WarehouseID = r.Warehouse.ID
		out.WarehouseType = string(r.Warehouse.Type)
	}
	return out
}

func NewCartCheckResponse(cart allocation.CartResult) CartCheckResponse {
	resp := CartCheckResponse{
		Success:                 true,
		AllDeliverable:          cart.AllDeliverable(),
		DeliverableProductIDs:   []string{},
		UndeliverableProductIDs: []string{},
		Items:                   make([]CartItemResult, 0, len(cart.Lines)),
	}
	for _, r := range cart.Lines {
		resp.Items = append(resp.Items, NewCartItemResult(r))
	}
	for _, r := range cart.Deliverable {
		resp.DeliverableProductIDs = append(resp.DeliverableProductIDs, r.SKU.ID())
	}
	for _, r := range cart.Undeliverable {
		resp.UndeliverableProductIDs = append(resp.UndeliverableProductIDs, r.SKU.ID())
	}
	return resp
}

func NewPincodeData(loc pincode.Location) PincodeData {
	return PincodeData{
		Pincode:      loc.Pincode.Code,
		ZoneID:       loc.Zone.ID,
		ZoneName:     loc.Zone.Name,
		City:         loc.Zone.City,
		State:        loc.Zone.State,
		Deliverable:  loc.Pincode.Deliverable,
		Serviceable:  loc.Serviceable,
		DeliveryDays: loc.Pincode.DeliveryDays,
		CODAvailable: loc.Pincode.CODAvailable,
	}
}
