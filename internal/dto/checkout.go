package dto

import (
	"allocation-service/internal/checkout"
	"time"
)

type ReserveRequest struct {
	OrderToken string     `json:"order_token" binding:"required"`
	Pincode    string     `json:"pincode" binding:"required"`
	Items      []CartItem `json:"items" binding:"required"`
}

type ReservationResult struct {
	ProductID     string `json:"product_id"`
	VariantID     string `json:"variant_id,omitempty"`
	WarehouseID   string `json:"warehouse_id,omitempty"`
	Quantity      int64  `json:"quantity"`
	Success       bool   `json:"success"`
	ReservationID string `json:"reservation_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type QuoteData struct {
	Subtotal string `json:"subtotal"`
	Shipping string `json:"shipping"`
	Total    string `json:"total"`
}

type ReserveResponse struct {
	Success            bool                `json:"success"`
	OrderToken         string              `json:"order_token"`
	State              string              `json:"state"`
	AllReserved        bool                `json:"all_reserved"`
	FailureReason      string              `json:"failure_reason,omitempty"`
	ReservationResults []ReservationResult `json:"reservation_results"`
	Quote              *QuoteData          `json:"quote,omitempty"`
	PaymentDeadline    *time.Time          `json:"payment_deadline,omitempty"`
}

type WarehouseAssignment struct {
	ProductID   string `json:"product_id" binding:"required"`
	VariantID   string `json:"variant_id,omitempty"`
	WarehouseID string `json:"warehouse_id" binding:"required"`
	Quantity    int64  `json:"quantity"`
}

type ConfirmRequest struct {
	OrderToken           string                `json:"order_token" binding:"required"`
	WarehouseAssignments []WarehouseAssignment `json:"warehouse_assignments" binding:"required"`
}

type AssignmentResult struct {
	ProductID     string `json:"product_id"`
	VariantID     string `json:"variant_id,omitempty"`
	WarehouseID   string `json:"warehouse_id"`
	Quantity      int64  `json:"quantity"`
	Deducted      bool   `json:"deducted"`
	ReservationID string `json:"reservation_id,omitempty"`
}

type ConfirmResponse struct {
	Success     bool               `json:"success"`
	AllDeducted bool               `json:"all_deducted"`
	Results     []AssignmentResult `json:"results"`
}

type PaymentRequest struct {
	OrderToken       string `json:"order_token" binding:"required"`
	Outcome          string `json:"outcome" binding:"required"`
	PaymentReference string `json:"payment_reference,omitempty"`
}

type PaymentResponse struct {
	Success         bool   `json:"success"`
	OrderToken      string `json:"order_token"`
	State           string `json:"state"`
	Charged         bool   `json:"charged"`
	PaidUnfulfilled bool   `json:"paid_unfulfilled"`
	FailureReason   string `json:"failure_reason,omitempty"`
}

type AttemptResponse struct {
	Success bool             `json:"success"`
	Data    checkout.Attempt `json:"data"`
}

func (a WarehouseAssignment) Assignment() (checkout.Assignment, error) {
	sku, err := ParseSKU("product_id", a.ProductID, a.VariantID)
	if err != nil {
		return checkout.Assignment{}, err
	}
	return checkout.Assignment{SKU: sku, WarehouseID: a.WarehouseID, Quantity: a.Quantity}, nil
}

func NewReserveResponse(a checkout.Attempt) ReserveResponse {
	resp := ReserveResponse{
		Success:            a.State != checkout.StateFailed,
		OrderToken:         a.OrderToken,
		State:              string(a.State),
		AllReserved:        a.AllReserved(),
		FailureReason:      a.FailureReason,
		ReservationResults: make([]ReservationResult, 0, len(a.Lines)),
	}
	for _, l := range a.Lines {
		r := ReservationResult{
			ProductID:   l.SKU.ProductID.String(),
			WarehouseID: l.WarehouseID,
			Quantity:    l.Quantity,
			Success:     l.Reserved,
			Reason:      string(l.Reason),
		}
		if l.SKU.HasVariant() {
			r.VariantID = l.SKU.VariantID.String()
		}
		if l.ReservationID != nil {
			r.ReservationID = l.ReservationID.String()
		}
		resp.ReservationResults = append(resp.ReservationResults, r)
	}
	if a.Quote != nil {
		resp.Quote = &QuoteData{
			Subtotal: a.Quote.Subtotal.StringFixed(2),
			Shipping: a.Quote.Shipping.StringFixed(2),
			Total:    a.Quote.Total.StringFixed(2),
		}
	}
	if !a.Deadline.IsZero() {
		d := a.Deadline
		resp.PaymentDeadline = &d
	}
	return resp
}

func NewConfirmResponse(res checkout.ConfirmResult) ConfirmResponse {
	out := ConfirmResponse{
		Success:     res.AllDeducted,
		AllDeducted: res.AllDeducted,
		Results:     make([]AssignmentResult, 0, len(res.Results)),
	}
	for _, r := range res.Results {
		ar := AssignmentResult{
			ProductID:   r.SKU.ProductID.String(),
			WarehouseID: r.WarehouseID,
			Quantity:    r.Quantity,
			Deducted:    r.Deducted,
		}
		if r.SKU.HasVariant() {
			ar.VariantID = r.SKU.VariantID.String()
		}
		if r.ReservationID != nil {
			ar.ReservationID = r.ReservationID.String()
		}
		out.Results = append(out.Results, ar)
	}
	return out
}

func NewPaymentResponse(a checkout.Attempt) PaymentResponse {
	return PaymentResponse{
		Success:         a.State == checkout.StateDone,
		OrderToken:      a.OrderToken,
		State:           string(a.State),
		Charged:         a.Charged,
		PaidUnfulfilled: a.PaidUnfulfilled,
		FailureReason:   a.FailureReason,
	}
}
