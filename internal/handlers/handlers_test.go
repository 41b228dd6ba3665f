package handlers_test

import (
	"allocation-service/internal/checkout"
	"allocation-service/internal/delivery"
	"allocation-service/internal/dto"
	"allocation-service/internal/handlers"
	"allocation-service/internal/models"
	"allocation-service/internal/reference"
	"allocation-service/internal/router"
	"allocation-service/internal/testutil"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type server struct {
	env    *testutil.Env
	orch   *checkout.Orchestrator
	engine *gin.Engine
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	env := testutil.NewEnv(t)

	cfg := delivery.DefaultConfig()
	cfg.BatchWindow = 5 * time.Millisecond
	svc := delivery.NewService(cfg, delivery.NewCache(cfg.MaxEntries, nil, log), env.Engine, env.Directory, log)

	orch := checkout.NewOrchestrator(env.Engine, env.Reservations, env.Store, nil, nil,
		checkout.Config{PaymentTimeout: time.Minute}, log)
	t.Cleanup(orch.Close)

	importer := reference.NewImporter(env.Store, env.Registry, env.Directory, env.Registry, env.Directory, svc, log)

	r := router.Router(router.Handlers{
		Delivery:  handlers.NewDeliveryHandler(svc, log),
		Checkout:  handlers.NewCheckoutHandler(orch, svc, 5*time.Second, log),
		Warehouse: handlers.NewWarehouseHandler(env.Registry, svc, log),
		Reference: handlers.NewReferenceHandler(importer, log),
	}, log)
	return &server{env: env, orch: orch, engine: r}
}

func (s *server) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s (%d): %v: %s", method, path, w.Code, err, w.Body.String())
		}
	}
	return w.Code
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	var out map[string]string
	if code := s.do(t, http.MethodGet, "/health", nil, &out); code != http.StatusOK {
		t.Fatalf("health status: %d", code)
	}
	if out["status"] != "ok" {
		t.Fatalf("health body: %v", out)
	}
}

func TestDeliveryCheck(t *testing.T) {
	s := newServer(t)
	phone := testutil.SKU(testutil.ProductPhone)
	s.env.SetStock(t, phone, "local-1", 5)

	var out dto.DeliveryCheckResponse
	code := s.do(t, http.MethodPost, "/api/v1/delivery/check", map[string]any{
		"sku_id":  testutil.ProductPhone.String(),
		"pincode": testutil.PincodeBLR,
	}, &out)
	if code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	d := out.Data
	if !out.Success || !d.IsAvailable || d.WarehouseType != "local" || d.FallbackUsed {
		t.Fatalf("unexpected result: %+v", d)
	}
	if d.ZoneName != "Bengaluru" || d.DeliveryDays != 2 {
		t.Fatalf("zone details missing: %+v", d)
	}

	out = dto.DeliveryCheckResponse{}
	s.do(t, http.MethodPost, "/api/v1/delivery/check", map[string]any{
		"sku_id":   testutil.ProductPhone.String(),
		"pincode":  testutil.PincodeBLR,
		"quantity": 6,
	}, &out)
	if out.Data.IsAvailable || out.Data.Reason != "insufficient_stock" {
		t.Fatalf("expected insufficient stock, got %+v", out.Data)
	}
}

func TestDeliveryCheck_Validation(t *testing.T) {
	s := newServer(t)
	cases := []map[string]any{
		{"sku_id": testutil.ProductPhone.String(), "pincode": "012345"},
		{"sku_id": "not-a-uuid", "pincode": testutil.PincodeBLR},
		{"pincode": testutil.PincodeBLR},
		{"sku_id": testutil.ProductPhone.String(), "pincode": testutil.PincodeBLR, "quantity": 0},
	}
	for i, body := range cases {
		var out dto.ErrorResponse
		code := s.do(t, http.MethodPost, "/api/v1/delivery/check", body, &out)
		if code != http.StatusBadRequest || out.Error.Code != "validation_error" || out.Success {
			t.Fatalf("case %d: got %d %+v", i, code, out)
		}
	}
}

func TestDeliveryCheck_CacheInvalidatedByAdjust(t *testing.T) {
	s := newServer(t)
	body := map[string]any{"sku_id": testutil.ProductCase.String(), "pincode": testutil.PincodeMUM}

	var out dto.DeliveryCheckResponse
	s.do(t, http.MethodPost, "/api/v1/delivery/check", body, &out)
	if out.Data.IsAvailable {
		t.Fatalf("nothing stocked yet: %+v", out.Data)
	}

	var stock dto.StockResponse
	code := s.do(t, http.MethodPost, "/api/v1/warehouses/stock/adjust", map[string]any{
		"sku_id": testutil.ProductCase.String(), "warehouse_id": "central-1", "delta": 3,
	}, &stock)
	if code != http.StatusOK || stock.Available != 3 {
		t.Fatalf("adjust: %d %+v", code, stock)
	}

	out = dto.DeliveryCheckResponse{}
	s.do(t, http.MethodPost, "/api/v1/delivery/check", body, &out)
	if !out.Data.IsAvailable || out.Data.WarehouseID != "central-1" || !out.Data.FallbackUsed {
		t.Fatalf("stale availability after adjust: %+v", out.Data)
	}
}

func TestCheckCart(t *testing.T) {
	s := newServer(t)
	s.env.SetStock(t, testutil.SKU(testutil.ProductPhone), "zonal-1", 2)

	var out dto.CartCheckResponse
	code := s.do(t, http.MethodPost, "/api/v1/delivery/check-cart", map[string]any{
		"pincode": testutil.PincodeBLR,
		"items": []map[string]any{
			{"product_id": testutil.ProductPhone.String(), "quantity": 2},
			{"product_id": testutil.ProductCase.String(), "quantity": 1},
		},
	}, &out)
	if code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if out.AllDeliverable || len(out.Items) != 2 {
		t.Fatalf("unexpected cart: %+v", out)
	}
	if len(out.DeliverableProductIDs) != 1 || out.DeliverableProductIDs[0] != testutil.ProductPhone.String() {
		t.Fatalf("deliverable: %v", out.DeliverableProductIDs)
	}
	if len(out.UndeliverableProductIDs) != 1 || out.UndeliverableProductIDs[0] != testutil.ProductCase.String() {
		t.Fatalf("undeliverable: %v", out.UndeliverableProductIDs)
	}
	if out.Items[0].WarehouseType != "zonal" {
		t.Fatalf("first line should come from zonal: %+v", out.Items[0])
	}
}

func TestPincode(t *testing.T) {
	s := newServer(t)

	var ok dto.PincodeResponse
	if code := s.do(t, http.MethodGet, "/api/v1/pincodes/"+testutil.PincodeBLR, nil, &ok); code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if ok.Data.ZoneID != "blr" || !ok.Data.Serviceable || !ok.Data.CODAvailable {
		t.Fatalf("unexpected pincode data: %+v", ok.Data)
	}

	var closed dto.PincodeResponse
	s.do(t, http.MethodGet, "/api/v1/pincodes/"+testutil.PincodeBLRClosed, nil, &closed)
	if closed.Data.Deliverable || closed.Data.Serviceable {
		t.Fatalf("blocked pincode reported as serviceable: %+v", closed.Data)
	}

	var del dto.PincodeResponse
	s.do(t, http.MethodGet, "/api/v1/pincodes/"+testutil.PincodeDEL, nil, &del)
	if !del.Data.Deliverable || del.Data.Serviceable {
		t.Fatalf("zone without warehouses must not be serviceable: %+v", del.Data)
	}

	var missing dto.ErrorResponse
	if code := s.do(t, http.MethodGet, "/api/v1/pincodes/999999", nil, &missing); code != http.StatusNotFound {
		t.Fatalf("unknown pincode: %d", code)
	}
	var bad dto.ErrorResponse
	if code := s.do(t, http.MethodGet, "/api/v1/pincodes/12ab56", nil, &bad); code != http.StatusBadRequest {
		t.Fatalf("malformed pincode: %d", code)
	}
}

func TestCheckoutFlow(t *testing.T) {
	s := newServer(t)
	phone := testutil.SKU(testutil.ProductPhone)
	s.env.SetStock(t, phone, "local-1", 3)

	var res dto.ReserveResponse
	code := s.do(t, http.MethodPost, "/api/v1/checkout/reserve", map[string]any{
		"order_token": "ord-1",
		"pincode":     testutil.PincodeBLR,
		"items":       []map[string]any{{"product_id": testutil.ProductPhone.String(), "quantity": 2}},
	}, &res)
	if code != http.StatusOK || !res.Success || !res.AllReserved {
		t.Fatalf("reserve: %d %+v", code, res)
	}
	if res.State != string(checkout.StateAwaitingPayment) || res.Quote == nil || res.Quote.Total != "1018.00" {
		t.Fatalf("unexpected reserve response: %+v", res)
	}
	if rec := s.env.Stock(t, phone, "local-1"); rec.Reserved != 2 {
		t.Fatalf("reserved: %+v", rec)
	}

	var conflict dto.ErrorResponse
	code = s.do(t, http.MethodPost, "/api/v1/checkout/reserve", map[string]any{
		"order_token": "ord-1",
		"pincode":     testutil.PincodeBLR,
		"items":       []map[string]any{{"product_id": testutil.ProductPhone.String(), "quantity": 1}},
	}, &conflict)
	if code != http.StatusConflict {
		t.Fatalf("duplicate token: %d %+v", code, conflict)
	}

	var pay dto.PaymentResponse
	code = s.do(t, http.MethodPost, "/api/v1/checkout/payment", map[string]any{
		"order_token": "ord-1", "outcome": "success", "payment_reference": "pay-1",
	}, &pay)
	if code != http.StatusOK || pay.State != string(checkout.StateDone) || !pay.Charged || pay.PaidUnfulfilled {
		t.Fatalf("payment: %d %+v", code, pay)
	}
	rec := s.env.Stock(t, phone, "local-1")
	if rec.OnHand != 1 || rec.Reserved != 0 {
		t.Fatalf("stock after confirm: %+v", rec)
	}

	var got dto.AttemptResponse
	if code := s.do(t, http.MethodGet, "/api/v1/checkout/ord-1", nil, &got); code != http.StatusOK {
		t.Fatalf("get attempt: %d", code)
	}
	if got.Data.PaymentReference != "pay-1" || got.Data.State != checkout.StateDone {
		t.Fatalf("attempt snapshot: %+v", got.Data)
	}
}

func TestCheckout_DeclinedReleases(t *testing.T) {
	s := newServer(t)
	phone := testutil.SKU(testutil.ProductPhone)
	s.env.SetStock(t, phone, "zonal-1", 1)

	var res dto.ReserveResponse
	s.do(t, http.MethodPost, "/api/v1/checkout/reserve", map[string]any{
		"order_token": "ord-2",
		"pincode":     testutil.PincodeMUM,
		"items":       []map[string]any{{"product_id": testutil.ProductPhone.String(), "quantity": 1}},
	}, &res)
	if !res.AllReserved {
		t.Fatalf("reserve: %+v", res)
	}

	var pay dto.PaymentResponse
	s.do(t, http.MethodPost, "/api/v1/checkout/payment", map[string]any{
		"order_token": "ord-2", "outcome": "failure",
	}, &pay)
	if pay.State != string(checkout.StateFailed) || pay.Charged || pay.FailureReason != checkout.ReasonPaymentDeclined {
		t.Fatalf("payment: %+v", pay)
	}
	if rec := s.env.Stock(t, phone, "zonal-1"); rec.OnHand != 1 || rec.Reserved != 0 {
		t.Fatalf("hold not released: %+v", rec)
	}
}

func TestCheckout_NotDeliverable(t *testing.T) {
	s := newServer(t)

	var res dto.ReserveResponse
	code := s.do(t, http.MethodPost, "/api/v1/checkout/reserve", map[string]any{
		"order_token": "ord-3",
		"pincode":     testutil.PincodeBLR,
		"items":       []map[string]any{{"product_id": testutil.ProductCharger.String(), "quantity": 1}},
	}, &res)
	if code != http.StatusOK || res.Success || res.FailureReason != checkout.ReasonNotDeliverable {
		t.Fatalf("reserve: %d %+v", code, res)
	}
	if res.ReservationResults[0].Success || res.ReservationResults[0].Reason != "insufficient_stock" {
		t.Fatalf("line result: %+v", res.ReservationResults[0])
	}
}

func TestCheckout_UnknownToken(t *testing.T) {
	s := newServer(t)
	var out dto.ErrorResponse
	code := s.do(t, http.MethodPost, "/api/v1/checkout/payment", map[string]any{
		"order_token": "nope", "outcome": "success",
	}, &out)
	if code != http.StatusNotFound || out.Error.Code != "not_found" {
		t.Fatalf("unknown token: %d %+v", code, out)
	}
	out = dto.ErrorResponse{}
	code = s.do(t, http.MethodPost, "/api/v1/checkout/payment", map[string]any{
		"order_token": "nope", "outcome": "maybe",
	}, &out)
	if code != http.StatusBadRequest {
		t.Fatalf("bad outcome: %d %+v", code, out)
	}
}

func TestConfirm_Untracked(t *testing.T) {
	s := newServer(t)
	phone := testutil.SKU(testutil.ProductPhone)
	s.env.SetStock(t, phone, "central-1", 4)
	if _, err := s.env.Reservations.Reserve(t.Context(), "ord-4", phone, "central-1", 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var out dto.ConfirmResponse
	code := s.do(t, http.MethodPost, "/api/v1/checkout/confirm", map[string]any{
		"order_token": "ord-4",
		"warehouse_assignments": []map[string]any{
			{"product_id": testutil.ProductPhone.String(), "warehouse_id": "central-1", "quantity": 3},
		},
	}, &out)
	if code != http.StatusOK || !out.AllDeducted || !out.Results[0].Deducted {
		t.Fatalf("confirm: %d %+v", code, out)
	}
	if rec := s.env.Stock(t, phone, "central-1"); rec.OnHand != 1 || rec.Reserved != 0 {
		t.Fatalf("stock after confirm: %+v", rec)
	}
}

func TestWarehouseAdmin(t *testing.T) {
	s := newServer(t)
	phone := testutil.SKU(testutil.ProductPhone)
	s.env.SetStock(t, phone, "local-1", 2)
	if _, err := s.env.Reservations.Reserve(t.Context(), "ord-5", phone, "local-1", 2); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var conflict dto.ErrorResponse
	code := s.do(t, http.MethodPost, "/api/v1/warehouses/stock/adjust", map[string]any{
		"sku_id": testutil.ProductPhone.String(), "warehouse_id": "local-1", "delta": -1,
	}, &conflict)
	if code != http.StatusConflict {
		t.Fatalf("adjust below reserved: %d %+v", code, conflict)
	}

	var missing dto.ErrorResponse
	code = s.do(t, http.MethodPost, "/api/v1/warehouses/stock/adjust", map[string]any{
		"sku_id": testutil.ProductPhone.String(), "warehouse_id": "nowhere", "delta": 1,
	}, &missing)
	if code != http.StatusNotFound {
		t.Fatalf("unknown warehouse: %d", code)
	}

	var dash dto.DashboardResponse
	if code := s.do(t, http.MethodGet, "/api/v1/warehouses/dashboard?warehouse_id=local-1", nil, &dash); code != http.StatusOK {
		t.Fatalf("dashboard: %d", code)
	}
	if len(dash.Data) != 1 || dash.Data[0].Reserved != 2 || dash.Data[0].Available != 0 {
		t.Fatalf("dashboard rows: %+v", dash.Data)
	}

	var moves dto.MovementsResponse
	if code := s.do(t, http.MethodGet, "/api/v1/warehouses/movements?warehouse_id=local-1&limit=10", nil, &moves); code != http.StatusOK {
		t.Fatalf("movements: %d", code)
	}
	if len(moves.Data) != 2 {
		t.Fatalf("expected adjust and reserve movements, got %d", len(moves.Data))
	}
	var bad dto.ErrorResponse
	if code := s.do(t, http.MethodGet, "/api/v1/warehouses/movements?limit=abc", nil, &bad); code != http.StatusBadRequest {
		t.Fatalf("bad limit: %d", code)
	}
}

func TestReferenceImport(t *testing.T) {
	s := newServer(t)

	var bad dto.ErrorResponse
	code := s.do(t, http.MethodPost, "/api/v1/reference/import", map[string]any{
		"pincodes": []map[string]any{{"pincode": "012345", "zone_id": "blr"}},
	}, &bad)
	if code != http.StatusBadRequest {
		t.Fatalf("bad pincode import: %d %+v", code, bad)
	}

	var out dto.ImportResponse
	code = s.do(t, http.MethodPost, "/api/v1/reference/import", map[string]any{
		"zones":    []map[string]any{{"zone_id": "chn", "zone_name": "Chennai", "city": "Chennai", "state": "Tamil Nadu"}},
		"pincodes": []map[string]any{{"pincode": "600001", "zone_id": "chn", "deliverable": true, "delivery_days": 3}},
		"warehouses": []map[string]any{
			{"id": "local-3", "name": "Chennai Local", "type": "local", "is_active": true, "zones": []map[string]any{{"zone_id": "chn"}}},
		},
	}, &out)
	if code != http.StatusOK || out.Zones != 1 || out.Pincodes != 1 || out.Warehouses != 1 {
		t.Fatalf("import: %d %+v", code, out)
	}
	found := false
	for _, z := range out.MissingCentral {
		if z == "chn" {
			found = true
		}
	}
	if !found {
		t.Fatalf("chn has no central warehouse, got %v", out.MissingCentral)
	}

	var pin dto.PincodeResponse
	if code := s.do(t, http.MethodGet, "/api/v1/pincodes/600001", nil, &pin); code != http.StatusOK {
		t.Fatalf("imported pincode: %d", code)
	}
	if !pin.Data.Serviceable || pin.Data.ZoneName != "Chennai" {
		t.Fatalf("imported pincode data: %+v", pin.Data)
	}
}

func TestReferenceImport_OmittedFlagsAreEnabled(t *testing.T) {
	s := newServer(t)

	var out dto.ImportResponse
	code := s.do(t, http.MethodPost, "/api/v1/reference/import", map[string]any{
		"zones":    []map[string]any{{"zone_id": "chn", "zone_name": "Chennai"}},
		"pincodes": []map[string]any{{"pincode": "600001", "zone_id": "chn"}},
		"warehouses": []map[string]any{
			{"id": "central-9", "name": "Chennai Central", "type": "central", "zones": []map[string]any{{"zone_id": "chn"}}},
		},
	}, &out)
	if code != http.StatusOK {
		t.Fatalf("import: %d %+v", code, out)
	}
	for _, z := range out.MissingCentral {
		if z == "chn" {
			t.Fatalf("central-9 should cover chn: %v", out.MissingCentral)
		}
	}

	var stock dto.StockResponse
	code = s.do(t, http.MethodPost, "/api/v1/warehouses/stock/adjust", map[string]any{
		"sku_id": testutil.ProductCase.String(), "warehouse_id": "central-9", "delta": 10,
	}, &stock)
	if code != http.StatusOK {
		t.Fatalf("adjust: %d %+v", code, stock)
	}

	var check dto.DeliveryCheckResponse
	s.do(t, http.MethodPost, "/api/v1/delivery/check", map[string]any{
		"sku_id": testutil.ProductCase.String(), "pincode": "600001",
	}, &check)
	if !check.Data.IsAvailable || check.Data.WarehouseID != "central-9" {
		t.Fatalf("omitted flags should leave pincode and warehouse enabled: %+v", check.Data)
	}
}

func TestDeliveryCheckBatch(t *testing.T) {
	s := newServer(t)
	s.env.SetStock(t, testutil.SKU(testutil.ProductPhone), "local-1", 2)
	s.env.SetStock(t, testutil.SKU(testutil.ProductCase), "central-1", 5)

	var out dto.BatchCheckResponse
	code := s.do(t, http.MethodPost, "/api/v1/delivery/check-batch", map[string]any{
		"items": []map[string]any{
			{"sku_id": testutil.ProductPhone.String(), "pincode": testutil.PincodeBLR, "quantity": 2},
			{"sku_id": testutil.ProductCase.String(), "pincode": testutil.PincodeMUM},
			{"sku_id": testutil.ProductPhone.String(), "pincode": testutil.PincodeDEL},
		},
	}, &out)
	if code != http.StatusOK || len(out.Data) != 3 {
		t.Fatalf("batch: %d %+v", code, out)
	}
	if d := out.Data[0]; !d.IsAvailable || d.WarehouseID != "local-1" || d.Quantity != 2 || d.Pincode != testutil.PincodeBLR {
		t.Fatalf("item 0: %+v", d)
	}
	if d := out.Data[1]; !d.IsAvailable || d.WarehouseID != "central-1" || !d.FallbackUsed || d.Quantity != 1 {
		t.Fatalf("item 1: %+v", d)
	}
	if d := out.Data[2]; d.IsAvailable || d.Reason != "insufficient_stock" {
		t.Fatalf("item 2: %+v", d)
	}

	var bad dto.ErrorResponse
	code = s.do(t, http.MethodPost, "/api/v1/delivery/check-batch", map[string]any{
		"items": []map[string]any{
			{"sku_id": testutil.ProductPhone.String(), "pincode": testutil.PincodeBLR},
			{"sku_id": "nope", "pincode": testutil.PincodeBLR},
		},
	}, &bad)
	if code != http.StatusBadRequest || bad.Error.Code != "validation_error" {
		t.Fatalf("bad item must reject the batch: %d %+v", code, bad)
	}

	bad = dto.ErrorResponse{}
	if code := s.do(t, http.MethodPost, "/api/v1/delivery/check-batch", map[string]any{"items": []any{}}, &bad); code != http.StatusBadRequest {
		t.Fatalf("empty batch: %d %+v", code, bad)
	}
}

func TestPincodeProducts(t *testing.T) {
	s := newServer(t)
	s.env.SetStock(t, testutil.SKU(testutil.ProductPhone), "zonal-1", 3)
	s.env.SetStock(t, testutil.SKU(testutil.ProductCase), "local-1", 1)

	var out dto.PincodeProductsResponse
	if code := s.do(t, http.MethodGet, "/api/v1/pincodes/"+testutil.PincodeBLR+"/products", nil, &out); code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if out.Count != 2 || len(out.Data) != 2 {
		t.Fatalf("expected two products, got %+v", out)
	}
	byProduct := map[string]dto.PincodeProduct{}
	for _, p := range out.Data {
		byProduct[p.ProductID] = p
	}
	if p := byProduct[testutil.ProductPhone.String()]; p.WarehouseID != "zonal-1" || p.Available != 3 || !p.FallbackUsed {
		t.Fatalf("phone: %+v", p)
	}
	if p := byProduct[testutil.ProductCase.String()]; p.WarehouseID != "local-1" || p.FallbackUsed {
		t.Fatalf("case: %+v", p)
	}

	// del не обслуживает ни один склад
	out = dto.PincodeProductsResponse{}
	if code := s.do(t, http.MethodGet, "/api/v1/pincodes/"+testutil.PincodeDEL+"/products", nil, &out); code != http.StatusOK || out.Count != 0 || out.Data == nil {
		t.Fatalf("del: %d %+v", code, out)
	}

	var missing dto.ErrorResponse
	if code := s.do(t, http.MethodGet, "/api/v1/pincodes/"+testutil.PincodeBLRClosed+"/products", nil, &missing); code != http.StatusNotFound {
		t.Fatalf("blocked pincode: %d", code)
	}
}

func TestWarehouseStockList(t *testing.T) {
	s := newServer(t)
	phone := testutil.SKU(testutil.ProductPhone)
	variant := models.NewSKU(testutil.ProductPhone, &testutil.VariantPhone)
	s.env.SetStock(t, phone, "local-1", 2)
	s.env.SetStock(t, phone, "central-1", 7)
	s.env.SetStock(t, variant, "zonal-1", 1)
	s.env.SetStock(t, testutil.SKU(testutil.ProductCase), "central-1", 4)
	if _, err := s.env.Reservations.Reserve(t.Context(), "ord-9", variant, "zonal-1", 1); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var byProduct dto.StockListResponse
	if code := s.do(t, http.MethodGet, "/api/v1/warehouses/stock?product_id="+testutil.ProductPhone.String(), nil, &byProduct); code != http.StatusOK {
		t.Fatalf("status: %d", code)
	}
	if len(byProduct.Data) != 3 {
		t.Fatalf("product plus variant rows: %+v", byProduct.Data)
	}

	var inStock dto.StockListResponse
	s.do(t, http.MethodGet, "/api/v1/warehouses/stock?product_id="+testutil.ProductPhone.String()+"&in_stock=true", nil, &inStock)
	if len(inStock.Data) != 2 {
		t.Fatalf("reserved variant must drop out: %+v", inStock.Data)
	}

	var central dto.StockListResponse
	s.do(t, http.MethodGet, "/api/v1/warehouses/stock?warehouse_id=central-1", nil, &central)
	if len(central.Data) != 2 {
		t.Fatalf("central rows: %+v", central.Data)
	}
	for _, r := range central.Data {
		if r.WarehouseID != "central-1" || r.Available != r.OnHand-r.Reserved {
			t.Fatalf("row: %+v", r)
		}
	}

	var bad dto.ErrorResponse
	if code := s.do(t, http.MethodGet, "/api/v1/warehouses/stock?product_id=abc", nil, &bad); code != http.StatusBadRequest {
		t.Fatalf("bad product id: %d", code)
	}
	if code := s.do(t, http.MethodGet, "/api/v1/warehouses/stock?warehouse_id=nowhere", nil, &bad); code != http.StatusNotFound {
		t.Fatalf("unknown warehouse: %d", code)
	}
}

func TestCheckout_ShuttingDownIsUnavailable(t *testing.T) {
	s := newServer(t)
	s.env.SetStock(t, testutil.SKU(testutil.ProductPhone), "local-1", 1)
	s.orch.Close()

	var out dto.ErrorResponse
	code := s.do(t, http.MethodPost, "/api/v1/checkout/reserve", map[string]any{
		"order_token": "ord-shutdown",
		"pincode":     testutil.PincodeBLR,
		"items":       []map[string]any{{"product_id": testutil.ProductPhone.String(), "quantity": 1}},
	}, &out)
	if code != http.StatusServiceUnavailable || out.Error.Code != "storage_unavailable" {
		t.Fatalf("expected 503 storage_unavailable, got %d %+v", code, out)
	}
}
