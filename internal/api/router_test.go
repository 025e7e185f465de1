package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"inventaris/server/internal/services"
	"inventaris/server/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := services.NewEngine(store.NewMemoryStore(), services.EngineOptions{})
	return NewRouter(engine, RouterOptions{})
}

// do выполняет запрос и раскладывает JSON ответа в out (если out != nil)
func do(t *testing.T, r http.Handler, method, path string, body interface{}, wantStatus int, out interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != wantStatus {
		t.Fatalf("%s %s: status %d, want %d, body %s", method, path, w.Code, wantStatus, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode response: %v (%s)", method, path, err, w.Body.String())
		}
	}
}

type idResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func create(t *testing.T, r http.Handler, path string, body interface{}) string {
	t.Helper()
	var resp idResponse
	do(t, r, http.MethodPost, path, body, http.StatusCreated, &resp)
	if resp.ID == "" {
		t.Fatalf("POST %s returned empty id", path)
	}
	return resp.ID
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)
	var resp map[string]string
	do(t, r, http.MethodGet, "/api/v1/health", nil, http.StatusOK, &resp)
	if resp["status"] != "ok" {
		t.Fatalf("health status = %q", resp["status"])
	}
}

func TestPurchaseSaleCapacityFlow(t *testing.T) {
	r := newTestRouter(t)

	ml := create(t, r, "/api/v1/base-units", gin.H{"name": "ml"})
	saus := create(t, r, "/api/v1/raw-materials", gin.H{"name": "saus tomat", "base_unit_id": ml})
	carton := create(t, r, "/api/v1/packaging-units", gin.H{"name": "karton", "base_unit_id": ml, "label": "dus 12 x 500 ml"})

	var purchase struct {
		QuantityBaseUnits decimal.Decimal `json:"quantity_base_units"`
		TotalPrice        decimal.Decimal `json:"total_price"`
	}
	do(t, r, http.MethodPost, "/api/v1/purchases", gin.H{
		"raw_material_id":   saus,
		"packaging_unit_id": carton,
		"quantity":          "2",
		"unit_price":        "90000",
	}, http.StatusCreated, &purchase)
	if !purchase.QuantityBaseUnits.Equal(decimal.NewFromInt(12000)) {
		t.Fatalf("quantity_base_units = %s, want 12000", purchase.QuantityBaseUnits)
	}
	if !purchase.TotalPrice.Equal(decimal.NewFromInt(180000)) {
		t.Fatalf("total_price = %s, want 180000", purchase.TotalPrice)
	}

	pizza := create(t, r, "/api/v1/products", gin.H{"name": "pizza", "sell_price": "45000"})
	do(t, r, http.MethodPost, "/api/v1/products/"+pizza+"/recipe", gin.H{
		"raw_material_id":            saus,
		"quantity_required_per_unit": "150",
	}, http.StatusCreated, nil)

	var capacity services.CapacityResult
	do(t, r, http.MethodGet, "/api/v1/products/"+pizza+"/capacity", nil, http.StatusOK, &capacity)
	if capacity.MaxProducible != 80 {
		t.Fatalf("max_producible = %d, want 80", capacity.MaxProducible)
	}

	do(t, r, http.MethodPost, "/api/v1/sales", gin.H{"product_id": pizza, "quantity_sold": 30}, http.StatusCreated, nil)
	do(t, r, http.MethodGet, "/api/v1/products/"+pizza+"/capacity", nil, http.StatusOK, &capacity)
	if capacity.MaxProducible != 50 {
		t.Fatalf("max_producible after sale = %d, want 50", capacity.MaxProducible)
	}

	var material struct {
		StockOnHand decimal.Decimal `json:"stock_on_hand"`
	}
	do(t, r, http.MethodGet, "/api/v1/raw-materials/"+saus, nil, http.StatusOK, &material)
	if !material.StockOnHand.Equal(decimal.NewFromInt(7500)) {
		t.Fatalf("stock_on_hand = %s, want 7500", material.StockOnHand)
	}

	var history struct {
		Count int `json:"count"`
	}
	do(t, r, http.MethodGet, "/api/v1/raw-materials/"+saus+"/movements?limit=10", nil, http.StatusOK, &history)
	if history.Count != 2 {
		t.Fatalf("movements count = %d, want 2", history.Count)
	}
}

func TestErrorMapping(t *testing.T) {
	r := newTestRouter(t)

	gram := create(t, r, "/api/v1/base-units", gin.H{"name": "gram"})
	ml := create(t, r, "/api/v1/base-units", gin.H{"name": "ml"})
	official := create(t, r, "/api/v1/suppliers", gin.H{"name": "PT Resmi"})
	other := create(t, r, "/api/v1/suppliers", gin.H{"name": "Toko Lain"})
	keju := create(t, r, "/api/v1/raw-materials", gin.H{"name": "keju", "base_unit_id": gram, "exclusive_supplier_id": official})
	bottle := create(t, r, "/api/v1/packaging-units", gin.H{"name": "botol", "base_unit_id": ml, "conversion_factor": "1000"})
	roti := create(t, r, "/api/v1/products", gin.H{"name": "roti"})
	do(t, r, http.MethodPost, "/api/v1/products/"+roti+"/recipe", gin.H{
		"raw_material_id": keju, "quantity_required_per_unit": "100",
	}, http.StatusCreated, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       interface{}
		wantStatus int
		wantKind   string
	}{
		{
			name:       "malformed body",
			method:     http.MethodPost,
			path:       "/api/v1/raw-materials",
			body:       gin.H{"name": "tanpa satuan"},
			wantStatus: http.StatusBadRequest,
			wantKind:   "validation_error",
		},
		{
			name:       "unknown raw material",
			method:     http.MethodGet,
			path:       "/api/v1/raw-materials/missing",
			wantStatus: http.StatusNotFound,
			wantKind:   "not_found",
		},
		{
			name:       "purchase from non-exclusive supplier",
			method:     http.MethodPost,
			path:       "/api/v1/purchases",
			body:       gin.H{"raw_material_id": keju, "supplier_id": other, "quantity": "1000", "unit_price": "100"},
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "exclusive_supplier_violation",
		},
		{
			name:       "packaging of another base unit",
			method:     http.MethodPost,
			path:       "/api/v1/purchases",
			body:       gin.H{"raw_material_id": keju, "supplier_id": official, "packaging_unit_id": bottle, "quantity": "1", "unit_price": "100"},
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   "unit_mismatch",
		},
		{
			name:       "sale without stock",
			method:     http.MethodPost,
			path:       "/api/v1/sales",
			body:       gin.H{"product_id": roti, "quantity_sold": 1},
			wantStatus: http.StatusConflict,
			wantKind:   "insufficient_stock",
		},
		{
			name:       "duplicate recipe line",
			method:     http.MethodPost,
			path:       "/api/v1/products/" + roti + "/recipe",
			body:       gin.H{"raw_material_id": keju, "quantity_required_per_unit": "50"},
			wantStatus: http.StatusConflict,
			wantKind:   "duplicate_recipe_line",
		},
		{
			name:       "negative adjustment below zero",
			method:     http.MethodPost,
			path:       "/api/v1/raw-materials/" + keju + "/adjustments",
			body:       gin.H{"delta": "-1"},
			wantStatus: http.StatusConflict,
			wantKind:   "insufficient_stock",
		},
		{
			name:       "bad movements limit",
			method:     http.MethodGet,
			path:       "/api/v1/raw-materials/" + keju + "/movements?limit=abc",
			wantStatus: http.StatusBadRequest,
			wantKind:   "validation_error",
		},
		{
			name:       "zero sale quantity",
			method:     http.MethodPost,
			path:       "/api/v1/sales",
			body:       gin.H{"product_id": roti, "quantity_sold": 0},
			wantStatus: http.StatusBadRequest,
			wantKind:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp errorResponse
			do(t, r, tt.method, tt.path, tt.body, tt.wantStatus, &resp)
			if resp.Error != tt.wantKind {
				t.Fatalf("error = %q, want %q (%s)", resp.Error, tt.wantKind, resp.Details)
			}
			if resp.Details == "" {
				t.Fatal("details must not be empty")
			}
		})
	}
}

func TestAccountabilityEndpoint(t *testing.T) {
	r := newTestRouter(t)

	gram := create(t, r, "/api/v1/base-units", gin.H{"name": "gram"})
	official := create(t, r, "/api/v1/suppliers", gin.H{"name": "PT Resmi"})
	garam := create(t, r, "/api/v1/raw-materials", gin.H{"name": "garam", "base_unit_id": gram})
	keju := create(t, r, "/api/v1/raw-materials", gin.H{"name": "keju", "base_unit_id": gram, "exclusive_supplier_id": official})

	var report services.AccountabilityReport
	do(t, r, http.MethodGet, "/api/v1/raw-materials/"+garam+"/accountability", nil, http.StatusOK, &report)
	if report.Status != services.StatusNoExclusiveSupplier {
		t.Fatalf("status = %s, want %s", report.Status, services.StatusNoExclusiveSupplier)
	}

	reservation := create(t, r, "/api/v1/reservations", gin.H{"raw_material_id": keju, "supplier_id": official, "quantity": "500"})
	do(t, r, http.MethodPost, "/api/v1/purchases", gin.H{
		"raw_material_id": keju,
		"supplier_id":     official,
		"quantity":        "500",
		"unit_price":      "120",
		"origin":          "from_reservation",
	}, http.StatusCreated, nil)

	do(t, r, http.MethodGet, "/api/v1/raw-materials/"+keju+"/accountability", nil, http.StatusOK, &report)
	if report.Status != services.StatusAccountable {
		t.Fatalf("status = %s, want %s", report.Status, services.StatusAccountable)
	}
	if report.OpenReservations != 0 {
		t.Fatalf("open reservations = %d, want 0", report.OpenReservations)
	}

	var resp errorResponse
	do(t, r, http.MethodPost, "/api/v1/reservations/"+reservation+"/cancel", nil, http.StatusBadRequest, &resp)
	if resp.Error != "validation_error" {
		t.Fatalf("cancel fulfilled reservation error = %q", resp.Error)
	}
}

func TestViolationAfterExclusivityChange(t *testing.T) {
	r := newTestRouter(t)

	gram := create(t, r, "/api/v1/base-units", gin.H{"name": "gram"})
	ml := create(t, r, "/api/v1/base-units", gin.H{"name": "ml"})
	official := create(t, r, "/api/v1/suppliers", gin.H{"name": "PT Resmi"})
	other := create(t, r, "/api/v1/suppliers", gin.H{"name": "CV Lain"})
	keju := create(t, r, "/api/v1/raw-materials", gin.H{"name": "keju", "base_unit_id": gram})

	do(t, r, http.MethodPost, "/api/v1/purchases", gin.H{
		"raw_material_id": keju,
		"supplier_id":     other,
		"quantity":        "250",
		"unit_price":      "90",
	}, http.StatusCreated, nil)

	var material struct {
		ExclusiveSupplierID *string         `json:"exclusive_supplier_id"`
		BaseUnitID          string          `json:"base_unit_id"`
		StockOnHand         decimal.Decimal `json:"stock_on_hand"`
	}
	do(t, r, http.MethodPut, "/api/v1/raw-materials/"+keju, gin.H{"exclusive_supplier_id": official}, http.StatusOK, &material)
	if material.ExclusiveSupplierID == nil || *material.ExclusiveSupplierID != official {
		t.Fatalf("exclusive supplier = %v, want %s", material.ExclusiveSupplierID, official)
	}
	if material.BaseUnitID != gram || !material.StockOnHand.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("material after update = %+v", material)
	}

	var report services.AccountabilityReport
	do(t, r, http.MethodGet, "/api/v1/raw-materials/"+keju+"/accountability", nil, http.StatusOK, &report)
	if report.Status != services.StatusViolationDetected {
		t.Fatalf("status = %s, want %s", report.Status, services.StatusViolationDetected)
	}
	if report.NonExclusive.Count != 1 || report.Exclusive.Count != 0 {
		t.Fatalf("buckets = %d exclusive / %d other", report.Exclusive.Count, report.NonExclusive.Count)
	}

	var resp errorResponse
	do(t, r, http.MethodPut, "/api/v1/raw-materials/"+keju, gin.H{"base_unit_id": ml}, http.StatusBadRequest, &resp)
	if resp.Error != "validation_error" {
		t.Fatalf("base unit change error = %q", resp.Error)
	}
	do(t, r, http.MethodPut, "/api/v1/raw-materials/missing", gin.H{"name": "x"}, http.StatusNotFound, &resp)
}
