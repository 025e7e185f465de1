package services

import (
	"sync"
	"sync/atomic"
	"testing"

	"inventaris/server/internal/errs"
)

func TestRecordSaleConsumesRecipe(t *testing.T) {
	f := newFixture(t)
	a := f.material(t, "tepung", f.gram.ID, "")
	b := f.material(t, "susu", f.ml.ID, "")
	roti := f.product(t, "roti", map[string]string{a: "50", b: "5"})
	f.stock(t, a, "500")
	f.stock(t, b, "60")

	max, err := f.engine.GetMaxProducible(f.ctx, roti)
	if err != nil {
		t.Fatalf("GetMaxProducible: %v", err)
	}
	if max != 10 {
		t.Fatalf("GetMaxProducible = %d, want 10", max)
	}

	if _, err := f.engine.RecordSale(f.ctx, roti, 3); err != nil {
		t.Fatalf("RecordSale: %v", err)
	}
	assertLevel(t, f, a, "350")
	assertLevel(t, f, b, "45")

	if max, _ := f.engine.GetMaxProducible(f.ctx, roti); max != 7 {
		t.Fatalf("GetMaxProducible after sale = %d, want 7", max)
	}
}

func TestRecordSaleExhaustion(t *testing.T) {
	f := newFixture(t)
	a := f.material(t, "tepung", f.gram.ID, "")
	b := f.material(t, "susu", f.ml.ID, "")
	roti := f.product(t, "roti", map[string]string{a: "50", b: "5"})
	f.stock(t, a, "500")
	f.stock(t, b, "60")

	if _, err := f.engine.RecordSale(f.ctx, roti, 10); err != nil {
		t.Fatalf("RecordSale(10): %v", err)
	}
	assertLevel(t, f, a, "0")
	assertLevel(t, f, b, "10")

	_, err := f.engine.RecordSale(f.ctx, roti, 1)
	assertKind(t, err, errs.KindInsufficientStock)
	stockErr := err.(*errs.InsufficientStockError)
	if stockErr.RawMaterialID != a {
		t.Fatalf("shortage reported for %s, want %s", stockErr.RawMaterialID, a)
	}

	// Отказ не меняет остатки и не пишет движений
	assertLevel(t, f, a, "0")
	assertLevel(t, f, b, "10")
	history, err := f.engine.Ledger.History(f.ctx, b, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("movements for %s = %d, want 2 (purchase + one sale)", b, len(history))
	}
}

func TestRecordSaleRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	a := f.material(t, "tepung", f.gram.ID, "")
	roti := f.product(t, "roti", map[string]string{a: "50"})
	empty := f.product(t, "kosong", nil)

	tests := []struct {
		name      string
		productID string
		quantity  int64
		want      errs.Kind
	}{
		{"zero quantity", roti, 0, errs.KindValidation},
		{"negative quantity", roti, -2, errs.KindValidation},
		{"missing product id", "", 1, errs.KindValidation},
		{"unknown product", "nope", 1, errs.KindNotFound},
		{"product without recipe", empty, 1, errs.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.RecordSale(f.ctx, tt.productID, tt.quantity)
			assertKind(t, err, tt.want)
		})
	}
}

func TestConcurrentSalesNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	a := f.material(t, "tepung", f.gram.ID, "")
	b := f.material(t, "susu", f.ml.ID, "")
	roti := f.product(t, "roti", map[string]string{a: "50", b: "5"})
	f.stock(t, a, "1000") // хватает на 20
	f.stock(t, b, "500")  // хватает на 100

	var (
		wg        sync.WaitGroup
		succeeded int64
		rejected  int64
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.RecordSale(f.ctx, roti, 1)
			switch {
			case err == nil:
				atomic.AddInt64(&succeeded, 1)
			case errs.KindOf(err) == errs.KindInsufficientStock:
				atomic.AddInt64(&rejected, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 20 || rejected != 30 {
		t.Fatalf("succeeded=%d rejected=%d, want 20/30", succeeded, rejected)
	}
	assertLevel(t, f, a, "0")
	assertLevel(t, f, b, "400")
}
