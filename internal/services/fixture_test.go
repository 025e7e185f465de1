package services

import (
	"context"
	"testing"

	"inventaris/server/internal/errs"
	"inventaris/server/internal/models"
	"inventaris/server/internal/store"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	ctx    context.Context
	store  *store.MemoryStore
	engine *Engine
	gram   *models.BaseUnit
	ml     *models.BaseUnit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{ctx: context.Background(), store: store.NewMemoryStore()}
	f.engine = NewEngine(f.store, EngineOptions{})

	var err error
	if f.gram, err = f.engine.MasterData.CreateBaseUnit(f.ctx, "gram"); err != nil {
		t.Fatalf("create base unit gram: %v", err)
	}
	if f.ml, err = f.engine.MasterData.CreateBaseUnit(f.ctx, "ml"); err != nil {
		t.Fatalf("create base unit ml: %v", err)
	}
	return f
}

func (f *fixture) supplier(t *testing.T, name string) string {
	t.Helper()
	s, err := f.engine.MasterData.CreateSupplier(f.ctx, SupplierInput{Name: name})
	if err != nil {
		t.Fatalf("create supplier %s: %v", name, err)
	}
	return s.ID
}

func (f *fixture) material(t *testing.T, name, baseUnitID, exclusiveSupplierID string) string {
	t.Helper()
	id, err := f.engine.CreateRawMaterial(f.ctx, name, baseUnitID, "", exclusiveSupplierID)
	if err != nil {
		t.Fatalf("create raw material %s: %v", name, err)
	}
	return id
}

func (f *fixture) product(t *testing.T, name string, lines map[string]string) string {
	t.Helper()
	p, err := f.engine.MasterData.CreateFinishedProduct(f.ctx, name, dec("25000"))
	if err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	for materialID, qty := range lines {
		if err := f.engine.UpsertRecipeLine(f.ctx, p.ID, materialID, dec(qty)); err != nil {
			t.Fatalf("add recipe line: %v", err)
		}
	}
	return p.ID
}

// stock приходует qty базовых единиц прямой закупкой без поставщика
func (f *fixture) stock(t *testing.T, materialID, qty string) {
	t.Helper()
	if _, err := f.engine.RecordPurchase(f.ctx, materialID, "", "", dec(qty), dec("1"), models.PurchaseOriginDirect); err != nil {
		t.Fatalf("stock %s: %v", materialID, err)
	}
}

func (f *fixture) level(t *testing.T, materialID string) decimal.Decimal {
	t.Helper()
	m, err := f.store.GetRawMaterial(f.ctx, materialID)
	if err != nil {
		t.Fatalf("get raw material: %v", err)
	}
	return m.StockOnHand
}

func assertKind(t *testing.T, err error, want errs.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := errs.KindOf(err); got != want {
		t.Fatalf("expected %s error, got %s (%v)", want, got, err)
	}
}

func assertLevel(t *testing.T, f *fixture, materialID, want string) {
	t.Helper()
	if got := f.level(t, materialID); !got.Equal(dec(want)) {
		t.Fatalf("stock of %s = %s, want %s", materialID, got, want)
	}
}

