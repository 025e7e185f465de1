package services

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"inventaris/server/internal/errs"
	"inventaris/server/internal/models"
	"inventaris/server/internal/store"

	"github.com/xuri/excelize/v2"
)

// buildXLSX собирает книгу из строк, начиная с A1
func buildXLSX(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return buf
}

func TestImportInvoiceRowsIndependently(t *testing.T) {
	f := newFixture(t)
	official := f.supplier(t, "PT Resmi")
	other := f.supplier(t, "Toko Lain")
	tepung := f.material(t, "Tepung Terigu", f.gram.ID, "")
	keju := f.material(t, "Keju", f.gram.ID, official)
	saus := f.material(t, "Saus Tomat", f.ml.ID, "")
	carton, err := f.engine.CreatePackagingUnit(f.ctx, "karton", f.ml.ID, dec("6000"))
	if err != nil {
		t.Fatalf("CreatePackagingUnit: %v", err)
	}

	file := buildXLSX(t, [][]interface{}{
		{"Faktur pembelian"},
		{"Bahan", "Kemasan", "Jumlah", "Harga", "Supplier_ID"},
		{"tepung terigu", "", "1,5", "12000", ""},
		{keju, "", "200", "100", other},
		{},
		{saus, carton, "2", "90000", ""},
		{"garam laut", "", "1", "1", ""},
		{tepung, "", "abc", "1", ""},
		{tepung, "", "", "1", ""},
	})

	result, err := f.engine.Imports.ImportXLSX(f.ctx, file, official)
	if err != nil {
		t.Fatalf("ImportXLSX: %v", err)
	}
	if result.Imported != 2 || result.Failed != 3 {
		t.Fatalf("imported/failed = %d/%d, want 2/3 (%+v)", result.Imported, result.Failed, result.Rows)
	}

	wantKinds := map[int]string{
		3: "",
		4: string(errs.KindExclusiveSupplier),
		6: "",
		7: string(errs.KindNotFound),
		8: string(errs.KindValidation),
	}
	for _, row := range result.Rows {
		want, ok := wantKinds[row.Row]
		if !ok {
			t.Fatalf("unexpected row %d in result", row.Row)
		}
		if row.Error != want {
			t.Fatalf("row %d error = %q, want %q (%s)", row.Row, row.Error, want, row.Details)
		}
	}

	assertLevel(t, f, tepung, "1.5")
	assertLevel(t, f, keju, "0")
	assertLevel(t, f, saus, "12000")
}

func TestImportInvoiceRejectsUnreadableFiles(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Imports.ImportXLSX(f.ctx, bytes.NewReader([]byte("not a workbook")), "")
	assertKind(t, err, errs.KindValidation)

	noHeader := buildXLSX(t, [][]interface{}{
		{"nama", "catatan"},
		{"tepung", "-"},
	})
	_, err = f.engine.Imports.ImportXLSX(f.ctx, noHeader, "")
	assertKind(t, err, errs.KindValidation)
}

func TestExportedStockSheetIsAnInvoiceTemplate(t *testing.T) {
	f := newFixture(t)
	tepung := f.material(t, "Tepung", f.gram.ID, "")
	f.stock(t, tepung, "250")

	var exported bytes.Buffer
	if err := f.engine.MasterData.ExportStockXLSX(f.ctx, &exported); err != nil {
		t.Fatalf("ExportStockXLSX: %v", err)
	}

	book, err := excelize.OpenReader(bytes.NewReader(exported.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer func() { _ = book.Close() }()
	sheet := book.GetSheetName(book.GetActiveSheetIndex())
	rows, err := book.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if rows[1][0] != tepung || rows[1][2] != "gram" || rows[1][3] != "250" {
		t.Fatalf("data row = %v", rows[1])
	}

	// Без количества строка шаблона пропускается
	untouched := bytes.NewReader(exported.Bytes())
	result, err := f.engine.Imports.ImportXLSX(f.ctx, untouched, "")
	if err != nil {
		t.Fatalf("ImportXLSX untouched: %v", err)
	}
	if result.Imported != 0 || result.Failed != 0 {
		t.Fatalf("untouched template imported %d, failed %d", result.Imported, result.Failed)
	}

	if err := book.SetCellValue(sheet, "H2", "50"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}
	if err := book.SetCellValue(sheet, "I2", "9000"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}
	var filled bytes.Buffer
	if err := book.Write(&filled); err != nil {
		t.Fatalf("Write: %v", err)
	}
	result, err = f.engine.Imports.ImportXLSX(f.ctx, &filled, "")
	if err != nil {
		t.Fatalf("ImportXLSX filled: %v", err)
	}
	if result.Imported != 1 {
		t.Fatalf("imported = %d, want 1 (%+v)", result.Imported, result.Rows)
	}
	assertLevel(t, f, tepung, "300")
}

// flakyStore отказывает в записи журнала после okCommits успешных операций
type flakyStore struct {
	store.Store
	mu        sync.Mutex
	okCommits int
}

func (s *flakyStore) CommitLedger(ctx context.Context, commit *store.LedgerCommit) ([]models.StockMovement, error) {
	s.mu.Lock()
	if s.okCommits == 0 {
		s.mu.Unlock()
		return nil, errors.New("database is locked")
	}
	s.okCommits--
	s.mu.Unlock()
	return s.Store.CommitLedger(ctx, commit)
}

func TestImportInvoiceReportsCommittedRowsOnStoreFailure(t *testing.T) {
	f := newFixture(t)
	tepung := f.material(t, "Tepung", f.gram.ID, "")
	engine := NewEngine(&flakyStore{Store: f.store, okCommits: 1}, EngineOptions{})

	file := buildXLSX(t, [][]interface{}{
		{"raw_material_id", "quantity", "unit_price"},
		{tepung, "10", "100"},
		{tepung, "20", "100"},
		{tepung, "30", "100"},
	})
	result, err := engine.Imports.ImportXLSX(f.ctx, file, "")
	assertKind(t, err, errs.KindInternal)
	if result == nil {
		t.Fatal("partial result is nil")
	}
	if result.Imported != 1 || len(result.Rows) != 1 || result.Rows[0].Row != 2 || result.Rows[0].PurchaseID == "" {
		t.Fatalf("partial result = %+v, want only row 2 imported", result)
	}
	assertLevel(t, f, tepung, "10")
}

func TestParseCellDecimalSeparators(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"1,5", "1.5"},
		{"1.5", "1.5"},
		{"1,000.50", "1000.5"},
		{"1.000,50", "1000.5"},
		{"1.000.000", "1000000"},
		{"1,000,000", "1000000"},
		{"12 000", "12000"},
		{"", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseCellDecimal("quantity", tt.raw)
			if err != nil {
				t.Fatalf("parseCellDecimal(%q): %v", tt.raw, err)
			}
			if !got.Equal(dec(tt.want)) {
				t.Fatalf("parseCellDecimal(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}

	for _, raw := range []string{"abc", "1,2,3.4.5", "1.5kg"} {
		_, err := parseCellDecimal("quantity", raw)
		assertKind(t, err, errs.KindValidation)
	}
}
