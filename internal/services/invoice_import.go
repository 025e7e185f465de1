package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"inventaris/server/internal/errs"
	"inventaris/server/internal/models"
	"inventaris/server/internal/store"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Колонки накладной. Заголовок ищем по ключевым словам в первых строках листа
const (
	colMaterial  = "material"
	colSupplier  = "supplier"
	colPackaging = "packaging"
	colQuantity  = "quantity"
	colUnitPrice = "unit_price"
	colOrigin    = "origin"
)

var invoiceHeaderKeywords = map[string][]string{
	colMaterial:  {"raw_material_id", "raw_material", "bahan", "material", "сырье"},
	colSupplier:  {"supplier_id", "supplier", "pemasok", "поставщик"},
	colPackaging: {"packaging_unit_id", "packaging", "kemasan", "упаковка"},
	colQuantity:  {"quantity", "qty", "jumlah", "количество"},
	colUnitPrice: {"unit_price", "price", "harga", "цена"},
	colOrigin:    {"origin", "asal"},
}

// InvoiceRowResult - итог по одной строке накладной
type InvoiceRowResult struct {
	Row               int             `json:"row"` // Номер строки в файле (с 1)
	RawMaterialID     string          `json:"raw_material_id,omitempty"`
	PurchaseID        string          `json:"purchase_id,omitempty"`
	QuantityBaseUnits decimal.Decimal `json:"quantity_base_units"`
	Error             string          `json:"error,omitempty"`
	Details           string          `json:"details,omitempty"`
}

// InvoiceImportResult - итог загрузки накладной
type InvoiceImportResult struct {
	Imported int                `json:"imported"`
	Failed   int                `json:"failed"`
	Rows     []InvoiceRowResult `json:"rows"`
}

// InvoiceImportService проводит закупки из XLSX накладной.
// Каждая строка - отдельная закупка со всеми проверками RecordPurchase
type InvoiceImportService struct {
	store   store.Store
	tracker *ReservationTracker
}

func NewInvoiceImportService(st store.Store, tracker *ReservationTracker) *InvoiceImportService {
	return &InvoiceImportService{store: st, tracker: tracker}
}

// ImportXLSX читает первый активный лист. defaultSupplierID подставляется в строки без поставщика.
// Отклоненные строки попадают в результат. Ошибка хранилища прерывает загрузку:
// тогда вместе с ошибкой возвращается результат по уже проведенным строкам
func (s *InvoiceImportService) ImportXLSX(ctx context.Context, r io.Reader, defaultSupplierID string) (*InvoiceImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errs.Validation("file", "cannot open XLSX: "+err.Error())
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errs.Validation("file", "cannot read sheet "+sheet+": "+err.Error())
	}
	headerRow, columns := findInvoiceHeader(rows)
	if headerRow < 0 {
		return nil, errs.Validation("file", "header with material and quantity columns not found")
	}

	names, err := s.materialNames(ctx)
	if err != nil {
		return nil, err
	}

	result := &InvoiceImportResult{Rows: make([]InvoiceRowResult, 0, len(rows)-headerRow-1)}
	for i := headerRow + 1; i < len(rows); i++ {
		cells := rows[i]
		// Пустые строки и строки шаблона без количества пропускаем
		if isBlankRow(cells) || cellAt(cells, columns, colQuantity) == "" {
			continue
		}
		rowResult := InvoiceRowResult{Row: i + 1}
		input, err := parseInvoiceRow(cells, columns, names, defaultSupplierID)
		if err == nil {
			rowResult.RawMaterialID = input.RawMaterialID
			var purchase *models.Purchase
			if purchase, err = s.tracker.RecordPurchase(ctx, input); err == nil {
				rowResult.PurchaseID = purchase.ID
				rowResult.QuantityBaseUnits = purchase.QuantityBaseUnits
			}
		}
		if err != nil {
			if !errs.IsBusinessRejection(err) {
				log.Printf("❌ Накладная %q прервана на строке %d: проведено %d, отклонено %d", sheet, i+1, result.Imported, result.Failed)
				return result, fmt.Errorf("строка %d: %w", i+1, err)
			}
			rowResult.Error = string(errs.KindOf(err))
			rowResult.Details = err.Error()
			result.Failed++
		} else {
			result.Imported++
		}
		result.Rows = append(result.Rows, rowResult)
	}

	log.Printf("📥 Накладная %q: проведено %d, отклонено %d", sheet, result.Imported, result.Failed)
	return result, nil
}

// materialNames - индекс имя сырья (в нижнем регистре) -> id для строк, где указано имя
func (s *InvoiceImportService) materialNames(ctx context.Context) (map[string]string, error) {
	materials, err := s.store.ListRawMaterials(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(materials))
	for _, m := range materials {
		names[strings.ToLower(strings.TrimSpace(m.Name))] = m.ID
	}
	return names, nil
}

// findInvoiceHeader выбирает среди первых 10 строк ту, где больше всего знакомых заголовков
func findInvoiceHeader(rows [][]string) (int, map[string]int) {
	maxRows := 10
	if len(rows) < maxRows {
		maxRows = len(rows)
	}

	bestRow, bestMatches := -1, 0
	var bestColumns map[string]int
	for i := 0; i < maxRows; i++ {
		columns := matchInvoiceColumns(rows[i])
		if len(columns) > bestMatches {
			bestRow, bestMatches, bestColumns = i, len(columns), columns
		}
	}
	if bestRow < 0 {
		return -1, nil
	}
	if _, ok := bestColumns[colMaterial]; !ok {
		return -1, nil
	}
	if _, ok := bestColumns[colQuantity]; !ok {
		return -1, nil
	}
	return bestRow, bestColumns
}

func matchInvoiceColumns(header []string) map[string]int {
	columns := make(map[string]int)
	for idx, cell := range header {
		title := strings.ToLower(strings.TrimSpace(cell))
		if title == "" {
			continue
		}
		for col, keywords := range invoiceHeaderKeywords {
			if _, taken := columns[col]; taken {
				continue
			}
			for _, kw := range keywords {
				if title == kw {
					columns[col] = idx
					break
				}
			}
		}
	}
	return columns
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cellAt(cells []string, columns map[string]int, col string) string {
	idx, ok := columns[col]
	if !ok || idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

// parseCellDecimal понимает запятую и точку как десятичный разделитель ("1,5", "1.5")
// и разделители тысяч: "1,000.50", "1.000,50", "1.000.000"
func parseCellDecimal(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(normalizeNumber(raw))
	if err != nil {
		return decimal.Zero, errs.Validation(field, fmt.Sprintf("%q is not a number", raw))
	}
	return value, nil
}

func normalizeNumber(raw string) string {
	cleaned := strings.NewReplacer(" ", "", "\u00a0", "", "'", "").Replace(raw)
	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// Десятичный разделитель - тот, что правее
		if lastComma > lastDot {
			return strings.ReplaceAll(strings.ReplaceAll(cleaned, ".", ""), ",", ".")
		}
		return strings.ReplaceAll(cleaned, ",", "")
	case strings.Count(cleaned, ",") > 1:
		return strings.ReplaceAll(cleaned, ",", "")
	case strings.Count(cleaned, ".") > 1:
		return strings.ReplaceAll(cleaned, ".", "")
	default:
		return strings.ReplaceAll(cleaned, ",", ".")
	}
}

// parseInvoiceRow собирает PurchaseInput из строки; сырье можно указать id или именем
func parseInvoiceRow(cells []string, columns map[string]int, names map[string]string, defaultSupplierID string) (PurchaseInput, error) {
	material := cellAt(cells, columns, colMaterial)
	if material == "" {
		return PurchaseInput{}, errs.Validation("raw_material_id", "is required")
	}
	if id, ok := names[strings.ToLower(material)]; ok {
		material = id
	}

	quantity, err := parseCellDecimal("quantity", cellAt(cells, columns, colQuantity))
	if err != nil {
		return PurchaseInput{}, err
	}
	unitPrice, err := parseCellDecimal("unit_price", cellAt(cells, columns, colUnitPrice))
	if err != nil {
		return PurchaseInput{}, err
	}

	supplierID := cellAt(cells, columns, colSupplier)
	if supplierID == "" {
		supplierID = defaultSupplierID
	}
	return PurchaseInput{
		RawMaterialID:   material,
		SupplierID:      supplierID,
		PackagingUnitID: cellAt(cells, columns, colPackaging),
		Quantity:        quantity,
		UnitPrice:       unitPrice,
		Origin:          models.PurchaseOrigin(strings.ToLower(cellAt(cells, columns, colOrigin))),
	}, nil
}
