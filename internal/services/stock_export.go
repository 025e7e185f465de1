package services

import (
	"context"
	"io"

	"github.com/xuri/excelize/v2"
)

// ExportStockXLSX выгружает остатки сырья. Лист годится как шаблон накладной:
// заполненные quantity и unit_price можно загрузить обратно через ImportXLSX
func (s *MasterDataService) ExportStockXLSX(ctx context.Context, w io.Writer) error {
	materials, err := s.store.ListRawMaterials(ctx)
	if err != nil {
		return err
	}
	units, err := s.store.ListBaseUnits(ctx)
	if err != nil {
		return err
	}
	unitNames := make(map[string]string, len(units))
	for _, u := range units {
		unitNames[u.ID] = u.Name
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	header := []interface{}{
		"raw_material_id",
		"name",
		"base_unit",
		"stock_on_hand",
		"minimum_stock",
		"low_stock",
		"supplier_id",
		"quantity",   // заполняет закупщик
		"unit_price", // заполняет закупщик
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, m := range materials {
		supplierID := ""
		if m.ExclusiveSupplierID != nil {
			supplierID = *m.ExclusiveSupplierID
		}
		row := []interface{}{
			m.ID,
			m.Name,
			unitNames[m.BaseUnitID],
			m.StockOnHand.String(),
			m.MinimumStock.String(),
			m.IsLowStock(),
			supplierID,
			"",
			"",
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return f.Write(w)
}
