package services

import (
	"context"
	"time"

	"inventaris/server/internal/models"

	"github.com/shopspring/decimal"
)

// AccountabilityStatus - итог аудита закупок по правилу эксклюзивности
type AccountabilityStatus string

const (
	StatusNoExclusiveSupplier AccountabilityStatus = "TIDAK_ADA_SUPPLIER_EKSKLUSIF"
	StatusAccountable         AccountabilityStatus = "AKUNTABEL"
	StatusViolationDetected   AccountabilityStatus = "PELANGGARAN_TERDETEKSI"
)

// PurchaseBucket - агрегаты по группе закупок
type PurchaseBucket struct {
	Count            int             `json:"count"`
	TotalQuantity    decimal.Decimal `json:"total_quantity_base_units"`
	TotalSpent       decimal.Decimal `json:"total_spent"`
	AverageUnitPrice decimal.Decimal `json:"average_unit_price"`
}

func (b *PurchaseBucket) add(p models.Purchase) {
	b.Count++
	b.TotalQuantity = b.TotalQuantity.Add(p.QuantityBaseUnits)
	b.TotalSpent = b.TotalSpent.Add(p.TotalPrice)
	// пока храним сумму цен, среднее считается в finish
	b.AverageUnitPrice = b.AverageUnitPrice.Add(p.UnitPrice)
}

func (b *PurchaseBucket) finish() {
	if b.Count == 0 {
		b.AverageUnitPrice = decimal.Zero
		return
	}
	b.AverageUnitPrice = b.AverageUnitPrice.DivRound(decimal.NewFromInt(int64(b.Count)), 4)
}

// AccountabilityReport - отчет об ответственности (laporan akuntabilitas) по сырью
type AccountabilityReport struct {
	RawMaterialID       string               `json:"raw_material_id"`
	RawMaterialName     string               `json:"raw_material_name"`
	ExclusiveSupplierID *string              `json:"exclusive_supplier_id"`
	Status              AccountabilityStatus `json:"status"`
	Exclusive           PurchaseBucket       `json:"exclusive"`
	NonExclusive        PurchaseBucket       `json:"non_exclusive"`
	OpenReservations    int                  `json:"open_reservations"`
	ReservedQuantity    decimal.Decimal      `json:"reserved_quantity_base_units"`
	GeneratedAt         time.Time            `json:"generated_at"`
}

// ClassifyPurchases делит закупки на группы "у эксклюзивного поставщика" и "у других"
// и определяет статус. Без эксклюзивного поставщика все закупки попадают в NonExclusive
func ClassifyPurchases(material *models.RawMaterial, purchases []models.Purchase) (AccountabilityStatus, PurchaseBucket, PurchaseBucket) {
	var exclusive, nonExclusive PurchaseBucket
	for _, p := range purchases {
		if material.HasExclusiveSupplier() && p.SupplierIs(*material.ExclusiveSupplierID) {
			exclusive.add(p)
		} else {
			nonExclusive.add(p)
		}
	}
	exclusive.finish()
	nonExclusive.finish()

	switch {
	case !material.HasExclusiveSupplier():
		return StatusNoExclusiveSupplier, exclusive, nonExclusive
	case nonExclusive.Count > 0:
		return StatusViolationDetected, exclusive, nonExclusive
	default:
		return StatusAccountable, exclusive, nonExclusive
	}
}

// BuildAccountabilityReport строит отчет по истории закупок. Только чтение, без блокировок журнала
func (t *ReservationTracker) BuildAccountabilityReport(ctx context.Context, rawMaterialID string) (report *AccountabilityReport, err error) {
	start := time.Now()
	defer func() { t.metrics.ObserveResult("accountability_report", start, err) }()

	var (
		version   int64
		cacheable bool
	)
	if t.cache != nil {
		if cached, ok := t.cache.Get(ctx, rawMaterialID); ok {
			return cached, nil
		}
		// Версию читаем до загрузки данных: Invalidate после этого момента сделает отчет устаревшим
		version, cacheable = t.cache.Version(ctx, rawMaterialID)
	}

	material, err := t.store.GetRawMaterial(ctx, rawMaterialID)
	if err != nil {
		return nil, err
	}
	purchases, err := t.store.ListPurchases(ctx, rawMaterialID)
	if err != nil {
		return nil, err
	}
	reservations, err := t.store.ListReservations(ctx, rawMaterialID)
	if err != nil {
		return nil, err
	}

	status, exclusive, nonExclusive := ClassifyPurchases(material, purchases)
	report = &AccountabilityReport{
		RawMaterialID:       material.ID,
		RawMaterialName:     material.Name,
		ExclusiveSupplierID: material.ExclusiveSupplierID,
		Status:              status,
		Exclusive:           exclusive,
		NonExclusive:        nonExclusive,
		ReservedQuantity:    decimal.Zero,
		GeneratedAt:         time.Now().UTC(),
	}
	for _, r := range reservations {
		if r.IsOpen() {
			report.OpenReservations++
			report.ReservedQuantity = report.ReservedQuantity.Add(r.QuantityReservedBaseUnits)
		}
	}

	if cacheable {
		t.cache.Put(ctx, report, version)
	}
	return report, nil
}
