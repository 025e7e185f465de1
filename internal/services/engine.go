package services

import (
	"context"

	"inventaris/server/internal/metrics"
	"inventaris/server/internal/models"
	"inventaris/server/internal/store"

	"github.com/shopspring/decimal"
)

// Engine собирает сервисы движка и отдает внешний набор операций
type Engine struct {
	Conversion   *UnitConversionService
	Validator    *ProcurementValidator
	Capacity     *CapacityCalculator
	Ledger       *StockLedger
	MasterData   *MasterDataService
	Recipes      *RecipeService
	Sales        *SalesService
	Reservations *ReservationTracker
	Imports      *InvoiceImportService
}

// EngineOptions - необязательные зависимости (все могут быть nil)
type EngineOptions struct {
	Publisher MovementPublisher
	Cache     ReportCache
	Metrics   *metrics.Metrics
}

// NewEngine создает движок поверх хранилища
func NewEngine(st store.Store, opts EngineOptions) *Engine {
	conversion := NewUnitConversionService()
	validator := NewProcurementValidator()
	capacity := NewCapacityCalculator()
	ledger := NewStockLedger(st, opts.Publisher, opts.Metrics)
	reservations := NewReservationTracker(st, ledger, conversion, validator, opts.Cache, opts.Metrics)

	return &Engine{
		Conversion:   conversion,
		Validator:    validator,
		Capacity:     capacity,
		Ledger:       ledger,
		MasterData:   NewMasterDataService(st, conversion, opts.Cache),
		Recipes:      NewRecipeService(st, capacity),
		Sales:        NewSalesService(st, ledger, capacity, opts.Metrics),
		Reservations: reservations,
		Imports:      NewInvoiceImportService(st, reservations),
	}
}

// CreateRawMaterial -> id нового сырья
func (e *Engine) CreateRawMaterial(ctx context.Context, name, baseUnitID, categoryID, exclusiveSupplierID string) (string, error) {
	material, err := e.MasterData.CreateRawMaterial(ctx, RawMaterialInput{
		Name:                name,
		BaseUnitID:          baseUnitID,
		CategoryID:          categoryID,
		ExclusiveSupplierID: exclusiveSupplierID,
	})
	if err != nil {
		return "", err
	}
	return material.ID, nil
}

// CreatePackagingUnit -> id новой упаковки
func (e *Engine) CreatePackagingUnit(ctx context.Context, name, baseUnitID string, conversionFactor decimal.Decimal) (string, error) {
	unit, err := e.MasterData.CreatePackagingUnit(ctx, PackagingUnitInput{
		Name:             name,
		BaseUnitID:       baseUnitID,
		ConversionFactor: conversionFactor,
	})
	if err != nil {
		return "", err
	}
	return unit.ID, nil
}

// UpsertRecipeLine - только создание, повтор -> DuplicateRecipeLineError
func (e *Engine) UpsertRecipeLine(ctx context.Context, productID, rawMaterialID string, quantityRequiredPerUnit decimal.Decimal) error {
	_, err := e.Recipes.UpsertRecipeLine(ctx, productID, rawMaterialID, quantityRequiredPerUnit)
	return err
}

// RecordPurchase -> id закупки. supplierID и packagingUnitID могут быть пустыми
func (e *Engine) RecordPurchase(ctx context.Context, rawMaterialID, supplierID, packagingUnitID string, quantity, unitPrice decimal.Decimal, origin models.PurchaseOrigin) (string, error) {
	purchase, err := e.Reservations.RecordPurchase(ctx, PurchaseInput{
		RawMaterialID:   rawMaterialID,
		SupplierID:      supplierID,
		PackagingUnitID: packagingUnitID,
		Quantity:        quantity,
		UnitPrice:       unitPrice,
		Origin:          origin,
	})
	if err != nil {
		return "", err
	}
	return purchase.ID, nil
}

// CreateReservation -> id резерва. packagingUnitID может быть пустым
func (e *Engine) CreateReservation(ctx context.Context, rawMaterialID, supplierID string, quantity decimal.Decimal, packagingUnitID string) (string, error) {
	reservation, err := e.Reservations.CreateReservation(ctx, ReservationInput{
		RawMaterialID:   rawMaterialID,
		SupplierID:      supplierID,
		Quantity:        quantity,
		PackagingUnitID: packagingUnitID,
	})
	if err != nil {
		return "", err
	}
	return reservation.ID, nil
}

// RecordSale -> id продажи
func (e *Engine) RecordSale(ctx context.Context, productID string, quantitySold int64) (string, error) {
	sale, err := e.Sales.RecordSale(ctx, productID, quantitySold)
	if err != nil {
		return "", err
	}
	return sale.ID, nil
}

// GetMaxProducible -> сколько единиц продукта можно сделать сейчас
func (e *Engine) GetMaxProducible(ctx context.Context, productID string) (int64, error) {
	result, err := e.Recipes.GetMaxProducible(ctx, productID)
	if err != nil {
		return 0, err
	}
	return result.MaxProducible, nil
}

// GetAccountabilityReport -> статус аудита закупок сырья
func (e *Engine) GetAccountabilityReport(ctx context.Context, rawMaterialID string) (AccountabilityStatus, error) {
	report, err := e.Reservations.BuildAccountabilityReport(ctx, rawMaterialID)
	if err != nil {
		return "", err
	}
	return report.Status, nil
}
