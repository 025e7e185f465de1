package services

import (
	"context"
	"log"
	"strings"
	"time"

	"inventaris/server/internal/errs"
	"inventaris/server/internal/metrics"
	"inventaris/server/internal/models"
	"inventaris/server/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReservationTracker ведет резервы поставщиков, закупки и отчет об ответственности
type ReservationTracker struct {
	store      store.Store
	ledger     *StockLedger
	conversion *UnitConversionService
	validator  *ProcurementValidator
	cache      ReportCache
	metrics    *metrics.Metrics
}

// NewReservationTracker создает трекер; cache может быть nil
func NewReservationTracker(st store.Store, ledger *StockLedger, conversion *UnitConversionService, validator *ProcurementValidator, cache ReportCache, m *metrics.Metrics) *ReservationTracker {
	return &ReservationTracker{
		store:      st,
		ledger:     ledger,
		conversion: conversion,
		validator:  validator,
		cache:      cache,
		metrics:    m,
	}
}

// ReservationInput - данные для CreateReservation
type ReservationInput struct {
	RawMaterialID   string
	SupplierID      string
	Quantity        decimal.Decimal
	PackagingUnitID string // пусто = количество в базовых единицах
	Note            string
}

// PurchaseInput - данные для RecordPurchase
type PurchaseInput struct {
	RawMaterialID   string
	SupplierID      string // пусто = без поставщика
	PackagingUnitID string // пусто = количество в базовых единицах
	ReservationID   string // необязательно, только для origin=from_reservation
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	Origin          models.PurchaseOrigin
	PurchasedAt     time.Time
}

// toBaseQuantity переводит количество в базовые единицы сырья
func (t *ReservationTracker) toBaseQuantity(ctx context.Context, material *models.RawMaterial, quantity decimal.Decimal, packagingUnitID string) (decimal.Decimal, *string, error) {
	if packagingUnitID == "" {
		return quantity, nil, nil
	}
	unit, err := t.store.GetPackagingUnit(ctx, packagingUnitID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if err := t.conversion.ValidateUnitCompatibility(material, unit); err != nil {
		return decimal.Zero, nil, err
	}
	return t.conversion.ToBaseUnits(quantity, unit), &unit.ID, nil
}

// CreateReservation фиксирует обещание поставщика. Остаток не меняется
func (t *ReservationTracker) CreateReservation(ctx context.Context, input ReservationInput) (reservation *models.StockReservation, err error) {
	start := time.Now()
	defer func() { t.metrics.ObserveResult("create_reservation", start, err) }()

	input.RawMaterialID = strings.TrimSpace(input.RawMaterialID)
	input.SupplierID = strings.TrimSpace(input.SupplierID)
	if input.RawMaterialID == "" {
		return nil, errs.Validation("raw_material_id", "is required")
	}
	if input.SupplierID == "" {
		return nil, errs.Validation("supplier_id", "is required")
	}
	if !input.Quantity.IsPositive() {
		return nil, errs.Validation("quantity", "must be greater than zero")
	}

	material, err := t.store.GetRawMaterial(ctx, input.RawMaterialID)
	if err != nil {
		return nil, err
	}
	if _, err := t.store.GetSupplier(ctx, input.SupplierID); err != nil {
		return nil, err
	}
	baseQty, packagingUnitID, err := t.toBaseQuantity(ctx, material, input.Quantity, input.PackagingUnitID)
	if err != nil {
		return nil, err
	}
	if err := t.validator.ValidateSupplier(material, input.SupplierID); err != nil {
		return nil, err
	}

	reservation = &models.StockReservation{
		RawMaterialID:             material.ID,
		SupplierID:                input.SupplierID,
		QuantityReservedBaseUnits: baseQty,
		PackagingUnitID:           packagingUnitID,
		Note:                      strings.TrimSpace(input.Note),
		Status:                    models.ReservationStatusOpen,
	}
	if err := t.store.CreateReservation(ctx, reservation); err != nil {
		return nil, err
	}
	t.invalidate(ctx, material.ID)

	log.Printf("📝 Резерв %s: %s ед. сырья %s от поставщика %s", reservation.ID, baseQty.String(), material.Name, input.SupplierID)
	return reservation, nil
}

// CancelReservation отменяет открытый резерв
func (t *ReservationTracker) CancelReservation(ctx context.Context, reservationID string) error {
	reservation, err := t.store.GetReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if err := t.store.CancelReservation(ctx, reservationID); err != nil {
		return err
	}
	t.invalidate(ctx, reservation.RawMaterialID)
	return nil
}

// ListReservations - все резервы по сырью
func (t *ReservationTracker) ListReservations(ctx context.Context, rawMaterialID string) ([]models.StockReservation, error) {
	if _, err := t.store.GetRawMaterial(ctx, rawMaterialID); err != nil {
		return nil, err
	}
	return t.store.ListReservations(ctx, rawMaterialID)
}

// RecordPurchase проводит закупку: проверки, перевод в базовые единицы и приход
// по журналу одной атомарной операцией. Для origin=from_reservation в той же
// операции закрывается открытый резерв этого поставщика
func (t *ReservationTracker) RecordPurchase(ctx context.Context, input PurchaseInput) (purchase *models.Purchase, err error) {
	start := time.Now()
	defer func() { t.metrics.ObserveResult("record_purchase", start, err) }()

	input.RawMaterialID = strings.TrimSpace(input.RawMaterialID)
	input.SupplierID = strings.TrimSpace(input.SupplierID)
	input.ReservationID = strings.TrimSpace(input.ReservationID)
	if input.Origin == "" {
		input.Origin = models.PurchaseOriginDirect
	}
	if input.RawMaterialID == "" {
		return nil, errs.Validation("raw_material_id", "is required")
	}
	if !input.Origin.IsValid() {
		return nil, errs.Validation("origin", "must be direct or from_reservation")
	}
	if !input.Quantity.IsPositive() {
		return nil, errs.Validation("quantity", "must be greater than zero")
	}
	if input.UnitPrice.IsNegative() {
		return nil, errs.Validation("unit_price", "must not be negative")
	}
	if input.Origin == models.PurchaseOriginFromReservation && input.SupplierID == "" {
		return nil, errs.Validation("supplier_id", "is required for purchases from a reservation")
	}
	if input.Origin == models.PurchaseOriginDirect && input.ReservationID != "" {
		return nil, errs.Validation("reservation_id", "only allowed for purchases from a reservation")
	}

	material, err := t.store.GetRawMaterial(ctx, input.RawMaterialID)
	if err != nil {
		return nil, err
	}
	var supplierID *string
	if input.SupplierID != "" {
		if _, err := t.store.GetSupplier(ctx, input.SupplierID); err != nil {
			return nil, err
		}
		supplierID = &input.SupplierID
	}
	baseQty, packagingUnitID, err := t.toBaseQuantity(ctx, material, input.Quantity, input.PackagingUnitID)
	if err != nil {
		return nil, err
	}
	if err := t.validator.ValidateSupplier(material, input.SupplierID); err != nil {
		return nil, err
	}

	purchasedAt := input.PurchasedAt
	if purchasedAt.IsZero() {
		purchasedAt = time.Now().UTC()
	}
	purchase = &models.Purchase{
		ID:                uuid.New().String(),
		RawMaterialID:     material.ID,
		SupplierID:        supplierID,
		PackagingUnitID:   packagingUnitID,
		Quantity:          input.Quantity,
		QuantityBaseUnits: baseQty,
		UnitPrice:         input.UnitPrice,
		TotalPrice:        input.Quantity.Mul(input.UnitPrice),
		Origin:            input.Origin,
		PurchasedAt:       purchasedAt,
	}
	if input.ReservationID != "" {
		purchase.ReservationID = &input.ReservationID
	}

	_, err = t.ledger.Commit(ctx, &store.LedgerCommit{
		Deltas:      []store.Delta{{RawMaterialID: material.ID, Amount: baseQty}},
		Reason:      models.MovementReasonPurchase,
		ReferenceID: purchase.ID,
		Purchase:    purchase,
	})
	if err != nil {
		return nil, err
	}
	t.invalidate(ctx, material.ID)

	log.Printf("✅ Закупка %s: +%s сырья %s (origin=%s)", purchase.ID, baseQty.String(), material.Name, purchase.Origin)
	return purchase, nil
}

func (t *ReservationTracker) invalidate(ctx context.Context, rawMaterialID string) {
	if t.cache != nil {
		t.cache.Invalidate(ctx, rawMaterialID)
	}
}
