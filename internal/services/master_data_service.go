package services

import (
	"context"
	"log"
	"strings"

	"inventaris/server/internal/errs"
	"inventaris/server/internal/models"
	"inventaris/server/internal/store"

	"github.com/shopspring/decimal"
)

// MasterDataService - справочники: единицы, упаковки, категории, поставщики, сырье, продукты
type MasterDataService struct {
	store      store.Store
	conversion *UnitConversionService
	cache      ReportCache
}

// NewMasterDataService создает сервис справочников; cache может быть nil
func NewMasterDataService(st store.Store, conversion *UnitConversionService, cache ReportCache) *MasterDataService {
	return &MasterDataService{store: st, conversion: conversion, cache: cache}
}

// RawMaterialInput - данные для CreateRawMaterial
type RawMaterialInput struct {
	Name                string
	BaseUnitID          string
	CategoryID          string // необязательно
	ExclusiveSupplierID string // необязательно
	MinimumStock        decimal.Decimal
}

// RawMaterialUpdate - изменения сырья, nil = поле не меняется.
// Пустая строка в CategoryID или ExclusiveSupplierID снимает значение
type RawMaterialUpdate struct {
	Name                *string
	CategoryID          *string
	ExclusiveSupplierID *string
	MinimumStock        *decimal.Decimal
	BaseUnitID          *string // Менять нельзя, допускается только текущее значение
}

// PackagingUnitInput - данные для CreatePackagingUnit.
// Если ConversionFactor не задан, коэффициент вычисляется из Label
type PackagingUnitInput struct {
	Name             string
	BaseUnitID       string
	ConversionFactor decimal.Decimal
	Label            string
}

// SupplierInput - данные поставщика
type SupplierInput struct {
	Name          string
	ContactPerson string
	Phone         string
	Email         string
	Address       string
}

func optionalID(id string) *string {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	return &id
}

func (s *MasterDataService) CreateBaseUnit(ctx context.Context, name string) (*models.BaseUnit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Validation("name", "is required")
	}
	unit := &models.BaseUnit{Name: name}
	if err := s.store.CreateBaseUnit(ctx, unit); err != nil {
		return nil, err
	}
	return unit, nil
}

func (s *MasterDataService) ListBaseUnits(ctx context.Context) ([]models.BaseUnit, error) {
	return s.store.ListBaseUnits(ctx)
}

func (s *MasterDataService) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Validation("name", "is required")
	}
	category := &models.Category{Name: name}
	if err := s.store.CreateCategory(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *MasterDataService) CreateSupplier(ctx context.Context, input SupplierInput) (*models.Supplier, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errs.Validation("name", "is required")
	}
	supplier := &models.Supplier{
		Name:          name,
		ContactPerson: strings.TrimSpace(input.ContactPerson),
		Phone:         strings.TrimSpace(input.Phone),
		Email:         strings.TrimSpace(input.Email),
		Address:       strings.TrimSpace(input.Address),
	}
	if err := s.store.CreateSupplier(ctx, supplier); err != nil {
		return nil, err
	}
	return supplier, nil
}

func (s *MasterDataService) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	return s.store.ListSuppliers(ctx)
}

// CreateFinishedProduct создает готовый продукт; техкарта добавляется отдельно
func (s *MasterDataService) CreateFinishedProduct(ctx context.Context, name string, sellPrice decimal.Decimal) (*models.FinishedProduct, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Validation("name", "is required")
	}
	if sellPrice.IsNegative() {
		return nil, errs.Validation("sell_price", "must not be negative")
	}
	product := &models.FinishedProduct{Name: name, SellPrice: sellPrice}
	if err := s.store.CreateFinishedProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// CreateRawMaterial создает сырье с нулевым остатком. Все ссылки должны существовать
func (s *MasterDataService) CreateRawMaterial(ctx context.Context, input RawMaterialInput) (*models.RawMaterial, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errs.Validation("name", "is required")
	}
	if strings.TrimSpace(input.BaseUnitID) == "" {
		return nil, errs.Validation("base_unit_id", "is required")
	}
	if input.MinimumStock.IsNegative() {
		return nil, errs.Validation("minimum_stock", "must not be negative")
	}
	if _, err := s.store.GetBaseUnit(ctx, input.BaseUnitID); err != nil {
		return nil, err
	}
	categoryID := optionalID(input.CategoryID)
	if categoryID != nil {
		if _, err := s.store.GetCategory(ctx, *categoryID); err != nil {
			return nil, err
		}
	}
	supplierID := optionalID(input.ExclusiveSupplierID)
	if supplierID != nil {
		if _, err := s.store.GetSupplier(ctx, *supplierID); err != nil {
			return nil, err
		}
	}

	material := &models.RawMaterial{
		Name:                name,
		CategoryID:          categoryID,
		BaseUnitID:          input.BaseUnitID,
		StockOnHand:         decimal.Zero,
		ExclusiveSupplierID: supplierID,
		MinimumStock:        input.MinimumStock,
	}
	if err := s.store.CreateRawMaterial(ctx, material); err != nil {
		return nil, err
	}
	log.Printf("✅ Сырье создано: %s (%s)", material.Name, material.ID)
	return material, nil
}

func (s *MasterDataService) GetRawMaterial(ctx context.Context, id string) (*models.RawMaterial, error) {
	return s.store.GetRawMaterial(ctx, id)
}

func (s *MasterDataService) ListRawMaterials(ctx context.Context) ([]models.RawMaterial, error) {
	return s.store.ListRawMaterials(ctx)
}

// UpdateRawMaterial меняет справочные поля сырья, базовая единица неизменна.
// Смена эксклюзивного поставщика не трогает историю закупок: отчет
// об ответственности пересчитывается по новому правилу
func (s *MasterDataService) UpdateRawMaterial(ctx context.Context, id string, update RawMaterialUpdate) (*models.RawMaterial, error) {
	material, err := s.store.GetRawMaterial(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.BaseUnitID != nil && strings.TrimSpace(*update.BaseUnitID) != material.BaseUnitID {
		return nil, errs.Validation("base_unit_id", "base unit of a raw material cannot be changed")
	}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, errs.Validation("name", "is required")
		}
		material.Name = name
	}
	if update.CategoryID != nil {
		categoryID := optionalID(*update.CategoryID)
		if categoryID != nil {
			if _, err := s.store.GetCategory(ctx, *categoryID); err != nil {
				return nil, err
			}
		}
		material.CategoryID = categoryID
	}
	if update.ExclusiveSupplierID != nil {
		supplierID := optionalID(*update.ExclusiveSupplierID)
		if supplierID != nil {
			if _, err := s.store.GetSupplier(ctx, *supplierID); err != nil {
				return nil, err
			}
		}
		material.ExclusiveSupplierID = supplierID
	}
	if update.MinimumStock != nil {
		if update.MinimumStock.IsNegative() {
			return nil, errs.Validation("minimum_stock", "must not be negative")
		}
		material.MinimumStock = *update.MinimumStock
	}

	if err := s.store.UpdateRawMaterial(ctx, material); err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, material.ID)
	}
	log.Printf("✏️ Сырье обновлено: %s (%s)", material.Name, material.ID)
	return s.store.GetRawMaterial(ctx, material.ID)
}

// LowStock - сырье, у которого остаток на пороге MinimumStock или ниже
func (s *MasterDataService) LowStock(ctx context.Context) ([]models.RawMaterial, error) {
	materials, err := s.store.ListRawMaterials(ctx)
	if err != nil {
		return nil, err
	}
	low := make([]models.RawMaterial, 0)
	for _, m := range materials {
		if m.IsLowStock() {
			low = append(low, m)
		}
	}
	return low, nil
}

// DeleteRawMaterial удаляет сырье без ссылок из техкарт, закупок и резервов
func (s *MasterDataService) DeleteRawMaterial(ctx context.Context, id string) error {
	if err := s.store.DeleteRawMaterial(ctx, id); err != nil {
		return err
	}
	log.Printf("🗑️ Сырье удалено: %s", id)
	return nil
}

// CreatePackagingUnit создает упаковку; коэффициент строго положительный
func (s *MasterDataService) CreatePackagingUnit(ctx context.Context, input PackagingUnitInput) (*models.PackagingUnit, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errs.Validation("name", "is required")
	}
	if strings.TrimSpace(input.BaseUnitID) == "" {
		return nil, errs.Validation("base_unit_id", "is required")
	}
	baseUnit, err := s.store.GetBaseUnit(ctx, input.BaseUnitID)
	if err != nil {
		return nil, err
	}

	factor := input.ConversionFactor
	if factor.IsZero() && strings.TrimSpace(input.Label) != "" {
		suggestion, err := s.conversion.SuggestConversionFactor(input.Label, baseUnit.Name)
		if err != nil {
			return nil, err
		}
		factor = suggestion.Factor
	}
	if err := s.conversion.ValidateConversionFactor(factor); err != nil {
		return nil, err
	}

	unit := &models.PackagingUnit{
		Name:             name,
		BaseUnitID:       baseUnit.ID,
		ConversionFactor: factor,
	}
	if err := s.store.CreatePackagingUnit(ctx, unit); err != nil {
		return nil, err
	}
	return unit, nil
}

// SuggestConversionFactor - подсказка коэффициента по этикетке для формы упаковки
func (s *MasterDataService) SuggestConversionFactor(ctx context.Context, label, baseUnitID string) (*ParseFactorResult, error) {
	baseUnit, err := s.store.GetBaseUnit(ctx, baseUnitID)
	if err != nil {
		return nil, err
	}
	return s.conversion.SuggestConversionFactor(label, baseUnit.Name)
}
