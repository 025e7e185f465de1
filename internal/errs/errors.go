package errs

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind - машинное имя типа ошибки, отдается клиенту в поле "error"
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindUnitMismatch      Kind = "unit_mismatch"
	KindExclusiveSupplier Kind = "exclusive_supplier_violation"
	KindInsufficientStock Kind = "insufficient_stock"
	KindDuplicateRecipe   Kind = "duplicate_recipe_line"
	KindNotFound          Kind = "not_found"
	KindInternal          Kind = "internal_error"
)

// ValidationError - некорректный или отсутствующий входной параметр
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// UnitMismatchError - упаковка относится к другой базовой единице
type UnitMismatchError struct {
	RawMaterialID       string
	PackagingUnitID     string
	ExpectedBaseUnitID  string
	PackagingBaseUnitID string
}

func (e *UnitMismatchError) Error() string {
	return fmt.Sprintf("packaging unit %s uses base unit %s, raw material %s uses %s",
		e.PackagingUnitID, e.PackagingBaseUnitID, e.RawMaterialID, e.ExpectedBaseUnitID)
}

// ExclusiveSupplierViolation - закупка у поставщика, не совпадающего с эксклюзивным
type ExclusiveSupplierViolation struct {
	RawMaterialID       string
	ExclusiveSupplierID string
	SupplierID          string
}

func (e *ExclusiveSupplierViolation) Error() string {
	if e.SupplierID == "" {
		return fmt.Sprintf("raw material %s is exclusive to supplier %s, supplier is required",
			e.RawMaterialID, e.ExclusiveSupplierID)
	}
	return fmt.Sprintf("raw material %s is exclusive to supplier %s, got %s",
		e.RawMaterialID, e.ExclusiveSupplierID, e.SupplierID)
}

// InsufficientStockError - операция увела бы остаток в минус
type InsufficientStockError struct {
	RawMaterialID string
	Available     decimal.Decimal
	Requested     decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for raw material %s: available %s, requested %s",
		e.RawMaterialID, e.Available.String(), e.Requested.String())
}

// DuplicateRecipeLineError - ингредиент уже есть в рецепте продукта
type DuplicateRecipeLineError struct {
	ProductID     string
	RawMaterialID string
}

func (e *DuplicateRecipeLineError) Error() string {
	return fmt.Sprintf("recipe of product %s already contains raw material %s", e.ProductID, e.RawMaterialID)
}

// NotFoundError - ссылка на неизвестный id
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// KindOf определяет тип ошибки для ответа API и метрик
func KindOf(err error) Kind {
	var (
		validationErr *ValidationError
		mismatchErr   *UnitMismatchError
		exclusiveErr  *ExclusiveSupplierViolation
		stockErr      *InsufficientStockError
		duplicateErr  *DuplicateRecipeLineError
		notFoundErr   *NotFoundError
	)
	switch {
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &mismatchErr):
		return KindUnitMismatch
	case errors.As(err, &exclusiveErr):
		return KindExclusiveSupplier
	case errors.As(err, &stockErr):
		return KindInsufficientStock
	case errors.As(err, &duplicateErr):
		return KindDuplicateRecipe
	case errors.As(err, &notFoundErr):
		return KindNotFound
	default:
		return KindInternal
	}
}

// IsBusinessRejection - отказ по бизнес-правилу (не сбой инфраструктуры)
func IsBusinessRejection(err error) bool {
	return err != nil && KindOf(err) != KindInternal
}
