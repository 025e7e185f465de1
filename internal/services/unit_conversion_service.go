package services

import (
	"inventaris/server/internal/errs"
	"inventaris/server/internal/models"

	"github.com/shopspring/decimal"
)

// displayPrecision - знаков после запятой при переводе в упаковки (только для отображения)
const displayPrecision int32 = 16

// UnitConversionService переводит количества между базовой единицей и упаковкой.
// Чистые функции без состояния
type UnitConversionService struct {
	parser *PackagingLabelParser
}

// NewUnitConversionService создает сервис конвертации
func NewUnitConversionService() *UnitConversionService {
	return &UnitConversionService{parser: NewPackagingLabelParser()}
}

// ToBaseUnits: quantity * conversionFactor
func (s *UnitConversionService) ToBaseUnits(quantity decimal.Decimal, unit *models.PackagingUnit) decimal.Decimal {
	return quantity.Mul(unit.ConversionFactor)
}

// ToPackagingUnits: quantityBase / conversionFactor.
// Результат только для отображения, журнал всегда считает в базовых единицах
func (s *UnitConversionService) ToPackagingUnits(quantityBase decimal.Decimal, unit *models.PackagingUnit) decimal.Decimal {
	return quantityBase.DivRound(unit.ConversionFactor, displayPrecision)
}

// ValidateUnitCompatibility проверяет, что упаковка измеряется в базовой единице сырья
func (s *UnitConversionService) ValidateUnitCompatibility(material *models.RawMaterial, unit *models.PackagingUnit) error {
	if unit.BaseUnitID != material.BaseUnitID {
		return &errs.UnitMismatchError{
			RawMaterialID:       material.ID,
			PackagingUnitID:     unit.ID,
			ExpectedBaseUnitID:  material.BaseUnitID,
			PackagingBaseUnitID: unit.BaseUnitID,
		}
	}
	return nil
}

// ValidateConversionFactor - коэффициент упаковки строго положительный
func (s *UnitConversionService) ValidateConversionFactor(factor decimal.Decimal) error {
	if !factor.IsPositive() {
		return errs.Validation("conversion_factor", "must be greater than zero")
	}
	return nil
}

// SuggestConversionFactor предлагает коэффициент по этикетке упаковки
func (s *UnitConversionService) SuggestConversionFactor(label, baseUnitName string) (*ParseFactorResult, error) {
	return s.parser.SuggestFactor(label, baseUnitName)
}
