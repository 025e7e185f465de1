package services

import (
	"math"
	"sort"

	"inventaris/server/internal/models"

	"github.com/shopspring/decimal"
)

// CapacityCalculator считает, сколько единиц продукта можно произвести из текущих остатков
type CapacityCalculator struct{}

// NewCapacityCalculator создает калькулятор мощности
func NewCapacityCalculator() *CapacityCalculator {
	return &CapacityCalculator{}
}

// ComputeMaxProducible = min(floor(stock_i / qtyPerUnit_i)) по всем строкам техкарты.
// Пустая техкарта -> 0. Сырье без остатка в levels считается нулевым
func (c *CapacityCalculator) ComputeMaxProducible(recipe models.Recipe, levels map[string]decimal.Decimal) int64 {
	if len(recipe.Lines) == 0 {
		return 0
	}
	result := int64(math.MaxInt64)
	for _, line := range recipe.Lines {
		capacity := lineCapacity(line, levels[line.RawMaterialID])
		if capacity < result {
			result = capacity
		}
	}
	return result
}

// CanProduce - хватает ли остатков на requested единиц
func (c *CapacityCalculator) CanProduce(recipe models.Recipe, levels map[string]decimal.Decimal, requested int64) bool {
	return c.ComputeMaxProducible(recipe, levels) >= requested
}

// LimitingMaterials возвращает сырье, которое ограничивает выпуск (узкое место)
func (c *CapacityCalculator) LimitingMaterials(recipe models.Recipe, levels map[string]decimal.Decimal) []string {
	if len(recipe.Lines) == 0 {
		return nil
	}
	max := c.ComputeMaxProducible(recipe, levels)
	var limiting []string
	for _, line := range recipe.Lines {
		if lineCapacity(line, levels[line.RawMaterialID]) == max {
			limiting = append(limiting, line.RawMaterialID)
		}
	}
	sort.Strings(limiting)
	return limiting
}

// lineCapacity = floor(stock / qtyPerUnit). Неположительный qtyPerUnit не пропускается
// при записи техкарты, здесь он дает 0
func lineCapacity(line models.RecipeLine, stock decimal.Decimal) int64 {
	if !line.QuantityRequiredPerUnit.IsPositive() || !stock.IsPositive() {
		return 0
	}
	// QuoRem с точностью 0 дает точное целое частное без округления
	units, _ := stock.QuoRem(line.QuantityRequiredPerUnit, 0)
	if units.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return math.MaxInt64
	}
	return units.IntPart()
}
