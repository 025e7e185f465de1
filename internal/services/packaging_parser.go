package services

import (
	"fmt"
	"regexp"
	"strings"

	"inventaris/server/internal/errs"

	"github.com/shopspring/decimal"
)

// unitDimension - физическая величина единицы
type unitDimension string

const (
	dimensionMass   unitDimension = "mass"
	dimensionVolume unitDimension = "volume"
	dimensionCount  unitDimension = "count"
)

type unitInfo struct {
	dimension unitDimension
	scale     decimal.Decimal // сколько граммов / миллилитров / штук в одной единице
}

// knownUnits - нормализованные названия единиц (индонезийские и латинские сокращения)
var knownUnits = map[string]unitInfo{
	"g":          {dimensionMass, decimal.NewFromInt(1)},
	"gr":         {dimensionMass, decimal.NewFromInt(1)},
	"gram":       {dimensionMass, decimal.NewFromInt(1)},
	"kg":         {dimensionMass, decimal.NewFromInt(1000)},
	"kilo":       {dimensionMass, decimal.NewFromInt(1000)},
	"kilogram":   {dimensionMass, decimal.NewFromInt(1000)},
	"ons":        {dimensionMass, decimal.NewFromInt(100)},
	"ml":         {dimensionVolume, decimal.NewFromInt(1)},
	"mililiter":  {dimensionVolume, decimal.NewFromInt(1)},
	"milliliter": {dimensionVolume, decimal.NewFromInt(1)},
	"cc":         {dimensionVolume, decimal.NewFromInt(1)},
	"l":          {dimensionVolume, decimal.NewFromInt(1000)},
	"lt":         {dimensionVolume, decimal.NewFromInt(1000)},
	"ltr":        {dimensionVolume, decimal.NewFromInt(1000)},
	"liter":      {dimensionVolume, decimal.NewFromInt(1000)},
	"pcs":        {dimensionCount, decimal.NewFromInt(1)},
	"pc":         {dimensionCount, decimal.NewFromInt(1)},
	"buah":       {dimensionCount, decimal.NewFromInt(1)},
	"biji":       {dimensionCount, decimal.NewFromInt(1)},
	"butir":      {dimensionCount, decimal.NewFromInt(1)},
	"lembar":     {dimensionCount, decimal.NewFromInt(1)},
	"sachet":     {dimensionCount, decimal.NewFromInt(1)},
	"botol":      {dimensionCount, decimal.NewFromInt(1)},
}

// quantityPattern: необязательная цепочка множителей "12 x " и затем "500 ml"
var quantityPattern = regexp.MustCompile(`((?:\d+(?:[.,]\d+)?\s*[x×*]\s*)*)(\d+(?:[.,]\d+)?)\s*([a-z]+)`)

var numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// PackagingLabelParser вычисляет коэффициент упаковки из текстовой этикетки
type PackagingLabelParser struct{}

// NewPackagingLabelParser создает новый парсер этикеток
func NewPackagingLabelParser() *PackagingLabelParser {
	return &PackagingLabelParser{}
}

// ParseFactorResult - результат разбора этикетки
type ParseFactorResult struct {
	Factor    decimal.Decimal `json:"conversion_factor"`
	Extracted string          `json:"extracted"` // Что удалось извлечь, например "12 x 500 ml"
	Message   string          `json:"message"`
}

// SuggestFactor разбирает этикетку упаковки и переводит ее в базовую единицу
// Пример: "dus 12 x 500 ml" + "ml" -> 6000, "karung 25 kg" + "gram" -> 25000
func (p *PackagingLabelParser) SuggestFactor(label, baseUnitName string) (*ParseFactorResult, error) {
	label = strings.ToLower(strings.TrimSpace(label))
	baseUnitName = strings.ToLower(strings.TrimSpace(baseUnitName))
	if label == "" {
		return nil, errs.Validation("label", "must not be empty")
	}
	base, ok := knownUnits[baseUnitName]
	if !ok {
		return nil, errs.Validation("base_unit", "unknown base unit "+baseUnitName)
	}

	// Счетные единицы перед величиной другой размерности работают как множитель:
	// "6 pcs x 2 l" -> 12 l
	pending := decimal.NewFromInt(1)
	var extracted []string

	for _, match := range quantityPattern.FindAllStringSubmatch(label, -1) {
		unit, known := knownUnits[match[3]]
		if !known {
			continue
		}
		quantity, err := parseNumber(match[2])
		if err != nil {
			continue
		}
		for _, m := range numberPattern.FindAllString(match[1], -1) {
			multiplier, err := parseNumber(m)
			if err != nil {
				return nil, errs.Validation("label", "bad multiplier "+m)
			}
			quantity = quantity.Mul(multiplier)
		}

		if unit.dimension == dimensionCount && base.dimension != dimensionCount {
			pending = pending.Mul(quantity)
			extracted = append(extracted, strings.TrimSpace(match[0]))
			continue
		}
		if unit.dimension != base.dimension {
			return nil, errs.Validation("label",
				fmt.Sprintf("%s is %s, base unit %s is %s", match[3], unit.dimension, baseUnitName, base.dimension))
		}

		factor := quantity.Mul(pending).Mul(unit.scale).Div(base.scale)
		if !factor.IsPositive() {
			return nil, errs.Validation("label", "conversion factor must be positive")
		}
		extracted = append(extracted, strings.TrimSpace(match[0]))
		return &ParseFactorResult{
			Factor:    factor,
			Extracted: strings.Join(extracted, " x "),
			Message:   fmt.Sprintf("1 kemasan = %s %s", factor.String(), baseUnitName),
		}, nil
	}

	if len(extracted) > 0 && base.dimension != dimensionCount {
		return nil, errs.Validation("label", "only piece counts found, no "+string(base.dimension)+" quantity")
	}
	return nil, errs.Validation("label", "no quantity with a known unit in "+label)
}

func parseNumber(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.Replace(s, ",", ".", 1))
}
