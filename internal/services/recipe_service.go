package services

import (
	"context"
	"strings"

	"inventaris/server/internal/errs"
	"inventaris/server/internal/models"
	"inventaris/server/internal/store"

	"github.com/shopspring/decimal"
)

// RecipeService управляет техкартами и считает производственную мощность
type RecipeService struct {
	store    store.Store
	capacity *CapacityCalculator
}

// NewRecipeService создает сервис техкарт
func NewRecipeService(st store.Store, capacity *CapacityCalculator) *RecipeService {
	return &RecipeService{store: st, capacity: capacity}
}

// CapacityResult - ответ GetMaxProducible
type CapacityResult struct {
	ProductID         string   `json:"product_id"`
	MaxProducible     int64    `json:"max_producible"`
	LimitingMaterials []string `json:"limiting_materials"`
}

func validateQuantityPerUnit(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return errs.Validation("quantity_required_per_unit", "must be greater than zero")
	}
	return nil
}

// UpsertRecipeLine добавляет сырье в техкарту. Только создание:
// повтор пары (product, raw material) -> DuplicateRecipeLineError
func (s *RecipeService) UpsertRecipeLine(ctx context.Context, productID, rawMaterialID string, qtyPerUnit decimal.Decimal) (*models.RecipeLine, error) {
	productID = strings.TrimSpace(productID)
	rawMaterialID = strings.TrimSpace(rawMaterialID)
	if productID == "" {
		return nil, errs.Validation("product_id", "is required")
	}
	if rawMaterialID == "" {
		return nil, errs.Validation("raw_material_id", "is required")
	}
	if err := validateQuantityPerUnit(qtyPerUnit); err != nil {
		return nil, err
	}
	if _, err := s.store.GetFinishedProduct(ctx, productID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetRawMaterial(ctx, rawMaterialID); err != nil {
		return nil, err
	}

	line := &models.RecipeLine{
		ProductID:               productID,
		RawMaterialID:           rawMaterialID,
		QuantityRequiredPerUnit: qtyPerUnit,
	}
	if err := s.store.InsertRecipeLine(ctx, line); err != nil {
		return nil, err
	}
	return line, nil
}

// UpdateRecipeLine меняет норму расхода существующей строки
func (s *RecipeService) UpdateRecipeLine(ctx context.Context, productID, rawMaterialID string, qtyPerUnit decimal.Decimal) error {
	if err := validateQuantityPerUnit(qtyPerUnit); err != nil {
		return err
	}
	return s.store.UpdateRecipeLine(ctx, productID, rawMaterialID, qtyPerUnit)
}

func (s *RecipeService) DeleteRecipeLine(ctx context.Context, productID, rawMaterialID string) error {
	return s.store.DeleteRecipeLine(ctx, productID, rawMaterialID)
}

// GetRecipe возвращает техкарту существующего продукта
func (s *RecipeService) GetRecipe(ctx context.Context, productID string) (models.Recipe, error) {
	if _, err := s.store.GetFinishedProduct(ctx, productID); err != nil {
		return models.Recipe{}, err
	}
	return s.store.GetRecipe(ctx, productID)
}

// GetMaxProducible - сколько единиц продукта можно сделать из текущих остатков
func (s *RecipeService) GetMaxProducible(ctx context.Context, productID string) (*CapacityResult, error) {
	recipe, err := s.GetRecipe(ctx, productID)
	if err != nil {
		return nil, err
	}
	levels, err := s.store.StockLevels(ctx, recipe.MaterialIDs())
	if err != nil {
		return nil, err
	}
	return &CapacityResult{
		ProductID:         productID,
		MaxProducible:     s.capacity.ComputeMaxProducible(recipe, levels),
		LimitingMaterials: s.capacity.LimitingMaterials(recipe, levels),
	}, nil
}
