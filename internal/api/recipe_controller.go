package api

import (
	"net/http"

	"inventaris/server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// RecipeController управляет техкартами и мощностью производства
type RecipeController struct {
	engine *services.Engine
}

// NewRecipeController создает контроллер техкарт
func NewRecipeController(engine *services.Engine) *RecipeController {
	return &RecipeController{engine: engine}
}

type recipeLineRequest struct {
	RawMaterialID           string          `json:"raw_material_id" binding:"required"`
	QuantityRequiredPerUnit decimal.Decimal `json:"quantity_required_per_unit"`
}

// AddRecipeLine добавляет сырье в техкарту продукта (повтор -> 409)
// POST /api/v1/products/:id/recipe
func (rc *RecipeController) AddRecipeLine(c *gin.Context) {
	var req recipeLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	line, err := rc.engine.Recipes.UpsertRecipeLine(c.Request.Context(), c.Param("id"), req.RawMaterialID, req.QuantityRequiredPerUnit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

type recipeLineUpdateRequest struct {
	QuantityRequiredPerUnit decimal.Decimal `json:"quantity_required_per_unit"`
}

// UpdateRecipeLine меняет норму расхода
// PUT /api/v1/products/:id/recipe/:materialId
func (rc *RecipeController) UpdateRecipeLine(c *gin.Context) {
	var req recipeLineUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	if err := rc.engine.Recipes.UpdateRecipeLine(c.Request.Context(), c.Param("id"), c.Param("materialId"), req.QuantityRequiredPerUnit); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// DeleteRecipeLine убирает сырье из техкарты
// DELETE /api/v1/products/:id/recipe/:materialId
func (rc *RecipeController) DeleteRecipeLine(c *gin.Context) {
	if err := rc.engine.Recipes.DeleteRecipeLine(c.Request.Context(), c.Param("id"), c.Param("materialId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetRecipe возвращает техкарту продукта
// GET /api/v1/products/:id/recipe
func (rc *RecipeController) GetRecipe(c *gin.Context) {
	recipe, err := rc.engine.Recipes.GetRecipe(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// GetCapacity - сколько единиц продукта можно произвести из остатков
// GET /api/v1/products/:id/capacity
func (rc *RecipeController) GetCapacity(c *gin.Context) {
	result, err := rc.engine.Recipes.GetMaxProducible(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
