package api

import (
	"net/http"
	"strconv"

	"inventaris/server/internal/errs"
	"inventaris/server/internal/models"
	"inventaris/server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockController - продажи, движения и корректировки остатков
type StockController struct {
	engine *services.Engine
}

// NewStockController создает контроллер остатков
func NewStockController(engine *services.Engine) *StockController {
	return &StockController{engine: engine}
}

type saleRequest struct {
	ProductID    string `json:"product_id" binding:"required"`
	QuantitySold int64  `json:"quantity_sold"`
}

// RecordSale списывает сырье по техкарте
// POST /api/v1/sales
func (sc *StockController) RecordSale(c *gin.Context) {
	var req saleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	sale, err := sc.engine.Sales.RecordSale(c.Request.Context(), req.ProductID, req.QuantitySold)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

// GetMovements возвращает журнал движений сырья
// GET /api/v1/raw-materials/:id/movements?limit=50
func (sc *StockController) GetMovements(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		respondError(c, errs.Validation("limit", "must be a non-negative integer"))
		return
	}
	movements, err := sc.engine.Ledger.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": movements, "count": len(movements)})
}

type adjustmentRequest struct {
	Delta decimal.Decimal `json:"delta"`
	Note  string          `json:"note"`
}

// AdjustStock - ручная корректировка по инвентаризации (не может увести остаток в минус)
// POST /api/v1/raw-materials/:id/adjustments
func (sc *StockController) AdjustStock(c *gin.Context) {
	var req adjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	movement, err := sc.engine.Ledger.ApplyDelta(c.Request.Context(), c.Param("id"), req.Delta,
		models.MovementReasonAdjustment, uuid.New().String(), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}
