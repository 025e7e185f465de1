package api

import (
	"log"
	"net/http"
	"time"

	"inventaris/server/internal/services"

	"github.com/gin-gonic/gin"
)

// RouterOptions - необязательные части HTTP сервера
type RouterOptions struct {
	Hub            *Hub         // лента /ws/ledger; nil = без ленты
	MetricsHandler http.Handler // /metrics; nil = без метрик
	RequestLog     bool
}

// NewRouter собирает gin движок со всеми маршрутами движка остатков
func NewRouter(engine *services.Engine, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// Health check до CORS и логирования
	r.GET("/api/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "Inventaris",
			"version": "1.0.0",
		})
	})

	if opts.RequestLog {
		r.Use(func(c *gin.Context) {
			start := time.Now()
			c.Next()
			log.Printf("🌐 %s %s - Status: %d - Latency: %v",
				c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
		})
	}

	// CORS для фронтенда
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	if opts.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}
	if opts.Hub != nil {
		r.GET("/ws/ledger", ServeLedgerWS(opts.Hub))
	}

	masterData := NewMasterDataController(engine)
	recipes := NewRecipeController(engine)
	procurement := NewProcurementController(engine)
	stock := NewStockController(engine)

	apiGroup := r.Group("/api/v1")
	{
		apiGroup.POST("/base-units", masterData.CreateBaseUnit)
		apiGroup.GET("/base-units", masterData.ListBaseUnits)
		apiGroup.POST("/categories", masterData.CreateCategory)
		apiGroup.POST("/suppliers", masterData.CreateSupplier)
		apiGroup.GET("/suppliers", masterData.ListSuppliers)

		apiGroup.POST("/packaging-units", masterData.CreatePackagingUnit)
		apiGroup.POST("/packaging-units/suggest", masterData.SuggestConversionFactor) // Коэффициент по этикетке "12 x 500 ml"
	}

	materials := apiGroup.Group("/raw-materials")
	{
		materials.POST("", masterData.CreateRawMaterial)
		materials.GET("", masterData.ListRawMaterials)
		materials.GET("/low-stock", masterData.GetLowStock) // Должен быть ПЕРЕД /:id
		materials.GET("/export", masterData.ExportStock)
		materials.GET("/:id", masterData.GetRawMaterial)
		materials.PUT("/:id", masterData.UpdateRawMaterial)
		materials.DELETE("/:id", masterData.DeleteRawMaterial)
		materials.GET("/:id/movements", stock.GetMovements)
		materials.POST("/:id/adjustments", stock.AdjustStock)
		materials.GET("/:id/reservations", procurement.ListReservations)
		materials.GET("/:id/accountability", procurement.GetAccountabilityReport)
	}

	products := apiGroup.Group("/products")
	{
		products.POST("", masterData.CreateProduct)
		products.GET("/:id/recipe", recipes.GetRecipe)
		products.POST("/:id/recipe", recipes.AddRecipeLine)
		products.PUT("/:id/recipe/:materialId", recipes.UpdateRecipeLine)
		products.DELETE("/:id/recipe/:materialId", recipes.DeleteRecipeLine)
		products.GET("/:id/capacity", recipes.GetCapacity)
	}

	apiGroup.POST("/purchases", procurement.RecordPurchase)
	apiGroup.POST("/purchases/import", procurement.ImportInvoice)
	apiGroup.POST("/reservations", procurement.CreateReservation)
	apiGroup.POST("/reservations/:id/cancel", procurement.CancelReservation)
	apiGroup.POST("/sales", stock.RecordSale)

	return r
}
