package api

import (
	"log"
	"net/http"
	"time"

	"inventaris/server/internal/errs"
	"inventaris/server/internal/models"
	"inventaris/server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ProcurementController - закупки, резервы поставщиков и отчет об ответственности
type ProcurementController struct {
	engine *services.Engine
}

// NewProcurementController создает контроллер закупок
func NewProcurementController(engine *services.Engine) *ProcurementController {
	return &ProcurementController{engine: engine}
}

type purchaseRequest struct {
	RawMaterialID   string          `json:"raw_material_id" binding:"required"`
	SupplierID      string          `json:"supplier_id"`
	PackagingUnitID string          `json:"packaging_unit_id"`
	ReservationID   string          `json:"reservation_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Origin          string          `json:"origin"` // direct | from_reservation
	PurchasedAt     *time.Time      `json:"purchased_at"`
}

// RecordPurchase проводит закупку и увеличивает остаток
// POST /api/v1/purchases
func (pc *ProcurementController) RecordPurchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	input := services.PurchaseInput{
		RawMaterialID:   req.RawMaterialID,
		SupplierID:      req.SupplierID,
		PackagingUnitID: req.PackagingUnitID,
		ReservationID:   req.ReservationID,
		Quantity:        req.Quantity,
		UnitPrice:       req.UnitPrice,
		Origin:          models.PurchaseOrigin(req.Origin),
	}
	if req.PurchasedAt != nil {
		input.PurchasedAt = req.PurchasedAt.UTC()
	}
	purchase, err := pc.engine.Reservations.RecordPurchase(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, purchase)
}

type reservationRequest struct {
	RawMaterialID   string          `json:"raw_material_id" binding:"required"`
	SupplierID      string          `json:"supplier_id" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity"`
	PackagingUnitID string          `json:"packaging_unit_id"`
	Note            string          `json:"note"`
}

// CreateReservation фиксирует обещание поставщика (остаток не меняется)
// POST /api/v1/reservations
func (pc *ProcurementController) CreateReservation(c *gin.Context) {
	var req reservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	reservation, err := pc.engine.Reservations.CreateReservation(c.Request.Context(), services.ReservationInput{
		RawMaterialID:   req.RawMaterialID,
		SupplierID:      req.SupplierID,
		Quantity:        req.Quantity,
		PackagingUnitID: req.PackagingUnitID,
		Note:            req.Note,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reservation)
}

// CancelReservation отменяет открытый резерв
// POST /api/v1/reservations/:id/cancel
func (pc *ProcurementController) CancelReservation(c *gin.Context) {
	if err := pc.engine.Reservations.CancelReservation(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(models.ReservationStatusCancelled)})
}

// ListReservations возвращает резервы по сырью
// GET /api/v1/raw-materials/:id/reservations
func (pc *ProcurementController) ListReservations(c *gin.Context) {
	reservations, err := pc.engine.Reservations.ListReservations(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": reservations, "count": len(reservations)})
}

// GetAccountabilityReport - аудит закупок по правилу эксклюзивного поставщика
// GET /api/v1/raw-materials/:id/accountability
func (pc *ProcurementController) GetAccountabilityReport(c *gin.Context) {
	report, err := pc.engine.Reservations.BuildAccountabilityReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ImportInvoice проводит закупки из XLSX накладной (multipart поле "file")
// POST /api/v1/purchases/import
func (pc *ProcurementController) ImportInvoice(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, errs.Validation("file", "XLSX file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, errs.Validation("file", err.Error()))
		return
	}
	defer file.Close()

	result, err := pc.engine.Imports.ImportXLSX(c.Request.Context(), file, c.PostForm("supplier_id"))
	if err != nil && result != nil {
		// Часть строк уже проведена: отдаем их вместе с ошибкой
		log.Printf("❌ Загрузка накладной прервана: %v", err)
		c.JSON(statusFor(errs.KindOf(err)), gin.H{
			"error":   string(errs.KindOf(err)),
			"details": err.Error(),
			"partial": result,
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
