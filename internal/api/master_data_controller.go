package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"inventaris/server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// MasterDataController - справочники: единицы, упаковки, категории, поставщики, сырье, продукты
type MasterDataController struct {
	engine *services.Engine
}

// NewMasterDataController создает контроллер справочников
func NewMasterDataController(engine *services.Engine) *MasterDataController {
	return &MasterDataController{engine: engine}
}

type nameRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateBaseUnit создает базовую единицу
// POST /api/v1/base-units
func (mc *MasterDataController) CreateBaseUnit(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	unit, err := mc.engine.MasterData.CreateBaseUnit(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, unit)
}

// ListBaseUnits возвращает все базовые единицы
// GET /api/v1/base-units
func (mc *MasterDataController) ListBaseUnits(c *gin.Context) {
	units, err := mc.engine.MasterData.ListBaseUnits(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": units, "count": len(units)})
}

// CreateCategory создает категорию сырья
// POST /api/v1/categories
func (mc *MasterDataController) CreateCategory(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	category, err := mc.engine.MasterData.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

type supplierRequest struct {
	Name          string `json:"name" binding:"required"`
	ContactPerson string `json:"contact_person"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Address       string `json:"address"`
}

// CreateSupplier создает поставщика
// POST /api/v1/suppliers
func (mc *MasterDataController) CreateSupplier(c *gin.Context) {
	var req supplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	supplier, err := mc.engine.MasterData.CreateSupplier(c.Request.Context(), services.SupplierInput{
		Name:          req.Name,
		ContactPerson: req.ContactPerson,
		Phone:         req.Phone,
		Email:         req.Email,
		Address:       req.Address,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, supplier)
}

// ListSuppliers возвращает поставщиков
// GET /api/v1/suppliers
func (mc *MasterDataController) ListSuppliers(c *gin.Context) {
	suppliers, err := mc.engine.MasterData.ListSuppliers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": suppliers, "count": len(suppliers)})
}

type productRequest struct {
	Name      string          `json:"name" binding:"required"`
	SellPrice decimal.Decimal `json:"sell_price"`
}

// CreateProduct создает готовый продукт
// POST /api/v1/products
func (mc *MasterDataController) CreateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	product, err := mc.engine.MasterData.CreateFinishedProduct(c.Request.Context(), req.Name, req.SellPrice)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

type rawMaterialRequest struct {
	Name                string          `json:"name" binding:"required"`
	BaseUnitID          string          `json:"base_unit_id" binding:"required"`
	CategoryID          string          `json:"category_id"`
	ExclusiveSupplierID string          `json:"exclusive_supplier_id"`
	MinimumStock        decimal.Decimal `json:"minimum_stock"`
}

// CreateRawMaterial создает сырье
// POST /api/v1/raw-materials
func (mc *MasterDataController) CreateRawMaterial(c *gin.Context) {
	var req rawMaterialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	material, err := mc.engine.MasterData.CreateRawMaterial(c.Request.Context(), services.RawMaterialInput{
		Name:                req.Name,
		BaseUnitID:          req.BaseUnitID,
		CategoryID:          req.CategoryID,
		ExclusiveSupplierID: req.ExclusiveSupplierID,
		MinimumStock:        req.MinimumStock,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, material)
}

type rawMaterialUpdateRequest struct {
	Name                *string          `json:"name"`
	BaseUnitID          *string          `json:"base_unit_id"`
	CategoryID          *string          `json:"category_id"`
	ExclusiveSupplierID *string          `json:"exclusive_supplier_id"`
	MinimumStock        *decimal.Decimal `json:"minimum_stock"`
}

// UpdateRawMaterial меняет имя, категорию, эксклюзивного поставщика или порог
// PUT /api/v1/raw-materials/:id
func (mc *MasterDataController) UpdateRawMaterial(c *gin.Context) {
	var req rawMaterialUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	material, err := mc.engine.MasterData.UpdateRawMaterial(c.Request.Context(), c.Param("id"), services.RawMaterialUpdate{
		Name:                req.Name,
		BaseUnitID:          req.BaseUnitID,
		CategoryID:          req.CategoryID,
		ExclusiveSupplierID: req.ExclusiveSupplierID,
		MinimumStock:        req.MinimumStock,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, material)
}

// GetRawMaterial возвращает сырье с текущим остатком
// GET /api/v1/raw-materials/:id
func (mc *MasterDataController) GetRawMaterial(c *gin.Context) {
	material, err := mc.engine.MasterData.GetRawMaterial(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, material)
}

// ListRawMaterials возвращает все сырье
// GET /api/v1/raw-materials
func (mc *MasterDataController) ListRawMaterials(c *gin.Context) {
	materials, err := mc.engine.MasterData.ListRawMaterials(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": materials, "count": len(materials)})
}

// GetLowStock возвращает сырье ниже порога MinimumStock
// GET /api/v1/raw-materials/low-stock
func (mc *MasterDataController) GetLowStock(c *gin.Context) {
	materials, err := mc.engine.MasterData.LowStock(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": materials, "count": len(materials)})
}

// DeleteRawMaterial удаляет сырье без ссылок
// DELETE /api/v1/raw-materials/:id
func (mc *MasterDataController) DeleteRawMaterial(c *gin.Context) {
	if err := mc.engine.MasterData.DeleteRawMaterial(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type packagingUnitRequest struct {
	Name             string          `json:"name" binding:"required"`
	BaseUnitID       string          `json:"base_unit_id" binding:"required"`
	ConversionFactor decimal.Decimal `json:"conversion_factor"`
	Label            string          `json:"label"` // если коэффициент не задан, считаем по этикетке
}

// CreatePackagingUnit создает упаковку
// POST /api/v1/packaging-units
func (mc *MasterDataController) CreatePackagingUnit(c *gin.Context) {
	var req packagingUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	unit, err := mc.engine.MasterData.CreatePackagingUnit(c.Request.Context(), services.PackagingUnitInput{
		Name:             req.Name,
		BaseUnitID:       req.BaseUnitID,
		ConversionFactor: req.ConversionFactor,
		Label:            req.Label,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, unit)
}

type suggestFactorRequest struct {
	Label      string `json:"label" binding:"required"`
	BaseUnitID string `json:"base_unit_id" binding:"required"`
}

// SuggestConversionFactor разбирает этикетку упаковки и предлагает коэффициент
// POST /api/v1/packaging-units/suggest
func (mc *MasterDataController) SuggestConversionFactor(c *gin.Context) {
	var req suggestFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	result, err := mc.engine.MasterData.SuggestConversionFactor(c.Request.Context(), req.Label, req.BaseUnitID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExportStock выгружает остатки в XLSX (шаблон накладной)
// GET /api/v1/raw-materials/export
func (mc *MasterDataController) ExportStock(c *gin.Context) {
	var buf bytes.Buffer
	if err := mc.engine.MasterData.ExportStockXLSX(c.Request.Context(), &buf); err != nil {
		respondError(c, err)
		return
	}
	filename := fmt.Sprintf("stok_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
