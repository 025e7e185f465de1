package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Category - группа сырья (например "Bahan kering", "Kemasan")
type Category struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName указывает имя таблицы
func (Category) TableName() string {
	return "categories"
}

// BeforeCreate генерирует UUID
func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// RawMaterial - сырье (bahan baku), остаток хранится в базовых единицах
// StockOnHand меняется только через журнал движений (StockLedger)
type RawMaterial struct {
	ID                  string          `json:"id" gorm:"type:uuid;primaryKey"`
	Name                string          `json:"name" gorm:"type:varchar(255);not null"`
	CategoryID          *string         `json:"category_id" gorm:"type:uuid;index"`
	BaseUnitID          string          `json:"base_unit_id" gorm:"type:uuid;not null;index"`
	StockOnHand         decimal.Decimal `json:"stock_on_hand" gorm:"type:numeric;not null;default:0"`
	ExclusiveSupplierID *string         `json:"exclusive_supplier_id" gorm:"type:uuid;index"` // NULL = закупка у любого поставщика
	MinimumStock        decimal.Decimal `json:"minimum_stock" gorm:"type:numeric;not null;default:0"` // Порог для low-stock отчета, 0 = не отслеживать

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName указывает имя таблицы
func (RawMaterial) TableName() string {
	return "raw_materials"
}

// BeforeCreate генерирует UUID
func (m *RawMaterial) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// HasExclusiveSupplier проверяет, ограничена ли закупка одним поставщиком
func (m *RawMaterial) HasExclusiveSupplier() bool {
	return m.ExclusiveSupplierID != nil && *m.ExclusiveSupplierID != ""
}

// IsLowStock возвращает true, если остаток на пороге или ниже
func (m *RawMaterial) IsLowStock() bool {
	if !m.MinimumStock.IsPositive() {
		return false
	}
	return m.StockOnHand.LessThanOrEqual(m.MinimumStock)
}
