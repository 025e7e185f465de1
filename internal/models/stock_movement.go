package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MovementReason - причина движения по журналу
type MovementReason string

const (
	MovementReasonPurchase   MovementReason = "purchase"
	MovementReasonSale       MovementReason = "sale"
	MovementReasonAdjustment MovementReason = "adjustment"
)

// StockMovement - запись журнала остатков
// Delta положительная = приход, отрицательная = расход
type StockMovement struct {
	ID            string          `json:"id" gorm:"type:uuid;primaryKey"`
	RawMaterialID string          `json:"raw_material_id" gorm:"type:uuid;not null;index"`
	Delta         decimal.Decimal `json:"delta" gorm:"type:numeric;not null"`
	BalanceAfter  decimal.Decimal `json:"balance_after" gorm:"type:numeric;not null"`
	Reason        MovementReason  `json:"reason" gorm:"type:varchar(20);not null;index"`
	ReferenceID   string          `json:"reference_id" gorm:"type:varchar(64)"` // ID закупки, продажи или корректировки
	Note          string          `json:"note" gorm:"type:text"`
	CreatedAt     time.Time       `json:"created_at" gorm:"index"`
}

// TableName указывает имя таблицы
func (StockMovement) TableName() string {
	return "stock_movements"
}

// BeforeCreate генерирует UUID
func (sm *StockMovement) BeforeCreate(tx *gorm.DB) error {
	if sm.ID == "" {
		sm.ID = uuid.New().String()
	}
	return nil
}
