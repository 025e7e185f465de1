package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BaseUnit - базовая единица учета сырья (ml, gram, pcs)
// После первой ссылки не изменяется, поэтому у нее нет UpdatedAt
type BaseUnit struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(50);not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName указывает имя таблицы
func (BaseUnit) TableName() string {
	return "base_units"
}

// BeforeCreate генерирует UUID
func (u *BaseUnit) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// PackagingUnit - упаковка (kemasan), например "dus 12 x 500 ml"
// 1 упаковка = ConversionFactor базовых единиц
type PackagingUnit struct {
	ID               string          `json:"id" gorm:"type:uuid;primaryKey"`
	Name             string          `json:"name" gorm:"type:varchar(255);not null"`
	BaseUnitID       string          `json:"base_unit_id" gorm:"type:uuid;not null;index"`
	ConversionFactor decimal.Decimal `json:"conversion_factor" gorm:"type:numeric;not null"`
	CreatedAt        time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

// TableName указывает имя таблицы
func (PackagingUnit) TableName() string {
	return "packaging_units"
}

// BeforeCreate генерирует UUID
func (p *PackagingUnit) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
