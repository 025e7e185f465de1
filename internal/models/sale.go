package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SaleEvent - продажа готового продукта, списывает сырье по техкарте
type SaleEvent struct {
	ID           string    `json:"id" gorm:"type:uuid;primaryKey"`
	ProductID    string    `json:"product_id" gorm:"type:uuid;not null;index"`
	QuantitySold int64     `json:"quantity_sold" gorm:"not null"`
	SoldAt       time.Time `json:"sold_at" gorm:"not null;index"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName указывает имя таблицы
func (SaleEvent) TableName() string {
	return "sale_events"
}

// BeforeCreate генерирует UUID
func (s *SaleEvent) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
