package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Supplier представляет поставщика сырья
type Supplier struct {
	ID            string `json:"id" gorm:"type:uuid;primaryKey"`
	Name          string `json:"name" gorm:"type:varchar(255);not null"`
	ContactPerson string `json:"contact_person" gorm:"type:varchar(255)"`
	Phone         string `json:"phone" gorm:"type:varchar(50)"`
	Email         string `json:"email" gorm:"type:varchar(255)"`
	Address       string `json:"address" gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName указывает имя таблицы
func (Supplier) TableName() string {
	return "suppliers"
}

// BeforeCreate генерирует UUID
func (s *Supplier) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
