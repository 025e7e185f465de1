package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FinishedProduct - готовый продукт
// StockOnHand - отдельный счетчик штук на витрине, продажа его не трогает
type FinishedProduct struct {
	ID          string          `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string          `json:"name" gorm:"type:varchar(255);not null"`
	SellPrice   decimal.Decimal `json:"sell_price" gorm:"type:numeric;not null;default:0"`
	StockOnHand int64           `json:"stock_on_hand" gorm:"not null;default:0"`

	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName указывает имя таблицы
func (FinishedProduct) TableName() string {
	return "finished_products"
}

// BeforeCreate генерирует UUID
func (p *FinishedProduct) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// RecipeLine - строка техкарты (resep): сколько базовых единиц сырья нужно на 1 продукт
// Пара (ProductID, RawMaterialID) уникальна
type RecipeLine struct {
	ID                      string          `json:"id" gorm:"type:uuid;primaryKey"`
	ProductID               string          `json:"product_id" gorm:"type:uuid;not null;uniqueIndex:idx_recipe_product_material"`
	RawMaterialID           string          `json:"raw_material_id" gorm:"type:uuid;not null;uniqueIndex:idx_recipe_product_material;index"`
	QuantityRequiredPerUnit decimal.Decimal `json:"quantity_required_per_unit" gorm:"type:numeric;not null"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (RecipeLine) TableName() string {
	return "recipe_lines"
}

// BeforeCreate генерирует UUID
func (l *RecipeLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return nil
}

// Recipe - все строки техкарты одного продукта
type Recipe struct {
	ProductID string       `json:"product_id"`
	Lines     []RecipeLine `json:"lines"`
}

// MaterialIDs возвращает id сырья из техкарты
func (r Recipe) MaterialIDs() []string {
	ids := make([]string, 0, len(r.Lines))
	for _, line := range r.Lines {
		ids = append(ids, line.RawMaterialID)
	}
	return ids
}
