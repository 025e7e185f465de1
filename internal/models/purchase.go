package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PurchaseOrigin - откуда пришла закупка
type PurchaseOrigin string

const (
	PurchaseOriginDirect          PurchaseOrigin = "direct"           // Прямая закупка
	PurchaseOriginFromReservation PurchaseOrigin = "from_reservation" // Закрывает резерв поставщика
)

// IsValid проверяет значение origin
func (o PurchaseOrigin) IsValid() bool {
	return o == PurchaseOriginDirect || o == PurchaseOriginFromReservation
}

// Purchase - факт закупки сырья
// Quantity хранится так, как ввели (в упаковках, если указан PackagingUnitID),
// QuantityBaseUnits - то, что реально пришло на склад
type Purchase struct {
	ID                string          `json:"id" gorm:"type:uuid;primaryKey"`
	RawMaterialID     string          `json:"raw_material_id" gorm:"type:uuid;not null;index"`
	SupplierID        *string         `json:"supplier_id" gorm:"type:uuid;index"`
	PackagingUnitID   *string         `json:"packaging_unit_id" gorm:"type:uuid"`
	ReservationID     *string         `json:"reservation_id" gorm:"type:uuid;index"`
	Quantity          decimal.Decimal `json:"quantity" gorm:"type:numeric;not null"`
	QuantityBaseUnits decimal.Decimal `json:"quantity_base_units" gorm:"type:numeric;not null"`
	UnitPrice         decimal.Decimal `json:"unit_price" gorm:"type:numeric;not null;default:0"`
	TotalPrice        decimal.Decimal `json:"total_price" gorm:"type:numeric;not null;default:0"`
	Origin            PurchaseOrigin  `json:"origin" gorm:"type:varchar(20);not null;default:'direct'"`
	PurchasedAt       time.Time       `json:"purchased_at" gorm:"not null;index"`
	CreatedAt         time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

// TableName указывает имя таблицы
func (Purchase) TableName() string {
	return "purchases"
}

// BeforeCreate генерирует UUID
func (p *Purchase) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Origin == "" {
		p.Origin = PurchaseOriginDirect
	}
	return nil
}

// SupplierIs сравнивает поставщика закупки с переданным id
func (p *Purchase) SupplierIs(supplierID string) bool {
	return p.SupplierID != nil && *p.SupplierID == supplierID
}
