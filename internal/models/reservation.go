package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReservationStatus - статус резерва
type ReservationStatus string

const (
	ReservationStatusOpen      ReservationStatus = "open"      // Поставщик обещал, товар не пришел
	ReservationStatusFulfilled ReservationStatus = "fulfilled" // Закрыт закупкой from_reservation
	ReservationStatusCancelled ReservationStatus = "cancelled" // Отменен вручную
)

// StockReservation - обещание поставщика (reservasi stok)
// На остаток не влияет, это запись для аудита
type StockReservation struct {
	ID                        string            `json:"id" gorm:"type:uuid;primaryKey"`
	RawMaterialID             string            `json:"raw_material_id" gorm:"type:uuid;not null;index:idx_reservation_lookup"`
	SupplierID                string            `json:"supplier_id" gorm:"type:uuid;not null;index:idx_reservation_lookup"`
	QuantityReservedBaseUnits decimal.Decimal   `json:"quantity_reserved_base_units" gorm:"type:numeric;not null"`
	PackagingUnitID           *string           `json:"packaging_unit_id" gorm:"type:uuid"` // Только для отображения
	Note                      string            `json:"note" gorm:"type:text"`
	Status                    ReservationStatus `json:"status" gorm:"type:varchar(20);not null;default:'open';index"`
	FulfilledByPurchaseID     *string           `json:"fulfilled_by_purchase_id" gorm:"type:uuid"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName указывает имя таблицы
func (StockReservation) TableName() string {
	return "stock_reservations"
}

// BeforeCreate генерирует UUID
func (r *StockReservation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = ReservationStatusOpen
	}
	return nil
}

// IsOpen - резерв еще можно закрыть закупкой
func (r *StockReservation) IsOpen() bool {
	return r.Status == ReservationStatusOpen
}
