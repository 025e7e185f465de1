package models

import (
	"log"

	"gorm.io/gorm"
)

// AutoMigrate создает таблицы движка остатков
// Порядок важен: справочники раньше документов
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&BaseUnit{},
		&PackagingUnit{},
		&Category{},
		&Supplier{},
		&RawMaterial{},
		&FinishedProduct{},
		&RecipeLine{},
	); err != nil {
		log.Printf("❌ AutoMigrate справочников failed: %v", err)
		return err
	}
	log.Println("✅ Master data tables migrated successfully")

	if err := db.AutoMigrate(
		&Purchase{},
		&StockReservation{},
		&SaleEvent{},
		&StockMovement{},
	); err != nil {
		log.Printf("❌ AutoMigrate журнала failed: %v", err)
		return err
	}
	log.Println("✅ Ledger tables migrated successfully")
	return nil
}
