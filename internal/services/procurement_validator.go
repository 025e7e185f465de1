package services

import (
	"inventaris/server/internal/errs"
	"inventaris/server/internal/models"
)

// ProcurementValidator проверяет правило эксклюзивного поставщика.
// Только предусловие, ничего не меняет
type ProcurementValidator struct{}

// NewProcurementValidator создает валидатор закупок
func NewProcurementValidator() *ProcurementValidator {
	return &ProcurementValidator{}
}

// ValidateSupplier: если у сырья задан эксклюзивный поставщик, закупать и резервировать
// можно только у него; без поставщика нельзя вовсе
func (v *ProcurementValidator) ValidateSupplier(material *models.RawMaterial, supplierID string) error {
	if !material.HasExclusiveSupplier() {
		return nil
	}
	if supplierID != *material.ExclusiveSupplierID {
		return &errs.ExclusiveSupplierViolation{
			RawMaterialID:       material.ID,
			ExclusiveSupplierID: *material.ExclusiveSupplierID,
			SupplierID:          supplierID,
		}
	}
	return nil
}
