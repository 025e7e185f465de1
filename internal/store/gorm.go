package store

import (
	"context"
	"errors"
	"fmt"

	"inventaris/server/internal/errs"
	"inventaris/server/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore - хранилище в PostgreSQL (или SQLite) через GORM
type GormStore struct {
	db *gorm.DB
}

// NewGormStore создает хранилище поверх открытого *gorm.DB
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func notFoundOr(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound(entity, id)
	}
	return fmt.Errorf("ошибка загрузки %s %s: %w", entity, id, err)
}

func (s *GormStore) CreateBaseUnit(ctx context.Context, unit *models.BaseUnit) error {
	if err := s.db.WithContext(ctx).Create(unit).Error; err != nil {
		if isUniqueConstraintError(err) {
			return errs.Validation("name", "base unit "+unit.Name+" already exists")
		}
		return fmt.Errorf("ошибка создания базовой единицы: %w", err)
	}
	return nil
}

func (s *GormStore) GetBaseUnit(ctx context.Context, id string) (*models.BaseUnit, error) {
	var unit models.BaseUnit
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&unit).Error; err != nil {
		return nil, notFoundOr(err, "base unit", id)
	}
	return &unit, nil
}

func (s *GormStore) ListBaseUnits(ctx context.Context) ([]models.BaseUnit, error) {
	var units []models.BaseUnit
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&units).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки базовых единиц: %w", err)
	}
	return units, nil
}

func (s *GormStore) CreatePackagingUnit(ctx context.Context, unit *models.PackagingUnit) error {
	if err := s.db.WithContext(ctx).Create(unit).Error; err != nil {
		return fmt.Errorf("ошибка создания упаковки: %w", err)
	}
	return nil
}

func (s *GormStore) GetPackagingUnit(ctx context.Context, id string) (*models.PackagingUnit, error) {
	var unit models.PackagingUnit
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&unit).Error; err != nil {
		return nil, notFoundOr(err, "packaging unit", id)
	}
	return &unit, nil
}

func (s *GormStore) CreateCategory(ctx context.Context, category *models.Category) error {
	if err := s.db.WithContext(ctx).Create(category).Error; err != nil {
		if isUniqueConstraintError(err) {
			return errs.Validation("name", "category "+category.Name+" already exists")
		}
		return fmt.Errorf("ошибка создания категории: %w", err)
	}
	return nil
}

func (s *GormStore) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	var category models.Category
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&category).Error; err != nil {
		return nil, notFoundOr(err, "category", id)
	}
	return &category, nil
}

func (s *GormStore) CreateSupplier(ctx context.Context, supplier *models.Supplier) error {
	if err := s.db.WithContext(ctx).Create(supplier).Error; err != nil {
		return fmt.Errorf("ошибка создания поставщика: %w", err)
	}
	return nil
}

func (s *GormStore) GetSupplier(ctx context.Context, id string) (*models.Supplier, error) {
	var supplier models.Supplier
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&supplier).Error; err != nil {
		return nil, notFoundOr(err, "supplier", id)
	}
	return &supplier, nil
}

func (s *GormStore) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	var suppliers []models.Supplier
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&suppliers).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки поставщиков: %w", err)
	}
	return suppliers, nil
}

func (s *GormStore) CreateRawMaterial(ctx context.Context, material *models.RawMaterial) error {
	if err := s.db.WithContext(ctx).Create(material).Error; err != nil {
		return fmt.Errorf("ошибка создания сырья: %w", err)
	}
	return nil
}

func (s *GormStore) GetRawMaterial(ctx context.Context, id string) (*models.RawMaterial, error) {
	var material models.RawMaterial
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&material).Error; err != nil {
		return nil, notFoundOr(err, "raw material", id)
	}
	return &material, nil
}

func (s *GormStore) ListRawMaterials(ctx context.Context) ([]models.RawMaterial, error) {
	var materials []models.RawMaterial
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&materials).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки сырья: %w", err)
	}
	return materials, nil
}

func (s *GormStore) UpdateRawMaterial(ctx context.Context, material *models.RawMaterial) error {
	result := s.db.WithContext(ctx).Model(&models.RawMaterial{}).
		Where("id = ?", material.ID).
		Updates(map[string]interface{}{
			"name":                  material.Name,
			"category_id":           material.CategoryID,
			"exclusive_supplier_id": material.ExclusiveSupplierID,
			"minimum_stock":         material.MinimumStock,
		})
	if result.Error != nil {
		return fmt.Errorf("ошибка обновления сырья: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.NotFound("raw material", material.ID)
	}
	return nil
}

// DeleteRawMaterial проверяет ссылки и удаляет сырье в одной транзакции
func (s *GormStore) DeleteRawMaterial(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var material models.RawMaterial
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&material).Error; err != nil {
			return notFoundOr(err, "raw material", id)
		}

		references := []struct {
			model  interface{}
			reason string
		}{
			{&models.RecipeLine{}, "raw material is used in recipes"},
			{&models.Purchase{}, "raw material has purchases"},
			{&models.StockReservation{}, "raw material has reservations"},
		}
		for _, ref := range references {
			var count int64
			if err := tx.Model(ref.model).Where("raw_material_id = ?", id).Count(&count).Error; err != nil {
				return fmt.Errorf("ошибка проверки ссылок на сырье: %w", err)
			}
			if count > 0 {
				return errs.Validation("raw_material_id", ref.reason)
			}
		}

		if err := tx.Delete(&material).Error; err != nil {
			return fmt.Errorf("ошибка удаления сырья: %w", err)
		}
		return nil
	})
}

func (s *GormStore) CreateFinishedProduct(ctx context.Context, product *models.FinishedProduct) error {
	if err := s.db.WithContext(ctx).Create(product).Error; err != nil {
		return fmt.Errorf("ошибка создания продукта: %w", err)
	}
	return nil
}

func (s *GormStore) GetFinishedProduct(ctx context.Context, id string) (*models.FinishedProduct, error) {
	var product models.FinishedProduct
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, notFoundOr(err, "finished product", id)
	}
	return &product, nil
}

// InsertRecipeLine опирается на уникальный индекс (product_id, raw_material_id)
func (s *GormStore) InsertRecipeLine(ctx context.Context, line *models.RecipeLine) error {
	if err := s.db.WithContext(ctx).Create(line).Error; err != nil {
		if isUniqueConstraintError(err) {
			return &errs.DuplicateRecipeLineError{ProductID: line.ProductID, RawMaterialID: line.RawMaterialID}
		}
		return fmt.Errorf("ошибка создания строки техкарты: %w", err)
	}
	return nil
}

func (s *GormStore) UpdateRecipeLine(ctx context.Context, productID, rawMaterialID string, qty decimal.Decimal) error {
	result := s.db.WithContext(ctx).Model(&models.RecipeLine{}).
		Where("product_id = ? AND raw_material_id = ?", productID, rawMaterialID).
		Update("quantity_required_per_unit", qty)
	if result.Error != nil {
		return fmt.Errorf("ошибка обновления строки техкарты: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.NotFound("recipe line", recipeKey(productID, rawMaterialID))
	}
	return nil
}

func (s *GormStore) DeleteRecipeLine(ctx context.Context, productID, rawMaterialID string) error {
	result := s.db.WithContext(ctx).
		Where("product_id = ? AND raw_material_id = ?", productID, rawMaterialID).
		Delete(&models.RecipeLine{})
	if result.Error != nil {
		return fmt.Errorf("ошибка удаления строки техкарты: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errs.NotFound("recipe line", recipeKey(productID, rawMaterialID))
	}
	return nil
}

func (s *GormStore) GetRecipe(ctx context.Context, productID string) (models.Recipe, error) {
	recipe := models.Recipe{ProductID: productID}
	if err := s.db.WithContext(ctx).Where("product_id = ?", productID).
		Order("raw_material_id ASC").Find(&recipe.Lines).Error; err != nil {
		return recipe, fmt.Errorf("ошибка загрузки техкарты: %w", err)
	}
	return recipe, nil
}

func (s *GormStore) StockLevels(ctx context.Context, rawMaterialIDs []string) (map[string]decimal.Decimal, error) {
	levels := make(map[string]decimal.Decimal, len(rawMaterialIDs))
	if len(rawMaterialIDs) == 0 {
		return levels, nil
	}
	var materials []models.RawMaterial
	if err := s.db.WithContext(ctx).Select("id", "stock_on_hand").
		Where("id IN ?", rawMaterialIDs).Find(&materials).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки остатков: %w", err)
	}
	for _, m := range materials {
		levels[m.ID] = m.StockOnHand
	}
	for _, id := range rawMaterialIDs {
		if _, ok := levels[id]; !ok {
			return nil, errs.NotFound("raw material", id)
		}
	}
	return levels, nil
}

// CommitLedger выполняет операцию в одной транзакции:
// SELECT ... FOR UPDATE по строкам сырья (в порядке id), Guard, проверка остатков,
// UPDATE stock_on_hand = новый остаток WHERE stock_on_hand = прочитанный, запись документа и движений
func (s *GormStore) CommitLedger(ctx context.Context, commit *LedgerCommit) ([]models.StockMovement, error) {
	if err := validateCommit(commit); err != nil {
		return nil, err
	}
	deltas := mergeDeltas(commit.Deltas)
	ids := make([]string, 0, len(deltas))
	for _, d := range deltas {
		ids = append(ids, d.RawMaterialID)
	}

	var movements []models.StockMovement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked []models.RawMaterial
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id IN ?", ids).Order("id ASC").Find(&locked).Error; err != nil {
			return fmt.Errorf("ошибка блокировки остатков: %w", err)
		}
		levels := make(map[string]decimal.Decimal, len(locked))
		for _, m := range locked {
			levels[m.ID] = m.StockOnHand
		}
		for _, id := range ids {
			if _, ok := levels[id]; !ok {
				return errs.NotFound("raw material", id)
			}
		}

		if commit.Guard != nil {
			if err := commit.Guard(levels); err != nil {
				return err
			}
		}
		balances, err := checkBalances(levels, deltas)
		if err != nil {
			return err
		}

		if p := commit.Purchase; p != nil {
			if p.ID == "" {
				p.ID = uuid.New().String()
			}
			if p.Origin == models.PurchaseOriginFromReservation {
				if err := fulfilReservation(tx, p, commit); err != nil {
					return err
				}
			}
		}

		// Новый остаток считается в Go и пишется только поверх прочитанного значения
		for _, d := range deltas {
			result := tx.Model(&models.RawMaterial{}).
				Where("id = ? AND stock_on_hand = ?", d.RawMaterialID, levels[d.RawMaterialID]).
				Update("stock_on_hand", balances[d.RawMaterialID])
			if result.Error != nil {
				return fmt.Errorf("ошибка обновления остатка: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("остаток сырья %s изменился во время операции", d.RawMaterialID)
			}
		}

		if commit.Purchase != nil {
			if err := tx.Create(commit.Purchase).Error; err != nil {
				return fmt.Errorf("ошибка сохранения закупки: %w", err)
			}
		}
		if commit.Sale != nil {
			if err := tx.Create(commit.Sale).Error; err != nil {
				return fmt.Errorf("ошибка сохранения продажи: %w", err)
			}
		}

		movements = buildMovements(commit, deltas, balances)
		if err := tx.Create(&movements).Error; err != nil {
			return fmt.Errorf("ошибка записи движений: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return movements, nil
}

// fulfilReservation закрывает резерв, который покрывает закупку from_reservation
func fulfilReservation(tx *gorm.DB, p *models.Purchase, commit *LedgerCommit) error {
	supplierID := ""
	if p.SupplierID != nil {
		supplierID = *p.SupplierID
	}

	var reservation models.StockReservation
	query := tx.Clauses(clause.Locking{Strength: "UPDATE"})
	if p.ReservationID != nil && *p.ReservationID != "" {
		if err := query.Where("id = ?", *p.ReservationID).First(&reservation).Error; err != nil {
			return notFoundOr(err, "reservation", *p.ReservationID)
		}
		if !reservation.IsOpen() || reservation.RawMaterialID != p.RawMaterialID || reservation.SupplierID != supplierID {
			return noOpenReservation(p.RawMaterialID, supplierID)
		}
	} else {
		err := query.Where("raw_material_id = ? AND supplier_id = ? AND status = ?",
			p.RawMaterialID, supplierID, models.ReservationStatusOpen).
			Order("created_at ASC, id ASC").First(&reservation).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return noOpenReservation(p.RawMaterialID, supplierID)
		}
		if err != nil {
			return fmt.Errorf("ошибка поиска резерва: %w", err)
		}
	}

	result := tx.Model(&models.StockReservation{}).
		Where("id = ? AND status = ?", reservation.ID, models.ReservationStatusOpen).
		Updates(map[string]interface{}{
			"status":                   models.ReservationStatusFulfilled,
			"fulfilled_by_purchase_id": p.ID,
			"updated_at":               commit.At,
		})
	if result.Error != nil {
		return fmt.Errorf("ошибка закрытия резерва: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return noOpenReservation(p.RawMaterialID, supplierID)
	}
	p.ReservationID = &reservation.ID
	return nil
}

func (s *GormStore) ListMovements(ctx context.Context, rawMaterialID string, limit int) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	query := s.db.WithContext(ctx).Where("raw_material_id = ?", rawMaterialID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&movements).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки движений: %w", err)
	}
	return movements, nil
}

// CreateReservation блокирует строку сырья, чтобы не разойтись с DeleteRawMaterial
func (s *GormStore) CreateReservation(ctx context.Context, reservation *models.StockReservation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var material models.RawMaterial
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").
			Where("id = ?", reservation.RawMaterialID).First(&material).Error; err != nil {
			return notFoundOr(err, "raw material", reservation.RawMaterialID)
		}
		if err := tx.Create(reservation).Error; err != nil {
			return fmt.Errorf("ошибка создания резерва: %w", err)
		}
		return nil
	})
}

func (s *GormStore) GetReservation(ctx context.Context, id string) (*models.StockReservation, error) {
	var reservation models.StockReservation
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&reservation).Error; err != nil {
		return nil, notFoundOr(err, "reservation", id)
	}
	return &reservation, nil
}

func (s *GormStore) CancelReservation(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&models.StockReservation{}).
		Where("id = ? AND status = ?", id, models.ReservationStatusOpen).
		Update("status", models.ReservationStatusCancelled)
	if result.Error != nil {
		return fmt.Errorf("ошибка отмены резерва: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		reservation, err := s.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		return errs.Validation("status", "reservation is "+string(reservation.Status))
	}
	return nil
}

func (s *GormStore) ListReservations(ctx context.Context, rawMaterialID string) ([]models.StockReservation, error) {
	var reservations []models.StockReservation
	if err := s.db.WithContext(ctx).Where("raw_material_id = ?", rawMaterialID).
		Order("created_at ASC").Find(&reservations).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки резервов: %w", err)
	}
	return reservations, nil
}

func (s *GormStore) ListPurchases(ctx context.Context, rawMaterialID string) ([]models.Purchase, error) {
	var purchases []models.Purchase
	if err := s.db.WithContext(ctx).Where("raw_material_id = ?", rawMaterialID).
		Order("purchased_at ASC").Find(&purchases).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки закупок: %w", err)
	}
	return purchases, nil
}
