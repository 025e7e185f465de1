package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"inventaris/server/internal/errs"
	"inventaris/server/internal/models"

	"github.com/shopspring/decimal"
)

// Delta - изменение остатка одного сырья в базовых единицах
type Delta struct {
	RawMaterialID string
	Amount        decimal.Decimal
}

// Guard вызывается под блокировкой с текущими остатками затронутого сырья.
// Ошибка из Guard отменяет всю операцию
type Guard func(levels map[string]decimal.Decimal) error

// LedgerCommit - одна атомарная операция по журналу:
// проверка, изменение остатков, запись документа и движений
type LedgerCommit struct {
	Deltas      []Delta
	Reason      models.MovementReason
	ReferenceID string
	Note        string
	Guard       Guard
	At          time.Time

	// Purchase сохраняется в той же транзакции.
	// Для origin=from_reservation резерв закрывается там же
	Purchase *models.Purchase
	// Sale сохраняется в той же транзакции
	Sale *models.SaleEvent
}

// Store - хранилище сущностей движка, по одной таблице (арене) на тип
type Store interface {
	CreateBaseUnit(ctx context.Context, unit *models.BaseUnit) error
	GetBaseUnit(ctx context.Context, id string) (*models.BaseUnit, error)
	ListBaseUnits(ctx context.Context) ([]models.BaseUnit, error)

	CreatePackagingUnit(ctx context.Context, unit *models.PackagingUnit) error
	GetPackagingUnit(ctx context.Context, id string) (*models.PackagingUnit, error)

	CreateCategory(ctx context.Context, category *models.Category) error
	GetCategory(ctx context.Context, id string) (*models.Category, error)

	CreateSupplier(ctx context.Context, supplier *models.Supplier) error
	GetSupplier(ctx context.Context, id string) (*models.Supplier, error)
	ListSuppliers(ctx context.Context) ([]models.Supplier, error)

	CreateRawMaterial(ctx context.Context, material *models.RawMaterial) error
	GetRawMaterial(ctx context.Context, id string) (*models.RawMaterial, error)
	ListRawMaterials(ctx context.Context) ([]models.RawMaterial, error)
	// UpdateRawMaterial меняет имя, категорию, эксклюзивного поставщика и порог.
	// Остаток и базовая единица не меняются
	UpdateRawMaterial(ctx context.Context, material *models.RawMaterial) error
	// DeleteRawMaterial удаляет сырье, если на него нет ссылок
	DeleteRawMaterial(ctx context.Context, id string) error

	CreateFinishedProduct(ctx context.Context, product *models.FinishedProduct) error
	GetFinishedProduct(ctx context.Context, id string) (*models.FinishedProduct, error)

	// InsertRecipeLine возвращает DuplicateRecipeLineError для повторной пары
	InsertRecipeLine(ctx context.Context, line *models.RecipeLine) error
	UpdateRecipeLine(ctx context.Context, productID, rawMaterialID string, qty decimal.Decimal) error
	DeleteRecipeLine(ctx context.Context, productID, rawMaterialID string) error
	GetRecipe(ctx context.Context, productID string) (models.Recipe, error)

	StockLevels(ctx context.Context, rawMaterialIDs []string) (map[string]decimal.Decimal, error)
	CommitLedger(ctx context.Context, commit *LedgerCommit) ([]models.StockMovement, error)
	ListMovements(ctx context.Context, rawMaterialID string, limit int) ([]models.StockMovement, error)

	CreateReservation(ctx context.Context, reservation *models.StockReservation) error
	GetReservation(ctx context.Context, id string) (*models.StockReservation, error)
	CancelReservation(ctx context.Context, id string) error
	ListReservations(ctx context.Context, rawMaterialID string) ([]models.StockReservation, error)

	ListPurchases(ctx context.Context, rawMaterialID string) ([]models.Purchase, error)
}

// mergeDeltas складывает дельты по одному сырью и сортирует по id.
// Порядок по id - порядок захвата блокировок
func mergeDeltas(deltas []Delta) []Delta {
	sums := make(map[string]decimal.Decimal, len(deltas))
	for _, d := range deltas {
		sums[d.RawMaterialID] = sums[d.RawMaterialID].Add(d.Amount)
	}
	merged := make([]Delta, 0, len(sums))
	for id, amount := range sums {
		merged = append(merged, Delta{RawMaterialID: id, Amount: amount})
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].RawMaterialID < merged[j].RawMaterialID
	})
	return merged
}

// checkBalances проверяет, что ни один остаток не уйдет в минус, и возвращает новые остатки
func checkBalances(levels map[string]decimal.Decimal, deltas []Delta) (map[string]decimal.Decimal, error) {
	next := make(map[string]decimal.Decimal, len(deltas))
	for _, d := range deltas {
		current := levels[d.RawMaterialID]
		balance := current.Add(d.Amount)
		if balance.IsNegative() {
			return nil, &errs.InsufficientStockError{
				RawMaterialID: d.RawMaterialID,
				Available:     current,
				Requested:     d.Amount.Neg(),
			}
		}
		next[d.RawMaterialID] = balance
	}
	return next, nil
}

// buildMovements создает записи журнала для примененных дельт
func buildMovements(commit *LedgerCommit, deltas []Delta, balances map[string]decimal.Decimal) []models.StockMovement {
	movements := make([]models.StockMovement, 0, len(deltas))
	for _, d := range deltas {
		movements = append(movements, models.StockMovement{
			RawMaterialID: d.RawMaterialID,
			Delta:         d.Amount,
			BalanceAfter:  balances[d.RawMaterialID],
			Reason:        commit.Reason,
			ReferenceID:   commit.ReferenceID,
			Note:          commit.Note,
			CreatedAt:     commit.At,
		})
	}
	return movements
}

func validateCommit(commit *LedgerCommit) error {
	if commit == nil || len(commit.Deltas) == 0 {
		return errs.Validation("deltas", "at least one stock delta is required")
	}
	for _, d := range commit.Deltas {
		if strings.TrimSpace(d.RawMaterialID) == "" {
			return errs.Validation("raw_material_id", "is required")
		}
	}
	if commit.At.IsZero() {
		commit.At = time.Now().UTC()
	}
	return nil
}

func noOpenReservation(materialID, supplierID string) error {
	return errs.Validation("origin",
		"no open reservation from supplier "+supplierID+" for raw material "+materialID)
}

// isUniqueConstraintError распознает нарушение уникальности (PostgreSQL и SQLite)
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "unique constraint") ||
		strings.Contains(errStr, "23505")
}
