package services

import (
	"context"
	"log"
	"time"

	"inventaris/server/internal/errs"
	"inventaris/server/internal/metrics"
	"inventaris/server/internal/models"
	"inventaris/server/internal/store"

	"github.com/shopspring/decimal"
)

// MovementPublisher получает записи журнала после успешного коммита.
// Реализация не должна блокировать вызывающего
type MovementPublisher interface {
	PublishMovements(movements []models.StockMovement)
}

// StockLedger - единственная точка изменения остатков сырья
type StockLedger struct {
	store     store.Store
	publisher MovementPublisher
	metrics   *metrics.Metrics
}

// NewStockLedger создает журнал остатков; publisher и metrics могут быть nil
func NewStockLedger(st store.Store, publisher MovementPublisher, m *metrics.Metrics) *StockLedger {
	return &StockLedger{
		store:     st,
		publisher: publisher,
		metrics:   m,
	}
}

// ApplyDelta атомарно добавляет delta к остатку. Если остаток уйдет в минус,
// операция отклоняется целиком с InsufficientStockError
func (l *StockLedger) ApplyDelta(ctx context.Context, rawMaterialID string, delta decimal.Decimal, reason models.MovementReason, referenceID, note string) (*models.StockMovement, error) {
	if rawMaterialID == "" {
		return nil, errs.Validation("raw_material_id", "is required")
	}
	if delta.IsZero() {
		return nil, errs.Validation("delta", "must not be zero")
	}
	movements, err := l.Commit(ctx, &store.LedgerCommit{
		Deltas:      []store.Delta{{RawMaterialID: rawMaterialID, Amount: delta}},
		Reason:      reason,
		ReferenceID: referenceID,
		Note:        note,
	})
	if err != nil {
		return nil, err
	}
	return &movements[0], nil
}

// ApplyRecipeConsumption списывает сырье на quantity единиц продукта: все строки или ничего
func (l *StockLedger) ApplyRecipeConsumption(ctx context.Context, recipe models.Recipe, quantity int64, referenceID string) ([]models.StockMovement, error) {
	deltas, err := ConsumptionDeltas(recipe, quantity)
	if err != nil {
		return nil, err
	}
	return l.Commit(ctx, &store.LedgerCommit{
		Deltas:      deltas,
		Reason:      models.MovementReasonSale,
		ReferenceID: referenceID,
	})
}

// Commit выполняет подготовленную операцию и рассылает движения подписчикам
func (l *StockLedger) Commit(ctx context.Context, commit *store.LedgerCommit) ([]models.StockMovement, error) {
	start := time.Now()
	operation := "ledger_" + string(commit.Reason)

	movements, err := l.store.CommitLedger(ctx, commit)
	l.metrics.ObserveResult(operation, start, err)
	if err != nil {
		if errs.IsBusinessRejection(err) {
			log.Printf("⚠️ Журнал: операция %s отклонена (ref=%s): %v", commit.Reason, commit.ReferenceID, err)
		} else {
			log.Printf("❌ Журнал: ошибка операции %s (ref=%s): %v", commit.Reason, commit.ReferenceID, err)
		}
		return nil, err
	}

	l.metrics.ObserveMovements(string(commit.Reason), len(movements))
	if l.publisher != nil {
		l.publisher.PublishMovements(movements)
	}
	return movements, nil
}

// History возвращает движения по сырью, новые первыми
func (l *StockLedger) History(ctx context.Context, rawMaterialID string, limit int) ([]models.StockMovement, error) {
	if _, err := l.store.GetRawMaterial(ctx, rawMaterialID); err != nil {
		return nil, err
	}
	return l.store.ListMovements(ctx, rawMaterialID, limit)
}

// Levels - текущие остатки по списку сырья
func (l *StockLedger) Levels(ctx context.Context, rawMaterialIDs []string) (map[string]decimal.Decimal, error) {
	return l.store.StockLevels(ctx, rawMaterialIDs)
}

// ConsumptionDeltas: -(qtyPerUnit * quantity) по каждой строке техкарты
func ConsumptionDeltas(recipe models.Recipe, quantity int64) ([]store.Delta, error) {
	if quantity <= 0 {
		return nil, errs.Validation("quantity", "must be greater than zero")
	}
	if len(recipe.Lines) == 0 {
		return nil, errs.Validation("product_id", "product "+recipe.ProductID+" has no recipe lines")
	}
	q := decimal.NewFromInt(quantity)
	deltas := make([]store.Delta, 0, len(recipe.Lines))
	for _, line := range recipe.Lines {
		deltas = append(deltas, store.Delta{
			RawMaterialID: line.RawMaterialID,
			Amount:        line.QuantityRequiredPerUnit.Mul(q).Neg(),
		})
	}
	return deltas, nil
}
