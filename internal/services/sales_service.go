package services

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"inventaris/server/internal/errs"
	"inventaris/server/internal/metrics"
	"inventaris/server/internal/models"
	"inventaris/server/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SalesService проводит продажи: проверка мощности и списание сырья в одной операции журнала
type SalesService struct {
	store    store.Store
	ledger   *StockLedger
	capacity *CapacityCalculator
	metrics  *metrics.Metrics
}

// NewSalesService создает сервис продаж
func NewSalesService(st store.Store, ledger *StockLedger, capacity *CapacityCalculator, m *metrics.Metrics) *SalesService {
	return &SalesService{
		store:    st,
		ledger:   ledger,
		capacity: capacity,
		metrics:  m,
	}
}

// RecordSale списывает сырье по техкарте на quantitySold единиц.
// Проверка CanProduce выполняется под теми же блокировками, что и списание,
// поэтому две параллельные продажи не могут обе пройти проверку и увести остаток в минус
func (s *SalesService) RecordSale(ctx context.Context, productID string, quantitySold int64) (sale *models.SaleEvent, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveResult("record_sale", start, err) }()

	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, errs.Validation("product_id", "is required")
	}
	if quantitySold <= 0 {
		return nil, errs.Validation("quantity_sold", "must be greater than zero")
	}
	if _, err := s.store.GetFinishedProduct(ctx, productID); err != nil {
		return nil, err
	}
	recipe, err := s.store.GetRecipe(ctx, productID)
	if err != nil {
		return nil, err
	}
	deltas, err := ConsumptionDeltas(recipe, quantitySold)
	if err != nil {
		return nil, err
	}

	sale = &models.SaleEvent{
		ID:           uuid.New().String(),
		ProductID:    productID,
		QuantitySold: quantitySold,
		SoldAt:       time.Now().UTC(),
	}
	_, err = s.ledger.Commit(ctx, &store.LedgerCommit{
		Deltas:      deltas,
		Reason:      models.MovementReasonSale,
		ReferenceID: sale.ID,
		Sale:        sale,
		Guard: func(levels map[string]decimal.Decimal) error {
			if s.capacity.CanProduce(recipe, levels, quantitySold) {
				return nil
			}
			return shortage(recipe, levels, quantitySold)
		},
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🧾 Продажа %s: продукт %s x%d", sale.ID, productID, quantitySold)
	return sale, nil
}

// shortage описывает первое (по id) сырье, которого не хватает
func shortage(recipe models.Recipe, levels map[string]decimal.Decimal, quantity int64) error {
	lines := append([]models.RecipeLine(nil), recipe.Lines...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].RawMaterialID < lines[j].RawMaterialID })
	q := decimal.NewFromInt(quantity)
	for _, line := range lines {
		need := line.QuantityRequiredPerUnit.Mul(q)
		if levels[line.RawMaterialID].LessThan(need) {
			return &errs.InsufficientStockError{
				RawMaterialID: line.RawMaterialID,
				Available:     levels[line.RawMaterialID],
				Requested:     need,
			}
		}
	}
	return &errs.InsufficientStockError{RawMaterialID: recipe.ProductID, Requested: q}
}
