package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"inventaris/server/internal/errs"
	"inventaris/server/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// stockCell - остаток одного сырья со своим мьютексом.
// Все изменения остатка идут под cell.mu
type stockCell struct {
	mu  sync.Mutex
	qty decimal.Decimal
}

// MemoryStore - хранилище в памяти: по map на тип сущности, связи только через id.
// Порядок блокировок: stockCell (по возрастанию id) -> resMu -> mu
type MemoryStore struct {
	mu sync.RWMutex

	baseUnits      map[string]models.BaseUnit
	packagingUnits map[string]models.PackagingUnit
	categories     map[string]models.Category
	suppliers      map[string]models.Supplier
	rawMaterials   map[string]models.RawMaterial
	products       map[string]models.FinishedProduct
	recipeLines    map[string]models.RecipeLine // ключ: productID + "/" + rawMaterialID
	purchases      []models.Purchase
	sales          map[string]models.SaleEvent
	movements      []models.StockMovement
	stock          map[string]*stockCell

	resMu        sync.Mutex
	reservations map[string]models.StockReservation
}

// NewMemoryStore создает пустое хранилище в памяти
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		baseUnits:      make(map[string]models.BaseUnit),
		packagingUnits: make(map[string]models.PackagingUnit),
		categories:     make(map[string]models.Category),
		suppliers:      make(map[string]models.Supplier),
		rawMaterials:   make(map[string]models.RawMaterial),
		products:       make(map[string]models.FinishedProduct),
		recipeLines:    make(map[string]models.RecipeLine),
		sales:          make(map[string]models.SaleEvent),
		stock:          make(map[string]*stockCell),
		reservations:   make(map[string]models.StockReservation),
	}
}

func newID(id string) string {
	if id == "" {
		return uuid.New().String()
	}
	return id
}

func recipeKey(productID, rawMaterialID string) string {
	return productID + "/" + rawMaterialID
}

func (s *MemoryStore) CreateBaseUnit(ctx context.Context, unit *models.BaseUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.baseUnits {
		if strings.EqualFold(existing.Name, unit.Name) {
			return errs.Validation("name", "base unit "+unit.Name+" already exists")
		}
	}
	unit.ID = newID(unit.ID)
	s.baseUnits[unit.ID] = *unit
	return nil
}

func (s *MemoryStore) GetBaseUnit(ctx context.Context, id string) (*models.BaseUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	unit, ok := s.baseUnits[id]
	if !ok {
		return nil, errs.NotFound("base unit", id)
	}
	return &unit, nil
}

func (s *MemoryStore) ListBaseUnits(ctx context.Context) ([]models.BaseUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	units := make([]models.BaseUnit, 0, len(s.baseUnits))
	for _, unit := range s.baseUnits {
		units = append(units, unit)
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Name < units[j].Name })
	return units, nil
}

func (s *MemoryStore) CreatePackagingUnit(ctx context.Context, unit *models.PackagingUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	unit.ID = newID(unit.ID)
	s.packagingUnits[unit.ID] = *unit
	return nil
}

func (s *MemoryStore) GetPackagingUnit(ctx context.Context, id string) (*models.PackagingUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	unit, ok := s.packagingUnits[id]
	if !ok {
		return nil, errs.NotFound("packaging unit", id)
	}
	return &unit, nil
}

func (s *MemoryStore) CreateCategory(ctx context.Context, category *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if strings.EqualFold(existing.Name, category.Name) {
			return errs.Validation("name", "category "+category.Name+" already exists")
		}
	}
	category.ID = newID(category.ID)
	s.categories[category.ID] = *category
	return nil
}

func (s *MemoryStore) GetCategory(ctx context.Context, id string) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	category, ok := s.categories[id]
	if !ok {
		return nil, errs.NotFound("category", id)
	}
	return &category, nil
}

func (s *MemoryStore) CreateSupplier(ctx context.Context, supplier *models.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	supplier.ID = newID(supplier.ID)
	s.suppliers[supplier.ID] = *supplier
	return nil
}

func (s *MemoryStore) GetSupplier(ctx context.Context, id string) (*models.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	supplier, ok := s.suppliers[id]
	if !ok {
		return nil, errs.NotFound("supplier", id)
	}
	return &supplier, nil
}

func (s *MemoryStore) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	suppliers := make([]models.Supplier, 0, len(s.suppliers))
	for _, supplier := range s.suppliers {
		suppliers = append(suppliers, supplier)
	}
	sort.Slice(suppliers, func(i, j int) bool { return suppliers[i].Name < suppliers[j].Name })
	return suppliers, nil
}

func (s *MemoryStore) CreateRawMaterial(ctx context.Context, material *models.RawMaterial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	material.ID = newID(material.ID)
	if material.CreatedAt.IsZero() {
		material.CreatedAt = time.Now().UTC()
	}
	s.rawMaterials[material.ID] = *material
	s.stock[material.ID] = &stockCell{qty: material.StockOnHand}
	return nil
}

// GetRawMaterial возвращает сырье с актуальным остатком
func (s *MemoryStore) GetRawMaterial(ctx context.Context, id string) (*models.RawMaterial, error) {
	s.mu.RLock()
	material, ok := s.rawMaterials[id]
	cell := s.stock[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.NotFound("raw material", id)
	}
	cell.mu.Lock()
	material.StockOnHand = cell.qty
	cell.mu.Unlock()
	return &material, nil
}

func (s *MemoryStore) ListRawMaterials(ctx context.Context) ([]models.RawMaterial, error) {
	s.mu.RLock()
	materials := make([]models.RawMaterial, 0, len(s.rawMaterials))
	cells := make([]*stockCell, 0, len(s.rawMaterials))
	for id, material := range s.rawMaterials {
		materials = append(materials, material)
		cells = append(cells, s.stock[id])
	}
	s.mu.RUnlock()

	for i, cell := range cells {
		cell.mu.Lock()
		materials[i].StockOnHand = cell.qty
		cell.mu.Unlock()
	}
	sort.Slice(materials, func(i, j int) bool { return materials[i].Name < materials[j].Name })
	return materials, nil
}

func (s *MemoryStore) UpdateRawMaterial(ctx context.Context, material *models.RawMaterial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rawMaterials[material.ID]
	if !ok {
		return errs.NotFound("raw material", material.ID)
	}
	existing.Name = material.Name
	existing.CategoryID = material.CategoryID
	existing.ExclusiveSupplierID = material.ExclusiveSupplierID
	existing.MinimumStock = material.MinimumStock
	existing.UpdatedAt = time.Now().UTC()
	s.rawMaterials[material.ID] = existing
	return nil
}

func (s *MemoryStore) DeleteRawMaterial(ctx context.Context, id string) error {
	unlock, _, err := s.lockCells([]string{id})
	if err != nil {
		return err
	}
	defer unlock()
	s.resMu.Lock()
	defer s.resMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rawMaterials[id]; !ok {
		return errs.NotFound("raw material", id)
	}
	for _, line := range s.recipeLines {
		if line.RawMaterialID == id {
			return errs.Validation("raw_material_id", "raw material is used in recipe of product "+line.ProductID)
		}
	}
	for _, p := range s.purchases {
		if p.RawMaterialID == id {
			return errs.Validation("raw_material_id", "raw material has purchases")
		}
	}
	for _, r := range s.reservations {
		if r.RawMaterialID == id {
			return errs.Validation("raw_material_id", "raw material has reservations")
		}
	}
	delete(s.rawMaterials, id)
	delete(s.stock, id)
	return nil
}

func (s *MemoryStore) CreateFinishedProduct(ctx context.Context, product *models.FinishedProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	product.ID = newID(product.ID)
	s.products[product.ID] = *product
	return nil
}

func (s *MemoryStore) GetFinishedProduct(ctx context.Context, id string) (*models.FinishedProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, ok := s.products[id]
	if !ok {
		return nil, errs.NotFound("finished product", id)
	}
	return &product, nil
}

func (s *MemoryStore) InsertRecipeLine(ctx context.Context, line *models.RecipeLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recipeKey(line.ProductID, line.RawMaterialID)
	if _, exists := s.recipeLines[key]; exists {
		return &errs.DuplicateRecipeLineError{ProductID: line.ProductID, RawMaterialID: line.RawMaterialID}
	}
	line.ID = newID(line.ID)
	s.recipeLines[key] = *line
	return nil
}

func (s *MemoryStore) UpdateRecipeLine(ctx context.Context, productID, rawMaterialID string, qty decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recipeKey(productID, rawMaterialID)
	line, ok := s.recipeLines[key]
	if !ok {
		return errs.NotFound("recipe line", key)
	}
	line.QuantityRequiredPerUnit = qty
	s.recipeLines[key] = line
	return nil
}

func (s *MemoryStore) DeleteRecipeLine(ctx context.Context, productID, rawMaterialID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := recipeKey(productID, rawMaterialID)
	if _, ok := s.recipeLines[key]; !ok {
		return errs.NotFound("recipe line", key)
	}
	delete(s.recipeLines, key)
	return nil
}

func (s *MemoryStore) GetRecipe(ctx context.Context, productID string) (models.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recipe := models.Recipe{ProductID: productID}
	for _, line := range s.recipeLines {
		if line.ProductID == productID {
			recipe.Lines = append(recipe.Lines, line)
		}
	}
	sort.Slice(recipe.Lines, func(i, j int) bool {
		return recipe.Lines[i].RawMaterialID < recipe.Lines[j].RawMaterialID
	})
	return recipe, nil
}

func (s *MemoryStore) StockLevels(ctx context.Context, rawMaterialIDs []string) (map[string]decimal.Decimal, error) {
	cells, err := s.cells(rawMaterialIDs)
	if err != nil {
		return nil, err
	}
	levels := make(map[string]decimal.Decimal, len(cells))
	for id, cell := range cells {
		cell.mu.Lock()
		levels[id] = cell.qty
		cell.mu.Unlock()
	}
	return levels, nil
}

func (s *MemoryStore) cells(ids []string) (map[string]*stockCell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cells := make(map[string]*stockCell, len(ids))
	for _, id := range ids {
		cell, ok := s.stock[id]
		if !ok {
			return nil, errs.NotFound("raw material", id)
		}
		cells[id] = cell
	}
	return cells, nil
}

// lockCells захватывает остатки по возрастанию id и проверяет, что сырье
// не удалили между поиском ячейки и захватом. ids должны быть отсортированы
func (s *MemoryStore) lockCells(ids []string) (func(), map[string]*stockCell, error) {
	cells, err := s.cells(ids)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range ids {
		cells[id].mu.Lock()
	}
	unlock := func() {
		for _, id := range ids {
			cells[id].mu.Unlock()
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range ids {
		if s.stock[id] != cells[id] {
			unlock()
			return nil, nil, errs.NotFound("raw material", id)
		}
	}
	return unlock, cells, nil
}

// CommitLedger применяет дельты атомарно: блокирует остатки затронутого сырья
// по возрастанию id, проверяет Guard и неотрицательность, затем пишет все сразу
func (s *MemoryStore) CommitLedger(ctx context.Context, commit *LedgerCommit) ([]models.StockMovement, error) {
	if err := validateCommit(commit); err != nil {
		return nil, err
	}
	deltas := mergeDeltas(commit.Deltas)
	ids := make([]string, 0, len(deltas))
	for _, d := range deltas {
		ids = append(ids, d.RawMaterialID)
	}
	unlock, cells, err := s.lockCells(ids)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	levels := make(map[string]decimal.Decimal, len(ids))
	for _, id := range ids {
		levels[id] = cells[id].qty
	}
	if commit.Guard != nil {
		if err := commit.Guard(levels); err != nil {
			return nil, err
		}
	}
	balances, err := checkBalances(levels, deltas)
	if err != nil {
		return nil, err
	}

	s.resMu.Lock()
	defer s.resMu.Unlock()

	var fulfilled *models.StockReservation
	if p := commit.Purchase; p != nil {
		p.ID = newID(p.ID)
		if p.Origin == models.PurchaseOriginFromReservation {
			fulfilled, err = s.matchReservation(p)
			if err != nil {
				return nil, err
			}
		}
	}

	// Дальше ошибок нет, только запись
	for _, d := range deltas {
		cells[d.RawMaterialID].qty = balances[d.RawMaterialID]
	}
	if fulfilled != nil {
		fulfilled.Status = models.ReservationStatusFulfilled
		fulfilled.FulfilledByPurchaseID = &commit.Purchase.ID
		fulfilled.UpdatedAt = commit.At
		s.reservations[fulfilled.ID] = *fulfilled
		commit.Purchase.ReservationID = &fulfilled.ID
	}

	movements := buildMovements(commit, deltas, balances)
	s.mu.Lock()
	for i := range movements {
		movements[i].ID = newID(movements[i].ID)
		s.movements = append(s.movements, movements[i])
	}
	for _, d := range deltas {
		material, ok := s.rawMaterials[d.RawMaterialID]
		if !ok {
			continue
		}
		material.StockOnHand = balances[d.RawMaterialID]
		material.UpdatedAt = commit.At
		s.rawMaterials[d.RawMaterialID] = material
	}
	if p := commit.Purchase; p != nil {
		p.CreatedAt = commit.At
		s.purchases = append(s.purchases, *p)
	}
	if sale := commit.Sale; sale != nil {
		sale.ID = newID(sale.ID)
		sale.CreatedAt = commit.At
		s.sales[sale.ID] = *sale
	}
	s.mu.Unlock()

	return movements, nil
}

// matchReservation находит открытый резерв для закупки from_reservation.
// Вызывается под resMu
func (s *MemoryStore) matchReservation(p *models.Purchase) (*models.StockReservation, error) {
	supplierID := ""
	if p.SupplierID != nil {
		supplierID = *p.SupplierID
	}
	if p.ReservationID != nil && *p.ReservationID != "" {
		r, ok := s.reservations[*p.ReservationID]
		if !ok {
			return nil, errs.NotFound("reservation", *p.ReservationID)
		}
		if !r.IsOpen() || r.RawMaterialID != p.RawMaterialID || r.SupplierID != supplierID {
			return nil, noOpenReservation(p.RawMaterialID, supplierID)
		}
		return &r, nil
	}

	var oldest *models.StockReservation
	for _, r := range s.reservations {
		if !r.IsOpen() || r.RawMaterialID != p.RawMaterialID || r.SupplierID != supplierID {
			continue
		}
		if oldest == nil || r.CreatedAt.Before(oldest.CreatedAt) ||
			(r.CreatedAt.Equal(oldest.CreatedAt) && r.ID < oldest.ID) {
			candidate := r
			oldest = &candidate
		}
	}
	if oldest == nil {
		return nil, noOpenReservation(p.RawMaterialID, supplierID)
	}
	return oldest, nil
}

func (s *MemoryStore) ListMovements(ctx context.Context, rawMaterialID string, limit int) ([]models.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.StockMovement
	for i := len(s.movements) - 1; i >= 0; i-- {
		if s.movements[i].RawMaterialID != rawMaterialID {
			continue
		}
		result = append(result, s.movements[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// CreateReservation держит блокировку остатка сырья, как и DeleteRawMaterial
func (s *MemoryStore) CreateReservation(ctx context.Context, reservation *models.StockReservation) error {
	unlock, _, err := s.lockCells([]string{reservation.RawMaterialID})
	if err != nil {
		return err
	}
	defer unlock()
	s.resMu.Lock()
	defer s.resMu.Unlock()
	reservation.ID = newID(reservation.ID)
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = time.Now().UTC()
	}
	reservation.UpdatedAt = reservation.CreatedAt
	if reservation.Status == "" {
		reservation.Status = models.ReservationStatusOpen
	}
	s.reservations[reservation.ID] = *reservation
	return nil
}

func (s *MemoryStore) GetReservation(ctx context.Context, id string) (*models.StockReservation, error) {
	s.resMu.Lock()
	defer s.resMu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return nil, errs.NotFound("reservation", id)
	}
	return &r, nil
}

func (s *MemoryStore) CancelReservation(ctx context.Context, id string) error {
	s.resMu.Lock()
	defer s.resMu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return errs.NotFound("reservation", id)
	}
	if !r.IsOpen() {
		return errs.Validation("status", "reservation is "+string(r.Status))
	}
	r.Status = models.ReservationStatusCancelled
	s.reservations[id] = r
	return nil
}

func (s *MemoryStore) ListReservations(ctx context.Context, rawMaterialID string) ([]models.StockReservation, error) {
	s.resMu.Lock()
	defer s.resMu.Unlock()
	var result []models.StockReservation
	for _, r := range s.reservations {
		if r.RawMaterialID == rawMaterialID {
			result = append(result, r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *MemoryStore) ListPurchases(ctx context.Context, rawMaterialID string) ([]models.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.Purchase
	for _, p := range s.purchases {
		if p.RawMaterialID == rawMaterialID {
			result = append(result, p)
		}
	}
	return result, nil
}
