package integration

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/inventory"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/shared"
	"github.com/google/uuid"
)

// memStore is an in-memory backing store with snapshot rollback
type memStore struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	items  map[string]inventory.InventoryItem
	ledger []integration.StockSyncRecord
	lines  map[string]integration.RemoteOrderLine
	audit  []integration.AuditEntry
}

func newMemStore() *memStore {
	return &memStore{
		items: make(map[string]inventory.InventoryItem),
		lines: make(map[string]integration.RemoteOrderLine),
	}
}

func (s *memStore) addItem(sku string, quantity int64, verified bool) {
	item, err := inventory.NewInventoryItem(sku, sku+" title", quantity, verified)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[sku] = *item
}

func (s *memStore) quantity(sku string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[sku].Quantity
}

func (s *memStore) ledgerFor(sku string) []integration.StockSyncRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []integration.StockSyncRecord
	for _, r := range s.ledger {
		if r.SKU == sku {
			out = append(out, r)
		}
	}
	return out
}

func (s *memStore) lineCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

func (s *memStore) line(orderID, lineItemID string) (integration.RemoteOrderLine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lines[orderID+"/"+lineItemID]
	return l, ok
}

func (s *memStore) auditFor(entityType, entityID string) []integration.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []integration.AuditEntry
	for _, e := range s.audit {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out
}

type memSnapshot struct {
	items  map[string]inventory.InventoryItem
	ledger []integration.StockSyncRecord
	lines  map[string]integration.RemoteOrderLine
	audit  []integration.AuditEntry
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make(map[string]inventory.InventoryItem, len(s.items))
	for k, v := range s.items {
		items[k] = v
	}
	lines := make(map[string]integration.RemoteOrderLine, len(s.lines))
	for k, v := range s.lines {
		lines[k] = v
	}
	return memSnapshot{
		items:  items,
		ledger: slices.Clone(s.ledger),
		lines:  lines,
		audit:  slices.Clone(s.audit),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = snap.items
	s.ledger = snap.ledger
	s.lines = snap.lines
	s.audit = snap.audit
}

// ---------------------------------------------------------------------------
// Transaction scope
// ---------------------------------------------------------------------------

type memScope struct {
	store *memStore
	repos *NoOpTransactionScope
}

func newMemScope(store *memStore) *memScope {
	return &memScope{
		store: store,
		repos: NewNoOpTransactionScope(
			&memInventoryRepo{store: store},
			&memLedgerRepo{store: store},
			&memLineRepo{store: store},
			&memAuditLog{store: store},
		),
	}
}

func (m *memScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	m.store.txMu.Lock()
	defer m.store.txMu.Unlock()
	snap := m.store.snapshot()
	if err := fn(m.repos); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Repositories
// ---------------------------------------------------------------------------

type memInventoryRepo struct {
	store *memStore
	// failIncrement makes IncrementQuantity fail when set
	failIncrement error
}

func (r *memInventoryRepo) FindBySKU(_ context.Context, sku string) (*inventory.InventoryItem, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	item, ok := r.store.items[sku]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &item, nil
}

func (r *memInventoryRepo) Create(_ context.Context, item *inventory.InventoryItem) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.items[item.SKU]; ok {
		return shared.ErrAlreadyExists
	}
	r.store.items[item.SKU] = *item
	return nil
}

func (r *memInventoryRepo) UpdateQuantity(_ context.Context, sku string, quantity int64) (inventory.QuantityChange, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	item, ok := r.store.items[sku]
	if !ok {
		return inventory.QuantityChange{}, shared.ErrNotFound
	}
	change := inventory.QuantityChange{SKU: sku, Before: item.Quantity, After: quantity, Verified: item.Verified}
	item.Quantity = quantity
	r.store.items[sku] = item
	return change, nil
}

func (r *memInventoryRepo) IncrementQuantity(_ context.Context, sku string, delta int64) (inventory.QuantityChange, error) {
	if r.failIncrement != nil {
		return inventory.QuantityChange{}, r.failIncrement
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	item, ok := r.store.items[sku]
	if !ok {
		return inventory.QuantityChange{}, shared.ErrNotFound
	}
	change := inventory.QuantityChange{SKU: sku, Before: item.Quantity, After: item.Quantity + delta, Verified: item.Verified}
	item.Quantity += delta
	r.store.items[sku] = item
	return change, nil
}

func (r *memInventoryRepo) SetVerified(_ context.Context, sku string, verified bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	item, ok := r.store.items[sku]
	if !ok {
		return shared.ErrNotFound
	}
	item.Verified = verified
	r.store.items[sku] = item
	return nil
}

type memLedgerRepo struct {
	store *memStore
}

func (r *memLedgerRepo) UpsertOutstanding(_ context.Context, sku string, oldQuantity, newQuantity int64) (*integration.StockSyncRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range r.store.ledger {
		rec := &r.store.ledger[i]
		if rec.SKU == sku && !rec.Synced {
			if err := rec.Retarget(newQuantity); err != nil {
				return nil, err
			}
			out := *rec
			return &out, nil
		}
	}
	rec, err := integration.NewStockSyncRecord(sku, oldQuantity, newQuantity)
	if err != nil {
		return nil, err
	}
	r.store.ledger = append(r.store.ledger, *rec)
	return rec, nil
}

func (r *memLedgerRepo) FindDue(_ context.Context, limit, maxAttempts int, exclude ...uuid.UUID) ([]integration.StockSyncRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []integration.StockSyncRecord
	for _, rec := range r.store.ledger {
		if rec.IsDue(maxAttempts) && !slices.Contains(exclude, rec.ID) {
			out = append(out, rec)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memLedgerRepo) FindStuck(_ context.Context, maxAttempts, limit int) ([]integration.StockSyncRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []integration.StockSyncRecord
	for _, rec := range r.store.ledger {
		if rec.IsStuck(maxAttempts) {
			out = append(out, rec)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memLedgerRepo) FindOutstandingBySKU(_ context.Context, sku string) (*integration.StockSyncRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, rec := range r.store.ledger {
		if rec.SKU == sku && !rec.Synced {
			return &rec, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memLedgerRepo) FindBySKU(_ context.Context, sku string, limit int) ([]integration.StockSyncRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []integration.StockSyncRecord
	for i := len(r.store.ledger) - 1; i >= 0 && len(out) < limit; i-- {
		if r.store.ledger[i].SKU == sku {
			out = append(out, r.store.ledger[i])
		}
	}
	return out, nil
}

func (r *memLedgerRepo) FindByID(_ context.Context, id uuid.UUID) (*integration.StockSyncRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, rec := range r.store.ledger {
		if rec.ID == id {
			return &rec, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memLedgerRepo) MarkSynced(_ context.Context, targets []integration.StockSyncTarget, response string, at time.Time) (int64, error) {
	return r.apply(targets, func(rec *integration.StockSyncRecord) { rec.MarkSynced(response, at) }), nil
}

func (r *memLedgerRepo) RecordFailure(_ context.Context, targets []integration.StockSyncTarget, payload string) (int64, error) {
	return r.apply(targets, func(rec *integration.StockSyncRecord) { rec.RecordFailure(payload) }), nil
}

func (r *memLedgerRepo) apply(targets []integration.StockSyncTarget, fn func(rec *integration.StockSyncRecord)) int64 {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var affected int64
	for _, t := range targets {
		for i := range r.store.ledger {
			rec := &r.store.ledger[i]
			if rec.ID == t.ID && rec.NewQuantity == t.NewQuantity && !rec.Synced {
				fn(rec)
				affected++
			}
		}
	}
	return affected
}

func (r *memLedgerRepo) ResetAttempts(_ context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range r.store.ledger {
		if r.store.ledger[i].ID == id && !r.store.ledger[i].Synced {
			r.store.ledger[i].AttemptCount = 0
			return nil
		}
	}
	return shared.ErrNotFound
}

type memLineRepo struct {
	store *memStore
}

func (r *memLineRepo) FindByKey(_ context.Context, orderID, lineItemID string) (*integration.RemoteOrderLine, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	line, ok := r.store.lines[orderID+"/"+lineItemID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &line, nil
}

func (r *memLineRepo) Claim(_ context.Context, line *integration.RemoteOrderLine) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.lines[line.Key()]; ok {
		return false, nil
	}
	r.store.lines[line.Key()] = *line
	return true, nil
}

func (r *memLineRepo) Update(_ context.Context, line *integration.RemoteOrderLine) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.lines[line.Key()]; !ok {
		return shared.ErrNotFound
	}
	r.store.lines[line.Key()] = *line
	return nil
}

func (r *memLineRepo) FindByOrderID(_ context.Context, orderID string) ([]integration.RemoteOrderLine, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []integration.RemoteOrderLine
	for _, l := range r.store.lines {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out, nil
}

type memAuditLog struct {
	store *memStore
}

func (a *memAuditLog) AppendLog(_ context.Context, entityType, entityID, message string) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	a.store.audit = append(a.store.audit, integration.NewAuditEntry(entityType, entityID, message))
	return nil
}

// ---------------------------------------------------------------------------
// Marketplace fakes
// ---------------------------------------------------------------------------

type fakeMarketplace struct {
	mu    sync.Mutex
	calls [][]integration.QuantityUpdate
	// errs is consumed one per call; a nil entry or an exhausted queue means success
	errs []error
	// onCall runs before the response is returned
	onCall func(updates []integration.QuantityUpdate)
}

func (f *fakeMarketplace) BulkUpdateQuantity(_ context.Context, updates []integration.QuantityUpdate) (*integration.BulkUpdateResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, slices.Clone(updates))
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	hook := f.onCall
	f.mu.Unlock()

	if hook != nil {
		hook(updates)
	}
	if err != nil {
		return nil, err
	}
	return &integration.BulkUpdateResult{StatusCode: 200, RawResponse: `{"responses":[]}`}, nil
}

func (f *fakeMarketplace) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePageSource struct {
	mu sync.Mutex
	// pages maps a cursor ("" for the first page) to its page
	pages map[string]*integration.OrderPage
	// errs is consumed before serving pages
	errs     []error
	requests []integration.OrderPageRequest
}

func (f *fakePageSource) FetchOrderPage(_ context.Context, req integration.OrderPageRequest) (*integration.OrderPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	page, ok := f.pages[req.Cursor]
	if !ok {
		return &integration.OrderPage{}, nil
	}
	return page, nil
}

func (f *fakePageSource) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
