package exchange_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dfarias/farmacia-api/internal/application/exchange"
	"github.com/dfarias/farmacia-api/internal/domain"
	"github.com/dfarias/farmacia-api/internal/domain/entity"
	"github.com/dfarias/farmacia-api/internal/domain/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// memStore: estado compartido en memoria de todos los repos fake.
// El TxRunner fake toma un snapshot antes del callback y lo restaura si falla,
// de modo que los tests observan la misma semántica todo-o-nada que la BD.
// ──────────────────────────────────────────────────────────────────────────────

type memStore struct {
	mu sync.Mutex

	exchanges      map[string]*entity.Exchange
	lots           map[string]*entity.StockLot
	products       map[string]*entity.Product
	establishments map[string]*entity.Establishment
	movements      []*entity.StockMovement
	payments       []*entity.ExchangePayment
	counters       map[int]int64

	// updatesToFail hace fallar los próximos N Update de exchanges con
	// ErrConcurrencyConflict, para ejercitar el reintento. No forma parte
	// del snapshot.
	updatesToFail int
}

func newMemStore() *memStore {
	return &memStore{
		exchanges:      make(map[string]*entity.Exchange),
		lots:           make(map[string]*entity.StockLot),
		products:       make(map[string]*entity.Product),
		establishments: make(map[string]*entity.Establishment),
		counters:       make(map[int]int64),
	}
}

type storeSnapshot struct {
	exchanges map[string]*entity.Exchange
	lots      map[string]*entity.StockLot
	movements []*entity.StockMovement
	payments  []*entity.ExchangePayment
	counters  map[int]int64
}

func (s *memStore) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := storeSnapshot{
		exchanges: make(map[string]*entity.Exchange, len(s.exchanges)),
		lots:      make(map[string]*entity.StockLot, len(s.lots)),
		movements: append([]*entity.StockMovement(nil), s.movements...),
		payments:  append([]*entity.ExchangePayment(nil), s.payments...),
		counters:  make(map[int]int64, len(s.counters)),
	}
	for k, v := range s.exchanges {
		snap.exchanges[k] = cloneExchange(v)
	}
	for k, v := range s.lots {
		lot := *v
		snap.lots[k] = &lot
	}
	for k, v := range s.counters {
		snap.counters[k] = v
	}
	return snap
}

func (s *memStore) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges = snap.exchanges
	s.lots = snap.lots
	s.movements = snap.movements
	s.payments = snap.payments
	s.counters = snap.counters
}

func cloneExchange(ex *entity.Exchange) *entity.Exchange {
	out := *ex
	out.Lines = append([]entity.ExchangeLine(nil), ex.Lines...)
	return &out
}

// ── repos fake ────────────────────────────────────────────────────────────────

type fakeExchangeRepo struct{ s *memStore }

func (r *fakeExchangeRepo) Create(_ context.Context, ex *entity.Exchange) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.exchanges[ex.ID] = cloneExchange(ex)
	return nil
}

func (r *fakeExchangeRepo) GetByID(_ context.Context, id string) (*entity.Exchange, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ex, ok := r.s.exchanges[id]
	if !ok {
		return nil, nil
	}
	return cloneExchange(ex), nil
}

func (r *fakeExchangeRepo) GetByReference(_ context.Context, reference string) (*entity.Exchange, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ex := range r.s.exchanges {
		if ex.Reference == reference {
			return cloneExchange(ex), nil
		}
	}
	return nil, nil
}

func (r *fakeExchangeRepo) Update(_ context.Context, ex *entity.Exchange) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.updatesToFail > 0 {
		r.s.updatesToFail--
		return domain.ErrConcurrencyConflict
	}
	stored, ok := r.s.exchanges[ex.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != ex.Version {
		return domain.ErrConcurrencyConflict
	}
	ex.Version++
	clone := cloneExchange(ex)
	clone.Lines = stored.Lines // Update persiste cabecera; las líneas van por ReplaceLines
	r.s.exchanges[ex.ID] = clone
	return nil
}

func (r *fakeExchangeRepo) ReplaceLines(_ context.Context, exchangeID string, lines []entity.ExchangeLine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ex, ok := r.s.exchanges[exchangeID]
	if !ok {
		return domain.ErrNotFound
	}
	ex.Lines = append([]entity.ExchangeLine(nil), lines...)
	return nil
}

func (r *fakeExchangeRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.exchanges, id)
	return nil
}

func (r *fakeExchangeRepo) List(_ context.Context, f repository.ExchangeFilter) ([]*entity.Exchange, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Exchange
	for _, ex := range r.s.exchanges {
		mine := ex.InitiatorEstablishmentID == f.EstablishmentID
		if f.Received {
			if mine || !ex.Involves(f.EstablishmentID) {
				continue
			}
		} else if !mine {
			continue
		}
		if f.Status != "" && ex.Status != f.Status {
			continue
		}
		if f.Direction != "" && ex.Direction != f.Direction {
			continue
		}
		if f.Search != "" && !strings.Contains(ex.Reference, f.Search) && !strings.Contains(ex.Reason, f.Search) {
			continue
		}
		out = append(out, cloneExchange(ex))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if f.Offset < len(out) {
		out = out[f.Offset:]
	} else {
		out = nil
	}
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (r *fakeExchangeRepo) NextReference(_ context.Context, year int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.counters[year]++
	return r.s.counters[year], nil
}

type fakeLotRepo struct{ s *memStore }

func (r *fakeLotRepo) Create(_ context.Context, lot *entity.StockLot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clone := *lot
	r.s.lots[lot.ID] = &clone
	return nil
}

func (r *fakeLotRepo) GetByID(_ context.Context, id string) (*entity.StockLot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	lot, ok := r.s.lots[id]
	if !ok {
		return nil, nil
	}
	clone := *lot
	return &clone, nil
}

func (r *fakeLotRepo) Debit(_ context.Context, lotID string, quantity int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	lot, ok := r.s.lots[lotID]
	if !ok {
		return domain.ErrNotFound
	}
	if lot.Quantity < quantity {
		return domain.ErrInsufficientStock
	}
	lot.Quantity -= quantity
	return nil
}

func (r *fakeLotRepo) Credit(_ context.Context, lotID string, quantity int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	lot, ok := r.s.lots[lotID]
	if !ok {
		return domain.ErrNotFound
	}
	lot.Quantity += quantity
	return nil
}

func (r *fakeLotRepo) Search(_ context.Context, establishmentID, _ string, _, _ int) ([]*entity.StockLot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.StockLot
	for _, lot := range r.s.lots {
		if lot.EstablishmentID == establishmentID {
			clone := *lot
			out = append(out, &clone)
		}
	}
	return out, nil
}

type fakeProductRepo struct{ s *memStore }

func (r *fakeProductRepo) Create(_ context.Context, p *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clone := *p
	r.s.products[p.ID] = &clone
	return nil
}

func (r *fakeProductRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (r *fakeProductRepo) GetByCode(_ context.Context, establishmentID, code string) (*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.products {
		if p.EstablishmentID == establishmentID && p.Code == code {
			clone := *p
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeProductRepo) Search(_ context.Context, establishmentID, _ string, _, _ int) ([]*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Product
	for _, p := range r.s.products {
		if p.EstablishmentID == establishmentID {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out, nil
}

type fakeEstablishmentRepo struct{ s *memStore }

func (r *fakeEstablishmentRepo) Create(_ context.Context, est *entity.Establishment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clone := *est
	r.s.establishments[est.ID] = &clone
	return nil
}

func (r *fakeEstablishmentRepo) GetByID(_ context.Context, id string) (*entity.Establishment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	est, ok := r.s.establishments[id]
	if !ok {
		return nil, nil
	}
	clone := *est
	return &clone, nil
}

func (r *fakeEstablishmentRepo) Search(_ context.Context, _ string, _, _ int) ([]*entity.Establishment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Establishment
	for _, est := range r.s.establishments {
		clone := *est
		out = append(out, &clone)
	}
	return out, nil
}

type fakeMovementRepo struct{ s *memStore }

func (r *fakeMovementRepo) Create(_ context.Context, mov *entity.StockMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clone := *mov
	r.s.movements = append(r.s.movements, &clone)
	return nil
}

func (r *fakeMovementRepo) ListByTransaction(_ context.Context, transactionID string) ([]*entity.StockMovement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.StockMovement
	for _, m := range r.s.movements {
		if m.TransactionID == transactionID {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

type fakePaymentRepo struct{ s *memStore }

func (r *fakePaymentRepo) Create(_ context.Context, p *entity.ExchangePayment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	clone := *p
	r.s.payments = append(r.s.payments, &clone)
	return nil
}

func (r *fakePaymentRepo) ListByExchange(_ context.Context, exchangeID string) ([]*entity.ExchangePayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.ExchangePayment
	for _, p := range r.s.payments {
		if p.ExchangeID == exchangeID {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out, nil
}

// fakeTxRunner ejecuta el callback con repos sobre el mismo memStore y
// restaura el snapshot si el callback falla.
type fakeTxRunner struct{ s *memStore }

func (t *fakeTxRunner) Run(_ context.Context, fn func(r exchange.TxRepos) error) error {
	snap := t.s.snapshot()
	err := fn(exchange.TxRepos{
		Exchanges: &fakeExchangeRepo{s: t.s},
		Lots:      &fakeLotRepo{s: t.s},
		Movements: &fakeMovementRepo{s: t.s},
		Payments:  &fakePaymentRepo{s: t.s},
	})
	if err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}

// fakeIdemStore recuerda las claves marcadas (sin expiración; suficiente para tests).
type fakeIdemStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{seen: make(map[string]bool)}
}

func (s *fakeIdemStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}
