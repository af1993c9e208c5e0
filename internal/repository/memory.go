package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/paywallio/paywalld/internal/models"
)

// MemoryDB is a process-local Repository with the same uniqueness guarantees
// as PostgresDB. It backs tests and the --memory development mode.
type MemoryDB struct {
	mu        sync.RWMutex
	paywalls  map[string]*models.Paywall
	purchases map[models.PurchaseKey]*models.Purchase
}

var _ models.Repository = (*MemoryDB)(nil)

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		paywalls:  make(map[string]*models.Paywall),
		purchases: make(map[models.PurchaseKey]*models.Purchase),
	}
}

func (m *MemoryDB) CreatePaywall(_ context.Context, paywall *models.Paywall) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.paywalls[paywall.ID]; ok {
		return models.NewError(models.CodeDuplicatePaywallID, "paywall id %q already exists", paywall.ID)
	}
	cp := *paywall
	m.paywalls[paywall.ID] = &cp
	return nil
}

func (m *MemoryDB) GetPaywall(_ context.Context, id string) (*models.Paywall, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.paywalls[id]
	if !ok {
		return nil, models.NewError(models.CodeNotFound, "paywall %q not found", id)
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryDB) ListPaywalls(_ context.Context, limit int) ([]*models.Paywall, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Paywall, 0, len(m.paywalls))
	for _, p := range m.paywalls {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryDB) FindPurchase(_ context.Context, key models.PurchaseKey) (*models.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.purchases[key]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryDB) InsertPurchaseIfAbsent(_ context.Context, purchase *models.Purchase) (bool, *models.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.purchases[purchase.Key()]; ok {
		cp := *existing
		return false, &cp, nil
	}
	if _, ok := m.paywalls[purchase.PaywallID]; !ok {
		return false, nil, models.NewError(models.CodeNotFound, "paywall %q not found", purchase.PaywallID)
	}
	cp := *purchase
	cp.Paywall = nil
	m.purchases[purchase.Key()] = &cp
	return true, purchase, nil
}

func (m *MemoryDB) ListPurchasesByBuyer(_ context.Context, buyerAddress string) ([]*models.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Purchase
	for key, p := range m.purchases {
		if key.BuyerAddress != buyerAddress {
			continue
		}
		cp := *p
		if pw, ok := m.paywalls[p.PaywallID]; ok {
			pwCopy := *pw
			cp.Paywall = &pwCopy
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PurchasedAt.After(out[j].PurchasedAt)
	})
	return out, nil
}

func (m *MemoryDB) Ping(context.Context) error {
	return nil
}

func (m *MemoryDB) Close() error {
	return nil
}

// PurchaseCount returns the number of stored purchases.
func (m *MemoryDB) PurchaseCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.purchases)
}
