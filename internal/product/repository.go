package product

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	logx "github.com/seller-copilot/server/pkg/logger"
)

// Repository holds the product catalog in memory. Reads are lock-free
// copies; the only mutation is stock reservation, which is applied
// atomically under the mutex so concurrent sessions cannot oversell.
type Repository struct {
	mu       sync.Mutex
	products map[string]*Product
}

// NewRepository loads the catalog from a JSON file. A missing file
// yields an empty repository, not an error, matching how the rest of
// the rule files behave.
func NewRepository(dataFile string) (*Repository, error) {
	r := &Repository{products: make(map[string]*Product)}

	raw, err := os.ReadFile(dataFile)
	if err != nil {
		if os.IsNotExist(err) {
			logx.Warn().Str("file", dataFile).Msg("Product catalog file not found, starting empty")
			return r, nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var items []*Product
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for _, p := range items {
		r.products[p.ID] = p
	}

	logx.Debug().Int("count", len(items)).Str("file", dataFile).Msg("Product catalog loaded")
	return r, nil
}

// Get returns a copy of the product, or nil when unknown.
func (r *Repository) Get(productID string) *Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// GetByTitle returns the first product whose title contains the query,
// case-insensitive.
func (r *Repository) GetByTitle(title string) *Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	needle := strings.ToLower(title)
	for _, p := range r.products {
		if strings.Contains(strings.ToLower(p.Title), needle) {
			cp := *p
			return &cp
		}
	}
	return nil
}

// List returns all products, optionally filtered by category and availability.
// Results are ordered by ID for deterministic iteration.
func (r *Repository) List(category string, availableOnly bool) []*Product {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Product, 0, len(r.products))
	for _, p := range r.products {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if availableOnly && !p.IsAvailable() {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CheckStock returns current availability for a product, or nil when unknown.
func (r *Repository) CheckStock(productID string) *StockStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return nil
	}
	return &StockStatus{
		ProductID:  p.ID,
		Available:  p.Stock > 0,
		Quantity:   p.Stock,
		CanReserve: p.Stock > 0,
	}
}

// Reserve atomically decrements stock by quantity. It returns false
// without side effects when the product is unknown or stock is short.
func (r *Repository) Reserve(productID string, quantity int) bool {
	if quantity <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok || p.Stock < quantity {
		return false
	}
	p.Stock -= quantity
	logx.Debug().Str("product_id", productID).Int("quantity", quantity).Int("remaining", p.Stock).Msg("Stock reserved")
	return true
}
