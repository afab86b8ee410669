package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/rl1809/shop-sales/internal/core/domain"
	"github.com/rl1809/shop-sales/internal/port"
)

// MemoryAdapter keeps every record in process. A single mutex is held for the
// whole of AtomicApply, which makes each batch serializable.
type MemoryAdapter struct {
	mu         sync.RWMutex
	products   map[string]domain.Product
	customers  map[string]domain.Customer
	sales      map[string]domain.Sale
	requestKey map[string]string
}

var _ port.Store = (*MemoryAdapter)(nil)

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		products:   make(map[string]domain.Product),
		customers:  make(map[string]domain.Customer),
		sales:      make(map[string]domain.Sale),
		requestKey: make(map[string]string),
	}
}

func (m *MemoryAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &p, nil
}

func (m *MemoryAdapter) GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *MemoryAdapter) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.customers[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &c, nil
}

func (m *MemoryAdapter) FindSaleByRequestKey(ctx context.Context, key string) (*domain.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.requestKey[key]
	if !ok {
		return nil, port.ErrNotFound
	}
	sale := cloneSale(m.sales[id])
	return &sale, nil
}

func (m *MemoryAdapter) AtomicApply(ctx context.Context, batch domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sale, hasSale := batch.Sale()
	if hasSale {
		if _, exists := m.sales[sale.ID]; exists {
			return port.ErrAlreadyExists
		}
		if sale.RequestKey != "" {
			if _, taken := m.requestKey[sale.RequestKey]; taken {
				return port.ErrDuplicateRequest
			}
		}
	}

	// Validate against a running view so repeated decrements of one product
	// within the batch are checked cumulatively.
	pending := make(map[string]int)
	for _, d := range batch.Decrements() {
		p, ok := m.products[d.ProductID]
		if !ok {
			return &port.StockConflictError{ProductID: d.ProductID, Requested: d.Amount, Missing: true}
		}
		stock, seen := pending[d.ProductID]
		if !seen {
			stock = p.Stock
		}
		if stock < d.ExpectedMinimum || stock-d.Amount < 0 {
			return &port.StockConflictError{ProductID: d.ProductID, Requested: d.Amount, Available: stock}
		}
		pending[d.ProductID] = stock - d.Amount
	}

	for id, stock := range pending {
		p := m.products[id]
		p.Stock = stock
		m.products[id] = p
	}
	if hasSale {
		m.sales[sale.ID] = cloneSale(sale)
		if sale.RequestKey != "" {
			m.requestKey[sale.RequestKey] = sale.ID
		}
	}
	return nil
}

func (m *MemoryAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryAdapter) CreateProduct(ctx context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[product.ID]; ok {
		return port.ErrAlreadyExists
	}
	for _, p := range m.products {
		if p.SKU == product.SKU {
			return port.ErrAlreadyExists
		}
	}
	m.products[product.ID] = product
	return nil
}

func (m *MemoryAdapter) UpdateProduct(ctx context.Context, product domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[product.ID]; !ok {
		return port.ErrNotFound
	}
	m.products[product.ID] = product
	return nil
}

func (m *MemoryAdapter) DeleteProduct(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[id]; !ok {
		return port.ErrNotFound
	}
	for _, s := range m.sales {
		for _, item := range s.Items {
			if item.ProductID == id {
				return port.ErrReferenced
			}
		}
	}
	delete(m.products, id)
	return nil
}

func (m *MemoryAdapter) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryAdapter) CreateCustomer(ctx context.Context, customer domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.customers[customer.ID]; ok {
		return port.ErrAlreadyExists
	}
	if m.emailTaken(customer.Email, "") {
		return port.ErrAlreadyExists
	}
	m.customers[customer.ID] = customer
	return nil
}

func (m *MemoryAdapter) UpdateCustomer(ctx context.Context, customer domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.customers[customer.ID]; !ok {
		return port.ErrNotFound
	}
	if m.emailTaken(customer.Email, customer.ID) {
		return port.ErrAlreadyExists
	}
	m.customers[customer.ID] = customer
	return nil
}

func (m *MemoryAdapter) emailTaken(email, exceptID string) bool {
	for id, c := range m.customers {
		if id != exceptID && c.Email == email {
			return true
		}
	}
	return false
}

func (m *MemoryAdapter) DeleteCustomer(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.customers[id]; !ok {
		return port.ErrNotFound
	}
	for _, s := range m.sales {
		if s.CustomerID == id {
			return port.ErrReferenced
		}
	}
	delete(m.customers, id)
	return nil
}

func (m *MemoryAdapter) ListSales(ctx context.Context) ([]domain.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Sale, 0, len(m.sales))
	for _, s := range m.sales {
		out = append(out, m.describe(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (m *MemoryAdapter) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sales[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	sale := m.describe(s)
	return &sale, nil
}

func (m *MemoryAdapter) UpdateSaleStatus(ctx context.Context, id string, status domain.SaleStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sales[id]
	if !ok {
		return port.ErrNotFound
	}
	s.Status = status
	m.sales[id] = s
	return nil
}

// describe copies s and fills in customer and product names. Callers hold mu.
func (m *MemoryAdapter) describe(s domain.Sale) domain.Sale {
	s = cloneSale(s)
	if c, ok := m.customers[s.CustomerID]; ok {
		s.CustomerName, s.CustomerEmail = c.Name, c.Email
	}
	for i := range s.Items {
		if p, ok := m.products[s.Items[i].ProductID]; ok {
			s.Items[i].ProductName, s.Items[i].ProductSKU = p.Name, p.SKU
		}
	}
	return s
}

func cloneSale(s domain.Sale) domain.Sale {
	s.Items = append([]domain.SaleItem(nil), s.Items...)
	return s
}
