package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-sales/internal/core/domain"
	"github.com/rl1809/shop-sales/internal/port"
)

// Demo catalog used by the stores that have no SQL seed.
var (
	demoProducts = []domain.Product{
		{ID: "1", Name: "Laptop Pro X1", SKU: "LAP-001", Price: decimal.RequireFromString("1299.99"), Stock: 50, Category: "Electronics", Description: "High-performance laptop"},
		{ID: "2", Name: "Wireless Mouse", SKU: "MOU-001", Price: decimal.RequireFromString("29.99"), Stock: 100, Category: "Electronics", Description: "Ergonomic wireless mouse"},
	}
	demoCustomers = []domain.Customer{
		{ID: "1", Name: "John Doe", Email: "john@example.com", Phone: "+1 234-567-8900", Address: "123 Main St"},
		{ID: "2", Name: "Jane Smith", Email: "jane@example.com", Phone: "+1 234-567-8901", Address: "456 Oak Ave"},
	}
)

// Seed inserts the demo catalog, leaving existing records untouched.
func (m *MemoryAdapter) Seed(ctx context.Context) error {
	for _, p := range demoProducts {
		if err := m.CreateProduct(ctx, p); err != nil && !errors.Is(err, port.ErrAlreadyExists) {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	for _, c := range demoCustomers {
		if err := m.CreateCustomer(ctx, c); err != nil && !errors.Is(err, port.ErrAlreadyExists) {
			return fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}
	return nil
}

// Seed writes the demo catalog unless the products are already present.
func (r *RedisAdapter) Seed(ctx context.Context) error {
	for _, p := range demoProducts {
		n, err := r.client.Exists(ctx, productKeyPrefix+p.ID).Result()
		if err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
		if n > 0 {
			continue
		}
		if err := r.SaveProduct(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID, err)
		}
	}
	for _, c := range demoCustomers {
		if err := r.SaveCustomer(ctx, c); err != nil {
			return fmt.Errorf("seed customer %s: %w", c.ID, err)
		}
	}
	return nil
}
