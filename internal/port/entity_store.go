package port

import (
	"context"

	"github.com/rl1809/shop-sales/internal/core/domain"
)

type EntityStore interface {
	// GetProduct returns ErrNotFound when the id does not resolve
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// GetProducts reads all requested products in one consistent read; missing ids are absent from the map
	GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error)

	// GetCustomer returns ErrNotFound when the id does not resolve
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)

	// FindSaleByRequestKey returns ErrNotFound when no sale carries the key
	FindSaleByRequestKey(ctx context.Context, key string) (*domain.Sale, error)

	// AtomicApply applies every write or none. It returns *StockConflictError when a
	// decrement would take stock below its expected minimum and ErrDuplicateRequest
	// when the sale's request key is already taken.
	AtomicApply(ctx context.Context, batch domain.Batch) error
}
