package port

import (
	"context"

	"github.com/rl1809/shop-sales/internal/core/domain"
)

type CatalogRepository interface {
	// ListProducts returns products ordered by name
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// CreateProduct returns ErrAlreadyExists on a SKU collision
	CreateProduct(ctx context.Context, product domain.Product) error

	// UpdateProduct overwrites every mutable column, returns ErrNotFound for unknown ids
	UpdateProduct(ctx context.Context, product domain.Product) error

	// DeleteProduct returns ErrReferenced when any sale item points at the product
	DeleteProduct(ctx context.Context, id string) error

	ListCustomers(ctx context.Context) ([]domain.Customer, error)

	// CreateCustomer returns ErrAlreadyExists on an email collision
	CreateCustomer(ctx context.Context, customer domain.Customer) error

	UpdateCustomer(ctx context.Context, customer domain.Customer) error

	// DeleteCustomer returns ErrReferenced when any sale points at the customer
	DeleteCustomer(ctx context.Context, id string) error

	// ListSales returns sales newest first, items included
	ListSales(ctx context.Context) ([]domain.Sale, error)

	GetSale(ctx context.Context, id string) (*domain.Sale, error)

	UpdateSaleStatus(ctx context.Context, id string, status domain.SaleStatus) error
}

// Store is a backend that serves both the sale core and the catalog.
type Store interface {
	EntityStore
	CatalogRepository
}
