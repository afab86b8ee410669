package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-sales/internal/core/domain"
	"github.com/rl1809/shop-sales/internal/port"
)

type ProductInput struct {
	Name        string
	SKU         string
	Price       decimal.Decimal
	Stock       int
	Category    string
	Description string
}

type CustomerInput struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// CatalogService manages products, customers and the sale read model. Stock
// is only ever lowered by SaleService; here it is set by catalog edits.
type CatalogService struct {
	repo  port.CatalogRepository
	store port.EntityStore
	newID func() string
}

func NewCatalogService(repo port.CatalogRepository, store port.EntityStore) *CatalogService {
	return &CatalogService{repo: repo, store: store, newID: uuid.NewString}
}

func (c *CatalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return c.repo.ListProducts(ctx)
}

func (c *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := c.store.GetProduct(ctx, id)
	if errors.Is(err, port.ErrNotFound) {
		return nil, productNotFound(id)
	}
	return p, err
}

func (c *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	in = normalizeProduct(in)
	if err := validateProduct(in); err != nil {
		return nil, err
	}

	p := domain.Product{
		ID:          c.newID(),
		Name:        in.Name,
		SKU:         in.SKU,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    in.Category,
		Description: in.Description,
	}
	if err := c.repo.CreateProduct(ctx, p); err != nil {
		if errors.Is(err, port.ErrAlreadyExists) {
			return nil, ErrDuplicateSKU
		}
		return nil, err
	}
	return &p, nil
}

func (c *CatalogService) UpdateProduct(ctx context.Context, id string, in ProductInput) (*domain.Product, error) {
	current, err := c.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	in = normalizeProduct(in)
	if in.SKU == "" {
		in.SKU = current.SKU
	}
	if in.SKU != current.SKU {
		return nil, ErrSKUImmutable
	}
	if err := validateProduct(in); err != nil {
		return nil, err
	}

	p := domain.Product{
		ID:          id,
		Name:        in.Name,
		SKU:         current.SKU,
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    in.Category,
		Description: in.Description,
	}
	if err := c.repo.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, productNotFound(id)
		}
		return nil, err
	}
	return &p, nil
}

func (c *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	err := c.repo.DeleteProduct(ctx, id)
	switch {
	case errors.Is(err, port.ErrNotFound):
		return productNotFound(id)
	case errors.Is(err, port.ErrReferenced):
		return ErrProductInUse
	}
	return err
}

func (c *CatalogService) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return c.repo.ListCustomers(ctx)
}

func (c *CatalogService) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	cu, err := c.store.GetCustomer(ctx, id)
	if errors.Is(err, port.ErrNotFound) {
		return nil, ErrCustomerNotFound
	}
	return cu, err
}

func (c *CatalogService) CreateCustomer(ctx context.Context, in CustomerInput) (*domain.Customer, error) {
	in = normalizeCustomer(in)
	if err := validateCustomer(in); err != nil {
		return nil, err
	}

	cu := domain.Customer{
		ID:      c.newID(),
		Name:    in.Name,
		Email:   in.Email,
		Phone:   in.Phone,
		Address: in.Address,
	}
	if err := c.repo.CreateCustomer(ctx, cu); err != nil {
		if errors.Is(err, port.ErrAlreadyExists) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return &cu, nil
}

func (c *CatalogService) UpdateCustomer(ctx context.Context, id string, in CustomerInput) (*domain.Customer, error) {
	in = normalizeCustomer(in)
	if err := validateCustomer(in); err != nil {
		return nil, err
	}

	cu := domain.Customer{
		ID:      id,
		Name:    in.Name,
		Email:   in.Email,
		Phone:   in.Phone,
		Address: in.Address,
	}
	err := c.repo.UpdateCustomer(ctx, cu)
	switch {
	case errors.Is(err, port.ErrNotFound):
		return nil, ErrCustomerNotFound
	case errors.Is(err, port.ErrAlreadyExists):
		return nil, ErrDuplicateEmail
	case err != nil:
		return nil, err
	}
	return &cu, nil
}

func (c *CatalogService) DeleteCustomer(ctx context.Context, id string) error {
	err := c.repo.DeleteCustomer(ctx, id)
	switch {
	case errors.Is(err, port.ErrNotFound):
		return ErrCustomerNotFound
	case errors.Is(err, port.ErrReferenced):
		return ErrCustomerInUse
	}
	return err
}

func (c *CatalogService) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return c.repo.ListSales(ctx)
}

func (c *CatalogService) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := c.repo.GetSale(ctx, id)
	if errors.Is(err, port.ErrNotFound) {
		return nil, ErrSaleNotFound
	}
	return sale, err
}

// CancelSale moves a sale to cancelled. Stock is not restored.
func (c *CatalogService) CancelSale(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := c.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}
	if sale.Status == domain.SaleStatusCancelled {
		return nil, ErrInvalidTransition
	}

	if err := c.repo.UpdateSaleStatus(ctx, id, domain.SaleStatusCancelled); err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	sale.Status = domain.SaleStatusCancelled
	return sale, nil
}

func normalizeProduct(in ProductInput) ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.SKU = strings.TrimSpace(in.SKU)
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

func validateProduct(in ProductInput) error {
	switch {
	case in.Name == "":
		return &ValidationError{Field: "name", Reason: "name is required"}
	case in.SKU == "":
		return &ValidationError{Field: "sku", Reason: "sku is required"}
	case !in.Price.IsPositive():
		return &ValidationError{Field: "price", Reason: "price must be positive"}
	case in.Stock < 0:
		return &ValidationError{Field: "stock", Reason: "stock cannot be negative"}
	case in.Category == "":
		return &ValidationError{Field: "category", Reason: "category is required"}
	}
	return nil
}

func normalizeCustomer(in CustomerInput) CustomerInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	return in
}

func validateCustomer(in CustomerInput) error {
	if in.Name == "" {
		return &ValidationError{Field: "name", Reason: "name is required"}
	}
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email {
		return &ValidationError{Field: "email", Reason: "email is invalid"}
	}
	return nil
}
