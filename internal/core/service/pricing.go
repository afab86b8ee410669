package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-sales/internal/core/domain"
	"github.com/rl1809/shop-sales/internal/port"
)

// ProductSnapshot is the state of a product as seen by one consistent read.
type ProductSnapshot struct {
	ProductID string
	Name      string
	Price     decimal.Decimal
	Stock     int
}

type PricingResolver struct {
	store port.EntityStore
}

func NewPricingResolver(store port.EntityStore) *PricingResolver {
	return &PricingResolver{store: store}
}

// ResolvePrice returns the current unit price of a single product.
func (r *PricingResolver) ResolvePrice(ctx context.Context, productID string) (decimal.Decimal, ProductSnapshot, error) {
	snapshots, err := r.Resolve(ctx, []string{productID})
	if err != nil {
		return decimal.Zero, ProductSnapshot{}, err
	}
	snap := snapshots[productID]
	return snap.Price, snap, nil
}

// Resolve reads every product in ids at once. The first id that does not
// resolve fails the call with ErrProductNotFound.
func (r *PricingResolver) Resolve(ctx context.Context, ids []string) (map[string]ProductSnapshot, error) {
	products, err := r.store.GetProducts(ctx, ids)
	if err != nil {
		return nil, storageAborted(fmt.Errorf("read products: %w", err))
	}

	snapshots := make(map[string]ProductSnapshot, len(ids))
	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			return nil, productNotFound(id)
		}
		snapshots[id] = snapshotOf(p)
	}
	return snapshots, nil
}

func snapshotOf(p domain.Product) ProductSnapshot {
	return ProductSnapshot{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
	}
}
