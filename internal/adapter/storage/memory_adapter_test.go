package storage

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/shop-sales/internal/core/domain"
	"github.com/rl1809/shop-sales/internal/port"
)

func seededMemory(t *testing.T, stock int) *MemoryAdapter {
	t.Helper()
	m := NewMemoryAdapter()
	ctx := context.Background()
	require.NoError(t, m.CreateProduct(ctx, domain.Product{
		ID: "p1", Name: "Laptop", SKU: "LAP-001", Price: decimal.RequireFromString("10.00"), Stock: stock, Category: "Electronics",
	}))
	require.NoError(t, m.CreateCustomer(ctx, domain.Customer{ID: "c1", Name: "John Doe", Email: "john@example.com"}))
	return m
}

func saleBatch(saleID, requestKey string, qty int) domain.Batch {
	price := decimal.RequireFromString("10.00")
	item := domain.SaleItem{ID: saleID + "-i1", SaleID: saleID, ProductID: "p1", Quantity: qty, Price: price}
	return domain.Batch{
		domain.InsertSale{Sale: domain.Sale{
			ID: saleID, CustomerID: "c1", Date: time.Now().UTC(), Status: domain.SaleStatusCompleted,
			Total: domain.ComputeTotal([]domain.SaleItem{item}), RequestKey: requestKey,
		}},
		domain.InsertSaleItem{Item: item},
		domain.DecrementStock{ProductID: "p1", Amount: qty, ExpectedMinimum: qty},
	}
}

// lineOrderProducts are listed in the order multiLineBatch sells them, which
// is not id order.
var lineOrderProducts = []string{"p3", "p1", "p2"}

func multiLineBatch(saleID string) domain.Batch {
	price := decimal.RequireFromString("10.00")
	sale := domain.Sale{ID: saleID, CustomerID: "c1", Date: time.Now().UTC(), Status: domain.SaleStatusCompleted}
	batch := domain.Batch{nil}
	var items []domain.SaleItem
	for i, id := range lineOrderProducts {
		item := domain.SaleItem{ID: fmt.Sprintf("%s-i%d", saleID, 9-i), SaleID: saleID, ProductID: id, Quantity: 1, Price: price}
		items = append(items, item)
		batch = append(batch, domain.InsertSaleItem{Item: item, Position: i})
	}
	sale.Total = domain.ComputeTotal(items)
	batch[0] = domain.InsertSale{Sale: sale}
	for _, id := range []string{"p1", "p2", "p3"} {
		batch = append(batch, domain.DecrementStock{ProductID: id, Amount: 1, ExpectedMinimum: 1})
	}
	return batch
}

func TestMemoryAtomicApply_Success(t *testing.T) {
	m := seededMemory(t, 5)
	ctx := context.Background()

	require.NoError(t, m.AtomicApply(ctx, saleBatch("s1", "", 3)))

	p, err := m.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)

	sale, err := m.GetSale(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, sale.Items, 1)
	assert.True(t, sale.Total.Equal(decimal.RequireFromString("30.00")))
}

func TestMemoryAtomicApply_ConflictLeavesNothing(t *testing.T) {
	m := seededMemory(t, 5)
	ctx := context.Background()

	err := m.AtomicApply(ctx, saleBatch("s1", "", 6))

	var conflict *port.StockConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "p1", conflict.ProductID)
	assert.Equal(t, 6, conflict.Requested)
	assert.Equal(t, 5, conflict.Available)

	p, _ := m.GetProduct(ctx, "p1")
	assert.Equal(t, 5, p.Stock)
	_, err = m.GetSale(ctx, "s1")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestMemoryAtomicApply_MissingProduct(t *testing.T) {
	m := seededMemory(t, 5)
	batch := domain.Batch{domain.DecrementStock{ProductID: "ghost", Amount: 1, ExpectedMinimum: 1}}

	var conflict *port.StockConflictError
	require.ErrorAs(t, m.AtomicApply(context.Background(), batch), &conflict)
	assert.True(t, conflict.Missing)
}

func TestMemoryAtomicApply_CumulativeDecrements(t *testing.T) {
	m := seededMemory(t, 5)
	batch := domain.Batch{
		domain.DecrementStock{ProductID: "p1", Amount: 3, ExpectedMinimum: 3},
		domain.DecrementStock{ProductID: "p1", Amount: 3, ExpectedMinimum: 3},
	}

	var conflict *port.StockConflictError
	require.ErrorAs(t, m.AtomicApply(context.Background(), batch), &conflict)
	assert.Equal(t, 2, conflict.Available)

	p, _ := m.GetProduct(context.Background(), "p1")
	assert.Equal(t, 5, p.Stock)
}

func TestMemoryAtomicApply_DuplicateRequestKey(t *testing.T) {
	m := seededMemory(t, 10)
	ctx := context.Background()

	require.NoError(t, m.AtomicApply(ctx, saleBatch("s1", "key-1", 1)))
	assert.ErrorIs(t, m.AtomicApply(ctx, saleBatch("s2", "key-1", 1)), port.ErrDuplicateRequest)

	sale, err := m.FindSaleByRequestKey(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sale.ID)

	p, _ := m.GetProduct(ctx, "p1")
	assert.Equal(t, 9, p.Stock)
}

func TestMemoryAtomicApply_CanceledContext(t *testing.T) {
	m := seededMemory(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.AtomicApply(ctx, saleBatch("s1", "", 1)), context.Canceled)
}

func TestMemoryAtomicApply_Concurrent(t *testing.T) {
	initialStock := 20
	totalRequests := 50
	m := seededMemory(t, initialStock)

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := m.AtomicApply(context.Background(), saleBatch(fmt.Sprintf("s%d", id), "", 1)); err == nil {
				successCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(initialStock), successCount.Load())
	p, _ := m.GetProduct(context.Background(), "p1")
	assert.Equal(t, 0, p.Stock)
}

func TestMemoryCatalog_Guards(t *testing.T) {
	m := seededMemory(t, 10)
	ctx := context.Background()

	assert.ErrorIs(t, m.CreateProduct(ctx, domain.Product{ID: "p2", SKU: "LAP-001"}), port.ErrAlreadyExists)
	assert.ErrorIs(t, m.CreateCustomer(ctx, domain.Customer{ID: "c2", Email: "john@example.com"}), port.ErrAlreadyExists)

	require.NoError(t, m.AtomicApply(ctx, saleBatch("s1", "", 1)))
	assert.ErrorIs(t, m.DeleteProduct(ctx, "p1"), port.ErrReferenced)
	assert.ErrorIs(t, m.DeleteCustomer(ctx, "c1"), port.ErrReferenced)
	assert.ErrorIs(t, m.DeleteProduct(ctx, "nope"), port.ErrNotFound)

	require.NoError(t, m.UpdateSaleStatus(ctx, "s1", domain.SaleStatusCancelled))
	sale, err := m.GetSale(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusCancelled, sale.Status)
}

func TestMemoryGetSale_LineOrderAndNames(t *testing.T) {
	m := seededMemory(t, 5)
	ctx := context.Background()
	for _, id := range []string{"p2", "p3"} {
		require.NoError(t, m.CreateProduct(ctx, domain.Product{
			ID: id, Name: "Item " + id, SKU: "SKU-" + id, Price: decimal.RequireFromString("10.00"), Stock: 5, Category: "Misc",
		}))
	}

	require.NoError(t, m.AtomicApply(ctx, multiLineBatch("s1")))

	sale, err := m.GetSale(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, sale.Items, 3)
	for i, id := range lineOrderProducts {
		assert.Equal(t, id, sale.Items[i].ProductID)
	}
	assert.Equal(t, "John Doe", sale.CustomerName)
	assert.Equal(t, "john@example.com", sale.CustomerEmail)
	assert.Equal(t, "Laptop", sale.Items[1].ProductName)
	assert.Equal(t, "SKU-p3", sale.Items[0].ProductSKU)

	list, err := m.ListSales(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "John Doe", list[0].CustomerName)
}

func TestMemoryListSales_NewestFirst(t *testing.T) {
	m := seededMemory(t, 10)
	ctx := context.Background()

	older := saleBatch("old", "", 1)
	older[0] = domain.InsertSale{Sale: domain.Sale{ID: "old", CustomerID: "c1", Date: time.Now().Add(-time.Hour)}}
	require.NoError(t, m.AtomicApply(ctx, older))
	require.NoError(t, m.AtomicApply(ctx, saleBatch("new", "", 1)))

	sales, err := m.ListSales(ctx)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, "new", sales[0].ID)
	assert.Equal(t, "old", sales[1].ID)
}

func TestMemorySeed_Idempotent(t *testing.T) {
	m := NewMemoryAdapter()
	ctx := context.Background()
	require.NoError(t, m.Seed(ctx))
	require.NoError(t, m.Seed(ctx))

	products, err := m.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, len(demoProducts))

	c, err := m.GetCustomer(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "john@example.com", c.Email)
}
