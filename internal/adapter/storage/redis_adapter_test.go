package storage

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-sales/internal/core/domain"
	"github.com/rl1809/shop-sales/internal/port"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func setupRedisCatalog(t *testing.T, client *redis.Client, stock int) *RedisAdapter {
	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	keys, _ := client.Keys(ctx, saleKeyPrefix+"*").Result()
	reqKeys, _ := client.Keys(ctx, requestKeyPrefix+"*").Result()
	keys = append(keys, reqKeys...)
	keys = append(keys, productKeyPrefix+"p1", customerKeyPrefix+"c1")
	client.Del(ctx, keys...)

	err := adapter.SaveProduct(ctx, domain.Product{
		ID: "p1", Name: "Laptop", SKU: "LAP-001", Price: decimal.RequireFromString("10.00"), Stock: stock, Category: "Electronics",
	})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if err := adapter.SaveCustomer(ctx, domain.Customer{ID: "c1", Name: "John Doe", Email: "john@example.com"}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	return adapter
}

func TestRedisAtomicApply_Success(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := setupRedisCatalog(t, client, 10)

	if err := adapter.AtomicApply(ctx, saleBatch("s1", "", 3)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := adapter.GetProduct(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Stock != 7 {
		t.Errorf("expected stock 7, got %d", p.Stock)
	}

	sale, err := adapter.GetSale(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sale.Items) != 1 || !sale.Items[0].Price.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("unexpected items: %+v", sale.Items)
	}
}

func TestRedisAtomicApply_InsufficientStock(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := setupRedisCatalog(t, client, 5)

	err := adapter.AtomicApply(ctx, saleBatch("s1", "", 10))
	conflict, ok := err.(*port.StockConflictError)
	if !ok {
		t.Fatalf("expected StockConflictError, got %v", err)
	}
	if conflict.Available != 5 {
		t.Errorf("expected available 5, got %d", conflict.Available)
	}

	// Verify nothing was written
	stock, _ := client.HGet(ctx, productKeyPrefix+"p1", "stock").Int()
	if stock != 5 {
		t.Errorf("expected stock 5, got %d", stock)
	}
	if n, _ := client.Exists(ctx, saleKeyPrefix+"s1").Result(); n != 0 {
		t.Error("sale document written despite conflict")
	}
}

func TestRedisAtomicApply_ProductMissing(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := setupRedisCatalog(t, client, 5)
	client.Del(ctx, productKeyPrefix+"p1")

	err := adapter.AtomicApply(ctx, saleBatch("s1", "", 1))
	conflict, ok := err.(*port.StockConflictError)
	if !ok || !conflict.Missing {
		t.Fatalf("expected missing product conflict, got %v", err)
	}
}

func TestRedisAtomicApply_DuplicateRequestKey(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := setupRedisCatalog(t, client, 10)

	if err := adapter.AtomicApply(ctx, saleBatch("s1", "req-1", 1)); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}
	if err := adapter.AtomicApply(ctx, saleBatch("s2", "req-1", 1)); err != port.ErrDuplicateRequest {
		t.Errorf("expected ErrDuplicateRequest, got: %v", err)
	}

	sale, err := adapter.FindSaleByRequestKey(ctx, "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sale.ID != "s1" {
		t.Errorf("expected s1, got %s", sale.ID)
	}

	// Stock should only be decremented once
	stock, _ := client.HGet(ctx, productKeyPrefix+"p1", "stock").Int()
	if stock != 9 {
		t.Errorf("expected stock 9, got %d", stock)
	}
}

func TestRedisAtomicApply_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	initialStock := 20
	totalRequests := 50
	adapter := setupRedisCatalog(t, client, initialStock)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			err := adapter.AtomicApply(context.Background(), saleBatch(fmt.Sprintf("s%d", id), "", 1))
			if err == nil {
				successCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successes, got %d", initialStock, successCount.Load())
	}

	stock, _ := client.HGet(context.Background(), productKeyPrefix+"p1", "stock").Int()
	if stock != 0 {
		t.Errorf("expected stock 0, got %d", stock)
	}
}

func TestRedisGetProducts_SkipsMissing(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	adapter := setupRedisCatalog(t, client, 10)

	products, err := adapter.GetProducts(context.Background(), []string{"p1", "ghost"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := products["ghost"]; ok {
		t.Error("expected ghost to be absent")
	}
	if products["p1"].Stock != 10 {
		t.Errorf("expected stock 10, got %d", products["p1"].Stock)
	}
}

func TestFoldDecrements(t *testing.T) {
	folded, order := foldDecrements([]domain.DecrementStock{
		{ProductID: "b", Amount: 2, ExpectedMinimum: 2},
		{ProductID: "a", Amount: 1, ExpectedMinimum: 1},
		{ProductID: "b", Amount: 3, ExpectedMinimum: 3},
	})

	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Fatalf("unexpected order %v", order)
	}
	if got := folded["b"]; got.Amount != 5 || got.ExpectedMinimum != 5 {
		t.Errorf("unexpected fold %+v", got)
	}
}
