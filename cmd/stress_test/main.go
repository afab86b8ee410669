package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-sales/internal/adapter/storage"
	"github.com/rl1809/shop-sales/internal/core/domain"
	"github.com/rl1809/shop-sales/internal/core/service"
	"github.com/rl1809/shop-sales/internal/port"
)

const customerID = "stress-customer"

var productIDs = []string{"stress-laptop", "stress-mouse"}

func main() {
	backend := flag.String("backend", "memory", "store to run against: memory, mysql or redis")
	redisAddr := flag.String("redis-addr", "localhost:6379", "redis address")
	mysqlDSN := flag.String("mysql-dsn", "root:root@tcp(localhost:3306)/shopsales", "mysql DSN")
	initialStock := flag.Int("stock", 20, "initial stock of every product")
	totalRequests := flag.Int("requests", 50, "concurrent sale commits")
	flag.Parse()

	ctx := context.Background()

	store, cleanup := openStore(ctx, *backend, *redisAddr, *mysqlDSN, *initialStock)
	defer cleanup()

	saleService, err := service.NewSaleService(store, service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		log.Fatalf("failed to create sale service: %v", err)
	}

	// Counters
	var successCount atomic.Int32
	var stockFailCount atomic.Int32
	var otherFailCount atomic.Int32

	// Every request buys one of each product, so both stocks must end equal.
	items := make([]service.LineRequest, 0, len(productIDs))
	for _, id := range productIDs {
		items = append(items, service.LineRequest{ProductID: id, Quantity: 1})
	}

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			_, err := saleService.CommitSale(ctx, service.CommitRequest{
				CustomerID: customerID,
				Items:      items,
				RequestKey: fmt.Sprintf("stress-%d-%d", start.UnixNano(), n),
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case service.KindOf(err) == service.KindInsufficientStock:
				stockFailCount.Add(1)
			default:
				otherFailCount.Add(1)
				log.Printf("request %d: %v", n, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := int(successCount.Load())
	expectedSuccess := min(*initialStock, *totalRequests)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Backend:          %s\n", *backend)
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Out of stock:     %d\n", stockFailCount.Load())
	fmt.Printf("Other failures:   %d\n", otherFailCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == expectedSuccess && otherFailCount.Load() == 0 {
		fmt.Printf("PASS: Exactly %d sales committed\n", expectedSuccess)
	} else {
		fmt.Printf("FAIL: Expected %d sales, got %d\n", expectedSuccess, success)
	}

	for _, id := range productIDs {
		p, err := store.GetProduct(ctx, id)
		if err != nil {
			fmt.Printf("FAIL: read %s: %v\n", id, err)
			continue
		}
		want := *initialStock - success
		if p.Stock == want {
			fmt.Printf("PASS: %s stock %d\n", id, p.Stock)
		} else {
			fmt.Printf("FAIL: %s stock %d, expected %d\n", id, p.Stock, want)
		}
	}
}

func openStore(ctx context.Context, backend, redisAddr, mysqlDSN string, stock int) (port.EntityStore, func()) {
	products := make([]domain.Product, 0, len(productIDs))
	for i, id := range productIDs {
		products = append(products, domain.Product{
			ID:       id,
			Name:     id,
			SKU:      fmt.Sprintf("STRESS-%03d", i+1),
			Price:    decimal.RequireFromString("9.99"),
			Stock:    stock,
			Category: "Stress",
		})
	}
	customer := domain.Customer{ID: customerID, Name: "Stress Test", Email: "stress@example.com"}

	switch backend {
	case "memory":
		mem := storage.NewMemoryAdapter()
		for _, p := range products {
			if err := mem.CreateProduct(ctx, p); err != nil {
				log.Fatalf("failed to create product: %v", err)
			}
		}
		if err := mem.CreateCustomer(ctx, customer); err != nil {
			log.Fatalf("failed to create customer: %v", err)
		}
		return mem, func() {}

	case "mysql":
		cfg, err := mysql.ParseDSN(mysqlDSN)
		if err != nil {
			log.Fatalf("failed to parse mysql dsn: %v", err)
		}
		cfg.ClientFoundRows = true
		cfg.ParseTime = true
		db, err := sql.Open("mysql", cfg.FormatDSN())
		if err != nil {
			log.Fatalf("failed to open mysql: %v", err)
		}
		db.SetMaxOpenConns(50)
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}
		adapter := storage.NewMySQLAdapter(db)
		if err := adapter.Migrate(ctx); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
		for _, p := range products {
			err := adapter.CreateProduct(ctx, p)
			if errors.Is(err, port.ErrAlreadyExists) {
				err = adapter.UpdateProduct(ctx, p)
			}
			if err != nil {
				log.Fatalf("failed to set stock: %v", err)
			}
		}
		if err := adapter.CreateCustomer(ctx, customer); err != nil && !errors.Is(err, port.ErrAlreadyExists) {
			log.Fatalf("failed to create customer: %v", err)
		}
		return adapter, func() { db.Close() }

	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		adapter := storage.NewRedisAdapter(rdb)
		for _, p := range products {
			if err := adapter.SaveProduct(ctx, p); err != nil {
				log.Fatalf("failed to set stock: %v", err)
			}
		}
		if err := adapter.SaveCustomer(ctx, customer); err != nil {
			log.Fatalf("failed to save customer: %v", err)
		}
		return adapter, func() { rdb.Close() }
	}

	log.Fatalf("unknown backend %q", backend)
	return nil, nil
}
