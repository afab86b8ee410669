package storage

import (
	"context"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/shop-sales/internal/core/domain"
	"github.com/rl1809/shop-sales/internal/port"
)

func TestNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"10.00", "1299.99", "0.01", "123456789.5"} {
		d := decimal.RequireFromString(s)
		assert.True(t, fromNumeric(toNumeric(d)).Equal(d), s)
	}
}

func getPostgresAdapter(t *testing.T) *PostgresAdapter {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	pool, err := ConnectPostgres(context.Background(), url)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	t.Cleanup(pool.Close)

	adapter := NewPostgresAdapter(pool)
	require.NoError(t, adapter.Migrate(context.Background()))

	ctx := context.Background()
	_, err = pool.Exec(ctx, `DELETE FROM sale_items WHERE sale_id IN (SELECT id FROM sales WHERE customer_id = 'c1')`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `DELETE FROM sales WHERE customer_id = 'c1'`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO products (id, name, sku, price, stock, category) VALUES
			('p1', 'Laptop', 'PG-LAP-001', 10.00, 5, 'Electronics'),
			('p2', 'Mouse', 'PG-MOU-001', 10.00, 5, 'Electronics'),
			('p3', 'Keyboard', 'PG-KEY-001', 10.00, 5, 'Electronics')
		ON CONFLICT (id) DO UPDATE SET stock = 5, price = 10.00`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `
		INSERT INTO customers (id, name, email) VALUES ('c1', 'John Doe', 'pg-john@example.com')
		ON CONFLICT (id) DO NOTHING`)
	require.NoError(t, err)
	return adapter
}

func TestPostgresIntegration_AtomicApply(t *testing.T) {
	adapter := getPostgresAdapter(t)
	ctx := context.Background()

	var conflict *port.StockConflictError
	require.ErrorAs(t, adapter.AtomicApply(ctx, saleBatch("pg-s0", "", 6)), &conflict)
	assert.Equal(t, 5, conflict.Available)

	require.NoError(t, adapter.AtomicApply(ctx, saleBatch("pg-s1", "pg-key-1", 3)))
	assert.ErrorIs(t, adapter.AtomicApply(ctx, saleBatch("pg-s2", "pg-key-1", 1)), port.ErrDuplicateRequest)

	p, err := adapter.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)

	sale, err := adapter.FindSaleByRequestKey(ctx, "pg-key-1")
	require.NoError(t, err)
	assert.Equal(t, "pg-s1", sale.ID)
	require.Len(t, sale.Items, 1)
	assert.True(t, sale.Total.Equal(decimal.RequireFromString("30.00")))
}

func TestPostgresIntegration_LineOrder(t *testing.T) {
	adapter := getPostgresAdapter(t)
	ctx := context.Background()

	batch := multiLineBatch("pg-lines")
	header := batch[0].(domain.InsertSale)
	header.Sale.RequestKey = "pg-lines-key"
	batch[0] = header
	require.NoError(t, adapter.AtomicApply(ctx, batch))

	sale, err := adapter.FindSaleByRequestKey(ctx, "pg-lines-key")
	require.NoError(t, err)
	require.Len(t, sale.Items, 3)
	for i, id := range lineOrderProducts {
		assert.Equal(t, id, sale.Items[i].ProductID)
	}
}
