package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-sales/internal/core/domain"
	"github.com/rl1809/shop-sales/internal/port"
)

const pgUniqueViolation = "23505"

// PostgresAdapter locks every affected product row with SELECT ... FOR UPDATE
// before validating and decrementing, in ascending id order.
type PostgresAdapter struct {
	pool *pgxpool.Pool
}

var _ port.EntityStore = (*PostgresAdapter)(nil)

func NewPostgresAdapter(pool *pgxpool.Pool) *PostgresAdapter {
	return &PostgresAdapter{pool: pool}
}

func ConnectPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	config.MaxConns = 50
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

const pgProductColumns = `id, name, sku, price, stock, category, COALESCE(description, '')`

func (a *PostgresAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := a.pool.QueryRow(ctx, `SELECT `+pgProductColumns+` FROM products WHERE id = $1`, id)
	p, err := scanPgProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

func (a *PostgresAdapter) GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := a.pool.Query(ctx, `SELECT `+pgProductColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPgProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = *p
	}
	return out, rows.Err()
}

func (a *PostgresAdapter) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := a.pool.QueryRow(ctx, `
		SELECT id, name, email, COALESCE(phone, ''), COALESCE(address, '')
		FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query customer: %w", err)
	}
	return &c, nil
}

func (a *PostgresAdapter) FindSaleByRequestKey(ctx context.Context, key string) (*domain.Sale, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT s.id, s.customer_id, s.date, s.total, s.status,
		       si.id, si.product_id, si.quantity, si.price
		FROM sales s
		JOIN sale_items si ON si.sale_id = s.id
		WHERE s.request_key = $1
		ORDER BY si.line_no`, key)
	if err != nil {
		return nil, fmt.Errorf("query request key: %w", err)
	}
	defer rows.Close()

	var sale *domain.Sale
	for rows.Next() {
		var (
			s            domain.Sale
			item         domain.SaleItem
			status       string
			total, price pgtype.Numeric
		)
		if err := rows.Scan(&s.ID, &s.CustomerID, &s.Date, &total, &status,
			&item.ID, &item.ProductID, &item.Quantity, &price); err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		if sale == nil {
			s.Total, s.Status, s.RequestKey = fromNumeric(total), domain.SaleStatus(status), key
			s.Date = s.Date.UTC()
			sale = &s
		}
		item.SaleID, item.Price = sale.ID, fromNumeric(price)
		sale.Items = append(sale.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, port.ErrNotFound
	}
	return sale, nil
}

func (a *PostgresAdapter) AtomicApply(ctx context.Context, batch domain.Batch) error {
	tx, err := a.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := a.lockAndCheck(ctx, tx, batch.Decrements()); err != nil {
		return err
	}

	for _, w := range batch {
		switch w := w.(type) {
		case domain.InsertSale:
			_, err = tx.Exec(ctx, `
				INSERT INTO sales (id, customer_id, date, total, status, request_key)
				VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))`,
				w.Sale.ID, w.Sale.CustomerID, w.Sale.Date, toNumeric(w.Sale.Total), string(w.Sale.Status), w.Sale.RequestKey,
			)
			if isPgError(err, pgUniqueViolation) && w.Sale.RequestKey != "" {
				return port.ErrDuplicateRequest
			}
		case domain.InsertSaleItem:
			_, err = tx.Exec(ctx, `
				INSERT INTO sale_items (id, sale_id, product_id, quantity, price, line_no)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				w.Item.ID, w.Item.SaleID, w.Item.ProductID, w.Item.Quantity, toNumeric(w.Item.Price), w.Position,
			)
		case domain.DecrementStock:
			_, err = tx.Exec(ctx, `UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2`,
				w.Amount, w.ProductID)
		default:
			err = fmt.Errorf("unsupported write %T", w)
		}
		if err != nil {
			return fmt.Errorf("apply %T: %w", w, err)
		}
	}

	return tx.Commit(ctx)
}

// lockAndCheck takes row locks on all decremented products and verifies the
// batch against the locked values. The locks are held until the tx ends.
func (a *PostgresAdapter) lockAndCheck(ctx context.Context, tx pgx.Tx, decrements []domain.DecrementStock) error {
	if len(decrements) == 0 {
		return nil
	}

	ids := make([]string, 0, len(decrements))
	seen := make(map[string]bool, len(decrements))
	for _, d := range decrements {
		if !seen[d.ProductID] {
			seen[d.ProductID] = true
			ids = append(ids, d.ProductID)
		}
	}
	sort.Strings(ids)

	rows, err := tx.Query(ctx, `SELECT id, stock FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return fmt.Errorf("lock products: %w", err)
	}
	stock := make(map[string]int, len(ids))
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			rows.Close()
			return fmt.Errorf("scan locked product: %w", err)
		}
		stock[id] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock products: %w", err)
	}

	for _, d := range decrements {
		available, ok := stock[d.ProductID]
		if !ok {
			return &port.StockConflictError{ProductID: d.ProductID, Requested: d.Amount, Missing: true}
		}
		if available < d.ExpectedMinimum || available < d.Amount {
			return &port.StockConflictError{ProductID: d.ProductID, Requested: d.Amount, Available: available}
		}
		stock[d.ProductID] = available - d.Amount
	}
	return nil
}

func scanPgProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p     domain.Product
		price pgtype.Numeric
	)
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &price, &p.Stock, &p.Category, &p.Description); err != nil {
		return nil, err
	}
	p.Price = fromNumeric(price)
	return &p, nil
}

func toNumeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func fromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		sku TEXT UNIQUE NOT NULL,
		price NUMERIC(12,2) NOT NULL CHECK (price > 0),
		stock INTEGER NOT NULL CHECK (stock >= 0),
		category TEXT NOT NULL,
		description TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT UNIQUE NOT NULL,
		phone TEXT,
		address TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers (id),
		date TIMESTAMPTZ NOT NULL,
		total NUMERIC(14,2) NOT NULL,
		status TEXT NOT NULL DEFAULT 'completed',
		request_key TEXT UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL REFERENCES sales (id),
		product_id TEXT NOT NULL REFERENCES products (id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		price NUMERIC(12,2) NOT NULL,
		line_no INTEGER NOT NULL DEFAULT 0
	)`,
	`ALTER TABLE sale_items ADD COLUMN IF NOT EXISTS line_no INTEGER NOT NULL DEFAULT 0`,
	`CREATE INDEX IF NOT EXISTS idx_sale_items_sale_id ON sale_items (sale_id)`,
}

func (a *PostgresAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := a.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (a *PostgresAdapter) Seed(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO products (id, name, sku, price, stock, category, description) VALUES
			('1', 'Laptop Pro X1', 'LAP-001', 1299.99, 50, 'Electronics', 'High-performance laptop'),
			('2', 'Wireless Mouse', 'MOU-001', 29.99, 100, 'Electronics', 'Ergonomic wireless mouse')
		ON CONFLICT DO NOTHING`)
	if err != nil {
		return fmt.Errorf("seed products: %w", err)
	}
	_, err = a.pool.Exec(ctx, `
		INSERT INTO customers (id, name, email, phone, address) VALUES
			('1', 'John Doe', 'john@example.com', '+1 234-567-8900', '123 Main St'),
			('2', 'Jane Smith', 'jane@example.com', '+1 234-567-8901', '456 Oak Ave')
		ON CONFLICT DO NOTHING`)
	if err != nil {
		return fmt.Errorf("seed customers: %w", err)
	}
	return nil
}
