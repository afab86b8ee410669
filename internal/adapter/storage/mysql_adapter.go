package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/shop-sales/internal/core/domain"
	"github.com/rl1809/shop-sales/internal/port"
)

const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrRowIsReferenced = 1451
	mysqlErrNoReferencedRow = 1452
)

type MySQLAdapter struct {
	db *sql.DB
}

var _ port.Store = (*MySQLAdapter)(nil)

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

const productColumns = `id, name, sku, price, stock, category, description`

func (m *MySQLAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := m.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

func (m *MySQLAdapter) GetProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := m.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id IN (`+placeholders(len(ids))+`)`,
		stringArgs(ids)...,
	)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = *p
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var (
		c              domain.Customer
		phone, address sql.NullString
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, address
		FROM customers WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Email, &phone, &address)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query customer: %w", err)
	}

	c.Phone, c.Address = phone.String, address.String
	return &c, nil
}

func (m *MySQLAdapter) FindSaleByRequestKey(ctx context.Context, key string) (*domain.Sale, error) {
	var id string
	err := m.db.QueryRowContext(ctx, `SELECT id FROM sales WHERE request_key = ?`, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query request key: %w", err)
	}
	return m.GetSale(ctx, id)
}

// AtomicApply runs the batch in one transaction. Each decrement is a single
// conditional UPDATE, so the stock check and the write cannot be separated by
// a concurrent commit. Decrements run first, in product id order, so product
// rows are locked exclusively before the sale_items foreign key checks read
// them.
func (m *MySQLAdapter) AtomicApply(ctx context.Context, batch domain.Batch) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	decrements := batch.Decrements()
	sort.SliceStable(decrements, func(i, j int) bool { return decrements[i].ProductID < decrements[j].ProductID })
	for _, d := range decrements {
		if err := m.decrementStock(ctx, tx, d); err != nil {
			return err
		}
	}

	for _, w := range batch {
		switch w := w.(type) {
		case domain.InsertSale:
			err = m.insertSale(ctx, tx, w.Sale)
		case domain.InsertSaleItem:
			err = m.insertSaleItem(ctx, tx, w.Item, w.Position)
		case domain.DecrementStock:
			continue
		default:
			err = fmt.Errorf("unsupported write %T", w)
		}
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) insertSale(ctx context.Context, tx *sql.Tx, sale domain.Sale) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sales (id, customer_id, date, total, status, request_key)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.CustomerID, sale.Date, sale.Total, string(sale.Status), nullString(sale.RequestKey),
	)
	if isMySQLError(err, mysqlErrDuplicateEntry) && sale.RequestKey != "" {
		return port.ErrDuplicateRequest
	}
	if err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) insertSaleItem(ctx context.Context, tx *sql.Tx, item domain.SaleItem, position int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sale_items (id, sale_id, product_id, quantity, price, line_no)
		VALUES (?, ?, ?, ?, ?, ?)`,
		item.ID, item.SaleID, item.ProductID, item.Quantity, item.Price, position,
	)
	if isMySQLError(err, mysqlErrNoReferencedRow) {
		return &port.StockConflictError{ProductID: item.ProductID, Requested: item.Quantity, Missing: true}
	}
	if err != nil {
		return fmt.Errorf("insert sale item: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) decrementStock(ctx context.Context, tx *sql.Tx, d domain.DecrementStock) error {
	minimum := max(d.ExpectedMinimum, d.Amount)

	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - ?, version = version + 1, updated_at = NOW()
		WHERE id = ? AND stock >= ?`,
		d.Amount, d.ProductID, minimum,
	)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 1 {
		return nil
	}

	var available int
	err = tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ?`, d.ProductID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return &port.StockConflictError{ProductID: d.ProductID, Requested: d.Amount, Missing: true}
	}
	if err != nil {
		return fmt.Errorf("query stock: %w", err)
	}
	return &port.StockConflictError{ProductID: d.ProductID, Requested: d.Amount, Available: available}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		p    domain.Product
		desc sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Price, &p.Stock, &p.Category, &desc); err != nil {
		return nil, err
	}
	p.Description = desc.String
	return &p, nil
}

func isMySQLError(err error, number uint16) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == number
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
