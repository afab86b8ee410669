package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-sales/internal/core/domain"
	"github.com/rl1809/shop-sales/internal/port"
)

func (m *MySQLAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (m *MySQLAdapter) CreateProduct(ctx context.Context, p domain.Product) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO products (id, name, sku, price, stock, category, description)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.SKU, p.Price, p.Stock, p.Category, nullString(p.Description),
	)
	if isMySQLError(err, mysqlErrDuplicateEntry) {
		return port.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, p domain.Product) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET name = ?, price = ?, stock = ?, category = ?, description = ?,
		    version = version + 1, updated_at = NOW()
		WHERE id = ?`,
		p.Name, p.Price, p.Stock, p.Category, nullString(p.Description), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return requireRow(result)
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, id string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var used int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sale_items WHERE product_id = ?`, id).Scan(&used)
	if err != nil {
		return fmt.Errorf("count sale items: %w", err)
	}
	if used > 0 {
		return port.ErrReferenced
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if isMySQLError(err, mysqlErrRowIsReferenced) {
		return port.ErrReferenced
	}
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *MySQLAdapter) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, email, phone, address
		FROM customers ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		var (
			c              domain.Customer
			phone, address sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &phone, &address); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		c.Phone, c.Address = phone.String, address.String
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (m *MySQLAdapter) CreateCustomer(ctx context.Context, c domain.Customer) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, phone, address)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Email, nullString(c.Phone), nullString(c.Address),
	)
	if isMySQLError(err, mysqlErrDuplicateEntry) {
		return port.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) UpdateCustomer(ctx context.Context, c domain.Customer) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE customers SET name = ?, email = ?, phone = ?, address = ?
		WHERE id = ?`,
		c.Name, c.Email, nullString(c.Phone), nullString(c.Address), c.ID,
	)
	if isMySQLError(err, mysqlErrDuplicateEntry) {
		return port.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	return requireRow(result)
}

func (m *MySQLAdapter) DeleteCustomer(ctx context.Context, id string) error {
	result, err := m.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if isMySQLError(err, mysqlErrRowIsReferenced) {
		return port.ErrReferenced
	}
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return requireRow(result)
}

const saleWithItemsQuery = `
	SELECT s.id, s.customer_id, s.date, s.total, s.status, s.request_key,
	       COALESCE(c.name, ''), COALESCE(c.email, ''),
	       si.id, si.product_id, si.quantity, si.price,
	       COALESCE(p.name, ''), COALESCE(p.sku, '')
	FROM sales s
	JOIN sale_items si ON si.sale_id = s.id
	LEFT JOIN customers c ON c.id = s.customer_id
	LEFT JOIN products p ON p.id = si.product_id`

func (m *MySQLAdapter) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := m.db.QueryContext(ctx, saleWithItemsQuery+` ORDER BY s.date DESC, s.id, si.line_no`)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()
	return scanSales(rows)
}

func (m *MySQLAdapter) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	rows, err := m.db.QueryContext(ctx, saleWithItemsQuery+` WHERE s.id = ? ORDER BY si.line_no`, id)
	if err != nil {
		return nil, fmt.Errorf("query sale: %w", err)
	}
	defer rows.Close()

	sales, err := scanSales(rows)
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, port.ErrNotFound
	}
	return &sales[0], nil
}

func (m *MySQLAdapter) UpdateSaleStatus(ctx context.Context, id string, status domain.SaleStatus) error {
	result, err := m.db.ExecContext(ctx, `UPDATE sales SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update sale status: %w", err)
	}
	return requireRow(result)
}

// scanSales folds joined sale/item rows, ordered by sale, into sales.
func scanSales(rows *sql.Rows) ([]domain.Sale, error) {
	var sales []domain.Sale
	for rows.Next() {
		var (
			s          domain.Sale
			item       domain.SaleItem
			status     string
			requestKey sql.NullString
			date       time.Time
			total      decimal.Decimal
		)
		err := rows.Scan(&s.ID, &s.CustomerID, &date, &total, &status, &requestKey,
			&s.CustomerName, &s.CustomerEmail,
			&item.ID, &item.ProductID, &item.Quantity, &item.Price,
			&item.ProductName, &item.ProductSKU)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		item.SaleID = s.ID

		if n := len(sales); n > 0 && sales[n-1].ID == s.ID {
			sales[n-1].Items = append(sales[n-1].Items, item)
			continue
		}
		s.Date, s.Total, s.Status, s.RequestKey = date.UTC(), total, domain.SaleStatus(status), requestKey.String
		s.Items = []domain.SaleItem{item}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return port.ErrNotFound
	}
	return nil
}
