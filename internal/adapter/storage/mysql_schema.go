package storage

import (
	"context"
	"fmt"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		sku VARCHAR(64) NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		stock INT NOT NULL,
		category VARCHAR(128) NOT NULL,
		description TEXT NULL,
		version INT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_products_sku (sku),
		CONSTRAINT chk_products_stock CHECK (stock >= 0),
		CONSTRAINT chk_products_price CHECK (price > 0)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS customers (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		phone VARCHAR(64) NULL,
		address TEXT NULL,
		UNIQUE KEY uq_customers_email (email)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS sales (
		id VARCHAR(64) PRIMARY KEY,
		customer_id VARCHAR(64) NOT NULL,
		date DATETIME(6) NOT NULL,
		total DECIMAL(14,2) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'completed',
		request_key VARCHAR(128) NULL,
		UNIQUE KEY uq_sales_request_key (request_key),
		KEY idx_sales_date (date),
		CONSTRAINT fk_sales_customer FOREIGN KEY (customer_id) REFERENCES customers (id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS sale_items (
		id VARCHAR(64) PRIMARY KEY,
		sale_id VARCHAR(64) NOT NULL,
		product_id VARCHAR(64) NOT NULL,
		quantity INT NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		line_no INT NOT NULL DEFAULT 0,
		KEY idx_sale_items_sale_line (sale_id, line_no),
		CONSTRAINT chk_sale_items_quantity CHECK (quantity > 0),
		CONSTRAINT fk_sale_items_sale FOREIGN KEY (sale_id) REFERENCES sales (id),
		CONSTRAINT fk_sale_items_product FOREIGN KEY (product_id) REFERENCES products (id)
	) ENGINE=InnoDB`,
}

var mysqlSeed = []string{
	`INSERT IGNORE INTO products (id, name, sku, price, stock, category, description) VALUES
		('1', 'Laptop Pro X1', 'LAP-001', 1299.99, 50, 'Electronics', 'High-performance laptop'),
		('2', 'Wireless Mouse', 'MOU-001', 29.99, 100, 'Electronics', 'Ergonomic wireless mouse')`,
	`INSERT IGNORE INTO customers (id, name, email, phone, address) VALUES
		('1', 'John Doe', 'john@example.com', '+1 234-567-8900', '123 Main St'),
		('2', 'Jane Smith', 'jane@example.com', '+1 234-567-8901', '456 Oak Ave')`,
}

// Migrate creates the tables if they do not exist and adds columns that
// older schemas lack.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range mysqlSchema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	var n int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = 'sale_items' AND column_name = 'line_no'`,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("migrate: inspect sale_items: %w", err)
	}
	if n == 0 {
		_, err = m.db.ExecContext(ctx, `ALTER TABLE sale_items ADD COLUMN line_no INT NOT NULL DEFAULT 0`)
		if err != nil {
			return fmt.Errorf("migrate: add sale_items.line_no: %w", err)
		}
	}
	return nil
}

// Seed inserts the demo catalog, leaving existing rows untouched.
func (m *MySQLAdapter) Seed(ctx context.Context) error {
	for _, stmt := range mysqlSeed {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	return nil
}
