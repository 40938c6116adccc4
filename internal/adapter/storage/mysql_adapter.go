package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/order-ledger/internal/core/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGINT PRIMARY KEY,
		customer VARCHAR(255) NOT NULL,
		fulfilled BOOLEAN NOT NULL,
		created_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		order_id BIGINT NOT NULL,
		line_no INT NOT NULL,
		product_name VARCHAR(255) NOT NULL,
		quantity INT NOT NULL,
		outcome VARCHAR(32) NOT NULL,
		PRIMARY KEY (order_id, line_no)
	)`,
}

// MySQLAdapter archives placed orders for auditing. Nothing is read back
// into the ledger.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) ArchiveOrder(ctx context.Context, order domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT IGNORE INTO orders (id, customer, fulfilled, created_at)
		VALUES (?, ?, ?, ?)`,
		order.ID, order.Customer, order.Fulfilled(), order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		// already archived
		return nil
	}

	for i, line := range order.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines (order_id, line_no, product_name, quantity, outcome)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, i, line.ProductName, line.Quantity, string(line.Outcome),
		)
		if err != nil {
			return fmt.Errorf("insert order line %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetArchivedOrder reads an archived order back for auditing.
func (m *MySQLAdapter) GetArchivedOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var order domain.Order
	err := m.db.QueryRowContext(ctx, `
		SELECT id, customer, created_at FROM orders WHERE id = ?`, id,
	).Scan(&order.ID, &order.Customer, &order.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT product_name, quantity, outcome FROM order_lines
		WHERE order_id = ? ORDER BY line_no`, id)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.OrderLine
		var outcome string
		if err := rows.Scan(&line.ProductName, &line.Quantity, &outcome); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		line.Outcome = domain.LineOutcome(outcome)
		order.Lines = append(order.Lines, line)
	}

	return &order, rows.Err()
}
