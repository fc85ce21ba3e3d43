package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

const orderColumns = `order_id, broker_order_id, symbol, side, order_type, quantity, price, stop_price,
	reference_price, reserved_capital, intent, reason, status, status_reason, submitted_at, updated_at`

// CreateOrder records an order before it is handed to the broker
func (db *DB) CreateOrder(o *models.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := db.conn.Exec(query,
		o.OrderID, nullString(o.BrokerOrderID), o.Symbol, o.Side, o.OrderType, o.Quantity,
		nullDecimal(o.Price), nullDecimal(o.StopPrice), o.ReferencePrice, o.ReservedCapital,
		string(o.Intent), nullString(o.Reason), o.Status, nullString(o.StatusReason),
		o.SubmittedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// UpdateOrderStatus moves an order to status with an optional reason
func (db *DB) UpdateOrderStatus(orderID string, status models.OrderStatus, reason string) error {
	query := `UPDATE orders SET status = $2, status_reason = $3, updated_at = $4 WHERE order_id = $1`
	result, err := db.conn.Exec(query, orderID, status, nullString(reason), time.Now())
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return nil
}

// GetOrderByID returns a single order
func (db *DB) GetOrderByID(orderID string) (*models.Order, error) {
	row := db.conn.QueryRow(`SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return o, err
}

// GetOrdersByStatus returns orders in any of the given states, oldest first
func (db *DB) GetOrdersByStatus(statuses ...models.OrderStatus) ([]*models.Order, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	rows, err := db.conn.Query(
		`SELECT `+orderColumns+` FROM orders WHERE status = ANY($1) ORDER BY submitted_at ASC`,
		pq.Array(names),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var brokerID, intent, reason, statusReason sql.NullString
	var price, stopPrice decimal.NullDecimal

	err := row.Scan(
		&o.OrderID, &brokerID, &o.Symbol, &o.Side, &o.OrderType, &o.Quantity, &price, &stopPrice,
		&o.ReferencePrice, &o.ReservedCapital, &intent, &reason, &o.Status, &statusReason,
		&o.SubmittedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	o.BrokerOrderID = brokerID.String
	o.Intent = models.SignalType(intent.String)
	o.Reason = reason.String
	o.StatusReason = statusReason.String
	if price.Valid {
		p := price.Decimal
		o.Price = &p
	}
	if stopPrice.Valid {
		p := stopPrice.Decimal
		o.StopPrice = &p
	}
	return &o, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
