package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

// CreateFill inserts an execution reported by the broker pipeline
func (db *DB) CreateFill(f *models.Fill) error {
	query := `
		INSERT INTO fills (
			order_id, source, symbol, side, quantity, price, total_cost, fees,
			executed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	now := time.Now()

	err := db.conn.QueryRow(query,
		f.OrderID, f.Source, f.Symbol, f.Side, f.Quantity, f.Price, f.TotalCost, f.Fees,
		f.ExecutedAt, now,
	).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("failed to create fill: %w", err)
	}
	f.CreatedAt = now
	return nil
}

// FillExistsByOrderID checks if a fill for the order and source was already stored
func (db *DB) FillExistsByOrderID(orderID, source string) (bool, error) {
	var exists bool
	err := db.conn.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM fills WHERE order_id = $1 AND source = $2)`, orderID, source,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check fill existence: %w", err)
	}
	return exists, nil
}

// FilledOrderIDs reports which of orderIDs have at least one fill
func (db *DB) FilledOrderIDs(orderIDs []string) (map[string]bool, error) {
	filled := make(map[string]bool, len(orderIDs))
	if len(orderIDs) == 0 {
		return filled, nil
	}

	rows, err := db.conn.Query(
		`SELECT DISTINCT order_id FROM fills WHERE order_id = ANY($1)`, pq.Array(orderIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query filled orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan order id: %w", err)
		}
		filled[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate filled orders: %w", err)
	}
	return filled, nil
}

// GetFillsBySymbol returns the newest fills for a symbol
func (db *DB) GetFillsBySymbol(symbol string, limit int) ([]*models.Fill, error) {
	query := `
		SELECT id, order_id, source, symbol, side, quantity, price, total_cost, fees,
		       executed_at, created_at
		FROM fills
		WHERE symbol = $1
		ORDER BY executed_at DESC
		LIMIT $2
	`
	rows, err := db.conn.Query(query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fills: %w", err)
	}
	defer rows.Close()

	var fills []*models.Fill
	for rows.Next() {
		var f models.Fill
		var fees sql.NullString

		err := rows.Scan(
			&f.ID, &f.OrderID, &f.Source, &f.Symbol, &f.Side, &f.Quantity, &f.Price, &f.TotalCost, &fees,
			&f.ExecutedAt, &f.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fill: %w", err)
		}
		if fees.Valid {
			f.Fees, _ = decimal.NewFromString(fees.String)
		}
		fills = append(fills, &f)
	}
	return fills, nil
}
