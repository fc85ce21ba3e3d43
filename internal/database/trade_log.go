package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/trogers1052/brot-trading-bot/internal/models"
)

// CreateTradeLogEntry appends a record of a placed order. Entries are never updated.
func (db *DB) CreateTradeLogEntry(e *models.TradeLogEntry) error {
	query := `
		INSERT INTO trade_log (logged_at, action, symbol, quantity, price, reason, order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	err := db.conn.QueryRow(query,
		e.Timestamp, e.Action, e.Symbol, e.Quantity, e.Price, nullString(e.Reason), nullString(e.OrderID),
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to create trade log entry: %w", err)
	}
	return nil
}

// GetTradeLog returns the newest entries, newest first
func (db *DB) GetTradeLog(limit int) ([]*models.TradeLogEntry, error) {
	query := `
		SELECT id, logged_at, action, symbol, quantity, price, reason, order_id
		FROM trade_log
		ORDER BY logged_at DESC, id DESC
		LIMIT $1
	`
	return scanTradeLog(db.conn.Query(query, limit))
}

// GetTradeLogBySymbol returns the newest entries for a symbol, newest first
func (db *DB) GetTradeLogBySymbol(symbol string, limit int) ([]*models.TradeLogEntry, error) {
	query := `
		SELECT id, logged_at, action, symbol, quantity, price, reason, order_id
		FROM trade_log
		WHERE symbol = $1
		ORDER BY logged_at DESC, id DESC
		LIMIT $2
	`
	return scanTradeLog(db.conn.Query(query, symbol, limit))
}

// GetTradeSummary aggregates buy and sell counts over the whole log
func (db *DB) GetTradeSummary() (*models.TradeSummary, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE action = 'BUY') as total_buys,
			COUNT(*) FILTER (WHERE action = 'SELL') as total_sells,
			COALESCE(SUM(quantity * price) FILTER (WHERE action = 'BUY'), 0) as buy_notional,
			COALESCE(SUM(quantity * price) FILTER (WHERE action = 'SELL'), 0) as sell_notional,
			COUNT(DISTINCT symbol) as symbols,
			MIN(logged_at) as first_trade_at,
			MAX(logged_at) as last_trade_at
		FROM trade_log
	`
	var s models.TradeSummary
	var first, last sql.NullTime

	err := db.conn.QueryRow(query).Scan(
		&s.TotalBuys, &s.TotalSells, &s.BuyNotional, &s.SellNotional, &s.Symbols, &first, &last,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade summary: %w", err)
	}

	if first.Valid {
		s.FirstTradeAt = &first.Time
	}
	if last.Valid {
		s.LastTradeAt = &last.Time
	}
	return &s, nil
}

func scanTradeLog(rows *sql.Rows, err error) ([]*models.TradeLogEntry, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query trade log: %w", err)
	}
	defer rows.Close()

	var entries []*models.TradeLogEntry
	for rows.Next() {
		var e models.TradeLogEntry
		var reason, orderID sql.NullString

		err := rows.Scan(&e.ID, &e.Timestamp, &e.Action, &e.Symbol, &e.Quantity, &e.Price, &reason, &orderID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade log entry: %w", err)
		}
		e.Reason = reason.String
		e.OrderID = orderID.String
		entries = append(entries, &e)
	}
	return entries, nil
}
