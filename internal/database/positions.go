package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

const positionColumns = `id, symbol, quantity, avg_entry_price, current_price, unrealized_pnl,
	unrealized_pnl_pct, days_held, opened_at, last_updated`

// ReplaceAllPositions swaps the stored holdings for a fresh broker snapshot
func (db *DB) ReplaceAllPositions(positions []*models.Position) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM positions`); err != nil {
		return fmt.Errorf("failed to delete existing positions: %w", err)
	}

	query := `
		INSERT INTO positions (
			symbol, quantity, avg_entry_price, current_price, unrealized_pnl,
			unrealized_pnl_pct, days_held, opened_at, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	now := time.Now()
	for _, p := range positions {
		if p.OpenedAt.IsZero() {
			p.OpenedAt = now
		}
		err := tx.QueryRow(query,
			p.Symbol, p.Quantity, p.AvgEntryPrice, p.CurrentPrice, p.UnrealizedPnl,
			p.UnrealizedPnlPct, p.DaysHeld, p.OpenedAt, now,
		).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("failed to insert position %s: %w", p.Symbol, err)
		}
		p.LastUpdated = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetAllPositions returns every stored holding keyed by symbol
func (db *DB) GetAllPositions() (map[string]*models.Position, error) {
	rows, err := db.conn.Query(`SELECT ` + positionColumns + ` FROM positions ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	defer rows.Close()

	positions := make(map[string]*models.Position)
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions[p.Symbol] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate positions: %w", err)
	}
	return positions, nil
}

// GetPositionBySymbol returns the holding for symbol
func (db *DB) GetPositionBySymbol(symbol string) (*models.Position, error) {
	row := db.conn.QueryRow(`SELECT `+positionColumns+` FROM positions WHERE symbol = $1`, symbol)
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("position %s: %w", symbol, ErrNotFound)
	}
	return p, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosition(row rowScanner) (*models.Position, error) {
	var p models.Position
	var currentPrice, pnl, pnlPct decimal.NullDecimal

	err := row.Scan(
		&p.ID, &p.Symbol, &p.Quantity, &p.AvgEntryPrice, &currentPrice, &pnl,
		&pnlPct, &p.DaysHeld, &p.OpenedAt, &p.LastUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan position: %w", err)
	}

	if currentPrice.Valid {
		p.CurrentPrice = currentPrice.Decimal
	}
	if pnl.Valid {
		p.UnrealizedPnl = pnl.Decimal
	}
	if pnlPct.Valid {
		p.UnrealizedPnlPct = pnlPct.Decimal
	}
	return &p, nil
}
