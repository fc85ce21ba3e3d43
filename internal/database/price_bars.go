package database

import (
	"fmt"
	"time"

	"github.com/trogers1052/brot-trading-bot/internal/models"
)

const upsertPriceBarQuery = `
	INSERT INTO price_bars (symbol, bar_time, open, high, low, close, volume, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (symbol, bar_time) DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume
`

// UpsertPriceBar inserts a bar, replacing any bar with the same symbol and time
func (db *DB) UpsertPriceBar(b *models.PriceBar) error {
	_, err := db.conn.Exec(upsertPriceBarQuery,
		b.Symbol, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert price bar: %w", err)
	}
	return nil
}

// UpsertPriceBarsBatch inserts multiple bars in one transaction
func (db *DB) UpsertPriceBarsBatch(bars []models.PriceBar) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(upsertPriceBarQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, b := range bars {
		_, err := stmt.Exec(b.Symbol, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume, now)
		if err != nil {
			return fmt.Errorf("failed to insert price bar for %s: %w", b.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRecentPriceBars returns up to limit of the newest bars for a symbol,
// oldest first
func (db *DB) GetRecentPriceBars(symbol string, limit int) ([]models.PriceBar, error) {
	query := `
		SELECT symbol, bar_time, open, high, low, close, volume
		FROM (
			SELECT symbol, bar_time, open, high, low, close, volume
			FROM price_bars
			WHERE symbol = $1
			ORDER BY bar_time DESC
			LIMIT $2
		) recent
		ORDER BY bar_time ASC
	`
	rows, err := db.conn.Query(query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get price bars: %w", err)
	}
	defer rows.Close()

	var bars []models.PriceBar
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Symbol, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price bars: %w", err)
	}
	return bars, nil
}

// GetLatestPriceBar returns the newest bar for a symbol
func (db *DB) GetLatestPriceBar(symbol string) (*models.PriceBar, error) {
	bars, err := db.GetRecentPriceBars(symbol, 1)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no price bars for %s: %w", symbol, ErrNotFound)
	}
	return &bars[0], nil
}

// DeletePriceBarsOlderThan removes bars before cutoff and reports how many went
func (db *DB) DeletePriceBarsOlderThan(cutoff time.Time) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM price_bars WHERE bar_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old price bars: %w", err)
	}
	return result.RowsAffected()
}
