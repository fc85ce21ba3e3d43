package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/brot-trading-bot/internal/models"
)

// UpsertWatchlistEntry adds a symbol to the watchlist or updates it
func (db *DB) UpsertWatchlistEntry(w *models.WatchlistEntry) error {
	query := `
		INSERT INTO watchlist (symbol, enabled, notes, added_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (symbol) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING added_at
	`
	now := time.Now()

	err := db.conn.QueryRow(query, w.Symbol, w.Enabled, nullString(w.Notes), now, now).Scan(&w.AddedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert watchlist entry: %w", err)
	}
	w.UpdatedAt = now
	return nil
}

// GetWatchlistEntry returns the entry for symbol
func (db *DB) GetWatchlistEntry(symbol string) (*models.WatchlistEntry, error) {
	query := `
		SELECT symbol, enabled, notes, added_at, updated_at
		FROM watchlist
		WHERE symbol = $1
	`
	var w models.WatchlistEntry
	var notes sql.NullString

	err := db.conn.QueryRow(query, symbol).Scan(&w.Symbol, &w.Enabled, &notes, &w.AddedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("watchlist entry %s: %w", symbol, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist entry: %w", err)
	}
	w.Notes = notes.String
	return &w, nil
}

// GetWatchlist returns every entry ordered by symbol
func (db *DB) GetWatchlist() ([]*models.WatchlistEntry, error) {
	query := `
		SELECT symbol, enabled, notes, added_at, updated_at
		FROM watchlist
		ORDER BY symbol
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get watchlist: %w", err)
	}
	defer rows.Close()

	var entries []*models.WatchlistEntry
	for rows.Next() {
		var w models.WatchlistEntry
		var notes sql.NullString
		if err := rows.Scan(&w.Symbol, &w.Enabled, &notes, &w.AddedAt, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		w.Notes = notes.String
		entries = append(entries, &w)
	}
	return entries, nil
}

// GetWatchedSymbols returns the symbols of enabled entries
func (db *DB) GetWatchedSymbols() ([]string, error) {
	rows, err := db.conn.Query(`SELECT symbol FROM watchlist WHERE enabled = true ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to get watched symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, nil
}

// SetWatchlistEnabled turns evaluation of a symbol on or off
func (db *DB) SetWatchlistEnabled(symbol string, enabled bool) error {
	query := `UPDATE watchlist SET enabled = $2, updated_at = $3 WHERE symbol = $1`
	result, err := db.conn.Exec(query, symbol, enabled, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update watchlist entry: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("watchlist entry %s: %w", symbol, ErrNotFound)
	}
	return nil
}

// DeleteWatchlistEntry removes a symbol from the watchlist
func (db *DB) DeleteWatchlistEntry(symbol string) error {
	result, err := db.conn.Exec(`DELETE FROM watchlist WHERE symbol = $1`, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete watchlist entry: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("watchlist entry %s: %w", symbol, ErrNotFound)
	}
	return nil
}
