package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/brot-trading-bot/internal/models"
)

// UpsertAccount stores the latest account snapshot
func (db *DB) UpsertAccount(a *models.AccountInfo) error {
	query := `
		INSERT INTO account (id, cash, buying_power, portfolio_value, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			cash = EXCLUDED.cash,
			buying_power = EXCLUDED.buying_power,
			portfolio_value = EXCLUDED.portfolio_value,
			updated_at = EXCLUDED.updated_at
	`
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}
	if _, err := db.conn.Exec(query, a.Cash, a.BuyingPower, a.PortfolioValue, a.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

// GetAccount returns the stored account snapshot
func (db *DB) GetAccount() (*models.AccountInfo, error) {
	var a models.AccountInfo
	err := db.conn.QueryRow(`
		SELECT cash, buying_power, portfolio_value, updated_at
		FROM account
		WHERE id = 1
	`).Scan(&a.Cash, &a.BuyingPower, &a.PortfolioValue, &a.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account snapshot: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &a, nil
}
