package models

import "time"

// WatchlistEntry is a symbol the bot evaluates each cycle
type WatchlistEntry struct {
	Symbol    string    `json:"symbol"`
	Enabled   bool      `json:"enabled"`
	Notes     string    `json:"notes,omitempty"`
	AddedAt   time.Time `json:"added_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
