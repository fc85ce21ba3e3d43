package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPosition_RefreshDaysHeld(t *testing.T) {
	now := time.Date(2026, 4, 24, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		openedAt time.Time
		stored   int
		want     int
	}{
		{"stale stored value is replaced", now.Add(-100 * 24 * time.Hour), 3, 100},
		{"partial days round down", now.Add(-47 * time.Hour), 0, 1},
		{"open time in the future clamps to zero", now.Add(time.Hour), 5, 0},
		{"unknown open time keeps stored value", time.Time{}, 7, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Position{Symbol: "AAPL", OpenedAt: tt.openedAt, DaysHeld: tt.stored}
			p.RefreshDaysHeld(now)
			assert.Equal(t, tt.want, p.DaysHeld)
		})
	}
}
