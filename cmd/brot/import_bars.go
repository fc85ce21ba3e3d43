package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

var barColumns = []string{"symbol", "timestamp", "open", "high", "low", "close", "volume"}

func importBarsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-bars <file.csv>",
		Short: "Backfill price history from a CSV file",
		Long: `Backfill price history from a CSV file with the header
symbol,timestamp,open,high,low,close,volume. Timestamps are RFC3339 or
YYYY-MM-DD. Existing bars are overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			bars, err := parseBarsCSV(f)
			if err != nil {
				return err
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.UpsertPriceBarsBatch(bars); err != nil {
				return err
			}
			log.Info().Int("bars", len(bars)).Str("file", args[0]).Msg("Imported price bars")
			return nil
		},
	}
}

// parseBarsCSV reads and validates bars. Symbols are upper-cased.
func parseBarsCSV(r io.Reader) ([]models.PriceBar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range barColumns {
		if _, ok := index[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	var bars []models.PriceBar
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		bar, err := parseBarRecord(record, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBarRecord(record []string, index map[string]int) (models.PriceBar, error) {
	field := func(name string) string {
		return strings.TrimSpace(record[index[name]])
	}

	ts, err := parseBarTime(field("timestamp"))
	if err != nil {
		return models.PriceBar{}, err
	}

	bar := models.PriceBar{Symbol: strings.ToUpper(field("symbol")), Timestamp: ts}
	for name, dst := range map[string]*decimal.Decimal{
		"open": &bar.Open, "high": &bar.High, "low": &bar.Low, "close": &bar.Close,
	} {
		v, err := decimal.NewFromString(field(name))
		if err != nil {
			return models.PriceBar{}, fmt.Errorf("invalid %s %q: %w", name, field(name), err)
		}
		*dst = v
	}

	if raw := field("volume"); raw != "" {
		bar.Volume, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return models.PriceBar{}, fmt.Errorf("invalid volume %q: %w", raw, err)
		}
	}

	if err := bar.Validate(); err != nil {
		return models.PriceBar{}, err
	}
	return bar, nil
}

func parseBarTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return t, nil
}
