package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/trogers1052/brot-trading-bot/internal/database"
	"github.com/trogers1052/brot-trading-bot/internal/models"
)

func reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Print trade statistics, holdings and account cash",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			summary, err := db.GetTradeSummary()
			if err != nil {
				return err
			}
			positions, err := db.GetAllPositions()
			if err != nil {
				return err
			}
			account, err := db.GetAccount()
			if err != nil && !errors.Is(err, database.ErrNotFound) {
				return err
			}

			return writeReport(cmd.OutOrStdout(), summary, positions, account)
		},
	}
}

// writeReport renders the performance report. account may be nil.
func writeReport(out io.Writer, summary *models.TradeSummary, positions map[string]*models.Position, account *models.AccountInfo) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "TRADES")
	fmt.Fprintf(w, "Total buys:\t%d\n", summary.TotalBuys)
	fmt.Fprintf(w, "Total sells:\t%d\n", summary.TotalSells)
	fmt.Fprintf(w, "Buy notional:\t%s\n", summary.BuyNotional.StringFixed(2))
	fmt.Fprintf(w, "Sell notional:\t%s\n", summary.SellNotional.StringFixed(2))
	fmt.Fprintf(w, "Symbols traded:\t%d\n", summary.Symbols)
	if summary.FirstTradeAt != nil && summary.LastTradeAt != nil {
		fmt.Fprintf(w, "Period:\t%s to %s\n",
			summary.FirstTradeAt.Format("2006-01-02"), summary.LastTradeAt.Format("2006-01-02"))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "POSITIONS")
	if len(positions) == 0 {
		fmt.Fprintln(w, "No open positions")
	} else {
		symbols := make([]string, 0, len(positions))
		for s := range positions {
			symbols = append(symbols, s)
		}
		sort.Strings(symbols)

		fmt.Fprintln(w, "SYMBOL\tQTY\tAVG ENTRY\tPRICE\tP&L\tP&L %\tDAYS")
		for _, s := range symbols {
			p := positions[s]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s%%\t%d\n",
				p.Symbol, p.Quantity.String(), p.AvgEntryPrice.StringFixed(2), p.CurrentPrice.StringFixed(2),
				p.UnrealizedPnl.StringFixed(2), p.UnrealizedPnlPct.StringFixed(2), p.DaysHeld)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "ACCOUNT")
	if account == nil {
		fmt.Fprintln(w, "No account snapshot received yet")
	} else {
		fmt.Fprintf(w, "Cash:\t%s\n", account.Cash.StringFixed(2))
		fmt.Fprintf(w, "Buying power:\t%s\n", account.BuyingPower.StringFixed(2))
		fmt.Fprintf(w, "Portfolio value:\t%s\n", account.PortfolioValue.StringFixed(2))
	}

	return w.Flush()
}
