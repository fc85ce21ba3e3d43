package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/trogers1052/brot-trading-bot/internal/api"
	"github.com/trogers1052/brot-trading-bot/internal/kafka"
)

const shutdownTimeout = 10 * time.Second

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the consumers, the trading loop and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			var wg sync.WaitGroup
			start := func(name string, fn func(context.Context) error) {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := fn(ctx); err != nil {
						log.Error().Err(err).Str("component", name).Msg("Component stopped with error")
					}
				}()
			}

			k := cfg.Kafka
			start("fills", kafka.NewConsumer(k.Brokers, k.FillsTopic, k.GroupID, a.db).Start)
			start("bars", kafka.NewBarsConsumer(k.Brokers, k.BarsTopic, k.GroupID, a.db, a.cache).Start)
			start("positions", kafka.NewPositionsConsumer(k.Brokers, k.PositionsTopic, k.GroupID, a.db).Start)
			start("dispatcher", a.dispatcher.Run)

			handler := api.NewHandler(a.db, a.producer, a.dispatcher)
			srv := &http.Server{
				Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
				Handler:           api.SetupRoutes(handler),
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("HTTP server failed")
					stop()
				}
			}()

			<-ctx.Done()
			log.Info().Msg("Shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("HTTP server shutdown")
			}

			wg.Wait()
			log.Info().Msg("Shutdown complete")
			return nil
		},
	}
}
