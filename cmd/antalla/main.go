// Command antalla runs the ingestion orchestrator and snapshot generator
// against the venues registered via each listener package's init().
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nadircryptocurrency/antalla/internal/config"
	"github.com/nadircryptocurrency/antalla/internal/fixtures"
	"github.com/nadircryptocurrency/antalla/internal/listener"
	_ "github.com/nadircryptocurrency/antalla/internal/listener/hitbtc"
	"github.com/nadircryptocurrency/antalla/internal/logging"
	"github.com/nadircryptocurrency/antalla/internal/orchestrator"
	"github.com/nadircryptocurrency/antalla/internal/priceenrich"
	"github.com/nadircryptocurrency/antalla/internal/snapshot"
	"github.com/nadircryptocurrency/antalla/internal/store"
)

var exchangeFlags []string

func main() {
	logging.Setup()
	if err := rootCmd().ExecuteContext(signalContext()); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, the shared
// shutdown signal every subcommand's long-running loop observes.
func signalContext() context.Context {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "antalla",
		Short: "Multi-exchange market-data ingestion and order-book snapshot pipeline",
	}
	root.PersistentFlags().StringArrayVar(&exchangeFlags, "exchange", nil, "venue to operate on (repeatable; default: all registered)")

	root.AddCommand(initDBCmd(), runCmd(), marketsCmd(), initDataCmd(), fetchPricesCmd(), snapshotCmd())
	return root
}

// venues returns the --exchange flags, or every registered listener name
// when none were given.
func venues() []string {
	if len(exchangeFlags) > 0 {
		return exchangeFlags
	}
	return listener.Registered()
}

func openStore() (*store.PostgresStore, error) {
	cfg, err := config.Load(venues())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return store.Open(cfg.DatabaseURL)
}

func initDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "create schema and load fixtures",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			if err := st.CreateSchema(ctx); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
			if err := (fixtures.DefaultLoader{}).Load(ctx, st); err != nil {
				return fmt.Errorf("load fixtures: %w", err)
			}
			logrus.Info("database initialized")
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "start the orchestrator with the named venues (default: all registered)",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := venues()
			cfg, err := config.Load(names)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			st, err := store.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer st.Close()

			o, err := orchestrator.New(st, names, cfg.Venues, cfg.CommitInterval)
			if err != nil {
				return fmt.Errorf("build orchestrator: %w", err)
			}

			ctx := cmd.Context()
			go func() {
				<-ctx.Done()
				o.Stop()
			}()
			return o.Start(ctx)
		},
	}
}

func marketsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "markets",
		Short: "one-shot get_markets fan-out across the named venues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMarkets(cmd.Context(), venues())
		},
	}
}

func runMarkets(ctx context.Context, names []string) error {
	cfg, err := config.Load(names)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	o, err := orchestrator.New(st, names, cfg.Venues, cfg.CommitInterval)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}
	return o.GetMarkets(ctx)
}

func initDataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-data",
		Short: "markets, then fetch-prices (no USD volume normalization step)",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := venues()
			if err := runMarkets(cmd.Context(), names); err != nil {
				return err
			}
			return fetchPrices(cmd.Context())
		},
	}
}

func fetchPricesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch-prices",
		Short: "refresh per-coin USD price",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetchPrices(cmd.Context())
		},
	}
}

func fetchPrices(ctx context.Context) error {
	// NoopEnricher keeps the command runnable without a real USD source.
	enricher := priceenrich.NoopEnricher{}
	action, err := enricher.RefreshCoinPrices(ctx, nil)
	if err != nil {
		return fmt.Errorf("refresh coin prices: %w", err)
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	tx, err := st.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin price refresh: %w", err)
	}
	if err := action.Execute(ctx, tx); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply price refresh: %w", err)
	}
	return tx.Commit()
}

func snapshotCmd() *cobra.Command {
	var commitInterval int
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "run the snapshot generator with stop_time = now",
		RunE: func(cmd *cobra.Command, args []string) error {
			names := venues()
			cfg, err := config.Load(names)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			st, err := store.Open(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer st.Close()

			if commitInterval <= 0 {
				commitInterval = cfg.CommitInterval
			}
			if interval <= 0 {
				interval = cfg.SnapshotStep
			}
			gen := snapshot.New(st, commitInterval, interval)
			return gen.Run(cmd.Context(), names, time.Now())
		},
	}
	cmd.Flags().IntVar(&commitInterval, "commit-interval", 0, "snapshot buffer depth before an intermediate commit")
	cmd.Flags().DurationVar(&interval, "snapshot-interval", 0, "wall-clock step between ticks")
	return cmd
}
