package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/evanofslack/ddns-sync/internal/config"
	"github.com/evanofslack/ddns-sync/internal/logger"
	"github.com/evanofslack/ddns-sync/internal/metrics"
	"github.com/evanofslack/ddns-sync/internal/provider/cloudflare"
	"github.com/evanofslack/ddns-sync/internal/reconcile"
	"github.com/evanofslack/ddns-sync/internal/resolver"
	"github.com/evanofslack/ddns-sync/internal/runlock"
	"github.com/evanofslack/ddns-sync/internal/runner"
	"github.com/evanofslack/ddns-sync/internal/server"
	"github.com/evanofslack/ddns-sync/internal/state"
	"github.com/evanofslack/ddns-sync/internal/zone"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "ddns-sync",
		Short:         "Keep Cloudflare address records in sync with backend hosts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")

	root.AddCommand(serveCmd(), syncCmd(), logsCmd(), zonesCmd(), resolveCmd())

	if err := root.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	store   state.Manager
	runner  *runner.Runner
	dns     *cloudflare.CloudflareProvider
}

func newApp(withStore bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Configure(cfg.Log, os.Stderr)

	m := metrics.New(true)

	cf, err := cloudflare.New(cfg.DNS, m)
	if err != nil {
		return nil, fmt.Errorf("initialize DNS provider: %w", err)
	}

	var store state.Manager
	if withStore {
		store, err = state.New(cfg.StatePath, cfg.MaxLogs, m)
		if err != nil {
			return nil, fmt.Errorf("initialize state manager: %w", err)
		}
	}

	engine := reconcile.NewEngine(cf, resolver.New(cfg.Resolver, m), cfg.Reconcile, m)
	lock := runlock.New(filepath.Clean(cfg.StatePath) + ".lock")

	return &app{
		cfg:     cfg,
		metrics: m,
		store:   store,
		runner:  runner.New(engine, store, lock, m, cfg.Domains),
		dns:     cf,
	}, nil
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("fail close state", "error", err)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Sync on a schedule and serve the HTTP trigger, logs and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()
			return serve(a)
		},
	}
}

func serve(a *app) error {
	srv := server.New(a.cfg.ListenAddr, server.Handler(a.runner, a.metrics))

	// Start http server in background
	go func() {
		slog.Info("Starting http server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Http server failed", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("Starting ddns-sync service", "domains", len(a.cfg.Domains), "interval", a.cfg.SyncInterval, "dry_run", a.cfg.Reconcile.DryRun)

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go a.runner.Loop(ctx, wg, a.cfg.SyncInterval)

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("Shutdown signal received")
	cancel()

	shutdownCtx, cancelServer := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelServer()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Http server shutdown error", "error", err)
	}

	// Wait for sync loop to finish
	wg.Wait()
	slog.Info("Service shutdown complete")
	return nil
}

func syncCmd() *cobra.Command {
	var noLog bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(!noLog)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			report, err := a.runner.Run(ctx, runner.TriggerCLI)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().BoolVar(&noLog, "no-log", false, "Do not store the report in the sync log")
	return cmd
}

func logsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print recent sync reports, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			reports, err := a.runner.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, reports)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", state.DefaultRecentLimit, "Number of reports to print")
	return cmd
}

func zonesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "zones [record...]",
		Short: "Show which zone owns each record name",
		Long:  "Show which zone owns each record name. Without arguments the configured domains are used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}

			names := args
			if len(names) == 0 {
				for _, d := range a.cfg.Domains {
					names = append(names, d.RecordName)
				}
			}

			locator := zone.NewLocator(a.dns)
			out := make(map[string]*zone.Binding, len(names))
			for _, name := range names {
				if binding, ok := locator.Locate(cmd.Context(), name); ok {
					out[name] = &binding
				} else {
					out[name] = nil
				}
			}
			return printJSON(cmd, out)
		},
	}
}

func resolveCmd() *cobra.Command {
	var ipv6 bool
	cmd := &cobra.Command{
		Use:   "resolve <host>...",
		Short: "Look up target addresses through the configured DoH resolver",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Configure(cfg.Log, os.Stderr)

			family := resolver.IPv4
			if ipv6 {
				family = resolver.IPv6
			}
			r := resolver.New(cfg.Resolver, metrics.New(false))

			out := make(map[string][]string, len(args))
			for _, host := range args {
				out[host] = resolver.ResolveAddresses(cmd.Context(), r, host, family)
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().BoolVarP(&ipv6, "ipv6", "6", false, "Resolve AAAA instead of A")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
