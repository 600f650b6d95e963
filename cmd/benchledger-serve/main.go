package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/mslinn/benchledger/pkg/blob"
	"github.com/mslinn/benchledger/pkg/config"
	"github.com/mslinn/benchledger/pkg/ledger"
	"github.com/mslinn/benchledger/pkg/logging"
	"github.com/mslinn/benchledger/pkg/server"
)

var version = "dev" // Set by -ldflags during build

func main() {
	var (
		showVersion bool
		showHelp    bool
		debug       bool
		listen      string
		ledgerPath  string
		reload      time.Duration
	)

	pflag.BoolVarP(&showVersion, "version", "V", false, "Show version and exit")
	pflag.BoolVarP(&showHelp, "help", "h", false, "Show this help message")
	pflag.BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	pflag.StringVarP(&listen, "listen", "l", "", "Listen address (default from config)")
	pflag.StringVar(&ledgerPath, "ledger", "", "Ledger file (file backend; default from config)")
	pflag.DurationVar(&reload, "reload", 0, "Re-read the ledger at this interval (0 disables)")

	pflag.Parse()

	if showVersion {
		fmt.Printf("benchledger-serve version %s\n", version)
		os.Exit(0)
	}

	if showHelp {
		printHelp()
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if ledgerPath != "" {
		cfg.LedgerPath = ledgerPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := logging.Must(debug)
	defer log.Sync()

	b, closeBlob, err := blob.Open(cfg)
	if err != nil {
		log.Fatal("failed to open ledger", zap.Error(err))
	}
	defer closeBlob()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := ledger.Open(ctx, b, cfg.RepoURL, ledger.WithLogger(log))
	if err != nil {
		log.Fatal("failed to load ledger", zap.Error(err))
	}

	srv := server.New(store, b, log)
	if reload > 0 {
		go srv.Watch(ctx, reload)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listen and serve",
			zap.String("addr", httpSrv.Addr),
			zap.String("backend", cfg.Backend),
			zap.String("ledger", cfg.ObjectName()))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server exited", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shut down server", zap.Error(err))
		return
	}
	log.Info("server stopped")
}

func printHelp() {
	fmt.Printf("benchledger-serve - Serve the ledger and benchmark series over HTTP\n\n")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Printf("DESCRIPTION:\n")
	fmt.Printf("  Serves the ledger in data.js and JSON form for the benchmark page, plus\n")
	fmt.Printf("  a read-only JSON API over the series query engine.\n\n")

	fmt.Printf("USAGE:\n")
	fmt.Printf("  benchledger-serve [OPTIONS]\n\n")

	fmt.Printf("ENDPOINTS:\n")
	fmt.Printf("  GET /healthz\n")
	fmt.Printf("  GET /data.js\n")
	fmt.Printf("  GET /data.json\n")
	fmt.Printf("  GET /api/groups\n")
	fmt.Printf("  GET /api/groups/{group}/tools\n")
	fmt.Printf("  GET /api/groups/{group}/tools/{tool}/benchmarks\n")
	fmt.Printf("  GET /api/groups/{group}/tools/{tool}/benchmarks/{name}/series[?distinct=true]\n")
	fmt.Printf("  GET /api/groups/{group}/tools/{tool}/benchmarks/{name}/latest\n\n")

	fmt.Printf("OPTIONS:\n")
	pflag.PrintDefaults()

	fmt.Printf("\nEXAMPLES:\n")
	fmt.Printf("  # Serve the local ledger, picking up new runs every minute\n")
	fmt.Printf("  benchledger-serve --reload 1m\n\n")
}
