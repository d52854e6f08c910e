package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/solkunai/LetsCook-APP-sub002/internal/app"
	"github.com/solkunai/LetsCook-APP-sub002/internal/config"
	"github.com/solkunai/LetsCook-APP-sub002/internal/logger"
	"github.com/solkunai/LetsCook-APP-sub002/internal/market"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (env only when empty)")
	mint := flag.String("mint", "", "Token mint address")
	vault := flag.String("vault", "", "Launch vault token account holding unsold supply")
	side := flag.String("side", "buy", "Quote direction: buy or sell")
	amount := flag.Float64("amount", 0, "SOL to spend (buy) or tokens to sell (sell); 0 prints the curve snapshot")
	watch := flag.Bool("watch", false, "Poll and print the curve price until interrupted")
	tui := flag.Bool("tui", false, "Open the interactive quote calculator")
	jsonOut := flag.Bool("json", false, "Print results as JSON")
	supply := flag.Float64("supply", 0, "Offline mode: total supply in whole tokens")
	decimals := flag.Uint("decimals", 9, "Offline mode: mint decimals")
	sold := flag.Float64("sold", 0, "Offline mode: tokens already sold")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadEnv()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	logOpts := logger.DefaultOptions()
	logOpts.Debug = cfg.DebugLogging
	logOpts.File = cfg.LogFile
	logOpts.Console = os.Stderr
	if *tui {
		logOpts.Console = io.Discard
		if logOpts.File == "" {
			logOpts.File = "logs/letscook.log"
		}
	}
	appLogger, err := logger.New(logOpts)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(appLogger)
	}()

	opts := app.Options{
		Mint:   *mint,
		Vault:  *vault,
		Side:   *side,
		Amount: *amount,
		Watch:  *watch,
		TUI:    *tui,
		JSON:   *jsonOut,
	}
	if *supply > 0 {
		if *decimals > 255 {
			log.Fatalf("decimals out of range: %d", *decimals)
		}
		opts.Offline = &market.State{
			Mint:        *mint,
			Vault:       *vault,
			TotalSupply: *supply,
			TokensSold:  *sold,
			Decimals:    uint8(*decimals),
		}
	}

	runner := app.NewRunner(cfg, opts, os.Stdout, appLogger)
	defer runner.Shutdown()

	if err := runner.Run(rootCtx); err != nil {
		appLogger.Error("Quote failed", zap.Error(err))
		runner.Shutdown()
		_ = logger.Sync(appLogger)
		os.Exit(1)
	}
}
