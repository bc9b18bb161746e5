package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trade-assistant-go/internal/config"
	"trade-assistant-go/internal/exchange"
	"trade-assistant-go/internal/executor"
	"trade-assistant-go/internal/logger"
	"trade-assistant-go/internal/models"
	"trade-assistant-go/internal/monitor"
	"trade-assistant-go/internal/notify"
	"trade-assistant-go/internal/persistence"
	"trade-assistant-go/internal/registry"
	"trade-assistant-go/internal/reporter"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the config file")
	mode := flag.String("mode", "live", "running mode: live or paper")
	flag.Parse()

	// A default logger covers the window before the config is loaded.
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	if err := godotenvLoad(); err != nil {
		logger.S().Info("no .env file found, reading from system environment")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.S().Fatalf("failed to load config: %v", err)
	}

	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()

	// --- Exchange ---
	var (
		prices  exchange.PriceSource
		gateway exchange.OrderGateway
		closeFn func() error
	)
	switch *mode {
	case "live":
		apiKey := os.Getenv("BINANCE_API_KEY")
		secretKey := os.Getenv("BINANCE_SECRET_KEY")
		if apiKey == "" || secretKey == "" {
			logger.S().Fatal("BINANCE_API_KEY and BINANCE_SECRET_KEY must be set for live mode")
		}
		live := exchange.NewLiveExchange(apiKey, secretKey, cfg.IsTestnet, logger.S())
		prices, gateway, closeFn = live, live, live.Close
	case "paper":
		// Real prices, simulated fills.
		live := exchange.NewLiveExchange("", "", cfg.IsTestnet, logger.S())
		paper := exchange.NewPaperExchange(0, cfg.PaperSlippageRate)
		prices, gateway, closeFn = live, paperGateway{live: live, paper: paper}, live.Close
		logger.S().Info("paper mode: orders are simulated, prices are live")
	default:
		logger.S().Fatalf("unknown mode: %s, expected 'live' or 'paper'", *mode)
	}
	defer closeFn()

	// --- Store ---
	repo, err := persistence.NewBadgerRepository(cfg.DBPath)
	if err != nil {
		logger.S().Fatalf("failed to open position store at %s: %v", cfg.DBPath, err)
	}
	defer repo.Close()

	// --- Notifications ---
	sinks := notify.Multi{notify.NewLogSink(logger.S())}
	if cfg.Telegram.Enabled {
		token := os.Getenv("TELEGRAM_BOT_TOKEN")
		if token == "" {
			logger.S().Warn("telegram sink enabled but TELEGRAM_BOT_TOKEN is not set, skipping")
		} else {
			sinks = append(sinks, notify.NewTelegramSink(token, cfg.Telegram.ChatID, logger.S()))
		}
	}

	// --- Core wiring ---
	exec := executor.New(gateway, repo, sinks, executor.RetryPolicy{
		Attempts: cfg.PersistRetryAttempts,
		MinDelay: time.Duration(cfg.PersistRetryMinMs) * time.Millisecond,
		MaxDelay: time.Duration(cfg.PersistRetryMaxMs) * time.Millisecond,
	}, logger.S())

	reg := registry.New(repo, exec, logger.S())
	if err := reg.Recover(); err != nil {
		logger.S().Fatalf("failed to recover positions: %v", err)
	}
	reg.Start()

	mon := monitor.New(reg, prices,
		time.Duration(cfg.MonitorIntervalSec)*time.Second,
		time.Duration(cfg.PriceTimeoutSec)*time.Second,
		cfg.MaxConcurrentFetches,
		logger.S())
	mon.Start()

	// --- Status loop ---
	statusStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.StatusIntervalSec) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-statusStop:
				return
			case <-ticker.C:
				logger.S().Infof("position status:\n%s", reporter.OpenPositionsTable(reg.Snapshots()))
			}
		}
	}()

	logger.S().Info("trade assistant started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	close(statusStop)
	mon.Stop()
	reg.Stop()
	logger.S().Info("trade assistant stopped")
}
