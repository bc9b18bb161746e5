// Package monitor drives position evaluation: a fixed-interval tick fans out
// price fetches for every watched symbol and funnels the results through the
// registry's single writer.
package monitor

import (
	"context"
	"time"

	"trade-assistant-go/internal/exchange"
	"trade-assistant-go/internal/models"
	"trade-assistant-go/internal/registry"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// symbolWatcher is implemented by price sources that keep a streaming cache;
// the monitor subscribes watched symbols lazily.
type symbolWatcher interface {
	WatchSymbol(symbol string, market models.MarketType)
}

// Monitor is the periodic scheduler.
type Monitor struct {
	registry      *registry.Registry
	prices        exchange.PriceSource
	logger        *zap.SugaredLogger
	interval      time.Duration
	fetchTimeout  time.Duration
	maxConcurrent int
	stopChan      chan struct{}
}

// New creates a Monitor.
func New(reg *registry.Registry, prices exchange.PriceSource, interval, fetchTimeout time.Duration, maxConcurrent int, logger *zap.SugaredLogger) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 3 * time.Second
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &Monitor{
		registry:      reg,
		prices:        prices,
		logger:        logger,
		interval:      interval,
		fetchTimeout:  fetchTimeout,
		maxConcurrent: maxConcurrent,
		stopChan:      make(chan struct{}),
	}
}

// Start launches the tick loop.
func (m *Monitor) Start() {
	go m.loop()
	m.logger.Infof("monitor started, tick interval %s", m.interval)
}

// Stop terminates the tick loop. In-flight evaluation of the current tick
// finishes before the loop exits.
func (m *Monitor) Stop() {
	close(m.stopChan)
	m.logger.Info("monitor stopped")
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.Tick(context.Background())
		}
	}
}

// Tick fetches a price for every distinct (symbol, market) pair in the
// working set concurrently, bounded, and applies them. A pair whose fetch
// fails or times out is skipped for this tick only and retried on the next.
func (m *Monitor) Tick(ctx context.Context) {
	pairs := m.registry.Symbols()
	if len(pairs) == 0 {
		return
	}

	if watcher, ok := m.prices.(symbolWatcher); ok {
		for _, sm := range pairs {
			watcher.WatchSymbol(sm.Symbol, sm.Market)
		}
	}

	g := &errgroup.Group{}
	g.SetLimit(m.maxConcurrent)

	for _, sm := range pairs {
		sm := sm
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
			price, err := m.prices.GetLastPrice(fetchCtx, sm.Symbol, sm.Market)
			cancel()
			if err != nil {
				m.logger.Warnw("price unavailable, skipping symbol for this tick",
					"symbol", sm.Symbol, "market", string(sm.Market), "error", err)
				return nil
			}
			m.registry.EvaluateSymbol(ctx, sm, price)
			return nil
		})
	}

	g.Wait()
}
