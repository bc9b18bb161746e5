// Package registry holds every actively monitored position and serializes
// all mutation through a single writer goroutine, so a position only ever
// sees one evaluation or command at a time.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trade-assistant-go/internal/executor"
	"trade-assistant-go/internal/models"
	"trade-assistant-go/internal/persistence"
	"trade-assistant-go/internal/position"

	"go.uber.org/zap"
)

// ErrPositionNotFound is returned for an unknown or already closed position id.
var ErrPositionNotFound = errors.New("position not found")

// SymbolMarket identifies one price feed: a symbol on a market.
type SymbolMarket struct {
	Symbol string
	Market models.MarketType
}

// entry wraps a position with its persistence bookkeeping. dirty marks a
// snapshot the store has not accepted yet.
type entry struct {
	pos   *position.Position
	dirty bool
}

// Registry is the in-memory collection of open positions. All public methods
// are safe for concurrent use; they funnel into the writer goroutine.
type Registry struct {
	repo   persistence.PositionRepository
	exec   *executor.Executor
	logger *zap.SugaredLogger

	positions map[string]*entry
	cmdChan   chan func()
	stopChan  chan struct{}
}

// New creates a Registry.
func New(repo persistence.PositionRepository, exec *executor.Executor, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		repo:      repo,
		exec:      exec,
		logger:    logger,
		positions: make(map[string]*entry),
		cmdChan:   make(chan func(), 64),
		stopChan:  make(chan struct{}),
	}
}

// Recover reloads all OPEN positions from the store. Must be called before
// Start so no tick runs against a partial working set.
func (r *Registry) Recover() error {
	snaps, err := r.repo.ListOpen()
	if err != nil {
		return fmt.Errorf("loading open positions: %w", err)
	}

	for _, snap := range snaps {
		pos, err := position.FromSnapshot(snap)
		if err != nil {
			r.logger.Errorw("skipping unparseable position snapshot",
				"position_id", snap.PositionID, "error", err)
			continue
		}
		r.positions[pos.ID] = &entry{pos: pos}
	}

	r.logger.Infof("recovered %d open position(s) from store", len(r.positions))
	return nil
}

// Start launches the writer goroutine.
func (r *Registry) Start() {
	go r.loop()
	r.logger.Info("position registry started")
}

// Stop shuts the writer goroutine down.
func (r *Registry) Stop() {
	close(r.stopChan)
	r.logger.Info("position registry stopped")
}

func (r *Registry) loop() {
	for {
		select {
		case cmd := <-r.cmdChan:
			cmd()
		case <-r.stopChan:
			return
		}
	}
}

// do runs fn on the writer goroutine and waits for it to finish.
func (r *Registry) do(fn func()) {
	done := make(chan struct{})
	select {
	case r.cmdChan <- func() { fn(); close(done) }:
		<-done
	case <-r.stopChan:
	}
}

// Open registers a freshly confirmed trade and persists it before admitting
// it to the working set, so no position ever lives only in memory.
func (r *Registry) Open(spec position.OpenSpec) (string, error) {
	var (
		id  string
		err error
	)
	r.do(func() {
		var pos *position.Position
		pos, err = position.Open(spec, time.Now())
		if err != nil {
			return
		}
		for r.positions[pos.ID] != nil {
			pos.ID = position.NewID()
		}
		if err = r.exec.Persist(pos); err != nil {
			return
		}
		r.positions[pos.ID] = &entry{pos: pos}
		id = pos.ID
		r.logger.Infow("position opened",
			"position_id", pos.ID, "symbol", pos.Symbol, "side", string(pos.Side),
			"market", string(pos.Market), "quantity", pos.OriginalQty, "entry_price", pos.EntryPrice)
	})
	return id, err
}

// AddTakeProfit attaches a ladder level to an open position.
func (r *Registry) AddTakeProfit(positionID string, price, percentage float64) error {
	var err error
	r.do(func() {
		e, ok := r.positions[positionID]
		if !ok {
			err = ErrPositionNotFound
			return
		}
		if err = e.pos.AddTakeProfit(price, percentage); err != nil {
			return
		}
		r.persistEntry(e)
	})
	return err
}

// SetStopLoss installs or replaces the stop of an open position.
func (r *Registry) SetStopLoss(positionID string, price float64, isTrailing bool, trailingDistancePercent float64) error {
	var err error
	r.do(func() {
		e, ok := r.positions[positionID]
		if !ok {
			err = ErrPositionNotFound
			return
		}
		if err = e.pos.SetStopLoss(price, isTrailing, trailingDistancePercent, time.Now()); err != nil {
			return
		}
		r.persistEntry(e)
	})
	return err
}

// ManualPartialClose closes a percentage of the remaining quantity through
// the same execution path as a triggered close.
func (r *Registry) ManualPartialClose(ctx context.Context, positionID string, percentage float64) (*models.CloseReceipt, error) {
	var (
		receipt *models.CloseReceipt
		err     error
	)
	r.do(func() {
		e, ok := r.positions[positionID]
		if !ok {
			err = ErrPositionNotFound
			return
		}
		var trig position.Trigger
		trig, err = e.pos.ManualCloseTrigger(percentage)
		if err != nil {
			return
		}
		receipt, err = r.runTrigger(ctx, e, trig)
	})
	return receipt, err
}

// ManualFullClose closes the entire remaining quantity.
func (r *Registry) ManualFullClose(ctx context.Context, positionID string) (*models.CloseReceipt, error) {
	return r.ManualPartialClose(ctx, positionID, 100)
}

// Status returns a snapshot of one position, or nil when unknown.
func (r *Registry) Status(positionID string) *models.PositionSnapshot {
	var snap *models.PositionSnapshot
	r.do(func() {
		if e, ok := r.positions[positionID]; ok {
			snap = e.pos.Snapshot()
		}
	})
	return snap
}

// Snapshots returns snapshots of every position in the working set.
func (r *Registry) Snapshots() []*models.PositionSnapshot {
	var snaps []*models.PositionSnapshot
	r.do(func() {
		for _, e := range r.positions {
			snaps = append(snaps, e.pos.Snapshot())
		}
	})
	return snaps
}

// Symbols returns the distinct (symbol, market) pairs of the working set.
// The monitor fetches one price per pair each tick.
func (r *Registry) Symbols() []SymbolMarket {
	var pairs []SymbolMarket
	r.do(func() {
		seen := make(map[SymbolMarket]struct{})
		for _, e := range r.positions {
			sm := SymbolMarket{Symbol: e.pos.Symbol, Market: e.pos.Market}
			if _, ok := seen[sm]; !ok {
				seen[sm] = struct{}{}
				pairs = append(pairs, sm)
			}
		}
	})
	return pairs
}

// EvaluateSymbol applies a fresh price to every position on the given symbol
// and market, executing any crossed triggers strictly in order. Called by the
// monitor once per pair per tick.
func (r *Registry) EvaluateSymbol(ctx context.Context, sm SymbolMarket, price float64) {
	r.do(func() {
		for id, e := range r.positions {
			if e.pos.Symbol != sm.Symbol || e.pos.Market != sm.Market {
				continue
			}
			r.evaluateEntry(ctx, id, e, price)
		}
	})
}

func (r *Registry) evaluateEntry(ctx context.Context, id string, e *entry, price float64) {
	if e.pos.Status == models.StatusClosed {
		// Close already committed but not yet durable; retry before removal.
		r.flushEntry(id, e)
		return
	}

	stopBefore := stopPrice(e.pos)
	triggers := e.pos.Evaluate(price, time.Now())

	for _, trig := range triggers {
		if _, err := r.runTrigger(ctx, e, trig); err != nil {
			var execErr *models.ExecutionError
			if errors.As(err, &execErr) {
				// Order failed: the level is still un-hit, drop the rest of
				// this tick's triggers and re-evaluate next tick.
				return
			}
			// Persistence failed; the entry is marked dirty and the close is
			// already committed, keep going.
		}
		if e.pos.Status == models.StatusClosed {
			break
		}
	}

	if len(triggers) == 0 && stopPrice(e.pos) != stopBefore {
		// A trailing ratchet moved the stop; make it durable.
		r.persistEntry(e)
	}

	r.flushEntry(id, e)
}

// runTrigger executes one trigger and updates persistence bookkeeping.
func (r *Registry) runTrigger(ctx context.Context, e *entry, trig position.Trigger) (*models.CloseReceipt, error) {
	receipt, err := r.exec.Execute(ctx, e.pos, trig)
	if err != nil {
		var persistErr *models.PersistenceError
		if errors.As(err, &persistErr) {
			e.dirty = true
			return receipt, err
		}
		return nil, err
	}
	e.dirty = false
	return receipt, nil
}

// flushEntry retries a dirty snapshot and removes the position from the
// working set once it is CLOSED and durably persisted. Removal never happens
// before the close has reached the store.
func (r *Registry) flushEntry(id string, e *entry) {
	if e.dirty {
		if err := r.repo.Upsert(e.pos.Snapshot()); err != nil {
			r.logger.Warnw("snapshot still not persisted", "position_id", id, "error", err)
			return
		}
		e.dirty = false
	}
	if e.pos.Status == models.StatusClosed {
		delete(r.positions, id)
		r.logger.Infow("position closed and removed from working set",
			"position_id", id, "realized_pnl", e.pos.RealizedPnl, "close_price", e.pos.ClosePrice)
	}
}

// persistEntry writes an entry's snapshot, marking it dirty on failure so
// the monitor path retries later.
func (r *Registry) persistEntry(e *entry) {
	if err := r.exec.Persist(e.pos); err != nil {
		e.dirty = true
		r.logger.Warnw("persisting position failed, marked dirty", "position_id", e.pos.ID, "error", err)
	} else {
		e.dirty = false
	}
}

func stopPrice(p *position.Position) float64 {
	if p.Stop == nil {
		return 0
	}
	return p.Stop.Price
}
