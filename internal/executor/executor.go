// Package executor turns a detected ladder or stop trigger into an actual
// reduce-only order and reconciles the position with the fill.
package executor

import (
	"context"
	"time"

	"trade-assistant-go/internal/exchange"
	"trade-assistant-go/internal/models"
	"trade-assistant-go/internal/notify"
	"trade-assistant-go/internal/persistence"
	"trade-assistant-go/internal/position"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

// RetryPolicy bounds the persistence retry loop.
type RetryPolicy struct {
	Attempts int
	MinDelay time.Duration
	MaxDelay time.Duration
}

// Executor executes partial and full closes against the order gateway and
// keeps the store in sync.
type Executor struct {
	gateway      exchange.OrderGateway
	repo         persistence.PositionRepository
	sink         notify.Sink
	logger       *zap.SugaredLogger
	retry        RetryPolicy
	orderTimeout time.Duration
}

// New creates an Executor.
func New(gateway exchange.OrderGateway, repo persistence.PositionRepository, sink notify.Sink, retry RetryPolicy, logger *zap.SugaredLogger) *Executor {
	if retry.Attempts <= 0 {
		retry.Attempts = 5
	}
	if retry.MinDelay <= 0 {
		retry.MinDelay = 200 * time.Millisecond
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = 5 * time.Second
	}
	return &Executor{
		gateway:      gateway,
		repo:         repo,
		sink:         sink,
		logger:       logger,
		retry:        retry,
		orderTimeout: 10 * time.Second,
	}
}

// Execute places the closing order for one trigger and, only once the order
// succeeded, commits the close to the position and persists it. On a gateway
// failure nothing is committed: the level stays un-hit and the same condition
// is re-evaluated against a fresh price on the next tick, which gives
// at-most-one execution per trigger.
func (x *Executor) Execute(ctx context.Context, pos *position.Position, trig position.Trigger) (*models.CloseReceipt, error) {
	qty := trig.Quantity
	if trig.Kind == models.ExecStopLoss {
		// The stop always closes whatever remains at trigger time.
		qty = pos.RemainingQty
	}
	closeSide := pos.Side.Opposite()

	orderCtx, cancel := context.WithTimeout(ctx, x.orderTimeout)
	defer cancel()

	res, err := x.gateway.PlaceReducingOrder(orderCtx, pos.Symbol, closeSide, qty, pos.Market)
	if err != nil {
		execErr := &models.ExecutionError{Symbol: pos.Symbol, Side: closeSide, Quantity: qty, Err: err}
		x.logger.Errorw("closing order failed, trigger left pending",
			"position_id", pos.ID,
			"symbol", pos.Symbol,
			"side", string(closeSide),
			"quantity", qty,
			"kind", string(trig.Kind),
			"error", err,
		)
		return nil, execErr
	}

	part, err := pos.Commit(trig, res.FillPrice, res.OrderID, time.Now())
	if err != nil {
		// The order went through but the trigger no longer applies. This can
		// only happen if the same trigger was executed twice within a tick,
		// which the registry's serial processing rules out; log loudly.
		x.logger.Errorw("commit rejected after successful order",
			"position_id", pos.ID, "order_id", res.OrderID, "error", err)
		return nil, err
	}

	receipt := &models.CloseReceipt{
		PositionID: pos.ID,
		Kind:       trig.Kind,
		OrderID:    res.OrderID,
		FillPrice:  part.Price,
		Quantity:   part.Quantity,
		Pnl:        part.Pnl,
		Final:      pos.Status == models.StatusClosed,
	}

	persistErr := x.Persist(pos)

	if x.sink != nil {
		// Fire-and-forget; sink failures never roll back a persisted close.
		go x.sink.OnExecution(pos.ID, trig.Kind, *receipt)
	}

	if persistErr != nil {
		return receipt, persistErr
	}
	return receipt, nil
}

// Persist upserts the position snapshot with bounded exponential backoff.
// The in-memory state is already committed, so the write is retried hard
// before giving up; the caller keeps the position dirty on failure and the
// write is attempted again next tick.
func (x *Executor) Persist(pos *position.Position) error {
	snap := pos.Snapshot()

	b := &backoff.Backoff{
		Min:    x.retry.MinDelay,
		Max:    x.retry.MaxDelay,
		Factor: 2,
		Jitter: true,
	}

	var err error
	for attempt := 1; attempt <= x.retry.Attempts; attempt++ {
		if err = x.repo.Upsert(snap); err == nil {
			return nil
		}
		delay := b.Duration()
		x.logger.Warnw("position persistence failed, backing off",
			"position_id", pos.ID, "attempt", attempt, "delay", delay, "error", err)
		time.Sleep(delay)
	}

	return &models.PersistenceError{PositionID: pos.ID, Err: err}
}
