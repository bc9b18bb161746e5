package models

import (
	"fmt"
	"time"
)

// Side defines the direction of a position.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the side of an order that reduces a position held on s.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// MarketType distinguishes spot holdings from leveraged futures positions.
type MarketType string

const (
	Spot    MarketType = "SPOT"
	Futures MarketType = "FUTURES"
)

// PositionStatus is the lifecycle state of a position. CLOSED is terminal.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "OPEN"
	StatusClosed PositionStatus = "CLOSED"
)

// QtyEpsilon is the tolerance below which a remaining quantity is treated as zero.
const QtyEpsilon = 1e-8

// ExecutionKind identifies what triggered a (partial) close.
type ExecutionKind string

const (
	ExecTakeProfit ExecutionKind = "TAKE_PROFIT"
	ExecStopLoss   ExecutionKind = "STOP_LOSS"
	ExecManual     ExecutionKind = "MANUAL"
)

// ClosedPart is one entry of a position's append-only close audit log.
type ClosedPart struct {
	Kind       ExecutionKind `json:"kind"`
	Percentage float64       `json:"percentage"`
	Price      float64       `json:"price"`
	Quantity   float64       `json:"quantity"`
	Pnl        float64       `json:"pnl"`
	OrderID    string        `json:"order_id,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
}

// TakeProfitSnapshot is the persisted form of a ladder level.
type TakeProfitSnapshot struct {
	TargetPrice     float64    `json:"target_price"`
	ClosePercentage float64    `json:"close_percentage"`
	Hit             bool       `json:"hit"`
	HitAt           *time.Time `json:"hit_at,omitempty"`
}

// StopLossSnapshot is the persisted form of a stop-loss controller.
type StopLossSnapshot struct {
	Price                   float64   `json:"price"`
	InitialPrice            float64   `json:"initial_price"`
	IsTrailing              bool      `json:"is_trailing"`
	TrailingDistancePercent float64   `json:"trailing_distance_percent"`
	MovedToBreakeven        bool      `json:"moved_to_breakeven"`
	LastUpdate              time.Time `json:"last_update"`
}

// PositionSnapshot is the durable representation of a position. It is the only
// shape that crosses the store boundary; the in-memory aggregate is rebuilt
// from it with an explicit parse step.
type PositionSnapshot struct {
	PositionID   string               `json:"position_id"`
	Symbol       string               `json:"symbol"`
	Side         Side                 `json:"side"`
	Market       MarketType           `json:"market"`
	Leverage     int                  `json:"leverage"`
	OriginalQty  float64              `json:"original_qty"`
	RemainingQty float64              `json:"remaining_qty"`
	EntryPrice   float64              `json:"entry_price"`
	LastPrice    float64              `json:"last_price"`
	Margin       float64              `json:"margin"`
	TakeProfits  []TakeProfitSnapshot `json:"take_profits,omitempty"`
	StopLoss     *StopLossSnapshot    `json:"stop_loss,omitempty"`
	RealizedPnl  float64              `json:"realized_pnl"`
	ClosedParts  []ClosedPart         `json:"closed_parts,omitempty"`
	Status       PositionStatus       `json:"status"`
	OpenedAt     time.Time            `json:"opened_at"`
	ClosedAt     *time.Time           `json:"closed_at,omitempty"`
	ClosePrice   float64              `json:"close_price,omitempty"`
}

// OrderResult is what the order gateway reports back for a filled reducing order.
type OrderResult struct {
	OrderID   string
	FillPrice float64 // 0 when the exchange did not report an average fill price
	Quantity  float64
}

// CloseReceipt summarizes one executed (partial) close, finalized at fill price.
type CloseReceipt struct {
	PositionID string
	Kind       ExecutionKind
	OrderID    string
	FillPrice  float64
	Quantity   float64
	Pnl        float64
	Final      bool
}

// ValidationError reports a rejected take-profit or stop-loss mutation.
// No state changes when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// ExecutionError wraps an order gateway failure with enough context to retry.
type ExecutionError struct {
	Symbol   string
	Side     Side
	Quantity float64
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("order execution failed: %s %s qty=%.8f: %v", e.Side, e.Symbol, e.Quantity, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// PersistenceError reports a store write that kept failing after retries. The
// in-memory position already reflects the close; the write is retried again
// on subsequent ticks until memory and store converge.
type PersistenceError struct {
	PositionID string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting position %s failed: %v", e.PositionID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
