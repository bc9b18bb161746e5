package position

import (
	"math"
	"time"

	"trade-assistant-go/internal/models"
)

// TakeProfitLevel is one rung of the take-profit ladder. ClosePercentage is
// relative to the position's original quantity.
type TakeProfitLevel struct {
	TargetPrice     float64
	ClosePercentage float64
	Hit             bool
	HitAt           *time.Time
}

// Position is the in-memory aggregate for one open trade. It is not safe for
// concurrent use; the registry serializes all access through its writer
// goroutine.
type Position struct {
	ID       string
	Symbol   string
	Side     models.Side
	Market   models.MarketType
	Leverage int

	OriginalQty  float64
	RemainingQty float64
	EntryPrice   float64
	LastPrice    float64
	Margin       float64

	TakeProfits []*TakeProfitLevel
	Stop        *StopLoss

	RealizedPnl float64
	ClosedParts []models.ClosedPart

	Status     models.PositionStatus
	OpenedAt   time.Time
	ClosedAt   *time.Time
	ClosePrice float64

	// tpExecuted flips when the first take-profit commit happens and gates
	// the one-time break-even move of the stop.
	tpExecuted bool
}

// OpenSpec carries the entry data of a freshly confirmed trade.
type OpenSpec struct {
	Symbol     string
	Side       models.Side
	Market     models.MarketType
	Leverage   int
	Quantity   float64
	EntryPrice float64
	Margin     float64 // derived from quantity/price/leverage when zero
}

// Open creates a new OPEN position from confirmed entry data.
func Open(spec OpenSpec, now time.Time) (*Position, error) {
	if spec.Symbol == "" {
		return nil, &models.ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if spec.Side != models.Buy && spec.Side != models.Sell {
		return nil, &models.ValidationError{Field: "side", Reason: "must be BUY or SELL"}
	}
	if spec.Quantity <= 0 {
		return nil, &models.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if spec.EntryPrice <= 0 {
		return nil, &models.ValidationError{Field: "entry_price", Reason: "must be positive"}
	}

	leverage := spec.Leverage
	if spec.Market == models.Spot || leverage < 1 {
		leverage = 1
	}

	margin := spec.Margin
	if margin <= 0 {
		notional := spec.Quantity * spec.EntryPrice
		if spec.Market == models.Futures {
			margin = notional / float64(leverage)
		} else {
			margin = notional
		}
	}

	return &Position{
		ID:           NewID(),
		Symbol:       spec.Symbol,
		Side:         spec.Side,
		Market:       spec.Market,
		Leverage:     leverage,
		OriginalQty:  spec.Quantity,
		RemainingQty: spec.Quantity,
		EntryPrice:   spec.EntryPrice,
		LastPrice:    spec.EntryPrice,
		Margin:       margin,
		Status:       models.StatusOpen,
		OpenedAt:     now,
	}, nil
}

// AddTakeProfit inserts a new ladder level. The target must lie on the profit
// side of the entry, and the close percentages of all not-yet-hit levels plus
// the new one must not exceed 100. The ladder stays ordered by distance from
// entry, closest first, ties broken by insertion order.
func (p *Position) AddTakeProfit(price, percentage float64) error {
	if percentage <= 0 || percentage > 100 {
		return &models.ValidationError{Field: "close_percentage", Reason: "must be in (0, 100]"}
	}
	if p.Side == models.Buy && price <= p.EntryPrice {
		return &models.ValidationError{Field: "target_price", Reason: "must be above entry price for a BUY position"}
	}
	if p.Side == models.Sell && price >= p.EntryPrice {
		return &models.ValidationError{Field: "target_price", Reason: "must be below entry price for a SELL position"}
	}
	if p.PendingTakeProfitPercent()+percentage > 100+models.QtyEpsilon {
		return &models.ValidationError{Field: "close_percentage", Reason: "pending close percentages would exceed 100"}
	}

	level := &TakeProfitLevel{TargetPrice: price, ClosePercentage: percentage}
	dist := math.Abs(price - p.EntryPrice)

	idx := len(p.TakeProfits)
	for i, existing := range p.TakeProfits {
		if math.Abs(existing.TargetPrice-p.EntryPrice) > dist {
			idx = i
			break
		}
	}
	p.TakeProfits = append(p.TakeProfits, nil)
	copy(p.TakeProfits[idx+1:], p.TakeProfits[idx:])
	p.TakeProfits[idx] = level
	return nil
}

// PendingTakeProfitPercent sums the close percentages of not-yet-hit levels.
func (p *Position) PendingTakeProfitPercent() float64 {
	var sum float64
	for _, tp := range p.TakeProfits {
		if !tp.Hit {
			sum += tp.ClosePercentage
		}
	}
	return sum
}

// SetStopLoss installs or replaces the position's single stop. The price must
// start on the loss side of the entry.
func (p *Position) SetStopLoss(price float64, isTrailing bool, trailingDistancePercent float64, now time.Time) error {
	if price <= 0 {
		return &models.ValidationError{Field: "stop_price", Reason: "must be positive"}
	}
	if p.Side == models.Buy && price >= p.EntryPrice {
		return &models.ValidationError{Field: "stop_price", Reason: "must be below entry price for a BUY position"}
	}
	if p.Side == models.Sell && price <= p.EntryPrice {
		return &models.ValidationError{Field: "stop_price", Reason: "must be above entry price for a SELL position"}
	}
	if isTrailing && trailingDistancePercent <= 0 {
		return &models.ValidationError{Field: "trailing_distance_percent", Reason: "must be positive for a trailing stop"}
	}

	p.Stop = &StopLoss{
		Price:                   price,
		InitialPrice:            price,
		IsTrailing:              isTrailing,
		TrailingDistancePercent: trailingDistancePercent,
		LastUpdate:              now,
	}
	return nil
}

// Trigger is a proposed execution detected by Evaluate. Nothing on the
// position is committed until the closing order succeeds and Commit is called
// with the trigger, so a failed order leaves the level un-hit and the same
// condition is re-checked against a fresh price next tick.
type Trigger struct {
	Kind       models.ExecutionKind
	LevelIndex int // ladder index, take-profit only
	Price      float64
	Percentage float64
	Quantity   float64
}

// Evaluate inspects the position against a new price and returns the triggers
// crossed in this tick, take-profit levels in ladder order first, then the
// stop. A price gap may cross several levels at once. The stop, if hit,
// supersedes any not-yet-applied take-profit since it closes the remainder.
func (p *Position) Evaluate(price float64, now time.Time) []Trigger {
	if p.Status == models.StatusClosed || price <= 0 {
		return nil
	}
	p.LastPrice = price

	var triggers []Trigger
	projected := p.RemainingQty

	for i, tp := range p.TakeProfits {
		if tp.Hit {
			continue
		}
		hit := (p.Side == models.Buy && price >= tp.TargetPrice) ||
			(p.Side == models.Sell && price <= tp.TargetPrice)
		if !hit {
			continue
		}
		qty := p.OriginalQty * tp.ClosePercentage / 100
		if qty > projected {
			qty = projected
		}
		if qty <= models.QtyEpsilon {
			continue
		}
		projected -= qty
		triggers = append(triggers, Trigger{
			Kind:       models.ExecTakeProfit,
			LevelIndex: i,
			Price:      price,
			Percentage: tp.ClosePercentage,
			Quantity:   qty,
		})
	}

	if p.Stop != nil {
		p.Stop.UpdateTrailing(price, p.Side, now)
		if p.Stop.IsHit(price, p.Side) && projected > models.QtyEpsilon {
			triggers = append(triggers, Trigger{
				Kind:     models.ExecStopLoss,
				Price:    price,
				Quantity: projected,
			})
		}
	}

	return triggers
}

// ManualCloseTrigger builds a manual partial-close trigger for a percentage of
// the remaining quantity. It goes through the same execution path as a
// ladder trigger.
func (p *Position) ManualCloseTrigger(percentage float64) (Trigger, error) {
	if p.Status == models.StatusClosed {
		return Trigger{}, &models.ValidationError{Field: "status", Reason: "position already closed"}
	}
	if percentage <= 0 || percentage > 100 {
		return Trigger{}, &models.ValidationError{Field: "percentage", Reason: "must be in (0, 100]"}
	}
	qty := p.RemainingQty * percentage / 100
	if qty <= models.QtyEpsilon {
		return Trigger{}, &models.ValidationError{Field: "quantity", Reason: "nothing left to close"}
	}
	return Trigger{
		Kind:       models.ExecManual,
		Price:      p.LastPrice,
		Percentage: percentage,
		Quantity:   qty,
	}, nil
}

// Commit applies a trigger after its closing order succeeded. fillPrice is
// the average fill reported by the gateway; zero falls back to the trigger
// price. For a stop-loss the entire remaining quantity is closed regardless
// of what the trigger proposed. Returns the recorded closed part.
func (p *Position) Commit(t Trigger, fillPrice float64, orderID string, now time.Time) (models.ClosedPart, error) {
	if p.Status == models.StatusClosed {
		return models.ClosedPart{}, &models.ValidationError{Field: "status", Reason: "position already closed"}
	}

	price := fillPrice
	if price <= 0 {
		price = t.Price
	}

	var qty float64
	switch t.Kind {
	case models.ExecTakeProfit:
		if t.LevelIndex < 0 || t.LevelIndex >= len(p.TakeProfits) {
			return models.ClosedPart{}, &models.ValidationError{Field: "level_index", Reason: "no such ladder level"}
		}
		level := p.TakeProfits[t.LevelIndex]
		if level.Hit {
			return models.ClosedPart{}, &models.ValidationError{Field: "level", Reason: "level already hit"}
		}
		qty = t.Quantity
		if qty > p.RemainingQty {
			qty = p.RemainingQty
		}
		hitAt := now
		level.Hit = true
		level.HitAt = &hitAt
	case models.ExecStopLoss:
		qty = p.RemainingQty
	default:
		qty = t.Quantity
		if qty > p.RemainingQty {
			qty = p.RemainingQty
		}
	}

	if qty <= models.QtyEpsilon {
		return models.ClosedPart{}, &models.ValidationError{Field: "quantity", Reason: "nothing left to close"}
	}

	var pnl float64
	if p.Side == models.Buy {
		pnl = (price - p.EntryPrice) * qty
	} else {
		pnl = (p.EntryPrice - price) * qty
	}

	// Margin is released proportionally to the share of the pre-close quantity.
	if p.RemainingQty > 0 {
		p.Margin -= p.Margin * (qty / p.RemainingQty)
	}

	p.RemainingQty -= qty
	p.RealizedPnl += pnl

	part := models.ClosedPart{
		Kind:       t.Kind,
		Percentage: qty / p.OriginalQty * 100,
		Price:      price,
		Quantity:   qty,
		Pnl:        pnl,
		OrderID:    orderID,
		Timestamp:  now,
	}
	p.ClosedParts = append(p.ClosedParts, part)

	if t.Kind == models.ExecTakeProfit && !p.tpExecuted {
		p.tpExecuted = true
		if p.Stop != nil {
			p.Stop.MoveToBreakeven(p.EntryPrice, now)
		}
	}

	if t.Kind == models.ExecStopLoss || p.RemainingQty <= models.QtyEpsilon {
		p.RemainingQty = 0
		p.Margin = 0
		p.Status = models.StatusClosed
		closedAt := now
		p.ClosedAt = &closedAt
		p.ClosePrice = price
	}

	return part, nil
}

// UnrealizedPnl marks the remaining quantity to the last seen price.
func (p *Position) UnrealizedPnl() float64 {
	if p.Status == models.StatusClosed || p.RemainingQty <= 0 {
		return 0
	}
	if p.Side == models.Buy {
		return (p.LastPrice - p.EntryPrice) * p.RemainingQty
	}
	return (p.EntryPrice - p.LastPrice) * p.RemainingQty
}

// HasExecutedTakeProfit reports whether any take-profit has been committed in
// this position's lifetime.
func (p *Position) HasExecutedTakeProfit() bool { return p.tpExecuted }
