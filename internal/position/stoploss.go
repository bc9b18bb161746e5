package position

import (
	"time"

	"trade-assistant-go/internal/models"
)

// StopLoss is the single stop level of a position, optionally trailing and
// promotable to break-even. The price only ever ratchets in the trade's
// favor; it never moves against it.
type StopLoss struct {
	Price                   float64
	InitialPrice            float64
	IsTrailing              bool
	TrailingDistancePercent float64
	MovedToBreakeven        bool
	LastUpdate              time.Time
}

// UpdateTrailing ratchets a trailing stop toward the current price and
// reports whether the stop moved. For a BUY position the stop only moves up,
// for a SELL only down.
func (s *StopLoss) UpdateTrailing(currentPrice float64, side models.Side, now time.Time) bool {
	if !s.IsTrailing || s.TrailingDistancePercent <= 0 {
		return false
	}

	var candidate float64
	if side == models.Buy {
		candidate = currentPrice * (1 - s.TrailingDistancePercent/100)
		if candidate <= s.Price {
			return false
		}
	} else {
		candidate = currentPrice * (1 + s.TrailingDistancePercent/100)
		if candidate >= s.Price {
			return false
		}
	}

	s.Price = candidate
	s.LastUpdate = now
	return true
}

// MoveToBreakeven relocates the stop to the entry price. Idempotent; once
// moved the flag never reverts.
func (s *StopLoss) MoveToBreakeven(entryPrice float64, now time.Time) {
	if s.MovedToBreakeven {
		return
	}
	s.Price = entryPrice
	s.MovedToBreakeven = true
	s.LastUpdate = now
}

// IsHit reports whether the current price has crossed the stop.
func (s *StopLoss) IsHit(currentPrice float64, side models.Side) bool {
	if side == models.Buy {
		return currentPrice <= s.Price
	}
	return currentPrice >= s.Price
}
