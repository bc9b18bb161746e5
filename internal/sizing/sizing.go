// Package sizing converts notional trade amounts into order quantities and
// margin requirements, and validates them against the available balance. It
// runs before a position is opened and is independent of the monitoring loop.
package sizing

import (
	"math"

	"trade-assistant-go/internal/models"
)

// DefaultMaxLeverage caps the leverage the calculator will ever suggest.
const DefaultMaxLeverage = 100

// Calculator performs pre-trade sizing and balance checks.
type Calculator struct {
	MaxLeverage int
}

// NewCalculator returns a Calculator with the default leverage cap.
func NewCalculator() *Calculator {
	return &Calculator{MaxLeverage: DefaultMaxLeverage}
}

// Sizing is the result of converting a notional amount at a price.
type Sizing struct {
	Quantity       float64
	Notional       float64
	RequiredMargin float64
	Leverage       int
	Market         models.MarketType
}

// Size converts a notional trade amount into order quantity and required
// margin. For spot the margin equals the notional; for futures it is the
// notional divided by leverage.
func (c *Calculator) Size(tradeAmountNotional, price float64, leverage int, market models.MarketType) (Sizing, error) {
	if tradeAmountNotional <= 0 {
		return Sizing{}, &models.ValidationError{Field: "trade_amount", Reason: "must be positive"}
	}
	if price <= 0 {
		return Sizing{}, &models.ValidationError{Field: "price", Reason: "must be positive"}
	}
	if market == models.Spot || leverage < 1 {
		leverage = 1
	}

	quantity := tradeAmountNotional / price
	required := tradeAmountNotional
	if market == models.Futures {
		required = tradeAmountNotional / float64(leverage)
	}

	return Sizing{
		Quantity:       quantity,
		Notional:       tradeAmountNotional,
		RequiredMargin: required,
		Leverage:       leverage,
		Market:         market,
	}, nil
}

// SizeFromMargin sizes a futures order from the margin the trader wants to
// commit: notional = margin * leverage.
func (c *Calculator) SizeFromMargin(margin, price float64, leverage int) (Sizing, error) {
	if leverage < 1 {
		leverage = 1
	}
	return c.Size(margin*float64(leverage), price, leverage, models.Futures)
}

// Suggestions carries the ways out of an insufficient balance.
type Suggestions struct {
	// MaxAffordableQty is the largest quantity the available balance covers at
	// the current price and leverage.
	MaxAffordableQty float64
	// SuggestedLeverage is the minimum leverage that makes the original order
	// affordable, capped at MaxLeverage. Zero when no leverage within the cap
	// helps, or for spot.
	SuggestedLeverage int
	// TopUpAmount is the absolute shortfall.
	TopUpAmount float64
	// AffordablePrice is the price at which the original quantity becomes
	// affordable. Spot only; zero for futures.
	AffordablePrice float64
}

// BalanceCheck is the outcome of checking a sizing against the available
// balance. Insufficient balance is a normal result, never an error.
type BalanceCheck struct {
	Sufficient  bool
	Required    float64
	Available   float64
	Shortage    float64
	Surplus     float64
	Suggestions *Suggestions
}

// CheckBalance validates a sizing against the available balance. A balance
// exactly equal to the requirement passes.
func (c *Calculator) CheckBalance(available float64, s Sizing) BalanceCheck {
	if available >= s.RequiredMargin {
		return BalanceCheck{
			Sufficient: true,
			Required:   s.RequiredMargin,
			Available:  available,
			Surplus:    available - s.RequiredMargin,
		}
	}

	sug := &Suggestions{
		TopUpAmount: s.RequiredMargin - available,
	}
	if s.Notional > 0 && available > 0 {
		sug.MaxAffordableQty = s.Quantity * (available / s.RequiredMargin)
	}
	switch s.Market {
	case models.Futures:
		if available > 0 {
			minLev := int(math.Ceil(s.Notional / available))
			maxLev := c.MaxLeverage
			if maxLev <= 0 {
				maxLev = DefaultMaxLeverage
			}
			if minLev <= maxLev {
				sug.SuggestedLeverage = minLev
			}
		}
	default:
		if s.Quantity > 0 {
			sug.AffordablePrice = available / s.Quantity
		}
	}

	return BalanceCheck{
		Required:    s.RequiredMargin,
		Available:   available,
		Shortage:    s.RequiredMargin - available,
		Suggestions: sug,
	}
}
