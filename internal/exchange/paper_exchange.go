package exchange

import (
	"context"
	"fmt"
	"sync"

	"trade-assistant-go/internal/models"
)

// PaperExchange simulates a venue in-process for dry runs. Prices are set
// from outside; reducing orders fill immediately at the current price with a
// configurable slippage applied against the trade.
type PaperExchange struct {
	mu           sync.Mutex
	prices       map[string]float64
	balance      float64
	slippageRate float64
	nextOrderID  int64

	// Orders records every fill for inspection.
	Orders []PaperOrder
}

// PaperOrder is one simulated fill.
type PaperOrder struct {
	OrderID   string
	Symbol    string
	Side      models.Side
	Quantity  float64
	FillPrice float64
	Market    models.MarketType
}

// NewPaperExchange creates a paper exchange with the given starting quote
// balance and slippage rate (e.g. 0.0005 for 5 bps).
func NewPaperExchange(balance, slippageRate float64) *PaperExchange {
	return &PaperExchange{
		prices:       make(map[string]float64),
		balance:      balance,
		slippageRate: slippageRate,
		nextOrderID:  1,
	}
}

// SetPrice feeds the simulated last-traded price for a symbol.
func (e *PaperExchange) SetPrice(symbol string, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prices[symbol] = price
}

// GetLastPrice returns the simulated price for a symbol.
func (e *PaperExchange) GetLastPrice(_ context.Context, symbol string, _ models.MarketType) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	price, ok := e.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no simulated price for %s", symbol)
	}
	return price, nil
}

// PlaceReducingOrder fills immediately at the current price, slipping against
// the order's side.
func (e *PaperExchange) PlaceReducingOrder(_ context.Context, symbol string, side models.Side, quantity float64, market models.MarketType) (*models.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	price, ok := e.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("no simulated price for %s", symbol)
	}

	fillPrice := price
	if side == models.Sell {
		fillPrice = price * (1 - e.slippageRate)
	} else {
		fillPrice = price * (1 + e.slippageRate)
	}

	order := PaperOrder{
		OrderID:   fmt.Sprintf("paper-%d", e.nextOrderID),
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		FillPrice: fillPrice,
		Market:    market,
	}
	e.nextOrderID++
	e.Orders = append(e.Orders, order)

	return &models.OrderResult{
		OrderID:   order.OrderID,
		FillPrice: fillPrice,
		Quantity:  quantity,
	}, nil
}

// AvailableBalance returns the simulated quote balance.
func (e *PaperExchange) AvailableBalance(_ context.Context, _ models.MarketType) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance, nil
}

// Close is a no-op for the paper exchange.
func (e *PaperExchange) Close() error { return nil }
