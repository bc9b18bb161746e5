package exchange

import (
	"context"

	"trade-assistant-go/internal/models"
)

// PriceSource supplies the last-traded price for a symbol on demand.
type PriceSource interface {
	GetLastPrice(ctx context.Context, symbol string, market models.MarketType) (float64, error)
}

// OrderGateway executes market orders that reduce an existing position and
// reports the fill.
type OrderGateway interface {
	PlaceReducingOrder(ctx context.Context, symbol string, side models.Side, quantity float64, market models.MarketType) (*models.OrderResult, error)
}

// Exchange bundles everything the assistant needs from a venue. Implemented
// by the live Binance client and by the paper exchange, so the engine can
// switch between real trading and dry runs.
type Exchange interface {
	PriceSource
	OrderGateway

	// AvailableBalance returns the free quote-asset (USDT) balance for the
	// given market.
	AvailableBalance(ctx context.Context, market models.MarketType) (float64, error)

	// Close shuts down background tasks such as price streams.
	Close() error
}
