package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"trade-assistant-go/internal/models"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"
)

const (
	quoteAsset       = "USDT"
	streamCacheAge   = 10 * time.Second
	spotStreamURL    = "wss://stream.binance.com:9443"
	futuresStreamURL = "wss://fstream.binance.com"
)

// LiveExchange talks to Binance spot and USD-M futures through the official
// REST API, with a websocket last-price cache in front of the price lookup.
type LiveExchange struct {
	spot    *binance.Client
	futures *futures.Client

	spotStream    *priceStream
	futuresStream *priceStream

	logger *zap.SugaredLogger
}

// NewLiveExchange creates a live exchange client. When isTestnet is set, both
// clients are pointed at the Binance testnets.
func NewLiveExchange(apiKey, secretKey string, isTestnet bool, logger *zap.SugaredLogger) *LiveExchange {
	binance.UseTestnet = isTestnet
	futures.UseTestnet = isTestnet

	return &LiveExchange{
		spot:          binance.NewClient(apiKey, secretKey),
		futures:       futures.NewClient(apiKey, secretKey),
		spotStream:    newPriceStream(spotStreamURL, logger),
		futuresStream: newPriceStream(futuresStreamURL, logger),
		logger:        logger,
	}
}

// WatchSymbol subscribes the symbol to the streaming price cache so monitor
// ticks usually avoid a REST round trip.
func (e *LiveExchange) WatchSymbol(symbol string, market models.MarketType) {
	if market == models.Futures {
		e.futuresStream.Subscribe(symbol)
		return
	}
	e.spotStream.Subscribe(symbol)
}

// GetLastPrice returns the last-traded price, preferring the stream cache and
// falling back to REST when the cache is stale.
func (e *LiveExchange) GetLastPrice(ctx context.Context, symbol string, market models.MarketType) (float64, error) {
	stream := e.spotStream
	if market == models.Futures {
		stream = e.futuresStream
	}
	if price, ok := stream.Last(symbol, streamCacheAge); ok {
		return price, nil
	}

	if market == models.Futures {
		prices, err := e.futures.NewListPricesService().Symbol(symbol).Do(ctx)
		if err != nil {
			return 0, fmt.Errorf("futures price lookup for %s: %w", symbol, err)
		}
		if len(prices) == 0 {
			return 0, fmt.Errorf("futures price lookup for %s: empty response", symbol)
		}
		return strconv.ParseFloat(prices[0].Price, 64)
	}

	prices, err := e.spot.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("spot price lookup for %s: %w", symbol, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("spot price lookup for %s: empty response", symbol)
	}
	return strconv.ParseFloat(prices[0].Price, 64)
}

// PlaceReducingOrder places a market order on the side opposite the position.
// Futures orders are flagged reduce-only so they can never flip the position.
func (e *LiveExchange) PlaceReducingOrder(ctx context.Context, symbol string, side models.Side, quantity float64, market models.MarketType) (*models.OrderResult, error) {
	qty := strconv.FormatFloat(quantity, 'f', -1, 64)

	if market == models.Futures {
		res, err := e.futures.NewCreateOrderService().
			Symbol(symbol).
			Side(futures.SideType(side)).
			Type(futures.OrderTypeMarket).
			Quantity(qty).
			ReduceOnly(true).
			NewOrderResponseType(futures.NewOrderRespTypeRESULT).
			Do(ctx)
		if err != nil {
			return nil, err
		}

		fillPrice, _ := strconv.ParseFloat(res.AvgPrice, 64)
		filledQty, _ := strconv.ParseFloat(res.ExecutedQuantity, 64)
		if filledQty <= 0 {
			filledQty = quantity
		}
		return &models.OrderResult{
			OrderID:   strconv.FormatInt(res.OrderID, 10),
			FillPrice: fillPrice,
			Quantity:  filledQty,
		}, nil
	}

	res, err := e.spot.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideType(side)).
		Type(binance.OrderTypeMarket).
		Quantity(qty).
		NewOrderRespType(binance.NewOrderRespTypeFULL).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	return &models.OrderResult{
		OrderID:   strconv.FormatInt(res.OrderID, 10),
		FillPrice: averageFillPrice(res),
		Quantity:  parseFloatOr(res.ExecutedQuantity, quantity),
	}, nil
}

// averageFillPrice computes the quantity-weighted fill price from the fills
// of a FULL order response; zero when the exchange reported none.
func averageFillPrice(res *binance.CreateOrderResponse) float64 {
	var totalQty, totalQuote float64
	for _, fill := range res.Fills {
		p, errP := strconv.ParseFloat(fill.Price, 64)
		q, errQ := strconv.ParseFloat(fill.Quantity, 64)
		if errP != nil || errQ != nil {
			continue
		}
		totalQty += q
		totalQuote += p * q
	}
	if totalQty <= 0 {
		return 0
	}
	return totalQuote / totalQty
}

func parseFloatOr(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// AvailableBalance returns the free USDT balance for the given market.
func (e *LiveExchange) AvailableBalance(ctx context.Context, market models.MarketType) (float64, error) {
	if market == models.Futures {
		balances, err := e.futures.NewGetBalanceService().Do(ctx)
		if err != nil {
			return 0, fmt.Errorf("futures balance lookup: %w", err)
		}
		for _, b := range balances {
			if b.Asset == quoteAsset {
				return strconv.ParseFloat(b.AvailableBalance, 64)
			}
		}
		return 0, nil
	}

	account, err := e.spot.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("spot balance lookup: %w", err)
	}
	for _, b := range account.Balances {
		if b.Asset == quoteAsset {
			return strconv.ParseFloat(b.Free, 64)
		}
	}
	return 0, nil
}

// Close stops the price streams.
func (e *LiveExchange) Close() error {
	e.spotStream.Stop()
	e.futuresStream.Stop()
	return nil
}
