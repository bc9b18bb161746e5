package exchange

import (
	"context"
	"testing"

	"trade-assistant-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaperExchangeImplementsExchange(t *testing.T) {
	var _ Exchange = NewPaperExchange(1000, 0)
}

func TestPaperExchangePrices(t *testing.T) {
	e := NewPaperExchange(1000, 0)

	_, err := e.GetLastPrice(context.Background(), "BTCUSDT", models.Spot)
	assert.Error(t, err, "unknown symbol has no price")

	e.SetPrice("BTCUSDT", 50000)
	price, err := e.GetLastPrice(context.Background(), "BTCUSDT", models.Spot)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, price)
}

func TestPaperExchangeSlipsAgainstTheOrder(t *testing.T) {
	e := NewPaperExchange(1000, 0.001)
	e.SetPrice("BTCUSDT", 50000)

	sell, err := e.PlaceReducingOrder(context.Background(), "BTCUSDT", models.Sell, 0.5, models.Futures)
	require.NoError(t, err)
	assert.InDelta(t, 49950.0, sell.FillPrice, 1e-6, "a sell fills below the mark")
	assert.Equal(t, "paper-1", sell.OrderID)

	buy, err := e.PlaceReducingOrder(context.Background(), "BTCUSDT", models.Buy, 0.5, models.Futures)
	require.NoError(t, err)
	assert.InDelta(t, 50050.0, buy.FillPrice, 1e-6, "a buy fills above the mark")
	assert.Equal(t, "paper-2", buy.OrderID)

	require.Len(t, e.Orders, 2)
	assert.Equal(t, models.Sell, e.Orders[0].Side)

	_, err = e.PlaceReducingOrder(context.Background(), "ETHUSDT", models.Sell, 1, models.Spot)
	assert.Error(t, err)
}

func TestPaperExchangeBalance(t *testing.T) {
	e := NewPaperExchange(123.45, 0)
	bal, err := e.AvailableBalance(context.Background(), models.Futures)
	require.NoError(t, err)
	assert.Equal(t, 123.45, bal)
	assert.NoError(t, e.Close())
}
