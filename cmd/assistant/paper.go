package main

import (
	"context"

	"trade-assistant-go/internal/exchange"
	"trade-assistant-go/internal/models"

	"github.com/joho/godotenv"
)

func godotenvLoad() error {
	return godotenv.Load()
}

// paperGateway simulates fills at the live last-traded price.
type paperGateway struct {
	live  *exchange.LiveExchange
	paper *exchange.PaperExchange
}

func (g paperGateway) PlaceReducingOrder(ctx context.Context, symbol string, side models.Side, quantity float64, market models.MarketType) (*models.OrderResult, error) {
	price, err := g.live.GetLastPrice(ctx, symbol, market)
	if err != nil {
		return nil, err
	}
	g.paper.SetPrice(symbol, price)
	return g.paper.PlaceReducingOrder(ctx, symbol, side, quantity, market)
}
