package reporter

import (
	"strings"
	"testing"
	"time"

	"trade-assistant-go/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestOpenPositionsTable(t *testing.T) {
	assert.Equal(t, "no open positions", OpenPositionsTable(nil))

	later := &models.PositionSnapshot{
		PositionID:   "p-2",
		Symbol:       "ETHUSDT",
		Side:         models.Sell,
		Market:       models.Futures,
		OriginalQty:  2,
		RemainingQty: 2,
		EntryPrice:   3000,
		LastPrice:    2950,
		Status:       models.StatusOpen,
		OpenedAt:     time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC),
		StopLoss:     &models.StopLossSnapshot{Price: 3100, IsTrailing: true, TrailingDistancePercent: 2},
	}
	earlier := &models.PositionSnapshot{
		PositionID:   "p-1",
		Symbol:       "BTCUSDT",
		Side:         models.Buy,
		Market:       models.Spot,
		OriginalQty:  1,
		RemainingQty: 0.5,
		EntryPrice:   100,
		LastPrice:    112,
		Status:       models.StatusOpen,
		OpenedAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		TakeProfits: []models.TakeProfitSnapshot{
			{TargetPrice: 110, ClosePercentage: 50, Hit: true},
			{TargetPrice: 120, ClosePercentage: 50},
		},
		StopLoss: &models.StopLossSnapshot{Price: 100, MovedToBreakeven: true},
	}

	out := OpenPositionsTable([]*models.PositionSnapshot{later, earlier})

	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "ETHUSDT")
	assert.Contains(t, out, "1/2", "ladder progress")
	assert.Contains(t, out, "(BE)")
	assert.Contains(t, out, "(trail)")
	assert.Less(t, strings.Index(out, "BTCUSDT"), strings.Index(out, "ETHUSDT"), "rows ordered by open time")
}

func TestClosedPartsTable(t *testing.T) {
	assert.Equal(t, "no closes recorded", ClosedPartsTable(nil))
	assert.Equal(t, "no closes recorded", ClosedPartsTable(&models.PositionSnapshot{}))

	snap := &models.PositionSnapshot{
		PositionID: "p-1",
		ClosedParts: []models.ClosedPart{
			{Kind: models.ExecTakeProfit, Quantity: 0.5, Percentage: 50, Price: 110, Pnl: 5, OrderID: "ord-1", Timestamp: time.Now()},
			{Kind: models.ExecStopLoss, Quantity: 0.5, Percentage: 50, Price: 100, Pnl: 0, OrderID: "ord-2", Timestamp: time.Now()},
		},
	}

	out := ClosedPartsTable(snap)
	assert.Contains(t, out, "ord-1")
	assert.Contains(t, out, "ord-2")
	assert.Contains(t, out, "+5.0000")
	assert.Contains(t, out, "total")
}
