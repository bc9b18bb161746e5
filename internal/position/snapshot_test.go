package position

import (
	"testing"
	"time"

	"trade-assistant-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTripPreservesState(t *testing.T) {
	pos := newBuyPosition(t, 1, 100)
	require.NoError(t, pos.AddTakeProfit(110, 40))
	require.NoError(t, pos.AddTakeProfit(120, 40))
	require.NoError(t, pos.SetStopLoss(95, true, 2, time.Now()))
	commitAll(t, pos, pos.Evaluate(110, time.Now()))

	restored, err := FromSnapshot(pos.Snapshot())
	require.NoError(t, err)

	assert.Equal(t, pos.ID, restored.ID)
	assert.InDelta(t, pos.RemainingQty, restored.RemainingQty, 1e-12)
	assert.InDelta(t, pos.RealizedPnl, restored.RealizedPnl, 1e-12)
	assert.Len(t, restored.TakeProfits, 2)
	assert.True(t, restored.TakeProfits[0].Hit)
	assert.True(t, restored.Stop.MovedToBreakeven)
	assert.Len(t, restored.ClosedParts, 1)

	// The restored aggregate knows a take-profit already ran, so the next
	// commit must not move the stop to break-even again.
	assert.True(t, restored.HasExecutedTakeProfit())
}

func TestFromSnapshotRejectsMalformed(t *testing.T) {
	base := func() *models.PositionSnapshot {
		return &models.PositionSnapshot{
			PositionID:   "p-1",
			Symbol:       "BTCUSDT",
			Side:         models.Buy,
			OriginalQty:  1,
			RemainingQty: 0.5,
			EntryPrice:   100,
			Status:       models.StatusOpen,
			OpenedAt:     time.Now(),
		}
	}

	_, err := FromSnapshot(nil)
	assert.Error(t, err)

	snap := base()
	snap.PositionID = ""
	_, err = FromSnapshot(snap)
	assert.Error(t, err)

	snap = base()
	snap.Side = "HOLD"
	_, err = FromSnapshot(snap)
	assert.Error(t, err)

	snap = base()
	snap.RemainingQty = 2
	_, err = FromSnapshot(snap)
	assert.Error(t, err, "remaining above original is corrupt")

	snap = base()
	snap.EntryPrice = 0
	_, err = FromSnapshot(snap)
	assert.Error(t, err)
}
