package persistence

import (
	"testing"
	"time"

	"trade-assistant-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) PositionRepository {
	t.Helper()
	repo, err := NewBadgerRepository(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func snapFixture(id string, status models.PositionStatus) *models.PositionSnapshot {
	return &models.PositionSnapshot{
		PositionID:   id,
		Symbol:       "BTCUSDT",
		Side:         models.Buy,
		Market:       models.Futures,
		Leverage:     10,
		OriginalQty:  1,
		RemainingQty: 0.5,
		EntryPrice:   100,
		LastPrice:    105,
		Margin:       5,
		RealizedPnl:  2.5,
		Status:       status,
		OpenedAt:     time.Now().UTC(),
		TakeProfits: []models.TakeProfitSnapshot{
			{TargetPrice: 110, ClosePercentage: 50, Hit: true},
			{TargetPrice: 120, ClosePercentage: 50},
		},
		StopLoss: &models.StopLossSnapshot{Price: 100, InitialPrice: 95, MovedToBreakeven: true},
	}
}

func TestUpsertAndGetRoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	want := snapFixture("pos-1", models.StatusOpen)
	require.NoError(t, repo.Upsert(want))

	got, err := repo.Get("pos-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.PositionID, got.PositionID)
	assert.Equal(t, want.RemainingQty, got.RemainingQty)
	require.Len(t, got.TakeProfits, 2)
	assert.True(t, got.TakeProfits[0].Hit)
	require.NotNil(t, got.StopLoss)
	assert.True(t, got.StopLoss.MovedToBreakeven)
}

func TestGetUnknownReturnsNilNil(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.Get("missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestUpsertIsIdempotentReplace(t *testing.T) {
	repo := newTestRepo(t)

	snap := snapFixture("pos-1", models.StatusOpen)
	require.NoError(t, repo.Upsert(snap))

	snap.RemainingQty = 0
	snap.Status = models.StatusClosed
	require.NoError(t, repo.Upsert(snap))
	require.NoError(t, repo.Upsert(snap)) // replaying the same write is harmless

	got, err := repo.Get("pos-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusClosed, got.Status)
	assert.Zero(t, got.RemainingQty)
}

func TestUpsertRejectsMissingID(t *testing.T) {
	repo := newTestRepo(t)
	assert.Error(t, repo.Upsert(nil))
	assert.Error(t, repo.Upsert(&models.PositionSnapshot{}))
}

func TestListOpenFiltersClosed(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.Upsert(snapFixture("open-1", models.StatusOpen)))
	require.NoError(t, repo.Upsert(snapFixture("open-2", models.StatusOpen)))
	require.NoError(t, repo.Upsert(snapFixture("closed-1", models.StatusClosed)))

	open, err := repo.ListOpen()
	require.NoError(t, err)
	require.Len(t, open, 2)
	for _, snap := range open {
		assert.Equal(t, models.StatusOpen, snap.Status)
	}
}
