package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trade-assistant-go/internal/models"
	"trade-assistant-go/internal/position"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockGateway struct {
	mu     sync.Mutex
	orders []placedOrder
	fail   error
	result *models.OrderResult
}

type placedOrder struct {
	symbol   string
	side     models.Side
	quantity float64
	market   models.MarketType
}

func (m *mockGateway) PlaceReducingOrder(_ context.Context, symbol string, side models.Side, quantity float64, market models.MarketType) (*models.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	m.orders = append(m.orders, placedOrder{symbol: symbol, side: side, quantity: quantity, market: market})
	if m.result != nil {
		return m.result, nil
	}
	return &models.OrderResult{OrderID: "mock-1", Quantity: quantity}, nil
}

func (m *mockGateway) placed() []placedOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]placedOrder, len(m.orders))
	copy(out, m.orders)
	return out
}

type mockRepo struct {
	mu        sync.Mutex
	upserts   []*models.PositionSnapshot
	failCount int // first failCount upserts return an error
}

func (m *mockRepo) Upsert(snap *models.PositionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCount > 0 {
		m.failCount--
		return errors.New("store unavailable")
	}
	m.upserts = append(m.upserts, snap)
	return nil
}

func (m *mockRepo) Get(string) (*models.PositionSnapshot, error)  { return nil, nil }
func (m *mockRepo) ListOpen() ([]*models.PositionSnapshot, error) { return nil, nil }
func (m *mockRepo) Close() error                                  { return nil }

func (m *mockRepo) upsertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.upserts)
}

type mockSink struct {
	notified chan models.CloseReceipt
}

func (m *mockSink) OnExecution(_ string, _ models.ExecutionKind, receipt models.CloseReceipt) {
	m.notified <- receipt
}

func fastRetry() RetryPolicy {
	return RetryPolicy{Attempts: 3, MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func openTestPosition(t *testing.T) *position.Position {
	t.Helper()
	pos, err := position.Open(position.OpenSpec{
		Symbol:     "BTCUSDT",
		Side:       models.Buy,
		Market:     models.Futures,
		Leverage:   10,
		Quantity:   1,
		EntryPrice: 100,
	}, time.Now())
	require.NoError(t, err)
	return pos
}

func TestExecuteCommitsOnlyAfterOrderSucceeds(t *testing.T) {
	gw := &mockGateway{result: &models.OrderResult{OrderID: "ord-7", FillPrice: 110.3}}
	repo := &mockRepo{}
	sink := &mockSink{notified: make(chan models.CloseReceipt, 1)}
	x := New(gw, repo, sink, fastRetry(), zap.NewNop().Sugar())

	pos := openTestPosition(t)
	require.NoError(t, pos.AddTakeProfit(110, 50))
	triggers := pos.Evaluate(110.5, time.Now())
	require.Len(t, triggers, 1)

	receipt, err := x.Execute(context.Background(), pos, triggers[0])
	require.NoError(t, err)

	orders := gw.placed()
	require.Len(t, orders, 1)
	assert.Equal(t, models.Sell, orders[0].side, "a buy position closes with a sell")
	assert.InDelta(t, 0.5, orders[0].quantity, 1e-12)

	assert.Equal(t, "ord-7", receipt.OrderID)
	assert.InDelta(t, 110.3, receipt.FillPrice, 1e-9, "receipt is finalized at the fill, not the trigger price")
	assert.False(t, receipt.Final)
	assert.True(t, pos.TakeProfits[0].Hit)
	assert.Equal(t, 1, repo.upsertCount())

	select {
	case got := <-sink.notified:
		assert.Equal(t, receipt.OrderID, got.OrderID)
	case <-time.After(time.Second):
		t.Fatal("sink was never notified")
	}
}

func TestExecuteGatewayFailureLeavesTriggerPending(t *testing.T) {
	gw := &mockGateway{fail: errors.New("binance: -1021 timestamp out of recv window")}
	repo := &mockRepo{}
	x := New(gw, repo, nil, fastRetry(), zap.NewNop().Sugar())

	pos := openTestPosition(t)
	require.NoError(t, pos.AddTakeProfit(110, 50))
	triggers := pos.Evaluate(111, time.Now())
	require.Len(t, triggers, 1)

	receipt, err := x.Execute(context.Background(), pos, triggers[0])
	assert.Nil(t, receipt)

	var execErr *models.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "BTCUSDT", execErr.Symbol)

	// Nothing committed: the level is still live and fires again next tick.
	assert.False(t, pos.TakeProfits[0].Hit)
	assert.InDelta(t, 1.0, pos.RemainingQty, 1e-12)
	assert.Zero(t, repo.upsertCount())
	assert.Len(t, pos.ClosedParts, 0)

	again := pos.Evaluate(111, time.Now())
	assert.Len(t, again, 1)
}

func TestExecuteStopLossClosesRemainder(t *testing.T) {
	gw := &mockGateway{}
	repo := &mockRepo{}
	x := New(gw, repo, nil, fastRetry(), zap.NewNop().Sugar())

	pos := openTestPosition(t)
	require.NoError(t, pos.AddTakeProfit(110, 40))
	require.NoError(t, pos.SetStopLoss(95, false, 0, time.Now()))

	triggers := pos.Evaluate(110, time.Now())
	require.Len(t, triggers, 1)
	_, err := x.Execute(context.Background(), pos, triggers[0])
	require.NoError(t, err)
	require.InDelta(t, 0.6, pos.RemainingQty, 1e-12)

	// Break-even moved the stop to entry; the drop fires it for everything left.
	triggers = pos.Evaluate(99, time.Now())
	require.Len(t, triggers, 1)
	require.Equal(t, models.ExecStopLoss, triggers[0].Kind)

	receipt, err := x.Execute(context.Background(), pos, triggers[0])
	require.NoError(t, err)
	assert.True(t, receipt.Final)
	assert.Equal(t, models.StatusClosed, pos.Status)

	orders := gw.placed()
	require.Len(t, orders, 2)
	assert.InDelta(t, 0.6, orders[1].quantity, 1e-12)
}

func TestPersistRetriesThenRecovers(t *testing.T) {
	repo := &mockRepo{failCount: 2}
	x := New(&mockGateway{}, repo, nil, fastRetry(), zap.NewNop().Sugar())

	pos := openTestPosition(t)
	err := x.Persist(pos)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.upsertCount())
}

func TestPersistExhaustionReturnsPersistenceError(t *testing.T) {
	repo := &mockRepo{failCount: 100}
	x := New(&mockGateway{}, repo, nil, fastRetry(), zap.NewNop().Sugar())

	pos := openTestPosition(t)
	err := x.Persist(pos)

	var perr *models.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, pos.ID, perr.PositionID)
}

func TestExecuteSurfacesPersistenceFailureAfterCommit(t *testing.T) {
	repo := &mockRepo{failCount: 100}
	gw := &mockGateway{}
	x := New(gw, repo, nil, fastRetry(), zap.NewNop().Sugar())

	pos := openTestPosition(t)
	require.NoError(t, pos.AddTakeProfit(110, 50))
	triggers := pos.Evaluate(110, time.Now())
	require.Len(t, triggers, 1)

	receipt, err := x.Execute(context.Background(), pos, triggers[0])

	// The close happened on the exchange, so the commit stands even though the
	// store write failed; the caller keeps the position dirty and retries.
	var perr *models.PersistenceError
	require.ErrorAs(t, err, &perr)
	require.NotNil(t, receipt)
	assert.True(t, pos.TakeProfits[0].Hit)
}
