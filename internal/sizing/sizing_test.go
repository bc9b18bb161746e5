package sizing

import (
	"testing"

	"trade-assistant-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeSpotSufficientBalance(t *testing.T) {
	calc := NewCalculator()

	s, err := calc.Size(40.0, 111125.3, 1, models.Spot)
	require.NoError(t, err)
	assert.InDelta(t, 0.00035995, s.Quantity, 1e-8)
	assert.InDelta(t, 40.0, s.RequiredMargin, 1e-9)
	assert.Equal(t, 1, s.Leverage)

	check := calc.CheckBalance(64.6171418, s)
	assert.True(t, check.Sufficient)
	assert.InDelta(t, 24.6171418, check.Surplus, 1e-7)
	assert.Zero(t, check.Shortage)
	assert.Nil(t, check.Suggestions)
}

func TestCheckBalanceBoundaryEqualPasses(t *testing.T) {
	calc := NewCalculator()

	s, err := calc.Size(30.0, 50000, 1, models.Spot)
	require.NoError(t, err)

	check := calc.CheckBalance(30.0, s)
	assert.True(t, check.Sufficient, "exactly equal balance is enough")
	assert.Zero(t, check.Surplus)
}

func TestSizeFuturesFromMargin(t *testing.T) {
	calc := NewCalculator()

	s, err := calc.SizeFromMargin(10.0, 50000, 10)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, s.Notional, 1e-9)
	assert.InDelta(t, 0.002, s.Quantity, 1e-12)
	assert.InDelta(t, 10.0, s.RequiredMargin, 1e-9)

	check := calc.CheckBalance(5.0, s)
	require.False(t, check.Sufficient)
	assert.InDelta(t, 5.0, check.Shortage, 1e-9)
	require.NotNil(t, check.Suggestions)
	assert.InDelta(t, 0.001, check.Suggestions.MaxAffordableQty, 1e-12)
	assert.Equal(t, 20, check.Suggestions.SuggestedLeverage, "notional 100 over balance 5")
	assert.InDelta(t, 5.0, check.Suggestions.TopUpAmount, 1e-9)
	assert.Zero(t, check.Suggestions.AffordablePrice, "price suggestion is spot only")
}

func TestCheckBalanceSpotSuggestions(t *testing.T) {
	calc := NewCalculator()

	s, err := calc.Size(100.0, 50000, 1, models.Spot)
	require.NoError(t, err)

	check := calc.CheckBalance(60.0, s)
	require.False(t, check.Sufficient)
	require.NotNil(t, check.Suggestions)
	assert.InDelta(t, 0.0012, check.Suggestions.MaxAffordableQty, 1e-12)
	assert.InDelta(t, 30000.0, check.Suggestions.AffordablePrice, 1e-9)
	assert.Zero(t, check.Suggestions.SuggestedLeverage)
}

func TestSuggestedLeverageRespectsCap(t *testing.T) {
	calc := &Calculator{MaxLeverage: 10}

	s, err := calc.Size(1000.0, 50000, 1, models.Futures)
	require.NoError(t, err)

	// Balance 50 would need 20x, above the cap: no leverage suggestion.
	check := calc.CheckBalance(50.0, s)
	require.False(t, check.Sufficient)
	require.NotNil(t, check.Suggestions)
	assert.Zero(t, check.Suggestions.SuggestedLeverage)
	assert.InDelta(t, 950.0, check.Suggestions.TopUpAmount, 1e-9)
}

func TestSizeValidation(t *testing.T) {
	calc := NewCalculator()

	_, err := calc.Size(0, 100, 1, models.Spot)
	assert.Error(t, err)
	_, err = calc.Size(10, 0, 1, models.Spot)
	assert.Error(t, err)

	// Spot always normalizes to 1x regardless of the requested leverage.
	s, err := calc.Size(10, 100, 25, models.Spot)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Leverage)
	assert.InDelta(t, 10.0, s.RequiredMargin, 1e-9)
}
