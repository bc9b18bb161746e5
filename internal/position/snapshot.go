package position

import (
	"trade-assistant-go/internal/models"
)

// Snapshot renders the aggregate into its durable representation.
func (p *Position) Snapshot() *models.PositionSnapshot {
	snap := &models.PositionSnapshot{
		PositionID:   p.ID,
		Symbol:       p.Symbol,
		Side:         p.Side,
		Market:       p.Market,
		Leverage:     p.Leverage,
		OriginalQty:  p.OriginalQty,
		RemainingQty: p.RemainingQty,
		EntryPrice:   p.EntryPrice,
		LastPrice:    p.LastPrice,
		Margin:       p.Margin,
		RealizedPnl:  p.RealizedPnl,
		Status:       p.Status,
		OpenedAt:     p.OpenedAt,
		ClosedAt:     p.ClosedAt,
		ClosePrice:   p.ClosePrice,
	}

	for _, tp := range p.TakeProfits {
		snap.TakeProfits = append(snap.TakeProfits, models.TakeProfitSnapshot{
			TargetPrice:     tp.TargetPrice,
			ClosePercentage: tp.ClosePercentage,
			Hit:             tp.Hit,
			HitAt:           tp.HitAt,
		})
	}
	if p.Stop != nil {
		snap.StopLoss = &models.StopLossSnapshot{
			Price:                   p.Stop.Price,
			InitialPrice:            p.Stop.InitialPrice,
			IsTrailing:              p.Stop.IsTrailing,
			TrailingDistancePercent: p.Stop.TrailingDistancePercent,
			MovedToBreakeven:        p.Stop.MovedToBreakeven,
			LastUpdate:              p.Stop.LastUpdate,
		}
	}
	if len(p.ClosedParts) > 0 {
		snap.ClosedParts = make([]models.ClosedPart, len(p.ClosedParts))
		copy(snap.ClosedParts, p.ClosedParts)
	}

	return snap
}

// FromSnapshot rebuilds the aggregate from its durable representation. This
// is the explicit parse step at the store boundary; a malformed snapshot is
// rejected here rather than surfacing later as a runtime fault.
func FromSnapshot(snap *models.PositionSnapshot) (*Position, error) {
	if snap == nil {
		return nil, &models.ValidationError{Field: "snapshot", Reason: "must not be nil"}
	}
	if snap.PositionID == "" {
		return nil, &models.ValidationError{Field: "position_id", Reason: "must not be empty"}
	}
	if snap.Symbol == "" {
		return nil, &models.ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if snap.Side != models.Buy && snap.Side != models.Sell {
		return nil, &models.ValidationError{Field: "side", Reason: "must be BUY or SELL"}
	}
	if snap.OriginalQty <= 0 || snap.RemainingQty < 0 || snap.RemainingQty > snap.OriginalQty+models.QtyEpsilon {
		return nil, &models.ValidationError{Field: "quantity", Reason: "inconsistent original/remaining quantities"}
	}
	if snap.EntryPrice <= 0 {
		return nil, &models.ValidationError{Field: "entry_price", Reason: "must be positive"}
	}

	leverage := snap.Leverage
	if leverage < 1 {
		leverage = 1
	}

	p := &Position{
		ID:           snap.PositionID,
		Symbol:       snap.Symbol,
		Side:         snap.Side,
		Market:       snap.Market,
		Leverage:     leverage,
		OriginalQty:  snap.OriginalQty,
		RemainingQty: snap.RemainingQty,
		EntryPrice:   snap.EntryPrice,
		LastPrice:    snap.LastPrice,
		Margin:       snap.Margin,
		RealizedPnl:  snap.RealizedPnl,
		Status:       snap.Status,
		OpenedAt:     snap.OpenedAt,
		ClosedAt:     snap.ClosedAt,
		ClosePrice:   snap.ClosePrice,
	}
	if p.Status != models.StatusClosed {
		p.Status = models.StatusOpen
	}

	for _, tp := range snap.TakeProfits {
		level := &TakeProfitLevel{
			TargetPrice:     tp.TargetPrice,
			ClosePercentage: tp.ClosePercentage,
			Hit:             tp.Hit,
			HitAt:           tp.HitAt,
		}
		p.TakeProfits = append(p.TakeProfits, level)
		if tp.Hit {
			p.tpExecuted = true
		}
	}
	if snap.StopLoss != nil {
		p.Stop = &StopLoss{
			Price:                   snap.StopLoss.Price,
			InitialPrice:            snap.StopLoss.InitialPrice,
			IsTrailing:              snap.StopLoss.IsTrailing,
			TrailingDistancePercent: snap.StopLoss.TrailingDistancePercent,
			MovedToBreakeven:        snap.StopLoss.MovedToBreakeven,
			LastUpdate:              snap.StopLoss.LastUpdate,
		}
	}
	if len(snap.ClosedParts) > 0 {
		p.ClosedParts = make([]models.ClosedPart, len(snap.ClosedParts))
		copy(p.ClosedParts, snap.ClosedParts)
	}

	return p, nil
}
