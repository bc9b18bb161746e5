// Package reporter renders human-readable status and session reports.
package reporter

import (
	"fmt"
	"sort"
	"time"

	"trade-assistant-go/internal/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// OpenPositionsTable renders the working set: one row per position with its
// remaining size, ladder progress and mark-to-market PnL.
func OpenPositionsTable(snaps []*models.PositionSnapshot) string {
	if len(snaps) == 0 {
		return "no open positions"
	}

	sorted := make([]*models.PositionSnapshot, len(snaps))
	copy(sorted, snaps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OpenedAt.Before(sorted[j].OpenedAt) })

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Symbol", "Side", "Market", "Entry", "Last", "Remaining", "TP hit", "Stop", "Realized", "Unrealized"})

	for _, s := range sorted {
		var hit, total int
		for _, tp := range s.TakeProfits {
			total++
			if tp.Hit {
				hit++
			}
		}

		stop := "-"
		if s.StopLoss != nil {
			stop = fmt.Sprintf("%.8g", s.StopLoss.Price)
			if s.StopLoss.MovedToBreakeven {
				stop += " (BE)"
			} else if s.StopLoss.IsTrailing {
				stop += " (trail)"
			}
		}

		t.AppendRow(table.Row{
			s.PositionID,
			s.Symbol,
			string(s.Side),
			string(s.Market),
			fmt.Sprintf("%.8g", s.EntryPrice),
			fmt.Sprintf("%.8g", s.LastPrice),
			fmt.Sprintf("%.8g", s.RemainingQty),
			fmt.Sprintf("%d/%d", hit, total),
			stop,
			fmt.Sprintf("%+.4f", s.RealizedPnl),
			fmt.Sprintf("%+.4f", unrealized(s)),
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Realized", Align: text.AlignRight},
		{Name: "Unrealized", Align: text.AlignRight},
	})

	return t.Render()
}

// ClosedPartsTable renders the close audit log of one position.
func ClosedPartsTable(snap *models.PositionSnapshot) string {
	if snap == nil || len(snap.ClosedParts) == 0 {
		return "no closes recorded"
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Time", "Kind", "Qty", "%", "Price", "PnL", "Order"})

	var totalPnl float64
	for _, part := range snap.ClosedParts {
		totalPnl += part.Pnl
		t.AppendRow(table.Row{
			part.Timestamp.Format(time.RFC3339),
			string(part.Kind),
			fmt.Sprintf("%.8g", part.Quantity),
			fmt.Sprintf("%.2f", part.Percentage),
			fmt.Sprintf("%.8g", part.Price),
			fmt.Sprintf("%+.4f", part.Pnl),
			part.OrderID,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "total", fmt.Sprintf("%+.4f", totalPnl), ""})

	return t.Render()
}

func unrealized(s *models.PositionSnapshot) float64 {
	if s.Status == models.StatusClosed || s.RemainingQty <= 0 {
		return 0
	}
	if s.Side == models.Buy {
		return (s.LastPrice - s.EntryPrice) * s.RemainingQty
	}
	return (s.EntryPrice - s.LastPrice) * s.RemainingQty
}
