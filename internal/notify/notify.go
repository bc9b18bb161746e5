package notify

import (
	"trade-assistant-go/internal/models"
)

// Sink receives execution notifications. Delivery is fire-and-forget: a
// failing sink must never roll back or delay an already-persisted close, so
// implementations swallow their own errors.
type Sink interface {
	OnExecution(positionID string, kind models.ExecutionKind, receipt models.CloseReceipt)
}

// Multi fans one notification out to several sinks.
type Multi []Sink

func (m Multi) OnExecution(positionID string, kind models.ExecutionKind, receipt models.CloseReceipt) {
	for _, s := range m {
		s.OnExecution(positionID, kind, receipt)
	}
}
