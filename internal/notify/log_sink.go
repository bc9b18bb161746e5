package notify

import (
	"trade-assistant-go/internal/models"

	"go.uber.org/zap"
)

// LogSink writes execution notifications to the application log.
type LogSink struct {
	logger *zap.SugaredLogger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger *zap.SugaredLogger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) OnExecution(positionID string, kind models.ExecutionKind, receipt models.CloseReceipt) {
	s.logger.Infow("position execution",
		"position_id", positionID,
		"kind", string(kind),
		"order_id", receipt.OrderID,
		"fill_price", receipt.FillPrice,
		"quantity", receipt.Quantity,
		"pnl", receipt.Pnl,
		"final", receipt.Final,
	)
}
