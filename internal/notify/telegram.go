package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"trade-assistant-go/internal/models"

	"go.uber.org/zap"
)

// TelegramSink posts execution notifications to a Telegram chat through the
// Bot API. Best effort: failures are logged and dropped.
type TelegramSink struct {
	botToken string
	chatID   string
	client   *http.Client
	logger   *zap.SugaredLogger
}

// NewTelegramSink creates a Telegram-backed sink.
func NewTelegramSink(botToken, chatID string, logger *zap.SugaredLogger) *TelegramSink {
	return &TelegramSink{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

func (s *TelegramSink) OnExecution(positionID string, kind models.ExecutionKind, receipt models.CloseReceipt) {
	var label string
	switch kind {
	case models.ExecTakeProfit:
		label = "Take-profit hit"
	case models.ExecStopLoss:
		label = "Stop-loss hit"
	default:
		label = "Manual close"
	}

	text := fmt.Sprintf("%s\nPosition: %s\nQty: %.8f @ %.8f\nPnL: %.4f USDT",
		label, positionID, receipt.Quantity, receipt.FillPrice, receipt.Pnl)
	if receipt.Final {
		text += "\nPosition fully closed."
	}

	if err := s.send(text); err != nil {
		s.logger.Warnf("telegram notification failed: %v", err)
	}
}

func (s *TelegramSink) send(text string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id": s.chatID,
		"text":    text,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)
	resp, err := s.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
