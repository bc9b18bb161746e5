package exchange

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	reconnectDelay   = 5 * time.Second
)

type streamedPrice struct {
	price float64
	at    time.Time
}

// priceStream keeps a last-traded-price cache fed by a combined aggTrade
// websocket stream. One instance per stream endpoint (spot / futures). The
// REST price lookup remains the source of truth when the cache is stale.
type priceStream struct {
	baseURL string
	logger  *zap.SugaredLogger

	mu      sync.RWMutex
	symbols map[string]struct{}
	prices  map[string]streamedPrice

	stopCh    chan struct{}
	restartCh chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

func newPriceStream(baseURL string, logger *zap.SugaredLogger) *priceStream {
	return &priceStream{
		baseURL:   baseURL,
		logger:    logger,
		symbols:   make(map[string]struct{}),
		prices:    make(map[string]streamedPrice),
		stopCh:    make(chan struct{}),
		restartCh: make(chan struct{}, 1),
	}
}

// Subscribe adds a symbol to the stream and forces a reconnect so the new
// combined-stream URL takes effect.
func (ps *priceStream) Subscribe(symbol string) {
	symbol = strings.ToUpper(symbol)

	ps.mu.Lock()
	_, known := ps.symbols[symbol]
	ps.symbols[symbol] = struct{}{}
	ps.mu.Unlock()

	if known {
		return
	}

	ps.startOnce.Do(func() { go ps.run() })

	select {
	case ps.restartCh <- struct{}{}:
	default:
	}
}

// Last returns the cached price for a symbol if it is younger than maxAge.
func (ps *priceStream) Last(symbol string, maxAge time.Duration) (float64, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	p, ok := ps.prices[strings.ToUpper(symbol)]
	if !ok || time.Since(p.at) > maxAge {
		return 0, false
	}
	return p.price, true
}

// Stop terminates the reconnect loop.
func (ps *priceStream) Stop() {
	ps.stopOnce.Do(func() { close(ps.stopCh) })
}

func (ps *priceStream) streamURL() string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	streams := make([]string, 0, len(ps.symbols))
	for s := range ps.symbols {
		streams = append(streams, strings.ToLower(s)+"@aggTrade")
	}
	if len(streams) == 0 {
		return ""
	}
	return fmt.Sprintf("%s/stream?streams=%s", ps.baseURL, strings.Join(streams, "/"))
}

// run is a daemon that keeps the websocket connected, reconnecting after any
// read error or subscription change.
func (ps *priceStream) run() {
	for {
		select {
		case <-ps.stopCh:
			return
		default:
		}

		url := ps.streamURL()
		if url == "" {
			select {
			case <-ps.restartCh:
			case <-ps.stopCh:
				return
			}
			continue
		}

		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			ps.logger.Warnf("price stream dial failed: %v, retrying in %s", err, reconnectDelay)
			select {
			case <-time.After(reconnectDelay):
			case <-ps.stopCh:
				return
			}
			continue
		}

		ps.logger.Infof("price stream connected: %s", url)
		if err := ps.consume(conn); err != nil {
			ps.logger.Warnf("price stream disconnected: %v", err)
		}
		conn.Close()

		select {
		case <-ps.stopCh:
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// consume reads trade messages from one established connection until it
// breaks, the stream is stopped, or the subscription set changes.
func (ps *priceStream) consume(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(streamPongWait))
		return nil
	})

	pingTicker := time.NewTicker(streamPingPeriod)
	defer pingTicker.Stop()

	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-pingTicker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-ps.restartCh:
				// Force a reconnect with the updated stream list.
				conn.Close()
				return
			case <-ps.stopCh:
				conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var envelope struct {
			Data struct {
				Symbol string      `json:"s"`
				Price  json.Number `json:"p"`
			} `json:"data"`
		}
		if err := json.Unmarshal(message, &envelope); err != nil {
			ps.logger.Debugf("unparseable stream message: %v", err)
			continue
		}

		price, err := envelope.Data.Price.Float64()
		if err != nil || price <= 0 || envelope.Data.Symbol == "" {
			continue
		}

		ps.mu.Lock()
		ps.prices[envelope.Data.Symbol] = streamedPrice{price: price, at: time.Now()}
		ps.mu.Unlock()
	}
}
