// Package stream maintains a websocket subscription to a venue-gateway quote
// channel and caches the latest top of book per symbol.
package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

type Quote struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
	At  time.Time
}

type Feed struct {
	url            string
	reconnectDelay time.Duration
	log            *zap.Logger

	mu     sync.RWMutex
	quotes map[string]Quote
	cancel context.CancelFunc
}

func New(url string, reconnectDelay time.Duration, log *zap.Logger) *Feed {
	return &Feed{
		url:            url,
		reconnectDelay: reconnectDelay,
		log:            log,
		quotes:         make(map[string]Quote),
	}
}

// Start launches the read loop. Safe to call once; Stop tears it down.
func (f *Feed) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()
	go f.run(runCtx)
}

func (f *Feed) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Quote returns the last streamed top of book for symbol.
func (f *Feed) Quote(symbol string) (Quote, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	quote, ok := f.quotes[symbol]
	return quote, ok
}

func (f *Feed) run(ctx context.Context) {
	for {
		if err := f.readOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			if f.log != nil {
				f.log.Warn("quote stream interrupted", zap.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.reconnectDelay):
		}
	}
}

func (f *Feed) readOnce(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	sub, err := json.Marshal(map[string]string{"op": "subscribe", "channel": "bbo"})
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, sub); err != nil {
		return err
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		f.handle(data)
	}
}

func (f *Feed) handle(data []byte) {
	var msg struct {
		Channel string `json:"channel"`
		Symbol  string `json:"symbol"`
		Bid     string `json:"bid"`
		Ask     string `json:"ask"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Channel != "" && msg.Channel != "bbo" {
		return
	}
	if msg.Symbol == "" || msg.Bid == "" || msg.Ask == "" {
		return
	}
	bid, err := decimal.NewFromString(msg.Bid)
	if err != nil {
		return
	}
	ask, err := decimal.NewFromString(msg.Ask)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.quotes[msg.Symbol] = Quote{Bid: bid, Ask: ask, At: time.Now().UTC()}
	f.mu.Unlock()
}
