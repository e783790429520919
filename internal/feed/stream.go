package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/betbot/paperbet/pkg/sigchan"
)

const wsMarketURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

// BookUpdate 一侧盘口的实时更新
type BookUpdate struct {
	TokenID  string
	AskCents int
	BidCents int
	At       time.Time
}

// Stream CLOB market 频道的 WebSocket 订阅，维护每个 token 的最优报价。
// 轮询间隙里 worker 可以用它拿到更新的盘口。连接断开自动重连。
type Stream struct {
	url     string
	assets  []string
	handler func(BookUpdate)

	mu      sync.RWMutex
	latest  map[string]BookUpdate
	updated *sigchan.Chan
}

// NewStream 创建订阅。handler 可以为 nil，只用 Latest 查询。
func NewStream(assetIDs []string, handler func(BookUpdate)) *Stream {
	return &Stream{
		url:     wsMarketURL,
		assets:  assetIDs,
		handler: handler,
		latest:  make(map[string]BookUpdate),
		updated: sigchan.New(1),
	}
}

// Updated 盘口更新信号，供调用方在 select 里等待
func (s *Stream) Updated() <-chan struct{} {
	return s.updated.C()
}

// Latest 某个 token 最近一次的盘口更新
func (s *Stream) Latest(tokenID string) (BookUpdate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.latest[tokenID]
	return u, ok
}

// Run 维持连接直到 ctx 取消。断线按固定间隔重连。
func (s *Stream) Run(ctx context.Context) error {
	for {
		if err := s.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warnf("⚠️ market ws 断开: %v, 3 秒后重连", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
}

func (s *Stream) runOnce(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return errors.Wrap(err, "连接失败")
	}
	defer conn.Close()

	sub := map[string]interface{}{
		"type":       "market",
		"assets_ids": s.assets,
	}
	if err := conn.WriteJSON(sub); err != nil {
		return errors.Wrap(err, "订阅失败")
	}
	log.Infof("✅ market ws 已订阅 %d 个 token", len(s.assets))

	// ctx 取消时关闭连接，打断 ReadMessage
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleMessage(raw)
	}
}

// wsBookMessage market 频道的 book / price_change 消息（取共同字段）
type wsBookMessage struct {
	EventType string      `json:"event_type"`
	AssetID   string      `json:"asset_id"`
	Bids      []bookLevel `json:"bids"`
	Asks      []bookLevel `json:"asks"`
}

func (s *Stream) handleMessage(raw []byte) {
	// 频道偶尔推数组，统一展开
	var batch []wsBookMessage
	if err := json.Unmarshal(raw, &batch); err != nil {
		var single wsBookMessage
		if err := json.Unmarshal(raw, &single); err != nil {
			return
		}
		batch = []wsBookMessage{single}
	}

	for _, msg := range batch {
		if msg.EventType != "book" || msg.AssetID == "" {
			continue
		}
		u := BookUpdate{TokenID: msg.AssetID, At: time.Now()}
		if len(msg.Asks) > 0 {
			u.AskCents = priceCents(msg.Asks[len(msg.Asks)-1].Price)
		}
		if len(msg.Bids) > 0 {
			u.BidCents = priceCents(msg.Bids[len(msg.Bids)-1].Price)
		}

		s.mu.Lock()
		s.latest[msg.AssetID] = u
		s.mu.Unlock()
		s.updated.Emit()

		if s.handler != nil {
			s.handler(u)
		}
	}
}
