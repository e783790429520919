package domain

import (
	"time"
)

// Position 挂起中的模拟仓位（每个策略最多一笔）
//
// 由 Ledger.Execute 创建，Ledger.Settle 消费并清空。
type Position struct {
	ID         string    `json:"id"` // uuid
	Timestamp  time.Time `json:"timestamp"`
	WindowID   string    `json:"window_id"`
	MarketID   string    `json:"market_id,omitempty"`
	Strike     float64   `json:"strike"`
	AssetPrice float64   `json:"btc_price"` // 入场时现货价
	MinsLeft   float64   `json:"mins_left"` // 入场时剩余分钟
	Direction  Side      `json:"direction"`
	EntryPrice int       `json:"entry_price"` // 分
	Contracts  int       `json:"contracts"`
	BetSize    float64   `json:"bet_size"` // USDC
	Fee        float64   `json:"fee"`      // USDC（整笔仓位）
	Edge       *float64  `json:"edge,omitempty"` // sentiment 策略不计算 edge
}

// TradeOutcome 已结算交易的胜负
type TradeOutcome string

const (
	TradeOutcomeWin  TradeOutcome = "win"
	TradeOutcomeLoss TradeOutcome = "loss"
)

// SettledTrade 已结算交易：Position + 结算结果，入史后不可变
type SettledTrade struct {
	Position
	Outcome       TradeOutcome `json:"outcome"`
	Profit        float64      `json:"profit"`         // USDC（已扣手续费）
	BankrollAfter float64      `json:"bankroll_after"` // 结算后资金
	SettledAt     time.Time    `json:"settled_at"`
}

// Won 是否获胜
func (t *SettledTrade) Won() bool {
	return t.Outcome == TradeOutcomeWin
}
