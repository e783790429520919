package domain

import (
	"fmt"
	"math"
	"time"
)

// WindowMinutes 单个市场窗口的时长（分钟）
const WindowMinutes = 15

// CountdownMinutes 倒计时口径：窗口内的"当前分钟"按 14 - mins_left 计算。
// 窗口虽然是 15 分钟，但第 0 分钟对应 mins_left=14，最后一分钟对应 mins_left<1。
const CountdownMinutes = 14

// SettleThresholdMinutes 结算触发阈值：mins_left 低于该值视为窗口收盘（最后30秒）
const SettleThresholdMinutes = 0.5

// Tick 一次市场观测（不可变值对象）
//
// 由 feed 层组装，引擎只读。StrikePrice 从 API 拿不到（恒为 0），
// 由 Window Tracker 在窗口首次出现时用当时的现货价补写。
type Tick struct {
	Timestamp   time.Time `json:"timestamp"`
	WindowID    string    `json:"window_id"` // 市场 slug，如 btc-updown-15m-1765985400
	MarketID    string    `json:"market_id"`
	Question    string    `json:"question,omitempty"`
	StrikePrice float64   `json:"strike_price"` // 0 = 尚未确立，由 tracker 补写
	MinsLeft    float64   `json:"mins_left"`    // 剩余分钟数（连续值，可为小数）
	AssetPrice  float64   `json:"btc_price"`    // 现货价（Kraken）

	// 两侧盘口（分，0-100；0 表示无可用报价）
	UpAsk   int `json:"yes_ask"`
	UpBid   int `json:"yes_bid"`
	DownAsk int `json:"no_ask"`
	DownBid int `json:"no_bid"`

	UpTokenID   string `json:"yes_token_id,omitempty"`
	DownTokenID string `json:"no_token_id,omitempty"`
}

// Validate 验证 tick 是否携带引擎必需的字段。
// 无效 tick 必须整体丢弃，不得推进任何策略状态。
func (t *Tick) Validate() error {
	if t == nil {
		return fmt.Errorf("tick 为空")
	}
	if t.WindowID == "" {
		return fmt.Errorf("tick 缺少 window_id")
	}
	if math.IsNaN(t.MinsLeft) || math.IsInf(t.MinsLeft, 0) {
		return fmt.Errorf("tick 缺少 mins_left")
	}
	if t.AssetPrice <= 0 {
		return fmt.Errorf("tick 现货价无效: %.2f", t.AssetPrice)
	}
	return nil
}

// CurrentMinute 窗口内已经过的"当前分钟"（整数截断）
func (t *Tick) CurrentMinute() int {
	return int(CountdownMinutes - t.MinsLeft)
}

// IsClosing 是否已进入结算区间（最后 30 秒）
func (t *Tick) IsClosing() bool {
	return t.MinsLeft < SettleThresholdMinutes
}

// AskFor 返回指定方向的卖一价（分）
func (t *Tick) AskFor(side Side) int {
	if side == SideUp {
		return t.UpAsk
	}
	return t.DownAsk
}

// FavoredSide 现货相对 strike 的方向：高于 strike 为 UP，否则 DOWN。
// 与结算规则一致：恰好相等按 DOWN 处理。
func (t *Tick) FavoredSide() Side {
	if t.AssetPrice > t.StrikePrice {
		return SideUp
	}
	return SideDown
}
