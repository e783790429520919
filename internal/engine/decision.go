package engine

import (
	"fmt"
	"math"

	"github.com/betbot/paperbet/internal/domain"
	"github.com/betbot/paperbet/internal/strategy"
)

// Decision 决策引擎对"一个策略 × 一个 tick"的评估结果：
// 入场（方向 + 价格 + 可选 edge）或跳过（带原因）。
type Decision struct {
	Enter      bool        `json:"enter"`
	Direction  domain.Side `json:"direction,omitempty"`
	PriceCents int         `json:"price_cents,omitempty"`
	Edge       *float64    `json:"edge,omitempty"` // sentiment 策略不计算
	Reason     string      `json:"reason,omitempty"`
}

func enter(dir domain.Side, priceCents int, edge *float64) Decision {
	return Decision{Enter: true, Direction: dir, PriceCents: priceCents, Edge: edge}
}

func skip(format string, args ...interface{}) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// Evaluate 按策略变体分发评估。tick 已由 Window Tracker 补写过 strike。
//
// 共享前置条件（所有变体，按序短路）：
//  1. 已有挂单 → 跳过
//  2. 本窗口已下过注 → 跳过
//
// 方向/价格的确定方式因变体而异：fixed/dynamic 跟随现货方向，
// sentiment 跟随盘口共识。
func Evaluate(state *StrategyState, tick *domain.Tick, table *strategy.PersistenceTable) Decision {
	if state.Pending != nil {
		return skip("pending position open")
	}
	if state.TradedIn(tick.WindowID) {
		return skip("already traded this window")
	}

	switch state.Descriptor.Policy {
	case strategy.PolicyFixedMinute:
		return evaluateFixedMinute(state.Descriptor, tick)
	case strategy.PolicyDynamicEdge:
		return evaluateDynamicEdge(state.Descriptor, tick, table)
	case strategy.PolicySentiment:
		return evaluateSentiment(state.Descriptor, tick)
	}
	return skip("unknown policy %q", state.Descriptor.Policy)
}

// favoredEntry 共享前置条件第 3 步：现货高于 strike 买 UP，否则买 DOWN，
// 价格取该侧卖一价。无报价或已完全定价的盘口直接跳过。
func favoredEntry(tick *domain.Tick) (domain.Side, int, *Decision) {
	dir := tick.FavoredSide()
	ask := tick.AskFor(dir)
	if ask == 0 {
		d := skip("no liquidity (%s ask=0)", dir)
		return dir, 0, &d
	}
	if ask >= 100 {
		d := skip("%s at %dc, fully resolved", dir, ask)
		return dir, 0, &d
	}
	return dir, ask, nil
}

// evaluateFixedMinute 系列1：只在目标分钟 ±0.5 分钟的入场窗内下注。
// 目标分钟换算为剩余分钟（14 分钟倒计时口径）。
func evaluateFixedMinute(d *strategy.Descriptor, tick *domain.Tick) Decision {
	targetMinsLeft := float64(domain.CountdownMinutes - d.TargetMinute)
	if math.Abs(tick.MinsLeft-targetMinsLeft) > 0.5 {
		return skip("waiting for minute %d (%.1f min left)", d.TargetMinute, tick.MinsLeft)
	}

	dir, ask, skipped := favoredEntry(tick)
	if skipped != nil {
		return *skipped
	}
	if d.MaxPriceCents > 0 && ask > d.MaxPriceCents {
		return skip("%s at %dc, above cap %dc", dir, ask, d.MaxPriceCents)
	}
	edge := d.TrueProbability - float64(ask)/100
	if edge < d.MinEdge {
		return skip("edge %.1f%% below min %.1f%%", edge*100, d.MinEdge*100)
	}
	return enter(dir, ask, &edge)
}

// evaluateDynamicEdge 系列2：等满 min_wait 分钟后按当前分钟查持续率表，
// edge 达标即入场。最后一分钟不入场（mins_left >= 1）。
func evaluateDynamicEdge(d *strategy.Descriptor, tick *domain.Tick, table *strategy.PersistenceTable) Decision {
	if tick.MinsLeft > float64(domain.CountdownMinutes-d.MinWaitMinutes) {
		return skip("waiting (%d min wait, %.1f min left)", d.MinWaitMinutes, tick.MinsLeft)
	}
	if tick.MinsLeft < 1 {
		return skip("too close to settlement (%.1f min left)", tick.MinsLeft)
	}

	minute := tick.CurrentMinute()
	// 表的有效入场段是第 1-13 分钟：第 0 分钟刚定 strike，第 14 分钟在结算
	if minute < 1 || minute > 13 {
		return skip("invalid minute (%d)", minute)
	}
	rate, ok := table.Rate(minute)
	if !ok {
		return skip("no persistence data for minute %d", minute)
	}

	dir, ask, skipped := favoredEntry(tick)
	if skipped != nil {
		return *skipped
	}
	edge := rate - float64(ask)/100
	if edge < d.MinEdge {
		return skip("edge %.1f%% below min %.1f%%", edge*100, d.MinEdge*100)
	}
	return enter(dir, ask, &edge)
}

// evaluateSentiment 系列3：跟随盘口共识。先看 UP 再看 DOWN，
// 哪侧卖一价达到阈值就跟哪侧，不计算 edge。
func evaluateSentiment(d *strategy.Descriptor, tick *domain.Tick) Decision {
	if tick.MinsLeft > float64(domain.CountdownMinutes-d.MinWaitMinutes) {
		return skip("waiting (%d min wait, %.1f min left)", d.MinWaitMinutes, tick.MinsLeft)
	}
	if tick.MinsLeft < domain.SettleThresholdMinutes {
		return skip("too close to settlement (%.1f min left)", tick.MinsLeft)
	}
	if tick.UpAsk == 0 || tick.DownAsk == 0 {
		return skip("no liquidity (up=%dc, down=%dc)", tick.UpAsk, tick.DownAsk)
	}

	var dir domain.Side
	var ask int
	switch {
	case tick.UpAsk >= d.OddsThreshold:
		dir, ask = domain.SideUp, tick.UpAsk
	case tick.DownAsk >= d.OddsThreshold:
		dir, ask = domain.SideDown, tick.DownAsk
	default:
		return skip("neither side at %dc (up=%dc, down=%dc)", d.OddsThreshold, tick.UpAsk, tick.DownAsk)
	}
	if ask >= 100 {
		return skip("%s at %dc, fully resolved", dir, ask)
	}
	return enter(dir, ask, nil)
}
