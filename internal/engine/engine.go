package engine

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/paperbet/internal/domain"
	"github.com/betbot/paperbet/internal/strategy"
)

var log = logrus.WithField("component", "engine")

// Options 引擎构建参数
type Options struct {
	FeeRate float64          // 0 使用 domain.DefaultFeeRate
	Clock   func() time.Time // 测试注入用，默认 time.Now

	// OnSettle 每笔交易结算后的回调（归档用），在锁外调用
	OnSettle func(strategyID string, trade *domain.SettledTrade)
}

// Engine tick 驱动的策略评估与结算引擎。
//
// 所有状态由单把互斥锁保护；ProcessTick 是唯一的状态推进入口，
// tick 严格按到达顺序逐个处理。Snapshot 在锁内深拷贝，
// 对外只暴露一致的时点视图。
type Engine struct {
	mu sync.Mutex

	states   []*StrategyState // 稳定顺序（catalog 顺序）
	byID     map[string]*StrategyState
	table    *strategy.PersistenceTable
	tracker  *windowTracker
	feeRate  float64
	now      func() time.Time
	onSettle func(strategyID string, trade *domain.SettledTrade)

	startTime        time.Time
	lastTickAt       time.Time
	tickCount        int64
	windowsProcessed int
	snapshotSeq      uint64
}

// New 按策略目录构建引擎。描述符配置错误在这里 fail-fast，
// 绝不带病处理第一个 tick。
func New(catalog []*strategy.Descriptor, table *strategy.PersistenceTable, opts Options) (*Engine, error) {
	if len(catalog) == 0 {
		return nil, errors.New("策略目录为空")
	}
	if table == nil {
		return nil, errors.New("持续率表不能为空")
	}
	if opts.FeeRate == 0 {
		opts.FeeRate = domain.DefaultFeeRate
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	e := &Engine{
		byID:      make(map[string]*StrategyState, len(catalog)),
		table:     table,
		tracker:   newWindowTracker(),
		feeRate:   opts.FeeRate,
		now:       opts.Clock,
		onSettle:  opts.OnSettle,
		startTime: opts.Clock(),
	}
	for _, d := range catalog {
		if err := d.Validate(); err != nil {
			return nil, errors.Wrap(err, "策略目录配置无效")
		}
		if _, dup := e.byID[d.ID]; dup {
			return nil, errors.Errorf("策略 ID 重复: %s", d.ID)
		}
		st := NewStrategyState(d)
		e.states = append(e.states, st)
		e.byID[d.ID] = st
	}
	log.Infof("✅ 引擎就绪: %d 个策略, 费率 %.1f%%", len(e.states), e.feeRate*100)
	return e, nil
}

// ProcessTick 处理一个市场观测：补写 strike，逐策略评估并落账，
// 窗口收盘时触发恰好一次的全体结算。
//
// 无效 tick 整体丢弃并返回错误，不推进任何策略状态。
func (e *Engine) ProcessTick(tick *domain.Tick) error {
	if err := tick.Validate(); err != nil {
		return errors.Wrap(err, "tick 无效")
	}

	settled := e.process(tick)

	// 归档回调在锁外执行，慢速落盘不会挡住下一个 tick
	if e.onSettle != nil {
		for _, ev := range settled {
			e.onSettle(ev.strategyID, ev.trade)
		}
	}
	return nil
}

// settledEvent 一笔结算及其归属策略
type settledEvent struct {
	strategyID string
	trade      *domain.SettledTrade
}

func (e *Engine) process(tick *domain.Tick) []settledEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.tickCount++
	e.lastTickAt = now

	// Window Tracker：首见窗口用当前现货价确立 strike，
	// 之后所有 tick 都覆盖为已存的 strike（feed 给的值不可信）
	strike, isNew := e.tracker.strikeFor(tick.WindowID, tick.AssetPrice)
	tick.StrikePrice = strike
	if isNew {
		log.Infof("🆕 新窗口 %s: strike=%.2f, %.1f 分钟剩余", tick.WindowID, strike, tick.MinsLeft)
	}

	if tick.IsClosing() {
		return e.settleWindow(tick, now)
	}

	// 已结算窗口的迟到 tick（恢复状态后重放、乱序到达）不再评估入场
	if e.tracker.isSettled(tick.WindowID) {
		return nil
	}

	for _, st := range e.states {
		dec := Evaluate(st, tick, e.table)
		if !dec.Enter {
			st.LastSkipReason = dec.Reason
			continue
		}
		st.LastSkipReason = ""
		pos := executeDecision(st, tick, dec, e.feeRate, now)
		if pos.Edge != nil {
			log.Infof("💰 [%s] 入场 %s @ %dc, %d 张, 注 $%.2f (edge %.1f%%)",
				st.Descriptor.ID, pos.Direction, pos.EntryPrice, pos.Contracts, pos.BetSize, *pos.Edge*100)
		} else {
			log.Infof("💰 [%s] 入场 %s @ %dc, %d 张, 注 $%.2f",
				st.Descriptor.ID, pos.Direction, pos.EntryPrice, pos.Contracts, pos.BetSize)
		}
	}
	return nil
}

// settleWindow 结算一个收盘窗口。已结算窗口（重复收盘 tick）为空操作。
func (e *Engine) settleWindow(tick *domain.Tick, now time.Time) []settledEvent {
	if !e.tracker.markSettled(tick.WindowID) {
		return nil
	}

	outcome := domain.SideDown
	if tick.AssetPrice > tick.StrikePrice {
		outcome = domain.SideUp
	}
	log.Infof("🏁 窗口 %s 结算: %s (收盘 %.2f vs strike %.2f)",
		tick.WindowID, outcome, tick.AssetPrice, tick.StrikePrice)

	var settled []settledEvent
	for _, st := range e.states {
		if st.Pending == nil || st.Pending.WindowID != tick.WindowID {
			continue
		}
		trade := settlePending(st, outcome, now)
		settled = append(settled, settledEvent{strategyID: st.Descriptor.ID, trade: trade})
		if trade.Won() {
			log.Infof("✅ [%s] 赢 +$%.2f, 资金 $%.2f", st.Descriptor.ID, trade.Profit, st.Bankroll)
		} else {
			log.Infof("❌ [%s] 输 -$%.2f, 资金 $%.2f", st.Descriptor.ID, -trade.Profit, st.Bankroll)
		}
	}
	e.windowsProcessed++
	log.Infof("📊 窗口 %s 完成: %d 笔结算, 累计 %d 个窗口", tick.WindowID, len(settled), e.windowsProcessed)
	return settled
}

// StrategyIDs 目录顺序的策略 ID（展示层用）
func (e *Engine) StrategyIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, len(e.states))
	for i, st := range e.states {
		ids[i] = st.Descriptor.ID
	}
	return ids
}
