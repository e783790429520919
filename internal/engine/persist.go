package engine

import (
	"time"

	"github.com/betbot/paperbet/internal/domain"
)

// PersistedState 可落盘的引擎状态。挂单原样保存，
// 重启后由下一次运行确定性地接管结算。
type PersistedState struct {
	SavedAt          time.Time                 `json:"saved_at"`
	TickCount        int64                     `json:"tick_count"`
	WindowsProcessed int                       `json:"windows_processed"`
	Strategies       map[string]*StrategyState `json:"strategies"`
	Strikes          map[string]float64        `json:"strikes"`
	SettledWindows   []string                  `json:"settled_windows"`
}

// ExportState 导出当前状态（锁内深拷贝），供 persistence 层落盘
func (e *Engine) ExportState() *PersistedState {
	e.mu.Lock()
	defer e.mu.Unlock()

	ps := &PersistedState{
		SavedAt:          e.now(),
		TickCount:        e.tickCount,
		WindowsProcessed: e.windowsProcessed,
		Strategies:       make(map[string]*StrategyState, len(e.states)),
		Strikes:          make(map[string]float64, len(e.tracker.strikes)),
	}
	for _, st := range e.states {
		cp := *st
		cp.History = append([]domain.SettledTrade{}, st.History...)
		cp.TradedWindows = make(map[string]bool, len(st.TradedWindows))
		for w := range st.TradedWindows {
			cp.TradedWindows[w] = true
		}
		if st.Pending != nil {
			p := *st.Pending
			cp.Pending = &p
		}
		ps.Strategies[st.Descriptor.ID] = &cp
	}
	for w, s := range e.tracker.strikes {
		ps.Strikes[w] = s
	}
	for w := range e.tracker.settled {
		ps.SettledWindows = append(ps.SettledWindows, w)
	}
	return ps
}

// ImportState 恢复上次运行保存的状态。目录里不存在的策略 ID 忽略，
// 新增的策略保持初始状态。
func (e *Engine) ImportState(ps *PersistedState) {
	if ps == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tickCount = ps.TickCount
	e.windowsProcessed = ps.WindowsProcessed
	for id, saved := range ps.Strategies {
		st, ok := e.byID[id]
		if !ok {
			continue
		}
		d := st.Descriptor
		*st = *saved
		st.Descriptor = d
		if st.TradedWindows == nil {
			st.TradedWindows = make(map[string]bool)
		}
	}
	for w, s := range ps.Strikes {
		e.tracker.strikes[w] = s
	}
	for _, w := range ps.SettledWindows {
		e.tracker.settled[w] = true
	}
}
