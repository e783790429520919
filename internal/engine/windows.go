package engine

// windowTracker 记录每个窗口的 strike 与结算标记。
//
// strike 为窗口内首个 tick 的现货价，窗口存续期间不变。
// 不做过期淘汰：一次运行见到的窗口数量有限（每 15 分钟一个）。
type windowTracker struct {
	strikes map[string]float64
	settled map[string]bool
}

func newWindowTracker() *windowTracker {
	return &windowTracker{
		strikes: make(map[string]float64),
		settled: make(map[string]bool),
	}
}

// strikeFor 返回窗口的 strike；首次见到该窗口时用当前现货价确立。
// 返回值 isNew 表示是否刚确立。
func (w *windowTracker) strikeFor(windowID string, assetPrice float64) (strike float64, isNew bool) {
	if s, ok := w.strikes[windowID]; ok {
		return s, false
	}
	w.strikes[windowID] = assetPrice
	return assetPrice, true
}

// markSettled 原子性的 check-and-set：窗口未结算时标记并返回 true，
// 已结算返回 false。全局恰好一次结算靠它保证。
func (w *windowTracker) markSettled(windowID string) bool {
	if w.settled[windowID] {
		return false
	}
	w.settled[windowID] = true
	return true
}

// isSettled 窗口是否已结算
func (w *windowTracker) isSettled(windowID string) bool {
	return w.settled[windowID]
}
