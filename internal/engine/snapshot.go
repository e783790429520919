package engine

import (
	"time"

	"github.com/betbot/paperbet/internal/domain"
)

// SnapshotVersion 快照 schema 版本，字段变更时递增
const SnapshotVersion = 1

// StrategySnapshot 单个策略的只读统计视图
type StrategySnapshot struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Series      string `json:"series"`

	Trades       int     `json:"trades"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"win_rate"`
	Bankroll     float64 `json:"bankroll"`
	Profit       float64 `json:"profit"`
	ROI          float64 `json:"roi"`
	TotalWagered float64 `json:"total_wagered"`
	TotalFees    float64 `json:"total_fees"`

	CurrentStreak int `json:"current_streak"`
	MaxWinStreak  int `json:"max_win_streak"`
	MaxLossStreak int `json:"max_loss_streak"`

	HasPending     bool                  `json:"has_pending"`
	Pending        *domain.Position      `json:"pending_trade,omitempty"`
	History        []domain.SettledTrade `json:"history"`
	LastSkipReason string                `json:"last_skip_reason,omitempty"`

	// 展示用的配置子集
	Config StrategyConfigView `json:"config"`
}

// StrategyConfigView 快照里对外暴露的描述符字段
type StrategyConfigView struct {
	Policy           string  `json:"policy"`
	StartingBankroll float64 `json:"starting_bankroll"`
	BetSize          float64 `json:"bet_size,omitempty"`
	TargetMinute     int     `json:"target_minute,omitempty"`
	TrueProbability  float64 `json:"true_probability,omitempty"`
	MinEdge          float64 `json:"min_edge,omitempty"`
	MinWaitMinutes   int     `json:"min_wait_minutes,omitempty"`
	OddsThreshold    int     `json:"odds_threshold,omitempty"`
	ScaleWithEdge    bool    `json:"scale_with_edge,omitempty"`
}

// Snapshot 引擎的时点视图：带版本号和单调递增序号，
// 展示层只消费快照，绝不回写。
type Snapshot struct {
	Version          int                          `json:"version"`
	Seq              uint64                       `json:"seq"`
	Platform         string                       `json:"platform"`
	StartedAt        time.Time                    `json:"started_at"`
	LastUpdate       time.Time                    `json:"last_update"`
	UptimeSeconds    float64                      `json:"uptime_seconds"`
	TickCount        int64                        `json:"tick_count"`
	WindowsProcessed int                          `json:"windows_processed"`
	Strategies       map[string]*StrategySnapshot `json:"bots"`
	Order            []string                     `json:"order"` // catalog 顺序
}

// Snapshot 在锁内深拷贝全部状态，返回一致的只读视图。
// 对引擎状态无任何影响。
func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.snapshotSeq++

	snap := &Snapshot{
		Version:          SnapshotVersion,
		Seq:              e.snapshotSeq,
		Platform:         "polymarket",
		StartedAt:        e.startTime,
		LastUpdate:       now,
		UptimeSeconds:    now.Sub(e.startTime).Seconds(),
		TickCount:        e.tickCount,
		WindowsProcessed: e.windowsProcessed,
		Strategies:       make(map[string]*StrategySnapshot, len(e.states)),
		Order:            make([]string, 0, len(e.states)),
	}

	for _, st := range e.states {
		d := st.Descriptor
		s := &StrategySnapshot{
			ID:             d.ID,
			Name:           d.Name,
			Description:    d.Description,
			Series:         d.Series(),
			Trades:         len(st.History),
			Wins:           st.Wins,
			Losses:         st.Losses,
			WinRate:        st.WinRate(),
			Bankroll:       st.Bankroll,
			Profit:         st.Profit(),
			ROI:            st.ROI(),
			TotalWagered:   st.TotalWagered,
			TotalFees:      st.TotalFees,
			CurrentStreak:  st.CurrentStreak,
			MaxWinStreak:   st.MaxWinStreak,
			MaxLossStreak:  st.MaxLossStreak,
			HasPending:     st.Pending != nil,
			LastSkipReason: st.LastSkipReason,
			History:        make([]domain.SettledTrade, len(st.History)),
			Config: StrategyConfigView{
				Policy:           string(d.Policy),
				StartingBankroll: d.StartingBankroll,
				BetSize:          d.BetSize,
				TargetMinute:     d.TargetMinute,
				TrueProbability:  d.TrueProbability,
				MinEdge:          d.MinEdge,
				MinWaitMinutes:   d.MinWaitMinutes,
				OddsThreshold:    d.OddsThreshold,
				ScaleWithEdge:    d.ScaleWithEdge,
			},
		}
		copy(s.History, st.History)
		if st.Pending != nil {
			p := *st.Pending
			if st.Pending.Edge != nil {
				edge := *st.Pending.Edge
				p.Edge = &edge
			}
			s.Pending = &p
		}
		snap.Strategies[d.ID] = s
		snap.Order = append(snap.Order, d.ID)
	}
	return snap
}
