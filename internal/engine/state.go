package engine

import (
	"github.com/betbot/paperbet/internal/domain"
	"github.com/betbot/paperbet/internal/strategy"
)

// StrategyState 单个策略的全部可变状态。
//
// 所有字段只由 Engine 在持锁状态下读写，策略之间互不共享。
// json tag 用于状态落盘（pkg/persistence）和重启恢复。
type StrategyState struct {
	Descriptor *strategy.Descriptor `json:"-"`

	Bankroll     float64               `json:"bankroll"`
	Pending      *domain.Position      `json:"pending_trade,omitempty"`
	History      []domain.SettledTrade `json:"trades"`
	Wins         int                   `json:"wins"`
	Losses       int                   `json:"losses"`
	TotalWagered float64               `json:"total_wagered"`
	TotalFees    float64               `json:"total_fees"`

	// 连胜为正、连败为负；Max* 只增不减
	CurrentStreak int `json:"current_streak"`
	MaxWinStreak  int `json:"max_win_streak"`
	MaxLossStreak int `json:"max_loss_streak"`

	// 已经下过注的窗口（保证每窗口最多一笔）
	TradedWindows map[string]bool `json:"traded_windows"`

	// 仅供观察，每个 tick 都会被覆盖，不参与任何判断
	LastSkipReason string `json:"last_skip_reason,omitempty"`
}

// NewStrategyState 按描述符初始化状态
func NewStrategyState(d *strategy.Descriptor) *StrategyState {
	return &StrategyState{
		Descriptor:    d,
		Bankroll:      d.StartingBankroll,
		History:       []domain.SettledTrade{},
		TradedWindows: make(map[string]bool),
	}
}

// TradedIn 该策略是否已在指定窗口下过注
func (s *StrategyState) TradedIn(windowID string) bool {
	return s.TradedWindows[windowID]
}

// Profit 累计盈亏（相对初始资金）
func (s *StrategyState) Profit() float64 {
	return s.Bankroll - s.Descriptor.StartingBankroll
}

// WinRate 胜率，无已结算交易时为 0
func (s *StrategyState) WinRate() float64 {
	total := s.Wins + s.Losses
	if total == 0 {
		return 0
	}
	return float64(s.Wins) / float64(total)
}

// ROI 投资回报率（盈亏 / 初始资金）
func (s *StrategyState) ROI() float64 {
	if s.Descriptor.StartingBankroll == 0 {
		return 0
	}
	return s.Profit() / s.Descriptor.StartingBankroll
}
