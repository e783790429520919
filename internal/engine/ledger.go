package engine

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/betbot/paperbet/internal/domain"
)

// betSize 按描述符计算本笔注额。
//
// 加注变体随 edge 线性放大：10% edge 给 base，30%+ 给 max，区间外截断。
func betSize(state *StrategyState, dec Decision) float64 {
	d := state.Descriptor
	if !d.ScaleWithEdge || dec.Edge == nil {
		return d.BetSize
	}
	scale := (*dec.Edge - 0.10) / 0.20
	if scale < 0 {
		scale = 0
	}
	if scale > 1 {
		scale = 1
	}
	return d.BaseBetSize + scale*(d.MaxBetSize-d.BaseBetSize)
}

// executeDecision 将一个 Enter 决策落账为挂起仓位。
//
// 与 Evaluate 必须在同一把锁内连续执行：决策与落账之间不允许
// 插入同一策略的其它决策。副作用：挂单占位 + 窗口进入已下注集合，
// 该策略在结算前不再接受新入场。
func executeDecision(state *StrategyState, tick *domain.Tick, dec Decision, feeRate float64, now time.Time) *domain.Position {
	bet := betSize(state, dec)
	price := float64(dec.PriceCents) / 100.0
	contracts := int(math.Floor(bet / price))
	// 手续费按张数计：单张费用（分）× 张数，换算成 USDC
	fee := domain.FeeCentsWithRate(dec.PriceCents, feeRate) * float64(contracts) / 100.0

	pos := &domain.Position{
		ID:         uuid.NewString(),
		Timestamp:  now,
		WindowID:   tick.WindowID,
		MarketID:   tick.MarketID,
		Strike:     tick.StrikePrice,
		AssetPrice: tick.AssetPrice,
		MinsLeft:   tick.MinsLeft,
		Direction:  dec.Direction,
		EntryPrice: dec.PriceCents,
		Contracts:  contracts,
		BetSize:    bet,
		Fee:        fee,
		Edge:       dec.Edge,
	}

	state.Pending = pos
	state.TradedWindows[tick.WindowID] = true
	state.TotalWagered += bet
	return pos
}

// settlePending 用窗口结算结果了结挂单。无挂单时为空操作（防御）。
//
// 赢：每张合约付 $1，利润 = 张数 − 注额 − 手续费；
// 输：利润 = −注额 − 手续费。连胜/连败计数同步更新。
func settlePending(state *StrategyState, outcome domain.Side, now time.Time) *domain.SettledTrade {
	pos := state.Pending
	if pos == nil {
		return nil
	}

	won := pos.Direction == outcome
	var profit float64
	result := domain.TradeOutcomeLoss
	if won {
		profit = float64(pos.Contracts) - pos.BetSize - pos.Fee
		result = domain.TradeOutcomeWin
		state.Wins++
		if state.CurrentStreak < 0 {
			state.CurrentStreak = 0
		}
		state.CurrentStreak++
		if state.CurrentStreak > state.MaxWinStreak {
			state.MaxWinStreak = state.CurrentStreak
		}
	} else {
		profit = -pos.BetSize - pos.Fee
		state.Losses++
		if state.CurrentStreak > 0 {
			state.CurrentStreak = 0
		}
		state.CurrentStreak--
		if -state.CurrentStreak > state.MaxLossStreak {
			state.MaxLossStreak = -state.CurrentStreak
		}
	}

	state.Bankroll += profit
	state.TotalFees += pos.Fee

	trade := domain.SettledTrade{
		Position:      *pos,
		Outcome:       result,
		Profit:        profit,
		BankrollAfter: state.Bankroll,
		SettledAt:     now,
	}
	state.History = append(state.History, trade)
	state.Pending = nil
	return &trade
}
