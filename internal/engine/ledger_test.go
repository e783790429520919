package engine

import (
	"math"
	"testing"
	"testing/quick"
	"time"

	"github.com/betbot/paperbet/internal/domain"
	"github.com/betbot/paperbet/internal/strategy"
)

// TestExecuteDecision 落账：张数向下取整，手续费按张计
func TestExecuteDecision(t *testing.T) {
	st := NewStrategyState(fixedMin5())
	tick := tickAt(9.0, 60, 42)
	edge := 0.204
	dec := enter(domain.SideUp, 60, &edge)

	pos := executeDecision(st, tick, dec, domain.DefaultFeeRate, time.Now())

	// $10 / $0.60 = 16.67 → 16 张
	if pos.Contracts != 16 {
		t.Errorf("张数应该为 16，实际 %d", pos.Contracts)
	}
	// 60c 的单张费用 0.48 分 × 16 张 = $0.0768
	wantFee := domain.FeeCents(60) * 16 / 100
	if math.Abs(pos.Fee-wantFee) > 1e-9 {
		t.Errorf("手续费应该为 %.4f，实际 %.4f", wantFee, pos.Fee)
	}
	if st.Pending != pos {
		t.Error("仓位应该存入挂单槽")
	}
	if !st.TradedIn(tick.WindowID) {
		t.Error("窗口应该进入已下注集合")
	}
	if st.TotalWagered != 10 {
		t.Errorf("total_wagered 应该为 10，实际 %.2f", st.TotalWagered)
	}
	if pos.Strike != tick.StrikePrice || pos.Direction != domain.SideUp {
		t.Errorf("仓位字段错误: %+v", pos)
	}
}

// TestBetSizeScaling 加注变体：注额随 edge 单调不减，且截断在 [base, max]
func TestBetSizeScaling(t *testing.T) {
	d := &strategy.Descriptor{
		ID:               "s2_dynamic_scaled_wait3",
		Policy:           strategy.PolicyDynamicEdge,
		StartingBankroll: 1000,
		MinWaitMinutes:   3,
		MinEdge:          0.05,
		ScaleWithEdge:    true,
		BaseBetSize:      10,
		MaxBetSize:       50,
	}
	st := NewStrategyState(d)

	cases := []struct {
		edge float64
		want float64
	}{
		{0.05, 10}, // 10% 以下截断到 base
		{0.10, 10},
		{0.20, 30}, // 线性中点
		{0.30, 50},
		{0.40, 50}, // 30% 以上截断到 max
	}
	for _, c := range cases {
		edge := c.edge
		got := betSize(st, enter(domain.SideUp, 50, &edge))
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("edge=%.2f 的注额应该为 %.0f，实际 %.2f", c.edge, c.want, got)
		}
	}

	// 随机性质：单调 + 有界
	mono := func(a, b float64) bool {
		ea := math.Mod(math.Abs(a), 0.6)
		eb := math.Mod(math.Abs(b), 0.6)
		if ea > eb {
			ea, eb = eb, ea
		}
		ba := betSize(st, enter(domain.SideUp, 50, &ea))
		bb := betSize(st, enter(domain.SideUp, 50, &eb))
		return ba <= bb && ba >= 10 && bb <= 50
	}
	if err := quick.Check(mono, nil); err != nil {
		t.Errorf("注额缩放的单调有界性质不成立: %v", err)
	}
}

// TestSettleWin 赢单：利润 = 张数 − 注额 − 手续费，连胜 +1
func TestSettleWin(t *testing.T) {
	st := NewStrategyState(fixedMin5())
	tick := tickAt(9.0, 60, 42)
	edge := 0.204
	pos := executeDecision(st, tick, enter(domain.SideUp, 60, &edge), domain.DefaultFeeRate, time.Now())

	trade := settlePending(st, domain.SideUp, time.Now())
	if trade == nil || !trade.Won() {
		t.Fatal("应该结算为赢")
	}
	wantProfit := float64(pos.Contracts) - pos.BetSize - pos.Fee
	if math.Abs(trade.Profit-wantProfit) > 1e-9 {
		t.Errorf("利润应该为 %.4f，实际 %.4f", wantProfit, trade.Profit)
	}
	if math.Abs(st.Bankroll-(1000+wantProfit)) > 1e-9 {
		t.Errorf("资金应该为 %.4f，实际 %.4f", 1000+wantProfit, st.Bankroll)
	}
	if st.Wins != 1 || st.Losses != 0 || st.CurrentStreak != 1 || st.MaxWinStreak != 1 {
		t.Errorf("胜负/连胜计数错误: wins=%d losses=%d streak=%d", st.Wins, st.Losses, st.CurrentStreak)
	}
	if st.Pending != nil {
		t.Error("结算后挂单槽应该清空")
	}
	if len(st.History) != 1 || st.History[0].BankrollAfter != st.Bankroll {
		t.Error("历史记录错误")
	}
}

// TestSettleLoss 输单：利润 = −注额 − 手续费，连败 −1
func TestSettleLoss(t *testing.T) {
	st := NewStrategyState(fixedMin5())
	tick := tickAt(9.0, 60, 42)
	edge := 0.204
	pos := executeDecision(st, tick, enter(domain.SideUp, 60, &edge), domain.DefaultFeeRate, time.Now())

	trade := settlePending(st, domain.SideDown, time.Now())
	if trade == nil || trade.Won() {
		t.Fatal("应该结算为输")
	}
	wantProfit := -pos.BetSize - pos.Fee
	if math.Abs(trade.Profit-wantProfit) > 1e-9 {
		t.Errorf("利润应该为 %.4f，实际 %.4f", wantProfit, trade.Profit)
	}
	if st.Losses != 1 || st.CurrentStreak != -1 || st.MaxLossStreak != 1 {
		t.Errorf("连败计数错误: losses=%d streak=%d maxLoss=%d", st.Losses, st.CurrentStreak, st.MaxLossStreak)
	}
}

// TestStreakTransitions 连胜转连败（及反向）从 ±1 重新起算
func TestStreakTransitions(t *testing.T) {
	st := NewStrategyState(fixedMin5())
	results := []domain.Side{domain.SideUp, domain.SideUp, domain.SideDown, domain.SideDown, domain.SideDown, domain.SideUp}
	for i, outcome := range results {
		tick := tickAt(9.0, 60, 42)
		tick.WindowID = tick.WindowID + "-" + string(rune('a'+i))
		edge := 0.204
		executeDecision(st, tick, enter(domain.SideUp, 60, &edge), domain.DefaultFeeRate, time.Now())
		settlePending(st, outcome, time.Now())
	}
	if st.CurrentStreak != 1 {
		t.Errorf("最终连胜应该为 1，实际 %d", st.CurrentStreak)
	}
	if st.MaxWinStreak != 2 || st.MaxLossStreak != 3 {
		t.Errorf("最大连胜/连败应该为 2/3，实际 %d/%d", st.MaxWinStreak, st.MaxLossStreak)
	}
	if st.Wins+st.Losses != len(st.History) {
		t.Error("wins + losses 应该等于历史长度")
	}
}

// TestSettleWithoutPending 无挂单时结算为空操作
func TestSettleWithoutPending(t *testing.T) {
	st := NewStrategyState(fixedMin5())
	if trade := settlePending(st, domain.SideUp, time.Now()); trade != nil {
		t.Error("无挂单时不应该产生结算记录")
	}
	if st.Bankroll != 1000 || len(st.History) != 0 {
		t.Error("无挂单结算不应该改变任何状态")
	}
}
