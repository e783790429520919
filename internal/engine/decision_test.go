package engine

import (
	"math"
	"strings"
	"testing"

	"github.com/betbot/paperbet/internal/domain"
	"github.com/betbot/paperbet/internal/strategy"
)

func fixedMin5() *strategy.Descriptor {
	return &strategy.Descriptor{
		ID:               "s1_fixed_min_5",
		Policy:           strategy.PolicyFixedMinute,
		StartingBankroll: 1000,
		BetSize:          10,
		TargetMinute:     5,
		TrueProbability:  0.804,
		MaxPriceCents:    76,
		MinEdge:          0.03,
	}
}

func tickAt(minsLeft float64, upAsk, downAsk int) *domain.Tick {
	return &domain.Tick{
		WindowID:    "btc-updown-15m-1765985400",
		StrikePrice: 90000,
		AssetPrice:  90150, // 高于 strike，现货方向为 UP
		MinsLeft:    minsLeft,
		UpAsk:       upAsk,
		UpBid:       upAsk - 2,
		DownAsk:     downAsk,
		DownBid:     downAsk - 2,
	}
}

// TestFixedMinuteEnters 固定分钟策略在目标分钟、edge 达标时入场
func TestFixedMinuteEnters(t *testing.T) {
	st := NewStrategyState(fixedMin5())
	// mins_left 9.0 → 当前第 5 分钟，UP 卖一 60c
	dec := Evaluate(st, tickAt(9.0, 60, 42), strategy.DefaultPersistenceTable())
	if !dec.Enter {
		t.Fatalf("应该入场，实际跳过: %s", dec.Reason)
	}
	if dec.Direction != domain.SideUp || dec.PriceCents != 60 {
		t.Errorf("应该买 UP @ 60c，实际 %s @ %dc", dec.Direction, dec.PriceCents)
	}
	if dec.Edge == nil || math.Abs(*dec.Edge-0.204) > 1e-9 {
		t.Errorf("edge 应该为 0.204，实际 %v", dec.Edge)
	}
}

// TestFixedMinuteOutsideWindow 目标分钟 ±0.5 之外一律等待
func TestFixedMinuteOutsideWindow(t *testing.T) {
	st := NewStrategyState(fixedMin5())
	table := strategy.DefaultPersistenceTable()
	for _, minsLeft := range []float64{14.0, 12.0, 9.6, 8.4, 3.0} {
		dec := Evaluate(st, tickAt(minsLeft, 60, 42), table)
		if dec.Enter {
			t.Errorf("mins_left=%.1f 不在入场窗内，不应该入场", minsLeft)
		}
	}
	// 边界：恰好 ±0.5 仍可入场
	for _, minsLeft := range []float64{9.5, 8.5} {
		dec := Evaluate(st, tickAt(minsLeft, 60, 42), table)
		if !dec.Enter {
			t.Errorf("mins_left=%.1f 在入场窗边界内，应该入场: %s", minsLeft, dec.Reason)
		}
	}
}

// TestFixedMinutePriceCap 超过价格上限（true_prob 的 95%）拒绝
func TestFixedMinutePriceCap(t *testing.T) {
	st := NewStrategyState(fixedMin5())
	dec := Evaluate(st, tickAt(9.0, 77, 25), strategy.DefaultPersistenceTable())
	if dec.Enter {
		t.Error("77c 超过 76c 上限，不应该入场")
	}
	if !strings.Contains(dec.Reason, "cap") {
		t.Errorf("跳过原因应该提到价格上限: %q", dec.Reason)
	}
}

// TestFixedMinuteMinEdge edge 低于 3% 拒绝
func TestFixedMinuteMinEdge(t *testing.T) {
	st := NewStrategyState(fixedMin5())
	// 0.804 - 0.78 = 0.024 < 0.03 —— 但 78c 先撞上 76c 的价格上限，
	// 用一个上限放宽的描述符单测 edge 分支
	d := fixedMin5()
	d.MaxPriceCents = 0
	st = NewStrategyState(d)
	dec := Evaluate(st, tickAt(9.0, 78, 25), strategy.DefaultPersistenceTable())
	if dec.Enter {
		t.Error("edge 2.4% 低于 3% 下限，不应该入场")
	}
}

// TestSharedPreconditions 挂单中 / 已下注窗口 / 无报价 / 已完全定价，短路跳过
func TestSharedPreconditions(t *testing.T) {
	table := strategy.DefaultPersistenceTable()

	st := NewStrategyState(fixedMin5())
	st.Pending = &domain.Position{WindowID: "other"}
	if dec := Evaluate(st, tickAt(9.0, 60, 42), table); dec.Enter {
		t.Error("已有挂单不应该再入场")
	}

	st = NewStrategyState(fixedMin5())
	st.TradedWindows["btc-updown-15m-1765985400"] = true
	if dec := Evaluate(st, tickAt(9.0, 60, 42), table); dec.Enter {
		t.Error("同一窗口不应该入场第二次")
	}

	st = NewStrategyState(fixedMin5())
	if dec := Evaluate(st, tickAt(9.0, 0, 42), table); dec.Enter {
		t.Error("UP 无报价不应该入场")
	}
	if dec := Evaluate(st, tickAt(9.0, 100, 0), table); dec.Enter {
		t.Error("100c 已完全定价，不应该入场")
	}
}

// TestDynamicEdgeWaiting 等待期未满时跳过，原因为 waiting
func TestDynamicEdgeWaiting(t *testing.T) {
	d := &strategy.Descriptor{
		ID:               "s2_dynamic_wait3_edge10",
		Policy:           strategy.PolicyDynamicEdge,
		StartingBankroll: 1000,
		BetSize:          10,
		MinWaitMinutes:   3,
		MinEdge:          0.10,
	}
	st := NewStrategyState(d)
	// mins_left=12.0 只过了 2 分钟，未满 3 分钟等待
	dec := Evaluate(st, tickAt(12.0, 55, 47), strategy.DefaultPersistenceTable())
	if dec.Enter {
		t.Fatal("等待期未满不应该入场")
	}
	if !strings.Contains(dec.Reason, "waiting") {
		t.Errorf("跳过原因应该为 waiting: %q", dec.Reason)
	}
}

// TestDynamicEdgeEnters 等待期满、查表 edge 达标即入场
func TestDynamicEdgeEnters(t *testing.T) {
	d := &strategy.Descriptor{
		ID:               "s2_dynamic_wait3_edge10",
		Policy:           strategy.PolicyDynamicEdge,
		StartingBankroll: 1000,
		BetSize:          10,
		MinWaitMinutes:   3,
		MinEdge:          0.10,
	}
	st := NewStrategyState(d)
	table := strategy.DefaultPersistenceTable()
	// mins_left=10.5 → 第 3 分钟，持续率 0.732，55c → edge 0.182
	dec := Evaluate(st, tickAt(10.5, 55, 47), table)
	if !dec.Enter {
		t.Fatalf("应该入场，实际跳过: %s", dec.Reason)
	}
	rate, _ := table.Rate(3)
	want := rate - 0.55
	if dec.Edge == nil || math.Abs(*dec.Edge-want) > 1e-9 {
		t.Errorf("edge 应该为 %.3f，实际 %v", want, dec.Edge)
	}
}

// TestDynamicEdgeClosingMinute 最后一分钟拒绝入场
func TestDynamicEdgeClosingMinute(t *testing.T) {
	d := &strategy.Descriptor{
		ID:               "s2_dynamic_wait2_edge5",
		Policy:           strategy.PolicyDynamicEdge,
		StartingBankroll: 1000,
		BetSize:          10,
		MinWaitMinutes:   2,
		MinEdge:          0.05,
	}
	st := NewStrategyState(d)
	dec := Evaluate(st, tickAt(0.8, 90, 12), strategy.DefaultPersistenceTable())
	if dec.Enter {
		t.Error("mins_left < 1 不应该入场")
	}
}

// TestDynamicEdgeInvalidMinute 第 0 分钟不查表：strike 刚确立，没有入场依据
func TestDynamicEdgeInvalidMinute(t *testing.T) {
	d := &strategy.Descriptor{
		ID:               "s2_dynamic_wait0_edge5",
		Policy:           strategy.PolicyDynamicEdge,
		StartingBankroll: 1000,
		BetSize:          10,
		MinWaitMinutes:   0,
		MinEdge:          0.05,
	}
	st := NewStrategyState(d)
	table := strategy.DefaultPersistenceTable()

	// mins_left=13.7 → 第 0 分钟。40c 对 0.560 的持续率 edge 有 0.16，
	// 但分钟不在 1-13 的有效段内，必须拒绝
	dec := Evaluate(st, tickAt(13.7, 40, 62), table)
	if dec.Enter {
		t.Fatal("第 0 分钟不应该入场")
	}
	if !strings.Contains(dec.Reason, "invalid minute") {
		t.Errorf("跳过原因应该为 invalid minute: %q", dec.Reason)
	}

	// 边界：mins_left=13.0 → 第 1 分钟，有效段起点，正常评估入场
	dec = Evaluate(st, tickAt(13.0, 40, 62), table)
	if !dec.Enter {
		t.Fatalf("第 1 分钟 edge 达标应该入场: %s", dec.Reason)
	}
}

func sentiment70() *strategy.Descriptor {
	return &strategy.Descriptor{
		ID:               "s3_sentiment_odds70_wait0",
		Policy:           strategy.PolicySentiment,
		StartingBankroll: 1000,
		BetSize:          10,
		OddsThreshold:    70,
		MinWaitMinutes:   0,
	}
}

// TestSentimentEnters 某侧卖一价达到阈值即跟单，不计算 edge
func TestSentimentEnters(t *testing.T) {
	st := NewStrategyState(sentiment70())
	dec := Evaluate(st, tickAt(8.0, 72, 30), strategy.DefaultPersistenceTable())
	if !dec.Enter {
		t.Fatalf("UP 72c >= 70c，应该入场: %s", dec.Reason)
	}
	if dec.Direction != domain.SideUp || dec.PriceCents != 72 {
		t.Errorf("应该买 UP @ 72c，实际 %s @ %dc", dec.Direction, dec.PriceCents)
	}
	if dec.Edge != nil {
		t.Errorf("sentiment 策略不计算 edge，实际 %v", *dec.Edge)
	}
}

// TestSentimentUpCheckedFirst 两侧同时达标时优先 UP
func TestSentimentUpCheckedFirst(t *testing.T) {
	st := NewStrategyState(sentiment70())
	dec := Evaluate(st, tickAt(8.0, 71, 70), strategy.DefaultPersistenceTable())
	if !dec.Enter || dec.Direction != domain.SideUp {
		t.Errorf("UP 先判定，应该买 UP，实际 %+v", dec)
	}
}

// TestSentimentRejections 阈值不达标 / 收盘前 30 秒 / 缺一侧报价，跳过
func TestSentimentRejections(t *testing.T) {
	table := strategy.DefaultPersistenceTable()
	st := NewStrategyState(sentiment70())
	if dec := Evaluate(st, tickAt(8.0, 65, 40), table); dec.Enter {
		t.Error("两侧都未达到 70c，不应该入场")
	}
	if dec := Evaluate(st, tickAt(0.4, 72, 30), table); dec.Enter {
		t.Error("收盘前 30 秒不应该入场")
	}
	if dec := Evaluate(st, tickAt(8.0, 72, 0), table); dec.Enter {
		t.Error("DOWN 无报价时不应该入场")
	}
	if dec := Evaluate(st, tickAt(8.0, 100, 5), table); dec.Enter {
		t.Error("100c 已完全定价，不应该入场")
	}
}
