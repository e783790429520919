package strategy

import "fmt"

// PolicyKind 入场策略变体（封闭集合，引擎按 tag 分发，绝不按 ID 前缀猜）
type PolicyKind string

const (
	// PolicyFixedMinute 系列1：只在固定的某一分钟入场
	PolicyFixedMinute PolicyKind = "fixed_minute"
	// PolicyDynamicEdge 系列2：等待 N 分钟后，edge 达标即入场（按分钟查持续率表）
	PolicyDynamicEdge PolicyKind = "dynamic_edge"
	// PolicySentiment 系列3：跟随市场共识，某一侧报价达到阈值即入场
	PolicySentiment PolicyKind = "sentiment"
)

// Descriptor 策略描述符：纯参数、启动时构建、永不修改。
//
// 行为全部在 engine 的 Decision Engine 里，描述符只携带参数，
// 这样 100+ 个策略可以由 catalog 组合展开生成而不需要生成代码。
type Descriptor struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Policy      PolicyKind `json:"policy" yaml:"policy"`

	StartingBankroll float64 `json:"starting_bankroll" yaml:"starting_bankroll"`
	BetSize          float64 `json:"bet_size" yaml:"bet_size"`

	// fixed_minute 专用
	TargetMinute    int     `json:"target_minute,omitempty" yaml:"target_minute,omitempty"`
	TrueProbability float64 `json:"true_probability,omitempty" yaml:"true_probability,omitempty"`
	// MaxPriceCents 价格上限（分）。在 catalog 构建时按 true_probability * 95% 一次性算好，
	// 决策时只做比较。0 表示不限制。
	MaxPriceCents int `json:"max_price_cents,omitempty" yaml:"max_price_cents,omitempty"`

	// fixed_minute / dynamic_edge 共用
	MinEdge float64 `json:"min_edge,omitempty" yaml:"min_edge,omitempty"`

	// dynamic_edge / sentiment 共用
	MinWaitMinutes int `json:"min_wait_minutes,omitempty" yaml:"min_wait_minutes,omitempty"`

	// dynamic_edge 加注变体：bet = base + clamp((edge-0.10)/0.20, 0, 1) * (max-base)
	ScaleWithEdge bool    `json:"scale_with_edge,omitempty" yaml:"scale_with_edge,omitempty"`
	BaseBetSize   float64 `json:"base_bet_size,omitempty" yaml:"base_bet_size,omitempty"`
	MaxBetSize    float64 `json:"max_bet_size,omitempty" yaml:"max_bet_size,omitempty"`

	// sentiment 专用：某一侧 ask >= 该值（分）才入场
	OddsThreshold int `json:"odds_threshold,omitempty" yaml:"odds_threshold,omitempty"`
}

// Validate 验证描述符参数。catalog 构建完成后对全表调用一次，
// 配置错误必须在处理第一个 tick 之前 fail-fast。
func (d *Descriptor) Validate() error {
	if d == nil {
		return fmt.Errorf("descriptor 不能为空")
	}
	if d.ID == "" {
		return fmt.Errorf("策略 ID 不能为空")
	}
	if d.StartingBankroll <= 0 {
		return fmt.Errorf("策略 %s: starting_bankroll 必须 > 0", d.ID)
	}
	switch d.Policy {
	case PolicyFixedMinute:
		if d.TargetMinute < 1 || d.TargetMinute > 13 {
			return fmt.Errorf("策略 %s: target_minute 必须在 1-13 之间", d.ID)
		}
		if d.TrueProbability <= 0 || d.TrueProbability > 1 {
			return fmt.Errorf("策略 %s: true_probability 必须在 (0,1] 之间", d.ID)
		}
		if d.BetSize <= 0 {
			return fmt.Errorf("策略 %s: bet_size 必须 > 0", d.ID)
		}
	case PolicyDynamicEdge:
		if d.MinWaitMinutes < 0 || d.MinWaitMinutes > 13 {
			return fmt.Errorf("策略 %s: min_wait_minutes 必须在 0-13 之间", d.ID)
		}
		if d.MinEdge < 0 {
			return fmt.Errorf("策略 %s: min_edge 不能为负数", d.ID)
		}
		if d.ScaleWithEdge {
			if d.BaseBetSize <= 0 || d.MaxBetSize < d.BaseBetSize {
				return fmt.Errorf("策略 %s: 加注参数无效 (base=%.2f, max=%.2f)", d.ID, d.BaseBetSize, d.MaxBetSize)
			}
		} else if d.BetSize <= 0 {
			return fmt.Errorf("策略 %s: bet_size 必须 > 0", d.ID)
		}
	case PolicySentiment:
		if d.OddsThreshold <= 0 || d.OddsThreshold >= 100 {
			return fmt.Errorf("策略 %s: odds_threshold 必须在 1-99 之间", d.ID)
		}
		if d.MinWaitMinutes < 0 || d.MinWaitMinutes > 13 {
			return fmt.Errorf("策略 %s: min_wait_minutes 必须在 0-13 之间", d.ID)
		}
		if d.BetSize <= 0 {
			return fmt.Errorf("策略 %s: bet_size 必须 > 0", d.ID)
		}
	default:
		return fmt.Errorf("策略 %s: 未知的策略变体 %q", d.ID, d.Policy)
	}
	return nil
}

// Series 展示用的系列名（快照里对外暴露）
func (d *Descriptor) Series() string {
	switch d.Policy {
	case PolicyFixedMinute:
		return "fixed_minute"
	case PolicyDynamicEdge:
		return "dynamic_edge"
	case PolicySentiment:
		return "sentiment"
	}
	return "unknown"
}
