package strategy

import (
	"fmt"
)

// CatalogOptions catalog 构建参数。组合展开的"旋钮"集中在这里，
// 策略本身是数据而不是代码。
type CatalogOptions struct {
	StartingBankroll float64 // 每个策略的初始资金，默认 1000
	BetSize          float64 // 默认单注金额，默认 10
}

func (o *CatalogOptions) defaults() {
	if o.StartingBankroll <= 0 {
		o.StartingBankroll = 1000
	}
	if o.BetSize <= 0 {
		o.BetSize = 10
	}
}

// BuildCatalog 组合展开生成全部策略描述符（顺序稳定）：
//
//	系列1 fixed_minute：第 1-13 分钟各一个（13 个）
//	系列2 dynamic_edge：等待 {2,3,4,5} 分钟 × edge 阈值 {5..40}%（32 个）+ 2 个加注变体
//	系列3 sentiment：   阈值 {55..95} × 等待 {0,1,2,3,5,7,10}（63 个）+ always_favorite
//
// 共 111 个。所有描述符构建后即验证，配置错误 fail-fast。
func BuildCatalog(table *PersistenceTable, opts CatalogOptions) ([]*Descriptor, error) {
	opts.defaults()
	if table == nil {
		return nil, fmt.Errorf("持续率表不能为空")
	}

	var out []*Descriptor

	// 系列1：固定分钟。价格上限在这里一次性算好（true_prob * 100 * 95%）。
	for minute := 1; minute <= 13; minute++ {
		entry, ok := table.Entry(minute)
		if !ok {
			return nil, fmt.Errorf("持续率表缺少第 %d 分钟", minute)
		}
		out = append(out, &Descriptor{
			ID:               fmt.Sprintf("s1_fixed_min_%d", minute),
			Name:             fmt.Sprintf("Fixed Minute %d", minute),
			Description:      fmt.Sprintf("Only bets at minute %d (%d min left). Persistence: %.1f%%", minute, entry.MinsLeft, entry.Rate*100),
			Policy:           PolicyFixedMinute,
			StartingBankroll: opts.StartingBankroll,
			BetSize:          opts.BetSize,
			TargetMinute:     minute,
			TrueProbability:  entry.Rate,
			MaxPriceCents:    int(entry.Rate * 100 * 0.95),
			MinEdge:          0.03,
		})
	}

	// 系列2：动态 edge
	for _, wait := range []int{2, 3, 4, 5} {
		for _, edgePct := range []int{5, 10, 12, 15, 20, 25, 30, 40} {
			out = append(out, &Descriptor{
				ID:               fmt.Sprintf("s2_dynamic_wait%d_edge%d", wait, edgePct),
				Name:             fmt.Sprintf("Dynamic Wait %dm, Edge %d%%", wait, edgePct),
				Description:      fmt.Sprintf("Waits %d min, then enters when edge >= %d%%", wait, edgePct),
				Policy:           PolicyDynamicEdge,
				StartingBankroll: opts.StartingBankroll,
				BetSize:          opts.BetSize,
				MinWaitMinutes:   wait,
				MinEdge:          float64(edgePct) / 100,
			})
		}
	}

	// 系列2 加注变体：注额随 edge 线性放大
	for _, v := range []struct {
		wait    int
		minEdge float64
	}{
		{3, 0.05},
		{5, 0.10},
	} {
		out = append(out, &Descriptor{
			ID:               fmt.Sprintf("s2_dynamic_scaled_wait%d", v.wait),
			Name:             fmt.Sprintf("Dynamic Scaled (Wait %dm)", v.wait),
			Description:      fmt.Sprintf("Waits %d min, scales bet size with edge (more edge = bigger bet)", v.wait),
			Policy:           PolicyDynamicEdge,
			StartingBankroll: opts.StartingBankroll,
			MinWaitMinutes:   v.wait,
			MinEdge:          v.minEdge,
			ScaleWithEdge:    true,
			BaseBetSize:      10,
			MaxBetSize:       50,
		})
	}

	// 系列3：市场情绪
	for _, threshold := range []int{55, 60, 65, 70, 75, 80, 85, 90, 95} {
		for _, wait := range []int{0, 1, 2, 3, 5, 7, 10} {
			out = append(out, &Descriptor{
				ID:               fmt.Sprintf("s3_sentiment_odds%d_wait%d", threshold, wait),
				Name:             fmt.Sprintf("Sentiment %dc (Wait %dm)", threshold, wait),
				Description:      fmt.Sprintf("Bets WITH the favorite when UP/DOWN hits %dc, after %d min", threshold, wait),
				Policy:           PolicySentiment,
				StartingBankroll: opts.StartingBankroll,
				BetSize:          opts.BetSize,
				OddsThreshold:    threshold,
				MinWaitMinutes:   wait,
			})
		}
	}
	out = append(out, &Descriptor{
		ID:               "s3_sentiment_always_favorite",
		Name:             "Always Favorite",
		Description:      "Always bets the favored side regardless of time or odds",
		Policy:           PolicySentiment,
		StartingBankroll: opts.StartingBankroll,
		BetSize:          opts.BetSize,
		OddsThreshold:    51,
		MinWaitMinutes:   0,
	})

	// 整表验证 + ID 去重
	seen := make(map[string]bool, len(out))
	for _, d := range out {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("策略 ID 重复: %s", d.ID)
		}
		seen[d.ID] = true
	}
	return out, nil
}
