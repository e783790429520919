package domain

// DefaultFeeRate Polymarket 加密市场的近似费率（~2%，远低于 Kalshi 的 7%）
const DefaultFeeRate = 0.02

// FeeCents 按价格计算单张合约的手续费（分）。
//
// 费用曲线与方差成正比：价格 0 或 100 时为 0，50 时最大，且对称
// fee(p) == fee(100-p)。
func FeeCents(priceCents int) float64 {
	return FeeCentsWithRate(priceCents, DefaultFeeRate)
}

// FeeCentsWithRate 使用自定义费率计算手续费（分）
func FeeCentsWithRate(priceCents int, feeRate float64) float64 {
	if priceCents <= 0 || priceCents >= 100 {
		return 0
	}
	p := float64(priceCents) / 100.0
	return feeRate * p * (1 - p) * 100
}
