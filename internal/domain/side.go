package domain

// Side 下注方向（同时也是窗口结算结果的取值）
//
// Polymarket 的 BTC 15 分钟市场使用 UP/DOWN 两个 outcome：
//   - UP   = 收盘价高于开盘 strike
//   - DOWN = 收盘价低于（或等于）开盘 strike
type Side string

const (
	SideUp   Side = "up"
	SideDown Side = "down"
)

// IsValid 验证方向是否有效
func (s Side) IsValid() bool {
	return s == SideUp || s == SideDown
}

// Opposite 返回相反方向
func (s Side) Opposite() Side {
	if s == SideUp {
		return SideDown
	}
	return SideUp
}
