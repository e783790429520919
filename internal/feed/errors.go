package feed

import "github.com/pkg/errors"

// ErrNoActiveWindow 当前没有可交易的 15 分钟窗口（新窗口尚未在 Gamma 上建档）。
// 调用方跳过本轮，等下一次轮询。
var ErrNoActiveWindow = errors.New("no active 15m window")

// ErrInvalidTick 组装出的 tick 缺少引擎必需的字段，整体丢弃
var ErrInvalidTick = errors.New("invalid tick")
