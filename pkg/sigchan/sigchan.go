package sigchan

// Chan 只通知"发生过"、不传数据的信号 channel。
// Emit 永不阻塞：缓冲满了就丢弃，消费方醒来后自己读最新状态。
type Chan struct {
	c chan struct{}
}

// New 创建信号 channel，bufferSize 通常为 1
func New(bufferSize int) *Chan {
	return &Chan{c: make(chan struct{}, bufferSize)}
}

// Emit 发送信号，缓冲满时静默丢弃
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// C 暴露内部 channel 供 select 使用
func (c *Chan) C() <-chan struct{} {
	return c.c
}
