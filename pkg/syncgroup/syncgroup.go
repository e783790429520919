package syncgroup

import "sync"

// SyncGroup 对 sync.WaitGroup 的包装：Add 只登记函数，
// Run 统一启动并自动配对 Add/Done，避免遗漏 Done 导致 Wait 卡死。
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	fns     []func()
	running int
}

// NewSyncGroup 创建新的 SyncGroup
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{}
}

// Add 登记一个 goroutine 函数。必须在 Run 之前调用；
// 上一批还有 goroutine 在跑时登记会被丢弃。
func (g *SyncGroup) Add(fn func()) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running > 0 {
		return
	}
	g.fns = append(g.fns, fn)
}

// Run 启动所有已登记的函数，并清空登记列表防止重复启动
func (g *SyncGroup) Run() {
	g.mu.Lock()
	if g.running > 0 {
		g.mu.Unlock()
		return
	}
	fns := g.fns
	g.fns = nil
	g.running = len(fns)
	g.mu.Unlock()

	for _, fn := range fns {
		g.wg.Add(1)
		go func(do func()) {
			defer func() {
				g.wg.Done()
				g.mu.Lock()
				g.running--
				g.mu.Unlock()
			}()
			do()
		}(fn)
	}
}

// Wait 阻塞到所有 goroutine 退出
func (g *SyncGroup) Wait() {
	g.wg.Wait()
}
