package ticklog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/betbot/paperbet/internal/domain"
)

var log = logrus.WithField("component", "ticklog")

// Writer 追加式 tick 日志，一行一个 JSON。
//
// 写失败只记日志，绝不让行情处理停下来。
type Writer struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewWriter 打开（必要时创建）tick 日志文件
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{path: path, f: f}, nil
}

// Append 追加一条 tick 记录（best-effort）
func (w *Writer) Append(tick *domain.Tick) {
	if w == nil || tick == nil {
		return
	}
	b, err := json.Marshal(tick)
	if err != nil {
		log.Warnf("⚠️ tick 编码失败: %v", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.f.Write(append(b, '\n')); err != nil {
		log.Warnf("⚠️ tick 日志写入失败: %v", err)
	}
}

// Close 关闭日志文件
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// Read 读取整个 tick 日志（分析/回放用）。坏行跳过。
func Read(path string) ([]domain.Tick, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var out []domain.Tick
	start := 0
	for i := 0; i <= len(b); i++ {
		if i == len(b) || b[i] == '\n' {
			line := b[start:i]
			start = i + 1
			if len(line) == 0 {
				continue
			}
			var t domain.Tick
			if err := json.Unmarshal(line, &t); err != nil {
				continue
			}
			out = append(out, t)
		}
	}
	return out, nil
}
