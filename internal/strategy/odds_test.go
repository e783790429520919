package strategy

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTableFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "odds.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}
	return path
}

func TestLoadPersistenceTable(t *testing.T) {
	path := writeTableFile(t, `
3:
  mins_left: 11
  rate: 0.75
  max_losses: 9
14:
  mins_left: 0
  rate: 0.99
  max_losses: 1
`)

	table, err := LoadPersistenceTable(path)
	if err != nil {
		t.Fatalf("加载持续率表失败: %v", err)
	}

	rate, ok := table.Rate(3)
	if !ok || rate != 0.75 {
		t.Errorf("第 3 分钟持续率 = %.3f, %v, 期望 0.75", rate, ok)
	}
	entry, ok := table.Entry(14)
	if !ok || entry.MaxLosses != 1 {
		t.Errorf("第 14 分钟表项 = %+v, %v", entry, ok)
	}
	// 覆盖表只有两行，其余分钟不应命中
	if _, ok := table.Rate(5); ok {
		t.Error("第 5 分钟不在覆盖表里，不应命中")
	}
}

func TestLoadPersistenceTableErrors(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"空表", ""},
		{"分钟越界", "15:\n  mins_left: 0\n  rate: 0.9\n"},
		{"概率为零", "3:\n  mins_left: 11\n  rate: 0\n"},
		{"概率超过一", "3:\n  mins_left: 11\n  rate: 1.2\n"},
		{"格式错误", "not: [valid"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := writeTableFile(t, c.content)
			if _, err := LoadPersistenceTable(path); err == nil {
				t.Errorf("%s 应该加载失败", c.name)
			}
		})
	}

	if _, err := LoadPersistenceTable(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("文件不存在应该加载失败")
	}
}
