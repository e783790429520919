package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PersistenceEntry 持续率表的一行：
// 如果第 X 分钟现货在 strike 之上/之下，收盘时保持在同侧的概率。
type PersistenceEntry struct {
	MinsLeft  int     `yaml:"mins_left"`
	Rate      float64 `yaml:"rate"`
	MaxLosses int     `yaml:"max_losses"` // 历史最大连败（仅供展示/风险参考）
}

// PersistenceTable 按窗口内分钟（0-14）索引的持续率表。
// 这是 dynamic_edge 系列的"真实概率"来源：固定输入，引擎绝不在运行时拟合。
type PersistenceTable struct {
	entries map[int]PersistenceEntry
}

// defaultPersistence 基于 5 年 BTC 数据（137,206 个 15 分钟窗口）统计的默认表
var defaultPersistence = map[int]PersistenceEntry{
	0:  {14, 0.560, 15},
	1:  {13, 0.626, 12},
	2:  {12, 0.684, 10},
	3:  {11, 0.732, 9},
	4:  {10, 0.771, 8},
	5:  {9, 0.804, 7},
	6:  {8, 0.832, 6},
	7:  {7, 0.856, 6},
	8:  {6, 0.877, 5},
	9:  {5, 0.895, 5},
	10: {4, 0.912, 4},
	11: {3, 0.927, 4},
	12: {2, 0.941, 3},
	13: {1, 0.954, 3},
	14: {0, 0.968, 2},
}

// DefaultPersistenceTable 返回编译内置的默认持续率表
func DefaultPersistenceTable() *PersistenceTable {
	entries := make(map[int]PersistenceEntry, len(defaultPersistence))
	for k, v := range defaultPersistence {
		entries[k] = v
	}
	return &PersistenceTable{entries: entries}
}

// LoadPersistenceTable 从 YAML 文件加载持续率表（键为分钟 0-14）。
// 用于用新的历史统计替换默认表；格式错误 fail-fast。
func LoadPersistenceTable(path string) (*PersistenceTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取持续率表失败: %w", err)
	}
	raw := make(map[int]PersistenceEntry)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("解析持续率表失败: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("持续率表为空: %s", path)
	}
	for minute, e := range raw {
		if minute < 0 || minute > 14 {
			return nil, fmt.Errorf("持续率表分钟越界: %d", minute)
		}
		if e.Rate <= 0 || e.Rate > 1 {
			return nil, fmt.Errorf("持续率表第 %d 分钟的概率无效: %.3f", minute, e.Rate)
		}
	}
	return &PersistenceTable{entries: raw}, nil
}

// Rate 返回指定分钟的持续率；分钟不在表内时返回 false
func (t *PersistenceTable) Rate(minute int) (float64, bool) {
	e, ok := t.entries[minute]
	if !ok {
		return 0, false
	}
	return e.Rate, true
}

// Entry 返回指定分钟的完整表项
func (t *PersistenceTable) Entry(minute int) (PersistenceEntry, bool) {
	e, ok := t.entries[minute]
	return e, ok
}
