package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	pollInterval = 3 * time.Second
	maxVisible   = 25 // 排行榜一屏显示多少行
)

var (
	// 样式定义
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	profitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")) // 绿色

	lossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")) // 红色

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3")) // 黄色
)

// leaderboardRow 对应 dashboard /api/leaderboard 的单行
type leaderboardRow struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Series  string  `json:"series"`
	Trades  int     `json:"trades"`
	WinRate float64 `json:"win_rate"`
	Profit  float64 `json:"profit"`
	ROI     float64 `json:"roi"`
	Pending bool    `json:"pending"`
}

// leaderboardResponse /api/leaderboard 的响应体
type leaderboardResponse struct {
	WindowsProcessed int              `json:"windows_processed"`
	TickCount        int64            `json:"tick_count"`
	LastUpdate       time.Time        `json:"last_update"`
	Leaderboard      []leaderboardRow `json:"leaderboard"`
}

// model 是应用程序的状态
type model struct {
	baseURL string
	client  *http.Client

	data      leaderboardResponse
	fetchedAt time.Time
	offset    int // 排行榜滚动偏移
	err       error
}

// tickMsg 定时器消息
type tickMsg time.Time

// dataMsg 拉取到的排行榜数据
type dataMsg leaderboardResponse

func initialModel(baseURL string) model {
	return model{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetchCmd(m.client, m.baseURL), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchCmd 拉取排行榜；失败以 error 消息呈现，不中断轮询
func fetchCmd(client *http.Client, baseURL string) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.Get(baseURL + "/api/leaderboard")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("dashboard 返回 %s", resp.Status)
		}
		var data leaderboardResponse
		if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
			return err
		}
		return dataMsg(data)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.offset > 0 {
				m.offset--
			}
		case "down", "j":
			if m.offset < len(m.data.Leaderboard)-maxVisible {
				m.offset++
			}
		case "g":
			m.offset = 0
		case "G":
			if n := len(m.data.Leaderboard) - maxVisible; n > 0 {
				m.offset = n
			}
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(fetchCmd(m.client, m.baseURL), tickCmd())

	case dataMsg:
		m.data = leaderboardResponse(msg)
		m.fetchedAt = time.Now()
		m.err = nil
		if n := len(m.data.Leaderboard) - maxVisible; n < 0 {
			m.offset = 0
		} else if m.offset > n {
			m.offset = n
		}
		return m, nil

	case error:
		m.err = msg
		return m, nil
	}

	return m, nil
}

func (m model) View() string {
	var s strings.Builder

	status := "等待数据..."
	if !m.fetchedAt.IsZero() {
		status = fmt.Sprintf("更新于 %s前", time.Since(m.fetchedAt).Round(time.Second))
	}
	header := headerStyle.Render(fmt.Sprintf("paperbet | 窗口: %d | ticks: %d | %s",
		m.data.WindowsProcessed, m.data.TickCount, status))
	s.WriteString(header)
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(lossStyle.Render(fmt.Sprintf("连接失败: %v", m.err)))
		s.WriteString("\n")
		s.WriteString(dimStyle.Render(m.baseURL))
		s.WriteString("\n\n按 q 退出\n")
		return s.String()
	}

	rows := m.data.Leaderboard
	if len(rows) == 0 {
		s.WriteString("正在连接...\n\n按 q 退出\n")
		return s.String()
	}

	s.WriteString(titleStyle.Render(fmt.Sprintf("%4s  %-34s %6s %7s %9s %8s  %s",
		"#", "策略", "笔数", "胜率", "盈亏", "ROI", "状态")))
	s.WriteString("\n")

	end := m.offset + maxVisible
	if end > len(rows) {
		end = len(rows)
	}
	for i := m.offset; i < end; i++ {
		row := rows[i]
		line := fmt.Sprintf("%4d  %-34s %6d %6.1f%% %+9.2f %+7.1f%%",
			i+1, truncate(row.Name, 34), row.Trades, row.WinRate*100, row.Profit, row.ROI*100)
		switch {
		case row.Profit > 0:
			line = profitStyle.Render(line)
		case row.Profit < 0:
			line = lossStyle.Render(line)
		default:
			line = dimStyle.Render(line)
		}
		s.WriteString(line)
		if row.Pending {
			s.WriteString(pendingStyle.Render("  ⏳持仓"))
		}
		s.WriteString("\n")
	}

	if len(rows) > maxVisible {
		s.WriteString(dimStyle.Render(fmt.Sprintf("\n第 %d-%d 行，共 %d 个策略（↑/↓ 滚动）", m.offset+1, end, len(rows))))
	}
	s.WriteString("\n\n按 q 退出\n")

	return s.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "dashboard 地址")
	flag.Parse()

	p := tea.NewProgram(initialModel(*baseURL))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI 启动失败: %v\n", err)
		os.Exit(1)
	}
}
