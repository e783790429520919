package dashboard

import (
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/betbot/paperbet/internal/engine"
	"github.com/betbot/paperbet/internal/tradestore"
)

var log = logrus.WithField("component", "dashboard")

// Server 只读 dashboard：消费引擎快照，绝不回写。
type Server struct {
	engine *engine.Engine
	trades *tradestore.Store // 可以为 nil（关闭归档时）
	http   *http.Server
}

// NewServer 创建 dashboard。trades 传 nil 则禁用 CSV 下载。
func NewServer(eng *engine.Engine, trades *tradestore.Store) *Server {
	return &Server{engine: eng, trades: trades}
}

// Router 构建路由
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Format(time.RFC3339)})
	})

	api := r.Group("/api")
	api.GET("/state", s.handleState)
	api.GET("/leaderboard", s.handleLeaderboard)
	api.GET("/strategies/:id", s.handleStrategy)

	dl := r.Group("/download")
	dl.GET("/json", s.handleDownloadJSON)
	dl.GET("/csv", s.handleDownloadCSV)
	dl.GET("/csv/:id", s.handleDownloadCSV)

	r.GET("/", s.handleUI)
	return r
}

// Start 在指定地址启动 HTTP 服务（非阻塞）
func (s *Server) Start(addr string) {
	s.http = &http.Server{Addr: addr, Handler: s.Router()}
	go func() {
		log.Infof("📊 dashboard 监听 %s", addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("dashboard 启动失败: %v", err)
		}
	}()
}

// Stop 关闭 HTTP 服务
func (s *Server) Stop() {
	if s.http != nil {
		_ = s.http.Close()
	}
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Snapshot())
}

// leaderboardRow 排行榜单行（按 ROI 降序）
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

func (s *Server) handleLeaderboard(c *gin.Context) {
	snap := s.engine.Snapshot()
	rows := make([]leaderboardRow, 0, len(snap.Strategies))
	for _, b := range snap.Strategies {
		rows = append(rows, leaderboardRow{
			ID:      b.ID,
			Name:    b.Name,
			Series:  b.Series,
			Trades:  b.Trades,
			WinRate: b.WinRate,
			Profit:  b.Profit,
			ROI:     b.ROI,
			Pending: b.HasPending,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ROI != rows[j].ROI {
			return rows[i].ROI > rows[j].ROI
		}
		return rows[i].ID < rows[j].ID
	})
	c.JSON(http.StatusOK, gin.H{
		"windows_processed": snap.WindowsProcessed,
		"tick_count":        snap.TickCount,
		"last_update":       snap.LastUpdate,
		"leaderboard":       rows,
	})
}

func (s *Server) handleStrategy(c *gin.Context) {
	snap := s.engine.Snapshot()
	b, ok := snap.Strategies[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) handleDownloadJSON(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="paperbet_state.json"`)
	c.JSON(http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleDownloadCSV(c *gin.Context) {
	if s.trades == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "trade archive disabled"})
		return
	}
	id := c.Param("id")
	name := "paperbet_trades.csv"
	if id != "" {
		name = fmt.Sprintf("paperbet_trades_%s.csv", id)
	}
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := s.trades.ExportCSV(c.Request.Context(), c.Writer, id); err != nil {
		log.Errorf("CSV 导出失败: %v", err)
	}
}
