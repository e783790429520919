package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/paperbet/internal/dashboard"
	"github.com/betbot/paperbet/internal/domain"
	"github.com/betbot/paperbet/internal/engine"
	"github.com/betbot/paperbet/internal/feed"
	"github.com/betbot/paperbet/internal/strategy"
	"github.com/betbot/paperbet/internal/ticklog"
	"github.com/betbot/paperbet/internal/tradestore"
	"github.com/betbot/paperbet/pkg/config"
	"github.com/betbot/paperbet/pkg/logger"
	"github.com/betbot/paperbet/pkg/persistence"
	"github.com/betbot/paperbet/pkg/shutdown"
	"github.com/betbot/paperbet/pkg/sigchan"
	"github.com/betbot/paperbet/pkg/syncgroup"
)

const stateTag = "engine"

func main() {
	configPath := flag.String("config", "yml/config.yaml", "配置文件路径")
	flag.Parse()

	// 先用默认配置起日志，配置加载的问题也能落进日志
	if err := logger.InitDefault(); err != nil {
		fmt.Fprintf(os.Stderr, "日志初始化失败: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		logrus.Fatalf("配置加载失败: %v", err)
	}

	// 按配置重建日志输出
	if err := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		OutputFile:  cfg.LogFile,
		MaxSize:     100,
		MaxBackups:  5,
		MaxAge:      7,
		Compress:    true,
		LogByWindow: cfg.LogByWindow,
	}); err != nil {
		logrus.Fatalf("日志初始化失败: %v", err)
	}

	log := logrus.WithField("component", "worker")

	// 持续率表：内置或 YAML 覆盖
	table := strategy.DefaultPersistenceTable()
	if cfg.OddsTableFile != "" {
		table, err = strategy.LoadPersistenceTable(cfg.OddsTableFile)
		if err != nil {
			log.Fatalf("持续率表加载失败: %v", err)
		}
		log.Infof("📋 使用自定义持续率表: %s", cfg.OddsTableFile)
	}

	catalog, err := strategy.BuildCatalog(table, strategy.CatalogOptions{
		StartingBankroll: cfg.StartingBankroll,
		BetSize:          cfg.BetSize,
	})
	if err != nil {
		log.Fatalf("策略目录构建失败: %v", err)
	}

	// 交易归档（可选）
	var trades *tradestore.Store
	if cfg.TradeDBFile != "" {
		trades, err = tradestore.Open(cfg.TradeDBFile)
		if err != nil {
			log.Fatalf("交易归档打开失败: %v", err)
		}
	}

	// 结算后立即触发一次状态保存，不等周期性保存
	dirty := sigchan.New(1)

	eng, err := engine.New(catalog, table, engine.Options{
		FeeRate: cfg.FeeRate,
		OnSettle: func(strategyID string, trade *domain.SettledTrade) {
			dirty.Emit()
			if trades == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := trades.Record(ctx, strategyID, trade); err != nil {
				log.Warnf("⚠️ 交易归档失败: %v", err)
			}
		},
	})
	if err != nil {
		log.Fatalf("引擎构建失败: %v", err)
	}

	// 状态持久化：json 或 badger，重启恢复挂单与结算标记
	var svc persistence.Service
	var badgerSvc *persistence.BadgerService
	switch cfg.StateBackend {
	case "badger":
		badgerSvc, err = persistence.OpenBadger(cfg.StatePath("badger"))
		if err != nil {
			log.Fatalf("badger 打开失败: %v", err)
		}
		svc = badgerSvc
	default:
		svc = persistence.NewJSONFileService(cfg.StateDir)
	}
	store := svc.NewStore("state", "worker", stateTag)

	var saved engine.PersistedState
	switch err := store.Load(&saved); err {
	case nil:
		eng.ImportState(&saved)
		log.Infof("♻️ 已恢复上次状态 (保存于 %s)", saved.SavedAt.Format("2006-01-02 15:04:05"))
		// 归档库可能落后于状态快照（写入失败、库被清空），按主键幂等回填
		if trades != nil {
			backfillCtx, backfillCancel := context.WithTimeout(context.Background(), 30*time.Second)
			for id, st := range saved.Strategies {
				trades.RecordAll(backfillCtx, id, st.History)
			}
			backfillCancel()
		}
	case persistence.ErrNotExists:
		log.Info("🧪 无历史状态，全新开始")
	default:
		log.Warnf("⚠️ 状态恢复失败，全新开始: %v", err)
	}

	saveState := func() {
		if err := store.Save(eng.ExportState()); err != nil {
			log.Warnf("⚠️ 状态保存失败: %v", err)
		}
	}

	// tick 日志（可选，best-effort）
	var tlog *ticklog.Writer
	if cfg.TickLogFile != "" {
		tlog, err = ticklog.NewWriter(cfg.TickLogFile)
		if err != nil {
			log.Warnf("⚠️ tick 日志不可用: %v", err)
			tlog = nil
		}
	}

	market := feed.NewClient(feed.Options{
		GammaEndpoint: cfg.GammaEndpoint,
		ClobEndpoint:  cfg.ClobEndpoint,
		KrakenPair:    cfg.KrakenPair,
		Proxy:         cfg.HTTPProxy,
	})

	var dash *dashboard.Server
	if cfg.DashboardListen != "" {
		dash = dashboard.NewServer(eng, trades)
		dash.Start(cfg.DashboardListen)
	}

	// 优雅关闭：最后保存一次状态再退出
	shutdownMgr := shutdown.NewManager()
	shutdownMgr.OnShutdown(func(ctx context.Context, wg *sync.WaitGroup) {
		if dash != nil {
			dash.Stop()
		}
		saveState()
		if tlog != nil {
			_ = tlog.Close()
		}
		if trades != nil {
			_ = trades.Close()
		}
		if badgerSvc != nil {
			_ = badgerSvc.Close()
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infof("🛑 收到信号 %v，开始优雅关闭", sig)
		cancel()
	}()

	log.Infof("🚀 paperbet worker 启动: %d 个策略, 轮询 %ds/%ds", len(catalog), cfg.PollBaseSeconds, cfg.PollCloseSeconds)
	runLoop(ctx, cfg, eng, market, tlog, dirty, saveState)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	shutdownMgr.Shutdown(shutdownCtx)
	log.Info("👋 worker 已退出")
}

// runLoop 主循环：取 tick → 引擎处理 → 自适应休眠。
// 离收盘越近轮询越密；取不到行情就跳过本轮。
func runLoop(ctx context.Context, cfg *config.Config, eng *engine.Engine, market *feed.Client, tlog *ticklog.Writer, dirty *sigchan.Chan, saveState func()) {
	log := logrus.WithField("component", "worker")

	lastWindow := ""
	lastSave := time.Now()
	lastStatus := time.Now()

	// 当前窗口的 WebSocket 盘口流，窗口切换时重建
	var stream *feed.Stream
	var streamCancel context.CancelFunc
	var streamSg *syncgroup.SyncGroup
	stopStream := func() {
		if streamCancel != nil {
			streamCancel()
			streamSg.Wait()
			stream, streamCancel, streamSg = nil, nil, nil
		}
	}
	defer stopStream()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sleep := time.Duration(cfg.PollBaseSeconds) * time.Second

		fetchCtx, fetchCancel := context.WithTimeout(ctx, 30*time.Second)
		tick, err := market.FetchTick(fetchCtx)
		fetchCancel()

		switch {
		case err == nil:
			if tick.WindowID != lastWindow {
				lastWindow = tick.WindowID
				if ts := feed.WindowStart(tick.WindowID); ts > 0 {
					_ = logger.SetWindow(ts)
				}
				// 重建盘口流，订阅新窗口的两个 token
				stopStream()
				var streamCtx context.Context
				streamCtx, streamCancel = context.WithCancel(ctx)
				s := feed.NewStream([]string{tick.UpTokenID, tick.DownTokenID}, nil)
				stream = s
				streamSg = syncgroup.NewSyncGroup()
				streamSg.Add(func() { _ = s.Run(streamCtx) })
				streamSg.Run()
			}
			overlayStreamQuotes(stream, tick)
			if tlog != nil {
				tlog.Append(tick)
			}
			if perr := eng.ProcessTick(tick); perr != nil {
				log.Warnf("⏭️ tick 被丢弃: %v", perr)
			}
			// 自适应节奏：收盘前加密
			switch {
			case tick.MinsLeft < 1:
				sleep = time.Duration(cfg.PollCloseSeconds) * time.Second
			case tick.MinsLeft < 2:
				sleep = 2 * time.Second
			case tick.MinsLeft < 5:
				sleep = 3 * time.Second
			}
		case errors.Is(err, feed.ErrNoActiveWindow):
			log.Debugf("⏳ 暂无活跃窗口，%s 后重试", sleep)
		default:
			log.Warnf("⚠️ 行情获取失败: %v", err)
		}

		// 结算信号或周期性保存
		select {
		case <-dirty.C():
			saveState()
			lastSave = time.Now()
		default:
			if time.Since(lastSave) >= cfg.SaveInterval {
				saveState()
				lastSave = time.Now()
			}
		}
		if time.Since(lastStatus) >= 30*time.Second {
			snap := eng.Snapshot()
			log.Infof("📊 运行中: %d ticks, %d 个窗口, 运行 %s",
				snap.TickCount, snap.WindowsProcessed, time.Duration(snap.UptimeSeconds*float64(time.Second)).Truncate(time.Second))
			lastStatus = time.Now()
		}

		// 收盘前盘口一动就提前醒来，结算判定不等下一个整点轮询
		var wake <-chan struct{}
		if stream != nil && sleep <= 2*time.Second {
			wake = stream.Updated()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		case <-wake:
		}
	}
}

// overlayStreamQuotes 用 WebSocket 推送里更新的盘口覆盖轮询结果。
// 只在数据足够新鲜时覆盖，流断开就退回 REST 报价。
func overlayStreamQuotes(stream *feed.Stream, tick *domain.Tick) {
	if stream == nil {
		return
	}
	const fresh = 10 * time.Second
	if u, ok := stream.Latest(tick.UpTokenID); ok && time.Since(u.At) < fresh && u.AskCents > 0 {
		tick.UpAsk, tick.UpBid = u.AskCents, u.BidCents
	}
	if u, ok := stream.Latest(tick.DownTokenID); ok && time.Since(u.At) < fresh && u.AskCents > 0 {
		tick.DownAsk, tick.DownBid = u.AskCents, u.BidCents
	}
}
