package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config 应用配置（优先级：环境变量 > 配置文件 > 默认值）
type Config struct {
	// 引擎
	StartingBankroll float64 // 每个策略的初始资金（USDC）
	BetSize          float64 // 默认单注金额（USDC）
	FeeRate          float64 // 手续费率（Polymarket 约 2%）
	OddsTableFile    string  // 持续率表 YAML 覆盖（为空用内置表）

	// 行情
	GammaEndpoint string // Polymarket Gamma API
	ClobEndpoint  string // Polymarket CLOB API
	KrakenPair    string // 现货交易对，默认 XBTUSD
	HTTPProxy     string // 可选代理

	// 轮询节奏（秒）：离收盘越近越密
	PollBaseSeconds  int
	PollCloseSeconds int

	// 落盘
	StateDir      string // 状态目录（快照 JSON、Badger）
	StateBackend  string // json | badger
	TickLogFile   string // JSONL tick 日志，空则关闭
	TradeDBFile   string // SQLite 交易归档，空则关闭
	SaveInterval  time.Duration

	// 展示
	DashboardListen string // 为空不启动 dashboard

	// 日志
	LogLevel    string
	LogFile     string
	LogByWindow bool
}

// ConfigFile 配置文件结构（YAML 解析用）
type ConfigFile struct {
	Engine struct {
		StartingBankroll float64 `yaml:"starting_bankroll"`
		BetSize          float64 `yaml:"bet_size"`
		FeeRate          float64 `yaml:"fee_rate"`
		OddsTableFile    string  `yaml:"odds_table_file"`
	} `yaml:"engine"`
	Feed struct {
		GammaEndpoint    string `yaml:"gamma_endpoint"`
		ClobEndpoint     string `yaml:"clob_endpoint"`
		KrakenPair       string `yaml:"kraken_pair"`
		HTTPProxy        string `yaml:"http_proxy"`
		PollBaseSeconds  int    `yaml:"poll_base_seconds"`
		PollCloseSeconds int    `yaml:"poll_close_seconds"`
	} `yaml:"feed"`
	State struct {
		Dir             string `yaml:"dir"`
		Backend         string `yaml:"backend"`
		TickLogFile     string `yaml:"tick_log_file"`
		TradeDBFile     string `yaml:"trade_db_file"`
		SaveIntervalSec int    `yaml:"save_interval_seconds"`
	} `yaml:"state"`
	Dashboard struct {
		Listen string `yaml:"listen"`
	} `yaml:"dashboard"`
	Log struct {
		Level    string `yaml:"level"`
		File     string `yaml:"file"`
		ByWindow bool   `yaml:"by_window"`
	} `yaml:"log"`
}

var globalConfig *Config
var configFilePath string

// SetConfigPath 设置配置文件路径
func SetConfigPath(path string) {
	configFilePath = path
	globalConfig = nil
}

// Load 加载配置
func Load() (*Config, error) {
	return LoadFromFile(configFilePath)
}

// LoadFromFile 从指定文件加载配置。文件可以不存在（全用环境变量/默认值）。
func LoadFromFile(filePath string) (*Config, error) {
	if globalConfig != nil && configFilePath == filePath {
		return globalConfig, nil
	}

	// .env 可选加载，不存在不报错
	_ = godotenv.Load()

	var cf ConfigFile
	if filePath != "" {
		b, err := os.ReadFile(filePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("读取配置文件失败 %s: %w", filePath, err)
			}
		} else if err := yaml.Unmarshal(b, &cf); err != nil {
			return nil, fmt.Errorf("解析配置文件失败 %s: %w", filePath, err)
		}
	}

	config := &Config{
		StartingBankroll: floatOr("STARTING_BANKROLL", cf.Engine.StartingBankroll, 1000),
		BetSize:          floatOr("BET_SIZE", cf.Engine.BetSize, 10),
		FeeRate:          floatOr("FEE_RATE", cf.Engine.FeeRate, 0.02),
		OddsTableFile:    stringOr("ODDS_TABLE_FILE", cf.Engine.OddsTableFile, ""),

		GammaEndpoint:    stringOr("GAMMA_ENDPOINT", cf.Feed.GammaEndpoint, "https://gamma-api.polymarket.com"),
		ClobEndpoint:     stringOr("CLOB_ENDPOINT", cf.Feed.ClobEndpoint, "https://clob.polymarket.com"),
		KrakenPair:       stringOr("KRAKEN_PAIR", cf.Feed.KrakenPair, "XBTUSD"),
		HTTPProxy:        stringOr("HTTP_PROXY", cf.Feed.HTTPProxy, ""),
		PollBaseSeconds:  intOr("POLL_BASE_SECONDS", cf.Feed.PollBaseSeconds, 5),
		PollCloseSeconds: intOr("POLL_CLOSE_SECONDS", cf.Feed.PollCloseSeconds, 1),

		StateDir:     stringOr("STATE_DIR", cf.State.Dir, "data"),
		StateBackend: stringOr("STATE_BACKEND", cf.State.Backend, "json"),
		TickLogFile:  stringOr("TICK_LOG_FILE", cf.State.TickLogFile, "data/ticks.jsonl"),
		TradeDBFile:  stringOr("TRADE_DB_FILE", cf.State.TradeDBFile, "data/trades.db"),
		SaveInterval: time.Duration(intOr("SAVE_INTERVAL_SECONDS", cf.State.SaveIntervalSec, 30)) * time.Second,

		DashboardListen: stringOr("DASHBOARD_LISTEN", cf.Dashboard.Listen, ":8080"),

		LogLevel:    stringOr("LOG_LEVEL", cf.Log.Level, "info"),
		LogFile:     stringOr("LOG_FILE", cf.Log.File, "logs/worker.log"),
		LogByWindow: boolOr("LOG_BY_WINDOW", cf.Log.ByWindow, true),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	configFilePath = filePath
	globalConfig = config
	return config, nil
}

// Validate 验证配置。启动前的配置错误必须 fail-fast。
func (c *Config) Validate() error {
	if c.StartingBankroll <= 0 {
		return fmt.Errorf("starting_bankroll 必须 > 0")
	}
	if c.BetSize <= 0 {
		return fmt.Errorf("bet_size 必须 > 0")
	}
	if c.FeeRate < 0 || c.FeeRate >= 1 {
		return fmt.Errorf("fee_rate 必须在 [0,1) 之间")
	}
	if c.PollBaseSeconds <= 0 || c.PollCloseSeconds <= 0 {
		return fmt.Errorf("轮询间隔必须 > 0")
	}
	switch c.StateBackend {
	case "json", "badger":
	default:
		return fmt.Errorf("state backend 必须为 json 或 badger，实际 %q", c.StateBackend)
	}
	if c.OddsTableFile != "" {
		if _, err := os.Stat(c.OddsTableFile); err != nil {
			return fmt.Errorf("持续率表文件不可用 %s: %w", c.OddsTableFile, err)
		}
	}
	return nil
}

// StatePath 返回状态目录下的路径
func (c *Config) StatePath(name string) string {
	return filepath.Join(c.StateDir, name)
}

func stringOr(envKey, fileValue, def string) string {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	if fileValue != "" {
		return fileValue
	}
	return def
}

func intOr(envKey string, fileValue, def int) int {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	if fileValue != 0 {
		return fileValue
	}
	return def
}

func floatOr(envKey string, fileValue, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	if fileValue != 0 {
		return fileValue
	}
	return def
}

func boolOr(envKey string, fileValue, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	if fileValue {
		return true
	}
	return def
}
