package tradestore

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/betbot/paperbet/internal/domain"
)

var log = logrus.WithField("component", "tradestore")

// Store 已结算交易的 SQLite 归档，供跨运行分析和 CSV 导出。
// 写入 best-effort，失败不影响引擎。
type Store struct {
	db *sql.DB
}

// Open 打开（必要时创建）交易归档库
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "打开交易归档失败")
	}
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS trades (
			id             TEXT PRIMARY KEY,
			strategy_id    TEXT NOT NULL,
			window_id      TEXT NOT NULL,
			direction      TEXT NOT NULL,
			entry_price    INTEGER NOT NULL,
			contracts      INTEGER NOT NULL,
			bet_size       REAL NOT NULL,
			fee            REAL NOT NULL,
			edge           REAL,
			strike         REAL NOT NULL,
			entry_btc      REAL NOT NULL,
			entry_at       TEXT NOT NULL,
			outcome        TEXT NOT NULL,
			profit         REAL NOT NULL,
			bankroll_after REAL NOT NULL,
			settled_at     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_trades_strategy ON trades(strategy_id);
		CREATE INDEX IF NOT EXISTS idx_trades_window ON trades(window_id);
	`)
	return errors.Wrap(err, "交易归档建表失败")
}

// Record 归档一笔已结算交易（幂等：同一仓位 ID 重复写入忽略）
func (s *Store) Record(ctx context.Context, strategyID string, trade *domain.SettledTrade) error {
	var edge interface{}
	if trade.Edge != nil {
		edge = *trade.Edge
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO trades
			(id, strategy_id, window_id, direction, entry_price, contracts,
			 bet_size, fee, edge, strike, entry_btc, entry_at,
			 outcome, profit, bankroll_after, settled_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		trade.ID, strategyID, trade.WindowID, string(trade.Direction),
		trade.EntryPrice, trade.Contracts, trade.BetSize, trade.Fee, edge,
		trade.Strike, trade.AssetPrice, trade.Timestamp.Format(time.RFC3339Nano),
		string(trade.Outcome), trade.Profit, trade.BankrollAfter,
		trade.SettledAt.Format(time.RFC3339Nano),
	)
	return errors.Wrap(err, "交易归档写入失败")
}

// RecordAll 批量归档，失败只记日志（best-effort）
func (s *Store) RecordAll(ctx context.Context, strategyID string, trades []domain.SettledTrade) {
	if s == nil {
		return
	}
	for i := range trades {
		if err := s.Record(ctx, strategyID, &trades[i]); err != nil {
			log.Warnf("⚠️ [%s] 交易归档失败: %v", strategyID, err)
		}
	}
}

// Row 归档库中的一笔交易
type Row struct {
	ID            string
	StrategyID    string
	WindowID      string
	Direction     string
	EntryPrice    int
	Contracts     int
	BetSize       float64
	Fee           float64
	Edge          sql.NullFloat64
	Strike        float64
	EntryBTC      float64
	EntryAt       string
	Outcome       string
	Profit        float64
	BankrollAfter float64
	SettledAt     string
}

// ListByStrategy 按策略取交易（结算时间升序）。strategyID 为空取全部。
func (s *Store) ListByStrategy(ctx context.Context, strategyID string, limit int) ([]Row, error) {
	q := `SELECT id, strategy_id, window_id, direction, entry_price, contracts,
	             bet_size, fee, edge, strike, entry_btc, entry_at,
	             outcome, profit, bankroll_after, settled_at
	      FROM trades`
	var args []interface{}
	if strategyID != "" {
		q += ` WHERE strategy_id = ?`
		args = append(args, strategyID)
	}
	q += ` ORDER BY settled_at ASC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "交易归档查询失败")
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.StrategyID, &r.WindowID, &r.Direction,
			&r.EntryPrice, &r.Contracts, &r.BetSize, &r.Fee, &r.Edge,
			&r.Strike, &r.EntryBTC, &r.EntryAt,
			&r.Outcome, &r.Profit, &r.BankrollAfter, &r.SettledAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count 归档的交易总数
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades`).Scan(&n)
	return n, err
}

// ExportCSV 导出交易到 CSV。strategyID 为空导出全部。
func (s *Store) ExportCSV(ctx context.Context, w io.Writer, strategyID string) error {
	rows, err := s.ListByStrategy(ctx, strategyID, 0)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"id", "strategy_id", "window_id", "direction", "entry_price_cents",
		"contracts", "bet_size", "fee", "edge", "strike", "entry_btc", "entry_at",
		"outcome", "profit", "bankroll_after", "settled_at"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		edge := ""
		if r.Edge.Valid {
			edge = strconv.FormatFloat(r.Edge.Float64, 'f', 4, 64)
		}
		rec := []string{
			r.ID, r.StrategyID, r.WindowID, r.Direction,
			strconv.Itoa(r.EntryPrice), strconv.Itoa(r.Contracts),
			fmt.Sprintf("%.2f", r.BetSize), fmt.Sprintf("%.4f", r.Fee), edge,
			fmt.Sprintf("%.2f", r.Strike), fmt.Sprintf("%.2f", r.EntryBTC), r.EntryAt,
			r.Outcome, fmt.Sprintf("%.4f", r.Profit), fmt.Sprintf("%.4f", r.BankrollAfter), r.SettledAt,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Close 关闭归档库
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
