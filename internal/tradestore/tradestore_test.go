package tradestore

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/paperbet/internal/domain"
)

func sampleTrade(id, windowID string, profit float64) *domain.SettledTrade {
	edge := 0.204
	outcome := domain.TradeOutcomeWin
	if profit < 0 {
		outcome = domain.TradeOutcomeLoss
	}
	return &domain.SettledTrade{
		Position: domain.Position{
			ID:         id,
			Timestamp:  time.Date(2025, 12, 17, 14, 35, 0, 0, time.UTC),
			WindowID:   windowID,
			Strike:     90000,
			AssetPrice: 90150,
			MinsLeft:   9,
			Direction:  domain.SideUp,
			EntryPrice: 60,
			Contracts:  16,
			BetSize:    10,
			Fee:        0.0768,
			Edge:       &edge,
		},
		Outcome:       outcome,
		Profit:        profit,
		BankrollAfter: 1000 + profit,
		SettledAt:     time.Date(2025, 12, 17, 14, 45, 0, 0, time.UTC),
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "trades.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, "s1_fixed_min_5", sampleTrade("t1", "w1", 5.92)))
	require.NoError(t, s.Record(ctx, "s1_fixed_min_5", sampleTrade("t2", "w2", -10.08)))
	require.NoError(t, s.Record(ctx, "s3_sentiment_odds70_wait0", sampleTrade("t3", "w1", 3.2)))

	rows, err := s.ListByStrategy(ctx, "s1_fixed_min_5", 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "w1", rows[0].WindowID)
	assert.Equal(t, 60, rows[0].EntryPrice)
	assert.True(t, rows[0].Edge.Valid)
	assert.InDelta(t, 0.204, rows[0].Edge.Float64, 1e-9)

	all, err := s.ListByStrategy(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRecordIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tr := sampleTrade("t1", "w1", 5.92)
	require.NoError(t, s.Record(ctx, "s1_fixed_min_5", tr))
	require.NoError(t, s.Record(ctx, "s1_fixed_min_5", tr))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "同一仓位 ID 重复归档应该只保留一条")
}

// TestRecordAllBackfill 批量回填：重跑同一批交易按主键幂等
func TestRecordAllBackfill(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	history := []domain.SettledTrade{
		*sampleTrade("t1", "btc-updown-15m-100", 5.92),
		*sampleTrade("t2", "btc-updown-15m-101", -10.08),
	}
	s.RecordAll(ctx, "s1_fixed_min_5", history)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// 归档库落后于状态快照时会整批重放，不应产生重复行
	s.RecordAll(ctx, "s1_fixed_min_5", history)
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecordNoEdge(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tr := sampleTrade("t1", "w1", 3.2)
	tr.Edge = nil
	require.NoError(t, s.Record(ctx, "s3_sentiment_always_favorite", tr))

	rows, err := s.ListByStrategy(ctx, "s3_sentiment_always_favorite", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Edge.Valid, "sentiment 交易的 edge 应该为 NULL")
}

func TestExportCSV(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, "s1_fixed_min_5", sampleTrade("t1", "w1", 5.92)))

	var buf bytes.Buffer
	require.NoError(t, s.ExportCSV(ctx, &buf, ""))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "strategy_id")
	assert.Contains(t, lines[1], "s1_fixed_min_5")
	assert.Contains(t, lines[1], "w1")
}
