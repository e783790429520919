package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/paperbet/internal/domain"
	"github.com/betbot/paperbet/pkg/cache"
	"github.com/betbot/paperbet/pkg/ratelimit"
)

var log = logrus.WithField("component", "feed")

const (
	// slugPrefix Polymarket BTC 15 分钟市场的 slug 前缀，
	// 完整形如 btc-updown-15m-1765985400（时间戳为窗口起点）
	slugPrefix = "btc-updown-15m"

	windowSeconds = 900
)

// Options 行情客户端配置
type Options struct {
	GammaEndpoint string
	ClobEndpoint  string
	KrakenPair    string // 默认 XBTUSD
	Proxy         string // 可选 HTTP 代理，为空走直连（resty 也会读 HTTP_PROXY 环境变量）
	Timeout       time.Duration
}

// Client 组装 tick 的行情客户端：Gamma 做市场发现，
// CLOB 取两侧盘口，Kraken 取现货价。
type Client struct {
	gamma  *resty.Client
	clob   *resty.Client
	kraken *resty.Client

	pair       string
	spotCache  *cache.SpotPriceCache
	marketInfo *cache.MarketCache[*Market]
	limits     *ratelimit.Manager
	now        func() time.Time
}

// Market 一个 15 分钟窗口对应的 Polymarket 市场
type Market struct {
	Slug        string
	ConditionID string
	Question    string
	UpTokenID   string
	DownTokenID string
	StartAt     time.Time // 窗口起点（slug 时间戳）
	EndAt       time.Time
}

// Quote 一侧盘口的最优报价（分）
type Quote struct {
	AskCents int
	BidCents int
}

func newRestyClient(base, proxy string, timeout time.Duration) *resty.Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(base, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "paperbet/1.0")
	if proxy != "" {
		c.SetProxy(proxy)
	}
	return c
}

// NewClient 创建行情客户端
func NewClient(opts Options) *Client {
	if opts.GammaEndpoint == "" {
		opts.GammaEndpoint = "https://gamma-api.polymarket.com"
	}
	if opts.ClobEndpoint == "" {
		opts.ClobEndpoint = "https://clob.polymarket.com"
	}
	if opts.KrakenPair == "" {
		opts.KrakenPair = "XBTUSD"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Client{
		gamma:      newRestyClient(opts.GammaEndpoint, opts.Proxy, opts.Timeout),
		clob:       newRestyClient(opts.ClobEndpoint, opts.Proxy, opts.Timeout),
		kraken:     newRestyClient("https://api.kraken.com", opts.Proxy, opts.Timeout),
		pair:       opts.KrakenPair,
		spotCache:  cache.NewSpotPriceCache(),
		marketInfo: cache.NewMarketCache[*Market](),
		limits:     ratelimit.NewManager(),
		now:        time.Now,
	}
}

// CurrentSlug 当前窗口的市场 slug（时间按 15 分钟对齐取整）
func (c *Client) CurrentSlug() string {
	start := c.now().Truncate(windowSeconds * time.Second).Unix()
	return fmt.Sprintf("%s-%d", slugPrefix, start)
}

// WindowStart 从 slug 提取窗口起点时间戳，解析失败返回 0
func WindowStart(slug string) int64 {
	idx := strings.LastIndex(slug, "-")
	if idx < 0 {
		return 0
	}
	var ts int64
	if _, err := fmt.Sscanf(slug[idx+1:], "%d", &ts); err != nil {
		return 0
	}
	return ts
}

// gammaMarket Gamma /markets 返回的市场（只取需要的字段）
type gammaMarket struct {
	Slug         string `json:"slug"`
	ConditionID  string `json:"conditionId"`
	Question     string `json:"question"`
	ClobTokenIDs string `json:"clobTokenIds"` // JSON 字符串，如 `["0x..","0x.."]`
	Outcomes     string `json:"outcomes"`     // 同上，如 `["Up","Down"]`
	Closed       bool   `json:"closed"`
}

// DiscoverMarket 按当前时间发现活跃市场。
// 新窗口的市场 Gamma 建档可能晚几秒，此时返回 ErrNoActiveWindow。
func (c *Client) DiscoverMarket(ctx context.Context) (*Market, error) {
	slug := c.CurrentSlug()
	if m, ok := c.marketInfo.Get(slug); ok {
		return m, nil
	}

	if err := c.limits.Wait(ctx, "gamma:markets"); err != nil {
		return nil, err
	}
	var markets []gammaMarket
	resp, err := c.gamma.R().
		SetContext(ctx).
		SetQueryParam("slug", slug).
		SetResult(&markets).
		Get("/markets")
	if err != nil {
		return nil, errors.Wrap(err, "gamma 请求失败")
	}
	if resp.IsError() {
		return nil, errors.Errorf("gamma 返回 %d: %s", resp.StatusCode(), resp.String())
	}
	if len(markets) == 0 || markets[0].Closed {
		return nil, ErrNoActiveWindow
	}

	m, err := parseGammaMarket(&markets[0])
	if err != nil {
		return nil, err
	}
	// 缓存到窗口结束为止
	if ttl := m.EndAt.Sub(c.now()); ttl > 0 {
		c.marketInfo.Set(slug, m, ttl)
	}
	log.Infof("🔍 发现市场 %s (up=%s… down=%s…)", m.Slug, head(m.UpTokenID), head(m.DownTokenID))
	return m, nil
}

func parseGammaMarket(gm *gammaMarket) (*Market, error) {
	var tokenIDs, outcomes []string
	if err := json.Unmarshal([]byte(gm.ClobTokenIDs), &tokenIDs); err != nil {
		return nil, errors.Wrapf(err, "解析 clobTokenIds 失败: %s", gm.ClobTokenIDs)
	}
	if err := json.Unmarshal([]byte(gm.Outcomes), &outcomes); err != nil {
		return nil, errors.Wrapf(err, "解析 outcomes 失败: %s", gm.Outcomes)
	}
	if len(tokenIDs) != 2 || len(outcomes) != 2 {
		return nil, errors.Errorf("市场 %s 的 outcome 数量不是 2", gm.Slug)
	}

	m := &Market{
		Slug:        gm.Slug,
		ConditionID: gm.ConditionID,
		Question:    gm.Question,
	}
	// outcomes 与 clobTokenIds 一一对应，顺序不保证 Up 在前
	for i, o := range outcomes {
		switch strings.ToLower(o) {
		case "up", "yes":
			m.UpTokenID = tokenIDs[i]
		case "down", "no":
			m.DownTokenID = tokenIDs[i]
		}
	}
	if m.UpTokenID == "" || m.DownTokenID == "" {
		return nil, errors.Errorf("市场 %s 缺少 UP/DOWN token", gm.Slug)
	}

	start := WindowStart(gm.Slug)
	if start > 0 {
		m.StartAt = time.Unix(start, 0)
		m.EndAt = time.Unix(start+windowSeconds, 0)
	}
	return m, nil
}

// clobBook CLOB /book 返回的订单簿
type clobBook struct {
	Bids []bookLevel `json:"bids"`
	Asks []bookLevel `json:"asks"`
}

type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// FetchQuote 取一侧的最优买卖价。空盘口返回零值 Quote（不视为错误）。
func (c *Client) FetchQuote(ctx context.Context, tokenID string) (Quote, error) {
	if err := c.limits.Wait(ctx, "clob:book"); err != nil {
		return Quote{}, err
	}
	var book clobBook
	resp, err := c.clob.R().
		SetContext(ctx).
		SetQueryParam("token_id", tokenID).
		SetResult(&book).
		Get("/book")
	if err != nil {
		return Quote{}, errors.Wrap(err, "clob 请求失败")
	}
	if resp.IsError() {
		return Quote{}, errors.Errorf("clob 返回 %d: %s", resp.StatusCode(), resp.String())
	}

	var q Quote
	// CLOB 的 asks/bids 按价格排序，最优价在数组末尾
	if len(book.Asks) > 0 {
		q.AskCents = priceCents(book.Asks[len(book.Asks)-1].Price)
	}
	if len(book.Bids) > 0 {
		q.BidCents = priceCents(book.Bids[len(book.Bids)-1].Price)
	}
	return q, nil
}

// priceCents 把 "0.56" 这类价格串转成分。解析失败按 0（无报价）处理。
func priceCents(s string) int {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	cents := d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	if cents < 0 || cents > 100 {
		return 0
	}
	return int(cents)
}

// krakenTicker Kraken /0/public/Ticker 返回结构
type krakenTicker struct {
	Error  []string `json:"error"`
	Result map[string]struct {
		C []string `json:"c"` // [last trade price, lot volume]
	} `json:"result"`
}

// FetchSpotPrice 取现货最新成交价。请求失败时回退到 30 秒内的缓存值。
func (c *Client) FetchSpotPrice(ctx context.Context) (float64, error) {
	if werr := c.limits.Wait(ctx, "kraken:ticker"); werr != nil {
		return 0, werr
	}
	var out krakenTicker
	resp, err := c.kraken.R().
		SetContext(ctx).
		SetQueryParam("pair", c.pair).
		SetResult(&out).
		Get("/0/public/Ticker")
	if err == nil && !resp.IsError() && len(out.Error) == 0 {
		for _, t := range out.Result {
			if len(t.C) > 0 {
				d, derr := decimal.NewFromString(t.C[0])
				if derr == nil && d.IsPositive() {
					price, _ := d.Float64()
					c.spotCache.Set(c.pair, price)
					return price, nil
				}
			}
		}
	}

	if cached, ok := c.spotCache.Get(c.pair); ok {
		log.Warnf("⚠️ Kraken 取价失败，使用缓存现货价 %.2f", cached)
		return cached, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "kraken 请求失败")
	}
	return 0, errors.Errorf("kraken 无可用报价: %v", out.Error)
}

// FetchTick 组装一个完整 tick：市场发现 + 两侧盘口 + 现货价。
// strike 留 0，由引擎的 Window Tracker 确立。
func (c *Client) FetchTick(ctx context.Context) (*domain.Tick, error) {
	market, err := c.DiscoverMarket(ctx)
	if err != nil {
		return nil, err
	}

	minsLeft := market.EndAt.Sub(c.now()).Minutes()
	if minsLeft < -1 {
		// 窗口已过但新窗口还没建档
		return nil, ErrNoActiveWindow
	}

	spot, err := c.FetchSpotPrice(ctx)
	if err != nil {
		return nil, err
	}

	upQuote, err := c.FetchQuote(ctx, market.UpTokenID)
	if err != nil {
		return nil, err
	}
	downQuote, err := c.FetchQuote(ctx, market.DownTokenID)
	if err != nil {
		return nil, err
	}

	tick := &domain.Tick{
		Timestamp:   c.now(),
		WindowID:    market.Slug,
		MarketID:    market.ConditionID,
		Question:    market.Question,
		MinsLeft:    minsLeft,
		AssetPrice:  spot,
		UpAsk:       upQuote.AskCents,
		UpBid:       upQuote.BidCents,
		DownAsk:     downQuote.AskCents,
		DownBid:     downQuote.BidCents,
		UpTokenID:   market.UpTokenID,
		DownTokenID: market.DownTokenID,
	}
	if err := tick.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidTick, err.Error())
	}
	return tick, nil
}

func head(s string) string {
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}
