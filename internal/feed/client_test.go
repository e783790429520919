package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	// 2025-12-17 14:35:00 UTC，窗口起点 14:30（1765985400）
	return time.Unix(1765985700, 0)
}

func newTestClient(gammaURL, clobURL, krakenURL string) *Client {
	c := NewClient(Options{
		GammaEndpoint: gammaURL,
		ClobEndpoint:  clobURL,
	})
	c.kraken = newRestyClient(krakenURL, "", 5*time.Second)
	c.now = fixedNow
	return c
}

func gammaHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		slug := r.URL.Query().Get("slug")
		fmt.Fprintf(w, `[{
			"slug": %q,
			"conditionId": "0xcond",
			"question": "Bitcoin Up or Down?",
			"clobTokenIds": "[\"tok-up\",\"tok-down\"]",
			"outcomes": "[\"Up\",\"Down\"]",
			"closed": false
		}]`, slug)
	}
}

func clobHandler(upAsk, downAsk string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ask := upAsk
		if r.URL.Query().Get("token_id") == "tok-down" {
			ask = downAsk
		}
		w.Header().Set("Content-Type", "application/json")
		// asks/bids 最优价在末尾
		fmt.Fprintf(w, `{
			"asks": [{"price":"0.99","size":"10"},{"price":%q,"size":"100"}],
			"bids": [{"price":"0.01","size":"10"},{"price":"0.52","size":"80"}]
		}`, ask)
	}
}

func krakenHandler(last string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"error":[],"result":{"XXBTZUSD":{"c":[%q,"0.1"]}}}`, last)
	}
}

func TestCurrentSlug(t *testing.T) {
	c := NewClient(Options{})
	c.now = fixedNow
	assert.Equal(t, "btc-updown-15m-1765985400", c.CurrentSlug())
}

func TestWindowStart(t *testing.T) {
	assert.EqualValues(t, 1765985400, WindowStart("btc-updown-15m-1765985400"))
	assert.EqualValues(t, 0, WindowStart("nonsense"))
}

func TestPriceCents(t *testing.T) {
	assert.Equal(t, 56, priceCents("0.56"))
	assert.Equal(t, 5, priceCents("0.05"))
	assert.Equal(t, 100, priceCents("1.00"))
	assert.Equal(t, 0, priceCents("abc"))
	assert.Equal(t, 0, priceCents("-0.1"))
}

func TestDiscoverMarket(t *testing.T) {
	gamma := httptest.NewServer(gammaHandler(t))
	defer gamma.Close()

	c := newTestClient(gamma.URL, gamma.URL, gamma.URL)
	m, err := c.DiscoverMarket(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "btc-updown-15m-1765985400", m.Slug)
	assert.Equal(t, "tok-up", m.UpTokenID)
	assert.Equal(t, "tok-down", m.DownTokenID)
	assert.Equal(t, "0xcond", m.ConditionID)
	assert.Equal(t, int64(1765985400+900), m.EndAt.Unix())
}

func TestDiscoverMarketNoActiveWindow(t *testing.T) {
	gamma := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer gamma.Close()

	c := newTestClient(gamma.URL, gamma.URL, gamma.URL)
	_, err := c.DiscoverMarket(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveWindow)
}

func TestFetchQuote(t *testing.T) {
	clob := httptest.NewServer(clobHandler("0.60", "0.42"))
	defer clob.Close()

	c := newTestClient(clob.URL, clob.URL, clob.URL)
	q, err := c.FetchQuote(context.Background(), "tok-up")
	require.NoError(t, err)
	assert.Equal(t, 60, q.AskCents)
	assert.Equal(t, 52, q.BidCents)
}

func TestFetchSpotPriceCacheFallback(t *testing.T) {
	calls := 0
	kraken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			krakenHandler("90150.5")(w, r)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer kraken.Close()

	c := newTestClient(kraken.URL, kraken.URL, kraken.URL)
	price, err := c.FetchSpotPrice(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 90150.5, price, 1e-9)

	// 第二次请求失败，用缓存兜底
	price, err = c.FetchSpotPrice(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 90150.5, price, 1e-9)
}

func TestFetchTick(t *testing.T) {
	gamma := httptest.NewServer(gammaHandler(t))
	defer gamma.Close()
	clob := httptest.NewServer(clobHandler("0.60", "0.42"))
	defer clob.Close()
	kraken := httptest.NewServer(krakenHandler("90150.5"))
	defer kraken.Close()

	c := newTestClient(gamma.URL, clob.URL, kraken.URL)
	tick, err := c.FetchTick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "btc-updown-15m-1765985400", tick.WindowID)
	assert.Equal(t, 60, tick.UpAsk)
	assert.Equal(t, 42, tick.DownAsk)
	assert.InDelta(t, 90150.5, tick.AssetPrice, 1e-9)
	// strike 由引擎确立，feed 不填
	assert.Zero(t, tick.StrikePrice)
	assert.Equal(t, "tok-up", tick.UpTokenID)
}
