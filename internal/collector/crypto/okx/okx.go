package okx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/newthinker/momentum/internal/collector"
	"github.com/newthinker/momentum/internal/collector/crypto/pair"
	"github.com/newthinker/momentum/internal/core"
)

const (
	baseURL = "https://www.okx.com"
	// pageLimit is the maximum candles per history request
	pageLimit = 100
	maxPages  = 200
)

// OKX serves close prices from OKX history candles
type OKX struct {
	client  *http.Client
	baseURL string
}

var _ collector.HistoryProvider = (*OKX)(nil)

// New creates a new OKX provider
func New(cfg collector.Config) *OKX {
	o := &OKX{
		client:  collector.NewHTTPClient(cfg.Timeout),
		baseURL: baseURL,
	}
	if cfg.BaseURL != "" {
		o.baseURL = cfg.BaseURL
	}
	return o
}

// NewWithBaseURL creates an OKX provider with custom base URL (for testing)
func NewWithBaseURL(url string) *OKX {
	return New(collector.Config{BaseURL: url})
}

func (o *OKX) Name() string {
	return "okx"
}

// toInstID converts a compact symbol to an OKX instrument ID
// BTCUSDT -> BTC-USDT
func (o *OKX) toInstID(symbol string) (string, error) {
	p, err := pair.Parse(symbol, "USDT")
	if err != nil {
		return "", err
	}
	return p.Dashed(), nil
}

// FetchHistory walks history candles backwards from end until start is
// covered. OKX returns newest first; the result is chronological.
func (o *OKX) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.PriceSample, error) {
	instID, err := o.toInstID(symbol)
	if err != nil {
		return nil, err
	}
	if end.IsZero() {
		end = time.Now()
	}

	var data []core.PriceSample
	after := end.UnixMilli() + 1
	for pageNum := 0; pageNum < maxPages; pageNum++ {
		page, err := o.fetchPage(ctx, instID, o.toInterval(interval), after)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		oldest := page[0].Time
		for _, s := range page {
			if !s.Time.Before(start) && !s.Time.After(end) {
				data = append(data, s)
			}
		}
		if !oldest.After(start) || len(page) < pageLimit {
			break
		}
		after = oldest.UnixMilli()
	}

	slices.SortFunc(data, func(a, b core.PriceSample) int { return a.Time.Compare(b.Time) })
	return data, nil
}

// fetchPage returns one page of candles older than afterMs, oldest first.
func (o *OKX) fetchPage(ctx context.Context, instID, bar string, afterMs int64) ([]core.PriceSample, error) {
	q := url.Values{}
	q.Set("instId", instID)
	q.Set("bar", bar)
	q.Set("after", strconv.FormatInt(afterMs, 10))
	q.Set("limit", strconv.Itoa(pageLimit))

	var result okxCandleResponse
	if err := collector.GetJSON(ctx, o.client, o.baseURL+"/api/v5/market/history-candles?"+q.Encode(), &result); err != nil {
		return nil, fmt.Errorf("okx candles %s: %w", instID, err)
	}
	if result.Code != "0" {
		return nil, fmt.Errorf("okx error: %s", result.Msg)
	}

	data := make([]core.PriceSample, 0, len(result.Data))
	for i := len(result.Data) - 1; i >= 0; i-- {
		candle := result.Data[i]
		if len(candle) < 5 {
			continue
		}
		ts, err := strconv.ParseInt(candle[0], 10, 64)
		if err != nil {
			continue
		}
		closePrice, err := strconv.ParseFloat(candle[4], 64)
		if err != nil || closePrice <= 0 {
			continue
		}
		data = append(data, core.PriceSample{Price: closePrice, Time: time.UnixMilli(ts).UTC()})
	}
	return data, nil
}

func (o *OKX) toInterval(interval string) string {
	switch interval {
	case "1m", "5m", "15m", "30m":
		return interval
	case "1h":
		return "1H"
	case "2h":
		return "2H"
	case "4h":
		return "4H"
	case "1d":
		return "1D"
	case "1w":
		return "1W"
	default:
		return "1D"
	}
}

type okxCandleResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}
