package binance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	api "github.com/adshao/go-binance/v2"
	"github.com/newthinker/momentum/internal/collector"
	"github.com/newthinker/momentum/internal/core"
)

// pageLimit is the maximum klines per request
const pageLimit = 1000

// Binance serves close prices from Binance spot klines
type Binance struct {
	client *api.Client
}

var _ collector.HistoryProvider = (*Binance)(nil)

// New creates a new Binance provider. Klines are public, so no API key is needed.
func New(cfg collector.Config) *Binance {
	client := api.NewClient("", "")
	client.HTTPClient = collector.NewHTTPClient(cfg.Timeout)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	return &Binance{client: client}
}

// NewWithBaseURL creates a Binance provider with custom base URL (for testing)
func NewWithBaseURL(url string) *Binance {
	return New(collector.Config{BaseURL: url})
}

func (b *Binance) Name() string {
	return "binance"
}

// FetchHistory pages through klines between start and end. symbol is the
// compact pair form, e.g. BTCUSDT.
func (b *Binance) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.PriceSample, error) {
	if symbol == "" {
		return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("symbol cannot be empty"))
	}
	if end.IsZero() {
		end = time.Now()
	}

	var data []core.PriceSample
	cursor := start.UnixMilli()
	for cursor <= end.UnixMilli() {
		klines, err := b.client.NewKlinesService().
			Symbol(symbol).
			Interval(b.toInterval(interval)).
			StartTime(cursor).
			EndTime(end.UnixMilli()).
			Limit(pageLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("binance klines %s: %w", symbol, err)
		}

		data = append(data, toSamples(klines)...)
		if len(klines) < pageLimit {
			break
		}
		cursor = klines[len(klines)-1].OpenTime + 1
	}
	return data, nil
}

// toSamples keeps the close of every kline, stamped with its open time.
func toSamples(klines []*api.Kline) []core.PriceSample {
	data := make([]core.PriceSample, 0, len(klines))
	for _, k := range klines {
		price, err := strconv.ParseFloat(k.Close, 64)
		if err != nil || price <= 0 {
			continue
		}
		data = append(data, core.PriceSample{
			Price: price,
			Time:  time.UnixMilli(k.OpenTime).UTC(),
		})
	}
	return data
}

func (b *Binance) toInterval(interval string) string {
	switch interval {
	case "1m", "5m", "15m", "30m":
		return interval
	case "1h", "2h", "4h":
		return interval
	case "1d":
		return "1d"
	case "1w":
		return "1w"
	default:
		return "1d"
	}
}
