// Package csvfile serves price history from local CSV files, one file per
// symbol, with a header naming a time column and a price column.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/momentum/internal/collector"
	"github.com/newthinker/momentum/internal/core"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	timeColumns  = []string{"timestamp", "time", "date", "datetime"}
	priceColumns = []string{"price", "close", "adj_close"}
	timeLayouts  = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}
)

// Provider reads <dir>/<symbol>.csv.
type Provider struct {
	dir string
}

var _ collector.HistoryProvider = (*Provider)(nil)

// New creates a provider rooted at dir.
func New(dir string) *Provider {
	return &Provider{dir: dir}
}

func (p *Provider) Name() string {
	return "csv"
}

// Path returns the file backing symbol.
func (p *Provider) Path(symbol string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(symbol)
	return filepath.Join(p.dir, name+".csv")
}

// FetchHistory loads the file for symbol and keeps samples within
// [start, end]. A zero bound is open. The interval is ignored.
func (p *Provider) FetchHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]core.PriceSample, error) {
	if symbol == "" {
		return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("symbol cannot be empty"))
	}
	f, err := os.Open(p.Path(symbol))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("no history file for %s", symbol))
		}
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	samples, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Path(symbol), err)
	}

	out := samples[:0]
	for _, s := range samples {
		if !start.IsZero() && s.Time.Before(start) {
			continue
		}
		if !end.IsZero() && s.Time.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Read parses CSV history sorted by time. Input is UTF-8 unless a byte
// order mark says UTF-16; a UTF-8 BOM is stripped.
func Read(r io.Reader) ([]core.PriceSample, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	ti, pi := column(header, timeColumns), column(header, priceColumns)
	if ti < 0 || pi < 0 {
		return nil, fmt.Errorf("header %v needs one of %v and one of %v", header, timeColumns, priceColumns)
	}

	var samples []core.PriceSample
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ts, err := parseTime(rec[ti])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(rec[pi]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid price %q", line, rec[pi])
		}
		samples = append(samples, core.PriceSample{Price: price, Time: ts})
	}

	slices.SortStableFunc(samples, func(a, b core.PriceSample) int { return a.Time.Compare(b.Time) })
	return samples, nil
}

// Write emits samples as "timestamp,price" CSV with RFC 3339 times.
func Write(w io.Writer, samples []core.PriceSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "price"}); err != nil {
		return err
	}
	for _, s := range samples {
		rec := []string{s.Time.UTC().Format(time.RFC3339), strconv.FormatFloat(s.Price, 'f', -1, 64)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func column(header, names []string) int {
	for i, h := range header {
		if slices.Contains(names, strings.ToLower(strings.TrimSpace(h))) {
			return i
		}
	}
	return -1
}

func parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		// millisecond epochs are 13 digits
		if secs > 1e12 {
			return time.UnixMilli(secs).UTC(), nil
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", v)
}
