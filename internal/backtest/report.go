package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/momentum/internal/core"
	"github.com/newthinker/momentum/internal/storage/archive"
	"gopkg.in/yaml.v3"
)

// Report output formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Summary combines the metrics of several per-symbol results.
type Summary struct {
	Symbols        int     `json:"symbols" yaml:"symbols"`
	StartingCash   float64 `json:"starting_cash" yaml:"starting_cash"`
	StartingValue  float64 `json:"starting_value" yaml:"starting_value"`
	FinalValue     float64 `json:"final_value" yaml:"final_value"`
	TotalReturnPct float64 `json:"total_return_pct" yaml:"total_return_pct"`
	TotalPnL       float64 `json:"total_pnl" yaml:"total_pnl"`
	TotalTrades    int     `json:"total_trades" yaml:"total_trades"`
	WinRatePct     float64 `json:"win_rate_pct" yaml:"win_rate_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
}

// Report is the artifact of one backtest invocation.
type Report struct {
	ID        string    `json:"id" yaml:"id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Strategy  string    `json:"strategy" yaml:"strategy"`
	Preset    string    `json:"preset,omitempty" yaml:"preset,omitempty"`
	Interval  string    `json:"interval,omitempty" yaml:"interval,omitempty"`
	Summary   Summary   `json:"summary" yaml:"summary"`
	Results   []*Result `json:"results" yaml:"results"`
}

// NewReport builds a report over results.
func NewReport(strategyName, preset, interval string, results []*Result) *Report {
	return &Report{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Strategy:  strategyName,
		Preset:    preset,
		Interval:  interval,
		Summary:   Summarize(results),
		Results:   results,
	}
}

// Summarize combines results: returns and win rates are averaged,
// P&L, values and trade counts are summed, drawdown is the worst one.
func Summarize(results []*Result) Summary {
	var s Summary
	for _, r := range results {
		if r == nil {
			continue
		}
		m := r.Metrics
		s.Symbols++
		s.StartingCash += m.StartingCash
		s.StartingValue += m.StartingValue
		s.FinalValue += m.FinalValue
		s.TotalReturnPct += m.TotalReturnPct
		s.TotalPnL += m.TotalPnL
		s.TotalTrades += m.TotalTrades
		s.WinRatePct += m.WinRatePct
		s.MaxDrawdownPct = max(s.MaxDrawdownPct, m.MaxDrawdownPct)
	}
	if s.Symbols > 0 {
		s.TotalReturnPct /= float64(s.Symbols)
		s.WinRatePct /= float64(s.Symbols)
	}
	return s
}

// Encode serialises the report as YAML or JSON.
func (r *Report) Encode(format string) ([]byte, error) {
	switch format {
	case FormatYAML, "yml", "":
		return yaml.Marshal(r)
	case FormatJSON:
		return json.MarshalIndent(r, "", "  ")
	default:
		return nil, core.WrapError(core.ErrInvalidParams, fmt.Errorf("unsupported report format %q", format))
	}
}

// Path is the storage path of the report in the given format.
func (r *Report) Path(format string) string {
	ext := FormatYAML
	if format == FormatJSON {
		ext = FormatJSON
	}
	return fmt.Sprintf("reports/%s/%s_%s.%s", r.Strategy, r.CreatedAt.Format("20060102T150405Z"), r.ID, ext)
}

// Save writes the report to storage and returns its path.
func (r *Report) Save(ctx context.Context, storage archive.Storage, format string) (string, error) {
	data, err := r.Encode(format)
	if err != nil {
		return "", err
	}
	path := r.Path(format)
	if err := storage.Write(ctx, path, data); err != nil {
		return "", fmt.Errorf("saving report %s: %w", r.ID, err)
	}
	return path, nil
}

// Symbols returns the sorted symbols covered by the report.
func (r *Report) Symbols() []string {
	out := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		if res != nil {
			out = append(out, res.Symbol)
		}
	}
	slices.Sort(out)
	return out
}
