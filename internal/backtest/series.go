package backtest

import (
	"slices"

	"github.com/newthinker/momentum/internal/core"
)

// PrepareSeries returns a chronologically ordered copy of samples with
// non-positive prices removed. When two samples share a timestamp the
// one appearing later in the input wins.
func PrepareSeries(samples []core.PriceSample) []core.PriceSample {
	out := make([]core.PriceSample, 0, len(samples))
	for _, s := range samples {
		if s.Price > 0 {
			out = append(out, s)
		}
	}
	slices.SortStableFunc(out, func(a, b core.PriceSample) int {
		return a.Time.Compare(b.Time)
	})

	deduped := out[:0]
	for i, s := range out {
		if i+1 < len(out) && out[i+1].Time.Equal(s.Time) {
			continue
		}
		deduped = append(deduped, s)
	}
	return slices.Clip(deduped)
}

// span returns the first and last timestamps of a prepared series.
func span(samples []core.PriceSample) (first, last core.PriceSample) {
	if len(samples) == 0 {
		return
	}
	return samples[0], samples[len(samples)-1]
}
