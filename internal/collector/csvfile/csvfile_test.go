package csvfile_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/newthinker/momentum/internal/collector/csvfile"
	"github.com/newthinker/momentum/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

func TestRead_FormatsAndOrder(t *testing.T) {
	in := `Date,Open,Close
2024-01-03,1,102.5
1704067200,1,100
2024-01-02T00:00:00Z,1,101
`
	samples, err := csvfile.Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, samples, 3)

	assert.Equal(t, []float64{100, 101, 102.5}, core.Prices(samples))
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), samples[0].Time)
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"missing columns", "a,b\n1,2\n", "header"},
		{"bad time", "timestamp,price\nyesterday,1\n", "line 2: invalid time"},
		{"bad price", "timestamp,price\n2024-01-01,abc\n", "line 2: invalid price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := csvfile.Read(strings.NewReader(tt.in))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestRead_ByteOrderMarks(t *testing.T) {
	src := "date,close\n2024-01-02,101.5\n2024-01-01,100\n"
	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String(src)
	require.NoError(t, err)

	inputs := map[string]string{
		"utf8 bom": "\ufeff" + src,
		"utf16le":  utf16,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			samples, err := csvfile.Read(strings.NewReader(in))
			require.NoError(t, err)
			require.Len(t, samples, 2)
			assert.Equal(t, 100.0, samples[0].Price)
			assert.Equal(t, 101.5, samples[1].Price)
		})
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	samples := []core.PriceSample{
		{Price: 3500.25, Time: start},
		{Price: 3490, Time: start.Add(time.Hour)},
	}

	var buf bytes.Buffer
	require.NoError(t, csvfile.Write(&buf, samples))
	assert.True(t, strings.HasPrefix(buf.String(), "timestamp,price\n"))

	got, err := csvfile.Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, samples, got)
}

func TestProvider_FetchHistory(t *testing.T) {
	dir := t.TempDir()
	body := "timestamp,price\n2024-01-01,100\n2024-01-02,101\n2024-01-03,102\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ETH-USD.csv"), []byte(body), 0o644))

	p := csvfile.New(dir)
	assert.Equal(t, "csv", p.Name())

	data, err := p.FetchHistory(context.Background(), "ETH-USD",
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), time.Time{}, "1d")
	require.NoError(t, err)
	assert.Equal(t, []float64{101, 102}, core.Prices(data))

	_, err = p.FetchHistory(context.Background(), "BTC-USD", time.Time{}, time.Time{}, "1d")
	assert.ErrorIs(t, err, core.ErrInvalidParams)
}
