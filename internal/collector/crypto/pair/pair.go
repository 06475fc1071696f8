// Package pair parses crypto trading pair symbols.
package pair

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/newthinker/momentum/internal/core"
)

// Quote currencies recognised in compact symbols, longest match first.
var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "USD", "BTC", "ETH", "BNB"}

var validPart = regexp.MustCompile(`^[A-Z0-9]{2,20}$`)

// Pair is a base/quote trading pair.
type Pair struct {
	Base  string
	Quote string
}

// Parse accepts "BTC", "btc", "BTC-USDT", "BTC/USDT", "BTC_USDT" or
// "BTCUSDT". A missing quote currency is filled with defaultQuote.
func Parse(input, defaultQuote string) (Pair, error) {
	s := strings.ToUpper(strings.TrimSpace(input))
	if s == "" {
		return Pair{}, core.WrapError(core.ErrInvalidParams, fmt.Errorf("symbol cannot be empty"))
	}
	if len(s) > 30 {
		return Pair{}, core.WrapError(core.ErrInvalidParams, fmt.Errorf("symbol too long: %s", input))
	}

	var p Pair
	if i := strings.IndexAny(s, "-/_"); i >= 0 {
		p = Pair{Base: s[:i], Quote: s[i+1:]}
		if p.Quote == "" {
			return Pair{}, core.WrapError(core.ErrInvalidParams, fmt.Errorf("missing quote currency: %s", input))
		}
	} else {
		p = Pair{Base: s}
		for _, q := range quoteCurrencies {
			if strings.HasSuffix(s, q) && len(s) > len(q) {
				p = Pair{Base: strings.TrimSuffix(s, q), Quote: q}
				break
			}
		}
	}
	if p.Quote == "" {
		p.Quote = strings.ToUpper(defaultQuote)
	}

	if !validPart.MatchString(p.Base) || !validPart.MatchString(p.Quote) {
		return Pair{}, core.WrapError(core.ErrInvalidParams, fmt.Errorf("invalid symbol format: %s", input))
	}
	return p, nil
}

// Compact returns the exchange form without separator, e.g. BTCUSDT.
func (p Pair) Compact() string {
	return p.Base + p.Quote
}

// Dashed returns the form used by OKX instrument IDs, e.g. BTC-USDT.
func (p Pair) Dashed() string {
	return p.Base + "-" + p.Quote
}

func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}
