package symbol

import (
	"strings"
)

// Symbol splits an instrument ticker into base and quote assets. The
// canonical form used throughout skipper is the bare perp ticker ("BTCUSDT");
// Parse also accepts slash and contract notations ("BTC/USDT", "BTC/USDT:USDT")
// as they show up in universe files.
type Symbol struct {
	Base  string
	Quote string
}

// Ticker returns the canonical exchange ticker.
func (s Symbol) Ticker() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

func (s Symbol) Pair() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

var quoteAssets = []string{"USDT", "USDC", "USD", "BTC", "ETH"}

func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}
	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}
	for _, quote := range quoteAssets {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{
				Base:  s[:len(s)-len(quote)],
				Quote: quote,
			}
		}
	}
	return Symbol{}
}

// Normalize returns the canonical ticker, or "" if s is unrecognizable.
func Normalize(s string) string {
	return Parse(s).Ticker()
}

// NormalizeList canonicalizes and dedupes, keeping first-seen order.
// Unrecognizable entries are kept uppercased rather than dropped: the
// universe owner decides what is tradable, not this helper.
func NormalizeList(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		norm := Normalize(s)
		if norm == "" {
			norm = strings.ToUpper(strings.TrimSpace(s))
			if norm == "" {
				continue
			}
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

func IsValid(s string) bool {
	return Parse(s).Ticker() != ""
}
