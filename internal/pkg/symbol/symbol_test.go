package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in    string
		base  string
		quote string
	}{
		{"BTCUSDT", "BTC", "USDT"},
		{"btcusdt", "BTC", "USDT"},
		{" ETHUSDC ", "ETH", "USDC"},
		{"BTC/USDT", "BTC", "USDT"},
		{"BTC/USDT:USDT", "BTC", "USDT"},
		{"SOLBTC", "SOL", "BTC"},
		{"USDT", "", ""},
		{"", "", ""},
		{"garbage", "", ""},
	}
	for _, tc := range cases {
		got := Parse(tc.in)
		assert.Equal(t, tc.base, got.Base, "base of %q", tc.in)
		assert.Equal(t, tc.quote, got.Quote, "quote of %q", tc.in)
	}
}

func TestTickerAndPair(t *testing.T) {
	s := Parse("BTC/USDT:USDT")
	assert.Equal(t, "BTCUSDT", s.Ticker())
	assert.Equal(t, "BTC/USDT", s.Pair())
	assert.Empty(t, Symbol{}.Ticker())
}

func TestNormalizeList(t *testing.T) {
	in := []string{"btcusdt", "BTC/USDT", "ETHUSDT", "", "  ", "weird", "ETHUSDT"}
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "WEIRD"}, NormalizeList(in))
	assert.Nil(t, NormalizeList(nil))
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("BTCUSDT"))
	assert.True(t, IsValid("BTC/USDT"))
	assert.False(t, IsValid("USDT"))
	assert.False(t, IsValid(""))
}
