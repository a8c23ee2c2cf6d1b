package exchange

import (
	"fmt"
	"regexp"
	"strings"
)

// Market 上币的市场类型
type Market string

const (
	MarketSpot       Market = "Spot"
	MarketFutures    Market = "Futures"
	MarketLaunchpool Market = "Launchpool"
	MarketUnknown    Market = "Unknown"
)

func (m Market) ToString() string {
	return string(m)
}

// ParseMarket 把外部(LLM)返回的市场描述归一化
func ParseMarket(s string) Market {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spot":
		return MarketSpot
	case "future", "futures", "perpetual", "perpetuals", "perp", "contract", "swap":
		return MarketFutures
	case "launchpool":
		return MarketLaunchpool
	default:
		return MarketUnknown
	}
}

// TradingPair 交易对
type TradingPair struct {
	Base  string
	Quote string
}

func (s *TradingPair) IsZero() bool {
	return s.Base == "" || s.Quote == ""
}

func (s *TradingPair) ToString() string {
	return fmt.Sprintf("%s%s", s.Base, s.Quote)
}

func (s *TradingPair) ToSlashString() string {
	return fmt.Sprintf("%s/%s", s.Base, s.Quote)
}

// 只剥离稳定币报价, BTC/ETH 结尾的代币很多(WBTC, stETH)
var stableQuotes = []string{"FDUSD", "USDT", "USDC", "BUSD"}

func SplitSymbol(s string) (string, string) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, q := range stableQuotes {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return strings.TrimSuffix(s, q), q
		}
	}
	// fallback
	return s, ""
}

var tickerRegex = regexp.MustCompile(`^[A-Z0-9]{2,15}$`)

// NormalizeToken 大写并去掉报价币后缀, 不像代币的返回空串
func NormalizeToken(s string) string {
	base, _ := SplitSymbol(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if !tickerRegex.MatchString(base) {
		return ""
	}
	return base
}
