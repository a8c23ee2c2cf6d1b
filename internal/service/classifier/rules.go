package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/KNICEX/listing-agent/internal/service/exchange"
)

// MarketFunc 根据小写后的消息判断市场类型
type MarketFunc func(lower string) exchange.Market

// MarketRule 命中任一关键词即返回 Market
type MarketRule struct {
	Market   exchange.Market
	Keywords []string
}

// KeywordMarket 按顺序检查, 返回第一个命中的市场类型, 都不命中为 Unknown
func KeywordMarket(rules ...MarketRule) MarketFunc {
	return func(lower string) exchange.Market {
		for _, rule := range rules {
			for _, kw := range rule.Keywords {
				if strings.Contains(lower, kw) {
					return rule.Market
				}
			}
		}
		return exchange.MarketUnknown
	}
}

func FixedMarket(market exchange.Market) MarketFunc {
	return func(string) exchange.Market {
		return market
	}
}

// RuleSet 单个交易所的识别规则
type RuleSet struct {
	Exchange string
	// Phrases 忽略大小写的子串匹配, 不做分词
	Phrases  []string
	Patterns []*regexp.Regexp
	Market   MarketFunc
	// Generic 额外使用通用代币提取
	Generic bool
	// StrictGeneric 通用提取中存在强位置(括号, $前缀, USDT交易对)的候选时只保留这些候选
	StrictGeneric bool
}

func (r RuleSet) marketOf(lower string) exchange.Market {
	if r.Market == nil {
		return exchange.MarketUnknown
	}
	return r.Market(lower)
}

var (
	genericSymbolRegex = regexp.MustCompile(`\b([A-Z0-9]{2,10})\b`)
	genericDollarRegex = regexp.MustCompile(`\$([A-Z0-9]{2,10})`)

	strongParenRegex = regexp.MustCompile(`\(([A-Z0-9]{2,10})\)`)
	strongPairRegex  = regexp.MustCompile(`\b([A-Z0-9]{2,10})(?:USDT|USDC)\b`)
	// ZK (ZKsync): 代币后跟带小写字母的全称
	strongNamedRegex = regexp.MustCompile(`\b([A-Z0-9]{2,10})\s+\([^)]*[a-z][^)]*\)`)
)

// 通用提取的停用词: 市场/动作词汇与交易所名
var genericStopWords = map[string]struct{}{
	"WILL": {}, "LIST": {}, "SPOT": {}, "FUTURES": {}, "TRADING": {}, "PERPETUAL": {},
	"CONTRACT": {}, "LAUNCH": {}, "UPBIT": {}, "OKX": {}, "BYBIT": {}, "BITHUMB": {},
	"BINANCE": {}, "COINBASE": {}, "USDT": {}, "USDC": {}, "KRW": {}, "BTC": {}, "ETH": {},
	"NEW": {}, "THE": {}, "AND": {}, "FOR": {}, "UTC": {}, "API": {},
}

func DefaultRuleSets() []RuleSet {
	return []RuleSet{
		{
			Exchange: "Binance",
			Phrases:  []string{"Binance Will List", "Binance Futures Will Launch", "Introducing"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)Introducing\s+[^()\n]*?\((\w+)\)`),
				regexp.MustCompile(`(?i)Binance Will List\s+[^()\n]*?\((\w+)\)`),
				regexp.MustCompile(`(?i)Binance Futures Will Launch.*?(\w+) Perpetual Contract`),
				regexp.MustCompile(`(?i)Binance Futures Will Launch.*?(\w+USDT)`),
				// 多币种公告: Foo (FOO) and Bar (BAR) / FOOUSDT and BARUSDT
				strongParenRegex,
				strongPairRegex,
			},
			Market: KeywordMarket(
				MarketRule{Market: exchange.MarketFutures, Keywords: []string{"futures"}},
				MarketRule{Market: exchange.MarketSpot, Keywords: []string{"spot"}},
				MarketRule{Market: exchange.MarketLaunchpool, Keywords: []string{"launchpool"}},
			),
		},
		{
			Exchange: "Coinbase",
			Phrases:  []string{"Coinbase Will List", "Coinbase will add support for", "Assets added to the roadmap today"},
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)Assets added to the roadmap today:.*?\((\w+)\)`),
				regexp.MustCompile(`(?i)Coinbase will add support for\s+[^()\n]*?\((\w+)\)`),
				regexp.MustCompile(`(?i)Coinbase will add support for\s+(\w+)`),
				strongParenRegex,
			},
			Market: FixedMarket(exchange.MarketSpot),
		},
		{
			Exchange:      "OKX",
			Phrases:       []string{"OKX to list", "OKX will list", "OKX announces the listing of"},
			Generic:       true,
			StrictGeneric: true,
			Market: KeywordMarket(
				MarketRule{Market: exchange.MarketSpot, Keywords: []string{"spot trading"}},
				MarketRule{Market: exchange.MarketFutures, Keywords: []string{"perpetual", "futures"}},
			),
		},
		{
			Exchange:      "Bybit",
			Phrases:       []string{"Bybit to list", "Bybit will list", "Bybit announces the listing of"},
			Generic:       true,
			StrictGeneric: true,
			Market: KeywordMarket(
				MarketRule{Market: exchange.MarketFutures, Keywords: []string{"perpetual contract", "futures"}},
				MarketRule{Market: exchange.MarketSpot, Keywords: []string{"spot"}},
			),
		},
		{
			Exchange:      "Upbit",
			Phrases:       []string{"Upbit Will List", "Upbit announces the listing of"},
			Generic:       true,
			StrictGeneric: true,
			Market:        FixedMarket(exchange.MarketSpot),
		},
		{
			Exchange:      "Bithumb",
			Phrases:       []string{"Bithumb Will List", "Bithumb announces the listing of"},
			Generic:       true,
			StrictGeneric: true,
			Market:        FixedMarket(exchange.MarketSpot),
		},
	}
}

// RuleConfig 配置文件中的规则, 用于覆盖或新增交易所
type RuleConfig struct {
	Exchange string   `mapstructure:"exchange"`
	Phrases  []string `mapstructure:"phrases"`
	Patterns []string `mapstructure:"patterns"`
	Markets  []struct {
		Market   string   `mapstructure:"market"`
		Keywords []string `mapstructure:"keywords"`
	} `mapstructure:"markets"`
	// Market 固定市场类型, 设置后忽略 Markets
	Market        string `mapstructure:"market"`
	Generic       bool   `mapstructure:"generic"`
	StrictGeneric *bool  `mapstructure:"strict_generic"`
}

func NewRuleSet(cfg RuleConfig) (RuleSet, error) {
	if strings.TrimSpace(cfg.Exchange) == "" {
		return RuleSet{}, fmt.Errorf("rule set without exchange")
	}
	if len(cfg.Phrases) == 0 {
		return RuleSet{}, fmt.Errorf("rule set %s has no phrases", cfg.Exchange)
	}

	rs := RuleSet{
		Exchange:      strings.TrimSpace(cfg.Exchange),
		Phrases:       cfg.Phrases,
		Generic:       cfg.Generic,
		StrictGeneric: cfg.StrictGeneric == nil || *cfg.StrictGeneric,
	}
	for _, p := range cfg.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return RuleSet{}, fmt.Errorf("rule set %s: compile pattern %q: %w", cfg.Exchange, p, err)
		}
		rs.Patterns = append(rs.Patterns, re)
	}
	if len(rs.Patterns) == 0 && !rs.Generic {
		return RuleSet{}, fmt.Errorf("rule set %s has neither patterns nor generic extraction", cfg.Exchange)
	}

	if cfg.Market != "" {
		rs.Market = FixedMarket(exchange.ParseMarket(cfg.Market))
	} else {
		rules := make([]MarketRule, 0, len(cfg.Markets))
		for _, m := range cfg.Markets {
			kws := make([]string, 0, len(m.Keywords))
			for _, kw := range m.Keywords {
				kws = append(kws, strings.ToLower(kw))
			}
			rules = append(rules, MarketRule{Market: exchange.ParseMarket(m.Market), Keywords: kws})
		}
		rs.Market = KeywordMarket(rules...)
	}
	return rs, nil
}

// MergeRuleSets 同名(忽略大小写)交易所被覆盖, 新交易所追加在末尾
func MergeRuleSets(base []RuleSet, overrides ...RuleSet) []RuleSet {
	res := make([]RuleSet, len(base))
	copy(res, base)
	for _, o := range overrides {
		replaced := false
		for i := range res {
			if strings.EqualFold(res[i].Exchange, o.Exchange) {
				res[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			res = append(res, o)
		}
	}
	return res
}
