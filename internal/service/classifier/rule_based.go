package classifier

import (
	"context"
	"regexp"
	"strings"

	"github.com/KNICEX/listing-agent/internal/entity"
	"github.com/KNICEX/listing-agent/internal/service/exchange"
	"github.com/samber/lo"
)

var _ Classifier = (*RuleBasedClassifier)(nil)

// 规则提取的候选必须在原文中就是大写代币形式, 避免把代币全称当成代币
var (
	upperTickerRegex = regexp.MustCompile(`^\$?[A-Z0-9]{2,15}$`)
	// 纯数字是日期/时间片段, 不是代币
	hasLetterRegex = regexp.MustCompile(`[A-Z]`)
)

type RuleBasedClassifier struct {
	ruleSets []RuleSet
	// 与 ruleSets 一一对应的小写触发短语
	phrases [][]string
}

func NewRuleBasedClassifier(ruleSets ...RuleSet) *RuleBasedClassifier {
	if len(ruleSets) == 0 {
		ruleSets = DefaultRuleSets()
	}
	phrases := lo.Map(ruleSets, func(item RuleSet, index int) []string {
		return lo.Map(item.Phrases, func(p string, _ int) string {
			return strings.ToLower(p)
		})
	})
	return &RuleBasedClassifier{
		ruleSets: ruleSets,
		phrases:  phrases,
	}
}

// Exchanges 已知的交易所名称, 按规则顺序
func (c *RuleBasedClassifier) Exchanges() []string {
	return lo.Map(c.ruleSets, func(item RuleSet, index int) string {
		return item.Exchange
	})
}

// Classify 每个交易所独立判断, 同一条消息可以命中多个交易所
func (c *RuleBasedClassifier) Classify(ctx context.Context, message string) ([]Classification, error) {
	lower := strings.ToLower(message)

	var res []Classification
	for i, rs := range c.ruleSets {
		if !containsAny(lower, c.phrases[i]) {
			continue
		}
		tokens := c.extract(rs, message)
		if len(tokens) == 0 {
			// 只有触发短语没有代币, 不算上币公告
			continue
		}
		res = append(res, Classification{
			Exchange: rs.Exchange,
			Tokens:   tokens,
			Market:   rs.marketOf(lower),
			Message:  message,
			Strategy: entity.StrategyRule,
		})
	}
	return res, nil
}

func (c *RuleBasedClassifier) extract(rs RuleSet, message string) []string {
	var candidates []string
	for _, pattern := range rs.Patterns {
		for _, match := range pattern.FindAllStringSubmatch(message, -1) {
			// match[0] 是整体匹配, 其余为捕获组
			candidates = append(candidates, match[1:]...)
		}
	}
	if rs.Generic {
		candidates = append(candidates, extractGeneric(message, rs.StrictGeneric)...)
	}
	return normalizeCandidates(candidates)
}

func normalizeCandidates(candidates []string) []string {
	tokens := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		cand = strings.TrimSpace(cand)
		if !upperTickerRegex.MatchString(cand) {
			continue
		}
		token := exchange.NormalizeToken(cand)
		if token == "" || isQuoteAsset(token) || !hasLetterRegex.MatchString(token) {
			continue
		}
		tokens = append(tokens, token)
	}
	return lo.Uniq(tokens)
}

// extractGeneric 通用提取: 大写字母数字符号与 $ 前缀符号, 过滤停用词
func extractGeneric(message string, strict bool) []string {
	var tokens []string
	for _, match := range genericSymbolRegex.FindAllStringSubmatch(message, -1) {
		tokens = append(tokens, match[1])
	}
	for _, match := range genericDollarRegex.FindAllStringSubmatch(message, -1) {
		tokens = append(tokens, match[1])
	}
	tokens = lo.Reject(tokens, func(item string, index int) bool {
		_, stop := genericStopWords[strings.ToUpper(item)]
		return stop || !hasLetterRegex.MatchString(item)
	})
	if !strict {
		return tokens
	}

	strong := strongCandidates(message)
	// 强位置候选本身也加入候选集合, 不只做交集
	kept := lo.Filter(lo.Uniq(append(tokens, strong...)), func(item string, index int) bool {
		return lo.Contains(strong, exchange.NormalizeToken(item))
	})
	if len(kept) == 0 {
		return tokens
	}
	return kept
}

// strongCandidates 处于强位置的候选, 按出现顺序, 已过滤停用词
func strongCandidates(message string) []string {
	var strong []string
	for _, re := range []*regexp.Regexp{strongParenRegex, strongNamedRegex, strongPairRegex, genericDollarRegex} {
		for _, match := range re.FindAllStringSubmatch(message, -1) {
			token := exchange.NormalizeToken(match[1])
			if _, stop := genericStopWords[token]; stop || !hasLetterRegex.MatchString(token) {
				continue
			}
			strong = append(strong, token)
		}
	}
	return lo.Uniq(strong)
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func isQuoteAsset(token string) bool {
	switch token {
	case "USDT", "USDC", "BUSD", "FDUSD":
		return true
	}
	return false
}
