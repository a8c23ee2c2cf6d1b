package classifier

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	StrategyRule        = "rule"
	StrategyLLM         = "llm"
	StrategyRuleThenLLM = "rule_then_llm"
	StrategyLLMThenRule = "llm_then_rule"
)

type fallbackClassifier struct {
	primary   Classifier
	secondary Classifier
}

// Fallback primary 没有结果(或出错)时交给 secondary
func Fallback(primary, secondary Classifier) Classifier {
	return &fallbackClassifier{
		primary:   primary,
		secondary: secondary,
	}
}

func (c *fallbackClassifier) Classify(ctx context.Context, message string) ([]Classification, error) {
	res, err := c.primary.Classify(ctx, message)
	if err != nil {
		slog.Warn("primary classifier failed, falling back", "error", err)
	}
	if len(res) > 0 {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return c.secondary.Classify(ctx, message)
}

// NewStrategy 按配置名组合分类器, 需要 LLM 但未提供时返回错误
func NewStrategy(name string, rule, generative Classifier) (Classifier, error) {
	if name == "" {
		name = StrategyRuleThenLLM
	}
	needLLM := name != StrategyRule
	if needLLM && generative == nil {
		return nil, fmt.Errorf("classifier strategy %s requires an llm classifier", name)
	}
	switch name {
	case StrategyRule:
		return rule, nil
	case StrategyLLM:
		return generative, nil
	case StrategyRuleThenLLM:
		return Fallback(rule, generative), nil
	case StrategyLLMThenRule:
		return Fallback(generative, rule), nil
	default:
		return nil, fmt.Errorf("unknown classifier strategy %q", name)
	}
}
