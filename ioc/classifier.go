package ioc

import (
	"fmt"

	"github.com/KNICEX/listing-agent/internal/service/classifier"
	"github.com/spf13/viper"
)

type classifierConfig struct {
	Strategy string                  `mapstructure:"strategy"`
	Rules    []classifier.RuleConfig `mapstructure:"rules"`
}

func loadClassifierConfig() classifierConfig {
	var cfg classifierConfig
	if err := viper.UnmarshalKey("classifier", &cfg); err != nil {
		panic(err)
	}
	if cfg.Strategy == "" {
		cfg.Strategy = classifier.StrategyRuleThenLLM
	}
	return cfg
}

// ClassifierNeedsLLM 配置的策略是否需要 LLM
func ClassifierNeedsLLM() bool {
	return loadClassifierConfig().Strategy != classifier.StrategyRule
}

// InitRuleClassifier 内置规则加上配置中的覆盖/新增规则
func InitRuleClassifier() *classifier.RuleBasedClassifier {
	cfg := loadClassifierConfig()
	overrides := make([]classifier.RuleSet, 0, len(cfg.Rules))
	for _, rc := range cfg.Rules {
		rs, err := classifier.NewRuleSet(rc)
		if err != nil {
			panic(fmt.Errorf("classifier rules: %w", err))
		}
		overrides = append(overrides, rs)
	}
	return classifier.NewRuleBasedClassifier(classifier.MergeRuleSets(classifier.DefaultRuleSets(), overrides...)...)
}

// InitClassifier generative 为 nil 时只能使用 rule 策略
func InitClassifier(rule *classifier.RuleBasedClassifier, generative *classifier.GenerativeClassifier) classifier.Classifier {
	cfg := loadClassifierConfig()
	var gen classifier.Classifier
	if generative != nil {
		gen = generative
	}
	c, err := classifier.NewStrategy(cfg.Strategy, rule, gen)
	if err != nil {
		panic(err)
	}
	return c
}
