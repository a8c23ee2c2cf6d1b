package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KNICEX/listing-agent/internal/entity"
	"github.com/KNICEX/listing-agent/internal/service/exchange"
	"github.com/KNICEX/listing-agent/internal/service/llm"
	"github.com/samber/lo"
)

const listingInstruction = "You are a classifier function. You will receive a message that might say which token or tokens " +
	"are listed or going to be listed or launched on which exchange, on spot or on futures/perpetuals. " +
	"The message might not talk about a token listing at all, so do not give false positives. " +
	"Your job is to identify the ticker of the token or tokens (without USDT). " +
	"Return only a JSON ARRAY, NO TALKING. If the message does not talk about a token being listed, return []. " +
	`For one token return for example [{"token": "ABCD", "exchange": "binance", "market": "future"}]. ` +
	"For two or more tokens put them all in the array."

var _ Classifier = (*GenerativeClassifier)(nil)

type GenerativeClassifier struct {
	llmSvc llm.Service
	// 用于把 LLM 返回的交易所名称规范化
	exchanges []string
}

func NewGenerativeClassifier(llmSvc llm.Service, knownExchanges []string) *GenerativeClassifier {
	return &GenerativeClassifier{
		llmSvc:    llmSvc,
		exchanges: knownExchanges,
	}
}

type generatedListing struct {
	Token    *string `json:"token"`
	Exchange *string `json:"exchange"`
	Market   *string `json:"market"`
}

// Classify 不返回错误, 任何调用或解析失败都记录日志并视为没有结果, 不做重试
func (c *GenerativeClassifier) Classify(ctx context.Context, message string) ([]Classification, error) {
	answer, err := c.llmSvc.AskOnce(ctx, llm.Question{
		System:  listingInstruction,
		Content: message,
		JSON:    true,
	})
	if err != nil {
		slog.Error("llm classify request failed", "error", err)
		return nil, nil
	}
	slog.Debug("llm classify answer", "content", answer.Content,
		"input_token", answer.InputToken, "output_token", answer.OutputToken)

	elements, err := c.extractArray(answer.Content)
	if err != nil {
		slog.Error("llm classify answer rejected", "content", answer.Content, "error", err)
		return nil, nil
	}
	return c.group(message, elements), nil
}

func (c *GenerativeClassifier) extractArray(content string) ([]json.RawMessage, error) {
	content = stripCodeFence(content)
	if content == "" {
		return nil, fmt.Errorf("empty answer")
	}
	var raw any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("answer is not json: %w", err)
	}
	if _, ok := raw.([]any); !ok {
		return nil, fmt.Errorf("answer is not a json array")
	}
	var elements []json.RawMessage
	if err := json.Unmarshal([]byte(content), &elements); err != nil {
		return nil, err
	}
	return elements, nil
}

// group 逐条校验, 非法元素丢弃不影响其余元素, 同交易所同市场的代币合并
func (c *GenerativeClassifier) group(message string, elements []json.RawMessage) []Classification {
	var res []Classification
	for i, raw := range elements {
		item, err := c.validate(raw)
		if err != nil {
			slog.Warn("drop llm listing element", "index", i, "element", string(raw), "error", err)
			continue
		}
		_, idx, found := lo.FindIndexOf(res, func(cl Classification) bool {
			return cl.Exchange == item.Exchange && cl.Market == item.Market
		})
		if found {
			res[idx].Tokens = lo.Uniq(append(res[idx].Tokens, item.Tokens...))
			continue
		}
		item.Message = message
		res = append(res, item)
	}
	return res
}

func (c *GenerativeClassifier) validate(raw json.RawMessage) (Classification, error) {
	var item generatedListing
	if err := json.Unmarshal(raw, &item); err != nil {
		return Classification{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if item.Token == nil || item.Exchange == nil || item.Market == nil {
		return Classification{}, fmt.Errorf("%w: missing token, exchange or market", ErrInvalidRecord)
	}
	token := exchange.NormalizeToken(*item.Token)
	if token == "" {
		return Classification{}, fmt.Errorf("%w: bad token %q", ErrInvalidRecord, *item.Token)
	}
	name := strings.TrimSpace(*item.Exchange)
	if name == "" {
		return Classification{}, fmt.Errorf("%w: empty exchange", ErrInvalidRecord)
	}
	return Classification{
		Exchange: c.canonicalExchange(name),
		Tokens:   []string{token},
		Market:   exchange.ParseMarket(*item.Market),
		Strategy: entity.StrategyLLM,
	}, nil
}

func (c *GenerativeClassifier) canonicalExchange(name string) string {
	known, ok := lo.Find(c.exchanges, func(item string) bool {
		return strings.EqualFold(item, name)
	})
	if ok {
		return known
	}
	return name
}

// stripCodeFence 去掉 ```json ... ``` 包裹
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return strings.Trim(content, "`")
	}
	lines = lines[1:]
	if strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
