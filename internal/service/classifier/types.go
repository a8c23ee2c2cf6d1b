package classifier

import (
	"context"
	"errors"

	"github.com/KNICEX/listing-agent/internal/service/exchange"
)

var ErrInvalidRecord = errors.New("invalid listing record")

// Classification 一条消息针对某个交易所的识别结果
type Classification struct {
	Exchange string          `json:"exchange"`
	Tokens   []string        `json:"tokens"` // 已去重
	Market   exchange.Market `json:"market"`
	Message  string          `json:"message"`
	Strategy string          `json:"strategy"`
}

// Classifier 规则识别与 LLM 识别共用的接口, 不是上币公告时返回空
type Classifier interface {
	Classify(ctx context.Context, message string) ([]Classification, error)
}
