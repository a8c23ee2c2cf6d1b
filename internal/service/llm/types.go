package llm

import (
	"context"
)

type Question struct {
	// System 固定的任务说明, 为空时不设置
	System  string
	Content string
	// JSON 要求模型只输出 JSON
	JSON bool
}

type Answer struct {
	Content     string
	InputToken  int
	OutputToken int
}

type Service interface {
	AskOnce(ctx context.Context, q Question) (Answer, error)
}
