package gemini

import (
	"context"
	"strings"

	"github.com/KNICEX/listing-agent/internal/service/llm"
	"github.com/google/generative-ai-go/genai"
)

const defaultModel = "gemini-2.0-flash"

var _ llm.Service = (*Service)(nil)

type Service struct {
	client      *genai.Client
	modelName   string
	temperature *float32
}

func NewService(client *genai.Client, opts ...Option) *Service {
	svc := &Service{
		client:    client,
		modelName: defaultModel,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type Option func(service *Service)

func WithTemperature(temp float32) Option {
	return func(service *Service) {
		service.temperature = &temp
	}
}

func WithModel(name string) Option {
	return func(service *Service) {
		if name != "" {
			service.modelName = name
		}
	}
}

// model 每次请求单独构造, system instruction 不在并发请求间共享
func (s *Service) model(q llm.Question) *genai.GenerativeModel {
	model := s.client.GenerativeModel(s.modelName)
	if s.temperature != nil {
		model.SetTemperature(*s.temperature)
	}
	if q.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(q.System))
	}
	if q.JSON {
		model.ResponseMIMEType = "application/json"
	}
	return model
}

func (s *Service) AskOnce(ctx context.Context, q llm.Question) (llm.Answer, error) {
	resp, err := s.model(q).GenerateContent(ctx, genai.Text(q.Content))
	if err != nil {
		return llm.Answer{}, err
	}
	answer := llm.Answer{
		Content: parseResponse(resp),
	}
	if resp.UsageMetadata != nil {
		answer.InputToken = int(resp.UsageMetadata.PromptTokenCount)
		answer.OutputToken = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return answer, nil
}

func parseResponse(resp *genai.GenerateContentResponse) string {
	var resStr strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for i, part := range resp.Candidates[0].Content.Parts {
			if part == nil {
				continue
			}
			if text, ok := part.(genai.Text); ok {
				if i > 0 {
					resStr.WriteString("\n")
				}
				resStr.WriteString(string(text))
			} else {
				return ""
			}
		}
	}
	return resStr.String()
}
