package ioc

import (
	"context"

	"github.com/KNICEX/listing-agent/internal/service/llm"
	"github.com/KNICEX/listing-agent/internal/service/llm/gemini"
	"github.com/google/generative-ai-go/genai"
	"github.com/spf13/viper"
	"google.golang.org/api/option"
)

type geminiConfig struct {
	ApiKey      []string `mapstructure:"api_key"`
	Model       string   `mapstructure:"model"`
	Temperature *float32 `mapstructure:"temperature"`
}

func loadGeminiConfig() geminiConfig {
	var cfg geminiConfig
	if err := viper.UnmarshalKey("llm.gemini", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func InitGeminiCli() *genai.Client {
	cfg := loadGeminiConfig()
	if len(cfg.ApiKey) == 0 {
		panic("no gemini api key set")
	}

	cli, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.ApiKey[0]))
	if err != nil {
		panic(err)
	}
	return cli
}

func InitLLMService(cli *genai.Client) llm.Service {
	cfg := loadGeminiConfig()
	opts := []gemini.Option{gemini.WithModel(cfg.Model)}
	if cfg.Temperature != nil {
		opts = append(opts, gemini.WithTemperature(*cfg.Temperature))
	}
	return gemini.NewService(cli, opts...)
}
