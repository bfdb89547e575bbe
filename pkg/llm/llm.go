package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/shouni/go-web-scan/v2/pkg/classify"
	"github.com/shouni/go-web-scan/v2/pkg/retry"
)

// DefaultTimeout は1回のLLM呼び出しのタイムアウトです。
const DefaultTimeout = 60 * time.Second

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config はプロバイダー選択を含むLLMクライアントの設定です。
type Config struct {
	Provider string // "openai" または "anthropic"
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
	Retry    retry.Config
}

// New は Provider に応じた classify.Completer を生成します。
func New(cfg Config) (classify.Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		c, err := NewOpenAI(OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			Retry:   cfg.Retry,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderAnthropic:
		c, err := NewAnthropic(AnthropicConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
			Retry:   cfg.Retry,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("未対応のLLMプロバイダーです: %s", cfg.Provider)
	}
}
