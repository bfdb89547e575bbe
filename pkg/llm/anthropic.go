package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/shouni/go-web-scan/v2/pkg/retry"
)

const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicConfig は Anthropic Messages API の設定です。
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string // 空の場合はSDKの既定値
	Timeout time.Duration
	Retry   retry.Config
}

// Anthropic は anthropic-sdk-go の Messages API を呼び出す Completer です。
type Anthropic struct {
	cfg    AnthropicConfig
	client anthropic.Client
}

// NewAnthropic は Anthropic クライアントを生成します。
// SDK 側のリトライは無効にし、pkg/retry のポリシーに統一します。
func NewAnthropic(cfg AnthropicConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm.NewAnthropic: APIキーが設定されていません")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Anthropic{
		cfg:    cfg,
		client: anthropic.NewClient(opts...),
	}, nil
}

// Complete はプロンプトを1件のユーザーメッセージとして送信し、テキストブロックを連結して返します。
func (a *Anthropic) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	var answer string
	err := retry.Do(ctx, a.cfg.Retry, "Anthropic呼び出し", func() error {
		var callErr error
		answer, callErr = a.call(ctx, prompt, maxTokens)
		return callErr
	}, IsRetryable)
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (a *Anthropic) call(ctx context.Context, prompt string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.cfg.Model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var sdkErr *anthropic.Error
		if errors.As(err, &sdkErr) {
			return "", &APIError{
				Provider:   "anthropic",
				Code:       codeForStatus(sdkErr.StatusCode),
				StatusCode: sdkErr.StatusCode,
				Message:    sdkErr.Error(),
				Err:        err,
			}
		}
		return "", &APIError{Provider: "anthropic", Code: CodeFailure, Message: "リクエストに失敗しました", Err: err}
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "")), nil
}
