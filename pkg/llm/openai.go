package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shouni/go-web-scan/v2/pkg/retry"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"

	// maxResponseBytes はレスポンスボディの読み込み上限です。
	maxResponseBytes = 4 << 20
)

// OpenAIConfig は OpenAI 互換 API の設定です。
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string        // 例: "https://api.openai.com/v1"
	Timeout    time.Duration // 1回の呼び出しのタイムアウト
	Retry      retry.Config
	HTTPClient *http.Client
}

// OpenAI は OpenAI 互換の chat/completions エンドポイントを呼び出す Completer です。
type OpenAI struct {
	cfg        OpenAIConfig
	endpoint   string
	httpClient *http.Client
}

// NewOpenAI は OpenAI クライアントを生成します。
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm.NewOpenAI: APIキーが設定されていません")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OpenAI{
		cfg:        cfg,
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		httpClient: httpClient,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete はプロンプトを1件のユーザーメッセージとして送信し、最初の選択肢の本文を返します。
// レート制限・サーバーエラー・ネットワークエラーはリトライされます。
func (c *OpenAI) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var answer string
	err := retry.Do(ctx, c.cfg.Retry, "OpenAI呼び出し", func() error {
		var callErr error
		answer, callErr = c.call(ctx, prompt, maxTokens)
		return callErr
	}, IsRetryable)
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (c *OpenAI) call(ctx context.Context, prompt string, maxTokens int) (string, error) {
	// 1. 呼び出しごとのタイムアウト
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	// 2. リクエストの組み立て
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("リクエストのJSON変換に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	// 3. 送信
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &APIError{Provider: "openai", Code: CodeFailure, Message: "リクエストに失敗しました", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &APIError{Provider: "openai", Code: CodeFailure, Message: "レスポンスの読み込みに失敗しました", Err: err}
	}

	// 4. ステータスコードの分類
	if resp.StatusCode != http.StatusOK {
		msg := "LLM API error"
		var errResp chatErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			msg = errResp.Error.Message
		}
		return "", &APIError{Provider: "openai", Code: codeForStatus(resp.StatusCode), StatusCode: resp.StatusCode, Message: msg}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", &APIError{Provider: "openai", Code: CodeFailure, Message: "レスポンスの解析に失敗しました", Err: err}
	}
	if len(chatResp.Choices) == 0 {
		return "", &APIError{Provider: "openai", Code: CodeFailure, Message: "選択肢が返されませんでした"}
	}
	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}
