package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Code はLLM呼び出しの失敗種別です。
type Code string

const (
	CodeAuth        Code = "auth_failure"
	CodeRateLimited Code = "rate_limited"
	CodeServer      Code = "server_error"
	CodeFailure     Code = "failure"
)

// APIError は、LLMプロバイダーの呼び出し失敗を表します。
type APIError struct {
	Provider   string
	Code       Code
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: [%s] HTTP %d: %s", e.Provider, e.Code, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: [%s] %s: %v", e.Provider, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: [%s] %s", e.Provider, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// codeForStatus はHTTPステータスコードを失敗種別に対応付けます。
func codeForStatus(status int) Code {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CodeAuth
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status >= 500:
		return CodeServer
	default:
		return CodeFailure
	}
}

// IsRetryable は、レート制限・サーバーエラー・ネットワークエラーの場合に true を返します。
// 認証エラーやリクエスト不正、コンテキストのキャンセルはリトライしません。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case CodeRateLimited, CodeServer:
			return true
		case CodeAuth:
			return false
		}
		if apiErr.StatusCode != 0 {
			return false
		}
		// ステータスを伴わない失敗はネットワーク由来のときのみ
		var netErr net.Error
		return errors.As(apiErr.Err, &netErr) || errors.Is(apiErr.Err, context.DeadlineExceeded)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
