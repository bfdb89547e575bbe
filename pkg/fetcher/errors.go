package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind は取得失敗の種別です。
type Kind string

const (
	KindTimeout      Kind = "timeout"
	KindConnection   Kind = "connection"
	KindStatus       Kind = "status"
	KindBodyTooLarge Kind = "body_too_large" // 2xxの本文が httpkit の読み込み上限を超えた
)

// FetchError は、1つの候補URLに対する取得失敗を表します。
type FetchError struct {
	Kind       Kind
	URL        string
	StatusCode int // Kind が KindStatus の場合のみ設定
	Err        error

	// Attempts は、最後の候補より前に失敗した試行です（最後の候補を含まない）。
	Attempts []*FetchError
}

func (e *FetchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("%s の取得に失敗しました (kind=%s, status=%d)", e.URL, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%s の取得に失敗しました (kind=%s): %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Reason は、結果セルに記録する短い失敗理由を返します。
func (e *FetchError) Reason() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return string(e.Kind)
}

// classify は、1回の試行のエラーを FetchError に変換します。
// statusCode は記録ドアが観測した最後のステータスコード（未観測なら0）、
// timedOut は試行のコンテキストが期限切れになったかどうか、
// tooLarge は本文が上限を超えたと観測されたかどうかです。
func classify(rawURL string, statusCode int, timedOut, tooLarge bool, err error) *FetchError {
	if statusCode != 0 && (statusCode < 200 || statusCode > 299) {
		return &FetchError{Kind: KindStatus, URL: rawURL, StatusCode: statusCode, Err: err}
	}
	if tooLarge {
		return &FetchError{Kind: KindBodyTooLarge, URL: rawURL, StatusCode: statusCode, Err: err}
	}

	var netErr net.Error
	if timedOut || errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchError{Kind: KindTimeout, URL: rawURL, Err: err}
	}
	return &FetchError{Kind: KindConnection, URL: rawURL, Err: err}
}
