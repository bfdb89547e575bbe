package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// ----------------------------------------------------------------------
// エラー定義
// ----------------------------------------------------------------------

var (
	// ErrEmpty は、セルが空であることを示します。
	ErrEmpty = errors.New("URLが空です")
	// ErrInvalid は、URLとして妥当でない文字列（空白を含む、"." を含まない）であることを示します。
	ErrInvalid = errors.New("URLとして妥当ではありません")
)

const (
	schemeHTTPS = "https://"
	schemeHTTP  = "http://"
)

// Normalize は、スプレッドシートのセル文字列を検証し、試行順に並んだ候補URLを返します。
//
//   - 空文字列: ErrEmpty
//   - 空白を含む、または "." を含まない: ErrInvalid
//   - http:// / https:// で始まる: そのままの文字列を唯一の候補として返す
//   - スキームなし: https:// を先頭に、http:// を2番目に返す
func Normalize(raw string) ([]string, error) {
	if raw == "" {
		return nil, ErrEmpty
	}
	if !Plausible(raw) {
		return nil, fmt.Errorf("%w: %q", ErrInvalid, raw)
	}

	if HasScheme(raw) {
		return []string{raw}, nil
	}
	return []string{schemeHTTPS + raw, schemeHTTP + raw}, nil
}

// Plausible は、文字列がURLらしいかどうかを判定します（空でない、空白なし、"." を含む）。
func Plausible(raw string) bool {
	if raw == "" {
		return false
	}
	if strings.IndexFunc(raw, unicode.IsSpace) >= 0 {
		return false
	}
	return strings.Contains(raw, ".")
}

// HasScheme は、http:// または https:// で始まるかを大文字小文字を区別せずに判定します。
func HasScheme(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, schemeHTTPS) || strings.HasPrefix(lower, schemeHTTP)
}

// BaseURL は、URLのスキームとホスト部分のみ（パスを除く）を返します。
// 相対リンクはこの値を基準に解決されます。
func BaseURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("URLのパースエラー: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("スキームまたはホストがありません: %s", rawURL)
	}
	return strings.ToLower(u.Scheme) + "://" + u.Host, nil
}
