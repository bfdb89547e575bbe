package fetcher

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout は1回の試行あたりのタイムアウトです。
	DefaultTimeout = 10 * time.Second
	// DefaultUserAgent はブラウザ風の識別ヘッダーです。
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Config は Fetcher の設定です。
type Config struct {
	Timeout            time.Duration
	UserAgent          string
	InsecureSkipVerify bool // TLS証明書の検証を無効化する（既定は検証する）
	ChromeTLS          bool // Chrome 風の TLS フィンガープリントを使用する
}

// Result は取得に成功したレスポンスです。
type Result struct {
	URL         string // 試行した候補URL
	FinalURL    string // リダイレクト後のURL
	Body        []byte
	ContentType string
	StatusCode  int
}

// Fetcher は、順序付きの候補URLを先頭から1回ずつ試行します。
// スキームのフォールバック以外のリトライは行いません。
type Fetcher struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New は Fetcher を生成します。logger が nil の場合はログを出力しません。
func New(cfg Config, logger *zap.Logger) *Fetcher {
	cfg.Timeout = attemptTimeout(cfg.Timeout)
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:    cfg,
		client: newHTTPClient(cfg),
		logger: logger,
	}
}

// Fetch は候補URLを順番に試行し、最初の2xxレスポンスを返します。
// すべて失敗した場合は最後の候補の *FetchError を返し、それ以前の失敗は Attempts に格納されます。
func (f *Fetcher) Fetch(ctx context.Context, candidates []string) (*Result, error) {
	if len(candidates) == 0 {
		return nil, errors.New("候補URLがありません")
	}

	var failures []*FetchError
	for _, candidate := range candidates {
		// 上位のキャンセルは候補の失敗ではない
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, fetchErr := f.attempt(ctx, candidate)
		if fetchErr == nil {
			f.logger.Debug("取得成功",
				zap.String("url", candidate),
				zap.String("final_url", res.FinalURL),
				zap.Int("status", res.StatusCode))
			return res, nil
		}

		f.logger.Info("取得失敗",
			zap.String("url", candidate),
			zap.String("kind", string(fetchErr.Kind)),
			zap.Int("status", fetchErr.StatusCode),
			zap.Error(fetchErr.Err))
		failures = append(failures, fetchErr)
	}

	last := failures[len(failures)-1]
	last.Attempts = failures[:len(failures)-1]
	return nil, last
}

// attempt は1つの候補URLに対して1回だけリクエストを行います。
func (f *Fetcher) attempt(ctx context.Context, rawURL string) (*Result, *FetchError) {
	// 1. 試行ごとのタイムアウトを設定
	attemptCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	// 2. 試行ごとに記録ドアと httpkit クライアントを用意 (httpkit 側のリトライは無効)
	doer := &recordingDoer{client: f.client, userAgent: f.cfg.UserAgent}
	kit := httpkit.New(
		f.cfg.Timeout,
		httpkit.WithMaxRetries(0),
		httpkit.WithHTTPClient(doer),
	)

	// 3. 取得
	body, err := kit.FetchBytes(attemptCtx, rawURL)
	if err != nil {
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
		return nil, classify(rawURL, doer.statusCode, timedOut, doer.bodyTooLarge(), err)
	}
	if doer.statusCode != 0 && (doer.statusCode < 200 || doer.statusCode > 299) {
		return nil, classify(rawURL, doer.statusCode, false, false, nil)
	}

	finalURL := doer.finalURL
	if finalURL == "" {
		finalURL = rawURL
	}
	return &Result{
		URL:         rawURL,
		FinalURL:    finalURL,
		Body:        body,
		ContentType: doer.contentType,
		StatusCode:  doer.statusCode,
	}, nil
}
