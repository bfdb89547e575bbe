package search

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shouni/go-web-scan/v2/pkg/retry"
)

const (
	DefaultEndpoint  = "https://html.duckduckgo.com/html/"
	DefaultTimeout   = 10 * time.Second
	DefaultInterval  = 2 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	resultSelector = "a.result__a"
)

// DuckDuckGoConfig は DuckDuckGo 検索の設定です。
type DuckDuckGoConfig struct {
	Endpoint  string
	Timeout   time.Duration
	UserAgent string
	Interval  time.Duration // リクエスト間の最小間隔
	Retry     retry.Config
}

// DuckDuckGo は DuckDuckGo の HTML 版から検索結果のURLを取得する Searcher です。
type DuckDuckGo struct {
	cfg     DuckDuckGoConfig
	kit     *httpkit.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewDuckDuckGo は DuckDuckGo を生成します。
func NewDuckDuckGo(cfg DuckDuckGoConfig, logger *zap.Logger) *DuckDuckGo {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	doer := &userAgentDoer{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
	}
	// リトライは pkg/retry で行う
	return &DuckDuckGo{
		cfg:     cfg,
		kit:     httpkit.New(cfg.Timeout, httpkit.WithMaxRetries(0), httpkit.WithHTTPClient(doer)),
		limiter: rate.NewLimiter(rate.Every(cfg.Interval), 1),
		logger:  logger,
	}
}

// Search はクエリを検索し、結果のURLを順位順に最大 limit 件返します。
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("検索クエリが空です")
	}

	searchURL := d.cfg.Endpoint + "?q=" + url.QueryEscape(query)

	var body []byte
	err := retry.Do(ctx, d.cfg.Retry, "DuckDuckGo検索", func() error {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
		var fetchErr error
		body, fetchErr = d.kit.FetchBytes(ctx, searchURL)
		return fetchErr
	}, func(err error) bool {
		return ctx.Err() == nil && !httpkit.IsNonRetryableError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("検索に失敗しました (%s): %w", query, err)
	}

	results, err := parseResults(body, limit)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("検索結果", zap.String("query", query), zap.Int("count", len(results)))
	return results, nil
}

// parseResults は検索結果ページからリンクを取り出し、リダイレクトURLを元のURLに戻します。
func parseResults(body []byte, limit int) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("検索結果の解析に失敗しました: %w", err)
	}

	seen := make(map[string]bool)
	var results []string
	doc.Find(resultSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		target, ok := unwrap(href)
		if !ok || seen[target] {
			return true
		}
		seen[target] = true
		results = append(results, target)
		return limit <= 0 || len(results) < limit
	})
	return results, nil
}

// unwrap は "//duckduckgo.com/l/?uddg=..." 形式のリダイレクトから遷移先を取り出します。
// 広告など DuckDuckGo 自身への遷移は除外します。
func unwrap(href string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	if target := u.Query().Get("uddg"); target != "" {
		u, err = url.Parse(target)
		if err != nil {
			return "", false
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "duckduckgo.com" || strings.HasSuffix(host, ".duckduckgo.com") {
		return "", false
	}
	return u.String(), true
}

type userAgentDoer struct {
	client    *http.Client
	userAgent string
}

func (d *userAgentDoer) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", d.userAgent)
	return d.client.Do(req)
}
