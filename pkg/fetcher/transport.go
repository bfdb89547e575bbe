package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"io"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
	"github.com/shouni/go-http-kit/pkg/httpkit"
)

const maxRedirects = 10

// chromeH1Spec は ALPN を http/1.1 のみに固定した Chrome 風の ClientHello です。
// http.Transport は utls 接続上で HTTP/2 を扱えないため h2 を除外しています。
var chromeH1Spec utls.ClientHelloSpec

func init() {
	spec, err := utls.UTLSIdToSpec(utls.HelloChrome_Auto)
	if err != nil {
		return
	}
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*utls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// newHTTPClient は、設定に従って TLS 検証と TLS フィンガープリントを切り替えた *http.Client を生成します。
func newHTTPClient(cfg Config) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.Timeout}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: cfg.Timeout,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify},
		ForceAttemptHTTP2:   !cfg.ChromeTLS,
	}

	if cfg.ChromeTLS {
		transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := utls.UClient(conn, &utls.Config{
				ServerName:         host,
				InsecureSkipVerify: cfg.InsecureSkipVerify,
			}, utls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("TLSプリセットの適用に失敗しました: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		}
	}

	// 試行ごとのタイムアウトはコンテキストで制御する
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("リダイレクトが多すぎます (%d回)", len(via))
			}
			return nil
		},
	}
}

// recordingDoer は、httpkit.Client から渡されたリクエストを実行し、
// 最後に観測したレスポンスのステータス、Content-Type、最終URL、本文の長さを記録します。
// 1回の試行ごとに生成されるため、排他制御は不要です。
type recordingDoer struct {
	client    *http.Client
	userAgent string

	statusCode    int
	contentType   string
	finalURL      string
	contentLength int64
	bytesRead     int64
}

func (d *recordingDoer) Do(req *http.Request) (*http.Response, error) {
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}

	d.statusCode = resp.StatusCode
	d.contentType = resp.Header.Get("Content-Type")
	if resp.Request != nil && resp.Request.URL != nil {
		d.finalURL = resp.Request.URL.String()
	}
	d.contentLength = resp.ContentLength
	d.bytesRead = 0
	resp.Body = &countingBody{ReadCloser: resp.Body, n: &d.bytesRead}
	return resp, nil
}

// bodyTooLarge は、宣言された長さか実際に読んだ量が httpkit の読み込み上限を超えたかどうかを返します。
func (d *recordingDoer) bodyTooLarge() bool {
	return d.contentLength > httpkit.MaxResponseBodySize || d.bytesRead > httpkit.MaxResponseBodySize
}

// countingBody は読み込んだバイト数を数えます。
type countingBody struct {
	io.ReadCloser
	n *int64
}

func (b *countingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	*b.n += int64(n)
	return n, err
}

// attemptTimeout は、0 以下の値をデフォルトに置き換えます。
func attemptTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}
