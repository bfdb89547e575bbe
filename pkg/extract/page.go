package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	textUtils "github.com/shouni/go-utils/text"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/shouni/go-web-scan/v2/pkg/urlnorm"
)

// ----------------------------------------------------------------------
// 定数定義 (解析関連のみ)
// ----------------------------------------------------------------------
const (
	// nonTextSelectors はページテキストに含めない要素です。
	nonTextSelectors = "script, style, noscript, template"
	linkSelector     = "a[href]"
)

// LinkCandidate は、ページ内で見つかった絶対URLとそのアンカーテキストの組です。
type LinkCandidate struct {
	Href string // href 属性の値（解決前）
	URL  string // ベースURLに対して解決された絶対URL
	Text string // 正規化済みアンカーテキスト
}

// Page は、取得したHTMLの解析結果です。
type Page struct {
	URL     string // 取得した最終URL
	BaseURL string // スキームとホストのみ
	Title   string
	Text    string          // 空白を1つに畳んだページテキスト
	Links   []LinkCandidate // 文書順、重複あり
}

// Parse は、取得したHTMLを文字コード変換した上で解析し、テキストとリンクを抽出します。
// 相対リンクはページURLのスキームとホスト部分のみに対して解決され、http/https 以外は除外されます。
func Parse(body []byte, contentType, pageURL string) (*Page, error) {
	// 1. ベースURLの決定 (パスは含めない)
	baseURL, err := urlnorm.BaseURL(pageURL)
	if err != nil {
		return nil, fmt.Errorf("ベースURLの決定に失敗しました: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("ベースURLのパースエラー: %w", err)
	}

	// 2. Content-Type と meta タグに従って UTF-8 に変換
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("文字コードの変換に失敗しました: %w", err)
	}

	// 3. goquery.Document に変換
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("HTML解析に失敗しました: %w", err)
	}

	// 4. テキストとして扱わない要素を除去
	doc.Find(nonTextSelectors).Remove()

	page := &Page{
		URL:     pageURL,
		BaseURL: baseURL,
		Title:   normalizeSpace(doc.Find("title").First().Text()),
		Text:    collectText(doc.Selection),
	}

	// 5. リンクの抽出 (文書順)
	doc.Find(linkSelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		resolved, ok := resolve(base, href)
		if !ok {
			return
		}
		page.Links = append(page.Links, LinkCandidate{
			Href: href,
			URL:  resolved,
			Text: normalizeSpace(s.Text()),
		})
	})

	return page, nil
}

// resolve は href をベースURLに対して解決し、http/https のURLのみを返します。
func resolve(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}

// normalizeSpace は改行・タブを含む連続する空白を1つに畳み、前後の空白を除きます。
func normalizeSpace(s string) string {
	return textUtils.NormalizeText(s)
}

// collectText はテキストノードを空白区切りで連結し、連続する空白を1つに畳みます。
// 隣接する要素のテキストが結合されて別の語にならないよう、ノード単位で区切ります。
func collectText(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return normalizeSpace(strings.Join(parts, " "))
}
