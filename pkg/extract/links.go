package extract

import (
	"strings"
)

// ParseTerms は、カンマ区切りのクエリを小文字化・前後の空白除去した語のリストに分割します。
// 空の語は除外されます。
func ParseTerms(query string) []string {
	var terms []string
	for _, raw := range strings.Split(query, ",") {
		term := strings.ToLower(strings.TrimSpace(raw))
		if term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}

// FilterLinks は、いずれかの語が href またはアンカーテキストに（大文字小文字を区別せず）
// 部分一致するリンクのみを文書順で返します。terms が空の場合は何も返しません。
func FilterLinks(links []LinkCandidate, terms []string) []LinkCandidate {
	if len(terms) == 0 {
		return nil
	}

	var matched []LinkCandidate
	for _, link := range links {
		href := strings.ToLower(link.Href)
		text := strings.ToLower(link.Text)
		for _, term := range terms {
			if strings.Contains(href, term) || strings.Contains(text, term) {
				matched = append(matched, link)
				break
			}
		}
	}
	return matched
}

// FindAnchor は、アンカーテキストに term を含む最初のリンクを返します。
func (p *Page) FindAnchor(term string) (LinkCandidate, bool) {
	term = strings.ToLower(term)
	if term == "" {
		return LinkCandidate{}, false
	}
	for _, link := range p.Links {
		if strings.Contains(strings.ToLower(link.Text), term) {
			return link, true
		}
	}
	return LinkCandidate{}, false
}

// URLs は、リンクの絶対URLのみを順序を保って返します。
func URLs(links []LinkCandidate) []string {
	urls := make([]string, 0, len(links))
	for _, link := range links {
		urls = append(urls, link.URL)
	}
	return urls
}

// Limit は先頭から最大 n 件のリンクを返します。n が 0 以下の場合はすべて返します。
func Limit(links []LinkCandidate, n int) []LinkCandidate {
	if n <= 0 || len(links) <= n {
		return links
	}
	return links[:n]
}
