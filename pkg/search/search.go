package search

import (
	"context"
	"fmt"
	"strings"
)

// DefaultQueryTemplate は会社名から公式サイトを探すためのクエリの書式です。
const DefaultQueryTemplate = "sitio oficial %s"

// Searcher は、自由文のクエリから順位順の結果URLを返す検索コラボレーターです。
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// CompanyQuery は会社名を書式に埋め込みます。書式に %s がない場合は末尾に付け加えます。
func CompanyQuery(template, company string) string {
	company = strings.TrimSpace(company)
	if template == "" {
		template = DefaultQueryTemplate
	}
	if strings.Contains(template, "%s") {
		return fmt.Sprintf(template, company)
	}
	return strings.TrimSpace(template + " " + company)
}
