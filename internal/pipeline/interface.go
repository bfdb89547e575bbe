package pipeline

import (
	"context"

	"github.com/shouni/go-web-scan/v2/pkg/classify"
	"github.com/shouni/go-web-scan/v2/pkg/extract"
	"github.com/shouni/go-web-scan/v2/pkg/fetcher"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// Fetcher は、順序付きの候補URLから最初に成功したレスポンスを返します。
// *fetcher.Fetcher がこのインターフェースを満たします。
type Fetcher interface {
	Fetch(ctx context.Context, candidates []string) (*fetcher.Result, error)
}

// LexicalClassifier はキーワードによる判定です。
type LexicalClassifier interface {
	Classify(page *extract.Page) classify.Verdict
}

// SemanticClassifier はLLMによるページ単位の判定です。
type SemanticClassifier interface {
	Classify(ctx context.Context, page *extract.Page, query string) (classify.Verdict, error)
}

// LinkJudge はLLMによるリンク単位の判定です。
type LinkJudge interface {
	Judge(ctx context.Context, links []extract.LinkCandidate, query string) ([]string, error)
}
