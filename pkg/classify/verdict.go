package classify

import (
	"context"
)

// Status は関連性判定の結果です。
type Status string

const (
	StatusRelevant      Status = "relevant"
	StatusNotRelevant   Status = "not_relevant"
	StatusIndeterminate Status = "indeterminate"
)

// Verdict は、ページまたはリンク集合に対する判定結果と根拠です。
type Verdict struct {
	Status   Status
	Keyword  string   // 字句判定で一致したキーワード
	Evidence string   // 一致したアンカーのURL、または要約の連結
	Links    []string // 関連リンク（文書順）
}

// Relevant は判定が「関連あり」かどうかを返します。
func (v Verdict) Relevant() bool {
	return v.Status == StatusRelevant
}

// Completer は、プロンプトと応答長の上限を受け取りテキストを返す外部コラボレーターです。
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}
