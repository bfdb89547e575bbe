package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/shouni/go-web-scan/v2/pkg/extract"
)

// DefaultLinkMaxTokens はリンク単位の判定の応答の最大トークン数です。
const DefaultLinkMaxTokens = 100

// affirmativeTokens は肯定と見なす語です。
var affirmativeTokens = map[string]bool{
	"sí":  true,
	"si":  true,
	"yes": true,
}

// negativeTokens は、応答の先頭にある場合に否定と見なす語です。
var negativeTokens = map[string]bool{
	"no":    true,
	"nunca": true,
}

// LinkJudgeConfig はリンク単位の判定の設定です。
type LinkJudgeConfig struct {
	MaxTokens int
}

// LinkJudge は、リンクごとに「クエリに関係するか」を Completer に問い合わせます。
type LinkJudge struct {
	completer Completer
	maxTokens int
	logger    *zap.Logger
}

// NewLinkJudge は LinkJudge を生成します。
func NewLinkJudge(completer Completer, cfg LinkJudgeConfig, logger *zap.Logger) (*LinkJudge, error) {
	if completer == nil {
		return nil, errors.New("classify.NewLinkJudge: Completer cannot be nil")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultLinkMaxTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkJudge{completer: completer, maxTokens: cfg.MaxTokens, logger: logger}, nil
}

// Judge は、応答が肯定であったリンクのURLを文書順で返します。
// 1件の問い合わせが失敗した場合はログに記録してそのリンクのみ除外します。
// コンテキストがキャンセルされた場合はエラーを返します。
func (j *LinkJudge) Judge(ctx context.Context, links []extract.LinkCandidate, query string) ([]string, error) {
	var kept []string
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		prompt := fmt.Sprintf(
			"El siguiente enlace fue encontrado: %s (texto del enlace: %q).\nLa consulta es: %q.\n¿Este enlace contiene información relacionada con la consulta? Responde únicamente \"sí\" o \"no\".",
			link.URL, link.Text, query)

		answer, err := j.completer.Complete(ctx, prompt, j.maxTokens)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			j.logger.Warn("リンクの判定に失敗しました", zap.String("url", link.URL), zap.Error(err))
			continue
		}

		if IsAffirmative(answer) {
			kept = append(kept, link.URL)
		}
	}
	return kept, nil
}

// IsAffirmative は、応答に肯定語が単語として含まれるかを返します。
// 先頭語が否定語の場合 ("No, pero sí ...") は肯定語があっても false です。
func IsAffirmative(answer string) bool {
	words := strings.FieldsFunc(strings.ToLower(answer), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 || negativeTokens[words[0]] {
		return false
	}
	for _, w := range words {
		if affirmativeTokens[w] {
			return true
		}
	}
	return false
}
