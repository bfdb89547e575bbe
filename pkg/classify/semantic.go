package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/shouni/go-web-scan/v2/pkg/extract"
)

const (
	DefaultChunkWords   = 700
	DefaultMaxTokens    = 512 // 1000文字の要約とJSONの枠が収まる量
	DefaultSummaryChars = 1000
	DefaultPromptLinks  = 5
	DefaultResultLinks  = 5

	// NoMatchPhrase は、構造化されていない応答で「該当なし」を示す定型文です。
	NoMatchPhrase = "No se encontró información relevante relacionada con la consulta"
)

// SemanticConfig は意味的判定の設定です。0 の項目はデフォルト値になります。
type SemanticConfig struct {
	ChunkWords   int // 1断片あたりの最大語数
	MaxTokens    int // 1回の応答の最大トークン数
	SummaryChars int // 要約の最大文字数
	PromptLinks  int // プロンプトに含めるページ内リンク数
	ResultLinks  int // 判定結果に含める関連リンク数
}

func (c SemanticConfig) withDefaults() SemanticConfig {
	if c.ChunkWords <= 0 {
		c.ChunkWords = DefaultChunkWords
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.SummaryChars <= 0 {
		c.SummaryChars = DefaultSummaryChars
	}
	if c.PromptLinks <= 0 {
		c.PromptLinks = DefaultPromptLinks
	}
	if c.ResultLinks <= 0 {
		c.ResultLinks = DefaultResultLinks
	}
	return c
}

// Semantic は、ページテキストを断片に分割し、各断片の関連性を Completer に問い合わせます。
type Semantic struct {
	completer Completer
	cfg       SemanticConfig
	logger    *zap.Logger
}

// NewSemantic は Semantic を生成します。
func NewSemantic(completer Completer, cfg SemanticConfig, logger *zap.Logger) (*Semantic, error) {
	if completer == nil {
		return nil, errors.New("classify.NewSemantic: Completer cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Semantic{completer: completer, cfg: cfg.withDefaults(), logger: logger}, nil
}

// fragmentAnswer は1断片に対する構造化応答です。
type fragmentAnswer struct {
	Relevant bool   `json:"relevant"`
	Summary  string `json:"summary"`
}

// Classify は、ページの各断片について関連性を判定し、ページ全体の判定に集約します。
//
//   - いずれかの断片が関連あり: relevant
//   - 関連ありがなく、判定不能な断片がある: indeterminate
//   - それ以外: not_relevant
//
// Completer のエラーはそのページの判定を中断して返されます。
func (s *Semantic) Classify(ctx context.Context, page *extract.Page, query string) (Verdict, error) {
	if page == nil {
		return Verdict{Status: StatusNotRelevant}, nil
	}

	chunks := Chunk(page.Text, s.cfg.ChunkWords)
	if len(chunks) == 0 {
		return Verdict{Status: StatusNotRelevant}, nil
	}
	promptLinks := extract.URLs(extract.Limit(page.Links, s.cfg.PromptLinks))

	var (
		summaries     []string
		relevant      bool
		indeterminate bool
	)
	for i, chunk := range chunks {
		answer, err := s.completer.Complete(ctx, s.prompt(chunk, query, page.URL, promptLinks), s.cfg.MaxTokens)
		if err != nil {
			return Verdict{}, fmt.Errorf("断片 %d/%d の判定に失敗しました: %w", i+1, len(chunks), err)
		}

		status, summary := s.interpret(answer)
		switch status {
		case StatusRelevant:
			relevant = true
			if summary != "" {
				summaries = append(summaries, summary)
			}
		case StatusIndeterminate:
			indeterminate = true
			s.logger.Warn("応答が構造化形式にも定型文にも一致しません",
				zap.String("url", page.URL),
				zap.Int("fragment", i+1),
				zap.String("answer", truncate(answer, 200)))
		}
	}

	switch {
	case relevant:
		links := extract.FilterLinks(page.Links, extract.ParseTerms(query))
		return Verdict{
			Status:   StatusRelevant,
			Evidence: strings.Join(summaries, " "),
			Links:    extract.URLs(extract.Limit(links, s.cfg.ResultLinks)),
		}, nil
	case indeterminate:
		return Verdict{Status: StatusIndeterminate}, nil
	default:
		return Verdict{Status: StatusNotRelevant}, nil
	}
}

// prompt は1断片分の問い合わせ文を組み立てます。
func (s *Semantic) prompt(chunk, query, pageURL string, links []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lee el siguiente contenido: %q.\n", chunk)
	fmt.Fprintf(&b, "La consulta es: %q.\n", query)
	if len(links) > 0 {
		fmt.Fprintf(&b, "Enlaces de la página: %s.\n", strings.Join(links, ", "))
	}
	b.WriteString("Responde únicamente con un objeto JSON con la forma {\"relevant\": true|false, \"summary\": \"...\"}.\n")
	fmt.Fprintf(&b, "1. Si el contenido menciona o responde a la consulta, usa \"relevant\": true y resume la información más relevante en un máximo de %d caracteres.\n", s.cfg.SummaryChars)
	fmt.Fprintf(&b, "2. Si es relevante, incluye en el resumen enlaces útiles relacionados con la consulta, incluyendo el enlace proporcionado: %s.\n", pageURL)
	fmt.Fprintf(&b, "3. Si no se encuentra información relevante, usa \"relevant\": false y \"summary\": %q.\n", NoMatchPhrase)
	return b.String()
}

// interpret は応答を解釈します。JSON として解釈できない場合は途中で切れた JSON、
// 定型文の順に判定し、どれにも当てはまらない場合は判定不能とします。
func (s *Semantic) interpret(answer string) (Status, string) {
	answer = strings.TrimSpace(answer)

	parsed, ok := parseFragmentAnswer(answer)
	if !ok {
		parsed, ok = parseTruncatedAnswer(answer)
	}
	if ok {
		if !parsed.Relevant {
			return StatusNotRelevant, ""
		}
		return StatusRelevant, truncate(strings.TrimSpace(parsed.Summary), s.cfg.SummaryChars)
	}

	if strings.Contains(strings.ToLower(answer), strings.ToLower(NoMatchPhrase)) {
		return StatusNotRelevant, ""
	}
	return StatusIndeterminate, ""
}

// parseFragmentAnswer は、応答に含まれる最初の JSON オブジェクトを取り出して解釈します。
// コードフェンスや前後の説明文は無視されます。
func parseFragmentAnswer(answer string) (fragmentAnswer, bool) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end <= start {
		return fragmentAnswer{}, false
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(answer[start:end+1]), &raw); err != nil {
		return fragmentAnswer{}, false
	}
	if _, ok := raw["relevant"]; !ok {
		return fragmentAnswer{}, false
	}

	var parsed fragmentAnswer
	if err := json.Unmarshal([]byte(answer[start:end+1]), &parsed); err != nil {
		return fragmentAnswer{}, false
	}
	return parsed, true
}

var (
	truncatedRelevant = regexp.MustCompile(`^\{\s*"relevant"\s*:\s*(true|false)\b`)
	truncatedSummary  = regexp.MustCompile(`"summary"\s*:\s*"((?:[^"\\]|\\.)*)`)
)

// parseTruncatedAnswer は、トークン上限で閉じ括弧の前に切れた応答を解釈します。
// "relevant" が先頭のキーである場合に限り、切れた要約をそのまま使います。
func parseTruncatedAnswer(answer string) (fragmentAnswer, bool) {
	start := strings.Index(answer, "{")
	if start < 0 {
		return fragmentAnswer{}, false
	}
	body := answer[start:]

	m := truncatedRelevant.FindStringSubmatch(body)
	if m == nil {
		return fragmentAnswer{}, false
	}
	parsed := fragmentAnswer{Relevant: m[1] == "true"}
	if sm := truncatedSummary.FindStringSubmatch(body); sm != nil {
		parsed.Summary = strings.NewReplacer(`\"`, `"`, `\n`, " ", `\\`, `\`).Replace(sm[1])
	}
	return parsed, true
}

// truncate は文字数（rune）単位で切り詰めます。
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
