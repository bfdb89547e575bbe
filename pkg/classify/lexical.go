package classify

import (
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/shouni/go-web-scan/v2/pkg/extract"
)

// DefaultKeywords はキーワード未指定時に使用するコンプライアンス関連の語です。
var DefaultKeywords = []string{
	"denuncia", "denuncias", "canal de denuncias", "canal ético", "compliance",
	"channel", "ethics", "complaint", "canaldenuncias", "canaletico", "etico", "ético",
	"código de conducta", "code of conduct", "whistleblower channel", "reporting channel",
	"whistleblowing channel", "canal de ética", "ética", "complaints channel",
	"sistema interno de información", "canal del informante", "canal de información",
	"canal de comunicación interno", "general conditions of sale", "buen gobierno",
}

// DefaultQuery は意味的判定でクエリ未指定時に使用する自由文のクエリです。
const DefaultQuery = "Necesito encontrar información referente a: denuncia, denuncias, canal de denuncias, " +
	"canal ético, compliance, ethics, complaint, canaldenuncias, canaletico, etico, ético, " +
	"código de conducta, code of conduct, whistleblower channel, Reporting channel, " +
	"Whistleblowing channel, canal de ética, ética, Complaints Channel, Sistema Interno de Información, " +
	"Canal del informante, Canal de información, Canal de comunicación interno, " +
	"General conditions of sale, buen gobierno"

// Lexical は、キーワードリストとの部分一致でページの関連性を判定します。
// 一度構築した後は複数のゴルーチンから安全に利用できます。
type Lexical struct {
	keywords []string
	matcher  *ahocorasick.Matcher
}

// NewLexical はキーワードを小文字化・空白除去して Aho-Corasick の照合器を構築します。
// 空のキーワードは無視され、正規化後に重複するキーワードは最初の出現のみ残します。
func NewLexical(keywords []string) *Lexical {
	l := &Lexical{}
	seen := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		normalized := strings.ToLower(strings.TrimSpace(kw))
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		l.keywords = append(l.keywords, normalized)
	}
	if len(l.keywords) > 0 {
		l.matcher = ahocorasick.NewStringMatcher(l.keywords)
	}
	return l
}

// Keywords は正規化済みのキーワードを返します。
func (l *Lexical) Keywords() []string {
	return append([]string(nil), l.keywords...)
}

// Classify は、ページテキストにいずれかのキーワードが含まれるかを判定します。
// 複数一致した場合はリスト上で先に現れるキーワードを採用し、
// アンカーテキストにそのキーワードを含むリンクがあれば根拠として返します。
func (l *Lexical) Classify(page *extract.Page) Verdict {
	if l.matcher == nil || page == nil {
		return Verdict{Status: StatusNotRelevant}
	}

	hits := l.matcher.MatchThreadSafe([]byte(strings.ToLower(page.Text)))
	if len(hits) == 0 {
		return Verdict{Status: StatusNotRelevant}
	}

	first := hits[0]
	for _, idx := range hits[1:] {
		if idx < first {
			first = idx
		}
	}
	keyword := l.keywords[first]

	verdict := Verdict{Status: StatusRelevant, Keyword: keyword}
	if link, ok := page.FindAnchor(keyword); ok {
		verdict.Evidence = link.URL
		verdict.Links = []string{link.URL}
	}
	return verdict
}
