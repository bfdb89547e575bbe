package pipeline

import (
	"fmt"
	"strings"
)

// Labels は出力セルに書き込む文言です。
type Labels struct {
	HeaderResult      string
	HeaderLinks       string
	HeaderAlternative string

	EmptyURL                string
	InvalidURL              string
	AccessFailed            string // %s に失敗理由
	AccessFailedAlternative string // %s に失敗理由
	Unresolved              string
	NoAlternative           string

	KeywordFound       string // %s にキーワード
	KeywordFoundNoLink string // %s にキーワード
	KeywordsNotFound   string

	SemanticRelevant      string
	SemanticNotRelevant   string
	SemanticIndeterminate string

	LinksFound      string
	NoRelevantLinks string
}

// SpanishLabels は既定の文言です。
var SpanishLabels = Labels{
	HeaderResult:      "Resultado",
	HeaderLinks:       "Enlaces Relevantes",
	HeaderAlternative: "URL Alternativa",

	EmptyURL:                "URL vacía",
	InvalidURL:              "URL inválida",
	AccessFailed:            "Error al acceder (%s)",
	AccessFailedAlternative: "Error al acceder incluso con URL alternativa (%s)",
	Unresolved:              "❌ No se pudo verificar o generar URL.",
	NoAlternative:           "No se generó URL alternativa",

	KeywordFound:       "Palabra clave encontrada: '%s'",
	KeywordFoundNoLink: "Palabra clave encontrada: '%s' - Link no encontrado",
	KeywordsNotFound:   "Palabras clave no encontradas",

	SemanticRelevant:      "✔️ Se encontró información relevante.",
	SemanticNotRelevant:   "❌ No se encontró información relevante.",
	SemanticIndeterminate: "⚠️ Resultado indeterminado.",

	LinksFound:      "✔️ Enlaces relevantes encontrados.",
	NoRelevantLinks: "No se encontraron enlaces relevantes",
}

// EnglishLabels は英語の文言です。
var EnglishLabels = Labels{
	HeaderResult:      "Result",
	HeaderLinks:       "Relevant Links",
	HeaderAlternative: "Alternative URL",

	EmptyURL:                "empty URL",
	InvalidURL:              "invalid URL",
	AccessFailed:            "access failed (%s)",
	AccessFailedAlternative: "access failed even with alternative URL (%s)",
	Unresolved:              "❌ Could not verify or generate a URL.",
	NoAlternative:           "no alternative URL generated",

	KeywordFound:       "keyword found: '%s'",
	KeywordFoundNoLink: "keyword found: '%s' - link not found",
	KeywordsNotFound:   "keywords not found",

	SemanticRelevant:      "✔️ Relevant information found.",
	SemanticNotRelevant:   "❌ No relevant information found.",
	SemanticIndeterminate: "⚠️ Indeterminate result.",

	LinksFound:      "✔️ Relevant links found.",
	NoRelevantLinks: "no relevant links found",
}

// LabelsFor はロケール ("es", "en") に対応する文言を返します。
func LabelsFor(locale string) (Labels, error) {
	switch strings.ToLower(strings.TrimSpace(locale)) {
	case "", "es":
		return SpanishLabels, nil
	case "en":
		return EnglishLabels, nil
	default:
		return Labels{}, fmt.Errorf("未対応のロケールです: %s", locale)
	}
}
