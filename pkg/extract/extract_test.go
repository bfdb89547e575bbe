package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-web-scan/v2/pkg/extract"
)

const samplePage = `<html><head><title>  Empresa   Ejemplo </title>
<script>var compliance = "no es texto";</script>
<style>.canal { color: red }</style>
</head><body>
<nav><a href="/policy">Política de privacidad</a></nav>
<main>
  <p>Bienvenido a nuestra web.</p><p>Disponemos de un canal de denuncias.</p>
  <a href="contacto.html">Contacto</a>
  <a href="https://otra.example.org/etica">Código   Ético</a>
  <a href="mailto:info@example.com">Email</a>
  <a href="javascript:void(0)">Menú</a>
  <a href="">Vacío</a>
  <a href="/policy">Privacidad</a>
</main>
<noscript>Activa JavaScript</noscript>
</body></html>`

func TestParse(t *testing.T) {
	page, err := extract.Parse([]byte(samplePage), "text/html; charset=utf-8", "https://example.com/es/inicio")
	require.NoError(t, err)

	t.Run("base_url_is_scheme_and_host", func(t *testing.T) {
		assert.Equal(t, "https://example.com", page.BaseURL)
		assert.Equal(t, "https://example.com/es/inicio", page.URL)
	})

	t.Run("title_is_normalized", func(t *testing.T) {
		assert.Equal(t, "Empresa Ejemplo", page.Title)
	})

	t.Run("text_excludes_scripts_and_styles", func(t *testing.T) {
		assert.Contains(t, page.Text, "canal de denuncias")
		assert.NotContains(t, page.Text, "no es texto")
		assert.NotContains(t, page.Text, "color: red")
		assert.NotContains(t, page.Text, "Activa JavaScript")
	})

	t.Run("adjacent_paragraphs_do_not_merge", func(t *testing.T) {
		assert.Contains(t, page.Text, "web. Disponemos")
	})

	t.Run("links_resolved_in_document_order", func(t *testing.T) {
		expected := []string{
			"https://example.com/policy",
			"https://example.com/contacto.html",
			"https://otra.example.org/etica",
			"https://example.com/policy",
		}
		assert.Equal(t, expected, extract.URLs(page.Links), "http/https 以外は除外され、重複は保持されます")
		assert.Equal(t, "Código Ético", page.Links[2].Text)
		assert.Equal(t, "contacto.html", page.Links[1].Href)
	})
}

func TestParse_RelativePolicyLink(t *testing.T) {
	html := `<html><body><a href="/policy">policy</a></body></html>`

	page, err := extract.Parse([]byte(html), "text/html", "https://example.com")
	require.NoError(t, err)
	require.Len(t, page.Links, 1)
	assert.Equal(t, "https://example.com/policy", page.Links[0].URL)
}

func TestParse_DecodesLatin1(t *testing.T) {
	// "Política" を ISO-8859-1 でエンコード
	body := []byte("<html><body><p>Pol\xedtica de cumplimiento</p></body></html>")

	page, err := extract.Parse(body, "text/html; charset=iso-8859-1", "http://example.es")
	require.NoError(t, err)
	assert.Equal(t, "Política de cumplimiento", page.Text)
}

func TestParse_CollapsesWhitespace(t *testing.T) {
	body := []byte("<html><body>\n\t<p>  Canal\t\tde\n denuncias </p>\n<div>\u00a0Ética</div></body></html>")

	page, err := extract.Parse(body, "text/html", "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "Canal de denuncias Ética", page.Text)
}

func TestParse_InvalidPageURL(t *testing.T) {
	_, err := extract.Parse([]byte("<html></html>"), "text/html", "example.com")
	assert.Error(t, err)
}

func TestParseTerms(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{name: "trim_and_lower", query: " Compliance , Canal de DENUNCIAS,ética ", expected: []string{"compliance", "canal de denuncias", "ética"}},
		{name: "drop_empty_terms", query: "a,, ,b,", expected: []string{"a", "b"}},
		{name: "empty_query", query: "", expected: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extract.ParseTerms(tt.query))
		})
	}
}

func TestFilterLinks(t *testing.T) {
	links := []extract.LinkCandidate{
		{Href: "/es/compliance", URL: "https://example.com/es/compliance", Text: "Cumplimiento"},
		{Href: "/contacto", URL: "https://example.com/contacto", Text: "Contacto"},
		{Href: "/etica", URL: "https://example.com/etica", Text: "Canal de Denuncias"},
		{Href: "/Compliance-Policy.pdf", URL: "https://example.com/Compliance-Policy.pdf", Text: ""},
	}

	t.Run("matches_href_or_text_case_insensitively", func(t *testing.T) {
		got := extract.FilterLinks(links, extract.ParseTerms("compliance, canal de denuncias"))
		assert.Equal(t, []string{
			"https://example.com/es/compliance",
			"https://example.com/etica",
			"https://example.com/Compliance-Policy.pdf",
		}, extract.URLs(got))
	})

	t.Run("host_alone_does_not_match", func(t *testing.T) {
		got := extract.FilterLinks(links, []string{"example"})
		assert.Empty(t, got)
	})

	t.Run("no_terms_no_links", func(t *testing.T) {
		assert.Empty(t, extract.FilterLinks(links, nil))
	})
}

func TestFindAnchor(t *testing.T) {
	page := &extract.Page{Links: []extract.LinkCandidate{
		{URL: "https://example.com/a", Text: "Inicio"},
		{URL: "https://example.com/b", Text: "Nuestro Canal de Denuncias"},
		{URL: "https://example.com/c", Text: "canal de denuncias (PDF)"},
	}}

	link, ok := page.FindAnchor("canal de denuncias")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/b", link.URL)

	_, ok = page.FindAnchor("compliance")
	assert.False(t, ok)
}

func TestLimit(t *testing.T) {
	links := make([]extract.LinkCandidate, 7)
	assert.Len(t, extract.Limit(links, 5), 5)
	assert.Len(t, extract.Limit(links, 10), 7)
	assert.Len(t, extract.Limit(links, 0), 7)
}
