package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/shouni/go-web-scan/v2/internal/pipeline"
	"github.com/shouni/go-web-scan/v2/pkg/classify"
	"github.com/shouni/go-web-scan/v2/pkg/extract"
	"github.com/shouni/go-web-scan/v2/pkg/fetcher"
	"github.com/shouni/go-web-scan/v2/pkg/sheet"
)

// --- モック ---

// StubFetcher は URL ごとに固定の HTML を返します。未登録の URL は接続エラーになります。
type StubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls [][]string
}

func (s *StubFetcher) Fetch(_ context.Context, candidates []string) (*fetcher.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, candidates)

	for _, u := range candidates {
		if body, ok := s.pages[u]; ok {
			return &fetcher.Result{
				URL:         u,
				FinalURL:    u,
				Body:        []byte(body),
				ContentType: "text/html; charset=utf-8",
				StatusCode:  200,
			}, nil
		}
	}
	last := candidates[len(candidates)-1]
	return nil, &fetcher.FetchError{Kind: fetcher.KindConnection, URL: last, Err: errors.New("connection refused")}
}

func (s *StubFetcher) Calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.calls...)
}

// StubSearcher は固定の検索結果を返します。
type StubSearcher struct {
	mu      sync.Mutex
	results []string
	err     error
	queries []string
}

func (s *StubSearcher) Search(_ context.Context, query string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.results[:min(limit, len(s.results))], nil
}

// StubSemantic は固定の判定を返します。
type StubSemantic struct {
	verdict classify.Verdict
	err     error
}

func (s *StubSemantic) Classify(_ context.Context, _ *extract.Page, _ string) (classify.Verdict, error) {
	return s.verdict, s.err
}

// StubLinkJudge は URL に "compliance" を含むリンクだけを残します。
type StubLinkJudge struct {
	got []extract.LinkCandidate
}

func (s *StubLinkJudge) Judge(_ context.Context, links []extract.LinkCandidate, _ string) ([]string, error) {
	s.got = links
	var kept []string
	for _, l := range links {
		if strings.Contains(l.URL, "compliance") {
			kept = append(kept, l.URL)
		}
	}
	return kept, nil
}

// --- ヘルパー ---

const compliancePage = `<html><head><title>Example</title></head><body>
<p>Our compliance program</p>
<a href="/about">About</a>
<a href="/compliance">Compliance and ethics</a>
</body></html>`

const plainPage = `<html><body><p>Nothing to see here</p><a href="/blog">Blog</a></body></html>`

func openTable(t *testing.T, rows [][]string) *sheet.Table {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for r, row := range rows {
		for c, val := range row {
			if val == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, val))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	table, err := sheet.OpenReader(bytes.NewReader(buf.Bytes()), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = table.Close() })
	return table
}

func cell(t *testing.T, table *sheet.Table, row, col int) string {
	t.Helper()
	v, err := table.Get(row, col)
	require.NoError(t, err)
	return v
}

func newKeywordPipeline(t *testing.T, cfg pipeline.Config, f pipeline.Fetcher, s *StubSearcher) *pipeline.Pipeline {
	t.Helper()
	deps := pipeline.Deps{Fetcher: f, Lexical: classify.NewLexical([]string{"compliance"})}
	if s != nil {
		deps.Searcher = s
	}
	p, err := pipeline.New(cfg, deps, nil)
	require.NoError(t, err)
	return p
}

var cols = pipeline.Columns{URL: "WEBSITE", Company: "EMPRESA"}

// --- テスト ---

func TestRun_KeywordFound(t *testing.T) {
	f := &StubFetcher{pages: map[string]string{"https://example.com": compliancePage}}
	p := newKeywordPipeline(t, pipeline.Config{}, f, nil)
	table := openTable(t, [][]string{{"WEBSITE"}, {"example.com"}})

	summary, err := p.Run(context.Background(), table, cols)
	require.NoError(t, err)

	assert.Equal(t, "Resultado", cell(t, table, 1, 2))
	assert.Equal(t, "Enlaces Relevantes", cell(t, table, 1, 3))
	assert.Equal(t, "Palabra clave encontrada: 'compliance'", cell(t, table, 2, 2))
	assert.Equal(t, "https://example.com/compliance", cell(t, table, 2, 3))

	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.ByStatus[pipeline.StatusRelevant])
	assert.Equal(t, "https://example.com", summary.Outcomes[0].URL)
}

func TestRun_EmptyURLIsNotFetched(t *testing.T) {
	f := &StubFetcher{}
	p := newKeywordPipeline(t, pipeline.Config{}, f, nil)
	table := openTable(t, [][]string{{"WEBSITE", "PAIS"}, {"", "ES"}, {"sin-punto", "ES"}})

	summary, err := p.Run(context.Background(), table, cols)
	require.NoError(t, err)

	assert.Empty(t, f.Calls())
	assert.Equal(t, "URL vacía", cell(t, table, 2, 3))
	assert.Equal(t, "No se encontraron enlaces relevantes", cell(t, table, 2, 4))
	assert.Equal(t, "URL inválida", cell(t, table, 3, 3))
	assert.Equal(t, 1, summary.ByStatus[pipeline.StatusEmpty])
	assert.Equal(t, 1, summary.ByStatus[pipeline.StatusInvalid])
}

func TestRun_AccessFailure(t *testing.T) {
	f := &StubFetcher{}
	p := newKeywordPipeline(t, pipeline.Config{}, f, nil)
	table := openTable(t, [][]string{{"WEBSITE"}, {"unreachable.invalid"}})

	_, err := p.Run(context.Background(), table, cols)
	require.NoError(t, err)

	calls := f.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"https://unreachable.invalid", "http://unreachable.invalid"}, calls[0])
	assert.Equal(t, "Error al acceder (connection)", cell(t, table, 2, 2))
}

func TestRun_Fallback(t *testing.T) {
	tests := []struct {
		name        string
		rows        [][]string
		searcher    *StubSearcher
		pages       map[string]string
		wantResult  string
		wantAlt     string
		wantStatus  pipeline.RowStatus
		wantFetches int
	}{
		{
			name:     "代替URLで判定に成功",
			rows:     [][]string{{"EMPRESA", "WEBSITE"}, {"ACME", "unreachable.invalid"}},
			searcher: &StubSearcher{results: []string{"https://acme.example.com/"}},
			pages: map[string]string{
				"https://acme.example.com/": compliancePage,
			},
			wantResult:  "Palabra clave encontrada: 'compliance'",
			wantAlt:     "https://acme.example.com/",
			wantStatus:  pipeline.StatusRelevant,
			wantFetches: 2,
		},
		{
			name:        "代替URLでも取得に失敗",
			rows:        [][]string{{"EMPRESA", "WEBSITE"}, {"ACME", "unreachable.invalid"}},
			searcher:    &StubSearcher{results: []string{"https://acme.example.com/", "https://other.example.com/"}},
			wantResult:  "Error al acceder incluso con URL alternativa (connection)",
			wantAlt:     "https://acme.example.com/",
			wantStatus:  pipeline.StatusAccessError,
			wantFetches: 2,
		},
		{
			name:        "検索結果なし",
			rows:        [][]string{{"EMPRESA", "WEBSITE"}, {"ACME", "unreachable.invalid"}},
			searcher:    &StubSearcher{},
			wantResult:  "❌ No se pudo verificar o generar URL.",
			wantAlt:     "No se generó URL alternativa",
			wantStatus:  pipeline.StatusUnresolved,
			wantFetches: 1,
		},
		{
			name:        "検索エラー",
			rows:        [][]string{{"EMPRESA", "WEBSITE"}, {"ACME", "unreachable.invalid"}},
			searcher:    &StubSearcher{err: errors.New("rate limited")},
			wantResult:  "❌ No se pudo verificar o generar URL.",
			wantAlt:     "No se generó URL alternativa",
			wantStatus:  pipeline.StatusUnresolved,
			wantFetches: 1,
		},
		{
			name:     "URLが空で会社名あり",
			rows:     [][]string{{"EMPRESA", "WEBSITE"}, {"ACME", ""}},
			searcher: &StubSearcher{results: []string{"https://acme.example.com/"}},
			pages: map[string]string{
				"https://acme.example.com/": plainPage,
			},
			wantResult:  "Palabras clave no encontradas",
			wantAlt:     "https://acme.example.com/",
			wantStatus:  pipeline.StatusNotRelevant,
			wantFetches: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &StubFetcher{pages: tt.pages}
			p := newKeywordPipeline(t, pipeline.Config{Fallback: true}, f, tt.searcher)
			table := openTable(t, tt.rows)

			summary, err := p.Run(context.Background(), table, cols)
			require.NoError(t, err)

			assert.Equal(t, tt.wantResult, cell(t, table, 2, 3))
			assert.Equal(t, "URL Alternativa", cell(t, table, 1, 5))
			assert.Equal(t, tt.wantAlt, cell(t, table, 2, 5))
			assert.Equal(t, tt.wantStatus, summary.Outcomes[0].Status)

			// 検索は1回、代替URLへのアクセスは先頭の候補のみ
			assert.Equal(t, []string{"sitio oficial ACME"}, tt.searcher.queries)
			calls := f.Calls()
			require.Len(t, calls, tt.wantFetches)
			if tt.wantFetches == 2 || (tt.wantFetches == 1 && tt.rows[1][1] == "") {
				assert.Len(t, calls[len(calls)-1], 1)
			}
		})
	}
}

func TestRun_FallbackWithoutCompanyColumn(t *testing.T) {
	f := &StubFetcher{}
	p := newKeywordPipeline(t, pipeline.Config{Fallback: true}, f, &StubSearcher{})
	table := openTable(t, [][]string{{"WEBSITE"}, {"example.com"}})

	_, err := p.Run(context.Background(), table, cols)
	require.ErrorIs(t, err, sheet.ErrColumnNotFound)
	assert.Empty(t, f.Calls())
}

func TestRun_MissingURLColumn(t *testing.T) {
	f := &StubFetcher{}
	p := newKeywordPipeline(t, pipeline.Config{}, f, nil)
	table := openTable(t, [][]string{{"URL"}, {"example.com"}})

	_, err := p.Run(context.Background(), table, cols)
	require.ErrorIs(t, err, sheet.ErrColumnNotFound)
	assert.Empty(t, f.Calls())

	// 結果列は追加されない
	assert.Equal(t, "", cell(t, table, 1, 2))
}

func TestRun_IdempotentAcrossConcurrency(t *testing.T) {
	rows := [][]string{
		{"WEBSITE"},
		{"example.com"},
		{""},
		{"plain.example.com"},
		{"down.example.com"},
		{"https://example.com"},
		{"nodot"},
	}
	pages := map[string]string{
		"https://example.com":       compliancePage,
		"https://plain.example.com": plainPage,
	}

	render := func(concurrency int) []string {
		f := &StubFetcher{pages: pages}
		p := newKeywordPipeline(t, pipeline.Config{Concurrency: concurrency}, f, nil)
		table := openTable(t, rows)
		_, err := p.Run(context.Background(), table, cols)
		require.NoError(t, err)

		var out []string
		for r := 1; r <= len(rows); r++ {
			out = append(out, cell(t, table, r, 2)+"|"+cell(t, table, r, 3))
		}
		return out
	}

	first := render(1)
	assert.Equal(t, first, render(1))
	assert.Equal(t, first, render(4))
	assert.Equal(t, "Palabras clave no encontradas|No se encontraron enlaces relevantes", first[3])
	assert.Equal(t, "Error al acceder (connection)|No se encontraron enlaces relevantes", first[4])
}

func TestRun_Canceled(t *testing.T) {
	f := &StubFetcher{}
	p := newKeywordPipeline(t, pipeline.Config{}, f, nil)
	table := openTable(t, [][]string{{"WEBSITE"}, {"example.com"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, table, cols)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.Calls())
}

func TestProcessRow_Semantic(t *testing.T) {
	pages := map[string]string{"https://example.com": plainPage}

	tests := []struct {
		name       string
		semantic   *StubSemantic
		wantStatus pipeline.RowStatus
		wantResult string
		wantLinks  []string
	}{
		{
			name: "関連あり",
			semantic: &StubSemantic{verdict: classify.Verdict{
				Status:   classify.StatusRelevant,
				Evidence: "Canal ético disponible.",
				Links:    []string{"https://example.com/etica"},
			}},
			wantStatus: pipeline.StatusRelevant,
			wantResult: "✔️ Se encontró información relevante. Canal ético disponible.",
			wantLinks:  []string{"https://example.com/etica"},
		},
		{
			name:       "関連なし",
			semantic:   &StubSemantic{verdict: classify.Verdict{Status: classify.StatusNotRelevant}},
			wantStatus: pipeline.StatusNotRelevant,
			wantResult: "❌ No se encontró información relevante.",
		},
		{
			name:       "判定不能",
			semantic:   &StubSemantic{verdict: classify.Verdict{Status: classify.StatusIndeterminate}},
			wantStatus: pipeline.StatusIndeterminate,
			wantResult: "⚠️ Resultado indeterminado.",
		},
		{
			name:       "判定エラーは関連なし",
			semantic:   &StubSemantic{err: errors.New("llm down")},
			wantStatus: pipeline.StatusNotRelevant,
			wantResult: "❌ No se encontró información relevante.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := pipeline.New(pipeline.Config{Mode: pipeline.ModeSemantic},
				pipeline.Deps{Fetcher: &StubFetcher{pages: pages}, Semantic: tt.semantic}, nil)
			require.NoError(t, err)

			out := p.ProcessRow(context.Background(), sheet.RawEntry{Row: 2, URL: "example.com"})
			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, tt.wantResult, out.Result)
			assert.Equal(t, tt.wantLinks, out.Links)
		})
	}
}

func TestProcessRow_Links(t *testing.T) {
	pages := map[string]string{"https://example.com": compliancePage}

	t.Run("絞り込みなし", func(t *testing.T) {
		judge := &StubLinkJudge{}
		p, err := pipeline.New(pipeline.Config{Mode: pipeline.ModeLinks, Query: "compliance", KeepAllLinks: true},
			pipeline.Deps{Fetcher: &StubFetcher{pages: pages}, LinkJudge: judge}, nil)
		require.NoError(t, err)

		out := p.ProcessRow(context.Background(), sheet.RawEntry{Row: 2, URL: "example.com"})
		assert.Equal(t, pipeline.StatusRelevant, out.Status)
		assert.Equal(t, "✔️ Enlaces relevantes encontrados.", out.Result)
		assert.Equal(t, []string{"https://example.com/compliance"}, out.Links)
		assert.Len(t, judge.got, 2)
	})

	t.Run("クエリ語で絞り込み", func(t *testing.T) {
		judge := &StubLinkJudge{}
		p, err := pipeline.New(pipeline.Config{Mode: pipeline.ModeLinks, Query: "about"},
			pipeline.Deps{Fetcher: &StubFetcher{pages: pages}, LinkJudge: judge}, nil)
		require.NoError(t, err)

		out := p.ProcessRow(context.Background(), sheet.RawEntry{Row: 2, URL: "example.com"})
		assert.Equal(t, pipeline.StatusNotRelevant, out.Status)
		assert.Equal(t, "No se encontraron enlaces relevantes", out.LinksCell(pipeline.SpanishLabels))
		require.Len(t, judge.got, 1)
		assert.Equal(t, "https://example.com/about", judge.got[0].URL)
	})

	t.Run("既定のクエリでも絞り込む", func(t *testing.T) {
		judge := &StubLinkJudge{}
		p, err := pipeline.New(pipeline.Config{Mode: pipeline.ModeLinks, Query: "compliance"},
			pipeline.Deps{Fetcher: &StubFetcher{pages: pages}, LinkJudge: judge}, nil)
		require.NoError(t, err)

		out := p.ProcessRow(context.Background(), sheet.RawEntry{Row: 2, URL: "example.com"})
		assert.Equal(t, pipeline.StatusRelevant, out.Status)
		require.Len(t, judge.got, 1)
		assert.Equal(t, "https://example.com/compliance", judge.got[0].URL)
	})
}

func TestNew_Validation(t *testing.T) {
	f := &StubFetcher{}

	tests := []struct {
		name string
		cfg  pipeline.Config
		deps pipeline.Deps
	}{
		{"Fetcher なし", pipeline.Config{}, pipeline.Deps{Lexical: classify.NewLexical(nil)}},
		{"Lexical なし", pipeline.Config{Mode: pipeline.ModeKeywords}, pipeline.Deps{Fetcher: f}},
		{"Semantic なし", pipeline.Config{Mode: pipeline.ModeSemantic}, pipeline.Deps{Fetcher: f}},
		{"LinkJudge なし", pipeline.Config{Mode: pipeline.ModeLinks}, pipeline.Deps{Fetcher: f}},
		{"Searcher なし", pipeline.Config{Fallback: true}, pipeline.Deps{Fetcher: f, Lexical: classify.NewLexical(nil)}},
		{"未知のモード", pipeline.Config{Mode: "magic"}, pipeline.Deps{Fetcher: f}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pipeline.New(tt.cfg, tt.deps, nil)
			assert.Error(t, err)
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := pipeline.ParseMode(" Semantic ")
	require.NoError(t, err)
	assert.Equal(t, pipeline.ModeSemantic, m)

	m, err = pipeline.ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, pipeline.ModeKeywords, m)

	_, err = pipeline.ParseMode("magic")
	assert.Error(t, err)
}

func TestLabelsFor(t *testing.T) {
	l, err := pipeline.LabelsFor("en")
	require.NoError(t, err)
	assert.Equal(t, "Result", l.HeaderResult)

	l, err = pipeline.LabelsFor("")
	require.NoError(t, err)
	assert.Equal(t, pipeline.SpanishLabels, l)

	_, err = pipeline.LabelsFor("fr")
	assert.Error(t, err)
}
