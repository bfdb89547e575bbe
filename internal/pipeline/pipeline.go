package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shouni/go-web-scan/v2/pkg/classify"
	"github.com/shouni/go-web-scan/v2/pkg/extract"
	"github.com/shouni/go-web-scan/v2/pkg/fetcher"
	"github.com/shouni/go-web-scan/v2/pkg/search"
	"github.com/shouni/go-web-scan/v2/pkg/sheet"
	"github.com/shouni/go-web-scan/v2/pkg/urlnorm"
)

// Mode は判定方式です。
type Mode string

const (
	ModeKeywords Mode = "keywords" // キーワードの部分一致
	ModeSemantic Mode = "semantic" // ページ本文の断片ごとにLLMで判定
	ModeLinks    Mode = "links"    // リンクごとにLLMで判定
)

// DefaultConcurrency は行の同時処理数です。1 の場合は厳密に逐次処理になります。
const DefaultConcurrency = 1

// ParseMode は文字列を Mode に変換します。
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeKeywords, ModeSemantic, ModeLinks:
		return m, nil
	case "":
		return ModeKeywords, nil
	default:
		return "", fmt.Errorf("未対応のモードです: %s (keywords, semantic, links のいずれか)", s)
	}
}

// Config は1回の実行の設定です。
type Config struct {
	Mode           Mode
	Query          string // semantic / links モードの自由文クエリ
	KeepAllLinks   bool   // links モードで、クエリ語による絞り込みをせずに全リンクをLLMに渡す
	Fallback       bool   // URLが使えない場合に会社名で代替URLを検索する
	SearchTemplate string // 代替URL検索のクエリ書式
	Concurrency    int
	Labels         Labels
}

// Deps はパイプラインの外部コラボレーターです。モードに必要なものだけを設定します。
type Deps struct {
	Fetcher   Fetcher
	Lexical   LexicalClassifier
	Semantic  SemanticClassifier
	LinkJudge LinkJudge
	Searcher  search.Searcher
}

// Columns は入力の列名です。Company はフォールバック有効時のみ必須です。
type Columns struct {
	URL     string
	Company string
}

// Pipeline は、1行ずつ URL の正規化・取得・リンク抽出・関連性判定を行います。
// 行同士は状態を共有しません。
type Pipeline struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
}

// New は設定とモードに必要なコラボレーターを検証して Pipeline を生成します。
func New(cfg Config, deps Deps, logger *zap.Logger) (*Pipeline, error) {
	if deps.Fetcher == nil {
		return nil, errors.New("pipeline.New: Fetcher cannot be nil")
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeKeywords
	}

	switch cfg.Mode {
	case ModeKeywords:
		if deps.Lexical == nil {
			return nil, errors.New("pipeline.New: keywords モードには Lexical が必要です")
		}
	case ModeSemantic:
		if deps.Semantic == nil {
			return nil, errors.New("pipeline.New: semantic モードには Semantic が必要です")
		}
	case ModeLinks:
		if deps.LinkJudge == nil {
			return nil, errors.New("pipeline.New: links モードには LinkJudge が必要です")
		}
	default:
		return nil, fmt.Errorf("pipeline.New: 未対応のモードです: %s", cfg.Mode)
	}
	if (cfg.Mode == ModeSemantic || cfg.Mode == ModeLinks) && strings.TrimSpace(cfg.Query) == "" {
		cfg.Query = classify.DefaultQuery
	}

	if cfg.Fallback && deps.Searcher == nil {
		return nil, errors.New("pipeline.New: フォールバックには Searcher が必要です")
	}
	if cfg.SearchTemplate == "" {
		cfg.SearchTemplate = search.DefaultQueryTemplate
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Labels == (Labels{}) {
		cfg.Labels = SpanishLabels
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{cfg: cfg, deps: deps, logger: logger}, nil
}

// Run はすべてのデータ行を処理し、結果列を追加します。
// 行は Concurrency 件まで並行に処理されますが、書き込みはすべての行の完了後に行順で行うため、
// 出力は同時処理数に依存しません。URL列（フォールバック時は会社名列も）がない場合は何も処理せずにエラーを返します。
func (p *Pipeline) Run(ctx context.Context, table *sheet.Table, cols Columns) (Summary, error) {
	// 1. 列の特定
	urlCol, err := table.Column(cols.URL)
	if err != nil {
		return Summary{}, err
	}
	companyCol := 0
	if p.cfg.Fallback || cols.Company != "" {
		companyCol, err = table.Column(cols.Company)
		if err != nil {
			if p.cfg.Fallback {
				return Summary{}, err
			}
			p.logger.Warn("会社名の列が見つからないため無視します", zap.String("column", cols.Company))
			companyCol = 0
		}
	}

	entries := table.Entries(urlCol, companyCol)

	// 2. 行の処理 (errgroup で同時処理数を制限)
	outcomes := make([]Outcome, len(entries))
	var counter atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Concurrency)
	for i, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n := counter.Add(1)
			p.logger.Info(fmt.Sprintf("%d - Procesando fila %d de %d", n, entry.Row-1, len(entries)),
				zap.Int("row", entry.Row))
			outcomes[i] = p.ProcessRow(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Summary{}, fmt.Errorf("処理が中断されました: %w", err)
	}

	// 3. 結果列の追加と書き込み (行順)
	if err := p.write(table, outcomes); err != nil {
		return Summary{}, err
	}
	return newSummary(outcomes), nil
}

// write は結果列を追加し、行順に書き込みます。
func (p *Pipeline) write(table *sheet.Table, outcomes []Outcome) error {
	labels := p.cfg.Labels

	resultCol, err := table.AppendColumn(labels.HeaderResult)
	if err != nil {
		return err
	}
	linksCol, err := table.AppendColumn(labels.HeaderLinks)
	if err != nil {
		return err
	}
	altCol := 0
	if p.cfg.Fallback {
		if altCol, err = table.AppendColumn(labels.HeaderAlternative); err != nil {
			return err
		}
	}

	for _, o := range outcomes {
		if err := table.Set(o.Row, resultCol, o.Result); err != nil {
			return err
		}
		if err := table.Set(o.Row, linksCol, o.LinksCell(labels)); err != nil {
			return err
		}
		if altCol > 0 {
			if err := table.Set(o.Row, altCol, o.AlternativeCell(labels)); err != nil {
				return err
			}
		}
	}
	return nil
}

// ProcessRow は1行を処理します。行単位のエラーはすべて Outcome に記録され、呼び出し元には伝播しません。
func (p *Pipeline) ProcessRow(ctx context.Context, entry sheet.RawEntry) Outcome {
	labels := p.cfg.Labels
	log := p.logger.With(zap.Int("row", entry.Row), zap.String("url", entry.URL))

	// 1. URL の正規化
	candidates, err := urlnorm.Normalize(entry.URL)
	if err != nil {
		if p.canFallback(entry) {
			log.Info("URLが使用できないため代替URLを検索します", zap.Error(err))
			return p.substitute(ctx, entry, log)
		}
		if errors.Is(err, urlnorm.ErrEmpty) {
			return Outcome{Row: entry.Row, Status: StatusEmpty, Result: labels.EmptyURL}
		}
		return Outcome{Row: entry.Row, Status: StatusInvalid, Result: labels.InvalidURL}
	}

	// 2. 取得 (https → http)
	res, err := p.deps.Fetcher.Fetch(ctx, candidates)
	if err != nil {
		if p.canFallback(entry) && ctx.Err() == nil {
			log.Info("すべての候補URLで取得に失敗したため代替URLを検索します", zap.Error(err))
			return p.substitute(ctx, entry, log)
		}
		return Outcome{Row: entry.Row, Status: StatusAccessError, Result: fmt.Sprintf(labels.AccessFailed, failureReason(err))}
	}

	// 3. 判定
	return p.classify(ctx, entry, res, log)
}

// canFallback は、代替URLの検索が可能かどうかを返します。
func (p *Pipeline) canFallback(entry sheet.RawEntry) bool {
	return p.cfg.Fallback && strings.TrimSpace(entry.Company) != ""
}

// classify は取得したページを解析し、モードに応じて判定します。
func (p *Pipeline) classify(ctx context.Context, entry sheet.RawEntry, res *fetcher.Result, log *zap.Logger) Outcome {
	labels := p.cfg.Labels
	out := Outcome{Row: entry.Row, URL: res.FinalURL}

	page, err := extract.Parse(res.Body, res.ContentType, res.FinalURL)
	if err != nil {
		log.Warn("ページの解析に失敗しました", zap.Error(err))
		out.Status = StatusAccessError
		out.Result = fmt.Sprintf(labels.AccessFailed, "parse")
		return out
	}

	switch p.cfg.Mode {
	case ModeSemantic:
		verdict, err := p.deps.Semantic.Classify(ctx, page, p.cfg.Query)
		if err != nil {
			// 判定コラボレーターの失敗は「関連なし」として扱う
			log.Warn("意味的判定に失敗しました", zap.Error(err))
			verdict = classify.Verdict{Status: classify.StatusNotRelevant}
		}
		out.Status = rowStatus(verdict.Status)
		switch verdict.Status {
		case classify.StatusRelevant:
			out.Result = labels.SemanticRelevant
			if verdict.Evidence != "" {
				out.Result += " " + verdict.Evidence
			}
			out.Links = verdict.Links
		case classify.StatusIndeterminate:
			out.Result = labels.SemanticIndeterminate
		default:
			out.Result = labels.SemanticNotRelevant
		}

	case ModeLinks:
		links := page.Links
		if !p.cfg.KeepAllLinks {
			links = extract.FilterLinks(links, extract.ParseTerms(p.cfg.Query))
		}
		kept, err := p.deps.LinkJudge.Judge(ctx, links, p.cfg.Query)
		if err != nil {
			log.Warn("リンクの判定に失敗しました", zap.Error(err))
			kept = nil
		}
		if len(kept) > 0 {
			out.Status = StatusRelevant
			out.Result = labels.LinksFound
			out.Links = kept
		} else {
			out.Status = StatusNotRelevant
			out.Result = labels.SemanticNotRelevant
		}

	default:
		verdict := p.deps.Lexical.Classify(page)
		if verdict.Relevant() {
			out.Status = StatusRelevant
			if verdict.Evidence != "" {
				out.Result = fmt.Sprintf(labels.KeywordFound, verdict.Keyword)
			} else {
				out.Result = fmt.Sprintf(labels.KeywordFoundNoLink, verdict.Keyword)
			}
			out.Links = verdict.Links
		} else {
			out.Status = StatusNotRelevant
			out.Result = labels.KeywordsNotFound
		}
	}

	log.Debug("行の判定結果", zap.String("status", string(out.Status)))
	return out
}

func rowStatus(s classify.Status) RowStatus {
	switch s {
	case classify.StatusRelevant:
		return StatusRelevant
	case classify.StatusIndeterminate:
		return StatusIndeterminate
	default:
		return StatusNotRelevant
	}
}

// failureReason は結果セル用の短い失敗理由を返します。
func failureReason(err error) string {
	var fetchErr *fetcher.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Reason()
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "error"
}
