package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shouni/go-web-scan/v2/internal/config"
	"github.com/shouni/go-web-scan/v2/internal/pipeline"
	"github.com/shouni/go-web-scan/v2/internal/report"
	"github.com/shouni/go-web-scan/v2/pkg/classify"
	"github.com/shouni/go-web-scan/v2/pkg/fetcher"
	"github.com/shouni/go-web-scan/v2/pkg/llm"
	"github.com/shouni/go-web-scan/v2/pkg/retry"
	"github.com/shouni/go-web-scan/v2/pkg/search"
	"github.com/shouni/go-web-scan/v2/pkg/sheet"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "スプレッドシートの企業サイトを巡回し、関連情報の有無を判定します",
	Long: `入力スプレッドシートのURL列の各行について、サイトを取得してリンクを抽出し、
キーワード (keywords)、ページ本文のLLM判定 (semantic)、リンク単位のLLM判定 (links) のいずれかで関連性を判定します。
結果は "Resultado" と "Enlaces Relevantes" の列として出力ファイルに書き込まれます。`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig
		if err := cfg.RequireInput(); err != nil {
			return err
		}

		// 1. 実行IDとキャンセル可能なコンテキスト
		runID := uuid.NewString()
		logger := appLogger.With(zap.String("run_id", runID))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		// 2. 入力の読み込み
		table, err := sheet.Open(cfg.Input, cfg.Sheet)
		if err != nil {
			return err
		}
		defer table.Close()

		// 3. 依存性の初期化
		p, err := buildPipeline(cfg, logger)
		if err != nil {
			return err
		}

		// 4. 実行と保存
		start := time.Now()
		logger.Info("処理を開始します",
			zap.String("input", cfg.Input),
			zap.String("sheet", table.Name()),
			zap.String("mode", string(cfg.Mode)))

		summary, err := p.Run(ctx, table, pipeline.Columns{URL: cfg.URLColumn, Company: companyColumn(cfg)})
		if err != nil {
			return err
		}
		if err := table.SaveAs(cfg.Output); err != nil {
			return err
		}

		logger.Info("処理が完了しました",
			zap.Int("rows", summary.Total),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("output", cfg.Output))

		// 5. 集計の表示
		report.Render(cmd.OutOrStdout(), runID, cfg.Output, summary)
		return nil
	},
}

// companyColumn はフォールバック有効時のみ会社名の列を返します。
func companyColumn(cfg config.Config) string {
	if cfg.Fallback {
		return cfg.CompanyColumn
	}
	return ""
}

// buildPipeline は設定からパイプラインとコラボレーターを組み立てます。
func buildPipeline(cfg config.Config, logger *zap.Logger) (*pipeline.Pipeline, error) {
	deps := pipeline.Deps{
		Fetcher: fetcher.New(fetcher.Config{
			Timeout:            cfg.Timeout,
			InsecureSkipVerify: cfg.Insecure,
			ChromeTLS:          cfg.ChromeTLS,
		}, logger),
		Lexical: classify.NewLexical(cfg.Keywords),
	}

	if cfg.NeedsLLM() {
		completer, err := newCompleter(cfg)
		if err != nil {
			return nil, err
		}
		switch cfg.Mode {
		case pipeline.ModeSemantic:
			semantic, err := classify.NewSemantic(completer, classify.SemanticConfig{ChunkWords: cfg.ChunkWords}, logger)
			if err != nil {
				return nil, err
			}
			deps.Semantic = semantic
		case pipeline.ModeLinks:
			judge, err := classify.NewLinkJudge(completer, classify.LinkJudgeConfig{}, logger)
			if err != nil {
				return nil, err
			}
			deps.LinkJudge = judge
		}
	}

	if cfg.Fallback {
		deps.Searcher = newSearcher(cfg, logger)
	}

	return pipeline.New(pipeline.Config{
		Mode:           cfg.Mode,
		Query:          cfg.Query,
		KeepAllLinks:   !cfg.FilterLinks,
		Fallback:       cfg.Fallback,
		SearchTemplate: cfg.SearchTemplate,
		Concurrency:    cfg.Concurrency,
		Labels:         cfg.Labels,
	}, deps, logger)
}

func newCompleter(cfg config.Config) (classify.Completer, error) {
	completer, err := llm.New(llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		Timeout:  cfg.LLM.Timeout,
		Retry:    retry.DefaultConfig(),
	})
	if err != nil {
		return nil, fmt.Errorf("LLMクライアントの初期化エラー: %w", err)
	}
	return completer, nil
}

func newSearcher(cfg config.Config, logger *zap.Logger) search.Searcher {
	return search.NewDuckDuckGo(search.DuckDuckGoConfig{
		Timeout: cfg.Timeout,
		Retry:   retry.DefaultConfig(),
	}, logger)
}

func init() {
	flags := scanCmd.Flags()
	flags.StringP(config.KeyInput, "i", "", "入力スプレッドシート (.xlsx)")
	flags.StringP(config.KeyOutput, "o", "", "出力スプレッドシート (既定: <入力>_resultado.xlsx)")
	flags.String(config.KeySheet, "", "シート名 (既定: アクティブシート)")
	flags.String(config.KeyURLColumn, config.DefaultURLColumn, "URL列の見出し")
	flags.String(config.KeyCompanyColumn, config.DefaultCompanyColumn, "会社名列の見出し (--fallback 時のみ使用)")
	flags.StringP(config.KeyMode, "m", string(pipeline.ModeKeywords), "判定方式 (keywords, semantic, links)")
	flags.StringP(config.KeyQuery, "q", "", "semantic / links モードの問い合わせ文 (既定: コンプライアンス関連の定型文)")
	flags.String(config.KeyKeywords, "", "keywords モードのカンマ区切りキーワード (既定: 組み込みリスト)")
	flags.Bool(config.KeyFilterLinks, true, "links モードで、問い合わせ文の語を含むリンクだけをLLMに渡す (--filter-links=false で全リンク)")
	flags.Bool(config.KeyFallback, false, "URLが使えない場合に会社名で代替URLを検索する")
	flags.String(config.KeySearchTemplate, search.DefaultQueryTemplate, "代替URL検索のクエリ書式 (%s に会社名)")
	flags.IntP(config.KeyConcurrency, "c", pipeline.DefaultConcurrency, "行の同時処理数")
	flags.Int(config.KeyChunkWords, classify.DefaultChunkWords, "semantic モードの1断片あたりの語数")
	flags.String(config.KeyLocale, config.DefaultLocale, "出力する文言の言語 (es, en)")
	flags.String(config.KeyLLMProvider, llm.ProviderOpenAI, "LLMプロバイダー (openai, anthropic)")
	flags.String(config.KeyLLMModel, "", "LLMのモデル名 (既定: プロバイダーごとの既定値)")
	flags.String(config.KeyLLMBaseURL, "", "OpenAI互換APIのベースURL")
	flags.Duration(config.KeyLLMTimeout, llm.DefaultTimeout, "1回のLLM呼び出しのタイムアウト")
}

var _ pipeline.Fetcher = (*fetcher.Fetcher)(nil)
