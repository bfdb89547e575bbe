package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shouni/go-web-scan/v2/internal/report"
	"github.com/shouni/go-web-scan/v2/pkg/search"
)

const defaultSearchResults = 5

var (
	searchLimit    int
	searchTemplate string
)

var searchCmd = &cobra.Command{
	Use:   "search [会社名]",
	Short: "会社名で検索し、公式サイトの候補URLを表示します",
	Long:  `代替URL検索と同じ検索を1回だけ実行し、上位の結果を表示します。--fallback で使われるURLの確認に利用できます。`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		company := strings.TrimSpace(strings.Join(args, " "))
		if company == "" {
			return fmt.Errorf("会社名を指定してください")
		}
		if searchLimit < 1 {
			return fmt.Errorf("表示件数は1以上を指定してください: %d", searchLimit)
		}

		query := search.CompanyQuery(searchTemplate, company)
		results, err := newSearcher(appConfig, appLogger).Search(cmd.Context(), query, searchLimit)
		if err != nil {
			return err
		}
		appLogger.Debug("検索が完了しました", zap.String("query", query), zap.Int("results", len(results)))

		if len(results) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "結果が見つかりませんでした")
			return nil
		}
		report.RenderSearch(cmd.OutOrStdout(), query, results)
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", defaultSearchResults, "表示する結果の件数")
	searchCmd.Flags().StringVar(&searchTemplate, "template", search.DefaultQueryTemplate, "検索クエリの書式 (%s に会社名)")
}
