package report

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/shouni/go-web-scan/v2/internal/pipeline"
)

// statusLabels は集計表の行見出しです。
var statusLabels = map[pipeline.RowStatus]string{
	pipeline.StatusRelevant:      "関連あり",
	pipeline.StatusNotRelevant:   "関連なし",
	pipeline.StatusIndeterminate: "判定不能",
	pipeline.StatusAccessError:   "アクセス失敗",
	pipeline.StatusUnresolved:    "代替URLなし",
	pipeline.StatusInvalid:       "URL不正",
	pipeline.StatusEmpty:         "URL空",
}

// Render は実行結果の集計表を w に書き出します。
func Render(w io.Writer, runID, output string, summary pipeline.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("web-scan %s", runID))

	t.AppendHeader(table.Row{"状態", "件数"})
	for _, status := range pipeline.AllStatuses {
		t.AppendRow(table.Row{statusLabels[status], summary.ByStatus[status]})
	}
	t.AppendFooter(table.Row{"合計", summary.Total})
	t.Render()

	if output != "" {
		fmt.Fprintf(w, "出力ファイル: %s\n", output)
	}
}

// RenderSearch は検索結果の一覧を w に書き出します。
func RenderSearch(w io.Writer, query string, results []string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(query)

	t.AppendHeader(table.Row{"#", "URL"})
	for i, u := range results {
		t.AppendRow(table.Row{i + 1, u})
	}
	t.Render()
}
