package report_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shouni/go-web-scan/v2/internal/pipeline"
	"github.com/shouni/go-web-scan/v2/internal/report"
)

func TestRender(t *testing.T) {
	summary := pipeline.Summary{
		Total: 5,
		ByStatus: map[pipeline.RowStatus]int{
			pipeline.StatusRelevant:    3,
			pipeline.StatusAccessError: 1,
			pipeline.StatusEmpty:       1,
		},
	}

	var buf bytes.Buffer
	report.Render(&buf, "run-1234", "empresas_resultado.xlsx", summary)
	out := buf.String()

	assert.Contains(t, out, "run-1234")
	assert.Contains(t, out, "関連あり")
	assert.Contains(t, out, "判定不能")
	assert.Contains(t, out, "出力ファイル: empresas_resultado.xlsx")

	// AllStatuses の順に全状態が並ぶ
	relevant := strings.Index(out, "関連あり")
	empty := strings.Index(out, "URL空")
	assert.Greater(t, empty, relevant)
}

func TestRenderSearch(t *testing.T) {
	var buf bytes.Buffer
	report.RenderSearch(&buf, "sitio oficial ACME", []string{"https://acme.example.com/", "https://acme.example.org/"})
	out := buf.String()

	assert.Contains(t, out, "sitio oficial ACME")
	assert.Contains(t, out, "https://acme.example.com/")
	assert.Contains(t, out, "https://acme.example.org/")
}
