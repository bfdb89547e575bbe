package pipeline

import (
	"strings"
)

// RowStatus は1行の処理結果の種別です。
type RowStatus string

const (
	StatusEmpty         RowStatus = "empty"
	StatusInvalid       RowStatus = "invalid"
	StatusAccessError   RowStatus = "access_error"
	StatusRelevant      RowStatus = "relevant"
	StatusNotRelevant   RowStatus = "not_relevant"
	StatusIndeterminate RowStatus = "indeterminate"
	StatusUnresolved    RowStatus = "unresolved"
)

// AllStatuses は集計表示の順序です。
var AllStatuses = []RowStatus{
	StatusRelevant,
	StatusNotRelevant,
	StatusIndeterminate,
	StatusAccessError,
	StatusUnresolved,
	StatusInvalid,
	StatusEmpty,
}

// Outcome は1行分の出力です。
type Outcome struct {
	Row         int
	Status      RowStatus
	URL         string   // 取得に成功したURL（最終URL）
	Result      string   // 結果列の値
	Links       []string // 関連リンク列の値（複数はカンマ区切りで出力）
	Alternative string   // 代替URL列の値（フォールバック有効時のみ）
}

// LinksCell は関連リンク列に書き込む値を返します。
func (o Outcome) LinksCell(labels Labels) string {
	if len(o.Links) == 0 {
		return labels.NoRelevantLinks
	}
	return strings.Join(o.Links, ", ")
}

// AlternativeCell は代替URL列に書き込む値を返します。
func (o Outcome) AlternativeCell(labels Labels) string {
	if o.Alternative == "" {
		return labels.NoAlternative
	}
	return o.Alternative
}

// Summary は1回の実行の集計です。
type Summary struct {
	Total    int
	ByStatus map[RowStatus]int
	Outcomes []Outcome // 行順
}

func newSummary(outcomes []Outcome) Summary {
	s := Summary{
		Total:    len(outcomes),
		ByStatus: make(map[RowStatus]int),
		Outcomes: outcomes,
	}
	for _, o := range outcomes {
		s.ByStatus[o.Status]++
	}
	return s
}
