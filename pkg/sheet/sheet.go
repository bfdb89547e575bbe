package sheet

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ErrColumnNotFound は、見出し行に指定の列名が存在しないことを示します。
var ErrColumnNotFound = errors.New("列が見つかりません")

const headerRow = 1

// RawEntry はスプレッドシートの1データ行です。値は欠落・不正の可能性があります。
type RawEntry struct {
	Row     int // Excel の行番号 (1始まり、見出しは1行目)
	URL     string
	Company string
}

// Table は1つのワークシートを表します。読み込みと列の追記を行い、別ファイルとして保存します。
// 並行アクセスは想定していません。
type Table struct {
	file   *excelize.File
	name   string
	rows   [][]string
	maxCol int
}

// Open はファイルを開き、sheetName のワークシートを対象にします。
// sheetName が空の場合はアクティブなワークシートを使用します。
func Open(path, sheetName string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("スプレッドシートを開けません (%s): %w", path, err)
	}
	return newTable(f, sheetName)
}

// OpenReader は io.Reader からワークブックを読み込みます。
func OpenReader(r io.Reader, sheetName string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("スプレッドシートを読み込めません: %w", err)
	}
	return newTable(f, sheetName)
}

func newTable(f *excelize.File, sheetName string) (*Table, error) {
	if sheetName == "" {
		sheetName = f.GetSheetName(f.GetActiveSheetIndex())
	}
	idx, err := f.GetSheetIndex(sheetName)
	if err != nil || idx < 0 {
		f.Close()
		return nil, fmt.Errorf("ワークシートが見つかりません: %q", sheetName)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("行の読み込みに失敗しました: %w", err)
	}

	t := &Table{file: f, name: sheetName, rows: rows}
	for _, row := range rows {
		t.maxCol = max(t.maxCol, len(row))
	}
	return t, nil
}

// Name は対象ワークシート名を返します。
func (t *Table) Name() string {
	return t.name
}

// Column は見出し行で header と完全一致する列の番号 (1始まり) を返します。
func (t *Table) Column(header string) (int, error) {
	if len(t.rows) > 0 {
		for i, cell := range t.rows[0] {
			if cell == header {
				return i + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrColumnNotFound, header)
}

// Entries はデータ行を上から順に返します。companyCol が 0 の場合、会社名は読み込みません。
func (t *Table) Entries(urlCol, companyCol int) []RawEntry {
	if len(t.rows) <= headerRow {
		return nil
	}
	entries := make([]RawEntry, 0, len(t.rows)-headerRow)
	for i, row := range t.rows[headerRow:] {
		entries = append(entries, RawEntry{
			Row:     i + headerRow + 1,
			URL:     cellAt(row, urlCol),
			Company: cellAt(row, companyCol),
		})
	}
	return entries
}

// cellAt は 1始まりの列番号の値を返します。範囲外は空文字列です。
func cellAt(row []string, col int) string {
	if col <= 0 || col > len(row) {
		return ""
	}
	return row[col-1]
}

// AppendColumn は最終列の右隣に見出しを書き込み、その列番号を返します。
func (t *Table) AppendColumn(header string) (int, error) {
	col := t.maxCol + 1
	if err := t.Set(headerRow, col, header); err != nil {
		return 0, err
	}
	return col, nil
}

// Set はセルに値を書き込みます。
func (t *Table) Set(row, col int, value string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("セル座標が不正です (row=%d, col=%d): %w", row, col, err)
	}
	if err := t.file.SetCellValue(t.name, cell, value); err != nil {
		return fmt.Errorf("セル %s への書き込みに失敗しました: %w", cell, err)
	}
	t.maxCol = max(t.maxCol, col)
	return nil
}

// Get はセルの値を読み出します。
func (t *Table) Get(row, col int) (string, error) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", fmt.Errorf("セル座標が不正です (row=%d, col=%d): %w", row, col, err)
	}
	return t.file.GetCellValue(t.name, cell)
}

// SaveAs はワークブックを新しいファイルとして保存します。
func (t *Table) SaveAs(path string) error {
	if err := t.file.SaveAs(path); err != nil {
		return fmt.Errorf("スプレッドシートの保存に失敗しました (%s): %w", path, err)
	}
	return nil
}

// Write はワークブックを w に書き出します。
func (t *Table) Write(w io.Writer) error {
	if err := t.file.Write(w); err != nil {
		return fmt.Errorf("スプレッドシートの書き出しに失敗しました: %w", err)
	}
	return nil
}

// Close は内部リソースを解放します。
func (t *Table) Close() error {
	return t.file.Close()
}
