package parsers

import (
	"fmt"
	"math"

	"jichitai/jcode"
	"jichitai/tabular"

	"go.uber.org/zap"
)

// 各表のデータ開始行（1始まり）
const (
	codesFirstRow      = 2
	populationFirstRow = 9
	ageGroupFirstRow   = 4
	financeFirstRow    = 3
	myNumberFirstRow   = 119 // 118行目は全国集計
	dxFirstRow         = 2
	dxFirstColumn      = 3
)

// Round2 は小数第2位に丸めます。
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// dataRows は表を読み込み、first 行目以降を返します。
func dataRows(t tabular.Table, first int) ([]tabular.Row, error) {
	rows, err := t.Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to read table: %w", err)
	}
	if len(rows) < first {
		return nil, nil
	}
	return rows[first-1:], nil
}

// rowCode は先頭列の団体コードを正規化します。不正なら ok=false です。
func rowCode(row tabular.Row) (string, bool) {
	v := tabular.Value(row.Cell(1))
	if v == nil {
		return "", false
	}
	return jcode.Normalize(v)
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func closeTable(t tabular.Table) error {
	if t == nil {
		return nil
	}
	return t.Close()
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
