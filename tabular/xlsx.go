package tabular

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/xuri/excelize/v2"
)

// XLSXTable は excelize でワークブックの1シートを読み出します。
type XLSXTable struct {
	path  string
	sheet string

	mu   sync.Mutex
	file *excelize.File
}

// NewXLSXTable は path のワークブックを遅延オープンするテーブルを返します。
func NewXLSXTable(path, sheet string) *XLSXTable {
	return &XLSXTable{path: path, sheet: sheet}
}

func (t *XLSXTable) open() error {
	if t.file != nil {
		return nil
	}
	f, err := excelize.OpenFile(t.path)
	if err != nil {
		return fmt.Errorf("could not open workbook %s: %w", t.path, err)
	}
	t.file = f
	return nil
}

// sheetName は優先シートがあればそれを、なければ先頭シートを返します。
func (t *XLSXTable) sheetName() (string, error) {
	sheets := t.file.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook %s has no sheets", t.path)
	}
	if t.sheet != "" {
		for _, s := range sheets {
			if s == t.sheet {
				return s, nil
			}
		}
	}
	return sheets[0], nil
}

// Rows はシート全体を型付きセル値として読み出します。
func (t *XLSXTable) Rows() ([]Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.open(); err != nil {
		return nil, err
	}
	sheet, err := t.sheetName()
	if err != nil {
		return nil, err
	}

	raw, err := t.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s in %s: %w", sheet, t.path, err)
	}

	rows := make([]Row, len(raw))
	for i, cols := range raw {
		row := make(Row, len(cols))
		for j, v := range cols {
			if v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, err
			}
			typ, err := t.file.GetCellType(sheet, cell)
			if err != nil {
				return nil, fmt.Errorf("failed to get cell type %s!%s: %w", sheet, cell, err)
			}
			row[j] = typedValue(typ, v)
		}
		rows[i] = row
	}
	return rows, nil
}

// typedValue はセル型に応じて生の値を float64 / bool / string に変換します。
// 数値セルは t 属性を持たないことが多いため、未設定型も数値として解釈を試みます。
func typedValue(typ excelize.CellType, v string) any {
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		return v
	case excelize.CellTypeBool:
		return v == "1" || v == "TRUE" || v == "true"
	default:
		return v
	}
}

// Close はワークブックを閉じます。
func (t *XLSXTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}
