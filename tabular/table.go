// Package tabular は統計表ファイル（xlsx / CSV）を「行とセル値の並び」として読み出す抽象を提供します。
// 各パーサーはファイル形式を意識せず、固定のヘッダー行オフセットと列番号でセルを参照します。
package tabular

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Row は1行分のセル値です。値は nil / string / float64 / bool のいずれかになります。
type Row []any

// Cell は1始まりの列番号でセル値を返します。範囲外は nil です。
func (r Row) Cell(col int) any {
	if col < 1 || col > len(r) {
		return nil
	}
	return r[col-1]
}

// Table は1枚のシート（またはCSVファイル）を表します。
// Rows は呼び出しごとに元データを読み直し、ハンドルは初回アクセス時に開いて Close まで保持します。
type Table interface {
	Rows() ([]Row, error)
	Close() error
}

// Options はテーブルを開く際の設定です。
type Options struct {
	// Sheet は優先して読むシート名です。存在しなければ先頭シートを使います。
	Sheet string
	// Encoding は CSV の文字コード（auto / utf-8 / shift_jis）です。
	Encoding string
}

// ErrUnsupportedFormat は拡張子から形式を判定できない場合に返されます。
var ErrUnsupportedFormat = errors.New("unsupported tabular format")

// Open はファイルの拡張子に応じたテーブルを返します。ファイルは最初の Rows 呼び出しまで開きません。
func Open(path string, opts Options) (Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("tabular source %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return NewXLSXTable(path, opts.Sheet), nil
	case ".csv", ".txt":
		return NewCSVTable(path, opts.Encoding), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// RowAt は1始まりの行番号で行を返します。範囲外は nil です。
func RowAt(rows []Row, rowNum int) Row {
	if rowNum < 1 || rowNum > len(rows) {
		return nil
	}
	return rows[rowNum-1]
}
