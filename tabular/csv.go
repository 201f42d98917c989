package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// CSV の文字コード指定
const (
	EncodingAuto     = "auto"
	EncodingUTF8     = "utf-8"
	EncodingShiftJIS = "shift_jis"
)

// CSVTable はCSVファイルをテーブルとして読み出します。セルはすべて文字列で、空欄は nil です。
type CSVTable struct {
	path     string
	encoding string

	mu   sync.Mutex
	file *os.File
}

// NewCSVTable は path のCSVを遅延オープンするテーブルを返します。
func NewCSVTable(path, encoding string) *CSVTable {
	if encoding == "" {
		encoding = EncodingAuto
	}
	return &CSVTable{path: path, encoding: strings.ToLower(encoding)}
}

// SkipBOM はUTF-8 BOMをスキップします。
func SkipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	peeked, err := br.Peek(3)
	if err != nil {
		return br
	}
	if bytes.Equal(peeked, []byte{0xEF, 0xBB, 0xBF}) {
		br.Discard(3)
	}
	return br
}

// decode は指定の文字コードでUTF-8のリーダーを作ります。
// auto の場合、UTF-8として不正なバイト列なら Shift-JIS とみなします。
func (t *CSVTable) decode(r io.Reader) (io.Reader, error) {
	switch t.encoding {
	case EncodingShiftJIS, "sjis", "cp932":
		return transform.NewReader(r, japanese.ShiftJIS.NewDecoder()), nil
	case EncodingUTF8, "utf8":
		return SkipBOM(r), nil
	case EncodingAuto:
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		if utf8.Valid(b) {
			return SkipBOM(bytes.NewReader(b)), nil
		}
		return transform.NewReader(bytes.NewReader(b), japanese.ShiftJIS.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unknown csv encoding %q", t.encoding)
	}
}

// Rows はCSV全体を読み直して返します。読み取りエラーの行は空行として扱い、行番号は維持します。
func (t *CSVTable) Rows() ([]Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		f, err := os.Open(t.path)
		if err != nil {
			return nil, fmt.Errorf("could not open file %s: %w", t.path, err)
		}
		t.file = f
	}
	if _, err := t.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind %s: %w", t.path, err)
	}

	src, err := t.decode(t.file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", t.path, err)
	}

	reader := csv.NewReader(src)
	reader.LazyQuotes = true    // ダブルクォートが不完全でも許容
	reader.FieldsPerRecord = -1 // 可変長カラムを許容

	var rows []Row
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if _, ok := err.(*csv.ParseError); ok {
				rows = append(rows, Row{})
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", t.path, err)
		}
		row := make(Row, len(rec))
		for i, v := range rec {
			if v != "" {
				row[i] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Close はファイルハンドルを解放します。
func (t *CSVTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}
