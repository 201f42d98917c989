// Package jcode は全国地方公共団体コード（団体コード）の正規化を扱います。
package jcode

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// Length は正規化後の団体コードの桁数です。
const Length = 6

// Normalize はセル値や呼び出し元から渡されたコードを6桁ゼロ埋めの文字列に変換します。
// nil・空文字・数字以外を含む値・7桁以上の値は ok=false を返します。
func Normalize(v any) (string, bool) {
	var s string
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		s = val
	case *string:
		if val == nil {
			return "", false
		}
		s = *val
	case int:
		s = strconv.Itoa(val)
	case int32:
		s = strconv.FormatInt(int64(val), 10)
	case int64:
		s = strconv.FormatInt(val, 10)
	case uint:
		s = strconv.FormatUint(uint64(val), 10)
	case uint64:
		s = strconv.FormatUint(val, 10)
	case float64:
		// スプレッドシートの数値セルは float で届くため、整数値のときだけ受け付ける
		if val < 0 || val != math.Trunc(val) || math.IsInf(val, 0) {
			return "", false
		}
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return Normalize(float64(val))
	case fmt.Stringer:
		s = val.String()
	default:
		return "", false
	}

	// 全角数字（"０３３２２７"）は半角に揃える
	s = width.Narrow.String(strings.TrimSpace(s))
	if s == "" || len(s) > Length {
		return "", false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return strings.Repeat("0", Length-len(s)) + s, true
}

// IsCanonical は既に正規化済みの6桁コードかどうかを判定します。
func IsCanonical(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
