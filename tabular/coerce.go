package tabular

import (
	"math"
	"strconv"
	"strings"
)

// IsNotApplicable はセルが「該当なし」プレースホルダ（"-" または全角 "－"）かどうかを判定します。
func IsNotApplicable(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	return s == "-" || s == "－"
}

// Value はセル値から該当なしプレースホルダと空白を取り除いた値を返します。
func Value(v any) any {
	if IsNotApplicable(v) {
		return nil
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		return s
	}
	return v
}

// String はセル値を文字列として返します。空欄と該当なしは nil です。
func String(v any) *string {
	switch val := Value(v).(type) {
	case nil:
		return nil
	case string:
		return &val
	case float64:
		s := strconv.FormatFloat(val, 'f', -1, 64)
		return &s
	case bool:
		s := strconv.FormatBool(val)
		return &s
	default:
		return nil
	}
}

// Float はセル値を数値として返します。数値に変換できなければ nil です（エラーにはしません）。
func Float(v any) *float64 {
	switch val := Value(v).(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return &val
	case int:
		f := float64(val)
		return &f
	case int64:
		f := float64(val)
		return &f
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(val, ",", ""), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// Int はセル値を整数として返します。小数は切り捨て、変換できなければ nil です。
func Int(v any) *int64 {
	switch val := Value(v).(type) {
	case int:
		n := int64(val)
		return &n
	case int64:
		return &val
	case string:
		s := strings.ReplaceAll(val, ",", "")
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &n
		}
	}
	f := Float(v)
	if f == nil {
		return nil
	}
	t := math.Trunc(*f)
	// int64 に収まらない値は変換結果が未定義なので扱わない
	if t < math.MinInt64 || t >= math.MaxInt64 {
		return nil
	}
	n := int64(t)
	return &n
}

// Percent は "88.8%" のような割合文字列を 88.8 に変換します。
// 数値セルはそのまま返し、"%" を含まない文字列や解析できない値は nil です。
func Percent(v any) *float64 {
	switch val := Value(v).(type) {
	case float64:
		return &val
	case string:
		if !strings.Contains(val, "%") && !strings.Contains(val, "％") {
			return nil
		}
		s := strings.TrimSpace(strings.NewReplacer("%", "", "％", "").Replace(val))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
