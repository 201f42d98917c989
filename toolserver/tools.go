package toolserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"jichitai/datamanager"
	"jichitai/jcode"
	"jichitai/model"
)

// errInvalidParams は JSON-RPC の -32602 として返す引数エラーです。
var errInvalidParams = errors.New("invalid params")

type lookupArgs struct {
	JichitaiCode codeArg `json:"jichitai_code"`
	JichitaiName string  `json:"jichitai_name"`
	Prefecture   string  `json:"prefecture"`
}

func (a lookupArgs) lookup() model.Lookup {
	return model.Lookup{Code: string(a.JichitaiCode), Name: a.JichitaiName, Prefecture: a.Prefecture}
}

// codeArg は団体コードを文字列でも数値 (33227) でも受け付けます。
// 数値は6桁に揃え、揃えられないものは該当なしになるよう元の表記のまま残します。
type codeArg string

func (c *codeArg) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case string(b) == "null":
		*c = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = codeArg(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("jichitai_code は文字列または数値で指定してください: %s", b)
	}
	if f, err := n.Float64(); err == nil {
		if code, ok := jcode.Normalize(f); ok {
			*c = codeArg(code)
			return nil
		}
	}
	*c = codeArg(n.String())
	return nil
}

type resolveArgs struct {
	JichitaiName string `json:"jichitai_name"`
	Prefecture   string `json:"prefecture"`
	FuzzyMatch   *bool  `json:"fuzzy_match"`
}

type searchArgs struct {
	PopulationMin          *float64   `json:"population_min"`
	PopulationMax          *float64   `json:"population_max"`
	Prefecture             stringList `json:"prefecture"`
	JichitaiType           stringList `json:"jichitai_type"`
	FinancialCapabilityMin *float64   `json:"financial_capability_min"`
	SortBy                 string     `json:"sort_by"`
	SortOrder              string     `json:"sort_order"`
	Limit                  *float64   `json:"limit"`
}

func (a searchArgs) criteria() (model.SearchCriteria, error) {
	c := model.SearchCriteria{
		Prefectures:            a.Prefecture,
		JichitaiTypes:          a.JichitaiType,
		FinancialCapabilityMin: a.FinancialCapabilityMin,
		SortBy:                 a.SortBy,
		SortOrder:              a.SortOrder,
	}
	var err error
	if c.PopulationMin, err = wholeNumber("population_min", a.PopulationMin); err != nil {
		return c, err
	}
	if c.PopulationMax, err = wholeNumber("population_max", a.PopulationMax); err != nil {
		return c, err
	}
	if a.Limit != nil {
		n, err := wholeNumber("limit", a.Limit)
		if err != nil {
			return c, err
		}
		if *n < 0 {
			return c, fmt.Errorf("%w: limit は0以上で指定してください", errInvalidParams)
		}
		c.Limit = int(*n)
	}
	return c, nil
}

func wholeNumber(name string, v *float64) (*int64, error) {
	if v == nil {
		return nil, nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v != math.Trunc(*v) {
		return nil, fmt.Errorf("%w: %s は整数で指定してください", errInvalidParams, name)
	}
	n := int64(*v)
	return &n, nil
}

type dxArgs struct {
	lookupArgs
	DataCategory stringList `json:"data_category"`
}

type exportArgs struct {
	OutputPath string `json:"output_path"`
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

var lookupProperties = map[string]any{
	"jichitai_code": map[string]any{"type": []string{"string", "integer"}, "description": "6桁の全国地方公共団体コード（5桁も可）"},
	"jichitai_name": map[string]any{"type": "string", "description": "自治体名（例: 盛岡市）"},
	"prefecture":    map[string]any{"type": "string", "description": "都道府県名。同名自治体の絞り込みに使用"},
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func withProps(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// found は該当なし (nil) を NotFound の応答に置き換えます。
func found[T any](v *T, err error, message string, q model.Lookup) (any, error) {
	if err != nil {
		return nil, err
	}
	if v == nil {
		return model.NewNotFound(message, q), nil
	}
	return v, nil
}

type toolHandler func(s *Server, args json.RawMessage) (any, error)

type toolEntry struct {
	Tool
	call toolHandler
}

var toolTable = []toolEntry{
	{
		Tool: Tool{
			Name: "get_basic_info",
			Description: "自治体コードまたは自治体名から基本情報（名称・都道府県・種別・人口・財政指標）を取得します。" +
				"Data source: 総務省「全国地方公共団体コード」, " + datamanager.PopulationSource + ", " +
				datamanager.FinanceSummarySource + ", " + datamanager.FinanceSettlementSource + ".",
			InputSchema: objectSchema(lookupProperties),
		},
		call: func(s *Server, raw json.RawMessage) (any, error) {
			var a lookupArgs
			if err := decodeArgs(raw, &a); err != nil {
				return nil, err
			}
			res, err := s.engine.GetBasicInfo(a.lookup())
			return found(res, err, "Municipality not found", a.lookup())
		},
	},
	{
		Tool: Tool{
			Name:        "resolve_name",
			Description: "自治体名から自治体コードを検索します。fuzzy_match が false の場合は完全一致のみ返します。Data source: 総務省「全国地方公共団体コード」.",
			InputSchema: objectSchema(map[string]any{
				"jichitai_name": lookupProperties["jichitai_name"],
				"prefecture":    lookupProperties["prefecture"],
				"fuzzy_match":   map[string]any{"type": "boolean", "default": true, "description": "部分一致を含めるか"},
			}, "jichitai_name"),
		},
		call: func(s *Server, raw json.RawMessage) (any, error) {
			var a resolveArgs
			if err := decodeArgs(raw, &a); err != nil {
				return nil, err
			}
			fuzzy := true
			if a.FuzzyMatch != nil {
				fuzzy = *a.FuzzyMatch
			}
			return s.engine.ResolveName(a.JichitaiName, a.Prefecture, fuzzy)
		},
	},
	{
		Tool: Tool{
			Name: "search",
			Description: "人口・都道府県・自治体種別・財政力指数で自治体を絞り込み、並べ替えて返します。" +
				"Data source: " + datamanager.PopulationSource + ", " + datamanager.FinanceSummarySource + ".",
			InputSchema: objectSchema(map[string]any{
				"population_min":           map[string]any{"type": "integer", "description": "人口の下限"},
				"population_max":           map[string]any{"type": "integer", "description": "人口の上限"},
				"prefecture":               map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "都道府県名のリスト"},
				"jichitai_type":            map[string]any{"type": "array", "items": map[string]any{"type": "string", "enum": model.JichitaiTypeNames()}},
				"financial_capability_min": map[string]any{"type": "number", "description": "財政力指数の下限"},
				"sort_by":                  map[string]any{"type": "string", "enum": []string{model.SortByPopulation, model.SortByFinancialCapability}},
				"sort_order":               map[string]any{"type": "string", "enum": []string{model.SortAsc, model.SortDesc}},
				"limit":                    map[string]any{"type": "integer", "description": "返す件数の上限"},
			}),
		},
		call: func(s *Server, raw json.RawMessage) (any, error) {
			var a searchArgs
			if err := decodeArgs(raw, &a); err != nil {
				return nil, err
			}
			c, err := a.criteria()
			if err != nil {
				return nil, err
			}
			return s.engine.Search(c)
		},
	},
	{
		Tool: Tool{
			Name:        "get_mynumber_rate",
			Description: "マイナンバーカードの人口に対する保有枚数率を取得します。Data source: 総務省「" + datamanager.MyNumberSource + "」.",
			InputSchema: objectSchema(lookupProperties),
		},
		call: func(s *Server, raw json.RawMessage) (any, error) {
			var a lookupArgs
			if err := decodeArgs(raw, &a); err != nil {
				return nil, err
			}
			res, err := s.engine.GetMyNumberRate(a.lookup())
			return found(res, err, "My Number Card data not found", a.lookup())
		},
	},
	{
		Tool: Tool{
			Name:        "get_dx_data",
			Description: "自治体DXの取組状況とオンライン手続の利用率を取得します。data_category でカテゴリを絞り込めます。Data source: デジタル庁「" + datamanager.DXSource + "」.",
			InputSchema: objectSchema(withProps(lookupProperties, map[string]any{
				"data_category": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "指標カテゴリ名。online_procedures でオンライン手続を含めます"},
			})),
		},
		call: func(s *Server, raw json.RawMessage) (any, error) {
			var a dxArgs
			if err := decodeArgs(raw, &a); err != nil {
				return nil, err
			}
			res, err := s.engine.GetDXData(a.lookup(), a.DataCategory)
			return found(res, err, "DX data not found", a.lookup())
		},
	},
	{
		Tool: Tool{
			Name:        "get_age_group_population",
			Description: "5歳階級別の人口（計・男・女）と年少・生産年齢・老年人口の構成比を取得します。Data source: 総務省「" + datamanager.AgeGroupSource + "」.",
			InputSchema: objectSchema(lookupProperties),
		},
		call: func(s *Server, raw json.RawMessage) (any, error) {
			var a lookupArgs
			if err := decodeArgs(raw, &a); err != nil {
				return nil, err
			}
			res, err := s.engine.GetAgeGroupPopulation(a.lookup())
			return found(res, err, "Age group population data not found", a.lookup())
		},
	},
	{
		Tool: Tool{
			Name:        "export_csv",
			Description: "全自治体の統合データを BOM 付き UTF-8 の CSV に書き出します。",
			InputSchema: objectSchema(map[string]any{
				"output_path": map[string]any{"type": "string", "description": "出力先のパス。省略時は設定の export.csv_path"},
			}),
		},
		call: func(s *Server, raw json.RawMessage) (any, error) {
			var a exportArgs
			if err := decodeArgs(raw, &a); err != nil {
				return nil, err
			}
			path := a.OutputPath
			if path == "" {
				path = s.exportPath
			}
			if path == "" {
				return nil, fmt.Errorf("%w: output_path を指定してください", errInvalidParams)
			}
			return s.engine.ExportCSV(path)
		},
	},
}

// Tools は公開しているツールの一覧を返します。
func Tools() []Tool {
	out := make([]Tool, len(toolTable))
	for i, e := range toolTable {
		out[i] = e.Tool
	}
	return out
}

func findTool(name string) (toolEntry, bool) {
	for _, e := range toolTable {
		if e.Name == name {
			return e, true
		}
	}
	return toolEntry{}, false
}
