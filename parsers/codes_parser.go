package parsers

import (
	"sort"
	"strings"

	"jichitai/jcode"
	"jichitai/model"
	"jichitai/tabular"

	"go.uber.org/zap"
)

// 名前解決のスコア
const (
	ScoreExact     = 1.0
	ScoreContains  = 0.9
	ScoreContained = 0.8
)

// MatchScore は問い合わせ名と候補名の一致度を返します。
// 完全一致 1.0、候補が問い合わせを含む 0.9、問い合わせが候補を含む 0.8、それ以外は 0 です。
func MatchScore(query, candidate string) float64 {
	if query == "" || candidate == "" {
		return 0
	}
	switch {
	case query == candidate:
		return ScoreExact
	case strings.Contains(candidate, query):
		return ScoreContains
	case strings.Contains(query, candidate):
		return ScoreContained
	}
	return 0
}

// prefectureMatches は都道府県の絞り込み条件を双方向の部分一致で判定します。
func prefectureMatches(filter string, prefecture *string) bool {
	if filter == "" {
		return true
	}
	if prefecture == nil {
		return false
	}
	return strings.Contains(*prefecture, filter) || strings.Contains(filter, *prefecture)
}

// ClassifyType は市区町村名から団体区分を判定します。名前がなければ都道府県です。
func ClassifyType(municipality *string) *model.JichitaiType {
	var t model.JichitaiType
	switch {
	case municipality == nil:
		t = model.TypePrefecture
	case strings.Contains(*municipality, "市") && strings.Contains(*municipality, "区"):
		t = model.TypeSpecialWard
	case strings.Contains(*municipality, "市"):
		t = model.TypeCity
	case strings.Contains(*municipality, "町"):
		t = model.TypeTown
	case strings.Contains(*municipality, "村"):
		t = model.TypeVillage
	default:
		return nil
	}
	return &t
}

// CodesParser は全国地方公共団体コード表を読み込みます。
type CodesParser struct {
	table  tabular.Table
	logger *zap.Logger
}

func NewCodesParser(t tabular.Table, logger *zap.Logger) *CodesParser {
	return &CodesParser{table: t, logger: orNop(logger)}
}

// Parse は表全体を読み込みます。呼び出しのたびに読み直します。
func (p *CodesParser) Parse() ([]model.CodeRecord, error) {
	rows, err := dataRows(p.table, codesFirstRow)
	if err != nil {
		return nil, err
	}
	records := make([]model.CodeRecord, 0, len(rows))
	for i, row := range rows {
		code, ok := rowCode(row)
		if !ok {
			p.logger.Debug("skipping code row", zap.Int("row", i+codesFirstRow), zap.Any("cell", row.Cell(1)))
			continue
		}
		muni := tabular.String(row.Cell(3))
		records = append(records, model.CodeRecord{
			JichitaiCode:     code,
			Prefecture:       tabular.String(row.Cell(2)),
			Municipality:     muni,
			PrefectureKana:   tabular.String(row.Cell(4)),
			MunicipalityKana: tabular.String(row.Cell(5)),
			JichitaiType:     ClassifyType(muni),
		})
	}
	return records, nil
}

// GetByCode は団体コードで1件検索します。見つからなければ nil です。
func (p *CodesParser) GetByCode(code string) (*model.CodeRecord, error) {
	code, ok := jcode.Normalize(code)
	if !ok {
		return nil, nil
	}
	records, err := p.Parse()
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].JichitaiCode == code {
			return &records[i], nil
		}
	}
	return nil, nil
}

// GetByName は市区町村名で候補を検索し、スコアの高い順に返します。
// 同点の候補は表の順序を保ちます。
func (p *CodesParser) GetByName(name, prefecture string) ([]model.CodeMatch, error) {
	records, err := p.Parse()
	if err != nil {
		return nil, err
	}
	return MatchRecords(records, name, prefecture), nil
}

// MatchRecords は解析済みのコード表から名前で候補を抽出します。
func MatchRecords(records []model.CodeRecord, name, prefecture string) []model.CodeMatch {
	matches := []model.CodeMatch{}
	for _, rec := range records {
		if rec.Municipality == nil {
			continue
		}
		score := MatchScore(name, *rec.Municipality)
		if score == 0 || !prefectureMatches(prefecture, rec.Prefecture) {
			continue
		}
		matches = append(matches, model.CodeMatch{CodeRecord: rec, MatchScore: score})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].MatchScore > matches[j].MatchScore
	})
	return matches
}

// Municipalities は都道府県行を除いた市区町村のみを返します。
func (p *CodesParser) Municipalities() ([]model.CodeRecord, error) {
	records, err := p.Parse()
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, rec := range records {
		if rec.Municipality != nil {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (p *CodesParser) Close() error {
	return closeTable(p.table)
}
