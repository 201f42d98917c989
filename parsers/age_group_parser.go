package parsers

import (
	"strings"

	"jichitai/jcode"
	"jichitai/model"
	"jichitai/tabular"

	"go.uber.org/zap"
)

// 性別列のラベル
var genderLabels = map[string]model.Gender{
	"計": model.GenderTotal,
	"男": model.GenderMale,
	"女": model.GenderFemale,
}

// AgeGroupParser は住民基本台帳の年齢階級別人口表を読み込みます。
// 1団体につき 計・男・女 の3行があります。
//
// 列: 1=団体コード, 2=都道府県名, 3=市区町村名, 4=性別, 5=総数, 6-26=5歳階級
type AgeGroupParser struct {
	table  tabular.Table
	logger *zap.Logger
}

func NewAgeGroupParser(t tabular.Table, logger *zap.Logger) *AgeGroupParser {
	return &AgeGroupParser{table: t, logger: orNop(logger)}
}

func (p *AgeGroupParser) Parse() ([]model.AgeGroupRecord, error) {
	rows, err := dataRows(p.table, ageGroupFirstRow)
	if err != nil {
		return nil, err
	}
	records := make([]model.AgeGroupRecord, 0, len(rows))
	for i, row := range rows {
		rowNum := i + ageGroupFirstRow
		muni := tabular.String(row.Cell(3))
		if muni == nil {
			continue
		}
		code, ok := rowCode(row)
		if !ok {
			p.logger.Debug("skipping age group row", zap.Int("row", rowNum), zap.Any("cell", row.Cell(1)))
			continue
		}
		gender, ok := genderLabels[strValue(tabular.String(row.Cell(4)))]
		if !ok {
			p.logger.Debug("unknown gender label", zap.Int("row", rowNum), zap.Any("cell", row.Cell(4)))
			continue
		}
		groups := make(model.AgeBreakdown, len(model.AgeGroupLabels))
		for j, label := range model.AgeGroupLabels {
			groups[label] = tabular.Int(row.Cell(6 + j))
		}
		records = append(records, model.AgeGroupRecord{
			JichitaiCode: code,
			Prefecture:   tabular.String(row.Cell(2)),
			Municipality: muni,
			Gender:       gender,
			Total:        tabular.Int(row.Cell(5)),
			AgeGroups:    groups,
		})
	}
	return records, nil
}

// GetByCode は団体の全性別の行を返します。
func (p *AgeGroupParser) GetByCode(code string) ([]model.AgeGroupRecord, error) {
	code, ok := jcode.Normalize(code)
	if !ok {
		return nil, nil
	}
	records, err := p.Parse()
	if err != nil {
		return nil, err
	}
	var out []model.AgeGroupRecord
	for _, rec := range records {
		if rec.JichitaiCode == code {
			out = append(out, rec)
		}
	}
	return out, nil
}

// GetByName は市区町村名に name を含む行を返します。prefecture は部分一致で絞り込みます。
func (p *AgeGroupParser) GetByName(name, prefecture string) ([]model.AgeGroupRecord, error) {
	records, err := p.Parse()
	if err != nil {
		return nil, err
	}
	var out []model.AgeGroupRecord
	for _, rec := range records {
		if rec.Municipality == nil || !strings.Contains(*rec.Municipality, name) {
			continue
		}
		if !prefectureMatches(prefecture, rec.Prefecture) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (p *AgeGroupParser) Close() error {
	return closeTable(p.table)
}
