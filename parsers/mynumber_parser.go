package parsers

import (
	"jichitai/model"
	"jichitai/tabular"

	"go.uber.org/zap"
)

// MyNumberSheet はマイナンバーカード交付状況のシート名です。
const MyNumberSheet = "公表用"

// MyNumberParser はマイナンバーカード交付状況表を読み込みます。団体コード列はなく、名前で識別します。
//
// 列: A=都道府県名, B=市区町村名, C=人口, D=保有枚数, E=交付率(小数)
type MyNumberParser struct {
	table  tabular.Table
	logger *zap.Logger
}

func NewMyNumberParser(t tabular.Table, logger *zap.Logger) *MyNumberParser {
	return &MyNumberParser{table: t, logger: orNop(logger)}
}

func (p *MyNumberParser) Parse() ([]model.MyNumberRecord, error) {
	rows, err := dataRows(p.table, myNumberFirstRow)
	if err != nil {
		return nil, err
	}
	records := make([]model.MyNumberRecord, 0, len(rows))
	for _, row := range rows {
		pref := tabular.String(row.Cell(1))
		muni := tabular.String(row.Cell(2))
		if pref == nil || muni == nil {
			continue
		}
		var rate *float64
		if f := tabular.Float(row.Cell(5)); f != nil {
			r := Round2(*f * 100)
			rate = &r
		}
		records = append(records, model.MyNumberRecord{
			Prefecture:   pref,
			Municipality: muni,
			MyNumberCard: model.MyNumberCard{
				Population:   tabular.Int(row.Cell(3)),
				IssuedCards:  tabular.Int(row.Cell(4)),
				IssuanceRate: rate,
			},
		})
	}
	return records, nil
}

// GetByName は市区町村名で1件検索します。prefecture が空でなければ都道府県名の一致も必要です。
func (p *MyNumberParser) GetByName(name, prefecture string) (*model.MyNumberRecord, error) {
	records, err := p.Parse()
	if err != nil {
		return nil, err
	}
	return FindMyNumber(records, name, prefecture), nil
}

// FindMyNumber は完全一致を優先し、なければ名前の一致度が最も高い行を返します。
func FindMyNumber(records []model.MyNumberRecord, name, prefecture string) *model.MyNumberRecord {
	best, bestScore := -1, 0.0
	for i, rec := range records {
		if prefecture != "" && strValue(rec.Prefecture) != prefecture {
			continue
		}
		score := MatchScore(name, strValue(rec.Municipality))
		if score == ScoreExact {
			return &records[i]
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return nil
	}
	return &records[best]
}

func (p *MyNumberParser) Close() error {
	return closeTable(p.table)
}
