package parsers

import (
	"strings"

	"jichitai/jcode"
	"jichitai/model"
	"jichitai/tabular"

	"go.uber.org/zap"
)

// PopulationParser は住民基本台帳に基づく人口・世帯数表を読み込みます。
//
// 列: 1=団体コード, 2=都道府県名, 3=市区町村名, 4=男, 5=女, 6=計, 7=世帯数,
// 8=転入者数(国内), 9=転入者数(国外), 10=転入者数計, 11=出生者数
type PopulationParser struct {
	table  tabular.Table
	logger *zap.Logger
}

func NewPopulationParser(t tabular.Table, logger *zap.Logger) *PopulationParser {
	return &PopulationParser{table: t, logger: orNop(logger)}
}

func (p *PopulationParser) Parse() ([]model.PopulationRecord, error) {
	rows, err := dataRows(p.table, populationFirstRow)
	if err != nil {
		return nil, err
	}
	records := make([]model.PopulationRecord, 0, len(rows))
	for i, row := range rows {
		// 市区町村名が「-」の行は都道府県の合計行
		if tabular.IsNotApplicable(row.Cell(3)) {
			continue
		}
		code, ok := rowCode(row)
		if !ok {
			p.logger.Debug("skipping population row", zap.Int("row", i+populationFirstRow), zap.Any("cell", row.Cell(1)))
			continue
		}
		records = append(records, model.PopulationRecord{
			JichitaiCode: code,
			Prefecture:   tabular.String(row.Cell(2)),
			Municipality: tabular.String(row.Cell(3)),
			Population: model.Population{
				Total:  tabular.Int(row.Cell(6)),
				Male:   tabular.Int(row.Cell(4)),
				Female: tabular.Int(row.Cell(5)),
			},
			Households: tabular.Int(row.Cell(7)),
			PopulationDynamics: model.PopulationDynamics{
				TransferInDomestic: tabular.Int(row.Cell(8)),
				TransferInForeign:  tabular.Int(row.Cell(9)),
				TransferInTotal:    tabular.Int(row.Cell(10)),
				Births:             tabular.Int(row.Cell(11)),
			},
		})
	}
	return records, nil
}

// GetByCode は団体コードで1件検索します。見つからなければ nil です。
func (p *PopulationParser) GetByCode(code string) (*model.PopulationRecord, error) {
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

// GetByName は市区町村名を含む行を返します。
func (p *PopulationParser) GetByName(name, prefecture string) ([]model.PopulationRecord, error) {
	records, err := p.Parse()
	if err != nil {
		return nil, err
	}
	var out []model.PopulationRecord
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

func (p *PopulationParser) Close() error {
	return closeTable(p.table)
}
