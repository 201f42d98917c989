package parsers

import (
	"jichitai/model"
	"jichitai/tabular"

	"go.uber.org/zap"
)

// DXParser は自治体DX推進状況ダッシュボードの2つの表を読み込みます。
// どちらも横持ちで、1行目の3列目以降に団体名が並びます。
//
//   - 比較表: A=カテゴリ, B=指標名
//   - オンライン申請率表: B=手続き名、値は "88.8%" 形式
//
// オンライン申請率は比較表にある団体にのみ付与します。
type DXParser struct {
	comparison tabular.Table
	online     tabular.Table
	logger     *zap.Logger
}

// NewDXParser は表を受け取ります。どちらかが nil でも構いません。
func NewDXParser(comparison, online tabular.Table, logger *zap.Logger) *DXParser {
	return &DXParser{comparison: comparison, online: online, logger: orNop(logger)}
}

// Parse は比較表の列順で団体ごとのレコードを返します。
func (p *DXParser) Parse() ([]model.DXRecord, error) {
	if p.comparison == nil {
		return nil, nil
	}
	rows, err := p.comparison.Rows()
	if err != nil {
		return nil, err
	}
	header := tabular.RowAt(rows, 1)
	columns := municipalityColumns(header)

	records := make([]model.DXRecord, len(columns))
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		records[i] = model.DXRecord{
			Municipality:        c.name,
			DXIndicators:        map[string]any{},
			IndicatorCategories: map[string]string{},
		}
		index[c.name] = i
	}

	var category string
	for i := dxFirstRow; i <= len(rows); i++ {
		row := tabular.RowAt(rows, i)
		// 結合セルのカテゴリは空欄になるので直前の値を引き継ぐ
		if c := tabular.String(row.Cell(1)); c != nil {
			category = *c
		}
		indicator := tabular.String(row.Cell(2))
		if indicator == nil {
			continue
		}
		for _, c := range columns {
			rec := &records[index[c.name]]
			rec.DXIndicators[*indicator] = tabular.Value(row.Cell(c.col))
			if category != "" {
				rec.IndicatorCategories[*indicator] = category
			}
		}
	}

	if err := p.addOnlineProcedures(records, index); err != nil {
		return nil, err
	}
	return records, nil
}

func (p *DXParser) addOnlineProcedures(records []model.DXRecord, index map[string]int) error {
	if p.online == nil {
		return nil
	}
	rows, err := p.online.Rows()
	if err != nil {
		return err
	}
	for _, c := range municipalityColumns(tabular.RowAt(rows, 1)) {
		i, ok := index[c.name]
		if !ok {
			p.logger.Debug("online procedures column without comparison data", zap.String("municipality", c.name))
			continue
		}
		procedures := map[string]*float64{}
		for r := dxFirstRow; r <= len(rows); r++ {
			row := tabular.RowAt(rows, r)
			name := tabular.String(row.Cell(2))
			if name == nil {
				continue
			}
			procedures[*name] = tabular.Percent(row.Cell(c.col))
		}
		records[i].OnlineProcedures = procedures
	}
	return nil
}

type dxColumn struct {
	col  int
	name string
}

func municipalityColumns(header tabular.Row) []dxColumn {
	var cols []dxColumn
	seen := map[string]bool{}
	for col := dxFirstColumn; col <= len(header); col++ {
		name := tabular.String(header.Cell(col))
		if name == nil || seen[*name] {
			continue
		}
		seen[*name] = true
		cols = append(cols, dxColumn{col: col, name: *name})
	}
	return cols
}

// GetByName は団体名で1件検索します。
func (p *DXParser) GetByName(name, prefecture string) (*model.DXRecord, error) {
	records, err := p.Parse()
	if err != nil {
		return nil, err
	}
	return FindDX(records, name, prefecture), nil
}

// FindDX は団体名（または都道府県名+団体名）の完全一致を優先し、
// なければ一致度が最も高いレコードを返します。
func FindDX(records []model.DXRecord, name, prefecture string) *model.DXRecord {
	best, bestScore := -1, 0.0
	for i, rec := range records {
		if rec.Municipality == name || (prefecture != "" && rec.Municipality == prefecture+name) {
			return &records[i]
		}
		if score := MatchScore(name, rec.Municipality); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return nil
	}
	return &records[best]
}

func (p *DXParser) Close() error {
	err := closeTable(p.comparison)
	if cerr := closeTable(p.online); err == nil {
		err = cerr
	}
	return err
}
