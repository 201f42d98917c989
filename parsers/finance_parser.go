package parsers

import (
	"fmt"

	"jichitai/jcode"
	"jichitai/model"
	"jichitai/tabular"

	"go.uber.org/zap"
)

// financeColumns は財政指標と列番号の対応です。0 はその出典に列がないことを表します。
type financeColumns struct {
	capability, currentBalance, realDebtService, futureBurden, laspeyres int
	standardScale, realBalance, revenue, expenditure                     int
}

var financeLayouts = map[model.FinanceVariant]financeColumns{
	// 全市町村の主要財政指標
	// 1=団体コード, 2=都道府県名, 3=団体名, 4=財政力指数, 5=経常収支比率,
	// 6=実質公債費比率, 7=将来負担比率, 8=ラスパイレス指数
	model.FinanceSummary: {
		capability:      4,
		currentBalance:  5,
		realDebtService: 6,
		futureBurden:    7,
		laspeyres:       8,
	},
	// 市町村別決算状況調
	// 1=団体コード, 2=都道府県名, 3=団体名, 4=標準財政規模, 5=財政力指数, 6=実質収支比率,
	// 7=経常収支比率, 8=実質公債費比率, 9=将来負担比率, 10=歳入総額, 11=歳出総額
	model.FinanceSettlement: {
		standardScale:   4,
		capability:      5,
		realBalance:     6,
		currentBalance:  7,
		realDebtService: 8,
		futureBurden:    9,
		revenue:         10,
		expenditure:     11,
	},
}

// FinanceParser は財政データ表を読み込みます。レイアウトは variant で切り替えます。
type FinanceParser struct {
	table   tabular.Table
	variant model.FinanceVariant
	cols    financeColumns
	logger  *zap.Logger
}

func NewFinanceParser(t tabular.Table, variant model.FinanceVariant, logger *zap.Logger) (*FinanceParser, error) {
	cols, ok := financeLayouts[variant]
	if !ok {
		return nil, fmt.Errorf("unknown finance variant: %q", variant)
	}
	return &FinanceParser{table: t, variant: variant, cols: cols, logger: orNop(logger)}, nil
}

// Variant は読み込む出典レイアウトを返します。
func (p *FinanceParser) Variant() model.FinanceVariant {
	return p.variant
}

func (p *FinanceParser) Parse() ([]model.FinanceRecord, error) {
	rows, err := dataRows(p.table, financeFirstRow)
	if err != nil {
		return nil, err
	}
	records := make([]model.FinanceRecord, 0, len(rows))
	for i, row := range rows {
		code, ok := rowCode(row)
		if !ok {
			p.logger.Debug("skipping finance row",
				zap.String("variant", string(p.variant)),
				zap.Int("row", i+financeFirstRow),
				zap.Any("cell", row.Cell(1)))
			continue
		}
		records = append(records, model.FinanceRecord{
			JichitaiCode:     code,
			PrefectureName:   tabular.String(row.Cell(2)),
			MunicipalityName: tabular.String(row.Cell(3)),
			Variant:          p.variant,
			Finance:          p.finance(row),
		})
	}
	return records, nil
}

func (p *FinanceParser) finance(row tabular.Row) model.Finance {
	f := func(col int) *float64 {
		if col == 0 {
			return nil
		}
		return tabular.Float(row.Cell(col))
	}
	return model.Finance{
		FinancialCapabilityIndex: f(p.cols.capability),
		CurrentBalanceRatio:      f(p.cols.currentBalance),
		RealDebtServiceRatio:     f(p.cols.realDebtService),
		FutureBurdenRatio:        f(p.cols.futureBurden),
		LaspeyresIndex:           f(p.cols.laspeyres),
		StandardFiscalScale:      f(p.cols.standardScale),
		RealBalanceRatio:         f(p.cols.realBalance),
		RevenueTotal:             f(p.cols.revenue),
		ExpenditureTotal:         f(p.cols.expenditure),
	}
}

// GetByCode は団体コードで1件検索します。見つからなければ nil です。
func (p *FinanceParser) GetByCode(code string) (*model.FinanceRecord, error) {
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

func (p *FinanceParser) Close() error {
	return closeTable(p.table)
}
