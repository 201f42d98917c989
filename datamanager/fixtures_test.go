package datamanager

import (
	"jichitai/model"
	"jichitai/tabular"
)

// rowsFrom は first 行目からデータが始まる表を作ります。
func rowsFrom(first int, rows ...tabular.Row) *tabular.MemoryTable {
	all := make([]tabular.Row, 0, first-1+len(rows))
	for i := 1; i < first; i++ {
		all = append(all, tabular.Row{"見出し"})
	}
	return tabular.NewMemoryTable(append(all, rows...)...)
}

func ageRow(code, muni, gender string, each float64) tabular.Row {
	r := tabular.Row{code, "岩手県", muni, gender, each * float64(len(model.AgeGroupLabels))}
	for range model.AgeGroupLabels {
		r = append(r, each)
	}
	return r
}

type fixture struct {
	src    Sources
	tables []*tabular.MemoryTable
}

func (f *fixture) add(t *tabular.MemoryTable) *tabular.MemoryTable {
	f.tables = append(f.tables, t)
	return t
}

// newFixture は岩手県・神奈川県の数団体からなる出典一式です。
//
//	032018 盛岡市       市   人口 285000 財政(主要) 0.69
//	033227 紫波郡矢巾町 町   人口  27100 財政(主要) 0.53 実質公債費比率「-」
//	034827 西和賀町     町   人口   5000 財政なし
//	141011 横浜市鶴見区 区   人口 295000 財政(決算) 0.95
//	142018 横須賀市     市   人口 380000 財政(主要) 0.78 決算にも行あり
func newFixture() *fixture {
	f := &fixture{}
	f.src.Codes = f.add(rowsFrom(2,
		tabular.Row{"030007", "岩手県", nil, "ｲﾜﾃｹﾝ", nil},
		tabular.Row{"032018", "岩手県", "盛岡市", "ｲﾜﾃｹﾝ", "ﾓﾘｵｶｼ"},
		tabular.Row{"033227", "岩手県", "紫波郡矢巾町", "ｲﾜﾃｹﾝ", "ｼﾜｸﾞﾝﾔﾊﾊﾞﾁｮｳ"},
		tabular.Row{"034827", "岩手県", "西和賀町", "ｲﾜﾃｹﾝ", "ﾆｼﾜｶﾞﾏﾁ"},
		tabular.Row{"140007", "神奈川県", nil, "ｶﾅｶﾞﾜｹﾝ", nil},
		tabular.Row{"141011", "神奈川県", "横浜市鶴見区", "ｶﾅｶﾞﾜｹﾝ", "ﾖｺﾊﾏｼﾂﾙﾐｸ"},
		tabular.Row{"142018", "神奈川県", "横須賀市", "ｶﾅｶﾞﾜｹﾝ", "ﾖｺｽｶｼ"},
	))
	f.src.Population = f.add(rowsFrom(9,
		tabular.Row{"030007", "岩手県", "-", 580000.0, 600000.0, 1180000.0},
		tabular.Row{"032018", "岩手県", "盛岡市", 135000.0, 150000.0, 285000.0, 140000.0, 9000.0, 300.0, 9300.0, 1800.0},
		tabular.Row{"033227", "岩手県", "紫波郡矢巾町", 13500.0, 13600.0, 27100.0, 11000.0, 900.0, 30.0, 930.0, 180.0},
		tabular.Row{"034827", "岩手県", "西和賀町", 2400.0, 2600.0, 5000.0, 2200.0},
		tabular.Row{"141011", "神奈川県", "横浜市鶴見区", 150000.0, 145000.0, 295000.0, 150000.0},
		tabular.Row{"142018", "神奈川県", "横須賀市", 185000.0, 195000.0, 380000.0, 175000.0},
		tabular.Row{"149999", "神奈川県", "人口不明", nil, nil, nil},
	))
	f.src.FinanceSummary = f.add(rowsFrom(3,
		tabular.Row{"032018", "岩手県", "盛岡市", 0.69, 93.0, 8.1, 30.2, 99.1},
		tabular.Row{"033227", "岩手県", "矢巾町", 0.53, 91.2, "-", 20.0, 98.5},
		tabular.Row{"142018", "神奈川県", "横須賀市", 0.78, 95.0, 3.0, 10.0, 100.2},
	))
	f.src.FinanceSettlement = f.add(rowsFrom(3,
		tabular.Row{"141011", "神奈川県", "横浜市鶴見区", 50000000.0, 0.95, 1.0, 92.0, 5.0, 40.0},
		tabular.Row{"142018", "神奈川県", "横須賀市", 70000000.0, 0.10, 1.0, 92.0, 5.0, 40.0},
	))
	f.src.AgeGroups = f.add(rowsFrom(4,
		ageRow("033227", "紫波郡矢巾町", "計", 100),
		ageRow("033227", "紫波郡矢巾町", "男", 50),
		ageRow("033227", "紫波郡矢巾町", "女", 50),
	))
	f.src.MyNumber = f.add(rowsFrom(119,
		tabular.Row{"岩手県", "矢巾町", 27100.0, 21200.0, 0.78229},
		tabular.Row{"神奈川県", "横須賀市", 380000.0, 300000.0, 0.8},
	))
	f.src.DXComparison = f.add(tabular.NewMemoryTable(
		tabular.Row{"カテゴリ", "指標", "矢巾町", "横須賀市"},
		tabular.Row{"行政手続", "オンライン化率", 0.4, 0.6},
		tabular.Row{"人材", "CIO補佐官", "なし", "あり"},
	))
	f.src.DXOnline = f.add(tabular.NewMemoryTable(
		tabular.Row{"No", "手続き", "矢巾町", "横須賀市"},
		tabular.Row{1.0, "転出届", "88.8%", "70%"},
	))
	return f
}
