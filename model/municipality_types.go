package model

import "sort"

// JichitaiType は団体区分です。
type JichitaiType string

const (
	TypePrefecture  JichitaiType = "prefecture"
	TypeCity        JichitaiType = "city"
	TypeSpecialWard JichitaiType = "special_ward"
	TypeTown        JichitaiType = "town"
	TypeVillage     JichitaiType = "village"
)

// typeAliases は検索条件で受け付ける英語・日本語の区分名です。
var typeAliases = map[string]JichitaiType{
	"prefecture":   TypePrefecture,
	"city":         TypeCity,
	"special_ward": TypeSpecialWard,
	"special-ward": TypeSpecialWard,
	"ward":         TypeSpecialWard,
	"town":         TypeTown,
	"village":      TypeVillage,
	"都道府県":         TypePrefecture,
	"市":            TypeCity,
	"区":            TypeSpecialWard,
	"特別区":          TypeSpecialWard,
	"町":            TypeTown,
	"村":            TypeVillage,
}

// ParseJichitaiType は英語・日本語の区分名を JichitaiType に変換します。
func ParseJichitaiType(s string) (JichitaiType, bool) {
	t, ok := typeAliases[s]
	return t, ok
}

// JichitaiTypeNames は ParseJichitaiType が受け付ける名前をすべて並べて返します。
func JichitaiTypeNames() []string {
	names := make([]string, 0, len(typeAliases))
	for name := range typeAliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CodeRecord は全国地方公共団体コード表の1行です。
type CodeRecord struct {
	JichitaiCode     string        `json:"jichitai_code"`
	Prefecture       *string       `json:"prefecture"`
	Municipality     *string       `json:"municipality"`
	PrefectureKana   *string       `json:"prefecture_kana"`
	MunicipalityKana *string       `json:"municipality_kana"`
	JichitaiType     *JichitaiType `json:"jichitai_type"`
}

// CodeMatch は名前解決の候補とスコアです。
type CodeMatch struct {
	CodeRecord
	MatchScore float64 `json:"match_score"`
}

// Population は人口の内訳です。
type Population struct {
	Total  *int64 `json:"total"`
	Male   *int64 `json:"male"`
	Female *int64 `json:"female"`
}

// PopulationDynamics は人口動態（転入・出生）です。
type PopulationDynamics struct {
	TransferInDomestic *int64 `json:"transfer_in_domestic"`
	TransferInForeign  *int64 `json:"transfer_in_foreign"`
	TransferInTotal    *int64 `json:"transfer_in_total"`
	Births             *int64 `json:"births"`
}

// PopulationRecord は住民基本台帳人口・世帯数表の1行です。
type PopulationRecord struct {
	JichitaiCode       string             `json:"jichitai_code"`
	Prefecture         *string            `json:"prefecture"`
	Municipality       *string            `json:"municipality"`
	Population         Population         `json:"population"`
	Households         *int64             `json:"households"`
	PopulationDynamics PopulationDynamics `json:"population_dynamics"`
}

// Gender は年齢別人口の性別区分です。
type Gender string

const (
	GenderTotal  Gender = "total"
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// AgeGroupLabels は年齢別人口表の5歳階級ラベルです（列順）。
var AgeGroupLabels = []string{
	"0-4歳", "5-9歳", "10-14歳", "15-19歳", "20-24歳",
	"25-29歳", "30-34歳", "35-39歳", "40-44歳", "45-49歳",
	"50-54歳", "55-59歳", "60-64歳", "65-69歳", "70-74歳",
	"75-79歳", "80-84歳", "85-89歳", "90-94歳", "95-99歳",
	"100歳以上",
}

// AgeGroupRecord は年齢別人口表の1行（団体×性別）です。
type AgeGroupRecord struct {
	JichitaiCode string       `json:"jichitai_code"`
	Prefecture   *string      `json:"prefecture"`
	Municipality *string      `json:"municipality"`
	Gender       Gender       `json:"gender"`
	Total        *int64       `json:"total"`
	AgeGroups    AgeBreakdown `json:"age_groups"`
}

// MyNumberCard はマイナンバーカードの交付状況です。IssuanceRate は百分率です。
type MyNumberCard struct {
	Population   *int64   `json:"population"`
	IssuedCards  *int64   `json:"issued_cards"`
	IssuanceRate *float64 `json:"issuance_rate"`
}

// MyNumberRecord はマイナンバーカード交付状況表の1行です。団体コード列はありません。
type MyNumberRecord struct {
	Prefecture   *string      `json:"prefecture"`
	Municipality *string      `json:"municipality"`
	MyNumberCard MyNumberCard `json:"mynumber_card"`
}

// DXRecord は自治体DX推進状況ダッシュボードの1団体分です。団体名のみで識別されます。
type DXRecord struct {
	Municipality        string              `json:"municipality"`
	DXIndicators        map[string]any      `json:"dx_indicators"`
	IndicatorCategories map[string]string   `json:"indicator_categories"`
	OnlineProcedures    map[string]*float64 `json:"online_procedures"`
}
