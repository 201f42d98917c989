package model

// Lookup は団体を特定するための問い合わせ条件です。Code か Name のどちらかが必要です。
type Lookup struct {
	Code       string `json:"jichitai_code,omitempty"`
	Name       string `json:"jichitai_name,omitempty"`
	Prefecture string `json:"prefecture,omitempty"`
}

// DataSources は各項目の出典です。取得できなかった出典は null です。
type DataSources struct {
	PopulationSource *string `json:"population_source"`
	FinanceSource    *string `json:"finance_source"`
}

// BasicInfo は団体の基本情報（複数出典の結合結果）です。
// Finance と DataSources.FinanceSource は常にキーとして出力され、該当なしは null になります。
type BasicInfo struct {
	JichitaiCode       string              `json:"jichitai_code"`
	JichitaiName       *string             `json:"jichitai_name"`
	Prefecture         *string             `json:"prefecture"`
	JichitaiType       *JichitaiType       `json:"jichitai_type"`
	Population         *Population         `json:"population"`
	Households         *int64              `json:"households"`
	PopulationDynamics *PopulationDynamics `json:"population_dynamics"`
	Finance            *Finance            `json:"finance"`
	DataSources        DataSources         `json:"data_sources"`
}

// NotFound は該当団体がなかった場合の応答です。問い合わせ条件をそのまま返します。
type NotFound struct {
	Error        string  `json:"error"`
	JichitaiCode *string `json:"jichitai_code"`
	JichitaiName *string `json:"jichitai_name"`
	Prefecture   *string `json:"prefecture"`
}

// NewNotFound は問い合わせ条件から NotFound を作ります。
func NewNotFound(message string, q Lookup) NotFound {
	nf := NotFound{Error: message}
	if q.Code != "" {
		nf.JichitaiCode = &q.Code
	}
	if q.Name != "" {
		nf.JichitaiName = &q.Name
	}
	if q.Prefecture != "" {
		nf.Prefecture = &q.Prefecture
	}
	return nf
}

// CodeResolution は団体名からのコード検索結果です。
type CodeResolution struct {
	Matches    []CodeMatch `json:"matches"`
	ExactMatch bool        `json:"exact_match"`
}

// SearchCriteria は条件検索のパラメータです。nil / 空の条件は適用しません。
type SearchCriteria struct {
	PopulationMin          *int64   `json:"population_min,omitempty"`
	PopulationMax          *int64   `json:"population_max,omitempty"`
	Prefectures            []string `json:"prefecture,omitempty"`
	JichitaiTypes          []string `json:"jichitai_type,omitempty"`
	FinancialCapabilityMin *float64 `json:"financial_capability_min,omitempty"`
	SortBy                 string   `json:"sort_by,omitempty"`
	SortOrder              string   `json:"sort_order,omitempty"`
	Limit                  int      `json:"limit,omitempty"`
}

// 並び替えキーと順序
const (
	SortByPopulation          = "population"
	SortByFinancialCapability = "financial_capability"
	SortAsc                   = "asc"
	SortDesc                  = "desc"
)

// SearchItem は条件検索結果の1件です。
type SearchItem struct {
	JichitaiCode             string        `json:"jichitai_code"`
	JichitaiName             *string       `json:"jichitai_name"`
	Prefecture               *string       `json:"prefecture"`
	JichitaiType             *JichitaiType `json:"jichitai_type"`
	Population               int64         `json:"population"`
	FinancialCapabilityIndex *float64      `json:"financial_capability_index"`
}

// SearchResult は条件検索の結果です。
// TotalCount は件数制限前、FilteredCount は実際に返した件数です。
type SearchResult struct {
	JichitaiList  []SearchItem `json:"jichitai_list"`
	TotalCount    int          `json:"total_count"`
	FilteredCount int          `json:"filtered_count"`
}

// MyNumberResult はマイナンバーカード交付率の問い合わせ結果です。
type MyNumberResult struct {
	JichitaiCode     *string      `json:"jichitai_code"`
	JichitaiName     *string      `json:"jichitai_name"`
	Prefecture       *string      `json:"prefecture"`
	MyNumberCardData MyNumberCard `json:"mynumber_card_data"`
	DataSource       string       `json:"data_source"`
}

// DXData は DX ダッシュボードの指標とオンライン申請率です。
type DXData struct {
	DXIndicators     map[string]any      `json:"dx_indicators"`
	OnlineProcedures map[string]*float64 `json:"online_procedures"`
}

// DXResult は DX ダッシュボードの問い合わせ結果です。
type DXResult struct {
	JichitaiCode *string `json:"jichitai_code"`
	JichitaiName string  `json:"jichitai_name"`
	Prefecture   *string `json:"prefecture"`
	DXData       DXData  `json:"dx_data"`
	DataSource   string  `json:"data_source"`
}

// Demographics は年齢3区分の人口と構成比（%）です。
type Demographics struct {
	YouthPopulation      int64   `json:"youth_population"`
	WorkingAgePopulation int64   `json:"working_age_population"`
	ElderlyPopulation    int64   `json:"elderly_population"`
	YouthRatio           float64 `json:"youth_ratio"`
	WorkingAgeRatio      float64 `json:"working_age_ratio"`
	ElderlyRatio         float64 `json:"elderly_ratio"`
}

// AgeGroupBreakdown は性別ごとの総数と階級別人口です。
type AgeGroupBreakdown struct {
	Total     *int64       `json:"total"`
	AgeGroups AgeBreakdown `json:"age_groups"`
}

// AgeGroupResult は年齢別人口の問い合わせ結果です。
type AgeGroupResult struct {
	JichitaiCode string             `json:"jichitai_code"`
	JichitaiName *string            `json:"jichitai_name"`
	Prefecture   *string            `json:"prefecture"`
	Total        *AgeGroupBreakdown `json:"total"`
	Male         *AgeGroupBreakdown `json:"male"`
	Female       *AgeGroupBreakdown `json:"female"`
	Demographics *Demographics      `json:"demographics"`
	DataSource   string             `json:"data_source"`
}

// ExportRow は全団体CSVエクスポートの1行です。
type ExportRow struct {
	JichitaiCode             string        `db:"jichitai_code"`
	JichitaiName             *string       `db:"jichitai_name"`
	Prefecture               *string       `db:"prefecture"`
	JichitaiType             *JichitaiType `db:"jichitai_type"`
	PopulationTotal          *int64        `db:"population_total"`
	PopulationMale           *int64        `db:"population_male"`
	PopulationFemale         *int64        `db:"population_female"`
	Households               *int64        `db:"households"`
	FinancialCapabilityIndex *float64      `db:"financial_capability_index"`
	CurrentBalanceRatio      *float64      `db:"current_balance_ratio"`
	RealDebtServiceRatio     *float64      `db:"real_debt_service_ratio"`
	FutureBurdenRatio        *float64      `db:"future_burden_ratio"`
	LaspeyresIndex           *float64      `db:"laspeyres_index"`
	MyNumberIssuanceRate     *float64      `db:"mynumber_card_issuance_rate"`
	YouthRatio               *float64      `db:"youth_ratio"`
	WorkingAgeRatio          *float64      `db:"working_age_ratio"`
	ElderlyRatio             *float64      `db:"elderly_ratio"`
}

// ExportResult はエクスポート処理の結果です。
type ExportResult struct {
	Status   string `json:"status"`
	Count    int    `json:"count"`
	FilePath string `json:"file_path"`
}
