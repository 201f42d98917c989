package model

import (
	"bytes"
	"encoding/json"
)

// FinanceVariant は財政データの出典レイアウトです。
type FinanceVariant string

const (
	// FinanceSummary は全市町村の主要財政指標（市・町・村・特別区）です。
	FinanceSummary FinanceVariant = "summary"
	// FinanceSettlement は市町村別決算状況調（市のみ）です。
	FinanceSettlement FinanceVariant = "settlement"
)

// Finance は財政指標です。出典が報告しない指標と「-」の指標はどちらも null になります。
type Finance struct {
	FinancialCapabilityIndex *float64 `json:"financial_capability_index"` // 財政力指数
	CurrentBalanceRatio      *float64 `json:"current_balance_ratio"`      // 経常収支比率 (%)
	RealDebtServiceRatio     *float64 `json:"real_debt_service_ratio"`    // 実質公債費比率 (%)
	FutureBurdenRatio        *float64 `json:"future_burden_ratio"`        // 将来負担比率 (%)
	LaspeyresIndex           *float64 `json:"laspeyres_index"`            // ラスパイレス指数
	StandardFiscalScale      *float64 `json:"standard_fiscal_scale"`      // 標準財政規模 (千円)
	RealBalanceRatio         *float64 `json:"real_balance_ratio"`         // 実質収支比率 (%)
	RevenueTotal             *float64 `json:"revenue_total"`              // 歳入総額 (千円)
	ExpenditureTotal         *float64 `json:"expenditure_total"`          // 歳出総額 (千円)
}

// FinanceRecord は財政データ表の1行です。
type FinanceRecord struct {
	JichitaiCode     string         `json:"jichitai_code"`
	PrefectureName   *string        `json:"prefecture_name"`
	MunicipalityName *string        `json:"municipality_name"`
	Variant          FinanceVariant `json:"variant"`
	Finance          Finance        `json:"finance"`
}

// AgeBreakdown は5歳階級ラベルごとの人口です。JSON は AgeGroupLabels の順で出力します。
type AgeBreakdown map[string]*int64

func (a AgeBreakdown) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(k string, v *int64) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		kb, err := json.Marshal(k)
		if err != nil {
			return err
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return nil
	}
	seen := make(map[string]bool, len(a))
	for _, label := range AgeGroupLabels {
		if v, ok := a[label]; ok {
			if err := write(label, v); err != nil {
				return nil, err
			}
			seen[label] = true
		}
	}
	for k, v := range a {
		if seen[k] {
			continue
		}
		if err := write(k, v); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
