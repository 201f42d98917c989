package datamanager

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"jichitai/model"
	"jichitai/parsers"

	"go.uber.org/zap"
)

// ExportHeader はエクスポートCSVの列見出しです。
var ExportHeader = []string{
	"jichitai_code", "jichitai_name", "prefecture", "jichitai_type",
	"population_total", "population_male", "population_female", "households",
	"financial_capability_index", "current_balance_ratio", "real_debt_service_ratio",
	"future_burden_ratio", "laspeyres_index", "mynumber_card_issuance_rate",
	"youth_ratio", "working_age_ratio", "elderly_ratio",
}

// ExportRows はコード表の全市区町村について各出典の値を1行にまとめます。
// 各出典は1回だけ読み込みます。
func (m *Manager) ExportRows() ([]model.ExportRow, error) {
	if m.codes == nil {
		return nil, fmt.Errorf("%w: codes", ErrSourceUnavailable)
	}
	munis, err := m.codes.Municipalities()
	if err != nil {
		return nil, fmt.Errorf("codes parse: %w", err)
	}

	pops := map[string]model.PopulationRecord{}
	if m.population != nil {
		records, err := m.population.Parse()
		if err != nil {
			return nil, fmt.Errorf("population parse: %w", err)
		}
		for _, rec := range records {
			pops[rec.JichitaiCode] = rec
		}
	}
	finance, err := m.financeIndex()
	if err != nil {
		return nil, err
	}
	var myNumbers []model.MyNumberRecord
	if m.myNumber != nil {
		if myNumbers, err = m.myNumber.Parse(); err != nil {
			return nil, fmt.Errorf("mynumber parse: %w", err)
		}
	}
	demographics := map[string]*model.Demographics{}
	if m.ageGroups != nil {
		records, err := m.ageGroups.Parse()
		if err != nil {
			return nil, fmt.Errorf("age group parse: %w", err)
		}
		for _, rec := range records {
			if rec.Gender == model.GenderTotal {
				demographics[rec.JichitaiCode] = Demographics(rec.AgeGroups, rec.Total)
			}
		}
	}

	rows := make([]model.ExportRow, 0, len(munis))
	for _, c := range munis {
		row := model.ExportRow{
			JichitaiCode: c.JichitaiCode,
			JichitaiName: c.Municipality,
			Prefecture:   c.Prefecture,
			JichitaiType: c.JichitaiType,
		}
		if p, ok := pops[c.JichitaiCode]; ok {
			row.PopulationTotal = p.Population.Total
			row.PopulationMale = p.Population.Male
			row.PopulationFemale = p.Population.Female
			row.Households = p.Households
		}
		if f, ok := finance[c.JichitaiCode]; ok {
			row.FinancialCapabilityIndex = f.FinancialCapabilityIndex
			row.CurrentBalanceRatio = f.CurrentBalanceRatio
			row.RealDebtServiceRatio = f.RealDebtServiceRatio
			row.FutureBurdenRatio = f.FutureBurdenRatio
			row.LaspeyresIndex = f.LaspeyresIndex
		}
		if len(myNumbers) > 0 && c.Municipality != nil {
			pref := ""
			if c.Prefecture != nil {
				pref = *c.Prefecture
			}
			if rec := parsers.FindMyNumber(myNumbers, *c.Municipality, pref); rec != nil {
				row.MyNumberIssuanceRate = rec.MyNumberCard.IssuanceRate
			}
		}
		if d := demographics[c.JichitaiCode]; d != nil {
			row.YouthRatio = &d.YouthRatio
			row.WorkingAgeRatio = &d.WorkingAgeRatio
			row.ElderlyRatio = &d.ElderlyRatio
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV は BOM 付き UTF-8 の CSV を書き出します。値のない項目は空欄です。
func WriteCSV(w io.Writer, rows []model.ExportRow) error {
	bw := bufio.NewWriter(w)
	bw.Write([]byte{0xEF, 0xBB, 0xBF}) // UTF-8 BOM

	cw := csv.NewWriter(bw)
	cw.UseCRLF = true
	if err := cw.Write(ExportHeader); err != nil {
		return err
	}
	for _, r := range rows {
		typ := ""
		if r.JichitaiType != nil {
			typ = string(*r.JichitaiType)
		}
		record := []string{
			r.JichitaiCode, str(r.JichitaiName), str(r.Prefecture), typ,
			intStr(r.PopulationTotal), intStr(r.PopulationMale), intStr(r.PopulationFemale), intStr(r.Households),
			floatStr(r.FinancialCapabilityIndex), floatStr(r.CurrentBalanceRatio), floatStr(r.RealDebtServiceRatio),
			floatStr(r.FutureBurdenRatio), floatStr(r.LaspeyresIndex), floatStr(r.MyNumberIssuanceRate),
			floatStr(r.YouthRatio), floatStr(r.WorkingAgeRatio), floatStr(r.ElderlyRatio),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// ExportCSV は全市区町村のデータを path に書き出します。
func (m *Manager) ExportCSV(path string) (*model.ExportResult, error) {
	rows, err := m.ExportRows()
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create export dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	m.logger.Info("exported municipalities", zap.Int("count", len(rows)), zap.String("path", abs))
	return &model.ExportResult{Status: "success", Count: len(rows), FilePath: abs}, nil
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intStr(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

func floatStr(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
