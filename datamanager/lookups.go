package datamanager

import (
	"fmt"

	"jichitai/model"
	"jichitai/parsers"
)

// nameTarget は名前で識別される出典（マイナンバー・DX）を引くための団体名と都道府県です。
// コード表があればそこで特定した名前を、なければ問い合わせの名前をそのまま使います。
func (m *Manager) nameTarget(q model.Lookup) (code *string, name, prefecture string, ok bool, err error) {
	if m.codes == nil {
		if q.Name == "" {
			return nil, "", "", false, nil
		}
		return nil, q.Name, q.Prefecture, true, nil
	}
	id, err := m.resolveIdentity(q)
	if err != nil || id == nil || id.name == nil {
		return nil, "", "", false, err
	}
	c := id.code
	pref := ""
	if id.prefecture != nil {
		pref = *id.prefecture
	}
	return &c, *id.name, pref, true, nil
}

// GetMyNumberRate はマイナンバーカードの交付状況を返します。該当なしは (nil, nil) です。
func (m *Manager) GetMyNumberRate(q model.Lookup) (*model.MyNumberResult, error) {
	q, ok, err := normalizeLookup(q)
	if err != nil || !ok {
		return nil, err
	}
	if m.myNumber == nil {
		return nil, nil
	}
	code, name, pref, ok, err := m.nameTarget(q)
	if err != nil || !ok {
		return nil, err
	}
	records, err := m.myNumber.Parse()
	if err != nil {
		return nil, fmt.Errorf("mynumber parse: %w", err)
	}
	rec := parsers.FindMyNumber(records, name, pref)
	if rec == nil {
		return nil, nil
	}
	return &model.MyNumberResult{
		JichitaiCode:     code,
		JichitaiName:     rec.Municipality,
		Prefecture:       rec.Prefecture,
		MyNumberCardData: rec.MyNumberCard,
		DataSource:       MyNumberSource,
	}, nil
}

// オンライン申請率をカテゴリ指定で要求するときの名前
var onlineCategoryNames = map[string]bool{
	"online_procedures": true,
	"オンライン手続":           true,
	"オンライン申請":           true,
}

// GetDXData は DX ダッシュボードの指標を返します。categories を指定するとそのカテゴリの指標のみ返します。
func (m *Manager) GetDXData(q model.Lookup, categories []string) (*model.DXResult, error) {
	q, ok, err := normalizeLookup(q)
	if err != nil || !ok {
		return nil, err
	}
	if m.dx == nil {
		return nil, nil
	}
	code, name, pref, ok, err := m.nameTarget(q)
	if err != nil || !ok {
		return nil, err
	}
	records, err := m.dx.Parse()
	if err != nil {
		return nil, fmt.Errorf("dx parse: %w", err)
	}
	rec := parsers.FindDX(records, name, pref)
	if rec == nil {
		return nil, nil
	}

	data := model.DXData{DXIndicators: rec.DXIndicators, OnlineProcedures: rec.OnlineProcedures}
	if len(categories) > 0 {
		wanted := map[string]bool{}
		includeOnline := false
		for _, c := range categories {
			wanted[c] = true
			if onlineCategoryNames[c] {
				includeOnline = true
			}
		}
		data.DXIndicators = map[string]any{}
		for indicator, v := range rec.DXIndicators {
			if wanted[rec.IndicatorCategories[indicator]] {
				data.DXIndicators[indicator] = v
			}
		}
		if !includeOnline {
			data.OnlineProcedures = nil
		}
	}
	var prefecture *string
	if pref != "" {
		prefecture = &pref
	}
	return &model.DXResult{
		JichitaiCode: code,
		JichitaiName: rec.Municipality,
		Prefecture:   prefecture,
		DXData:       data,
		DataSource:   DXSource,
	}, nil
}

// GetAgeGroupPopulation は性別ごとの年齢階級別人口と年齢3区分の構成を返します。
func (m *Manager) GetAgeGroupPopulation(q model.Lookup) (*model.AgeGroupResult, error) {
	q, ok, err := normalizeLookup(q)
	if err != nil || !ok {
		return nil, err
	}
	if m.ageGroups == nil {
		return nil, nil
	}

	code := q.Code
	var name, pref *string
	var records []model.AgeGroupRecord
	switch {
	case m.codes != nil:
		id, err := m.resolveIdentity(q)
		if err != nil || id == nil {
			return nil, err
		}
		code, name, pref = id.code, id.name, id.prefecture
	case code == "":
		// コード表がなければ年齢階級別人口表の名前で引き、最初に一致した団体の行だけを使う
		matches, err := m.ageGroups.GetByName(q.Name, q.Prefecture)
		if err != nil {
			return nil, fmt.Errorf("age group lookup: %w", err)
		}
		if len(matches) == 0 {
			return nil, nil
		}
		code = matches[0].JichitaiCode
		for _, rec := range matches {
			if rec.JichitaiCode == code {
				records = append(records, rec)
			}
		}
	}

	if records == nil {
		if records, err = m.ageGroups.GetByCode(code); err != nil {
			return nil, fmt.Errorf("age group lookup: %w", err)
		}
	}
	if len(records) == 0 {
		return nil, nil
	}
	res := &model.AgeGroupResult{
		JichitaiCode: code,
		JichitaiName: name,
		Prefecture:   pref,
		DataSource:   AgeGroupSource,
	}
	for _, rec := range records {
		b := &model.AgeGroupBreakdown{Total: rec.Total, AgeGroups: rec.AgeGroups}
		switch rec.Gender {
		case model.GenderTotal:
			res.Total = b
		case model.GenderMale:
			res.Male = b
		case model.GenderFemale:
			res.Female = b
		}
		if res.JichitaiName == nil {
			res.JichitaiName = rec.Municipality
		}
		if res.Prefecture == nil {
			res.Prefecture = rec.Prefecture
		}
	}
	if res.Total != nil {
		res.Demographics = Demographics(res.Total.AgeGroups, res.Total.Total)
	}
	return res, nil
}

// 年齢3区分に含まれる5歳階級
var (
	youthBands      = []string{"0-4歳", "5-9歳", "10-14歳"}
	workingAgeBands = []string{"15-19歳", "20-24歳", "25-29歳", "30-34歳", "35-39歳", "40-44歳", "45-49歳", "50-54歳", "55-59歳", "60-64歳"}
	elderlyBands    = []string{"65-69歳", "70-74歳", "75-79歳", "80-84歳", "85-89歳", "90-94歳", "95-99歳", "100歳以上"}
)

// Demographics は年少（0-14歳）・生産年齢（15-64歳）・老年（65歳以上）人口と総数に対する比率を算出します。
// 欠けている階級は 0 として数えます。総数が 0 または不明なら nil です。
func Demographics(groups model.AgeBreakdown, total *int64) *model.Demographics {
	if total == nil || *total == 0 {
		return nil
	}
	sum := func(bands []string) int64 {
		var n int64
		for _, b := range bands {
			if v := groups[b]; v != nil {
				n += *v
			}
		}
		return n
	}
	youth, working, elderly := sum(youthBands), sum(workingAgeBands), sum(elderlyBands)
	ratio := func(n int64) float64 {
		return parsers.Round2(float64(n) / float64(*total) * 100)
	}
	return &model.Demographics{
		YouthPopulation:      youth,
		WorkingAgePopulation: working,
		ElderlyPopulation:    elderly,
		YouthRatio:           ratio(youth),
		WorkingAgeRatio:      ratio(working),
		ElderlyRatio:         ratio(elderly),
	}
}
