package datamanager

import (
	"fmt"
	"strings"

	"jichitai/jcode"
	"jichitai/model"
	"jichitai/parsers"

	"go.uber.org/zap"
)

// identity は団体コード表（またはその代替）から特定した団体です。
type identity struct {
	code       string
	name       *string
	prefecture *string
	typ        *model.JichitaiType
	population *model.PopulationRecord // コード表がない場合に人口表から特定したときのみ
}

// normalizeLookup は問い合わせを整えます。コードも名前もなければ ErrInvalidArgument です。
// 6桁に正規化できないコードはどの団体にも一致しないので、ok=false（該当なし）を返します。
func normalizeLookup(q model.Lookup) (_ model.Lookup, ok bool, err error) {
	q.Code = strings.TrimSpace(q.Code)
	q.Name = strings.TrimSpace(q.Name)
	q.Prefecture = strings.TrimSpace(q.Prefecture)
	if q.Code == "" && q.Name == "" {
		return q, false, fmt.Errorf("%w: jichitai_code or jichitai_name is required", ErrInvalidArgument)
	}
	if q.Code != "" {
		code, ok := jcode.Normalize(q.Code)
		if !ok {
			return q, false, nil
		}
		q.Code = code
	}
	return q, true, nil
}

// resolveIdentity はコード指定を優先し、なければ名前解決の最上位候補で団体を特定します。
// 見つからなければ nil です。
func (m *Manager) resolveIdentity(q model.Lookup) (*identity, error) {
	if m.codes == nil {
		if q.Code != "" && m.population != nil {
			rec, err := m.population.GetByCode(q.Code)
			if err != nil || rec == nil {
				return nil, err
			}
			return &identity{code: rec.JichitaiCode, name: rec.Municipality, prefecture: rec.Prefecture, population: rec}, nil
		}
		return nil, nil
	}

	if q.Code != "" {
		rec, err := m.codes.GetByCode(q.Code)
		if err != nil || rec == nil {
			return nil, err
		}
		return &identity{code: rec.JichitaiCode, name: rec.Municipality, prefecture: rec.Prefecture, typ: rec.JichitaiType}, nil
	}

	matches, err := m.codes.GetByName(q.Name, q.Prefecture)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	top := matches[0]
	return &identity{code: top.JichitaiCode, name: top.Municipality, prefecture: top.Prefecture, typ: top.JichitaiType}, nil
}

// GetBasicInfo は団体の人口・世帯・人口動態・財政指標を結合して返します。
// 該当する団体がなければ (nil, nil) です。
func (m *Manager) GetBasicInfo(q model.Lookup) (*model.BasicInfo, error) {
	q, ok, err := normalizeLookup(q)
	if err != nil {
		return nil, err
	}
	var id *identity
	if ok {
		if id, err = m.resolveIdentity(q); err != nil {
			return nil, err
		}
	}
	if id == nil {
		m.logger.Debug("municipality not found", zap.String("code", q.Code), zap.String("name", q.Name))
		return nil, nil
	}

	info := &model.BasicInfo{
		JichitaiCode: id.code,
		JichitaiName: id.name,
		Prefecture:   id.prefecture,
		JichitaiType: id.typ,
	}

	pop := id.population
	if pop == nil && m.population != nil {
		if pop, err = m.population.GetByCode(id.code); err != nil {
			return nil, fmt.Errorf("population lookup: %w", err)
		}
	}
	if pop != nil {
		info.Population = &pop.Population
		info.Households = pop.Households
		info.PopulationDynamics = &pop.PopulationDynamics
		src := PopulationSource
		info.DataSources.PopulationSource = &src
	}

	fin, err := m.financeByCode(id.code)
	if err != nil {
		return nil, err
	}
	if fin != nil {
		info.Finance = &fin.Finance
		src := FinanceCitation(fin.Variant)
		info.DataSources.FinanceSource = &src
	}
	return info, nil
}

// financeByCode は優先順に各財政データを探し、最初に見つかった行を返します。
func (m *Manager) financeByCode(code string) (*model.FinanceRecord, error) {
	for _, p := range m.finance {
		rec, err := p.GetByCode(code)
		if err != nil {
			return nil, fmt.Errorf("finance lookup (%s): %w", p.Variant(), err)
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

// financeIndex は全財政データを団体コードで引ける形にします。優先順の先のものが勝ちます。
func (m *Manager) financeIndex() (map[string]model.Finance, error) {
	index := map[string]model.Finance{}
	for _, p := range m.finance {
		records, err := p.Parse()
		if err != nil {
			return nil, fmt.Errorf("finance parse (%s): %w", p.Variant(), err)
		}
		for _, rec := range records {
			if _, ok := index[rec.JichitaiCode]; !ok {
				index[rec.JichitaiCode] = rec.Finance
			}
		}
	}
	return index, nil
}

// ResolveName は団体名から団体コードの候補を返します。fuzzy が false なら完全一致のみです。
func (m *Manager) ResolveName(name, prefecture string, fuzzy bool) (*model.CodeResolution, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: jichitai_name is required", ErrInvalidArgument)
	}
	res := &model.CodeResolution{Matches: []model.CodeMatch{}}
	if m.codes == nil {
		return res, nil
	}
	matches, err := m.codes.GetByName(name, strings.TrimSpace(prefecture))
	if err != nil {
		return nil, err
	}
	for _, match := range matches {
		if match.MatchScore == parsers.ScoreExact {
			res.ExactMatch = true
		} else if !fuzzy {
			continue
		}
		res.Matches = append(res.Matches, match)
	}
	return res, nil
}
