package datamanager

import (
	"fmt"
	"sort"
	"strings"

	"jichitai/model"
)

type searchPlan struct {
	c        model.SearchCriteria
	prefs    map[string]bool
	types    map[model.JichitaiType]bool
	sortBy   string
	sortDesc bool
}

func newSearchPlan(c model.SearchCriteria) (*searchPlan, error) {
	p := &searchPlan{c: c, sortBy: c.SortBy, sortDesc: true}
	if p.sortBy == "" {
		p.sortBy = model.SortByPopulation
	}
	if p.sortBy != model.SortByPopulation && p.sortBy != model.SortByFinancialCapability {
		return nil, fmt.Errorf("%w: unknown sort_by %q", ErrInvalidArgument, c.SortBy)
	}
	switch strings.ToLower(c.SortOrder) {
	case "", model.SortDesc:
	case model.SortAsc:
		p.sortDesc = false
	default:
		return nil, fmt.Errorf("%w: unknown sort_order %q", ErrInvalidArgument, c.SortOrder)
	}
	if c.PopulationMin != nil && c.PopulationMax != nil && *c.PopulationMin > *c.PopulationMax {
		return nil, fmt.Errorf("%w: population_min exceeds population_max", ErrInvalidArgument)
	}
	if len(c.Prefectures) > 0 {
		p.prefs = make(map[string]bool, len(c.Prefectures))
		for _, pref := range c.Prefectures {
			p.prefs[strings.TrimSpace(pref)] = true
		}
	}
	if len(c.JichitaiTypes) > 0 {
		p.types = make(map[model.JichitaiType]bool, len(c.JichitaiTypes))
		for _, s := range c.JichitaiTypes {
			t, ok := model.ParseJichitaiType(strings.TrimSpace(s))
			if !ok {
				return nil, fmt.Errorf("%w: unknown jichitai_type %q", ErrInvalidArgument, s)
			}
			p.types[t] = true
		}
	}
	return p, nil
}

// Search は人口表を母集団として条件で絞り込み、並び替えと件数制限を行います。
// 条件は AND で結合します。団体区分の条件はコード表がない場合は適用しません。
func (m *Manager) Search(c model.SearchCriteria) (*model.SearchResult, error) {
	plan, err := newSearchPlan(c)
	if err != nil {
		return nil, err
	}
	result := &model.SearchResult{JichitaiList: []model.SearchItem{}}
	if m.population == nil {
		return result, nil
	}

	pops, err := m.population.Parse()
	if err != nil {
		return nil, fmt.Errorf("population parse: %w", err)
	}
	types := map[string]*model.JichitaiType{}
	if m.codes != nil {
		codes, err := m.codes.Parse()
		if err != nil {
			return nil, fmt.Errorf("codes parse: %w", err)
		}
		for _, rec := range codes {
			types[rec.JichitaiCode] = rec.JichitaiType
		}
	}
	finance, err := m.financeIndex()
	if err != nil {
		return nil, err
	}

	items := []model.SearchItem{}
	for _, rec := range pops {
		total := rec.Population.Total
		if total == nil {
			continue
		}
		if c.PopulationMin != nil && *total < *c.PopulationMin {
			continue
		}
		if c.PopulationMax != nil && *total > *c.PopulationMax {
			continue
		}
		if plan.prefs != nil && (rec.Prefecture == nil || !plan.prefs[*rec.Prefecture]) {
			continue
		}
		typ := types[rec.JichitaiCode]
		if plan.types != nil && m.codes != nil && (typ == nil || !plan.types[*typ]) {
			continue
		}
		var capability *float64
		if f, ok := finance[rec.JichitaiCode]; ok {
			capability = f.FinancialCapabilityIndex
		}
		if c.FinancialCapabilityMin != nil && (capability == nil || *capability < *c.FinancialCapabilityMin) {
			continue
		}
		items = append(items, model.SearchItem{
			JichitaiCode:             rec.JichitaiCode,
			JichitaiName:             rec.Municipality,
			Prefecture:               rec.Prefecture,
			JichitaiType:             typ,
			Population:               *total,
			FinancialCapabilityIndex: capability,
		})
	}

	key := func(it model.SearchItem) float64 {
		if plan.sortBy == model.SortByFinancialCapability {
			if it.FinancialCapabilityIndex == nil {
				return 0
			}
			return *it.FinancialCapabilityIndex
		}
		return float64(it.Population)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if plan.sortDesc {
			return key(items[i]) > key(items[j])
		}
		return key(items[i]) < key(items[j])
	})

	result.TotalCount = len(items)
	if c.Limit > 0 && len(items) > c.Limit {
		items = items[:c.Limit]
	}
	result.JichitaiList = items
	result.FilteredCount = len(items)
	return result, nil
}
