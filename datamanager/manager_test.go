package datamanager

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jichitai/config"
	"jichitai/model"
	"jichitai/tabular"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newManager(t *testing.T) (*Manager, *fixture) {
	t.Helper()
	f := newFixture()
	m := NewWithSources(f.src, zap.NewNop())
	t.Cleanup(func() { m.Close() })
	return m, f
}

func TestGetBasicInfoByCode(t *testing.T) {
	m, _ := newManager(t)

	info, err := m.GetBasicInfo(model.Lookup{Code: "33227"})
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.Equal(t, "033227", info.JichitaiCode)
	assert.Equal(t, "紫波郡矢巾町", *info.JichitaiName)
	assert.Equal(t, "岩手県", *info.Prefecture)
	assert.Equal(t, model.TypeTown, *info.JichitaiType)
	assert.Equal(t, int64(27100), *info.Population.Total)
	assert.Equal(t, int64(11000), *info.Households)
	assert.Equal(t, int64(180), *info.PopulationDynamics.Births)
	require.NotNil(t, info.Finance)
	assert.InDelta(t, 0.53, *info.Finance.FinancialCapabilityIndex, 1e-9)
	assert.Nil(t, info.Finance.RealDebtServiceRatio, "hyphen cell becomes null")
	assert.Equal(t, PopulationSource, *info.DataSources.PopulationSource)
	assert.Equal(t, FinanceSummarySource, *info.DataSources.FinanceSource)
}

func TestGetBasicInfoByName(t *testing.T) {
	m, _ := newManager(t)

	info, err := m.GetBasicInfo(model.Lookup{Name: "矢巾町", Prefecture: "岩手県"})
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "033227", info.JichitaiCode)

	info, err = m.GetBasicInfo(model.Lookup{Name: "横須賀市"})
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "142018", info.JichitaiCode)
	assert.InDelta(t, 0.78, *info.Finance.FinancialCapabilityIndex, 1e-9, "summary takes priority over settlement")
}

func TestGetBasicInfoFinanceAttribution(t *testing.T) {
	m, _ := newManager(t)

	info, err := m.GetBasicInfo(model.Lookup{Code: "141011"})
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, model.TypeSpecialWard, *info.JichitaiType)
	assert.InDelta(t, 0.95, *info.Finance.FinancialCapabilityIndex, 1e-9)
	assert.NotNil(t, info.Finance.StandardFiscalScale)
	assert.Equal(t, FinanceSettlementSource, *info.DataSources.FinanceSource)
}

func TestGetBasicInfoFinanceKeysAlwaysPresent(t *testing.T) {
	m, _ := newManager(t)

	info, err := m.GetBasicInfo(model.Lookup{Code: "034827"})
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Nil(t, info.Finance)

	b, err := json.Marshal(info)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))

	v, ok := out["finance"]
	assert.True(t, ok, "finance key must be present")
	assert.Nil(t, v)
	sources, ok := out["data_sources"].(map[string]any)
	require.True(t, ok)
	v, ok = sources["finance_source"]
	assert.True(t, ok, "finance_source key must be present")
	assert.Nil(t, v)
	assert.Equal(t, PopulationSource, sources["population_source"])
}

func TestGetBasicInfoNotFoundAndInvalid(t *testing.T) {
	m, _ := newManager(t)

	info, err := m.GetBasicInfo(model.Lookup{Code: "999999"})
	require.NoError(t, err)
	assert.Nil(t, info)

	info, err = m.GetBasicInfo(model.Lookup{Name: "存在しない村"})
	require.NoError(t, err)
	assert.Nil(t, info)

	_, err = m.GetBasicInfo(model.Lookup{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = m.GetBasicInfo(model.Lookup{Prefecture: "岩手県"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMalformedCodeIsNotFound(t *testing.T) {
	m, _ := newManager(t)

	for _, q := range []model.Lookup{
		{Code: "abc"},
		{Code: "1234567"},
		{Code: "abc", Name: "盛岡市"},
		{Code: "03-3227"},
	} {
		info, err := m.GetBasicInfo(q)
		require.NoError(t, err, q)
		assert.Nil(t, info, q)

		mn, err := m.GetMyNumberRate(q)
		require.NoError(t, err, q)
		assert.Nil(t, mn, q)

		dx, err := m.GetDXData(q, nil)
		require.NoError(t, err, q)
		assert.Nil(t, dx, q)

		ag, err := m.GetAgeGroupPopulation(q)
		require.NoError(t, err, q)
		assert.Nil(t, ag, q)
	}
}

func TestGetBasicInfoWithoutCodes(t *testing.T) {
	f := newFixture()
	src := f.src
	src.Codes = nil
	m := NewWithSources(src, nil)
	defer m.Close()

	info, err := m.GetBasicInfo(model.Lookup{Code: "032018"})
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "盛岡市", *info.JichitaiName)
	assert.Nil(t, info.JichitaiType)
	assert.NotNil(t, info.Finance)

	info, err = m.GetBasicInfo(model.Lookup{Name: "盛岡市"})
	require.NoError(t, err)
	assert.Nil(t, info, "name lookups need the codes table")
}

func TestGetBasicInfoWithOnlyCodes(t *testing.T) {
	f := newFixture()
	m := NewWithSources(Sources{Codes: f.src.Codes}, nil)
	defer m.Close()

	info, err := m.GetBasicInfo(model.Lookup{Code: "032018"})
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Nil(t, info.Population)
	assert.Nil(t, info.Finance)
	assert.Nil(t, info.DataSources.PopulationSource)
	assert.Nil(t, info.DataSources.FinanceSource)
}

func TestResolveName(t *testing.T) {
	m, _ := newManager(t)

	res, err := m.ResolveName("矢巾町", "岩手県", true)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "033227", res.Matches[0].JichitaiCode)
	assert.Equal(t, 0.9, res.Matches[0].MatchScore)
	assert.False(t, res.ExactMatch)

	res, err = m.ResolveName("盛岡市", "", false)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.True(t, res.ExactMatch)

	res, err = m.ResolveName("市", "", false)
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.False(t, res.ExactMatch)

	res, err = m.ResolveName("市", "", true)
	require.NoError(t, err)
	assert.Len(t, res.Matches, 3)

	_, err = m.ResolveName("  ", "", true)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	empty := NewWithSources(Sources{}, nil)
	res, err = empty.ResolveName("盛岡市", "", true)
	require.NoError(t, err)
	assert.NotNil(t, res.Matches)
	assert.Empty(t, res.Matches)
}

func codesOf(items []model.SearchItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.JichitaiCode
	}
	return out
}

func TestSearch(t *testing.T) {
	m, _ := newManager(t)
	i64 := func(n int64) *int64 { return &n }

	t.Run("defaults sort by population desc", func(t *testing.T) {
		res, err := m.Search(model.SearchCriteria{})
		require.NoError(t, err)
		assert.Equal(t, []string{"142018", "141011", "032018", "033227", "034827"}, codesOf(res.JichitaiList))
		assert.Equal(t, 5, res.TotalCount)
		assert.Equal(t, 5, res.FilteredCount)
	})

	t.Run("population range and limit", func(t *testing.T) {
		res, err := m.Search(model.SearchCriteria{PopulationMin: i64(27100), PopulationMax: i64(295000), SortOrder: "asc", Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"033227", "032018"}, codesOf(res.JichitaiList))
		assert.Equal(t, 3, res.TotalCount)
		assert.Equal(t, 2, res.FilteredCount)
	})

	t.Run("prefecture and type", func(t *testing.T) {
		res, err := m.Search(model.SearchCriteria{Prefectures: []string{"岩手県"}, JichitaiTypes: []string{"町"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"033227", "034827"}, codesOf(res.JichitaiList))

		res, err = m.Search(model.SearchCriteria{JichitaiTypes: []string{"city", "special_ward"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"142018", "141011", "032018"}, codesOf(res.JichitaiList))
		assert.Equal(t, model.TypeSpecialWard, *res.JichitaiList[1].JichitaiType)
	})

	t.Run("financial capability sort puts missing last", func(t *testing.T) {
		res, err := m.Search(model.SearchCriteria{SortBy: "financial_capability"})
		require.NoError(t, err)
		assert.Equal(t, []string{"141011", "142018", "032018", "033227", "034827"}, codesOf(res.JichitaiList))
		assert.Nil(t, res.JichitaiList[4].FinancialCapabilityIndex)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		for _, c := range []model.SearchCriteria{
			{SortBy: "area"},
			{SortOrder: "sideways"},
			{JichitaiTypes: []string{"県庁"}},
			{PopulationMin: i64(10), PopulationMax: i64(1)},
		} {
			_, err := m.Search(c)
			assert.ErrorIs(t, err, ErrInvalidArgument, "%+v", c)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		c := model.SearchCriteria{Prefectures: []string{"神奈川県", "岩手県"}, SortBy: "financial_capability", SortOrder: "asc", Limit: 4}
		first, err := m.Search(c)
		require.NoError(t, err)
		second, err := m.Search(c)
		require.NoError(t, err)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("search results differ (-first +second):\n%s", diff)
		}
	})
}

func TestSearchFinancialCapabilityScenario(t *testing.T) {
	pop := rowsFrom(9,
		tabular.Row{"011002", "北海道", "札幌市", nil, nil, 1900000.0},
		tabular.Row{"012025", "北海道", "函館市", nil, nil, 240000.0},
		tabular.Row{"012033", "北海道", "小樽市", nil, nil, 110000.0},
		tabular.Row{"012041", "北海道", "旭川市", nil, nil, 320000.0},
		tabular.Row{"012050", "北海道", "室蘭市", nil, nil, 78000.0},
	)
	fin := rowsFrom(3,
		tabular.Row{"011002", "北海道", "札幌市", 0.7},
		tabular.Row{"012025", "北海道", "函館市", 0.5},
		tabular.Row{"012033", "北海道", "小樽市", 0.65},
		tabular.Row{"012041", "北海道", "旭川市", 0.9},
		tabular.Row{"012050", "北海道", "室蘭市", "-"},
	)
	m := NewWithSources(Sources{Population: pop, FinanceSummary: fin}, nil)
	defer m.Close()

	minIndex := 0.6
	res, err := m.Search(model.SearchCriteria{
		FinancialCapabilityMin: &minIndex,
		SortBy:                 model.SortByFinancialCapability,
		SortOrder:              model.SortDesc,
		Limit:                  3,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"012041", "011002", "012033"}, codesOf(res.JichitaiList))
	assert.Equal(t, 3, res.TotalCount)
	assert.Equal(t, 3, res.FilteredCount)
}

func TestSearchWithoutPopulation(t *testing.T) {
	m := NewWithSources(Sources{}, nil)
	res, err := m.Search(model.SearchCriteria{})
	require.NoError(t, err)
	assert.Empty(t, res.JichitaiList)
	assert.Zero(t, res.TotalCount)
}

func TestSearchTypeFilterSkippedWithoutCodes(t *testing.T) {
	f := newFixture()
	m := NewWithSources(Sources{Population: f.src.Population}, nil)
	res, err := m.Search(model.SearchCriteria{JichitaiTypes: []string{"村"}})
	require.NoError(t, err)
	assert.Equal(t, 5, res.TotalCount)
}

func TestDemographics(t *testing.T) {
	groups := model.AgeBreakdown{}
	for _, label := range model.AgeGroupLabels {
		n := int64(100)
		groups[label] = &n
	}
	total := int64(2100)

	d := Demographics(groups, &total)
	require.NotNil(t, d)
	assert.Equal(t, int64(300), d.YouthPopulation)
	assert.Equal(t, int64(1000), d.WorkingAgePopulation)
	assert.Equal(t, int64(800), d.ElderlyPopulation)
	assert.Equal(t, 14.29, d.YouthRatio)
	assert.Equal(t, 47.62, d.WorkingAgeRatio)
	assert.Equal(t, 38.1, d.ElderlyRatio)
	assert.InDelta(t, 100.0, d.YouthRatio+d.WorkingAgeRatio+d.ElderlyRatio, 0.1)

	zero := int64(0)
	assert.Nil(t, Demographics(groups, &zero))
	assert.Nil(t, Demographics(groups, nil))

	groups["0-4歳"] = nil
	d = Demographics(groups, &total)
	assert.Equal(t, int64(200), d.YouthPopulation, "absent bands count as zero")
}

func TestGetAgeGroupPopulation(t *testing.T) {
	m, _ := newManager(t)

	res, err := m.GetAgeGroupPopulation(model.Lookup{Name: "矢巾町"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "033227", res.JichitaiCode)
	assert.Equal(t, "紫波郡矢巾町", *res.JichitaiName)
	require.NotNil(t, res.Total)
	require.NotNil(t, res.Male)
	require.NotNil(t, res.Female)
	assert.Equal(t, int64(2100), *res.Total.Total)
	assert.Equal(t, int64(50), *res.Male.AgeGroups["0-4歳"])
	require.NotNil(t, res.Demographics)
	assert.Equal(t, 14.29, res.Demographics.YouthRatio)
	assert.Equal(t, AgeGroupSource, res.DataSource)

	b, err := json.Marshal(res.Total)
	require.NoError(t, err)
	assert.True(t, strings.Index(string(b), "0-4歳") < strings.Index(string(b), "100歳以上"), "bands keep their order")

	res, err = m.GetAgeGroupPopulation(model.Lookup{Code: "032018"})
	require.NoError(t, err)
	assert.Nil(t, res, "no age rows for this municipality")
}

func TestGetAgeGroupPopulationWithoutCodes(t *testing.T) {
	f := newFixture()
	src := f.src
	src.Codes = nil
	src.AgeGroups = f.add(rowsFrom(4,
		ageRow("033227", "紫波郡矢巾町", "計", 100),
		ageRow("033227", "紫波郡矢巾町", "男", 50),
		ageRow("033227", "紫波郡矢巾町", "女", 50),
		ageRow("034827", "西和賀町", "計", 10),
	))
	m := NewWithSources(src, nil)
	defer m.Close()

	res, err := m.GetAgeGroupPopulation(model.Lookup{Name: "矢巾町", Prefecture: "岩手"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "033227", res.JichitaiCode)
	assert.Equal(t, "紫波郡矢巾町", *res.JichitaiName)
	assert.Equal(t, "岩手県", *res.Prefecture)
	require.NotNil(t, res.Total)
	require.NotNil(t, res.Male)
	require.NotNil(t, res.Female)
	assert.Equal(t, int64(2100), *res.Total.Total)

	// 複数団体に一致しても最初の団体の行だけを使う
	res, err = m.GetAgeGroupPopulation(model.Lookup{Name: "町"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "033227", res.JichitaiCode)
	assert.Equal(t, int64(1050), *res.Male.Total)

	res, err = m.GetAgeGroupPopulation(model.Lookup{Code: "34827"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "西和賀町", *res.JichitaiName)
	assert.Nil(t, res.Male)

	res, err = m.GetAgeGroupPopulation(model.Lookup{Name: "矢巾町", Prefecture: "秋田県"})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestGetMyNumberRate(t *testing.T) {
	m, _ := newManager(t)

	res, err := m.GetMyNumberRate(model.Lookup{Code: "033227"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "033227", *res.JichitaiCode)
	assert.Equal(t, "矢巾町", *res.JichitaiName)
	assert.Equal(t, 78.23, *res.MyNumberCardData.IssuanceRate)
	assert.Equal(t, int64(21200), *res.MyNumberCardData.IssuedCards)
	assert.Equal(t, MyNumberSource, res.DataSource)

	res, err = m.GetMyNumberRate(model.Lookup{Code: "032018"})
	require.NoError(t, err)
	assert.Nil(t, res)

	_, err = m.GetMyNumberRate(model.Lookup{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	f := newFixture()
	noCodes := NewWithSources(Sources{MyNumber: f.src.MyNumber}, nil)
	res, err = noCodes.GetMyNumberRate(model.Lookup{Name: "横須賀市", Prefecture: "神奈川県"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Nil(t, res.JichitaiCode)
	assert.Equal(t, 80.0, *res.MyNumberCardData.IssuanceRate)
}

func TestGetDXData(t *testing.T) {
	m, _ := newManager(t)

	res, err := m.GetDXData(model.Lookup{Name: "横須賀市"}, nil)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "142018", *res.JichitaiCode)
	assert.Equal(t, "横須賀市", res.JichitaiName)
	assert.Equal(t, "神奈川県", *res.Prefecture)
	assert.Len(t, res.DXData.DXIndicators, 2)
	assert.InDelta(t, 70.0, *res.DXData.OnlineProcedures["転出届"], 1e-9)
	assert.Equal(t, DXSource, res.DataSource)

	res, err = m.GetDXData(model.Lookup{Code: "033227"}, []string{"人材"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, map[string]any{"CIO補佐官": "なし"}, res.DXData.DXIndicators)
	assert.Nil(t, res.DXData.OnlineProcedures)

	res, err = m.GetDXData(model.Lookup{Code: "033227"}, []string{"online_procedures"})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Empty(t, res.DXData.DXIndicators)
	assert.InDelta(t, 88.8, *res.DXData.OnlineProcedures["転出届"], 1e-9)

	res, err = m.GetDXData(model.Lookup{Code: "141011"}, nil)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestExportRowsAndCSV(t *testing.T) {
	m, _ := newManager(t)

	rows, err := m.ExportRows()
	require.NoError(t, err)
	require.Len(t, rows, 5)

	byCode := map[string]model.ExportRow{}
	for _, r := range rows {
		byCode[r.JichitaiCode] = r
	}
	yahaba := byCode["033227"]
	assert.Equal(t, int64(27100), *yahaba.PopulationTotal)
	assert.InDelta(t, 0.53, *yahaba.FinancialCapabilityIndex, 1e-9)
	assert.Equal(t, 78.23, *yahaba.MyNumberIssuanceRate)
	assert.Equal(t, 38.1, *yahaba.ElderlyRatio)
	nishiwaga := byCode["034827"]
	assert.Nil(t, nishiwaga.FinancialCapabilityIndex)
	assert.Nil(t, nishiwaga.YouthRatio)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))
	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\xEF\xBB\xBF"))
	lines := strings.Split(strings.TrimSuffix(strings.TrimPrefix(out, "\xEF\xBB\xBF"), "\r\n"), "\r\n")
	require.Len(t, lines, 6)
	assert.Equal(t, strings.Join(ExportHeader, ","), lines[0])
	assert.Contains(t, lines, "034827,西和賀町,岩手県,town,5000,2400,2600,2200,,,,,,,,,")

	path := filepath.Join(t.TempDir(), "out", "municipalities.csv")
	res, err := m.ExportCSV(path)
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, 5, res.Count)
	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, out, string(written))
}

func TestExportRowsRequiresCodes(t *testing.T) {
	m := NewWithSources(Sources{}, nil)
	_, err := m.ExportRows()
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newFixture()
	m := NewWithSources(f.src, nil)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	for _, tbl := range f.tables {
		assert.True(t, tbl.Closed())
	}
}

func TestNewSkipsMissingSources(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "codes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "codes", "codes.csv"),
		[]byte("団体コード,都道府県名,市区町村名\n033227,岩手県,紫波郡矢巾町\n"), 0o644))

	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.Sources.Codes = "codes/codes.csv"

	core, logs := observer.New(zapcore.WarnLevel)
	m, err := New(cfg, zap.New(core))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, map[string]bool{
		"codes": true, "population": false, "age_groups": false, "mynumber": false, "dx": false,
	}, m.Available())
	assert.Equal(t, 7, logs.FilterMessage("source not found, skipping").Len())

	info, err := m.GetBasicInfo(model.Lookup{Name: "矢巾町"})
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "033227", info.JichitaiCode)
	assert.Nil(t, info.Population)
}

func TestNewRejectsUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "codes.json"), []byte("{}"), 0o644))
	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.Sources.Codes = "codes.json"

	_, err := New(cfg, nil)
	assert.ErrorIs(t, err, tabular.ErrUnsupportedFormat)
}
